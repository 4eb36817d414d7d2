// Package execarchiver implements archive.Archiver by shelling out to
// an external packager process: target archive path, a change-into-
// directory argument, and a list of generation filenames (names only).
// Success is a zero exit status.
package execarchiver

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/DataDog/segrotd/internal/archive"
)

// Archiver invokes an external binary (by default "tar") to package a
// Request.
type Archiver struct {
	// Path is the archiver binary to invoke, e.g. "/bin/tar".
	Path string
	// ChdirFlag is the flag used to tell the archiver to change
	// directory before resolving member names, e.g. "-C" for tar.
	ChdirFlag string
	// CreateArgs are the flags that precede the target path, e.g.
	// []string{"-czf"} for "tar -czf <target> -C <dir> <members...>".
	CreateArgs []string
}

// New returns an Archiver that invokes "tar -czf <target> -C <dir>
// <members...>", the conventional shape of a tar-compatible external
// packager.
func New(path string) *Archiver {
	if path == "" {
		path = "tar"
	}
	return &Archiver{
		Path:       path,
		ChdirFlag:  "-C",
		CreateArgs: []string{"-czf"},
	}
}

// Archive implements archive.Archiver.
func (a *Archiver) Archive(req archive.Request) error {
	args := append([]string{}, a.CreateArgs...)
	args = append(args, req.Target, a.ChdirFlag, req.Dir)
	args = append(args, req.Members...)

	cmd := exec.CommandContext(context.Background(), a.Path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "external archiver failed: %s", string(out))
	}
	return nil
}
