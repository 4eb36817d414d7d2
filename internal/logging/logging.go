// Package logging constructs the zap logger used throughout segrotd.
package logging

import "go.uber.org/zap"

// New builds a production logger, or a development logger (human-
// readable console encoding, debug level) when debug is true.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
