package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry([]string{"ipstrc", "pdtrc", "ipmgr", "inttrc"}, false)
}

func TestClassify(t *testing.T) {
	r := testRegistry()

	cases := []struct {
		name     string
		wantCls  Classification
		wantID   int
	}{
		{"ipstrc.log", NotBak, -1},
		{"notes.txt", NotBak, -1},
		{"ipstrc.bak.1", Derivative, -1},
		{"ipstrc.bak.1.gz", Derivative, -1},
		{"ipstrc.bak", SelfStaged, -1},
		{"pdtrc.bak", SelfStaged, -1},
		{"ipstrc.100.bak", Dispatched, 0},
		{"pdtrc.1690000000.bak", Dispatched, 1},
		{"ipmgr.dummy.bak", Dispatched, 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cls, id := Classify(r, c.name)
			assert.Equal(t, c.wantCls, cls)
			if c.wantCls == Dispatched {
				assert.Equal(t, c.wantID, id)
			}
		})
	}
}

func TestClassifyUnregisteredBakIsIgnored(t *testing.T) {
	r := testRegistry()
	cls, _ := Classify(r, "unknownstream.100.bak")
	assert.Equal(t, NotBak, cls)
}

func TestIsDummy(t *testing.T) {
	require.True(t, IsDummy("ipstrc", "ipstrc.dummy.bak"))
	require.False(t, IsDummy("ipstrc", "ipstrc.100.bak"))
	require.Equal(t, "ipstrc.dummy.bak", DummyName("ipstrc"))
}

func TestRegistryFindOrder(t *testing.T) {
	// Both "ip" and "ipstrc" are substrings of the name; registry order decides.
	r := NewRegistry([]string{"ip", "ipstrc"}, false)
	id, ok := r.Find("ipstrc.100.bak")
	require.True(t, ok)
	assert.Equal(t, 0, id) // first match wins: "ip" matches first
}

func TestRegistryStrictPrefix(t *testing.T) {
	r := NewRegistry([]string{"ip"}, true)
	_, ok := r.Find("ipstrc.100.bak")
	assert.False(t, ok, "strict prefix requires a dot after the base")

	id, ok := r.Find("ip.100.bak")
	require.True(t, ok)
	assert.Equal(t, 0, id)
}
