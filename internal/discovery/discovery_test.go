package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderhound/internal/types"
)

func TestShortCircuitKeywordURL(t *testing.T) {
	d := New([]string{"hypedrop", "keydrop"}, nil, nil)

	lb, ok := d.shortCircuit("https://example.com/leaderboards/hypedrop")
	require.True(t, ok)
	assert.Equal(t, "hypedrop", lb.Name)
	assert.Equal(t, types.MethodURLNavigation, lb.Method)

	_, ok = d.shortCircuit("https://example.com/leaderboards")
	assert.False(t, ok)

	_, ok = d.shortCircuit("https://example.com/casino")
	assert.False(t, ok)
}

func TestDedupeSwitchersPrefersCoordinates(t *testing.T) {
	in := []types.Switcher{
		{Keyword: "hypedrop", HasCoordinates: false, Priority: 1},
		{Keyword: "hypedrop", HasCoordinates: true, Priority: 2, X: 100, Y: 200},
		{Keyword: "keydrop", HasCoordinates: true, Priority: 2},
	}
	out := dedupeSwitchers(in)
	require.Len(t, out, 2)
	assert.Equal(t, "hypedrop", out[0].Keyword)
	assert.True(t, out[0].HasCoordinates)
	assert.InDelta(t, 100, out[0].X, 0.001)
}

func TestAppendKnownSkipsScanned(t *testing.T) {
	scanned := []types.Leaderboard{{Name: "hypedrop", Method: types.MethodSwitcherClick}}
	known := []types.Leaderboard{
		{Name: "HypeDrop", URL: "https://x.com/leaderboards/hypedrop"},
		{Name: "keydrop", URL: "https://x.com/leaderboards/keydrop"},
	}
	out := appendKnown(scanned, known)
	require.Len(t, out, 2)
	assert.Equal(t, "keydrop", out[1].Name)
	assert.Equal(t, types.MethodProfileKnown, out[1].Method)
}

func TestLoadKeywords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nHypeDrop\n\nkeydrop\nkeydrop\n"), 0o644))

	kws, err := LoadKeywords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"hypedrop", "keydrop"}, kws)
}

func TestLoadKeywordsMissingFileFallsBack(t *testing.T) {
	kws, err := LoadKeywords(filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.Equal(t, DefaultKeywords, kws)
}
