package payloads

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSQLi(t *testing.T) {
	c := DefaultSQLi()
	require.Greater(t, c.Len(), 5)

	all := c.All()
	assert.Equal(t, "' OR 1=1; --", all[0])
	assert.Contains(t, all, "1; DROP TABLE users")

	for _, s := range all {
		assert.NotContains(t, s, "%", "strategy %q must not contain a URL escape", s)
		assert.NotContains(t, s, "#", "strategy %q must not contain a fragment marker", s)
	}
}

func TestCatalog_AllReturnsCopy(t *testing.T) {
	c, err := NewCatalog([]string{"a", "b"})
	require.NoError(t, err)

	all := c.All()
	all[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, c.All())
}

func TestNewCatalog_CopiesInput(t *testing.T) {
	in := []string{"x", "y"}
	c, err := NewCatalog(in)
	require.NoError(t, err)

	in[0] = "changed"
	assert.Equal(t, []string{"x", "y"}, c.All())
}

func TestNewCatalog_Empty(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestCatalog_RandomOne(t *testing.T) {
	c, err := NewCatalog([]string{"a", "b", "c"})
	require.NoError(t, err)

	r1 := rand.New(rand.NewPCG(42, 7))
	r2 := rand.New(rand.NewPCG(42, 7))
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		v := c.RandomOne(r1)
		assert.Equal(t, v, c.RandomOne(r2), "same seed must pick the same strategy")
		seen[v] = true
	}
	assert.Len(t, seen, 3, "every strategy should eventually be picked")

	assert.Contains(t, c.All(), c.RandomOne(nil))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := "- \"' OR 1=1\"\n- \"1;DROP TABLE x\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"' OR 1=1", "1;DROP TABLE x"}, c.All())
}

func TestLoadCatalog_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCatalog(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("[]\n"), 0o600))
	_, err = LoadCatalog(empty)
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("key: [unterminated"), 0o600))
	_, err = LoadCatalog(bad)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to parse catalog"))
}
