package sandbox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExactAndWildcardRules(t *testing.T) {
	s, err := New(t.TempDir(), []Rule{
		{Pattern: "write_file", Decision: DecisionAsk},
		{Pattern: "read_*", Decision: DecisionAllow},
		{Pattern: "bash:/etc/**", Decision: DecisionDeny},
	})
	require.NoError(t, err)

	assert.Equal(t, DecisionAsk, s.Check("write_file", ""))
	assert.Equal(t, DecisionAllow, s.Check("read_file", ""))
	assert.Equal(t, DecisionDeny, s.Check("bash", "/etc/passwd"))
	assert.Equal(t, DecisionAsk, s.Check("unknown_tool", ""), "no matching rule falls back to Default")
}

func TestPathAllowedRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, nil)
	require.NoError(t, err)

	resolved, ok := s.PathAllowed("notes.txt")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "notes.txt"), resolved)

	_, ok = s.PathAllowed("../outside.txt")
	assert.False(t, ok)

	_, ok = s.PathAllowed("sub/../../outside.txt")
	assert.False(t, ok)
}

func TestDestroyRemovesWorkspace(t *testing.T) {
	root := filepath.Join(t.TempDir(), "workspace")
	s, err := New(root, nil)
	require.NoError(t, err)

	require.NoError(t, s.Destroy())
	assert.NoDirExists(t, root)
	_, ok := s.PathAllowed(".")
	assert.True(t, ok, "PathAllowed resolves path purely lexically, independent of directory existing")
}
