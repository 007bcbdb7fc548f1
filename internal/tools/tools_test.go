package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/sandbox"
)

func TestRegistryExecuteRunsEcho(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	res, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`), Context{})
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Output)
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "nope", nil, Context{})
	assert.Error(t, err)
}

func TestRegistryExecuteDeniedBySandbox(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	sb, err := sandbox.New(t.TempDir(), []sandbox.Rule{
		{Pattern: "write_file", Decision: sandbox.DecisionDeny},
	})
	require.NoError(t, err)

	res, err := r.Execute(context.Background(), "write_file",
		json.RawMessage(`{"path":"a.txt","content":"x"}`), Context{Sandbox: sb})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestWriteThenReadFileRoundTrip(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	root := t.TempDir()
	sb, err := sandbox.New(root, []sandbox.Rule{{Pattern: "*", Decision: sandbox.DecisionAllow}})
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), "write_file",
		json.RawMessage(`{"path":"notes.txt","content":"hello"}`), Context{Sandbox: sb})
	require.NoError(t, err)

	res, err := r.Execute(context.Background(), "read_file",
		json.RawMessage(`{"path":"notes.txt"}`), Context{Sandbox: sb})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Output)
	assert.FileExists(t, filepath.Join(root, "notes.txt"))
}

func TestReadFileRejectsTraversal(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	sb, err := sandbox.New(t.TempDir(), []sandbox.Rule{{Pattern: "*", Decision: sandbox.DecisionAllow}})
	require.NoError(t, err)

	res, err := r.Execute(context.Background(), "read_file",
		json.RawMessage(`{"path":"../../etc/passwd"}`), Context{Sandbox: sb})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
