package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// RegisterBuiltins adds the built-in echo/read_file/write_file tools to r,
// enough to exercise the full tool-call loop end to end without any
// external MCP server configured.
func RegisterBuiltins(r *Registry) {
	r.Register(echoTool{})
	r.Register(readFileTool{})
	r.Register(writeFileTool{})
}

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes its input text back unchanged." }
func (echoTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)
}

func (echoTool) Execute(ctx context.Context, input json.RawMessage, tc Context) (Result, error) {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return Result{}, fmt.Errorf("echo: invalid input: %w", err)
	}
	return Result{Output: in.Text}, nil
}

type readFileTool struct{}

func (readFileTool) Name() string        { return "read_file" }
func (readFileTool) Description() string { return "Reads a text file from the container's workspace." }
func (readFileTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
}

func (readFileTool) Execute(ctx context.Context, input json.RawMessage, tc Context) (Result, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return Result{}, fmt.Errorf("read_file: invalid input: %w", err)
	}

	resolved := in.Path
	if tc.Sandbox != nil {
		var ok bool
		resolved, ok = tc.Sandbox.PathAllowed(in.Path)
		if !ok {
			return Result{IsError: true, Output: fmt.Sprintf("path %q escapes the workspace", in.Path)}, nil
		}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return Result{IsError: true, Output: err.Error()}, nil
	}
	return Result{Output: string(data)}, nil
}

type writeFileTool struct{}

func (writeFileTool) Name() string        { return "write_file" }
func (writeFileTool) Description() string { return "Writes a text file in the container's workspace." }
func (writeFileTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`)
}

func (writeFileTool) Execute(ctx context.Context, input json.RawMessage, tc Context) (Result, error) {
	var in struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return Result{}, fmt.Errorf("write_file: invalid input: %w", err)
	}

	resolved := in.Path
	if tc.Sandbox != nil {
		var ok bool
		resolved, ok = tc.Sandbox.PathAllowed(in.Path)
		if !ok {
			return Result{IsError: true, Output: fmt.Sprintf("path %q escapes the workspace", in.Path)}, nil
		}
	}

	if err := os.WriteFile(resolved, []byte(in.Content), 0o644); err != nil {
		return Result{IsError: true, Output: err.Error()}, nil
	}
	return Result{Output: fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path)}, nil
}
