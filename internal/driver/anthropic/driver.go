// Package anthropic adapts Anthropic's Claude models to the driver.Driver
// interface via Eino's claude ChatModel: the same ChatModel construction
// and streaming approach, wired here to this runtime's DriveableEvent
// taxonomy instead of Eino's own *schema.Message shape.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	agdriver "github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/pkg/apitypes"
)

// Config configures the Anthropic driver.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Driver adapts Eino's claude ChatModel to agdriver.Driver.
type Driver struct {
	chatModel model.ToolCallingChatModel
	model     string
}

// New constructs a Driver, resolving an API key from cfg or the
// ANTHROPIC_API_KEY environment variable.
func New(ctx context.Context, cfg Config) (*Driver, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: no API key configured")
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = "claude-sonnet-4-20250514"
	}

	einoCfg := &claude.Config{
		APIKey:    apiKey,
		Model:     modelID,
		MaxTokens: cfg.MaxTokens,
	}
	if cfg.BaseURL != "" {
		einoCfg.BaseURL = &cfg.BaseURL
	}

	chatModel, err := claude.NewChatModel(ctx, einoCfg)
	if err != nil {
		return nil, fmt.Errorf("anthropic: create chat model: %w", err)
	}

	return &Driver{chatModel: chatModel, model: modelID}, nil
}

// FromConfig builds a Driver from the SDK's unified apitypes.Config,
// satisfying agdriver.Factory.
func FromConfig(ctx context.Context, cfg apitypes.Config) (agdriver.Driver, error) {
	return New(ctx, Config{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
	})
}

func (d *Driver) Name() string { return "anthropic/" + d.model }

// Stream runs req through the bound ChatModel and translates Eino's stream
// of message chunks into the uniform DriveableEvent sequence.
func (d *Driver) Stream(ctx context.Context, req agdriver.Request) (<-chan agdriver.DriveableEvent, error) {
	chatModel := d.chatModel
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: convert tools: %w", err)
		}
		chatModel, err = chatModel.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: bind tools: %w", err)
		}
	}

	messages := convertMessages(req.SystemPrompt, req.Messages)
	opts := []model.Option{}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}

	reader, err := chatModel.Stream(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic: start stream: %w", err)
	}

	out := make(chan agdriver.DriveableEvent, 16)
	go pump(ctx, reader, out)
	return out, nil
}

// pump translates Eino schema.Message chunks into DriveableEvents. Eino
// delivers assistant text and tool-call deltas as successive partial
// *schema.Message values on the same reader; pump tracks which tool call
// (by index) is currently open so InputDelta fragments attach to the
// right ToolCallID.
func pump(ctx context.Context, reader *schema.StreamReader[*schema.Message], out chan<- agdriver.DriveableEvent) {
	defer close(out)
	defer reader.Close()

	messageID := apitypes.NewID(apitypes.PrefixMessage)
	started := false
	openToolCall := ""

	interrupted := false
	emit := func(e agdriver.DriveableEvent) bool {
		if interrupted {
			return false
		}
		select {
		case out <- e:
			return true
		case <-ctx.Done():
			interrupted = true
			out <- agdriver.DriveableEvent{Type: agdriver.EventInterrupted}
			return false
		}
	}

	for {
		chunk, err := reader.Recv()
		if err != nil {
			if err.Error() == "EOF" {
				emit(agdriver.DriveableEvent{Type: agdriver.EventMessageStop, StopReason: agdriver.StopEndTurn})
				return
			}
			if ctx.Err() != nil {
				emit(agdriver.DriveableEvent{Type: agdriver.EventInterrupted})
				return
			}
			emit(agdriver.DriveableEvent{Type: agdriver.EventError, Err: err})
			return
		}

		if !started {
			started = true
			if !emit(agdriver.DriveableEvent{Type: agdriver.EventMessageStart, MessageID: messageID}) {
				return
			}
		}

		if chunk.Content != "" {
			if !emit(agdriver.DriveableEvent{Type: agdriver.EventTextDelta, Delta: chunk.Content}) {
				return
			}
		}

		for _, tc := range chunk.ToolCalls {
			if tc.ID != "" && tc.ID != openToolCall {
				if openToolCall != "" {
					emit(agdriver.DriveableEvent{Type: agdriver.EventToolUseContentBlockStop, ToolCallID: openToolCall})
				}
				openToolCall = tc.ID
				if !emit(agdriver.DriveableEvent{
					Type:       agdriver.EventToolUseContentBlockStart,
					ToolCallID: tc.ID,
					ToolName:   tc.Function.Name,
				}) {
					return
				}
			}
			if tc.Function.Arguments != "" {
				if !emit(agdriver.DriveableEvent{
					Type:       agdriver.EventToolUseContentBlockDelta,
					ToolCallID: openToolCall,
					InputDelta: tc.Function.Arguments,
				}) {
					return
				}
			}
		}

		if usage := chunk.ResponseMeta; usage != nil && usage.Usage != nil {
			if openToolCall != "" {
				emit(agdriver.DriveableEvent{Type: agdriver.EventToolUseContentBlockStop, ToolCallID: openToolCall})
				openToolCall = ""
			}
			stop := agdriver.StopEndTurn
			if len(chunk.ToolCalls) > 0 {
				stop = agdriver.StopToolUse
			}
			emit(agdriver.DriveableEvent{
				Type:       agdriver.EventMessageStop,
				StopReason: stop,
				Usage: agdriver.Usage{
					InputTokens:  usage.Usage.PromptTokens,
					OutputTokens: usage.Usage.CompletionTokens,
				},
			})
			return
		}
	}
}

func convertTools(tools []agdriver.ToolDefinition) ([]*schema.ToolInfo, error) {
	result := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		var jsonSchema struct {
			Properties map[string]struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			} `json:"properties"`
			Required []string `json:"required"`
		}
		if len(t.InputSchema) > 0 {
			if err := json.Unmarshal(t.InputSchema, &jsonSchema); err != nil {
				return nil, err
			}
		}
		required := make(map[string]bool, len(jsonSchema.Required))
		for _, r := range jsonSchema.Required {
			required[r] = true
		}
		params := make(map[string]*schema.ParameterInfo, len(jsonSchema.Properties))
		for name, prop := range jsonSchema.Properties {
			params[name] = &schema.ParameterInfo{
				Type:     jsonSchemaType(prop.Type),
				Desc:     prop.Description,
				Required: required[name],
			}
		}
		result = append(result, &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return result, nil
}

func jsonSchemaType(t string) schema.DataType {
	switch t {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}

func convertMessages(systemPrompt string, messages []apitypes.Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(messages)+1)
	if systemPrompt != "" {
		result = append(result, &schema.Message{Role: schema.System, Content: systemPrompt})
	}
	for _, m := range messages {
		result = append(result, convertMessage(m))
	}
	return result
}

func convertMessage(m apitypes.Message) *schema.Message {
	role := schema.Assistant
	switch m.Role {
	case apitypes.RoleUser:
		role = schema.User
	case apitypes.RoleSystem:
		role = schema.System
	case apitypes.RoleToolResult:
		role = schema.Tool
	}

	em := &schema.Message{Role: role, Content: apitypes.ConcatText(m.Content)}

	for _, part := range m.Content {
		switch p := part.(type) {
		case *apitypes.ToolCallPart:
			em.ToolCalls = append(em.ToolCalls, schema.ToolCall{
				ID: p.ToolCallID,
				Function: schema.FunctionCall{
					Name:      p.ToolName,
					Arguments: string(p.Input),
				},
			})
		case *apitypes.ToolResultPart:
			em.ToolCallID = p.ToolCallID
		}
	}

	return em
}
