package rpc

import (
	"context"
	"encoding/json"

	"github.com/agentx/agentx/internal/apierror"
	"github.com/agentx/agentx/internal/runtime"
	"github.com/agentx/agentx/pkg/apitypes"
)

// methodFunc dispatches one decoded Request.Params against rt and returns
// the value to marshal as Response.Result.
type methodFunc func(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error)

// methods is the dispatch table for every namespace.method the Remote
// client (internal/runtime/remote.go) calls. Keeping the method name
// strings in one place on each side (here, and remote.go's transport.Call
// sites) is the wire contract between them.
var methods = map[string]methodFunc{
	"containers.create":  containersCreate,
	"containers.destroy": containersDestroy,
	"containers.list":    containersList,

	"images.registerDefinition": imagesRegisterDefinition,
	"images.getMetaImage":       imagesGetMetaImage,
	"images.create":             imagesCreate,
	"images.update":             imagesUpdate,
	"images.delete":             imagesDelete,

	"agents.run":       agentsRun,
	"agents.interrupt": agentsInterrupt,
	"agents.destroy":   agentsDestroy,

	"sessions.create":      sessionsCreate,
	"sessions.getMessages": sessionsGetMessages,
	"sessions.send":        sessionsSend,
	"sessions.resume":      sessionsResume,
	"sessions.fork":        sessionsFork,
	"sessions.collect":     sessionsCollect,
}

func decode(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return apierror.Wrap(apierror.KindProtocol, "invalid params", err)
	}
	return nil
}

func containersCreate(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		WorkspaceRoot string `json:"workspaceRoot"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return rt.CreateContainer(ctx, p.WorkspaceRoot)
}

func containersDestroy(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		ContainerID string `json:"containerId"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return nil, rt.DestroyContainer(ctx, p.ContainerID)
}

func containersList(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	return rt.ListContainers(ctx)
}

func imagesRegisterDefinition(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var def apitypes.Definition
	if err := decode(params, &def); err != nil {
		return nil, err
	}
	return rt.RegisterDefinition(ctx, def)
}

func imagesGetMetaImage(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		DefinitionName string `json:"definitionName"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return rt.GetMetaImage(ctx, p.DefinitionName)
}

func imagesCreate(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		ContainerID    string `json:"containerId"`
		SessionID      string `json:"sessionId"`
		DefinitionName string `json:"definitionName"`
		Name           string `json:"name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return rt.CreateImage(ctx, p.ContainerID, p.SessionID, p.DefinitionName, p.Name)
}

func imagesUpdate(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		ImageID string              `json:"imageId"`
		Patch   apitypes.ImagePatch `json:"patch"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return rt.UpdateImage(ctx, p.ImageID, p.Patch)
}

func imagesDelete(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		ImageID string `json:"imageId"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return nil, rt.DeleteImage(ctx, p.ImageID)
}

func agentsRun(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		ImageID     string         `json:"imageId"`
		ContainerID string         `json:"containerId"`
		Config      apitypes.Config `json:"config"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return rt.RunImage(ctx, p.ImageID, p.ContainerID, p.Config)
}

func agentsInterrupt(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		ContainerID string `json:"containerId"`
		SessionID   string `json:"sessionId"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return nil, rt.InterruptAgent(ctx, p.ContainerID, p.SessionID)
}

func agentsDestroy(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		ContainerID string `json:"containerId"`
		SessionID   string `json:"sessionId"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return nil, rt.DestroyAgent(ctx, p.ContainerID, p.SessionID)
}

func sessionsCreate(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		Image  apitypes.Image `json:"image"`
		UserID string         `json:"userId"`
		Title  string         `json:"title"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return rt.CreateSession(ctx, p.Image, p.UserID, p.Title)
}

func sessionsGetMessages(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		SessionID string `json:"sessionId"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return rt.GetMessages(ctx, p.SessionID)
}

func sessionsSend(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		SessionID string          `json:"sessionId"`
		Content   json.RawMessage `json:"content"`
		Image     apitypes.Image  `json:"image"`
		Config    apitypes.Config `json:"config"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	content, err := apitypes.UnmarshalContentParts(p.Content)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindProtocol, "invalid content", err)
	}
	return rt.Send(ctx, p.SessionID, content, p.Image, p.Config)
}

func sessionsResume(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		Image  apitypes.Image  `json:"image"`
		Config apitypes.Config `json:"config"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return nil, rt.ResumeSession(ctx, p.Image, p.Config)
}

func sessionsFork(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		SourceSessionID    string         `json:"sourceSessionId"`
		ForkPointMessageID string         `json:"forkPointMessageId"`
		NewImage           apitypes.Image `json:"newImage"`
		UserID             string         `json:"userId"`
		Title              string         `json:"title"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return rt.ForkSession(ctx, p.SourceSessionID, p.ForkPointMessageID, p.NewImage, p.UserID, p.Title)
}

func sessionsCollect(ctx context.Context, rt runtime.Runtime, params json.RawMessage) (any, error) {
	var p struct {
		SessionID string `json:"sessionId"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	sess, msgs, err := rt.CollectSession(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	return struct {
		Session  apitypes.Session   `json:"session"`
		Messages []apitypes.Message `json:"messages"`
	}{Session: sess, Messages: msgs}, nil
}
