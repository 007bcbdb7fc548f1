// Package registry implements the Image Registry (C8): Docker-style
// MetaImages auto-built from registered Definitions, and Snapshot Images
// captured from a running Agent. It generalizes a name-keyed construction
// registry onto the Definition/Image object graph.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/agentx/agentx/internal/agent"
	"github.com/agentx/agentx/internal/apierror"
	"github.com/agentx/agentx/internal/container"
	"github.com/agentx/agentx/internal/store"
	"github.com/agentx/agentx/pkg/apitypes"
)

// Registry implements getMetaImage/create/run/update/delete over a Store
// and the Container that owns a given Image's live agents.
type Registry struct {
	Store *store.Store
}

// New constructs a Registry.
func New(st *store.Store) *Registry {
	return &Registry{Store: st}
}

// RegisterDefinition persists def and auto-builds its MetaImage: a
// session-less Image that every Run of this Definition starts from.
func (r *Registry) RegisterDefinition(ctx context.Context, def apitypes.Definition) (apitypes.Image, error) {
	def.CreatedAt = time.Now()
	if err := r.Store.Definitions.Put(ctx, def); err != nil {
		return apitypes.Image{}, apierror.Wrap(apierror.KindInternal, "persist definition", err)
	}

	meta := apitypes.Image{
		ImageID:        apitypes.NewID(apitypes.PrefixImage),
		DefinitionName: def.Name,
		Name:           def.Name,
		SystemPrompt:   def.SystemPrompt,
		MCPServers:     def.MCPServers,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := r.Store.Images.Put(ctx, meta); err != nil {
		return apitypes.Image{}, apierror.Wrap(apierror.KindInternal, "persist meta image", err)
	}
	return meta, nil
}

// GetMetaImage returns the auto-built MetaImage for a registered
// Definition.
func (r *Registry) GetMetaImage(ctx context.Context, definitionName string) (apitypes.Image, error) {
	images, err := r.Store.Images.ListByDefinition(ctx, definitionName)
	if err != nil {
		return apitypes.Image{}, apierror.Wrap(apierror.KindInternal, "list images", err)
	}
	for _, img := range images {
		if !img.IsSnapshot() {
			return img, nil
		}
	}
	return apitypes.Image{}, apierror.NotFound("no meta image registered for definition %s", definitionName)
}

// CreateParams names the fields Registry.Create accepts.
type CreateParams struct {
	DefinitionName string
	ContainerID    string
	SessionID      string
	Name           string
	SystemPrompt   string
	MCPServers     []apitypes.MCPServerConfig
}

// Create persists a Snapshot Image (ContainerID and SessionID set) built
// from the fields in p, so the session it belongs to can later be resumed.
// It does not look up the live agent; fields p leaves empty stay empty.
func (r *Registry) Create(ctx context.Context, p CreateParams) (apitypes.Image, error) {
	if p.ContainerID == "" || p.SessionID == "" {
		return apitypes.Image{}, apierror.New(apierror.KindInternal, "create requires a live agent's containerId and sessionId")
	}
	img := apitypes.Image{
		ImageID:        apitypes.NewID(apitypes.PrefixImage),
		DefinitionName: p.DefinitionName,
		ContainerID:    p.ContainerID,
		SessionID:      p.SessionID,
		Name:           p.Name,
		SystemPrompt:   p.SystemPrompt,
		MCPServers:     p.MCPServers,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := r.Store.Images.Put(ctx, img); err != nil {
		return apitypes.Image{}, apierror.Wrap(apierror.KindInternal, "persist snapshot image", err)
	}
	return img, nil
}

// Run starts or resumes the Agent for imageID within c: a MetaImage
// (SessionID == "") always starts a fresh session via Container.Run, bound
// to sessionID (generated if empty); a Snapshot Image (SessionID already
// set) resumes its own session via Container.Resume regardless of
// sessionID.
func (r *Registry) Run(ctx context.Context, imageID, sessionID string, c *container.Container, cfg apitypes.Config) (*agent.Agent, error) {
	img, err := r.Store.Images.Get(ctx, imageID)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindNotFound, fmt.Sprintf("image %s", imageID), err)
	}

	if img.IsSnapshot() {
		return c.Resume(ctx, img, cfg)
	}

	fresh := img
	if sessionID == "" {
		sessionID = apitypes.NewID(apitypes.PrefixSession)
	}
	fresh.SessionID = sessionID
	fresh.ContainerID = c.ID
	return c.Run(ctx, fresh, cfg)
}

// Update applies patch to imageID, modifying only {name, customData}.
func (r *Registry) Update(ctx context.Context, imageID string, patch apitypes.ImagePatch) (apitypes.Image, error) {
	img, err := r.Store.Images.Get(ctx, imageID)
	if err != nil {
		return apitypes.Image{}, apierror.Wrap(apierror.KindNotFound, fmt.Sprintf("image %s", imageID), err)
	}
	if patch.Name != nil {
		img.Name = *patch.Name
	}
	if patch.CustomData != nil {
		img.CustomData = patch.CustomData
	}
	img.UpdatedAt = time.Now()
	if err := r.Store.Images.Put(ctx, img); err != nil {
		return apitypes.Image{}, apierror.Wrap(apierror.KindInternal, "update image", err)
	}
	return img, nil
}

// Delete removes an Image, refusing to delete a Snapshot Image whose
// session still has a live agent in c. MetaImages are always deleted.
func (r *Registry) Delete(ctx context.Context, imageID string, c *container.Container) error {
	img, err := r.Store.Images.Get(ctx, imageID)
	if err != nil {
		return apierror.Wrap(apierror.KindNotFound, fmt.Sprintf("image %s", imageID), err)
	}
	if img.IsSnapshot() && c != nil && c.Has(img.SessionID) {
		return apierror.Conflict("image %s has a live agent and cannot be deleted", imageID)
	}
	if err := r.Store.Images.Delete(ctx, imageID); err != nil {
		return apierror.Wrap(apierror.KindInternal, "delete image", err)
	}
	return nil
}
