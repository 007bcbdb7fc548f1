// Package inmem provides the primary testable store.Store backend: five
// mutex-guarded maps, no I/O. It is the backend Config.DataPath ":memory:"
// selects, and the one every other component's test suite is written
// against.
package inmem

import (
	"context"
	"sync"

	"github.com/agentx/agentx/internal/store"
	"github.com/agentx/agentx/pkg/apitypes"
)

// New constructs a store.Store backed entirely by in-process maps.
func New() *store.Store {
	return &store.Store{
		Definitions: newDefinitions(),
		Images:      newImages(),
		Containers:  newContainers(),
		Sessions:    newSessions(),
		Messages:    newMessages(),
	}
}

type definitions struct {
	mu   sync.RWMutex
	byID map[string]apitypes.Definition
}

func newDefinitions() *definitions {
	return &definitions{byID: make(map[string]apitypes.Definition)}
}

func (d *definitions) Get(ctx context.Context, name string) (apitypes.Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	def, ok := d.byID[name]
	if !ok {
		return apitypes.Definition{}, store.ErrNotFound
	}
	return def, nil
}

func (d *definitions) Put(ctx context.Context, def apitypes.Definition) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[def.Name] = def
	return nil
}

func (d *definitions) Delete(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byID, name)
	return nil
}

func (d *definitions) List(ctx context.Context) ([]apitypes.Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]apitypes.Definition, 0, len(d.byID))
	for _, def := range d.byID {
		out = append(out, def)
	}
	return out, nil
}

type images struct {
	mu   sync.RWMutex
	byID map[string]apitypes.Image
}

func newImages() *images {
	return &images{byID: make(map[string]apitypes.Image)}
}

func (im *images) Get(ctx context.Context, imageID string) (apitypes.Image, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	img, ok := im.byID[imageID]
	if !ok {
		return apitypes.Image{}, store.ErrNotFound
	}
	return img, nil
}

func (im *images) Put(ctx context.Context, img apitypes.Image) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.byID[img.ImageID] = img
	return nil
}

func (im *images) Delete(ctx context.Context, imageID string) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	delete(im.byID, imageID)
	return nil
}

func (im *images) ListByDefinition(ctx context.Context, definitionName string) ([]apitypes.Image, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	var out []apitypes.Image
	for _, img := range im.byID {
		if img.DefinitionName == definitionName {
			out = append(out, img)
		}
	}
	return out, nil
}

func (im *images) ListByContainer(ctx context.Context, containerID string) ([]apitypes.Image, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	var out []apitypes.Image
	for _, img := range im.byID {
		if img.ContainerID == containerID {
			out = append(out, img)
		}
	}
	return out, nil
}

type containers struct {
	mu   sync.RWMutex
	byID map[string]apitypes.Container
}

func newContainers() *containers {
	return &containers{byID: make(map[string]apitypes.Container)}
}

func (c *containers) Get(ctx context.Context, containerID string) (apitypes.Container, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.byID[containerID]
	if !ok {
		return apitypes.Container{}, store.ErrNotFound
	}
	return v, nil
}

func (c *containers) Put(ctx context.Context, v apitypes.Container) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[v.ContainerID] = v
	return nil
}

func (c *containers) Delete(ctx context.Context, containerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, containerID)
	return nil
}

func (c *containers) List(ctx context.Context) ([]apitypes.Container, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]apitypes.Container, 0, len(c.byID))
	for _, v := range c.byID {
		out = append(out, v)
	}
	return out, nil
}

type sessions struct {
	mu   sync.RWMutex
	byID map[string]apitypes.Session
}

func newSessions() *sessions {
	return &sessions{byID: make(map[string]apitypes.Session)}
}

func (s *sessions) Get(ctx context.Context, sessionID string) (apitypes.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[sessionID]
	if !ok {
		return apitypes.Session{}, store.ErrNotFound
	}
	return v, nil
}

func (s *sessions) Put(ctx context.Context, v apitypes.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[v.SessionID] = v
	return nil
}

func (s *sessions) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, sessionID)
	return nil
}

func (s *sessions) ListByImage(ctx context.Context, imageID string) ([]apitypes.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []apitypes.Session
	for _, v := range s.byID {
		if v.ImageID == imageID {
			out = append(out, v)
		}
	}
	return out, nil
}

type messages struct {
	mu       sync.RWMutex
	bySession map[string][]apitypes.Message
}

func newMessages() *messages {
	return &messages{bySession: make(map[string][]apitypes.Message)}
}

func (m *messages) Append(ctx context.Context, msg apitypes.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySession[msg.SessionID] = append(m.bySession[msg.SessionID], msg)
	return nil
}

func (m *messages) ListBySession(ctx context.Context, sessionID string) ([]apitypes.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]apitypes.Message, len(m.bySession[sessionID]))
	copy(out, m.bySession[sessionID])
	return out, nil
}

func (m *messages) DeleteBySession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bySession, sessionID)
	return nil
}
