// Package store defines the five repository interfaces (C4) the rest of
// the runtime depends on: Definition, Image, Container, Session, Message.
// It generalizes a path-addressed JSON blob store into typed repositories;
// inmem and sqlite provide concrete backends.
package store

import (
	"context"
	"errors"

	"github.com/agentx/agentx/pkg/apitypes"
)

// ErrNotFound is returned by any repository Get when the key is absent.
var ErrNotFound = errors.New("store: not found")

// DefinitionRepository persists named agent Definitions.
type DefinitionRepository interface {
	Get(ctx context.Context, name string) (apitypes.Definition, error)
	Put(ctx context.Context, def apitypes.Definition) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]apitypes.Definition, error)
}

// ImageRepository persists Images, both MetaImages (SessionID == "") and
// session-bound Snapshot Images.
type ImageRepository interface {
	Get(ctx context.Context, imageID string) (apitypes.Image, error)
	Put(ctx context.Context, img apitypes.Image) error
	Delete(ctx context.Context, imageID string) error
	ListByDefinition(ctx context.Context, definitionName string) ([]apitypes.Image, error)
	ListByContainer(ctx context.Context, containerID string) ([]apitypes.Image, error)
}

// ContainerRepository persists Container records (lightweight: a container
// is mostly defined by the Images and Sessions scoped to it).
type ContainerRepository interface {
	Get(ctx context.Context, containerID string) (apitypes.Container, error)
	Put(ctx context.Context, c apitypes.Container) error
	Delete(ctx context.Context, containerID string) error
	List(ctx context.Context) ([]apitypes.Container, error)
}

// SessionRepository persists Sessions.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (apitypes.Session, error)
	Put(ctx context.Context, s apitypes.Session) error
	Delete(ctx context.Context, sessionID string) error
	ListByImage(ctx context.Context, imageID string) ([]apitypes.Session, error)
}

// MessageRepository persists Messages in a session's append-only log.
type MessageRepository interface {
	Append(ctx context.Context, msg apitypes.Message) error
	ListBySession(ctx context.Context, sessionID string) ([]apitypes.Message, error)
	// DeleteBySession removes every message for sessionID; used by
	// Session.Compact to replace a long history with a summarized one.
	DeleteBySession(ctx context.Context, sessionID string) error
}

// Store bundles all five repositories, the unit a Runtime (C9) wires to
// the rest of the object model.
type Store struct {
	Definitions DefinitionRepository
	Images      ImageRepository
	Containers  ContainerRepository
	Sessions    SessionRepository
	Messages    MessageRepository
}
