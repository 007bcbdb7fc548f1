// Package session implements the Session live object (C7): message
// history plus send/resume/fork/collect operations layered over a
// Container's live Agent, generalizing a session-CRUD-plus-processor-
// delegation service onto the Image/Container/Agent object graph.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/agentx/agentx/internal/apierror"
	"github.com/agentx/agentx/internal/container"
	"github.com/agentx/agentx/internal/store"
	"github.com/agentx/agentx/pkg/apitypes"
)

// Manager operates on Sessions within one Container, backed by a Store.
type Manager struct {
	Store     *store.Store
	Container *container.Container
}

// New constructs a Manager.
func New(st *store.Store, c *container.Container) *Manager {
	return &Manager{Store: st, Container: c}
}

// Create persists a new Session scoped to img and returns it. If
// img.SessionID is already set (e.g. it was generated up front so an Agent
// could be bound to the same ID), that ID is reused instead of minting a
// new one.
func (m *Manager) Create(ctx context.Context, img apitypes.Image, userID, title string) (apitypes.Session, error) {
	now := time.Now()
	sessionID := img.SessionID
	if sessionID == "" {
		sessionID = apitypes.NewID(apitypes.PrefixSession)
	}
	s := apitypes.Session{
		SessionID: sessionID,
		ImageID:   img.ImageID,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.Title == "" {
		s.Title = "New Session"
	}
	if err := m.Store.Sessions.Put(ctx, s); err != nil {
		return apitypes.Session{}, apierror.Wrap(apierror.KindInternal, "persist session", err)
	}
	return s, nil
}

// GetMessages returns the session's full message history in order.
func (m *Manager) GetMessages(ctx context.Context, sessionID string) ([]apitypes.Message, error) {
	msgs, err := m.Store.Messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindInternal, "load messages", err)
	}
	return msgs, nil
}

// Send runs one user turn: it appends a user Message built from content
// and drives the session's live (or resumed) Agent to completion,
// returning the assistant's reply.
func (m *Manager) Send(ctx context.Context, sessionID string, content []apitypes.ContentPart, img apitypes.Image, cfg apitypes.Config) (*apitypes.Message, error) {
	a, ok := m.Container.Get(sessionID)
	if !ok {
		var err error
		a, err = m.Container.Resume(ctx, img, cfg)
		if err != nil {
			return nil, err
		}
	}

	userMsg := apitypes.Message{
		MessageID: apitypes.NewID(apitypes.PrefixMessage),
		SessionID: sessionID,
		Role:      apitypes.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}

	reply, err := a.Receive(ctx, userMsg)
	if err != nil {
		return nil, err
	}

	sess, err := m.Store.Sessions.Get(ctx, sessionID)
	if err == nil {
		sess.UpdatedAt = time.Now()
		_ = m.Store.Sessions.Put(ctx, sess)
	}
	return reply, nil
}

// Resume ensures sessionID has a live Agent, recreating it from img if the
// process restarted since the last Send.
func (m *Manager) Resume(ctx context.Context, img apitypes.Image, cfg apitypes.Config) error {
	_, err := m.Container.Resume(ctx, img, cfg)
	return err
}

// Fork creates a new Session whose message history is a copy of
// sourceSessionID's history up to and including forkPointMessageID (or the
// full history if forkPointMessageID is empty), targeting newImg.
func (m *Manager) Fork(ctx context.Context, sourceSessionID, forkPointMessageID string, newImg apitypes.Image, userID, title string) (apitypes.Session, error) {
	history, err := m.GetMessages(ctx, sourceSessionID)
	if err != nil {
		return apitypes.Session{}, err
	}

	if forkPointMessageID != "" {
		cut := len(history)
		for i, msg := range history {
			if msg.MessageID == forkPointMessageID {
				cut = i + 1
				break
			}
		}
		history = history[:cut]
	}

	forked, err := m.Create(ctx, newImg, userID, title)
	if err != nil {
		return apitypes.Session{}, err
	}

	for _, msg := range history {
		msg.SessionID = forked.SessionID
		if err := m.Store.Messages.Append(ctx, msg); err != nil {
			return apitypes.Session{}, apierror.Wrap(apierror.KindInternal, "copy forked history", err)
		}
	}

	return forked, nil
}

// Collect returns a session's metadata together with its full message
// history, the read-only snapshot the Presentation layer (C11) and RPC
// layer (C10) project to clients.
func (m *Manager) Collect(ctx context.Context, sessionID string) (apitypes.Session, []apitypes.Message, error) {
	s, err := m.Store.Sessions.Get(ctx, sessionID)
	if err != nil {
		return apitypes.Session{}, nil, fmt.Errorf("session: collect %s: %w", sessionID, err)
	}
	msgs, err := m.GetMessages(ctx, sessionID)
	if err != nil {
		return apitypes.Session{}, nil, err
	}
	return s, msgs, nil
}

// Compact replaces a session's message history with a single summary
// message once it exceeds threshold messages. summarize is supplied by the
// caller (typically one that asks the model itself to summarize) so this
// package stays free of a Driver dependency.
func (m *Manager) Compact(ctx context.Context, sessionID string, threshold int, summarize func([]apitypes.Message) (string, error)) error {
	history, err := m.GetMessages(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(history) <= threshold {
		return nil
	}

	summary, err := summarize(history)
	if err != nil {
		return apierror.Wrap(apierror.KindInternal, "summarize history", err)
	}

	if err := m.Store.Messages.DeleteBySession(ctx, sessionID); err != nil {
		return apierror.Wrap(apierror.KindInternal, "clear compacted history", err)
	}
	return m.Store.Messages.Append(ctx, apitypes.Message{
		MessageID: apitypes.NewID(apitypes.PrefixMessage),
		SessionID: sessionID,
		Role:      apitypes.RoleSystem,
		Content:   apitypes.TextOnly(summary),
		CreatedAt: time.Now(),
	})
}
