package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentx/agentx/internal/apierror"
	"github.com/agentx/agentx/internal/bus"
	"github.com/agentx/agentx/internal/container"
	agdriver "github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/internal/driver/anthropic"
	"github.com/agentx/agentx/internal/driver/echo"
	"github.com/agentx/agentx/internal/registry"
	"github.com/agentx/agentx/internal/session"
	"github.com/agentx/agentx/internal/store"
	"github.com/agentx/agentx/internal/store/inmem"
	"github.com/agentx/agentx/internal/store/sqlite"
	"github.com/agentx/agentx/internal/tools"
	"github.com/agentx/agentx/pkg/apitypes"
)

var _ Runtime = (*Local)(nil)

// Local runs the whole object model in-process: Store, Bus, Registry and
// every Container live in this Go process's memory, generalizing
// internal/server.New's direct wiring.
type Local struct {
	store         *store.Store
	bus           *bus.Bus
	registry      *registry.Registry
	tools         *tools.Registry
	log           zerolog.Logger
	closeDB       func() error
	driverFactory func(apitypes.Config) agdriver.Factory

	mu         sync.Mutex
	containers map[string]*container.Container
}

// NewLocal opens the store cfg.DataPath names (":memory:" or empty selects
// the inmem backend; any other path opens/creates a SQLite database there)
// and wires the Bus, Registry, and tool Registry around it.
func NewLocal(cfg apitypes.Config, log zerolog.Logger) (*Local, error) {
	return newLocal(cfg, log, driverFactoryFor)
}

// NewLocalWithDriverFactory is NewLocal with the provider-to-Driver mapping
// overridden, for tests and dry-runs (e.g. EchoDriverFactory) that must not
// depend on a live vendor API key.
func NewLocalWithDriverFactory(cfg apitypes.Config, log zerolog.Logger, pick func(apitypes.Config) agdriver.Factory) (*Local, error) {
	return newLocal(cfg, log, pick)
}

func newLocal(cfg apitypes.Config, log zerolog.Logger, pick func(apitypes.Config) agdriver.Factory) (*Local, error) {
	var st *store.Store
	var closeDB func() error

	switch cfg.DataPath {
	case "", ":memory:":
		st = inmem.New()
	default:
		path := expandHome(cfg.DataPath)
		if filepath.Base(path) == path || filepath.Ext(path) != "" {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("runtime: create data directory: %w", err)
				}
			}
		}
		var err error
		st, closeDB, err = sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("runtime: open sqlite store: %w", err)
		}
	}

	b := bus.New(log)
	toolReg := tools.NewRegistry()
	tools.RegisterBuiltins(toolReg)

	return &Local{
		store:         st,
		bus:           b,
		registry:      registry.New(st),
		tools:         toolReg,
		log:           log,
		closeDB:       closeDB,
		driverFactory: pick,
		containers:    make(map[string]*container.Container),
	}, nil
}

func driverFactoryFor(cfg apitypes.Config) agdriver.Factory {
	switch cfg.Provider {
	case apitypes.ProviderAnthropic, "":
		return anthropic.FromConfig
	default:
		return func(ctx context.Context, cfg apitypes.Config) (agdriver.Driver, error) {
			return nil, apierror.New(apierror.KindInternal, fmt.Sprintf("provider %q has no wired driver", cfg.Provider))
		}
	}
}

// EchoDriverFactory exposes the echo driver as an agdriver.Factory, for
// local dry-runs (cmd/agentx --dry-run) and integration tests that should
// not depend on a live vendor API key.
func EchoDriverFactory(ctx context.Context, cfg apitypes.Config) (agdriver.Driver, error) {
	return echo.New(), nil
}

// AlwaysFactory adapts a single agdriver.Factory into the
// Config-to-Factory picker NewLocalWithDriverFactory expects, ignoring
// cfg.Provider entirely.
func AlwaysFactory(f agdriver.Factory) func(apitypes.Config) agdriver.Factory {
	return func(apitypes.Config) agdriver.Factory { return f }
}

func (l *Local) containerFor(containerID, workspaceRoot string, cfg apitypes.Config) (*container.Container, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.containers[containerID]; ok {
		return c, nil
	}
	c, err := container.New(containerID, workspaceRoot, l.store, l.bus, l.driverFactory(cfg), l.tools, l.log)
	if err != nil {
		return nil, err
	}
	l.containers[containerID] = c
	return c, nil
}

func (l *Local) sessionManagerFor(c *container.Container) *session.Manager {
	return session.New(l.store, c)
}

func (l *Local) CreateContainer(ctx context.Context, workspaceRoot string) (apitypes.Container, error) {
	rec := apitypes.Container{ContainerID: apitypes.NewID(apitypes.PrefixContainer)}
	if _, err := l.containerFor(rec.ContainerID, workspaceRoot, apitypes.Config{}); err != nil {
		return apitypes.Container{}, err
	}
	if err := l.store.Containers.Put(ctx, rec); err != nil {
		return apitypes.Container{}, apierror.Wrap(apierror.KindInternal, "persist container", err)
	}
	return rec, nil
}

func (l *Local) DestroyContainer(ctx context.Context, containerID string) error {
	l.mu.Lock()
	c, ok := l.containers[containerID]
	delete(l.containers, containerID)
	l.mu.Unlock()
	if ok {
		if err := c.DestroyAll(); err != nil {
			return err
		}
	}
	return l.store.Containers.Delete(ctx, containerID)
}

func (l *Local) ListContainers(ctx context.Context) ([]apitypes.Container, error) {
	return l.store.Containers.List(ctx)
}

func (l *Local) RegisterDefinition(ctx context.Context, def apitypes.Definition) (apitypes.Image, error) {
	return l.registry.RegisterDefinition(ctx, def)
}

func (l *Local) GetMetaImage(ctx context.Context, definitionName string) (apitypes.Image, error) {
	return l.registry.GetMetaImage(ctx, definitionName)
}

func (l *Local) CreateImage(ctx context.Context, containerID, sessionID, definitionName, name string) (apitypes.Image, error) {
	return l.registry.Create(ctx, registry.CreateParams{
		DefinitionName: definitionName,
		ContainerID:    containerID,
		SessionID:      sessionID,
		Name:           name,
	})
}

func (l *Local) UpdateImage(ctx context.Context, imageID string, patch apitypes.ImagePatch) (apitypes.Image, error) {
	return l.registry.Update(ctx, imageID, patch)
}

func (l *Local) DeleteImage(ctx context.Context, imageID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	img, err := l.store.Images.Get(ctx, imageID)
	if err != nil {
		return apierror.Wrap(apierror.KindNotFound, fmt.Sprintf("image %s", imageID), err)
	}
	c := l.containers[img.ContainerID]
	return l.registry.Delete(ctx, imageID, c)
}

func (l *Local) RunImage(ctx context.Context, imageID, containerID string, cfg apitypes.Config) (AgentHandle, error) {
	c, err := l.containerFor(containerID, defaultWorkspaceRoot(cfg, containerID), cfg)
	if err != nil {
		return AgentHandle{}, err
	}

	img, err := l.store.Images.Get(ctx, imageID)
	if err != nil {
		return AgentHandle{}, apierror.Wrap(apierror.KindNotFound, fmt.Sprintf("image %s", imageID), err)
	}

	sessionID := img.SessionID
	if sessionID == "" {
		sessionID = apitypes.NewID(apitypes.PrefixSession)
		if _, err := session.New(l.store, c).Create(ctx, apitypes.Image{ImageID: imageID, SessionID: sessionID}, "", ""); err != nil {
			return AgentHandle{}, err
		}
	}

	a, err := l.registry.Run(ctx, imageID, sessionID, c, cfg)
	if err != nil {
		return AgentHandle{}, err
	}
	return AgentHandle{AgentID: a.AgentID, SessionID: a.SessionID, ContainerID: a.ContainerID}, nil
}

func (l *Local) InterruptAgent(ctx context.Context, containerID, sessionID string) error {
	c, ok := l.containerLookup(containerID)
	if !ok {
		return apierror.NotFound("container %s", containerID)
	}
	a, ok := c.Get(sessionID)
	if !ok {
		return apierror.NotFound("no live agent for session %s", sessionID)
	}
	a.Interrupt()
	return nil
}

func (l *Local) DestroyAgent(ctx context.Context, containerID, sessionID string) error {
	c, ok := l.containerLookup(containerID)
	if !ok {
		return apierror.NotFound("container %s", containerID)
	}
	return c.Destroy(sessionID)
}

func (l *Local) containerLookup(containerID string) (*container.Container, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.containers[containerID]
	return c, ok
}

func (l *Local) CreateSession(ctx context.Context, img apitypes.Image, userID, title string) (apitypes.Session, error) {
	return session.New(l.store, nil).Create(ctx, img, userID, title)
}

func (l *Local) GetMessages(ctx context.Context, sessionID string) ([]apitypes.Message, error) {
	return l.store.Messages.ListBySession(ctx, sessionID)
}

func (l *Local) Send(ctx context.Context, sessionID string, content []apitypes.ContentPart, img apitypes.Image, cfg apitypes.Config) (*apitypes.Message, error) {
	c, err := l.containerFor(img.ContainerID, defaultWorkspaceRoot(cfg, img.ContainerID), cfg)
	if err != nil {
		return nil, err
	}
	return l.sessionManagerFor(c).Send(ctx, sessionID, content, img, cfg)
}

func (l *Local) ResumeSession(ctx context.Context, img apitypes.Image, cfg apitypes.Config) error {
	c, err := l.containerFor(img.ContainerID, defaultWorkspaceRoot(cfg, img.ContainerID), cfg)
	if err != nil {
		return err
	}
	return l.sessionManagerFor(c).Resume(ctx, img, cfg)
}

func (l *Local) ForkSession(ctx context.Context, sourceSessionID, forkPointMessageID string, newImg apitypes.Image, userID, title string) (apitypes.Session, error) {
	return session.New(l.store, nil).Fork(ctx, sourceSessionID, forkPointMessageID, newImg, userID, title)
}

func (l *Local) CollectSession(ctx context.Context, sessionID string) (apitypes.Session, []apitypes.Message, error) {
	return session.New(l.store, nil).Collect(ctx, sessionID)
}

func (l *Local) On(eventType string, handler bus.Handler, opts ...bus.Options) *bus.Subscription {
	return l.bus.On(eventType, handler, opts...)
}

func (l *Local) OnAny(handler bus.Handler, opts ...bus.Options) *bus.Subscription {
	return l.bus.OnAny(handler, opts...)
}

// SubscribeTopic/UnsubscribeTopic are no-ops: a Local Bus already delivers
// every event in-process, and callers filter by topic inside their own
// OnAny handler (see PresentationsAPI.Subscribe), so there is no server
// round trip to gate.
func (l *Local) SubscribeTopic(ctx context.Context, topic string) error   { return nil }
func (l *Local) UnsubscribeTopic(ctx context.Context, topic string) error { return nil }

func (l *Local) Close() error {
	l.mu.Lock()
	containers := make([]*container.Container, 0, len(l.containers))
	for _, c := range l.containers {
		containers = append(containers, c)
	}
	l.containers = make(map[string]*container.Container)
	l.mu.Unlock()

	for _, c := range containers {
		_ = c.DestroyAll()
	}
	l.bus.Destroy()
	if l.closeDB != nil {
		return l.closeDB()
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func defaultWorkspaceRoot(cfg apitypes.Config, containerID string) string {
	if cfg.SandboxWorkspaceRoot != "" {
		return filepath.Join(expandHome(cfg.SandboxWorkspaceRoot), containerID)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".agentx", "workspaces", containerID)
}
