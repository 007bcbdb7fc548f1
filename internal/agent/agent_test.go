package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/apierror"
	"github.com/agentx/agentx/internal/bus"
	"github.com/agentx/agentx/internal/driver/echo"
	"github.com/agentx/agentx/internal/logging"
	"github.com/agentx/agentx/internal/store/inmem"
	"github.com/agentx/agentx/internal/tools"
	"github.com/agentx/agentx/pkg/apitypes"
)

func TestReceiveEchoesBackAssistantMessage(t *testing.T) {
	st := inmem.New()
	reg := tools.NewRegistry()
	tools.RegisterBuiltins(reg)

	a := New("agent_1", "sess_1", "ctr_1", logging.Noop())
	a.Driver = echo.New()
	a.Tools = reg
	a.Messages = st.Messages
	a.Bus = bus.New(logging.Noop())

	msg, err := a.Receive(context.Background(), apitypes.Message{
		MessageID: "msg_1",
		SessionID: "sess_1",
		Role:      apitypes.RoleUser,
		Content:   apitypes.TextOnly("hi"),
	})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "echo: hi", apitypes.ConcatText(msg.Content))

	history, err := st.Messages.ListBySession(context.Background(), "sess_1")
	require.NoError(t, err)
	require.Len(t, history, 2, "user message plus assistant reply")
}

func TestReceiveRejectsConcurrentCalls(t *testing.T) {
	st := inmem.New()
	reg := tools.NewRegistry()
	tools.RegisterBuiltins(reg)

	a := New("agent_1", "sess_1", "ctr_1", logging.Noop())
	a.Driver = echo.New()
	a.Tools = reg
	a.Messages = st.Messages
	a.Bus = bus.New(logging.Noop())

	a.mu.Lock()
	a.busy = true
	a.mu.Unlock()

	_, err := a.Receive(context.Background(), apitypes.Message{MessageID: "m", SessionID: "sess_1", Role: apitypes.RoleUser, Content: apitypes.TextOnly("x")})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindAgentBusy))
}

func TestInterruptStopsInFlightReceive(t *testing.T) {
	st := inmem.New()
	reg := tools.NewRegistry()

	a := New("agent_1", "sess_1", "ctr_1", logging.Noop())
	a.Driver = echo.New()
	a.Tools = reg
	a.Messages = st.Messages
	a.Bus = bus.New(logging.Noop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Receive(context.Background(), apitypes.Message{
			MessageID: "m1", SessionID: "sess_1", Role: apitypes.RoleUser,
			Content: apitypes.TextOnly("a very long message to give us time to interrupt before it finishes streaming back"),
		})
	}()

	time.Sleep(time.Millisecond)
	a.Interrupt()
	wg.Wait()

	assert.False(t, a.IsBusy())
}

func TestDestroyPreventsFurtherReceive(t *testing.T) {
	st := inmem.New()
	a := New("agent_1", "sess_1", "ctr_1", logging.Noop())
	a.Driver = echo.New()
	a.Tools = tools.NewRegistry()
	a.Messages = st.Messages
	a.Bus = bus.New(logging.Noop())

	a.Destroy()
	_, err := a.Receive(context.Background(), apitypes.Message{MessageID: "m", SessionID: "sess_1", Role: apitypes.RoleUser, Content: apitypes.TextOnly("x")})
	require.Error(t, err)
}
