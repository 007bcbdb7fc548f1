package echo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/pkg/apitypes"
)

func drainEvents(t *testing.T, ch <-chan driver.DriveableEvent) []driver.DriveableEvent {
	t.Helper()
	var out []driver.DriveableEvent
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestEchoStreamsBackUserText(t *testing.T) {
	d := New()
	req := driver.Request{
		Messages: []apitypes.Message{
			{Role: apitypes.RoleUser, Content: apitypes.TextOnly("hi there")},
		},
	}
	ch, err := d.Stream(context.Background(), req)
	require.NoError(t, err)

	events := drainEvents(t, ch)
	require.NotEmpty(t, events)
	assert.Equal(t, driver.EventMessageStart, events[0].Type)
	assert.Equal(t, driver.EventMessageStop, events[len(events)-1].Type)

	var sb strings.Builder
	for _, e := range events {
		if e.Type == driver.EventTextDelta {
			sb.WriteString(e.Delta)
		}
	}
	assert.Equal(t, "echo: hi there", sb.String())
}

func TestEchoInterruptsOnCancel(t *testing.T) {
	d := New()
	req := driver.Request{
		Messages: []apitypes.Message{
			{Role: apitypes.RoleUser, Content: apitypes.TextOnly(strings.Repeat("x", 10000))},
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := d.Stream(ctx, req)
	require.NoError(t, err)

	cancel()
	events := drainEvents(t, ch)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, driver.EventInterrupted, last.Type)
}

func TestEchoUsesLastUserMessage(t *testing.T) {
	d := New()
	req := driver.Request{
		Messages: []apitypes.Message{
			{Role: apitypes.RoleUser, Content: apitypes.TextOnly("first")},
			{Role: apitypes.RoleAssistant, Content: apitypes.TextOnly("reply")},
			{Role: apitypes.RoleUser, Content: apitypes.TextOnly("second")},
		},
	}
	ch, err := d.Stream(context.Background(), req)
	require.NoError(t, err)

	var sb strings.Builder
	for _, e := range drainEvents(t, ch) {
		if e.Type == driver.EventTextDelta {
			sb.WriteString(e.Delta)
		}
	}
	assert.Equal(t, "echo: second", sb.String())
}
