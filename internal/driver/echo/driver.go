// Package echo provides a deterministic Driver that streams back the last
// user message's text one rune at a time. It backs local dry-run use and
// the driver-contract tests any real vendor adapter must also satisfy.
package echo

import (
	"context"

	"github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/pkg/apitypes"
)

// Driver implements driver.Driver without calling out to any vendor.
type Driver struct {
	// Prefix is prepended to the echoed text, default "echo: ".
	Prefix string
}

// New constructs an echo Driver with the default prefix.
func New() *Driver {
	return &Driver{Prefix: "echo: "}
}

func (d *Driver) Name() string { return "echo" }

// Stream reads the last user message's concatenated text and streams it
// back rune by rune as text_delta events, then closes with message_stop.
func (d *Driver) Stream(ctx context.Context, req driver.Request) (<-chan driver.DriveableEvent, error) {
	text := lastUserText(req.Messages)
	out := make(chan driver.DriveableEvent, 8)

	go func() {
		defer close(out)

		messageID := apitypes.NewID(apitypes.PrefixMessage)
		out <- driver.DriveableEvent{Type: driver.EventMessageStart, MessageID: messageID}

		full := d.Prefix + text
		for _, r := range full {
			select {
			case <-ctx.Done():
				out <- driver.DriveableEvent{Type: driver.EventInterrupted}
				return
			case out <- driver.DriveableEvent{Type: driver.EventTextDelta, Delta: string(r)}:
			}
		}

		out <- driver.DriveableEvent{
			Type:       driver.EventMessageStop,
			StopReason: driver.StopEndTurn,
			Usage: driver.Usage{
				InputTokens:  countWords(text),
				OutputTokens: len([]rune(full)),
			},
		}
	}()

	return out, nil
}

func lastUserText(messages []apitypes.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == apitypes.RoleUser {
			return apitypes.ConcatText(messages[i].Content)
		}
	}
	return ""
}

func countWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\t' || r == '\n'
		if !isSpace && !inWord {
			n++
		}
		inWord = !isSpace
	}
	return n
}
