package engine

import (
	"time"

	"github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/pkg/apitypes"
)

// Turn is one complete request/response cycle: one or more assistant
// messages (a tool-calling model may stop with StopToolUse, receive tool
// results, and continue) bookended by the first message_start and the
// message_stop/interrupted that does not hand control back to a tool.
type Turn struct {
	TurnID      string
	StartedAt   time.Time
	EndedAt     time.Time
	MessageIDs  []string
	TotalUsage  driver.Usage
	CostUSD     float64
	StopReason  driver.StopReason
	Interrupted bool
}

// ModelPricing gives per-million-token USD rates; the turn tracker's cost
// calculation is deliberately this simple: cost tracking is advisory
// telemetry, not billing-grade, so a flat per-model rate table is
// sufficient and avoids depending on a priced-catalog service.
type ModelPricing struct {
	InputPerMTok      float64
	OutputPerMTok     float64
	CacheReadPerMTok  float64
	CacheWritePerMTok float64
}

// DefaultPricing is the price table every Engine's turn tracker uses.
// WithPricing can replace it only from inside this package: New exposes no
// pricing option, and Agent.Pricing is not passed to the Engine, so costs
// are always computed from this table.
var DefaultPricing = ModelPricing{
	InputPerMTok:      3.0,
	OutputPerMTok:     15.0,
	CacheReadPerMTok:  0.3,
	CacheWritePerMTok: 3.75,
}

// turnTracker is the Turn Tracker processor: it accumulates usage across
// every assistant message in a multi-step tool-calling turn and closes the
// turn once the model stops without requesting another tool call.
type turnTracker struct {
	turnID    string
	pricing   ModelPricing
	turn      *Turn
	closed    bool
}

func newTurnTracker(turnID string) *turnTracker {
	if turnID == "" {
		turnID = apitypes.NewID(apitypes.PrefixTurn)
	}
	return &turnTracker{turnID: turnID, pricing: DefaultPricing}
}

// WithPricing overrides the pricing table used for cost calculation.
func (t *turnTracker) WithPricing(p ModelPricing) *turnTracker {
	t.pricing = p
	return t
}

func (t *turnTracker) fold(de driver.DriveableEvent, assembled *apitypes.Message) (*Turn, []apitypes.Event) {
	if t.closed {
		return nil, nil
	}

	if t.turn == nil {
		t.turn = &Turn{TurnID: t.turnID, StartedAt: time.Now()}
	}

	switch de.Type {
	case driver.EventMessageStop:
		if assembled != nil {
			t.turn.MessageIDs = append(t.turn.MessageIDs, assembled.MessageID)
		}
		t.turn.TotalUsage.InputTokens += de.Usage.InputTokens
		t.turn.TotalUsage.OutputTokens += de.Usage.OutputTokens
		t.turn.TotalUsage.CacheReadTokens += de.Usage.CacheReadTokens
		t.turn.TotalUsage.CacheCreationTokens += de.Usage.CacheCreationTokens
		t.turn.StopReason = de.StopReason
		t.turn.CostUSD = t.cost(t.turn.TotalUsage)

		if de.StopReason != driver.StopToolUse {
			return t.close()
		}
		return nil, nil

	case driver.EventInterrupted:
		t.turn.Interrupted = true
		return t.close()

	case driver.EventError:
		return t.close()
	}

	return nil, nil
}

func (t *turnTracker) close() (*Turn, []apitypes.Event) {
	t.closed = true
	t.turn.EndedAt = time.Now()
	return t.turn, []apitypes.Event{
		apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryTurn, apitypes.IntentNotification,
			"turn_response", t.turn),
	}
}

func (t *turnTracker) cost(u driver.Usage) float64 {
	const perToken = 1.0 / 1_000_000
	return float64(u.InputTokens)*t.pricing.InputPerMTok*perToken +
		float64(u.OutputTokens)*t.pricing.OutputPerMTok*perToken +
		float64(u.CacheReadTokens)*t.pricing.CacheReadPerMTok*perToken +
		float64(u.CacheCreationTokens)*t.pricing.CacheWritePerMTok*perToken
}
