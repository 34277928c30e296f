// File: internal/services/orchestrator/events.go
package orchestrator

import (
	"context"
	"time"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

type EventType string

const (
	EventMessage        EventType = "message"
	EventRecommendation EventType = "recommendation"
	EventSystem         EventType = "system"
	EventTurnComplete   EventType = "turn_complete"
)

// Event is one item of a turn's ordered output.
type Event struct {
	Type           EventType              `json:"type"`
	Role           domain.Role            `json:"role,omitempty"`
	Text           string                 `json:"text,omitempty"`
	Recommendation *domain.Recommendation `json:"recommendation,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Seq            int                    `json:"seq"`
}

// Turn is the event stream produced for one accepted input. The channel is
// buffered for every event the turn can produce, ends with an
// EventTurnComplete and is then closed. Readers may stop at any time.
type Turn struct {
	events chan Event
}

func newTurn(capacity int) *Turn {
	return &Turn{events: make(chan Event, capacity)}
}

func (t *Turn) Events() <-chan Event {
	return t.events
}

// Wait collects every event of the turn, including the final EventTurnComplete.
func (t *Turn) Wait(ctx context.Context) ([]Event, error) {
	var out []Event
	for {
		select {
		case e, ok := <-t.events:
			if !ok {
				return out, nil
			}
			out = append(out, e)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}
