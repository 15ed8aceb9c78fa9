// Package session holds the durable per-conversation state and its
// SQLite-backed store. A session is owned exclusively by the orchestrator:
// the store only moves whole snapshots in and out, and per-session-id
// mutual exclusion around the read-modify-write is provided by KeyedMutex.
package session

import (
	"time"

	"github.com/ankitpatel990/neuvox/internal/engagement"
	"github.com/ankitpatel990/neuvox/internal/intel"
)

// Message senders. Only scammer-authored text feeds the extractor.
const (
	SenderScammer = "scammer"
	SenderAgent   = "agent"
)

// Message is one conversation entry, already normalized from whatever wire
// shape it arrived in.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the durable accumulation for one conversation. Once
// Terminated is set the session is frozen: further turns must not mutate
// Intel, Phase, or re-fire the callback.
type Session struct {
	ID            string           `json:"id"`
	TurnCount     int              `json:"turnCount"`
	StartedAt     time.Time        `json:"startedAt"`
	Intel         intel.Report     `json:"accumulatedIntelligence"`
	Phase         engagement.Phase `json:"phase"`
	Terminated    bool             `json:"terminated"`
	CallbackFired bool             `json:"callbackFired"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// New returns a fresh session for an unknown id. Phase starts at the first
// strategy-table entry; the orchestrator recomputes it on every turn.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		StartedAt: now,
		UpdatedAt: now,
		Phase:     engagement.PhaseShowInterest,
	}
}

// Summary is a lightweight listing row for the sessions index.
type Summary struct {
	ID         string           `json:"id"`
	TurnCount  int              `json:"turnCount"`
	Phase      engagement.Phase `json:"phase"`
	Terminated bool             `json:"terminated"`
	Confidence float64          `json:"extractionConfidence"`
	StartedAt  time.Time        `json:"startedAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}
