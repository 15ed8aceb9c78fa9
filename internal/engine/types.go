package engine

import (
	"github.com/ankitpatel990/neuvox/internal/engagement"
	"github.com/ankitpatel990/neuvox/internal/intel"
	"github.com/ankitpatel990/neuvox/internal/session"
)

// TurnRequest is the canonical per-turn input. The API layer normalizes
// every accepted wire shape into this before it reaches the orchestrator;
// nothing below the server package re-inspects raw JSON.
type TurnRequest struct {
	SessionID string
	Message   session.Message
	// History is the conversation so far, oldest first. Callers may resend
	// the entire conversation on every turn; extraction over the full
	// corpus is idempotent so nothing is double-counted.
	History []session.Message
}

// TurnResult is the canonical per-turn output handed back to the API layer
// and, on the terminal turn, to the callback dispatcher.
type TurnResult struct {
	Phase                     engagement.Phase `json:"phase"`
	Intelligence              intel.Report     `json:"extractedIntelligence"`
	Confidence                float64          `json:"extractionConfidence"`
	TurnCount                 int              `json:"turnCount"`
	Terminated                bool             `json:"terminated"`
	CallbackDue               bool             `json:"callbackDue"`
	EngagementDurationSeconds float64          `json:"engagementDurationSeconds"`
}

// CallbackPayload is the fires-at-most-once notification delivered to the
// external evaluator: the frozen final turn result plus the session id.
type CallbackPayload struct {
	SessionID string `json:"sessionId"`
	TurnResult
}
