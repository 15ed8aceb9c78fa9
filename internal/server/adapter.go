package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ankitpatel990/neuvox/internal/engine"
	"github.com/ankitpatel990/neuvox/internal/session"
)

// This file is the single place where inbound wire shapes are normalized
// into the canonical engine.TurnRequest. Two shapes are accepted:
//
//   - canonical: message is an object {sender, text, timestamp}
//   - legacy/evaluator: message is a bare string (sender defaults to
//     scammer, timestamp to receive time)
//
// Timestamps arrive as epoch seconds, epoch milliseconds, or ISO-8601
// strings; anything unparsable falls back to the receive time. Nothing
// past this file re-inspects raw JSON.

// epochMillisFloor is the integer boundary between epoch-seconds and
// epoch-milliseconds interpretation (10^12).
const epochMillisFloor = int64(1_000_000_000_000)

type wireTurnRequest struct {
	SessionID string            `json:"sessionId"`
	Message   json.RawMessage   `json:"message"`
	History   []json.RawMessage `json:"conversationHistory"`
	// Older evaluator clients send the history under this name.
	Conversation []json.RawMessage `json:"conversation"`
}

type wireMessage struct {
	Sender    string          `json:"sender"`
	From      string          `json:"from"`
	Text      string          `json:"text"`
	Content   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ParseTurnRequest normalizes a raw request body into the canonical turn
// request. It fails only on malformed JSON or a missing session id; every
// recoverable field problem gets a safe default instead.
func ParseTurnRequest(body []byte, now time.Time) (*engine.TurnRequest, error) {
	var raw wireTurnRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if raw.SessionID == "" {
		return nil, fmt.Errorf("sessionId is required")
	}

	req := &engine.TurnRequest{
		SessionID: raw.SessionID,
		Message:   parseMessage(raw.Message, now),
	}
	history := raw.History
	if len(history) == 0 {
		history = raw.Conversation
	}
	for _, h := range history {
		req.History = append(req.History, parseMessage(h, now))
	}
	return req, nil
}

// parseMessage accepts either a message object or a bare string.
func parseMessage(raw json.RawMessage, now time.Time) session.Message {
	if len(raw) == 0 {
		return session.Message{Sender: session.SenderScammer, Timestamp: now}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return session.Message{Sender: session.SenderScammer, Text: text, Timestamp: now}
	}

	var wm wireMessage
	if err := json.Unmarshal(raw, &wm); err != nil {
		return session.Message{Sender: session.SenderScammer, Timestamp: now}
	}

	sender := wm.Sender
	if sender == "" {
		sender = wm.From
	}
	if sender != session.SenderScammer && sender != session.SenderAgent {
		sender = session.SenderScammer
	}
	msgText := wm.Text
	if msgText == "" {
		msgText = wm.Content
	}
	return session.Message{
		Sender:    sender,
		Text:      msgText,
		Timestamp: parseTimestamp(wm.Timestamp, now),
	}
}

// parseTimestamp applies the wire rule: integers below 10^12 are epoch
// seconds, 10^12 and above are epoch milliseconds, strings are ISO-8601.
// Unparsable values fall back to now rather than failing the turn.
func parseTimestamp(raw json.RawMessage, now time.Time) time.Time {
	if len(raw) == 0 {
		return now
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, str); err == nil {
				return t
			}
		}
		// Some senders quote their epoch integers.
		if n, err := strconv.ParseInt(str, 10, 64); err == nil {
			return epochToTime(n)
		}
		return now
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return epochToTime(int64(num))
	}
	return now
}

func epochToTime(n int64) time.Time {
	if n >= epochMillisFloor {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
