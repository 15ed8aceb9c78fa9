package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitpatel990/neuvox/internal/session"
)

var parseNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseTurnRequestCanonical(t *testing.T) {
	body := []byte(`{
		"sessionId": "sess-1",
		"message": {"sender": "scammer", "text": "pay me", "timestamp": "2026-02-28T10:30:00Z"},
		"conversationHistory": [
			{"sender": "scammer", "text": "hello", "timestamp": 1735689600},
			{"sender": "agent", "text": "who is this?", "timestamp": 1735689600000}
		]
	}`)

	req, err := ParseTurnRequest(body, parseNow)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", req.SessionID)
	assert.Equal(t, session.SenderScammer, req.Message.Sender)
	assert.Equal(t, "pay me", req.Message.Text)
	assert.Equal(t, time.Date(2026, 2, 28, 10, 30, 0, 0, time.UTC), req.Message.Timestamp.UTC())

	require.Len(t, req.History, 2)
	assert.Equal(t, time.Unix(1735689600, 0), req.History[0].Timestamp)
	assert.Equal(t, session.SenderAgent, req.History[1].Sender)
	assert.Equal(t, time.UnixMilli(1735689600000), req.History[1].Timestamp)
}

func TestParseTurnRequestBareStringMessage(t *testing.T) {
	req, err := ParseTurnRequest([]byte(`{"sessionId": "s", "message": "send to ramesh@paytm"}`), parseNow)
	require.NoError(t, err)

	assert.Equal(t, session.SenderScammer, req.Message.Sender)
	assert.Equal(t, "send to ramesh@paytm", req.Message.Text)
	assert.Equal(t, parseNow, req.Message.Timestamp)
}

func TestParseTurnRequestLegacyFieldNames(t *testing.T) {
	body := []byte(`{
		"sessionId": "s",
		"message": {"from": "scammer", "message": "urgent, call 9876543210"}
	}`)

	req, err := ParseTurnRequest(body, parseNow)
	require.NoError(t, err)
	assert.Equal(t, session.SenderScammer, req.Message.Sender)
	assert.Equal(t, "urgent, call 9876543210", req.Message.Text)
	assert.Equal(t, parseNow, req.Message.Timestamp, "missing timestamp defaults to receive time")
}

func TestParseTurnRequestConversationAlias(t *testing.T) {
	body := []byte(`{
		"sessionId": "s",
		"message": "latest",
		"conversation": ["first", "second"]
	}`)

	req, err := ParseTurnRequest(body, parseNow)
	require.NoError(t, err)
	require.Len(t, req.History, 2)
	assert.Equal(t, "first", req.History[0].Text)
	assert.Equal(t, session.SenderScammer, req.History[0].Sender)
}

func TestParseTurnRequestUnknownSenderDefaultsScammer(t *testing.T) {
	req, err := ParseTurnRequest([]byte(`{"sessionId": "s", "message": {"sender": "bot", "text": "hi"}}`), parseNow)
	require.NoError(t, err)
	assert.Equal(t, session.SenderScammer, req.Message.Sender)
}

func TestParseTurnRequestErrors(t *testing.T) {
	_, err := ParseTurnRequest([]byte(`{not json`), parseNow)
	require.Error(t, err)

	_, err = ParseTurnRequest([]byte(`{"message": "hi"}`), parseNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessionId")
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", `"2026-01-15T08:00:00Z"`, time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)},
		{"rfc3339 nano", `"2026-01-15T08:00:00.5Z"`, time.Date(2026, 1, 15, 8, 0, 0, 500000000, time.UTC)},
		{"no zone", `"2026-01-15T08:00:00"`, time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)},
		{"epoch seconds", `1735689600`, time.Unix(1735689600, 0)},
		{"epoch millis", `1735689600000`, time.UnixMilli(1735689600000)},
		{"quoted epoch seconds", `"1735689600"`, time.Unix(1735689600, 0)},
		{"garbage string", `"next tuesday"`, parseNow},
		{"empty", ``, parseNow},
		{"null", `null`, parseNow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTimestamp([]byte(tt.raw), parseNow)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}
}
