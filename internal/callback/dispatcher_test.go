package callback

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitpatel990/neuvox/internal/engagement"
	"github.com/ankitpatel990/neuvox/internal/engine"
	"github.com/ankitpatel990/neuvox/internal/intel"
)

func terminalPayload() *engine.CallbackPayload {
	return &engine.CallbackPayload{
		SessionID: "sess-cb",
		TurnResult: engine.TurnResult{
			Phase: engagement.PhaseTerminated,
			Intelligence: intel.Report{
				UPIIDs: []string{"ramesh@paytm"},
			},
			Confidence: 0.90,
			TurnCount:  7,
			Terminated: true,
		},
	}
}

func TestDispatchSignedDelivery(t *testing.T) {
	const signingKey = "cb-secret"

	var gotBody []byte
	var gotSig, gotDelivery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(HeaderSignature)
		gotDelivery = r.Header.Get(HeaderDelivery)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, signingKey)
	d.Dispatch(context.Background(), terminalPayload())

	require.NotEmpty(t, gotBody)
	assert.NotEmpty(t, gotDelivery)
	assert.True(t, VerifySignature([]byte(signingKey), gotBody, gotSig))

	var decoded engine.CallbackPayload
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "sess-cb", decoded.SessionID)
	assert.True(t, decoded.Terminated)
	assert.Equal(t, []string{"ramesh@paytm"}, decoded.Intelligence.UPIIDs)
}

func TestDispatchUnsignedWhenNoKey(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, "")
	d.Dispatch(context.Background(), terminalPayload())
	assert.Empty(t, gotSig)
}

func TestDispatchRetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, "", WithAttempts(3))
	d.Dispatch(context.Background(), terminalPayload())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDispatchGivesUpAfterBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, "", WithAttempts(2))
	// Never returns an error; persistent failure is logged only.
	d.Dispatch(context.Background(), terminalPayload())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDispatchStopsOnCancelledContext(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	d := NewHTTPDispatcher(srv.URL, "", WithAttempts(5))

	go func() {
		// Cancel while the dispatcher sits in its first backoff.
		cancel()
	}()
	d.Dispatch(ctx, terminalPayload())
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestVerifySignature(t *testing.T) {
	key := []byte("k")
	body := []byte(`{"sessionId":"s"}`)
	sig := Sign(key, body)

	assert.True(t, VerifySignature(key, body, sig))
	assert.False(t, VerifySignature([]byte("other"), body, sig))
	assert.False(t, VerifySignature(key, []byte("tampered"), sig))
	assert.False(t, VerifySignature(key, body, "not-hex"))
}
