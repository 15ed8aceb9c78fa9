// Package engine contains the per-turn session orchestrator: it resolves
// session state, re-extracts intelligence over the full scammer corpus,
// merges, advances the phase machine, evaluates termination, and persists
// the result in a single commit.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ankitpatel990/neuvox/internal/engagement"
	"github.com/ankitpatel990/neuvox/internal/extractor"
	"github.com/ankitpatel990/neuvox/internal/intel"
	neuvoxotel "github.com/ankitpatel990/neuvox/internal/otel"
	"github.com/ankitpatel990/neuvox/internal/session"
)

var tracer = neuvoxotel.Tracer("github.com/ankitpatel990/neuvox/internal/engine")

// Store is the keyed session store the orchestrator requires. Get must
// return session.ErrSessionNotFound for unknown ids; Put must be atomic
// per row.
type Store interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Put(ctx context.Context, sess *session.Session) error
}

// CallbackDispatcher delivers the terminal payload to the external
// evaluator. At-most-once is enforced here by the session's callbackFired
// flag, not by the dispatcher.
type CallbackDispatcher interface {
	Dispatch(ctx context.Context, payload *CallbackPayload)
}

// Orchestrator coordinates one turn at a time per session.
type Orchestrator struct {
	store      Store
	extractor  *extractor.Extractor
	locks      *session.KeyedMutex
	dispatcher CallbackDispatcher
	thresholds engagement.Thresholds
	now        func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDispatcher sets the callback dispatcher (optional; without one the
// terminal payload is only logged).
func WithDispatcher(d CallbackDispatcher) OrchestratorOption {
	return func(o *Orchestrator) { o.dispatcher = d }
}

// WithThresholds overrides the default termination thresholds.
func WithThresholds(th engagement.Thresholds) OrchestratorOption {
	return func(o *Orchestrator) { o.thresholds = th }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator builds an orchestrator over the given store and extractor.
func NewOrchestrator(store Store, ex *extractor.Extractor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		extractor:  ex,
		locks:      session.NewKeyedMutex(),
		thresholds: engagement.DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleTurn processes one inbound turn. Unknown session ids create a
// fresh session; terminated sessions return their frozen state untouched.
// The only errors surfaced are store failures; on those the caller must
// retry the whole turn, since no partial mutation has been persisted.
func (o *Orchestrator) HandleTurn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	ctx, span := tracer.Start(ctx, "engine.handle_turn",
		trace.WithAttributes(attribute.String("session_id", req.SessionID)))
	defer span.End()

	// Turns for one session are serialized; different sessions run in
	// parallel. Without this, two concurrent turns could both read
	// callbackFired=false and double-fire, or lose an intelligence update.
	unlock := o.locks.Lock(req.SessionID)
	defer unlock()

	now := o.now()

	sess, err := o.store.Get(ctx, req.SessionID)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		sess = session.New(req.SessionID, now)
		sessionsCreated.Add(ctx, 1)
		log.Info().Str("session_id", req.SessionID).Func(neuvoxotel.LogTraceFields(ctx)).
			Msg("session_created")
	case err != nil:
		return nil, err
	}

	if sess.Terminated {
		span.SetAttributes(attribute.Bool("session.frozen", true))
		return o.frozenResult(sess, now), nil
	}

	// Work on a copy; the Put below is the single commit point, so an
	// aborted turn leaves the stored session untouched.
	next := *sess
	next.TurnCount++

	corpus := scammerCorpus(req)
	fresh := o.extractor.Extract(ctx, corpus)
	next.Intel = intel.Merge(next.Intel, fresh)
	confidence := next.Intel.Confidence()

	next.Phase = engagement.SelectPhase(next.TurnCount)
	decision := engagement.Evaluate(next.Phase, confidence, next.TurnCount, o.thresholds, next.CallbackFired)
	if decision.Terminated {
		next.Terminated = true
		next.Phase = engagement.PhaseTerminated
		sessionsTerminated.Add(ctx, 1)
		log.Info().Str("session_id", next.ID).Int("turn_count", next.TurnCount).
			Float64("confidence", confidence).Func(neuvoxotel.LogTraceFields(ctx)).
			Msg("session_terminated")
	}
	if decision.CallbackDue {
		// Set before persisting so a duplicate turn racing in after the
		// lock releases can never also observe callbackDue.
		next.CallbackFired = true
	}
	next.UpdatedAt = now

	if err := o.store.Put(ctx, &next); err != nil {
		return nil, err
	}
	turnsTotal.Add(ctx, 1)

	result := &TurnResult{
		Phase:                     next.Phase,
		Intelligence:              next.Intel,
		Confidence:                confidence,
		TurnCount:                 next.TurnCount,
		Terminated:                next.Terminated,
		CallbackDue:               decision.CallbackDue,
		EngagementDurationSeconds: now.Sub(next.StartedAt).Seconds(),
	}
	span.SetAttributes(
		attribute.Int("turn_count", result.TurnCount),
		attribute.Float64("confidence", result.Confidence),
		attribute.Bool("terminated", result.Terminated),
		attribute.Bool("callback_due", result.CallbackDue),
	)

	if decision.CallbackDue {
		o.dispatchCallback(ctx, next.ID, result)
	}
	return result, nil
}

// frozenResult builds the response for a turn arriving after termination:
// valid, but with no mutation and callbackDue always false.
func (o *Orchestrator) frozenResult(sess *session.Session, now time.Time) *TurnResult {
	return &TurnResult{
		Phase:                     sess.Phase,
		Intelligence:              sess.Intel,
		Confidence:                sess.Intel.Confidence(),
		TurnCount:                 sess.TurnCount,
		Terminated:                true,
		CallbackDue:               false,
		EngagementDurationSeconds: now.Sub(sess.StartedAt).Seconds(),
	}
}

// dispatchCallback hands the terminal payload to the dispatcher without
// blocking the turn response. The detached context survives the caller's
// deadline; delivery failures are the dispatcher's to log and retry.
func (o *Orchestrator) dispatchCallback(ctx context.Context, sessionID string, result *TurnResult) {
	callbacksDue.Add(ctx, 1)
	if o.dispatcher == nil {
		log.Info().Str("session_id", sessionID).Msg("callback_due_without_dispatcher")
		return
	}
	payload := &CallbackPayload{SessionID: sessionID, TurnResult: *result}
	go o.dispatcher.Dispatch(context.WithoutCancel(ctx), payload)
}

// scammerCorpus concatenates every scammer-authored text in the request:
// the full resent history plus the current message. Re-scanning the whole
// corpus each turn means intelligence revealed on a turn that was lost or
// crashed is still captured later.
func scammerCorpus(req *TurnRequest) string {
	var b strings.Builder
	for _, m := range req.History {
		if m.Sender == session.SenderScammer && m.Text != "" {
			b.WriteString(m.Text)
			b.WriteByte('\n')
		}
	}
	if req.Message.Sender == session.SenderScammer {
		b.WriteString(req.Message.Text)
	}
	return b.String()
}
