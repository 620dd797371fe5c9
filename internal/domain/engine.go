package domain

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal result of processing one webhook delivery. Every
// delivery ends in exactly one outcome; none trigger internal retries.
type Outcome string

const (
	OutcomeIgnored          Outcome = "ignored"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeUnauthorized     Outcome = "unauthorized"
	OutcomeInvalidActivity  Outcome = "invalid_activity"
	OutcomeSinkFailed       Outcome = "sink_failed"
	OutcomeUpdated          Outcome = "updated"
)

// Engine orchestrates one webhook delivery: idempotency gate, credential
// resolution, activity fetch, listen correlation, and the annotation write.
type Engine struct {
	listens   ListenStore
	processed ProcessedStore
	tokens    TokenResolver
	source    ActivitySource
	sink      AnnotationSink
	logger    *log.Logger
	now       func() time.Time
}

// EngineOption configures optional Engine behaviour.
type EngineOption func(*Engine)

// WithEngineLogger overrides the engine's logger.
func WithEngineLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEngineClock overrides the engine's clock.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine constructs an Engine over the injected collaborators.
func NewEngine(listens ListenStore, processed ProcessedStore, tokens TokenResolver, source ActivitySource, sink AnnotationSink, opts ...EngineOption) *Engine {
	e := &Engine{
		listens:   listens,
		processed: processed,
		tokens:    tokens,
		source:    source,
		sink:      sink,
		logger:    log.New(log.Writer(), "[engine] ", log.LstdFlags|log.Lshortfile),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process runs the correlation state machine for one delivery. Expected
// failure paths are reported through the Outcome; a non-nil error means an
// infrastructure fault (store or unexpected remote failure) worth a retry by
// the delivering party.
//
// The idempotency gate is check-then-act: a crash between a successful sink
// write and MarkProcessed re-annotates on redelivery with identical text.
func (e *Engine) Process(ctx context.Context, event WebhookEvent) (Outcome, error) {
	if event.ObjectType != ObjectTypeActivity {
		return OutcomeIgnored, nil
	}

	deliveryID := uuid.NewString()

	done, err := e.processed.IsProcessed(ctx, event.ObjectID)
	if err != nil {
		return "", err
	}
	if done {
		e.logger.Printf("delivery %s: activity %d already processed", deliveryID, event.ObjectID)
		return OutcomeAlreadyProcessed, nil
	}

	accessToken, err := e.tokens.Resolve(ctx, event.OwnerID)
	if err != nil {
		if errors.Is(err, ErrNotAuthorized) || errors.Is(err, ErrRefreshFailed) {
			e.logger.Printf("delivery %s: owner %d unauthorized: %v", deliveryID, event.OwnerID, err)
			return OutcomeUnauthorized, nil
		}
		return "", err
	}

	detail, err := e.source.Activity(ctx, event.ObjectID, accessToken)
	if err != nil {
		if errors.Is(err, ErrIncompleteActivity) {
			e.logger.Printf("delivery %s: activity %d incomplete: %v", deliveryID, event.ObjectID, err)
			return OutcomeInvalidActivity, nil
		}
		return "", err
	}

	start, end := detail.Window()
	listens, err := e.listens.QueryRange(ctx, start, end)
	if err != nil {
		return "", err
	}

	description := FormatDescription(DedupeListens(listens))

	if err := e.sink.UpdateDescription(ctx, event.ObjectID, accessToken, description); err != nil {
		e.logger.Printf("delivery %s: annotation write for activity %d failed: %v", deliveryID, event.ObjectID, err)
		return OutcomeSinkFailed, nil
	}

	if err := e.processed.MarkProcessed(ctx, event.ObjectID, e.now()); err != nil {
		// The annotation is already applied; a redelivery will write the same
		// text again. Surface the fault in logs but report success.
		e.logger.Printf("delivery %s: ledger write for activity %d failed: %v", deliveryID, event.ObjectID, err)
	}

	e.logger.Printf("delivery %s: activity %d updated (window %s..%s, %d listens)",
		deliveryID, event.ObjectID, start.Format(time.RFC3339), end.Format(time.RFC3339), len(listens))
	return OutcomeUpdated, nil
}
