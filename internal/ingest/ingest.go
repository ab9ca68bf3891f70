// Package ingest feeds raw notification messages through the classifier gate
// and the interpreter into a store.
//
// The interpreter has no notion of duplicates. Re-delivered messages are caught
// by the store through the fingerprint attached to every transaction; a store
// that ignores SourceHash will record duplicates.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sms-ledger/internal/domain"
	"sms-ledger/internal/message"
)

// Message is one raw notification as delivered by a device or forwarder.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Outcome is what happened to a processed message.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnparsed  Outcome = "unparsed"
	OutcomeStored    Outcome = "stored"
	OutcomeDuplicate Outcome = "duplicate"
)

// Result describes a processed message. Transaction is set for stored and
// duplicate outcomes; Reason for unparsed ones.
type Result struct {
	Outcome     Outcome
	Transaction domain.Transaction
	Reason      string
}

// Sink persists transactions. inserted is false when a transaction with the
// same SourceHash already exists.
type Sink interface {
	InsertTransaction(ctx context.Context, tx domain.Transaction) (stored domain.Transaction, inserted bool, err error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now for messages that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithStoredHook is called after every newly stored transaction.
func WithStoredHook(fn func(ctx context.Context, tx domain.Transaction)) Option {
	return func(p *Pipeline) { p.onStored = fn }
}

// Pipeline is safe for concurrent use if its Sink is.
type Pipeline struct {
	sink     Sink
	log      zerolog.Logger
	now      func() time.Time
	onStored func(ctx context.Context, tx domain.Transaction)
}

func NewPipeline(sink Sink, log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		sink: sink,
		log:  log.With().Str("component", "ingest").Logger(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one message through the gate, the interpreter and the sink.
// Rejected and unparseable messages are outcomes, not errors; only sink
// failures are returned as errors.
//
// A message without timestamp is stamped with the pipeline clock before it
// is fingerprinted, so the same text arriving on different days is recorded
// each time.
func (p *Pipeline) Process(ctx context.Context, msg Message) (Result, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = p.now()
	}
	fp := Fingerprint(msg)
	log := p.log.With().Str("fingerprint", fp[:12]).Str("sender", msg.Sender).Logger()

	if !message.IsBankMessage(msg.Text, msg.Sender) {
		log.Debug().Msg("Message is not a bank transaction, ignoring")
		return Result{Outcome: OutcomeIgnored}, nil
	}

	parsed, err := message.Interpret(msg.Text)
	if err != nil {
		var pf *message.ParseFailure
		if errors.As(err, &pf) {
			log.Info().Str("reason", pf.Reason).Msg("Could not parse bank message")
			return Result{Outcome: OutcomeUnparsed, Reason: pf.Reason}, nil
		}
		return Result{}, err
	}

	tx := parsed.Transaction(domain.SourceSMS, msg.Timestamp)
	tx.SourceHash = &fp

	stored, inserted, err := p.sink.InsertTransaction(ctx, tx)
	if err != nil {
		return Result{}, fmt.Errorf("store transaction: %w", err)
	}
	if !inserted {
		log.Info().Msg("Duplicate message, transaction already recorded")
		return Result{Outcome: OutcomeDuplicate, Transaction: stored}, nil
	}

	log.Info().
		Int64("transaction_id", stored.ID).
		Str("type", string(stored.Direction)).
		Str("amount", stored.Amount.String()).
		Str("category", string(stored.Category)).
		Msg("Transaction recorded from message")
	if p.onStored != nil {
		p.onStored(ctx, stored)
	}
	return Result{Outcome: OutcomeStored, Transaction: stored}, nil
}

// Run processes messages until msgs is closed or ctx is done. Sink errors are
// logged and the message is dropped; use Process directly for retry control.
func (p *Pipeline) Run(ctx context.Context, msgs <-chan Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if _, err := p.Process(ctx, msg); err != nil {
				p.log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to process message")
			}
		}
	}
}
