package payments

import (
	"context"
	"log"
	"prestar/src/types"
	"time"
)

// Engine runs the reconciliation pipeline: parse, verify, normalize, admit,
// reconcile, stage side effects. The database steps share one transaction,
// so a transient failure mid-way also rolls back the idempotency record and
// the provider's redelivery gets a clean slate.
type Engine struct {
	repo  Repository
	rails map[types.ProviderKind]Rail
	fees  FeeSource
	clock func() time.Time
}

func NewEngine(repo Repository, fees FeeSource, rails ...Rail) *Engine {
	if fees == nil {
		fees = DefaultFeeSource
	}
	m := make(map[types.ProviderKind]Rail, len(rails))
	for _, r := range rails {
		m[r.Kind()] = r
	}
	return &Engine{
		repo:  repo,
		rails: m,
		fees:  fees,
		clock: time.Now,
	}
}

// NewEngineWithClock is used by tests that pin paidAt.
func NewEngineWithClock(repo Repository, fees FeeSource, clock func() time.Time, rails ...Rail) *Engine {
	e := NewEngine(repo, fees, rails...)
	e.clock = clock
	return e
}

// Process handles one inbound provider notification end to end. The error
// taxonomy drives the transport response: ErrParse and ErrForged reject the
// request, a TransientError asks the provider to redeliver, and any Outcome
// is acknowledged as success.
func (e *Engine) Process(ctx context.Context, kind types.ProviderKind, body []byte, hdr Header) (*Outcome, error) {
	rail, ok := e.rails[kind]
	if !ok {
		return nil, ErrUnknownProvider
	}
	ev, err := rail.Parse(body, hdr)
	if err != nil {
		return nil, err
	}
	if err := rail.Verify(ctx, ev); err != nil {
		return nil, err
	}
	if enricher, ok := rail.(Enricher); ok {
		if err := enricher.Enrich(ctx, ev); err != nil {
			return nil, err
		}
	}
	pe := Normalize(rail, ev)

	var outcome *Outcome
	err = e.repo.InTx(ctx, func(tx Repository) error {
		o, err := e.apply(ctx, tx, pe)
		if err != nil {
			return err
		}
		outcome = o
		return nil
	})
	if err != nil {
		return nil, transient("reconcile", err)
	}

	switch outcome.Kind {
	case OutcomeApplied:
		log.Printf("[%s] %s: %s -> %s\n", kind, pe.ExternalReference, outcome.From, outcome.To)
	case OutcomeDuplicate:
		log.Printf("[%s] duplicate event %s absorbed\n", kind, pe.ExternalEventID)
	case OutcomeUnknownReference:
		log.Printf("[%s] no payment matches reference %s\n", kind, pe.ExternalReference)
	case OutcomeInvalidTransition:
		log.Printf("[%s] %s: rejected %s -> %s, flagged for review\n", kind, pe.ExternalReference, outcome.From, outcome.To)
	}
	return outcome, nil
}
