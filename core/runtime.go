package core

// runtime.go – the Runtime Scheduler (spec.md §5 "Scheduling model"): a
// single cooperative tick loop driving every entity's ERM, with per-entity
// input queues and a scheduleAfter primitive for timer-driven retries.
// Grounded on the teacher's CurrentLedger()-style process-wide singleton
// (old common_structs.go) for holding shared runtime state, combined with
// the benbjohnson/clock-driven timer pattern already established in
// clock.go.

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RuntimeInput is one tick's worth of entity-addressed EntityTx, per
// spec.md §6.2 "enqueueRuntimeInput".
type RuntimeInput struct {
	EntityId EntityId
	SignerId SignerId
	Txs      []EntityTx
}

// scheduledCall is a one-shot callback registered via scheduleAfter.
type scheduledCall struct {
	id   uuid.UUID
	due  time.Time
	call func()
}

// Runtime is the single-threaded cooperative scheduler that owns every
// known entity's state and advances it one tick at a time (spec.md §5).
type Runtime struct {
	mu       sync.Mutex
	entities map[EntityId]*EntityState
	queues   map[EntityId][]EntityTx

	adapter JurisdictionAdapter
	crypto  Crypto
	clock   Clock

	timers []scheduledCall
	height uint64

	subscribers map[EntityId][]chan EntityState

	log *log.Entry
}

// NewRuntime constructs a Runtime backed by a single jurisdiction adapter
// shared by every entity (spec.md §6.1 — the core consumes, never owns,
// the adapter).
func NewRuntime(adapter JurisdictionAdapter, crypto Crypto, clock Clock) *Runtime {
	return &Runtime{
		entities:    make(map[EntityId]*EntityState),
		queues:      make(map[EntityId][]EntityTx),
		subscribers: make(map[EntityId][]chan EntityState),
		adapter:     adapter,
		crypto:      crypto,
		clock:       clock,
		log:         log.WithField("component", "runtime"),
	}
}

// RegisterEntity adds an entity the runtime will tick.
func (r *Runtime) RegisterEntity(e *EntityState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[e.Id] = e
}

func (r *Runtime) Entity(id EntityId) (*EntityState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	return e, ok
}

// EnqueueRuntimeInput appends EntityTx to each named entity's queue for the
// next tick (spec.md §6.2).
func (r *Runtime) EnqueueRuntimeInput(inputs []RuntimeInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range inputs {
		r.queues[in.EntityId] = append(r.queues[in.EntityId], in.Txs...)
	}
}

// ScheduleAfter registers call to run no earlier than d from now, driven by
// the runtime's Clock rather than a bare timer goroutine, so tests can
// advance it deterministically (spec.md §5 "Clocks").
func (r *Runtime) ScheduleAfter(d time.Duration, call func()) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.timers = append(r.timers, scheduledCall{id: id, due: r.clock.Now().Add(d), call: call})
	return id
}

// Subscribe returns a channel of EntityState snapshots delivered at tick
// boundaries (spec.md §6.2 "subscribeState"). The channel is buffered; a
// slow subscriber drops the oldest pending snapshot rather than blocking
// the tick.
func (r *Runtime) Subscribe(id EntityId) <-chan EntityState {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan EntityState, 4)
	r.subscribers[id] = append(r.subscribers[id], ch)
	return ch
}

func (r *Runtime) publish(id EntityId, snap EntityState) {
	for _, ch := range r.subscribers[id] {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Tick runs one scheduler round: fires due timers, then runs one ERM frame
// for every registered entity (draining whatever input it has queued, which
// may be none) and delivers the resulting proposals and settle intents
// (spec.md §4.3 "Frame production", §5 "Single-threaded cooperative loop").
// Errors of every kind, integrity errors included, are collected and
// returned together; none of them stops the round early.
func (r *Runtime) Tick(ctx context.Context) []error {
	tickStart := r.clock.Now()
	defer observeTick(tickStart)

	r.mu.Lock()
	now := r.clock.Now()
	var due []scheduledCall
	var pending []scheduledCall
	for _, t := range r.timers {
		if !t.due.After(now) {
			due = append(due, t)
		} else {
			pending = append(pending, t)
		}
	}
	r.timers = pending

	ids := make([]EntityId, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	r.mu.Unlock()

	for _, t := range due {
		t.call()
	}

	var allErrs []error
	type outbound struct {
		from          *EntityState
		proposals     []*AccountFrameProposal
		settleIntents []*SettleIntent
	}
	var out []outbound
	for _, id := range ids {
		r.mu.Lock()
		txs := r.queues[id]
		delete(r.queues, id)
		entity := r.entities[id]
		r.mu.Unlock()

		// Every registered entity ticks every round, even with an empty
		// input queue: an account can hold AccountTx enqueued in an earlier
		// round that only becomes proposable once role alternation makes
		// this side the proposer.
		proposals, settleIntents, errs := entity.Tick(ctx, r.adapter, txs)
		allErrs = append(allErrs, errs...)
		out = append(out, outbound{entity, proposals, settleIntents})
	}

	// Outbound messages are delivered once every entity has applied its own
	// input, so a proposal never reaches a counterparty that has not yet
	// opened the mirrored account in this same round.
	for _, o := range out {
		for _, prop := range o.proposals {
			if err := r.deliverProposal(o.from, prop); err != nil {
				allErrs = append(allErrs, err)
			}
		}
		for _, intent := range o.settleIntents {
			if err := r.deliverSettleIntent(intent); err != nil {
				allErrs = append(allErrs, err)
			}
		}
	}

	r.mu.Lock()
	for _, id := range ids {
		r.publish(id, *r.entities[id])
	}
	r.mu.Unlock()

	r.height++
	return allErrs
}

// deliverProposal runs a full two-phase commit round for one outbound
// AccountFrameProposal against its counterparty's mirrored AccountMachine:
// the counterparty validates and acks (or naks), and on ack the proposer
// aggregates the hanko and distributes AccountFrameFinalize (spec.md §4.1
// steps 2-4). Both sides are ticked entities already registered on this
// runtime, so the round completes synchronously within the current tick.
func (r *Runtime) deliverProposal(from *EntityState, prop *AccountFrameProposal) error {
	r.mu.Lock()
	to, ok := r.entities[prop.AccountId]
	r.mu.Unlock()
	if !ok {
		return JurisdictionError("runtime.deliver_proposal", errFmt("no registered counterparty %s", prop.AccountId.String()))
	}

	fromAccount, err := from.mustAccount(prop.AccountId)
	if err != nil {
		return err
	}
	toAccount, err := to.mustAccount(prop.From)
	if err != nil {
		return err
	}

	ack, nak, err := toAccount.HandleProposal(prop, from.PrimarySigner, to.PrimarySigner)
	if err != nil {
		return err
	}
	if nak != nil {
		r.log.WithField("reason", nak.Reason).Warn("counterparty nak'd account frame proposal")
		return nil
	}
	finalize, err := fromAccount.HandleAck(ack, prop.ProposerSig)
	if err != nil {
		return err
	}
	return toAccount.HandleFinalize(finalize)
}

// deliverSettleIntent routes a settlement workspace mirror update to its
// named counterparty (spec.md §6.4).
func (r *Runtime) deliverSettleIntent(intent *SettleIntent) error {
	r.mu.Lock()
	to, ok := r.entities[intent.AccountId]
	r.mu.Unlock()
	if !ok {
		return JurisdictionError("runtime.deliver_settle_intent", errFmt("no registered counterparty %s", intent.AccountId.String()))
	}
	return to.HandleSettleIntent(intent)
}

// IngestJurisdictionEvents drains the adapter's event subscription once and
// routes each event to the entity it names (spec.md §4.3 step 4 "accept
// inbound chain observations").
func (r *Runtime) IngestJurisdictionEvents(ctx context.Context) error {
	stream, err := r.adapter.SubscribeEvents(ctx)
	if err != nil {
		return JurisdictionError("runtime.ingest_events", err)
	}
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return nil
			}
			if err := r.routeEvent(ev); err != nil {
				r.log.WithError(err).Warn("dropping jurisdiction event")
			}
		default:
			return nil
		}
	}
}

func (r *Runtime) routeEvent(ev JurisdictionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var target EntityId
	switch ev.Kind {
	case EventBatchConfirmed:
		if ev.BatchConfirmedPayload == nil {
			return ValidationError("runtime.route_event", errFmt("nil batch_confirmed payload"))
		}
		target = ev.BatchConfirmedPayload.EntityId
	case EventCounterpartyBatchConfirmed:
		if ev.CounterpartyBatchConfirmedPayload == nil {
			return ValidationError("runtime.route_event", errFmt("nil counterparty_batch_confirmed payload"))
		}
		target = ev.CounterpartyBatchConfirmedPayload.EntityId
	default:
		// batch_failed/dispute events are scoped by whichever entity owns
		// the referenced account; broadcast to all and let HandleJurisdictionEvent
		// no-op for entities without a matching account/batch.
		for _, e := range r.entities {
			if err := e.HandleJurisdictionEvent(ev); err != nil {
				return err
			}
		}
		return nil
	}
	e, ok := r.entities[target]
	if !ok {
		return nil
	}
	return e.HandleJurisdictionEvent(ev)
}
