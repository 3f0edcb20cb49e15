package jobs

import (
	"context"
	"sync"
	"time"
)

// Operation is the record of one submitted request. Its state only changes
// from the engine goroutine running it and is frozen once terminal.
type Operation struct {
	// immutable fields
	ID      int64
	Request Request
	Sources []string
	DestDir string

	// state
	mu         sync.Mutex
	cond       *sync.Cond
	state      State
	outcomes   []SourceOutcome
	bytesDone  int64
	bytesTotal int64
	conflict   *Conflict
	answer     *answer
	applyAll   *Resolution
	events     []Progress
	startedAt  time.Time
	finishedAt time.Time

	// cancellation
	ctx    context.Context
	cancel context.CancelFunc

	publish    func(Progress) // called outside mu after each event
	streamOnce sync.Once
	stream     chan Progress
	done       chan struct{}
}

type answer struct {
	resolution Resolution
	applyToAll bool
}

func newOperation(id int64, req Request, publish func(Progress)) *Operation {
	sources, dest := plan(req)
	if publish == nil {
		publish = func(Progress) {}
	}
	op := &Operation{
		ID:      id,
		Request: req,
		Sources: sources,
		DestDir: dest,
		state:   StatePending,
		publish: publish,
		done:    make(chan struct{}),
	}
	op.cond = sync.NewCond(&op.mu)
	op.ctx, op.cancel = context.WithCancel(context.Background())
	op.emitLocked()
	return op
}

// State returns the current state.
func (op *Operation) State() State {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state
}

// Snapshot returns the latest progress snapshot.
func (op *Operation) Snapshot() Progress {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.events[len(op.events)-1]
}

// Done is closed once the operation reaches a terminal state.
func (op *Operation) Done() <-chan struct{} {
	return op.done
}

// Progress returns the operation's event stream. It delivers every event
// from the first one on, in order, and is closed after the terminal event.
// The stream is started on first call; later calls return the same channel,
// so events already received are not replayed. The consumer must drain it.
func (op *Operation) Progress() <-chan Progress {
	op.streamOnce.Do(func() {
		op.stream = make(chan Progress)
		go op.pump()
	})
	return op.stream
}

func (op *Operation) pump() {
	defer close(op.stream)
	next := 0
	for {
		op.mu.Lock()
		for next >= len(op.events) && !op.state.Terminal() {
			op.cond.Wait()
		}
		batch := append([]Progress(nil), op.events[next:]...)
		next = len(op.events)
		terminal := op.state.Terminal()
		op.mu.Unlock()

		for _, ev := range batch {
			op.stream <- ev
		}
		if terminal {
			return
		}
	}
}

// emitLocked appends a snapshot of the current state to the event log.
// Caller must hold op.mu.
func (op *Operation) emitLocked() Progress {
	outcomes := make([]SourceOutcome, len(op.outcomes))
	copy(outcomes, op.outcomes)
	var conflict *Conflict
	if op.conflict != nil {
		c := *op.conflict
		conflict = &c
	}
	ev := Progress{
		OperationID: op.ID,
		Seq:         int64(len(op.events) + 1),
		Type:        op.Request.Type(),
		State:       op.state,
		Outcomes:    outcomes,
		BytesDone:   op.bytesDone,
		BytesTotal:  op.bytesTotal,
		Finished:    op.state.Terminal(),
		Conflict:    conflict,
		StartedAt:   op.startedAt,
		FinishedAt:  op.finishedAt,
	}
	op.events = append(op.events, ev)
	op.cond.Broadcast()
	return ev
}

func (op *Operation) start(total int64) {
	op.mu.Lock()
	op.state = StateRunning
	op.bytesTotal = total
	op.startedAt = time.Now()
	ev := op.emitLocked()
	op.mu.Unlock()
	op.publish(ev)
}

// record appends the outcome of the next source.
func (op *Operation) record(o SourceOutcome) {
	op.mu.Lock()
	op.outcomes = append(op.outcomes, o)
	if o.Bytes > 0 {
		op.bytesDone += o.Bytes
	}
	ev := op.emitLocked()
	op.mu.Unlock()
	op.publish(ev)
}

// pause enters the conflict sub-state and blocks until a resolution or a
// cancel request arrives. Cancel while paused counts as Abort. A stored
// apply-to-all answer is returned without pausing.
func (op *Operation) pause(c Conflict) Resolution {
	op.mu.Lock()
	if op.applyAll != nil {
		res := *op.applyAll
		op.mu.Unlock()
		return res
	}
	op.state = StatePaused
	op.conflict = &c
	paused := op.emitLocked()
	op.mu.Unlock()
	op.publish(paused)

	op.mu.Lock()
	for op.answer == nil && op.ctx.Err() == nil {
		op.cond.Wait()
	}
	res := ResolveAbort
	if op.answer != nil {
		res = op.answer.resolution
		if op.answer.applyToAll {
			op.applyAll = &res
		}
	}
	op.answer = nil
	op.conflict = nil
	op.state = StateRunning
	resumed := op.emitLocked()
	op.mu.Unlock()
	op.publish(resumed)
	return res
}

// resolve hands a resolution to the paused worker.
func (op *Operation) resolve(res Resolution, applyToAll bool) bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state != StatePaused || op.answer != nil {
		return false
	}
	op.answer = &answer{resolution: res, applyToAll: applyToAll}
	op.cond.Broadcast()
	return true
}

// requestCancel sets the cooperative cancel flag.
func (op *Operation) requestCancel() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state.Terminal() {
		return false
	}
	op.cancel()
	op.cond.Broadcast()
	return true
}

func (op *Operation) cancelled() bool {
	return op.ctx.Err() != nil
}

// finish records placeholders for unstarted sources and freezes the record.
func (op *Operation) finish(state State) {
	op.mu.Lock()
	for i := len(op.outcomes); i < len(op.Sources); i++ {
		op.outcomes = append(op.outcomes, SourceOutcome{Source: op.Sources[i], Status: OutcomeCancelled})
	}
	op.state = state
	op.conflict = nil
	op.finishedAt = time.Now()
	ev := op.emitLocked()
	op.mu.Unlock()
	op.cancel()
	op.publish(ev)
	close(op.done)
}
