package relay

import (
	"sync"
	"time"
)

// callOutcome is what a waiting caller receives: either the peer's response
// or a locally generated failure (timeout, disconnect).
type callOutcome struct {
	resp *Response
	err  error
}

// pendingCall correlates one outbound request with its eventual outcome.
// It is owned exclusively by the connection that created it.
type pendingCall struct {
	id      int64
	ch      chan callOutcome
	created time.Time
}

// pendingSet tracks in-flight outbound requests keyed by a strictly
// increasing id unique for the connection's lifetime.
type pendingSet struct {
	mu     sync.Mutex
	nextID int64
	calls  map[int64]*pendingCall
}

func newPendingSet() *pendingSet {
	return &pendingSet{calls: make(map[int64]*pendingCall)}
}

// add registers a new pending call and returns it with a fresh id.
func (p *pendingSet) add() *pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	call := &pendingCall{
		id:      p.nextID,
		ch:      make(chan callOutcome, 1),
		created: time.Now(),
	}
	p.calls[call.id] = call
	return call
}

// resolve delivers a response to the matching pending call and removes it.
// Returns false when no call with that id is waiting, in which case the
// response should be dropped.
func (p *pendingSet) resolve(id int64, resp *Response) bool {
	p.mu.Lock()
	call, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	call.ch <- callOutcome{resp: resp}
	return true
}

// remove drops a pending call without delivering anything, used after a
// timeout so a late response finds nothing and is discarded.
func (p *pendingSet) remove(id int64) {
	p.mu.Lock()
	delete(p.calls, id)
	p.mu.Unlock()
}

// failAll rejects every pending call with err and empties the set. Called on
// disconnect so callers are not left awaiting a dead channel.
func (p *pendingSet) failAll(err error) {
	p.mu.Lock()
	calls := p.calls
	p.calls = make(map[int64]*pendingCall)
	p.mu.Unlock()

	for _, call := range calls {
		call.ch <- callOutcome{err: err}
	}
}

// size reports the number of in-flight calls.
func (p *pendingSet) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
