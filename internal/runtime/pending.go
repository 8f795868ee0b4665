package runtime

import (
	"encoding/json"
	"fmt"
	"sync"
)

type reply struct {
	body json.RawMessage
	err  error
}

// pendingTable maps correlation ids to the waiting caller. Every entry is
// removed exactly once: by its reply, its timeout, its context or failAll.
type pendingTable struct {
	mu    sync.Mutex
	calls map[string]chan reply
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[string]chan reply)}
}

func (p *pendingTable) add(id string) (<-chan reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.calls[id]; exists {
		return nil, fmt.Errorf("shopmesh: correlation id %q already pending", id)
	}
	// Buffered so the resolver never blocks on a caller that already left.
	ch := make(chan reply, 1)
	p.calls[id] = ch
	return ch, nil
}

// remove drops id and reports whether it was still pending.
func (p *pendingTable) remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.calls[id]; !ok {
		return false
	}
	delete(p.calls, id)
	return true
}

// resolve hands r to the caller waiting on id. It reports false for late or
// unknown replies.
func (p *pendingTable) resolve(id string, r reply) bool {
	p.mu.Lock()
	ch, ok := p.calls[id]
	delete(p.calls, id)
	p.mu.Unlock()

	if !ok {
		return false
	}
	ch <- r
	return true
}

// failAll resolves every pending call with err and returns how many there were.
func (p *pendingTable) failAll(err error) int {
	p.mu.Lock()
	calls := p.calls
	p.calls = make(map[string]chan reply)
	p.mu.Unlock()

	for _, ch := range calls {
		ch <- reply{err: err}
	}
	return len(calls)
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
