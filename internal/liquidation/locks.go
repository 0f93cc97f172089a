package liquidation

import (
	"sync"

	"github.com/google/uuid"
)

// positionLocks serializes liquidation rounds per position: a single
// position+holder pair always has one writer, while distinct positions
// proceed independently.
type positionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newPositionLocks() *positionLocks {
	return &positionLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (p *positionLocks) lock(id uuid.UUID) func() {
	p.mu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &sync.Mutex{}
		p.locks[id] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}
