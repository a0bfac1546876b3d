package health

import (
	"context"
	"errors"
	"sync"
)

// ErrNotReady is reported by a [Gate] that has not been marked ready yet.
var ErrNotReady = errors.New("not ready")

// Gate is a readiness switch owned by one component. It starts not ready.
type Gate struct {
	name string

	mu  sync.Mutex
	err error
}

// NewGate returns a Gate labelled name.
func NewGate(name string) *Gate {
	return &Gate{name: name, err: ErrNotReady}
}

// Ready marks the component ready.
func (g *Gate) Ready() { g.set(nil) }

// Fail marks the component not ready with reason err. A nil err is treated
// as [ErrNotReady].
func (g *Gate) Fail(err error) {
	if err == nil {
		err = ErrNotReady
	}
	g.set(err)
}

func (g *Gate) set(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

// Err returns nil when ready, otherwise the reason.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Checker exposes the gate to a [Handler].
func (g *Gate) Checker() Checker {
	return Checker{
		Name:  g.name,
		Check: func(context.Context) error { return g.Err() },
	}
}
