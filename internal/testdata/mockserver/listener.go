package mockserver

import (
	"context"
	"sync/atomic"
)

// Listener blocks in Listen until Shutdown is called, unless ListenErr is set.
type Listener struct {
	ListenErr   error
	ShutdownErr error

	listens   atomic.Int32
	shutdowns atomic.Int32
	started   chan struct{}
	stop      chan struct{}
}

func New() *Listener {
	return &Listener{
		started: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func (l *Listener) Listen(addr string) error {
	l.listens.Add(1)
	select {
	case l.started <- struct{}{}:
	default:
	}

	if l.ListenErr != nil {
		return l.ListenErr
	}
	<-l.stop
	return nil
}

func (l *Listener) Shutdown(ctx context.Context) error {
	if l.shutdowns.Add(1) == 1 {
		close(l.stop)
	}
	return l.ShutdownErr
}

// Started is signaled on the first Listen call.
func (l *Listener) Started() <-chan struct{} {
	return l.started
}

func (l *Listener) Listens() int {
	return int(l.listens.Load())
}

func (l *Listener) Shutdowns() int {
	return int(l.shutdowns.Load())
}
