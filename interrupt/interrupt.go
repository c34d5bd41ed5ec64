// Package interrupt provides a cancellation token with an interruptible wait.
//
// A Token replaces a process-wide "interrupted" flag: it can be signalled from
// any goroutine (typically a signal handler installed by NotifyOnSignal), every
// Wait in progress returns immediately, and Interrupted keeps reporting true
// until Clear is called.
package interrupt

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"time"
)

// ErrInterrupted is returned by Wait and Check once the token has been signalled.
var ErrInterrupted = errors.New("interrupted")

// Token is a resettable, broadcast cancellation flag. The zero value is a
// cleared token. A nil *Token is never interrupted.
type Token struct {
	mu   sync.Mutex
	done chan struct{}
	set  bool
}

// New creates a token in the cleared state.
func New() *Token {
	return &Token{done: make(chan struct{})}
}

// Signal interrupts all current and future waits until Clear is called.
func (t *Token) Signal() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.set {
		t.set = true
		close(t.channel())
	}
}

// Interrupted reports whether Signal has been called since the last Clear.
func (t *Token) Interrupted() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.set
}

// Clear resets the token so waits block again.
func (t *Token) Clear() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.set {
		t.set = false
		t.done = make(chan struct{})
	}
}

// Done returns a channel closed when the token is signalled. The channel
// is replaced on Clear, so callers must fetch it again after a reset.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channel()
}

// channel returns the current done channel, creating it for a zero Token.
// Callers hold t.mu.
func (t *Token) channel() chan struct{} {
	if t.done == nil {
		t.done = make(chan struct{})
	}
	return t.done
}

// Check returns ErrInterrupted if the token is signalled.
func (t *Token) Check() error {
	if t.Interrupted() {
		return ErrInterrupted
	}
	return nil
}

// Wait pauses for d. It returns ErrInterrupted as soon as the token is
// signalled (also when that happened before or during the pause), or
// ctx.Err() if the context ends first.
func (t *Token) Wait(ctx context.Context, d time.Duration) error {
	if err := t.Check(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return t.Check()
	case <-t.Done():
		return ErrInterrupted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyOnSignal signals the token whenever one of sigs arrives (os.Interrupt
// when none are given). The returned stop function uninstalls the handler;
// cancelling ctx has the same effect.
func (t *Token) NotifyOnSignal(ctx context.Context, sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-ch:
				t.Signal()
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			cancel()
		})
	}
}
