// Package interrupt turns SIGINT/SIGTERM into context cancellation.
//
// The first signal cancels the returned context with ErrInterrupted as its
// cause: files in flight stop, their partial outputs are removed, and the
// caller still prints what finished. A second signal within Window exits the
// process at once with ExitInterrupt.
package interrupt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ErrInterrupted is the cancellation cause after the first signal.
var ErrInterrupted = errors.New("interrupted")

// ExitInterrupt is the exit code for interrupt (130 = 128 + SIGINT).
const ExitInterrupt = 130

// Window is how soon a second signal must follow the first to force an exit.
const Window = 2 * time.Second

const (
	cancelNotice = "\nCancelling... press Ctrl+C again to quit immediately."
	abortMessage = "\nAborted."
)

// Handler manages graceful interrupt handling with double Ctrl+C detection.
type Handler struct {
	mu          sync.Mutex
	lastSignal  time.Time
	interrupted bool
	stopped     bool
	cancel      context.CancelCauseFunc
	done        chan struct{} // Signals listen goroutine to exit

	// Injected dependencies (for testing)
	exitFunc func(int)
	nowFunc  func() time.Time
	stderr   io.Writer
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh    <-chan os.Signal
	ExitFunc func(int)
	NowFunc  func() time.Time
	// Stderr receives user-facing notices. It must be safe for concurrent
	// writes; os.Stderr is.
	Stderr io.Writer
}

// NewHandler creates a handler that listens for SIGINT/SIGTERM.
// Returns the handler and a context that is canceled on first interrupt.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return newHandler(parent, Options{SigCh: sigCh})
}

// NewHandlerWithOptions creates a handler with injectable dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	return newHandler(parent, opts)
}

func newHandler(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancelCause(parent)

	h := &Handler{
		cancel:   cancel,
		done:     make(chan struct{}),
		exitFunc: opts.ExitFunc,
		nowFunc:  opts.NowFunc,
		stderr:   opts.Stderr,
	}
	if h.exitFunc == nil {
		h.exitFunc = os.Exit
	}
	if h.nowFunc == nil {
		h.nowFunc = time.Now
	}
	if h.stderr == nil {
		h.stderr = os.Stderr
	}

	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}

	return h, ctx
}

func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}
			if h.handle() {
				return
			}
		}
	}
}

// handle processes one signal and reports whether listening should stop.
func (h *Handler) handle() bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return true
	}
	now := h.nowFunc()

	if h.interrupted && now.Sub(h.lastSignal) <= Window {
		h.mu.Unlock()
		fmt.Fprintln(h.stderr, abortMessage)
		h.exitFunc(ExitInterrupt)
		return true // In case exitFunc doesn't actually exit (tests)
	}

	// First signal, or a late second one that restarts the window.
	first := !h.interrupted
	h.interrupted = true
	h.lastSignal = now
	h.mu.Unlock()

	if first {
		h.cancel(ErrInterrupted)
	}
	fmt.Fprintln(h.stderr, cancelNotice)
	return false
}

// WasInterrupted returns true if at least one interrupt was received.
func (h *Handler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Err returns ErrInterrupted once a signal was received, nil otherwise.
func (h *Handler) Err() error {
	if h.WasInterrupted() {
		return ErrInterrupted
	}
	return nil
}

// Stop releases the signal handlers and the context. It is idempotent.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	close(h.done)
	h.cancel(context.Canceled)
}
