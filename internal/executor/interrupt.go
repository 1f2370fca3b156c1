package executor

import (
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
)

// Dispatcher is the single process-wide interrupt callback. With a live
// execution it absorbs the signal and kills the subprocess tree; idle, it
// hands the interrupt to the registered fallback (the read loop), or restores
// the default disposition and re-raises when nobody is listening.
type Dispatcher struct {
	exec   *Executor
	logger *log.Logger

	mu       sync.Mutex
	fallback func()
	sigCh    chan os.Signal
}

// NewDispatcher wires a dispatcher to the executor's execution slot.
func NewDispatcher(exec *Executor, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Dispatcher{exec: exec, logger: logger}
}

// Install registers the SIGINT handler. Call once at startup.
func (d *Dispatcher) Install() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sigCh != nil {
		return
	}
	d.sigCh = make(chan os.Signal, 1)
	signal.Notify(d.sigCh, os.Interrupt)
	go func() {
		for range d.sigCh {
			d.Dispatch()
		}
	}()
}

// Uninstall stops signal delivery; used by tests.
func (d *Dispatcher) Uninstall() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sigCh == nil {
		return
	}
	signal.Stop(d.sigCh)
	close(d.sigCh)
	d.sigCh = nil
}

// SetFallback registers the idle-mode consumer. A nil fallback reverts to
// pass-through: the next idle interrupt kills the process the default way.
func (d *Dispatcher) SetFallback(fn func()) {
	d.mu.Lock()
	d.fallback = fn
	d.mu.Unlock()
}

// Suspend masks interrupt handling while an interactive session owns the
// terminal. The returned restore func re-enables delivery.
func (d *Dispatcher) Suspend() (restore func()) {
	signal.Ignore(os.Interrupt)
	return func() {
		d.mu.Lock()
		ch := d.sigCh
		d.mu.Unlock()
		if ch != nil {
			signal.Notify(ch, os.Interrupt)
		}
	}
}

// Dispatch routes one interrupt. Busy: terminate the live process group,
// wait for it to die, and report the run as interrupted; the signal goes no
// further. Idle: give it to the fallback, or re-raise with the default
// disposition restored so it escapes to the caller.
func (d *Dispatcher) Dispatch() {
	if d.exec != nil && d.exec.InterruptCurrent() {
		return
	}

	d.mu.Lock()
	fb := d.fallback
	d.mu.Unlock()
	if fb != nil {
		fb()
		return
	}

	d.logger.Printf("[interrupt] no live execution and no fallback; re-raising")
	d.mu.Lock()
	if d.sigCh != nil {
		signal.Stop(d.sigCh)
	}
	d.mu.Unlock()
	signal.Reset(os.Interrupt)
	raiseInterrupt()
}
