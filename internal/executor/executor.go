// Package executor runs one extracted command block at a time under a
// terminal-recording shim, with process-group signal handling and guaranteed
// temp-file cleanup.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/GlassOnTin/claude-cli/internal/extract"
)

var (
	// ErrEmptyCommand is the no-op notice for blank command text.
	ErrEmptyCommand = errors.New("no command provided")
	// ErrBusy is returned when an execution is already in flight.
	ErrBusy = errors.New("another command is still running")
)

// apiKeyEnv is stripped from every child environment so a command can never
// read or forward the credential.
const apiKeyEnv = "ANTHROPIC_API_KEY"

// Request describes one command to run.
type Request struct {
	Body    string
	Lang    extract.Lang
	Capture bool
}

// Result is the outcome of a completed (or interrupted) execution.
type Result struct {
	Output      string
	ExitCode    int
	Interrupted bool
}

// session is the transient record of one in-flight run. All fields are
// guarded by the owning Executor's mutex; done is closed once the slot has
// been cleared and cleanup finished.
type session struct {
	handle      *Handle
	scriptPath  string
	interrupted bool
	done        chan struct{}
}

// Executor owns the single execution slot. The coordinating goroutine writes
// it; the interrupt dispatcher reads-and-flags it under the same lock, which
// is the happens-before edge that keeps kill and cleanup ordered.
type Executor struct {
	recorder Recorder
	logger   *log.Logger

	mu      sync.Mutex
	current *session
}

// New returns an Executor spawning through rec.
func New(rec Recorder, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if rec == nil {
		rec = NewRecorder()
	}
	return &Executor{recorder: rec, logger: logger}
}

// Execute runs one command to completion and, when requested, returns the
// recorded transcript. Exactly one execution may be live at a time; callers
// sequencing a batch must let each call return before issuing the next.
func (e *Executor) Execute(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Body) == "" {
		return Result{}, ErrEmptyCommand
	}

	sess := &session{done: make(chan struct{})}
	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return Result{}, ErrBusy
	}
	e.current = sess
	e.mu.Unlock()
	defer e.release(sess)

	script, err := writeScratch(req.Body, req.Lang)
	if err != nil {
		return Result{}, err
	}
	sessSet(e, sess, func() { sess.scriptPath = script })

	e.logger.Printf("[exec] running %s block (%d bytes)", req.Lang, len(req.Body))

	handle, err := e.recorder.Spawn(script, req.Lang, scrubEnv(os.Environ()))
	if err != nil {
		return Result{}, fmt.Errorf("spawn command: %w", err)
	}

	// An interrupt that landed while we were still spawning kills the
	// group immediately; otherwise just publish the handle.
	var killNow bool
	sessSet(e, sess, func() {
		sess.handle = handle
		killNow = sess.interrupted
	})
	if killNow {
		handle.Terminate()
	}

	waitErr := handle.Wait()

	e.mu.Lock()
	interrupted := sess.interrupted
	e.mu.Unlock()

	res := Result{Interrupted: interrupted, ExitCode: exitCode(waitErr)}
	if interrupted {
		res.ExitCode = -1
	} else if waitErr != nil {
		e.logger.Printf("[exec] command failed with exit code %d", res.ExitCode)
	}

	if req.Capture {
		res.Output = readTranscript(handle.Transcript())
	}
	return res, nil
}

// Busy reports whether an execution is currently live.
func (e *Executor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// InterruptCurrent terminates the live subprocess tree, if any, and blocks
// until its slot has been cleaned. It reports whether an execution was there
// to absorb the interrupt.
func (e *Executor) InterruptCurrent() bool {
	e.mu.Lock()
	sess := e.current
	if sess == nil {
		e.mu.Unlock()
		return false
	}
	sess.interrupted = true
	handle := sess.handle
	e.mu.Unlock()

	e.logger.Printf("[exec] interrupt: terminating command process group")
	if handle != nil {
		handle.Terminate()
	}
	<-sess.done
	return true
}

// release clears the execution slot and removes the session's temp files on
// every exit path. Removal failures are swallowed; they must never mask the
// result of the command that just ran.
func (e *Executor) release(sess *session) {
	e.mu.Lock()
	script := sess.scriptPath
	var transcript string
	if sess.handle != nil {
		transcript = sess.handle.Transcript()
	}
	e.current = nil
	e.mu.Unlock()

	if script != "" {
		if err := os.Remove(script); err != nil && !os.IsNotExist(err) {
			e.logger.Printf("[exec] scratch cleanup: %v", err)
		}
	}
	if transcript != "" {
		if err := os.Remove(transcript); err != nil && !os.IsNotExist(err) {
			e.logger.Printf("[exec] transcript cleanup: %v", err)
		}
	}
	close(sess.done)
}

func sessSet(e *Executor, sess *session, fn func()) {
	e.mu.Lock()
	fn()
	e.mu.Unlock()
}

// writeScratch materializes the body as a uniquely named executable file
// with an extension matching the language.
func writeScratch(body string, lang extract.Lang) (string, error) {
	ext := ".sh"
	if lang == extract.LangPython {
		ext = ".py"
	}
	f, err := os.CreateTemp("", "claude-cli-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	path := f.Name()
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close scratch file: %w", err)
	}
	if err := os.Chmod(path, 0o755); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("chmod scratch file: %w", err)
	}
	return path, nil
}

// scrubEnv copies env without the API credential.
func scrubEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, apiKeyEnv+"=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// readTranscript loads the recording with permissive decoding; undecodable
// bytes become replacement runes rather than failures.
func readTranscript(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(data), "�")
}

func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
