package executor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/GlassOnTin/claude-cli/internal/extract"
)

// Recorder spawns an interpreter for a scratch script so that the full byte
// stream a terminal would display lands in a transcript file. Implementations
// differ only in how the recording is produced; the coordinator treats them
// uniformly through Handle.
type Recorder interface {
	Spawn(script string, lang extract.Lang, env []string) (*Handle, error)
}

// Handle is one spawned, recorded command.
type Handle struct {
	cmd        *exec.Cmd
	transcript string
	finish     func()
}

// Transcript returns the path of the recording file for this run.
func (h *Handle) Transcript() string {
	return h.transcript
}

// Wait blocks until the command exits, then releases recorder resources.
func (h *Handle) Wait() error {
	err := h.cmd.Wait()
	if h.finish != nil {
		h.finish()
	}
	return err
}

// Terminate signals the command's entire process group. The direct child is
// a wrapper (script, or the interpreter under a PTY session), so a plain
// Process.Kill would orphan its descendants.
func (h *Handle) Terminate() {
	terminateProcessGroup(h.cmd)
}

func interpreterFor(lang extract.Lang) string {
	if lang == extract.LangPython {
		return "python3"
	}
	return "bash"
}

func newTranscriptFile() (*os.File, error) {
	f, err := os.CreateTemp("", "claude-cli-*.transcript")
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}
	return f, nil
}

// NewRecorder picks the best recording strategy for this host: util-linux
// script when present (the command stays attached to the real terminal), a
// PTY otherwise, and plain pipes when no terminal is available at all.
func NewRecorder() Recorder {
	if path, err := exec.LookPath("script"); err == nil {
		return &scriptRecorder{path: path}
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return &ptyRecorder{echo: os.Stdout}
	}
	return &pipeRecorder{echo: os.Stdout}
}

// scriptRecorder wraps the run in util-linux script(1), exactly as a user
// would record a session by hand. -e propagates the child's exit status.
type scriptRecorder struct {
	path string
}

func (r *scriptRecorder) Spawn(script string, lang extract.Lang, env []string) (*Handle, error) {
	transcript, err := newTranscriptFile()
	if err != nil {
		return nil, err
	}
	path := transcript.Name()
	transcript.Close()

	cmdline := fmt.Sprintf("%s %s", interpreterFor(lang), script)
	cmd := exec.Command(r.path, "-q", "-e", "-c", cmdline, path)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("start script wrapper: %w", err)
	}
	return &Handle{cmd: cmd, transcript: path}, nil
}

// ptyRecorder runs the interpreter on a pseudo-terminal and tees its output
// into the transcript. The child sees a real tty, so prompts and colors are
// preserved; our stdin is not forwarded, which is the documented tradeoff of
// this fallback.
type ptyRecorder struct {
	echo io.Writer
}

func (r *ptyRecorder) Spawn(script string, lang extract.Lang, env []string) (*Handle, error) {
	transcript, err := newTranscriptFile()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(interpreterFor(lang), script)
	cmd.Env = env

	// pty.Start gives the child its own session, which is also a fresh
	// process group for Terminate to target.
	ptmx, err := pty.Start(cmd)
	if err != nil {
		transcript.Close()
		os.Remove(transcript.Name())
		return nil, fmt.Errorf("start pty: %w", err)
	}

	echo := r.echo
	if echo == nil {
		echo = io.Discard
	}
	var copied sync.WaitGroup
	copied.Add(1)
	go func() {
		defer copied.Done()
		// Read errors (EIO on child exit) just end the recording.
		_, _ = io.Copy(io.MultiWriter(echo, transcript), ptmx)
	}()

	return &Handle{
		cmd:        cmd,
		transcript: transcript.Name(),
		finish: func() {
			ptmx.Close()
			copied.Wait()
			transcript.Close()
		},
	}, nil
}

// pipeRecorder captures stdout and stderr through ordinary pipes. The
// interleaving is what the OS delivers rather than a true terminal stream;
// it is the last-resort substitute and the deterministic choice for tests.
type pipeRecorder struct {
	echo io.Writer
}

// NewPipeRecorder returns a pipe-based recorder echoing output to w
// (io.Discard when nil).
func NewPipeRecorder(w io.Writer) Recorder {
	if w == nil {
		w = io.Discard
	}
	return &pipeRecorder{echo: w}
}

func (r *pipeRecorder) Spawn(script string, lang extract.Lang, env []string) (*Handle, error) {
	transcript, err := newTranscriptFile()
	if err != nil {
		return nil, err
	}

	echo := r.echo
	if echo == nil {
		echo = io.Discard
	}
	sink := io.MultiWriter(echo, transcript)

	cmd := exec.Command(interpreterFor(lang), script)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = sink
	cmd.Stderr = sink
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		transcript.Close()
		os.Remove(transcript.Name())
		return nil, fmt.Errorf("start command: %w", err)
	}
	return &Handle{
		cmd:        cmd,
		transcript: transcript.Name(),
		finish:     func() { transcript.Close() },
	}, nil
}
