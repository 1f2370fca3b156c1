package executor

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/GlassOnTin/claude-cli/internal/extract"
)

// Interactive hands the terminal to an interpreter session recorded through
// script(1) and returns the transcript once the user exits. The session runs
// in the caller's foreground process group so the shell's own job control
// handles Ctrl+C; callers should mask their interrupt handling around it.
// Without script(1) the session still runs, just unrecorded.
func (e *Executor) Interactive(lang extract.Lang) (string, error) {
	env := scrubEnv(os.Environ())
	interp := interpreterFor(lang)

	scriptPath, err := exec.LookPath("script")
	if err != nil {
		cmd := exec.Command(interp)
		cmd.Env = env
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			e.logger.Printf("[exec] interactive %s session ended: %v", interp, err)
		}
		return "", nil
	}

	transcript, err := newTranscriptFile()
	if err != nil {
		return "", err
	}
	path := transcript.Name()
	transcript.Close()
	defer os.Remove(path)

	cmd := exec.Command(scriptPath, "-q", path, interp)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start interactive session: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		e.logger.Printf("[exec] interactive %s session ended: %v", interp, err)
	}
	return readTranscript(path), nil
}
