// Package validate performs syntax-only well-formedness checks on extracted
// command blocks. Nothing here ever executes a block.
package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"

	"github.com/GlassOnTin/claude-cli/internal/extract"
)

// ErrUnsupportedLanguage is returned for any dialect the checker cannot parse.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// shellMetachars are the characters that disqualify a single-line bash body
// from the fast path. Anything containing them goes through bash -n.
const shellMetachars = "|&;<>()"

// Checker validates block bodies without executing them.
type Checker struct {
	bashPath   string
	pythonPath string
	logger     *log.Logger

	// runCheck is swappable in tests to observe or suppress external checks.
	runCheck func(ctx context.Context, name string, args []string, stdin string) (string, error)
}

// New returns a Checker using bash and python3 from PATH.
func New(logger *log.Logger) *Checker {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Checker{
		bashPath:   "bash",
		pythonPath: "python3",
		logger:     logger,
	}
	c.runCheck = c.runExternal
	return c
}

// Check reports whether body is well formed for the given language. A nil
// return means the block may be offered for execution; otherwise the error
// text is the failure reason shown to the user.
func (c *Checker) Check(ctx context.Context, lang extract.Lang, body string) error {
	switch lang {
	case extract.LangBash:
		return c.checkBash(ctx, body)
	case extract.LangPython:
		return c.checkPython(ctx, body)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
}

// Annotate runs Check over every block in place, recording validity and the
// failure reason. Validation failures are never fatal.
func (c *Checker) Annotate(ctx context.Context, blocks []extract.Block) {
	for i := range blocks {
		if err := c.Check(ctx, blocks[i].Lang, blocks[i].Body); err != nil {
			blocks[i].Valid = false
			blocks[i].Reason = err.Error()
			c.logger.Printf("[validate] block %d rejected: %v", blocks[i].Index, err)
		} else {
			blocks[i].Valid = true
			blocks[i].Reason = ""
		}
	}
}

func (c *Checker) checkBash(ctx context.Context, body string) error {
	// Trivial single-line commands skip the external parser entirely.
	if !strings.Contains(body, "\n") && !strings.ContainsAny(body, shellMetachars) {
		return nil
	}
	diag, err := c.runCheck(ctx, c.bashPath, []string{"-n", "-c", body}, "")
	if err != nil {
		if diag != "" {
			return errors.New(diag)
		}
		return fmt.Errorf("bash syntax check: %w", err)
	}
	return nil
}

// pythonCompileStub compiles stdin without executing it; a SyntaxError
// surfaces on stderr and becomes the failure reason.
const pythonCompileStub = `import sys; compile(sys.stdin.read(), "<block>", "exec")`

func (c *Checker) checkPython(ctx context.Context, body string) error {
	diag, err := c.runCheck(ctx, c.pythonPath, []string{"-c", pythonCompileStub}, body)
	if err != nil {
		if diag != "" {
			return errors.New(diag)
		}
		return fmt.Errorf("python compile check: %w", err)
	}
	return nil
}

// runExternal executes the named checker and returns its trimmed stderr.
func (c *Checker) runExternal(ctx context.Context, name string, args []string, stdin string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stderr.String()), err
}
