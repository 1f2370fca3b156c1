// Package repl is the interactive surface: the input loop, the bang commands,
// and the glue between the API client, the validator, and the executor.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/c-bata/go-prompt"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/GlassOnTin/claude-cli/internal/anthropic"
	"github.com/GlassOnTin/claude-cli/internal/config"
	"github.com/GlassOnTin/claude-cli/internal/executor"
	"github.com/GlassOnTin/claude-cli/internal/logging"
	"github.com/GlassOnTin/claude-cli/internal/prompts"
	"github.com/GlassOnTin/claude-cli/internal/session"
	"github.com/GlassOnTin/claude-cli/internal/tokens"
	"github.com/GlassOnTin/claude-cli/internal/validate"
)

// Messenger is the slice of the API client the loop needs.
type Messenger interface {
	Messages(ctx context.Context, req anthropic.Request) (anthropic.Reply, error)
}

type promptExit struct{}

// REPL drives one session.
type REPL struct {
	cfg        config.Config
	client     Messenger
	checker    *validate.Checker
	exec       *executor.Executor
	dispatcher *executor.Dispatcher
	history    *session.History
	outputs    *session.Outputs
	usage      *tokens.Usage
	logger     *log.Logger

	render *glamour.TermRenderer
	in     *bufio.Reader
	out    io.Writer
	isTTY  bool
}

// New wires a REPL from its already constructed parts.
func New(cfg config.Config, client Messenger, checker *validate.Checker, exec *executor.Executor, dispatcher *executor.Dispatcher, hist *session.History, usage *tokens.Usage, logger *log.Logger) *REPL {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	var renderer *glamour.TermRenderer
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(0),
		); err == nil {
			renderer = r
		}
	}
	return &REPL{
		cfg:        cfg,
		client:     client,
		checker:    checker,
		exec:       exec,
		dispatcher: dispatcher,
		history:    hist,
		outputs:    &session.Outputs{},
		usage:      usage,
		logger:     logger,
		render:     renderer,
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stdout,
		isTTY:      term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Run starts the input loop and blocks until the session finishes.
func (r *REPL) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.dispatcher != nil {
		r.dispatcher.SetFallback(func() {
			fmt.Fprintln(r.out, "\nUse Ctrl+D or !exit to quit")
		})
		defer r.dispatcher.SetFallback(nil)
	}

	prompts.RefreshMetadata()
	r.printWelcome()

	var err error
	if r.isTTY {
		err = r.runPrompt(ctx, cancel)
	} else {
		err = r.runLoop(ctx, cancel)
	}

	fmt.Fprintln(r.out, "\nFinal Usage:")
	fmt.Fprintln(r.out, r.usage.Summary())
	return err
}

// RunOnce sends a single message and prints the reply plus the usage summary.
func (r *REPL) RunOnce(ctx context.Context, message string) error {
	prompts.RefreshMetadata()
	reply, err := r.client.Messages(ctx, anthropic.Request{
		Model:     r.cfg.Model,
		MaxTokens: r.cfg.MaxTokens,
		System:    prompts.Combine(r.cfg.SystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: message}},
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	r.printResponse(reply.Text)
	r.usage.Add(reply.Tokens)
	fmt.Fprintln(r.out, r.usage.Summary())
	return nil
}

var commandSuggestions = []prompt.Suggest{
	{Text: "!run", Description: "run command block n, 'all', or 'select'"},
	{Text: "!share", Description: "share collected command output"},
	{Text: "!bash", Description: "run a bash command or interactive session"},
	{Text: "!python", Description: "start an interactive python session"},
	{Text: "!save", Description: "save the conversation to a file"},
	{Text: "!load", Description: "load a conversation from a file"},
	{Text: "!tokens", Description: "show token usage and cost"},
	{Text: "!clear", Description: "clear the session history"},
	{Text: "!help", Description: "list commands"},
	{Text: "!exit", Description: "exit the program"},
}

func (r *REPL) runPrompt(ctx context.Context, cancel context.CancelFunc) (err error) {
	hist := loadInputHistory(r.cfg.HistoryPath)

	var restore func()
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		if state, terr := term.GetState(fd); terr == nil {
			restore = func() { _ = term.Restore(fd, state) }
		}
	}
	if restore != nil {
		defer restore()
	}

	var exitRequested atomic.Bool
	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := rec.(promptExit); ok {
				err = nil
				return
			}
			panic(rec)
		}
	}()

	run := func(in string) {
		if exitRequested.Load() || ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(in)
		if line == "" {
			return
		}
		hist.Add(line)
		if exit := r.handleLine(ctx, line); exit {
			exitRequested.Store(true)
			cancel()
			panic(promptExit{})
		}
	}

	p := prompt.New(
		run,
		r.completer(),
		prompt.OptionHistory(hist.Entries()),
		prompt.OptionTitle("claude-cli"),
		prompt.OptionPrefix("You: "),
		prompt.OptionAddKeyBind(
			prompt.KeyBind{
				Key: prompt.ControlC,
				Fn: func(buf *prompt.Buffer) {
					fmt.Fprintln(r.out, "\nUse Ctrl+D or !exit to quit")
				},
			},
			prompt.KeyBind{
				Key: prompt.ControlD,
				Fn: func(buf *prompt.Buffer) {
					if buf.Text() == "" {
						exitRequested.Store(true)
						cancel()
						panic(promptExit{})
					}
				},
			},
		),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool {
			if exitRequested.Load() {
				return true
			}
			select {
			case <-ctx.Done():
				return true
			default:
				return false
			}
		}),
	)

	p.Run()
	return nil
}

func (r *REPL) completer() func(prompt.Document) []prompt.Suggest {
	return func(doc prompt.Document) []prompt.Suggest {
		prefix := strings.TrimLeft(doc.TextBeforeCursor(), " \t")
		if !strings.HasPrefix(prefix, "!") {
			return nil
		}
		return prompt.FilterHasPrefix(commandSuggestions, doc.GetWordBeforeCursor(), true)
	}
}

func (r *REPL) runLoop(ctx context.Context, cancel context.CancelFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Fprint(r.out, "You: ")
		line, err := r.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(r.out)
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if exit := r.handleLine(ctx, strings.TrimSpace(line)); exit {
			cancel()
			return nil
		}
	}
}

func (r *REPL) handleLine(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, "!") {
		return r.handleBang(ctx, line)
	}
	r.ask(ctx, line)
	return false
}

// ask sends one chat turn. API failures become a synthetic assistant message
// so the session keeps its rhythm.
func (r *REPL) ask(ctx context.Context, user string) {
	prompts.RefreshMetadata()
	msgs := append(r.history.MessagesForAPI(), anthropic.Message{Role: "user", Content: user})

	reply, err := r.client.Messages(ctx, anthropic.Request{
		Model:     r.cfg.Model,
		MaxTokens: r.cfg.MaxTokens,
		System:    prompts.Combine(r.cfg.SystemPrompt),
		Messages:  msgs,
	})
	if err != nil {
		logging.ErrorLog("api request failed: %v", err)
		text := fmt.Sprintf("Error: %v", err)
		fmt.Fprintln(r.out, text)
		r.history.Append(user, text)
		return
	}

	r.printResponse(reply.Text)
	r.usage.Add(reply.Tokens)
	fmt.Fprintf(r.out, "\nTokens used in this interaction: %d\n", reply.Tokens)
	r.history.Append(user, reply.Text)
}

func (r *REPL) printResponse(text string) {
	if r.render == nil || strings.TrimSpace(text) == "" {
		fmt.Fprintf(r.out, "%s\n", text)
		return
	}
	rendered, err := r.render.Render(text)
	if err != nil {
		r.logger.Printf("markdown render failed: %v", err)
		fmt.Fprintf(r.out, "%s\n", text)
		return
	}
	fmt.Fprint(r.out, strings.TrimRight(rendered, "\n")+"\n")
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "Claude CLI - interactive shell assistant")
	fmt.Fprintln(r.out, "Type !help for commands. Anything else is sent to the assistant.")
}
