package repl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/GlassOnTin/claude-cli/internal/executor"
	"github.com/GlassOnTin/claude-cli/internal/extract"
	"github.com/GlassOnTin/claude-cli/internal/logging"
	"github.com/GlassOnTin/claude-cli/internal/session"
)

// splitBang separates a bang command from its argument string.
func splitBang(line string) (name, arg string) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	name = parts[0]
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return name, arg
}

// handleBang runs one !command. The return value reports an exit request.
func (r *REPL) handleBang(ctx context.Context, line string) bool {
	name, arg := splitBang(line)

	switch name {
	case "!exit":
		return true
	case "!help":
		r.printHelp()
	case "!tokens":
		fmt.Fprintln(r.out, "\nCurrent Usage:")
		fmt.Fprintln(r.out, r.usage.Summary())
	case "!clear":
		r.history.Clear()
		r.outputs.Reset()
		fmt.Fprintln(r.out, "History cleared")
	case "!save":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: !save <file>")
			return false
		}
		if err := r.history.Save(arg); err != nil {
			fmt.Fprintf(r.out, "Error saving conversation: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "Conversation saved to %s\n", arg)
	case "!load":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: !load <file>")
			return false
		}
		if err := r.history.Load(arg); err != nil {
			fmt.Fprintf(r.out, "Error loading conversation: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "Conversation loaded from %s\n", arg)
	case "!run":
		r.runCommand(ctx, arg)
	case "!share":
		r.share(ctx, arg)
	case "!bash":
		r.interpreterCommand(ctx, arg, extract.LangBash)
	case "!python":
		r.interpreterCommand(ctx, arg, extract.LangPython)
	default:
		fmt.Fprintf(r.out, "Unknown command %s (try !help)\n", name)
	}
	return false
}

func (r *REPL) printHelp() {
	help := []struct{ cmd, desc string }{
		{"!run [n]", "Run command block n (default: 1)"},
		{"!run all", "Run all command blocks"},
		{"!run select", "Choose a command block interactively"},
		{"!share [context]", "Share collected command output with the assistant"},
		{"!bash [cmd]", "Run a bash command, or start a recorded bash session"},
		{"!python", "Start a recorded python session"},
		{"!save <file>", "Save current session to file"},
		{"!load <file>", "Load conversation from file"},
		{"!tokens", "Show token usage and cost"},
		{"!clear", "Clear current session history"},
		{"!exit", "Exit the program"},
	}
	fmt.Fprintln(r.out, "\nCommands:")
	for _, h := range help {
		fmt.Fprintf(r.out, "  %-18s %s\n", h.cmd, h.desc)
	}
}

// runCommand handles !run with its optional target: a block number, "all",
// or "select". A fresh batch always discards previously collected outputs.
func (r *REPL) runCommand(ctx context.Context, target string) {
	blocks := r.history.LastBlocks()
	if len(blocks) == 0 && target != "select" {
		fmt.Fprintln(r.out, "No commands found in last response")
		return
	}
	r.checker.Annotate(ctx, blocks)
	r.outputs.Reset()

	if target == "" {
		target = "1"
	}
	switch target {
	case "all":
		for _, b := range blocks {
			if !b.Valid {
				fmt.Fprintf(r.out, "\nSkipping block %d: %s\n", b.Index, b.Reason)
				continue
			}
			fmt.Fprintf(r.out, "\nExecuting block %d:\n", b.Index)
			if interrupted := r.runBlock(ctx, b); interrupted {
				fmt.Fprintln(r.out, "\nExecution stopped by user")
				break
			}
		}
	case "select":
		r.runSelect(ctx)
	default:
		n, err := strconv.Atoi(target)
		if err != nil {
			fmt.Fprintf(r.out, "Invalid block number: %s\n", target)
			return
		}
		if n < 1 || n > len(blocks) {
			fmt.Fprintf(r.out, "Block number %d out of range\n", n)
			return
		}
		b := blocks[n-1]
		if !b.Valid {
			fmt.Fprintf(r.out, "Block %d failed validation: %s\n", b.Index, b.Reason)
			return
		}
		r.runBlock(ctx, b)
	}
}

// runBlock executes one validated block and records its output for !share.
// Each call returns only after the executor has finished cleanup, so batches
// are strictly sequential.
func (r *REPL) runBlock(ctx context.Context, b extract.Block) (interrupted bool) {
	res, err := r.exec.Execute(ctx, executor.Request{Body: b.Body, Lang: b.Lang, Capture: true})
	if err != nil {
		if errors.Is(err, executor.ErrEmptyCommand) {
			fmt.Fprintln(r.out, "(empty block, nothing to run)")
		} else {
			fmt.Fprintf(r.out, "Error executing block %d: %v\n", b.Index, err)
		}
		return false
	}
	if !res.Interrupted && res.ExitCode != 0 {
		fmt.Fprintf(r.out, "(command exited with status %d)\n", res.ExitCode)
	}
	if res.Output != "" {
		r.outputs.Add(b.Index, res.Output)
	}
	return res.Interrupted
}

// runSelect walks backwards through the conversation showing each response's
// blocks. Enter moves to an older response, q cancels, a number runs that
// block. Numbering restarts at 1 within each response.
func (r *REPL) runSelect(ctx context.Context) {
	interactions := r.history.Interactions()

	for i := len(interactions) - 1; i >= 0; i-- {
		blocks := interactions[i].Blocks
		if len(blocks) == 0 {
			continue
		}

		label := "Current response"
		if i != len(interactions)-1 {
			label = interactions[i].User
			if len(label) > 50 {
				label = label[:50] + "..."
			}
		}
		fmt.Fprintf(r.out, "\n%s:\n", label)
		for _, b := range blocks {
			fmt.Fprintf(r.out, "\nBlock %d (%s):\n%s\n", b.Index, b.Lang, b.Body)
		}

		for {
			fmt.Fprint(r.out, "\nSelect block number (Enter for older commands, 'q' to cancel): ")
			line, err := r.in.ReadString('\n')
			if err != nil {
				fmt.Fprintln(r.out, "\nSelection cancelled")
				return
			}
			choice := strings.ToLower(strings.TrimSpace(line))

			if choice == "q" {
				fmt.Fprintln(r.out, "Selection cancelled")
				return
			}
			if choice == "" {
				break // older response
			}
			n, err := strconv.Atoi(choice)
			if err != nil {
				fmt.Fprintf(r.out, "Invalid input: %s\n", choice)
				continue
			}
			if n < 1 || n > len(blocks) {
				fmt.Fprintf(r.out, "Block number %d out of range\n", n)
				continue
			}
			picked := []extract.Block{blocks[n-1]}
			r.checker.Annotate(ctx, picked)
			b := picked[0]
			if !b.Valid {
				fmt.Fprintf(r.out, "Block %d failed validation: %s\n", b.Index, b.Reason)
				continue
			}
			r.runBlock(ctx, b)
			return
		}
	}
	fmt.Fprintln(r.out, "No more commands found in history")
}

// formatShareMessage renders collected outputs as fenced blocks for the API.
func formatShareMessage(entries []session.CommandOutput, extra string) string {
	var parts []string
	for _, e := range entries {
		header := fmt.Sprintf("Output from block %d:", e.Block)
		if e.Block < 1 {
			header = "Output from shell command:"
		}
		parts = append(parts, fmt.Sprintf("%s\n```\n%s\n```", header, strings.TrimRight(e.Text, "\n")))
	}
	msg := "Here is the output from my commands:\n\n" + strings.Join(parts, "\n\n")
	if extra != "" {
		msg = extra + "\n\n" + msg
	}
	return msg
}

func (r *REPL) share(ctx context.Context, extra string) {
	entries := r.outputs.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "No command outputs to share")
		return
	}
	r.ask(ctx, formatShareMessage(entries, extra))
}

// interpreterCommand backs !bash and !python. With an argument it validates
// and runs the text as a one-off block; without one it hands the terminal to
// a recorded interactive session and appends the transcript to history.
func (r *REPL) interpreterCommand(ctx context.Context, arg string, lang extract.Lang) {
	if arg != "" {
		if err := r.checker.Check(ctx, lang, arg); err != nil {
			fmt.Fprintf(r.out, "Command failed validation: %v\n", err)
			return
		}
		res, err := r.exec.Execute(ctx, executor.Request{Body: arg, Lang: lang, Capture: true})
		if err != nil {
			fmt.Fprintf(r.out, "Error executing command: %v\n", err)
			return
		}
		if res.Output != "" {
			r.outputs.Add(0, res.Output)
			r.history.Append(
				fmt.Sprintf("!%s %s", interpName(lang), arg),
				fmt.Sprintf("Command output:\n```\n%s\n```", strings.TrimRight(res.Output, "\n")),
			)
		}
		return
	}

	fmt.Fprintf(r.out, "\nStarting interactive %s session (type 'exit' to return)\n---\n", interpName(lang))
	var restore func()
	if r.dispatcher != nil {
		restore = r.dispatcher.Suspend()
	}
	transcript, err := r.exec.Interactive(lang)
	if restore != nil {
		restore()
	}
	fmt.Fprintln(r.out, "---")
	if err != nil {
		logging.ErrorLog("interactive session failed: %v", err)
		fmt.Fprintf(r.out, "Error starting session: %v\n", err)
		return
	}
	if transcript != "" {
		r.history.Append(
			fmt.Sprintf("!%s (interactive session)", interpName(lang)),
			fmt.Sprintf("Session transcript:\n```\n%s\n```", strings.TrimRight(transcript, "\n")),
		)
	}
}

func interpName(lang extract.Lang) string {
	if lang == extract.LangPython {
		return "python"
	}
	return "bash"
}
