package repl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GlassOnTin/claude-cli/internal/anthropic"
	"github.com/GlassOnTin/claude-cli/internal/config"
	"github.com/GlassOnTin/claude-cli/internal/executor"
	"github.com/GlassOnTin/claude-cli/internal/extract"
	"github.com/GlassOnTin/claude-cli/internal/session"
	"github.com/GlassOnTin/claude-cli/internal/tokens"
	"github.com/GlassOnTin/claude-cli/internal/validate"
)

type fakeMessenger struct {
	reply   anthropic.Reply
	err     error
	lastReq anthropic.Request
}

func (f *fakeMessenger) Messages(_ context.Context, req anthropic.Request) (anthropic.Reply, error) {
	f.lastReq = req
	return f.reply, f.err
}

func newTestREPL(t *testing.T, m Messenger) (*REPL, *bytes.Buffer) {
	t.Helper()
	cfg := config.Config{}
	var out bytes.Buffer
	r := &REPL{
		cfg:     cfg,
		client:  m,
		checker: validate.New(nil),
		exec:    executor.New(executor.NewPipeRecorder(io.Discard), nil),
		history: session.NewHistory(extract.ModeStrict, nil),
		outputs: &session.Outputs{},
		usage:   tokens.NewUsage(0),
		logger:  log.New(io.Discard, "", 0),
		in:      bufio.NewReader(strings.NewReader("")),
		out:     &out,
	}
	return r, &out
}

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func TestSplitBang(t *testing.T) {
	tests := []struct {
		line, name, arg string
	}{
		{"!run", "!run", ""},
		{"!run all", "!run", "all"},
		{"!save  notes.json ", "!save", "notes.json"},
		{"!share more context here", "!share", "more context here"},
	}
	for _, tt := range tests {
		name, arg := splitBang(tt.line)
		if name != tt.name || arg != tt.arg {
			t.Errorf("splitBang(%q) = %q, %q; want %q, %q", tt.line, name, arg, tt.name, tt.arg)
		}
	}
}

func TestFormatShareMessage(t *testing.T) {
	entries := []session.CommandOutput{
		{Block: 1, Text: "hello\n"},
		{Block: 0, Text: "from bash"},
	}
	msg := formatShareMessage(entries, "after running your suggestion")
	if !strings.HasPrefix(msg, "after running your suggestion\n\n") {
		t.Errorf("message missing extra context prefix: %q", msg)
	}
	if !strings.Contains(msg, "Output from block 1:\n```\nhello\n```") {
		t.Errorf("message missing numbered block: %q", msg)
	}
	if !strings.Contains(msg, "Output from shell command:") {
		t.Errorf("message missing shell header: %q", msg)
	}
}

func TestHandleBangUnknown(t *testing.T) {
	r, out := newTestREPL(t, &fakeMessenger{})
	if exit := r.handleBang(context.Background(), "!frobnicate"); exit {
		t.Error("unknown command requested exit")
	}
	if !strings.Contains(out.String(), "Unknown command !frobnicate") {
		t.Errorf("output = %q", out.String())
	}
}

func TestExitCommand(t *testing.T) {
	r, _ := newTestREPL(t, &fakeMessenger{})
	if exit := r.handleBang(context.Background(), "!exit"); !exit {
		t.Error("!exit did not request exit")
	}
}

func TestTokensCommand(t *testing.T) {
	r, out := newTestREPL(t, &fakeMessenger{})
	r.usage.Add(500)
	r.handleBang(context.Background(), "!tokens")
	if !strings.Contains(out.String(), "500") {
		t.Errorf("usage summary missing token count: %q", out.String())
	}
}

func TestClearCommand(t *testing.T) {
	r, out := newTestREPL(t, &fakeMessenger{})
	r.history.Append("hi", "hello")
	r.outputs.Add(1, "stale")

	r.handleBang(context.Background(), "!clear")

	if r.history.Len() != 0 {
		t.Error("history not cleared")
	}
	if !r.outputs.Empty() {
		t.Error("outputs not cleared")
	}
	if !strings.Contains(out.String(), "History cleared") {
		t.Errorf("output = %q", out.String())
	}
}

func TestChatAppendsHistory(t *testing.T) {
	m := &fakeMessenger{reply: anthropic.Reply{Text: "Run:\n```bash\necho hi\n```", Tokens: 33}}
	r, out := newTestREPL(t, m)

	if exit := r.handleLine(context.Background(), "how do I greet"); exit {
		t.Error("chat line requested exit")
	}

	if r.history.Len() != 1 {
		t.Fatalf("history len = %d, want 1", r.history.Len())
	}
	if len(m.lastReq.Messages) != 1 || m.lastReq.Messages[0].Content != "how do I greet" {
		t.Errorf("request messages = %+v", m.lastReq.Messages)
	}
	if m.lastReq.System == "" {
		t.Error("request missing system prompt")
	}
	if r.usage.Total() != 33 {
		t.Errorf("usage = %d, want 33", r.usage.Total())
	}
	if !strings.Contains(out.String(), "Tokens used in this interaction: 33") {
		t.Errorf("output = %q", out.String())
	}
	if blocks := r.history.LastBlocks(); len(blocks) != 1 {
		t.Errorf("blocks extracted from reply = %d, want 1", len(blocks))
	}
}

func TestChatAPIErrorBecomesSyntheticReply(t *testing.T) {
	m := &fakeMessenger{err: errors.New("api error (status 500): overloaded")}
	r, out := newTestREPL(t, m)

	r.handleLine(context.Background(), "hello?")

	if r.history.Len() != 1 {
		t.Fatalf("history len = %d, want 1", r.history.Len())
	}
	last := r.history.Interactions()[0]
	if !strings.HasPrefix(last.Assistant, "Error:") {
		t.Errorf("assistant message = %q, want synthetic error", last.Assistant)
	}
	if !strings.Contains(out.String(), "overloaded") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunWithNoBlocks(t *testing.T) {
	r, out := newTestREPL(t, &fakeMessenger{})
	r.handleBang(context.Background(), "!run")
	if !strings.Contains(out.String(), "No commands found in last response") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunAllExecutesSequentially(t *testing.T) {
	requireBash(t)
	r, out := newTestREPL(t, &fakeMessenger{})
	r.history.Append("two blocks please",
		"First:\n```bash\necho alpha\n```\nSecond:\n```bash\necho beta\n```")

	r.handleBang(context.Background(), "!run all")

	entries := r.outputs.Entries()
	if len(entries) != 2 {
		t.Fatalf("outputs len = %d, want 2", len(entries))
	}
	if entries[0].Block != 1 || !strings.Contains(entries[0].Text, "alpha") {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Block != 2 || !strings.Contains(entries[1].Text, "beta") {
		t.Errorf("entries[1] = %+v", entries[1])
	}
	if !strings.Contains(out.String(), "Executing block 1") || !strings.Contains(out.String(), "Executing block 2") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunSkipsInvalidBlock(t *testing.T) {
	requireBash(t)
	r, out := newTestREPL(t, &fakeMessenger{})
	r.history.Append("mixed blocks",
		"Bad:\n```bash\nif true; then\n```\nGood:\n```bash\necho ok\n```")

	r.handleBang(context.Background(), "!run all")

	entries := r.outputs.Entries()
	if len(entries) != 1 || entries[0].Block != 2 {
		t.Fatalf("outputs = %+v, want only block 2", entries)
	}
	if !strings.Contains(out.String(), "Skipping block 1") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunBlockNumberOutOfRange(t *testing.T) {
	r, out := newTestREPL(t, &fakeMessenger{})
	r.history.Append("one block", "```bash\necho only\n```")

	r.handleBang(context.Background(), "!run 5")
	if !strings.Contains(out.String(), "Block number 5 out of range") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	r.handleBang(context.Background(), "!run banana")
	if !strings.Contains(out.String(), "Invalid block number: banana") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunSelectWalksBackwards(t *testing.T) {
	requireBash(t)
	r, out := newTestREPL(t, &fakeMessenger{})
	r.history.Append("older request", "```bash\necho older\n```")
	r.history.Append("newer request", "```bash\necho newer\n```")

	// Enter skips to the older response, then block 1 runs from it.
	r.in = bufio.NewReader(strings.NewReader("\n1\n"))
	r.handleBang(context.Background(), "!run select")

	entries := r.outputs.Entries()
	if len(entries) != 1 || !strings.Contains(entries[0].Text, "older") {
		t.Fatalf("entries = %+v, want output from older block", entries)
	}
	if !strings.Contains(out.String(), "Current response") {
		t.Errorf("output missing current response header: %q", out.String())
	}
	if !strings.Contains(out.String(), "older request") {
		t.Errorf("output missing older response label: %q", out.String())
	}
}

func TestRunSelectCancel(t *testing.T) {
	r, out := newTestREPL(t, &fakeMessenger{})
	r.history.Append("request", "```bash\necho x\n```")

	r.in = bufio.NewReader(strings.NewReader("q\n"))
	r.handleBang(context.Background(), "!run select")

	if !r.outputs.Empty() {
		t.Error("cancelled selection still executed something")
	}
	if !strings.Contains(out.String(), "Selection cancelled") {
		t.Errorf("output = %q", out.String())
	}
}

func TestShareWithNothingCollected(t *testing.T) {
	r, out := newTestREPL(t, &fakeMessenger{})
	r.handleBang(context.Background(), "!share")
	if !strings.Contains(out.String(), "No command outputs to share") {
		t.Errorf("output = %q", out.String())
	}
}

func TestShareSendsCollectedOutputs(t *testing.T) {
	m := &fakeMessenger{reply: anthropic.Reply{Text: "Looks good.", Tokens: 5}}
	r, _ := newTestREPL(t, m)
	r.outputs.Add(1, "file1\nfile2\n")

	r.handleBang(context.Background(), "!share these are my files")

	sent := m.lastReq.Messages[len(m.lastReq.Messages)-1].Content
	if !strings.Contains(sent, "Output from block 1") || !strings.Contains(sent, "file1") {
		t.Errorf("shared message = %q", sent)
	}
	if !strings.HasPrefix(sent, "these are my files") {
		t.Errorf("shared message missing context prefix: %q", sent)
	}
}

func TestBashInlineCommand(t *testing.T) {
	requireBash(t)
	r, _ := newTestREPL(t, &fakeMessenger{})

	r.handleBang(context.Background(), "!bash echo inline")

	entries := r.outputs.Entries()
	if len(entries) != 1 || !strings.Contains(entries[0].Text, "inline") {
		t.Fatalf("entries = %+v", entries)
	}
	if r.history.Len() != 1 {
		t.Fatalf("history len = %d, want 1", r.history.Len())
	}
	if !strings.Contains(r.history.Interactions()[0].Assistant, "inline") {
		t.Error("transcript not recorded in history")
	}
}

func TestBashInlineRejectsBrokenSyntax(t *testing.T) {
	requireBash(t)
	r, out := newTestREPL(t, &fakeMessenger{})

	r.handleBang(context.Background(), "!bash if true; then")

	if !r.outputs.Empty() {
		t.Error("invalid command still executed")
	}
	if !strings.Contains(out.String(), "Command failed validation") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSaveAndLoadCommands(t *testing.T) {
	r, out := newTestREPL(t, &fakeMessenger{})
	r.history.Append("hi", "hello")
	path := filepath.Join(t.TempDir(), "conv.json")

	r.handleBang(context.Background(), "!save "+path)
	if !strings.Contains(out.String(), "Conversation saved") {
		t.Fatalf("output = %q", out.String())
	}

	r.history.Clear()
	out.Reset()
	r.handleBang(context.Background(), "!load "+path)
	if r.history.Len() != 1 {
		t.Errorf("history len after load = %d, want 1", r.history.Len())
	}

	out.Reset()
	r.handleBang(context.Background(), "!save")
	if !strings.Contains(out.String(), "Usage: !save <file>") {
		t.Errorf("output = %q", out.String())
	}
}

func TestHelpListsCommands(t *testing.T) {
	r, out := newTestREPL(t, &fakeMessenger{})
	r.handleBang(context.Background(), "!help")
	for _, want := range []string{"!run", "!share", "!save", "!tokens", "!exit"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("help output missing %s", want)
		}
	}
}
