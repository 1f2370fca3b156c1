// Package session holds the in-memory conversation history, the blocks
// extracted from each reply, and the command outputs collected for sharing.
package session

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/GlassOnTin/claude-cli/internal/anthropic"
	"github.com/GlassOnTin/claude-cli/internal/extract"
)

// apiHistoryLimit caps how many prior interactions travel with each request.
const apiHistoryLimit = 10

// Interaction is one completed user/assistant exchange. Blocks are extracted
// once when the interaction is appended and never mutated afterwards.
type Interaction struct {
	User      string          `json:"user"`
	Assistant string          `json:"assistant"`
	Blocks    []extract.Block `json:"blocks,omitempty"`
}

// History is the append-only record of the current session.
type History struct {
	mu           sync.Mutex
	interactions []Interaction
	mode         extract.Mode
	logger       *log.Logger
}

// NewHistory returns an empty history extracting blocks in the given mode.
func NewHistory(mode extract.Mode, logger *log.Logger) *History {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &History{mode: mode, logger: logger}
}

// Append records an exchange, extracting command blocks from the reply.
func (h *History) Append(user, assistant string) {
	blocks := extract.Extract(assistant, h.mode)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interactions = append(h.interactions, Interaction{
		User:      user,
		Assistant: assistant,
		Blocks:    blocks,
	})
	h.logger.Printf("[session] interaction %d recorded (%d blocks)", len(h.interactions), len(blocks))
}

// Interactions returns a copy of the full history.
func (h *History) Interactions() []Interaction {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Interaction, len(h.interactions))
	copy(out, h.interactions)
	return out
}

// Len reports the number of recorded interactions.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.interactions)
}

// LastBlocks returns the blocks from the most recent reply.
func (h *History) LastBlocks() []extract.Block {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.interactions) == 0 {
		return nil
	}
	last := h.interactions[len(h.interactions)-1]
	out := make([]extract.Block, len(last.Blocks))
	copy(out, last.Blocks)
	return out
}

// MessagesForAPI flattens the most recent interactions into alternating
// user/assistant messages for the next request.
func (h *History) MessagesForAPI() []anthropic.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := 0
	if len(h.interactions) > apiHistoryLimit {
		start = len(h.interactions) - apiHistoryLimit
	}
	msgs := make([]anthropic.Message, 0, 2*(len(h.interactions)-start))
	for _, it := range h.interactions[start:] {
		msgs = append(msgs,
			anthropic.Message{Role: "user", Content: it.User},
			anthropic.Message{Role: "assistant", Content: it.Assistant},
		)
	}
	return msgs
}

// Clear wipes the session history.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interactions = nil
}

// Save persists the whole history to path as JSON.
func (h *History) Save(path string) error {
	h.mu.Lock()
	data, err := json.MarshalIndent(h.interactions, "", "  ")
	h.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// Load replaces the history wholesale with the contents of path.
func (h *History) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	var interactions []Interaction
	if err := json.Unmarshal(data, &interactions); err != nil {
		return fmt.Errorf("parse conversation: %w", err)
	}
	h.mu.Lock()
	h.interactions = interactions
	h.mu.Unlock()
	return nil
}

// CommandOutput pairs a block index with the transcript it produced.
type CommandOutput struct {
	Block int
	Text  string
}

// Outputs collects the transcripts from the current run batch, in execution
// order, for a later share action.
type Outputs struct {
	mu      sync.Mutex
	entries []CommandOutput
}

// Reset drops previously collected outputs; called when a new batch starts.
func (o *Outputs) Reset() {
	o.mu.Lock()
	o.entries = nil
	o.mu.Unlock()
}

// Add records one block's captured output.
func (o *Outputs) Add(block int, text string) {
	o.mu.Lock()
	o.entries = append(o.entries, CommandOutput{Block: block, Text: text})
	o.mu.Unlock()
}

// Entries returns the collected outputs in order.
func (o *Outputs) Entries() []CommandOutput {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]CommandOutput, len(o.entries))
	copy(out, o.entries)
	return out
}

// Empty reports whether anything has been collected.
func (o *Outputs) Empty() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries) == 0
}
