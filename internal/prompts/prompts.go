// Package prompts carries the built-in system prompt and the environment
// context appended to it.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
)

//go:embed system_claude_cli.txt
var baseSystemPrompt string

var (
	metadataMu sync.RWMutex
	metadata   string
)

// Base returns the built-in shell assistant system prompt.
func Base() string {
	return strings.TrimSpace(baseSystemPrompt)
}

// Combine joins the built-in prompt, the environment context, and an
// optional user-provided prompt from the config.
func Combine(user string) string {
	sections := []string{Base()}

	if meta := getMetadata(); meta != "" {
		sections = append(sections, "Current context:\n"+meta)
	}

	if trimmed := strings.TrimSpace(user); trimmed != "" {
		sections = append(sections, trimmed)
	}

	return strings.Join(sections, "\n\n")
}

// SetMetadata defines the environment metadata appended to the system prompt.
func SetMetadata(info string) {
	metadataMu.Lock()
	defer metadataMu.Unlock()
	metadata = strings.TrimSpace(info)
}

// RefreshMetadata records the current working directory as the environment
// context. Called at startup and after each executed batch, since commands
// may have changed state the assistant should know about.
func RefreshMetadata() {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "unknown"
	}
	SetMetadata(fmt.Sprintf("Directory: %s", cwd))
}

func getMetadata() string {
	metadataMu.RLock()
	defer metadataMu.RUnlock()
	return metadata
}
