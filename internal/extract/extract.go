// Package extract scans assistant replies for fenced command blocks.
//
// This is deliberately not a Markdown parser: fences are matched on exact
// trimmed lines only, so nested fences, inline code spans, and escaped
// delimiters are out of scope.
package extract

import (
	"fmt"
	"strings"
)

const fence = "```"

// Lang identifies the dialect a block was tagged with.
type Lang string

const (
	LangBash   Lang = "bash"
	LangPython Lang = "python"
)

// Mode controls how untagged fences are treated.
type Mode int

const (
	// ModeStrict ignores fences without a recognized language tag.
	ModeStrict Mode = iota
	// ModePermissive treats untagged fences as bash.
	ModePermissive
)

// ParseMode maps a config string onto a Mode. The empty string means the
// default, strict; anything else unrecognized is an error.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return ModeStrict, nil
	case "permissive":
		return ModePermissive, nil
	default:
		return ModeStrict, fmt.Errorf("unknown mode %q (want strict or permissive)", s)
	}
}

// Block is one candidate command extracted from a reply.
type Block struct {
	Index  int    `json:"index"`
	Lang   Lang   `json:"lang"`
	Body   string `json:"body"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// langTags maps opening-fence tags onto the dialect they declare.
var langTags = map[string]Lang{
	"bash":    LangBash,
	"sh":      LangBash,
	"shell":   LangBash,
	"python":  LangPython,
	"python3": LangPython,
	"py":      LangPython,
}

// Extract walks text line by line and returns the fenced blocks in order.
// Every opening fence is tracked so that block spans never overlap, but only
// fences with a recognized tag (or, in permissive mode, no tag) emit a block.
// An unterminated fence yields nothing; fence delimiter lines are never part
// of a body.
func Extract(text string, mode Mode) []Block {
	var (
		blocks  []Block
		body    []string
		lang    Lang
		inBlock bool
		emit    bool
	)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case !inBlock && strings.HasPrefix(trimmed, fence):
			tag := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, fence)))
			inBlock = true
			body = body[:0]
			if l, ok := langTags[tag]; ok {
				lang, emit = l, true
			} else if tag == "" && mode == ModePermissive {
				lang, emit = LangBash, true
			} else {
				emit = false
			}
		case inBlock && trimmed == fence:
			if emit {
				joined := strings.TrimSpace(strings.Join(body, "\n"))
				if joined != "" {
					blocks = append(blocks, Block{
						Index: len(blocks) + 1,
						Lang:  lang,
						Body:  joined,
					})
				}
			}
			inBlock = false
		case inBlock:
			body = append(body, line)
		}
	}

	return blocks
}
