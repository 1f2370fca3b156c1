package extract

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractSingleBlock(t *testing.T) {
	text := "Run:\n```bash\necho hi\n```"
	blocks := Extract(text, ModeStrict)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Lang != LangBash {
		t.Errorf("lang = %q, want bash", blocks[0].Lang)
	}
	if blocks[0].Body != "echo hi" {
		t.Errorf("body = %q, want %q", blocks[0].Body, "echo hi")
	}
	if blocks[0].Index != 1 {
		t.Errorf("index = %d, want 1", blocks[0].Index)
	}
}

func TestExtractModes(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		mode   Mode
		bodies []string
		langs  []Lang
	}{
		{
			name:   "tagged bash",
			text:   "```bash\nls -la\n```",
			mode:   ModeStrict,
			bodies: []string{"ls -la"},
			langs:  []Lang{LangBash},
		},
		{
			name:   "sh alias maps to bash",
			text:   "```sh\npwd\n```",
			mode:   ModeStrict,
			bodies: []string{"pwd"},
			langs:  []Lang{LangBash},
		},
		{
			name:   "python tag",
			text:   "```python\nprint('hi')\n```",
			mode:   ModeStrict,
			bodies: []string{"print('hi')"},
			langs:  []Lang{LangPython},
		},
		{
			name:   "untagged ignored in strict mode",
			text:   "```\necho hidden\n```",
			mode:   ModeStrict,
			bodies: nil,
		},
		{
			name:   "untagged defaults to bash in permissive mode",
			text:   "```\necho hidden\n```",
			mode:   ModePermissive,
			bodies: []string{"echo hidden"},
			langs:  []Lang{LangBash},
		},
		{
			name:   "unknown tag ignored in both modes",
			text:   "```ruby\nputs 1\n```",
			mode:   ModePermissive,
			bodies: nil,
		},
		{
			name:   "unterminated fence yields nothing",
			text:   "```bash\necho never closed",
			mode:   ModePermissive,
			bodies: nil,
		},
		{
			name:   "empty body dropped",
			text:   "```bash\n\n   \n```",
			mode:   ModeStrict,
			bodies: nil,
		},
		{
			name:   "multiple blocks in order",
			text:   "first\n```bash\necho one\n```\nmiddle\n```python\nprint(2)\n```\nlast",
			mode:   ModeStrict,
			bodies: []string{"echo one", "print(2)"},
			langs:  []Lang{LangBash, LangPython},
		},
		{
			name:   "multiline body preserved and trimmed",
			text:   "```bash\n\ncd /tmp\nls\n\n```",
			mode:   ModeStrict,
			bodies: []string{"cd /tmp\nls"},
			langs:  []Lang{LangBash},
		},
		{
			name:   "ignored fence body not reopened by its closer",
			text:   "```ruby\nputs 1\n```\nafter\n```bash\necho ok\n```",
			mode:   ModeStrict,
			bodies: []string{"echo ok"},
			langs:  []Lang{LangBash},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := Extract(tt.text, tt.mode)
			var bodies []string
			var langs []Lang
			for _, b := range blocks {
				bodies = append(bodies, b.Body)
				langs = append(langs, b.Lang)
			}
			if !reflect.DeepEqual(bodies, tt.bodies) {
				t.Errorf("bodies = %q, want %q", bodies, tt.bodies)
			}
			if tt.langs != nil && !reflect.DeepEqual(langs, tt.langs) {
				t.Errorf("langs = %v, want %v", langs, tt.langs)
			}
		})
	}
}

func TestExtractBodiesNeverContainDelimiters(t *testing.T) {
	text := "```bash\necho a\n```\n```\nplain\n```\n```python\nx = 1\n```"
	for _, mode := range []Mode{ModeStrict, ModePermissive} {
		for _, b := range Extract(text, mode) {
			for _, line := range strings.Split(b.Body, "\n") {
				if strings.TrimSpace(line) == "```" {
					t.Errorf("mode %v: body contains fence delimiter: %q", mode, b.Body)
				}
			}
		}
	}
}

func TestExtractIndicesSequential(t *testing.T) {
	text := "```bash\na\n```\n```bash\nb\n```\n```bash\nc\n```"
	blocks := Extract(text, ModeStrict)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	for i, b := range blocks {
		if b.Index != i+1 {
			t.Errorf("block %d has index %d", i, b.Index)
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"permissive", "Permissive "} {
		mode, err := ParseMode(s)
		if err != nil || mode != ModePermissive {
			t.Errorf("ParseMode(%q) = %v, %v; want permissive", s, mode, err)
		}
	}
	for _, s := range []string{"", "strict", "STRICT"} {
		mode, err := ParseMode(s)
		if err != nil || mode != ModeStrict {
			t.Errorf("ParseMode(%q) = %v, %v; want strict", s, mode, err)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("ParseMode(bogus) did not error")
	}
}
