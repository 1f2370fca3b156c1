package prompts

import (
	"os"
	"strings"
	"testing"
)

func TestBaseNonEmpty(t *testing.T) {
	b := Base()
	if b == "" {
		t.Fatal("embedded base prompt is empty")
	}
	if !strings.Contains(b, "```bash") {
		t.Error("base prompt does not instruct bash code blocks")
	}
}

func TestCombineSections(t *testing.T) {
	SetMetadata("Directory: /tmp/work")
	defer SetMetadata("")

	got := Combine("Prefer POSIX sh.")
	if !strings.HasPrefix(got, Base()) {
		t.Error("combined prompt does not start with the base prompt")
	}
	if !strings.Contains(got, "Directory: /tmp/work") {
		t.Error("combined prompt missing environment context")
	}
	if !strings.HasSuffix(got, "Prefer POSIX sh.") {
		t.Error("combined prompt missing user portion")
	}
}

func TestCombineWithoutUserPortion(t *testing.T) {
	SetMetadata("")
	if got := Combine("  "); got != Base() {
		t.Errorf("Combine with blank user prompt = %q, want base only", got)
	}
}

func TestRefreshMetadata(t *testing.T) {
	RefreshMetadata()
	defer SetMetadata("")

	cwd, _ := os.Getwd()
	if !strings.Contains(Combine(""), cwd) {
		t.Error("refreshed metadata missing working directory")
	}
}
