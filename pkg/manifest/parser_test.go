package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Promptonauts/convey/pkg/models"
)

func TestParse_FullManifest(t *testing.T) {
	yaml := `
dependencies:
  override:
    - ./scripts/install-toolchain.sh
test:
  override:
    - toolchain run {{channel}} make test
cache_directories:
  - "~/.toolchain"
  - "target"
`
	p, err := Parse([]byte(yaml), "ci.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(p.Phases))
	}
	if p.Phases[0].Name != PhaseDependencies {
		t.Errorf("expected first phase %q, got %q", PhaseDependencies, p.Phases[0].Name)
	}
	if p.Phases[1].Name != PhaseTest {
		t.Errorf("expected second phase %q, got %q", PhaseTest, p.Phases[1].Name)
	}
	if got := p.Phases[1].Commands[0]; got != "toolchain run {{channel}} make test" {
		t.Errorf("command not preserved verbatim: %q", got)
	}
	if len(p.CacheDirs) != 2 || p.CacheDirs[1] != "target" {
		t.Errorf("unexpected cache dirs: %v", p.CacheDirs)
	}
}

func TestParse_PhaseOrderIsFixed(t *testing.T) {
	// test declared before dependencies in the document; execution order
	// must still be dependencies first.
	yaml := `
test:
  override:
    - make test
dependencies:
  override:
    - make deps
`
	p, err := Parse([]byte(yaml), "ci.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Phases[0].Name != PhaseDependencies || p.Phases[1].Name != PhaseTest {
		t.Errorf("wrong phase order: %s, %s", p.Phases[0].Name, p.Phases[1].Name)
	}
}

func TestParse_SinglePhase(t *testing.T) {
	yaml := `
test:
  override:
    - make test
`
	p, err := Parse([]byte(yaml), "ci.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Phases) != 1 || p.Phases[0].Name != PhaseTest {
		t.Fatalf("expected single test phase, got %+v", p.Phases)
	}
}

func TestParse_EmptyOverrideIsNoop(t *testing.T) {
	yaml := `
dependencies:
  override: []
test:
  override:
    - make test
`
	p, err := Parse([]byte(yaml), "ci.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(p.Phases))
	}
	if len(p.Phases[0].Commands) != 0 {
		t.Errorf("expected no-op dependencies phase, got %v", p.Phases[0].Commands)
	}
	if p.CommandCount() != 1 {
		t.Errorf("expected 1 command total, got %d", p.CommandCount())
	}
}

func TestParse_UnknownKeyRejected(t *testing.T) {
	yaml := `
test:
  override:
    - make test
deploy:
  override:
    - make deploy
`
	_, err := Parse([]byte(yaml), "ci.yaml")
	if err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestParse_EmptyManifest(t *testing.T) {
	_, err := Parse([]byte(""), "ci.yaml")
	if err == nil {
		t.Fatal("expected error for empty manifest")
	}
	if !strings.Contains(err.Error(), "ci.yaml") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestParse_NoPhases(t *testing.T) {
	yaml := `
cache_directories:
  - target
`
	_, err := Parse([]byte(yaml), "ci.yaml")
	if err == nil {
		t.Fatal("expected error for manifest without phases")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci.yaml")
	content := `
test:
  override:
    - make test
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CommandCount() != 1 {
		t.Errorf("expected 1 command, got %d", p.CommandCount())
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseChannels(t *testing.T) {
	channels, err := ParseChannels([]string{"stable", "nightly", "beta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []models.Channel{models.ChannelStable, models.ChannelNightly, models.ChannelBeta}
	for i, c := range want {
		if channels[i] != c {
			t.Errorf("channel %d: expected %s, got %s", i, c, channels[i])
		}
	}

	if _, err := ParseChannels([]string{"stable", "canary"}); err == nil {
		t.Error("expected error for unknown channel")
	}
}
