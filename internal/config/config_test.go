package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicyIsUsable(t *testing.T) {
	p := DefaultPolicy()
	if !p.Whitelisted("identity.verify") {
		t.Fatalf("identity.verify must be whitelisted by default")
	}
	if p.Whitelisted("records.export") {
		t.Fatalf("records.export must not be whitelisted")
	}
	if p.MaxTurns <= 0 || p.Retry.MaxAttempts <= 0 {
		t.Fatalf("defaults must set positive bounds: %+v", p)
	}
}

func TestRiskLevelUnknownActionEscalates(t *testing.T) {
	p := DefaultPolicy()
	if got := p.RiskLevel("unknown.action"); got != p.RiskThreshold {
		t.Fatalf("unknown action risk = %d, want threshold %d", got, p.RiskThreshold)
	}
	if got := p.RiskLevel("identity.verify"); got != 1 {
		t.Fatalf("identity.verify risk = %d, want 1", got)
	}
}

func TestLoadPolicyFileEmptyPathUsesDefaults(t *testing.T) {
	p, err := LoadPolicyFile("")
	if err != nil {
		t.Fatalf("LoadPolicyFile failed: %v", err)
	}
	if p.MaxTurns != DefaultPolicy().MaxTurns {
		t.Fatalf("expected defaults, got %+v", p)
	}
}

func TestLoadPolicyFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := []byte("max_turns: 10\nwhitelist:\n  - identity.verify\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}

	p, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("LoadPolicyFile failed: %v", err)
	}
	if p.MaxTurns != 10 {
		t.Fatalf("max_turns not overridden: %d", p.MaxTurns)
	}
	if len(p.Whitelist) != 1 || p.Whitelist[0] != "identity.verify" {
		t.Fatalf("whitelist not overridden: %+v", p.Whitelist)
	}
	// Fields the file omits keep their defaults.
	if p.Retry.MaxAttempts != DefaultPolicy().Retry.MaxAttempts {
		t.Fatalf("retry defaults lost: %+v", p.Retry)
	}
}

func TestLoadPolicyFileRejectsInvalidBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("max_turns: 0\n"), 0o644); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}
	if _, err := LoadPolicyFile(path); err == nil {
		t.Fatalf("expected error for non-positive max_turns")
	}
}
