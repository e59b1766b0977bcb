package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFilesReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing-global.json"), filepath.Join(t.TempDir(), "missing-project.json"))
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultConfig()
	if cfg.Scheduler != want.Scheduler {
		t.Errorf("expected defaults, got %+v", cfg.Scheduler)
	}
}

func TestLoadProjectOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.json")
	projectPath := filepath.Join(dir, "project.json")

	writeJSON(t, globalPath, `{"scheduler": {"max_retries": 5, "concurrency_limit": 2}}`)
	writeJSON(t, projectPath, `{"scheduler": {"max_retries": 7}}`)

	cfg, err := Load(globalPath, projectPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scheduler.MaxRetries != 7 {
		t.Errorf("expected project override to win, got MaxRetries=%d", cfg.Scheduler.MaxRetries)
	}
	if cfg.Scheduler.ConcurrencyLimit != 2 {
		t.Errorf("expected global-only field to survive the project overlay, got %d", cfg.Scheduler.ConcurrencyLimit)
	}
}

func TestLoadMalformedJSONErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	writeJSON(t, path, `{not valid json`)

	if _, err := Load(path, ""); err == nil {
		t.Fatal("expected an error parsing malformed config JSON")
	}
}

func TestLoadMergesValidDomainsWithoutDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "domains.json")
	writeJSON(t, path, `{"valid_domains": ["backend", "ml"]}`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]int)
	for _, d := range cfg.ValidDomains {
		seen[d]++
	}
	if seen["backend"] != 1 {
		t.Errorf("expected backend to appear exactly once after merge, got %d", seen["backend"])
	}
	if seen["ml"] != 1 {
		t.Errorf("expected new domain ml to be merged in, got %d", seen["ml"])
	}
}

func TestLoadZeroValuedOverlayFieldsDoNotClobberDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.json")
	writeJSON(t, path, `{"scheduler": {"max_retries": 9}}`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultConfig()
	if cfg.Scheduler.LowConfidenceThreshold != want.Scheduler.LowConfidenceThreshold {
		t.Errorf("expected untouched fields to retain their default, got %f", cfg.Scheduler.LowConfidenceThreshold)
	}
	if cfg.Scheduler.MaxRetries != 9 {
		t.Errorf("expected the overlaid field to apply, got %d", cfg.Scheduler.MaxRetries)
	}
}

func writeJSON(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
