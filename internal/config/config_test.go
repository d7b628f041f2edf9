package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "PATHSTORE_URL", "WORKER_COUNT", "MAX_PAGES", "JOB_TTL", "JUSTICES"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.WorkerCount)
	}
	if cfg.MaxPages != 500 {
		t.Errorf("expected max pages 500, got %d", cfg.MaxPages)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", cfg.JobTTL)
	}
	if len(cfg.Justices) != 0 {
		t.Errorf("expected no justices override, got %v", cfg.Justices)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "-2")
	t.Setenv("JOB_TTL", "90s")
	t.Setenv("JUSTICES", " Roberts, ,Jackson ")
	t.Setenv("PDF_FALLBACK_PDFTOTEXT", "false")
	t.Setenv("JUSTICES_FILE", "/etc/opinionparse/roster.yaml")

	cfg := Load()
	if cfg.WorkerCount != 4 {
		t.Errorf("expected invalid worker count to fall back to 4, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != 90*time.Second {
		t.Errorf("expected 90s TTL, got %v", cfg.JobTTL)
	}
	if len(cfg.Justices) != 2 || cfg.Justices[0] != "Roberts" || cfg.Justices[1] != "Jackson" {
		t.Errorf("expected [Roberts Jackson], got %v", cfg.Justices)
	}
	if cfg.PDFFallbackPdftotext {
		t.Error("expected pdftotext fallback disabled")
	}
	if cfg.JusticesFile != "/etc/opinionparse/roster.yaml" {
		t.Errorf("expected roster path, got %q", cfg.JusticesFile)
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Error("expected error without API key")
	}
	if err := (Config{APIKey: "k", PathstoreURL: "http://ps"}).Validate(); err == nil {
		t.Error("expected error for pathstore URL without key")
	}
	if err := (Config{APIKey: "k"}).Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}
