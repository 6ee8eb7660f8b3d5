package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.AppName != "orderfacts" {
		t.Fatalf("app name: got %q", cfg.AppName)
	}
	if cfg.VoidChunkSize != 2000 || cfg.CorrectionChunkSize != 5000 {
		t.Fatalf("chunk sizes: void=%d correction=%d", cfg.VoidChunkSize, cfg.CorrectionChunkSize)
	}
	if !cfg.RunDedup || !cfg.RunSequence {
		t.Fatal("core jobs disabled by default")
	}
	if cfg.RunPlanEnrich || cfg.RunKeywordPass || cfg.RunVerifier {
		t.Fatal("optional jobs enabled by default")
	}
	if cfg.JobTimeout != 30*time.Minute {
		t.Fatalf("job timeout: got %v", cfg.JobTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RUN_VERIFIER", "true")
	t.Setenv("RUN_DEDUP", "off")
	t.Setenv("VOID_CHUNK_SIZE", "100")
	t.Setenv("JOB_TIMEOUT", "5m")
	t.Setenv("VERIFY_FROM", "2024-06-01")
	t.Setenv("SOURCE_SCHEMA", "billing")

	cfg := Load()

	if !cfg.RunVerifier || cfg.RunDedup {
		t.Fatalf("toggles not applied: verifier=%v dedup=%v", cfg.RunVerifier, cfg.RunDedup)
	}
	if cfg.VoidChunkSize != 100 {
		t.Fatalf("void chunk size: got %d", cfg.VoidChunkSize)
	}
	if cfg.JobTimeout != 5*time.Minute {
		t.Fatalf("job timeout: got %v", cfg.JobTimeout)
	}
	if want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC); !cfg.VerifyFrom.Equal(want) {
		t.Fatalf("verify from: got %v", cfg.VerifyFrom)
	}
	if cfg.SourceSchema != "billing" {
		t.Fatalf("source schema: got %q", cfg.SourceSchema)
	}
}

func TestGetenvBoolInvalidFallsBack(t *testing.T) {
	t.Setenv("RUN_SEQUENCE", "maybe")
	if !getenvBool("RUN_SEQUENCE", true) {
		t.Fatal("invalid value should fall back to default")
	}
	t.Setenv("RUN_SEQUENCE", "no")
	if getenvBool("RUN_SEQUENCE", true) {
		t.Fatal("explicit off ignored")
	}
}

func TestGetenvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("VOID_CHUNK_SIZE", "lots")
	if got := getenvInt("VOID_CHUNK_SIZE", 2000); got != 2000 {
		t.Fatalf("got %d", got)
	}
}
