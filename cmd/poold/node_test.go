package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"pooledger/config"
	"pooledger/observability/logging"
)

func TestBuildNodeServesHealth(t *testing.T) {
	cfg := config.Default()
	cfg.Node.Database = config.DatabaseMemory
	cfg.Journal.Driver = config.JournalDisabled

	n, err := buildNode(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("build node: %v", err)
	}
	defer n.Close()

	res := httptest.NewRecorder()
	n.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	res = httptest.NewRecorder()
	n.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/events", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected journal-less events to be unavailable, got %d", res.Code)
	}
	if n.exec.LendingProgram() != cfg.LendingProgram() {
		t.Fatalf("lending program not wired from config")
	}
}

func TestBuildNodeWithLevelDBAndJournal(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Node.DataDir = dir
	cfg.Journal.DSN = filepath.Join(dir, "journal", "journal.db")

	n, err := buildNode(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("build node: %v", err)
	}
	if n.journal == nil {
		t.Fatalf("expected journal to be opened")
	}
	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStartupSummaryMasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Journal.DSN = "postgres://ledger:hunter2@db/pooledger"
	cfg.Token.MintKeystore = "/secrets/mint.json"
	cfg.API.Auth.Enabled = true
	cfg.API.Auth.HMACSecret = "s3cr3t-hmac"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Headers = map[string]string{"authorization": "Bearer otlp-token"}

	var buf bytes.Buffer
	logger := slog.New(logging.NewHandler(&buf, slog.LevelInfo))
	logger.Info("configuration loaded", startupAttrs(cfg)...)

	out := buf.String()
	for _, secret := range []string{"hunter2", "/secrets/mint.json", "s3cr3t-hmac", "otlp-token"} {
		if strings.Contains(out, secret) {
			t.Fatalf("startup summary leaked %q: %s", secret, out)
		}
	}
	if got := strings.Count(out, logging.RedactedValue); got != 4 {
		t.Fatalf("expected 4 redacted values, got %d: %s", got, out)
	}
	if !strings.Contains(out, cfg.Node.ListenAddress) {
		t.Fatalf("expected listen address in summary: %s", out)
	}
}
