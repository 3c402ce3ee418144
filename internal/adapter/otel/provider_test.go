package otel_test

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	adapter "github.com/neomorfeo/taxireg/internal/adapter/otel"
	"github.com/neomorfeo/taxireg/internal/platform/config"
)

func TestSetup_StdoutExporter(t *testing.T) {
	providers, err := adapter.Setup(context.Background(), adapter.Config{
		ServiceName:    "test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
		Exporter:       "stdout",
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	if err := providers.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestSetup_InvalidExporter(t *testing.T) {
	_, err := adapter.Setup(context.Background(), adapter.Config{
		ServiceName:    "test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
		Exporter:       "invalid",
	})
	if err == nil {
		t.Fatal("expected error for invalid exporter")
	}
}

func TestConfigFrom_Development(t *testing.T) {
	cfg := adapter.ConfigFrom(config.OtelConfig{
		ServiceName:    "taxireg",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		Exporter:       "otlp",
	})

	if cfg.ServiceName != "taxireg" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "taxireg")
	}
	if cfg.Exporter != "otlp" {
		t.Errorf("Exporter = %q, want %q", cfg.Exporter, "otlp")
	}
	if !cfg.Insecure {
		t.Error("development should use an insecure exporter")
	}
}

func TestConfigFrom_Production(t *testing.T) {
	cfg := adapter.ConfigFrom(config.OtelConfig{
		ServiceName:    "taxireg",
		ServiceVersion: "1.0.0",
		Environment:    "production",
		Exporter:       "otlp",
	})

	if cfg.ServiceVersion != "1.0.0" {
		t.Errorf("ServiceVersion = %q, want %q", cfg.ServiceVersion, "1.0.0")
	}
	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "production")
	}
	if cfg.Insecure {
		t.Error("production must not use an insecure exporter")
	}
}

func TestOpenDB_InMemory(t *testing.T) {
	db, err := adapter.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("reading pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
