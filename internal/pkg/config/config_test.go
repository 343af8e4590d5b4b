package config

import (
	"log/slog"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("explicit missing file should fail, got cfg=%+v", cfg)
	}
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	in := &Config{
		App:     AppConfig{Name: "lifemirror", Version: "1.0.0", LogLevel: "debug", Profile: "Athlete"},
		Storage: StorageConfig{Driver: "sqlite", DBPath: "data/test.db"},
		Server:  ServerConfig{ListenAddr: ":9090"},
		Rules:   RulesConfig{Source: "file", Path: "rules.yaml", Watch: false, RedisKey: "k"},
		Jobs:    JobsConfig{SnapshotLookbackDays: 3, Concurrency: 8},
	}
	if err := WriteFile(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.App.Profile != "Athlete" || out.Server.ListenAddr != ":9090" || out.Jobs.Concurrency != 8 {
		t.Fatalf("cfg=%+v", out)
	}
	if out.Storage.DBPath != filepath.Join(dir, "data/test.db") {
		t.Fatalf("db_path=%s, want resolved against config dir", out.Storage.DBPath)
	}
	if out.Rules.Watch {
		t.Fatalf("watch should stay false")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LIFEMIRROR_SERVER_LISTEN_ADDR", ":7070")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteFile(path, &Config{Server: ServerConfig{ListenAddr: ":9090"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ListenAddr != ":7070" {
		t.Fatalf("listen_addr=%s, want env override", cfg.Server.ListenAddr)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("nope") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
}
