package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	def := Default()
	if cfg.API.ListenAddr != def.API.ListenAddr {
		t.Errorf("api.listen = %q, want %q", cfg.API.ListenAddr, def.API.ListenAddr)
	}
	if cfg.Chain.Difficulty != def.Chain.Difficulty {
		t.Errorf("chain.difficulty = %d, want %d", cfg.Chain.Difficulty, def.Chain.Difficulty)
	}
	if cfg.Store.Backend != "badger" {
		t.Errorf("store.backend = %q, want badger", cfg.Store.Backend)
	}
}

func TestParseFlags(t *testing.T) {
	cfg, err := Parse([]string{
		"-chain.difficulty", "3",
		"-chain.mineTimeout", "5s",
		"-store.backend", "sqlite",
		"-store.path", "chain.db",
		"-miner.address", "miner-1",
	})
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.Chain.Difficulty != 3 {
		t.Errorf("chain.difficulty = %d, want 3", cfg.Chain.Difficulty)
	}
	if time.Duration(cfg.Chain.MineTimeout) != 5*time.Second {
		t.Errorf("chain.mineTimeout = %v, want 5s", time.Duration(cfg.Chain.MineTimeout))
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "chain.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Wallet.MinerAddress != "miner-1" {
		t.Errorf("miner.address = %q", cfg.Wallet.MinerAddress)
	}
}

func TestParseEnv(t *testing.T) {
	t.Setenv("CHAINBRIDGEX_DIFFICULTY", "4")
	t.Setenv("CHAINBRIDGEX_LOG_LEVEL", "debug")

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.Chain.Difficulty != 4 {
		t.Errorf("chain.difficulty = %d, want 4", cfg.Chain.Difficulty)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		errContains string
	}{
		{"difficulty too high", []string{"-chain.difficulty", "33"}, "chain.difficulty"},
		{"unknown backend", []string{"-store.backend", "postgres"}, "store.backend"},
		{"empty store path", []string{"-store.path", ""}, "store.path"},
		{"bad log level", []string{"-log.level", "loud"}, "log.level"},
		{"bad log format", []string{"-log.format", "xml"}, "log.format"},
		{"no workers", []string{"-chain.workers", "0"}, "chain.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args)
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Parse() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestConfigFilePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.json")

	fileCfg := Default()
	fileCfg.Chain.Difficulty = 5
	fileCfg.Store.Backend = "file"
	fileCfg.Store.Path = "state.json"
	fileCfg.Wallet.Password = "secret"
	if err := SaveFile(path, fileCfg); err != nil {
		t.Fatalf("SaveFile() failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if strings.Contains(string(raw), "secret") {
		t.Error("SaveFile() wrote the keystore password")
	}

	cfg, err := Parse([]string{"-config", path, "-chain.difficulty", "1"})
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.Chain.Difficulty != 1 {
		t.Errorf("explicit flag lost: chain.difficulty = %d, want 1", cfg.Chain.Difficulty)
	}
	if cfg.Store.Backend != "file" || cfg.Store.Path != "state.json" {
		t.Errorf("file values lost: store = %+v", cfg.Store)
	}
}

func TestReadFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")

	_, err := ReadFile(path)
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("ReadFile() error = %v, want *config.Error", err)
	}
	if !strings.Contains(cfgErr.Message, path) {
		t.Errorf("message %q does not name the file", cfgErr.Message)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("config.Error does not unwrap to the underlying cause")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	if err := WriteFile(path, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	data, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("ReadFile() = %s", data)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Error("temporary file left behind")
	}
}
