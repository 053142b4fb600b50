package config_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Live-to-Role/grimoire/internal/config"
)

func TestNewConfig(t *testing.T) {
	cfg := config.NewConfig("/data/grimoire")

	if cfg.BaseDir != "/data/grimoire" {
		t.Errorf("BaseDir = %q, want /data/grimoire", cfg.BaseDir)
	}
	if cfg.LogDir != filepath.Join("/data/grimoire", "log") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.Listen != "127.0.0.1:8478" {
		t.Errorf("Listen = %q, want 127.0.0.1:8478", cfg.Listen)
	}
	if len(cfg.Scan.Extensions) != 1 || cfg.Scan.Extensions[0] != ".pdf" {
		t.Errorf("Extensions = %v, want [.pdf]", cfg.Scan.Extensions)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want sqlite", cfg.Database.Type)
	}
	if cfg.Trash.Type != "filesystem" {
		t.Errorf("Trash.Type = %q, want filesystem", cfg.Trash.Type)
	}
	if cfg.Trash.Root != filepath.Join("/data/grimoire", "trash") {
		t.Errorf("Trash.Root = %q", cfg.Trash.Root)
	}
}

func TestManager_RoundTrip(t *testing.T) {
	m := &config.Manager{}
	cfg := config.NewConfig("/data/grimoire")
	cfg.Trash = config.TrashConfig{
		Type:     "s3",
		S3Bucket: "grimoire-trash",
		S3Region: "eu-west-1",
	}

	var buf bytes.Buffer
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Listen != cfg.Listen {
		t.Errorf("Listen = %q, want %q", got.Listen, cfg.Listen)
	}
	if got.Trash.Type != "s3" || got.Trash.S3Bucket != "grimoire-trash" || got.Trash.S3Region != "eu-west-1" {
		t.Errorf("Trash = %+v, want the s3 settings back", got.Trash)
	}
}

func TestManager_Read(t *testing.T) {
	t.Run("decodes a minimal file", func(t *testing.T) {
		input := `
base_dir = "/data/grimoire"
listen = "0.0.0.0:9000"

[database]
type = "memory"

[trash]
type = "none"
`
		m := &config.Manager{}
		cfg, err := m.Read(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if cfg.Listen != "0.0.0.0:9000" {
			t.Errorf("Listen = %q, want 0.0.0.0:9000", cfg.Listen)
		}
		if cfg.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want memory", cfg.Database.Type)
		}
	})

	t.Run("rejects malformed toml", func(t *testing.T) {
		m := &config.Manager{}
		if _, err := m.Read(strings.NewReader("listen = [broken")); err == nil {
			t.Error("Read() with malformed input did not error")
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("writes a readable config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf", "grimoire.toml")
		cfg := config.NewConfig("/data/grimoire")

		if err := config.Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := config.ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.BaseDir != cfg.BaseDir {
			t.Errorf("BaseDir = %q, want %q", got.BaseDir, cfg.BaseDir)
		}
	})

	t.Run("refuses to overwrite an existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "grimoire.toml")
		cfg := config.NewConfig("/data/grimoire")

		if err := config.Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := config.Init(path, cfg); err == nil {
			t.Error("second Init() did not error")
		}
	})
}
