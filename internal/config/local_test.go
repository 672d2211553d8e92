package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestChatsqlDir(t *testing.T) {
	dir, err := ChatsqlDir()
	if err != nil {
		t.Fatalf("ChatsqlDir() error = %v", err)
	}

	if filepath.Base(dir) != ".chatsql" {
		t.Errorf("ChatsqlDir() = %q, want ending with .chatsql", dir)
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ChatsqlDir() = %q, want absolute path", dir)
	}
}

func TestEnsureChatsqlDir(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	dir, err := EnsureChatsqlDir()
	if err != nil {
		t.Fatalf("EnsureChatsqlDir() error = %v", err)
	}

	expectedDir := filepath.Join(tmpHome, ".chatsql")
	if dir != expectedDir {
		t.Errorf("EnsureChatsqlDir() = %q, want %q", dir, expectedDir)
	}

	for _, subdir := range []string{"session", "exercises"} {
		if _, err := os.Stat(filepath.Join(dir, subdir)); os.IsNotExist(err) {
			t.Errorf("EnsureChatsqlDir() should create %s", subdir)
		}
	}
}

func TestDefaultLocalConfig(t *testing.T) {
	cfg := DefaultLocalConfig()

	if cfg.API.BaseURL != "http://localhost:8000/api" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.DemoMode {
		t.Error("API.DemoMode should default to false")
	}
	if cfg.API.Timeout() != 0 {
		t.Errorf("API.Timeout() = %v, want 0", cfg.API.Timeout())
	}
	if cfg.API.Resilience.Enabled {
		t.Error("resilience should be disabled by default")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.UI.SidebarOpen || !cfg.UI.AssistantOpen {
		t.Errorf("UI panes should start open: %+v", cfg.UI)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestAPIConfig_Timeout(t *testing.T) {
	if got := (APIConfig{TimeoutSeconds: 5}).Timeout(); got != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", got)
	}
	if got := (APIConfig{TimeoutSeconds: -1}).Timeout(); got != 0 {
		t.Errorf("Timeout() = %v, want 0", got)
	}
}

func TestLoadLocalConfigFrom(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := LoadLocalConfigFrom(filepath.Join(t.TempDir(), "config.yaml"))
		if err != nil {
			t.Fatalf("LoadLocalConfigFrom() error = %v", err)
		}
		if cfg.API.BaseURL != DefaultBaseURL {
			t.Errorf("BaseURL = %q", cfg.API.BaseURL)
		}
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "api:\n  demo_mode: true\nui:\n  language: zh\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadLocalConfigFrom(path)
		if err != nil {
			t.Fatalf("LoadLocalConfigFrom() error = %v", err)
		}
		if !cfg.API.DemoMode {
			t.Error("DemoMode should be true")
		}
		if cfg.UI.Language != "zh" {
			t.Errorf("Language = %q, want zh", cfg.UI.Language)
		}
		if cfg.API.BaseURL != DefaultBaseURL {
			t.Errorf("BaseURL = %q, want default", cfg.API.BaseURL)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("api: [unclosed"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadLocalConfigFrom(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("invalid base url", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("api:\n  base_url: not-a-url\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadLocalConfigFrom(path); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestSaveLocalConfig_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultLocalConfig()
	cfg.API.BaseURL = "https://chatsql.example.edu/api"
	cfg.Workspace.Dir = "/tmp/sql"

	if err := SaveLocalConfig(cfg); err != nil {
		t.Fatalf("SaveLocalConfig() error = %v", err)
	}

	loaded, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}
	if loaded.API.BaseURL != cfg.API.BaseURL || loaded.Workspace.Dir != "/tmp/sql" {
		t.Errorf("loaded = %+v", loaded)
	}
}
