package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadArgsPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spriteedit.yaml")
	yml := "api: https://file.example/api.php\npage_id: 11\nsheet_file: FileSprite.png\nimage_width: 16\nimage_height: 16\nwatch_interval: 30s\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadArgs(
		[]string{"-config", path, "-page-id", "42"},
		[]string{"SPRITEEDIT_API=https://env.example/api.php", "SPRITEEDIT_PASSWORD=hunter2"},
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a := cfg.App
	if a.API != "https://env.example/api.php" {
		t.Fatalf("expected env to beat file, got %s", a.API)
	}
	if a.PageID != 42 {
		t.Fatalf("expected flag to beat file, got %d", a.PageID)
	}
	if a.SheetFile != "FileSprite.png" || a.ImageWidth != 16 || a.WatchInterval != 30*time.Second {
		t.Fatalf("expected file values, got %+v", a)
	}
	if a.Password != "hunter2" || a.Tag != "sprite-editor" {
		t.Fatalf("unexpected password/tag %q %q", a.Password, a.Tag)
	}
	if cfg.File != path || cfg.Flags["pageID"] != "42" {
		t.Fatalf("unexpected bookkeeping %s %v", cfg.File, cfg.Flags)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	os.WriteFile(path, []byte("spacing: 2\n"), 0o644)
	cfg, err := LoadArgs(nil, []string{"SPRITEEDIT_CONFIG=" + path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Spacing != 2 || cfg.App.ImageWidth != 32 {
		t.Fatalf("unexpected config %+v", cfg.App)
	}
}

func TestLoadArgsErrors(t *testing.T) {
	if _, err := LoadArgs([]string{"-config", "/does/not/exist.yaml"}, nil); err == nil {
		t.Fatalf("expected missing file error")
	}
	if _, err := LoadArgs([]string{"-watch-interval", "soon"}, nil); err == nil {
		t.Fatalf("expected duration error")
	}
	if _, err := LoadArgs([]string{"-bogus"}, nil); err == nil {
		t.Fatalf("expected unknown flag error")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := LoadArgs([]string{"-api", "https://w/api.php", "-page-id", "7", "-sheet-file", "S.png"}, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	bad, _ := LoadArgs([]string{"-spacing", "-1", "-user", "Ed@bot"}, nil)
	err = Validate(bad)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"api is required", "page-id", "sheet-file", "spacing", "SPRITEEDIT_PASSWORD"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
