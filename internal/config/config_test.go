package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProjectIDFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/home/dev/MyProject", "myproject"},
		{"/home/dev/my project", "my_project"},
		{"/home/dev/api-server/", "api-server"},
		{"relative/dir", "dir"},
	}
	for _, tc := range cases {
		if got := ProjectIDFromPath(tc.path); got != tc.want {
			t.Errorf("ProjectIDFromPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("/home/dev/myapp", t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ProjectID != "myapp" {
		t.Errorf("expected project id myapp, got %q", cfg.ProjectID)
	}
	if cfg.MaxResults != 10 {
		t.Errorf("expected max_results 10, got %d", cfg.MaxResults)
	}
	if cfg.SimilarityThreshold != 0.7 {
		t.Errorf("expected threshold 0.7, got %f", cfg.SimilarityThreshold)
	}
	if cfg.PreserveWindow != 24*time.Hour {
		t.Errorf("expected 24h window, got %v", cfg.PreserveWindow)
	}
	if cfg.PreserveLimit != 50 {
		t.Errorf("expected preserve_limit 50, got %d", cfg.PreserveLimit)
	}
	if cfg.ScoreCutoff != 0.5 {
		t.Errorf("expected score_cutoff 0.5, got %f", cfg.ScoreCutoff)
	}
	if cfg.EmbedProvider != "hash" {
		t.Errorf("expected hash provider by default, got %q", cfg.EmbedProvider)
	}
}

func TestLoadRequiresProjectPath(t *testing.T) {
	if _, err := Load("", t.TempDir()); err == nil {
		t.Error("expected error for empty project path")
	}
}

func TestLoadDataDirDefault(t *testing.T) {
	cfg, err := Load("/home/dev/myapp", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != filepath.Join("/home/dev/myapp", ".recall") {
		t.Errorf("expected project-local data dir, got %q", cfg.DataDir)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dataDir := t.TempDir()
	yaml := "max_results: 5\nsimilarity_threshold: 0.9\ntype_weights:\n  general: 0.4\n"
	if err := os.WriteFile(filepath.Join(dataDir, "recall.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load("/home/dev/myapp", dataDir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.MaxResults != 5 {
		t.Errorf("expected file override 5, got %d", cfg.MaxResults)
	}
	if cfg.SimilarityThreshold != 0.9 {
		t.Errorf("expected file override 0.9, got %f", cfg.SimilarityThreshold)
	}
	if cfg.TypeWeight("general") != 0.4 {
		t.Errorf("expected weight override 0.4, got %f", cfg.TypeWeight("general"))
	}
	// Untouched weights keep their defaults.
	if cfg.TypeWeight("error_solution") != 0.8 {
		t.Errorf("expected default weight kept, got %f", cfg.TypeWeight("error_solution"))
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RECALL_MAX_RESULTS", "3")

	cfg, err := Load("/home/dev/myapp", t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxResults != 3 {
		t.Errorf("expected env override 3, got %d", cfg.MaxResults)
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{ProjectID: "myapp", DataDir: "/data"}

	if got := cfg.DBPath(); got != filepath.Join("/data", "db", "myapp.db") {
		t.Errorf("unexpected db path %q", got)
	}
	if got := cfg.IndexPath(); got != filepath.Join("/data", "index", "myapp") {
		t.Errorf("unexpected index path %q", got)
	}
	if got := cfg.ScratchPath(); got != filepath.Join("/data", "db", "scratch.db") {
		t.Errorf("unexpected scratch path %q", got)
	}
}

func TestTypeWeightFallback(t *testing.T) {
	cfg, _ := Load("/home/dev/myapp", t.TempDir())
	if got := cfg.TypeWeight("never_heard_of_it"); got != 0.3 {
		t.Errorf("expected default weight 0.3, got %f", got)
	}
}
