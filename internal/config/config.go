// Package config loads per-project configuration for the memory system.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/coderecall/recall/internal/model"
)

// Config holds all knobs for one project's memory store. Loaded once per
// process invocation; the scoring constants are heuristic defaults carried
// over from the original tuning and should not be reordered casually.
type Config struct {
	ProjectID   string
	ProjectPath string
	DataDir     string

	MaxResults          int
	SimilarityThreshold float64

	// Retention policy.
	PreserveWindow time.Duration
	PreserveLimit  int
	ScoreCutoff    float64
	TypeWeights    map[string]float64

	// Embedding provider: "hash" (default, deterministic, offline),
	// "ollama", or "openai".
	EmbedProvider string
	EmbedModel    string
	EmbedBaseURL  string
	EmbedAPIKey   string
}

// ProjectIDFromPath derives a stable project id from the project's
// filesystem location: base name, lower-cased, spaces to underscores.
func ProjectIDFromPath(projectPath string) string {
	base := filepath.Base(filepath.Clean(projectPath))
	return strings.ToLower(strings.ReplaceAll(base, " ", "_"))
}

// Load reads configuration for the given project path. Precedence:
// defaults < recall.yaml in the data dir < RECALL_* environment variables.
func Load(projectPath, dataDir string) (*Config, error) {
	if projectPath == "" {
		return nil, fmt.Errorf("project path is required")
	}
	if dataDir == "" {
		dataDir = filepath.Join(projectPath, ".recall")
	}

	v := viper.New()
	v.SetDefault("max_results", 10)
	v.SetDefault("similarity_threshold", 0.7)
	v.SetDefault("preserve_window_hours", 24)
	v.SetDefault("preserve_limit", 50)
	v.SetDefault("score_cutoff", 0.5)
	v.SetDefault("embed_provider", "hash")
	v.SetDefault("embed_model", "")
	v.SetDefault("embed_base_url", "")

	v.SetEnvPrefix("RECALL")
	v.AutomaticEnv()

	v.SetConfigName("recall")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		ProjectID:           ProjectIDFromPath(projectPath),
		ProjectPath:         projectPath,
		DataDir:             dataDir,
		MaxResults:          v.GetInt("max_results"),
		SimilarityThreshold: v.GetFloat64("similarity_threshold"),
		PreserveWindow:      time.Duration(v.GetInt("preserve_window_hours")) * time.Hour,
		PreserveLimit:       v.GetInt("preserve_limit"),
		ScoreCutoff:         v.GetFloat64("score_cutoff"),
		EmbedProvider:       v.GetString("embed_provider"),
		EmbedModel:          v.GetString("embed_model"),
		EmbedBaseURL:        v.GetString("embed_base_url"),
		EmbedAPIKey:         v.GetString("embed_api_key"),
	}

	cfg.TypeWeights = make(map[string]float64, len(model.DefaultTypeWeights))
	for k, w := range model.DefaultTypeWeights {
		cfg.TypeWeights[k] = w
	}
	if v.IsSet("type_weights") {
		for k, raw := range v.GetStringMap("type_weights") {
			switch val := raw.(type) {
			case float64:
				cfg.TypeWeights[k] = val
			case int:
				cfg.TypeWeights[k] = float64(val)
			}
		}
	}

	return cfg, nil
}

// DBPath returns the metadata database file for this project.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "db", c.ProjectID+".db")
}

// IndexPath returns the embedding index directory for this project.
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, "index", c.ProjectID)
}

// ScratchPath returns the shared scratch database used by hooks.
func (c *Config) ScratchPath() string {
	return filepath.Join(c.DataDir, "db", "scratch.db")
}

// TypeWeight looks up the retention weight for a memory type.
func (c *Config) TypeWeight(memoryType string) float64 {
	if w, ok := c.TypeWeights[memoryType]; ok {
		return w
	}
	return model.DefaultTypeWeight
}
