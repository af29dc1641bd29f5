// Package cli implements the recall CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coderecall/recall/internal/config"
	"github.com/coderecall/recall/internal/store"
)

var (
	projectPath string
	dataDir     string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Project-scoped memory for coding agents",
	Long:  "Persists project-scoped memories (code snippets, error solutions, insights) with similarity search, so a coding assistant can retrieve relevant prior context.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", "", "Project path (default: $RECALL_PROJECT_DIR or cwd)")
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Storage directory (default: <project>/.recall)")
}

func getProjectPath() string {
	if projectPath != "" {
		return projectPath
	}
	if env := os.Getenv("RECALL_PROJECT_DIR"); env != "" {
		return env
	}
	wd, _ := os.Getwd()
	return wd
}

func loadConfig() (*config.Config, error) {
	return config.Load(getProjectPath(), dataDir)
}

func openStore() (*store.MemoryStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
