package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "store [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin.",
		Run:   runStore,
	}

	cmd.Flags().StringP("type", "t", "general", "Memory type (e.g. error_solution, code_pattern)")
	cmd.Flags().StringP("meta", "m", "", "JSON metadata")
	cmd.Flags().StringP("session", "s", "", "Session id to link this memory to")

	RootCmd.AddCommand(cmd)
}

func runStore(cmd *cobra.Command, args []string) {
	memoryType, _ := cmd.Flags().GetString("type")
	metaStr, _ := cmd.Flags().GetString("meta")
	sessionID, _ := cmd.Flags().GetString("session")

	// Get content: positional arg first, then check stdin
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}

	metadata := map[string]any{}
	if metaStr != "" {
		if err := json.Unmarshal([]byte(metaStr), &metadata); err != nil {
			exitErr("parse meta", err)
		}
	}
	if sessionID != "" {
		metadata["session_id"] = sessionID
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := s.Store(cmd.Context(), strings.TrimSpace(content), metadata, memoryType)
	if err != nil {
		exitErr("store", err)
	}

	fmt.Printf(`{"ok":true,"id":%q}`+"\n", id)
}
