package cli

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/coderecall/recall/internal/store"
)

func init() {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions",
	}

	openCmd := &cobra.Command{
		Use:   "open [session-id]",
		Short: "Open a session (mints an id if none given)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runSessionOpen,
	}

	closeCmd := &cobra.Command{
		Use:   "close [session-id]",
		Short: "Close a session with a summary",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionClose,
	}
	closeCmd.Flags().String("summary", "", "Session summary text")
	closeCmd.Flags().Int("memories", 0, "Number of memories recorded in the session")

	summaryCmd := &cobra.Command{
		Use:   "summary [session-id]",
		Short: "Show a session's aggregated activity",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionSummary,
	}

	sessionCmd.AddCommand(openCmd, closeCmd, summaryCmd)
	RootCmd.AddCommand(sessionCmd)
}

func runSessionOpen(cmd *cobra.Command, args []string) {
	sessionID := ""
	if len(args) > 0 {
		sessionID = args[0]
	}
	if sessionID == "" {
		entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
		sessionID = ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	sess, err := store.NewLedger(s).Open(cmd.Context(), sessionID)
	if err != nil {
		exitErr("session open", err)
	}

	b, _ := json.MarshalIndent(sess, "", "  ")
	fmt.Println(string(b))
}

func runSessionClose(cmd *cobra.Command, args []string) {
	summary, _ := cmd.Flags().GetString("summary")
	memories, _ := cmd.Flags().GetInt("memories")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ledger := store.NewLedger(s)
	if err := ledger.Close(cmd.Context(), args[0], summary, memories); err != nil {
		exitErr("session close", err)
	}

	sess, err := ledger.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("session close", err)
	}

	b, _ := json.MarshalIndent(sess, "", "  ")
	fmt.Println(string(b))
}

func runSessionSummary(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ledger := store.NewLedger(s)
	ctx := cmd.Context()

	tools, err := ledger.ToolsUsed(ctx, args[0])
	if err != nil {
		exitErr("session summary", err)
	}
	files, err := ledger.FilesTouched(ctx, args[0])
	if err != nil {
		exitErr("session summary", err)
	}
	errTypes, err := ledger.ErrorTypes(ctx, args[0])
	if err != nil {
		exitErr("session summary", err)
	}

	out := map[string]any{
		"session_id":    args[0],
		"tools_used":    tools,
		"files_touched": files,
		"error_types":   errTypes,
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
