package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coderecall/recall/internal/model"
	"github.com/coderecall/recall/internal/retention"
	"github.com/coderecall/recall/internal/scratch"
	"github.com/coderecall/recall/internal/store"
)

// retrieveThrottle suppresses repeat suggestions for the same prompt.
const retrieveThrottle = 60 * time.Second

// hookEvent is the JSON envelope read from stdin. Only the fields the
// memory hooks interpret are declared; everything else passes through.
type hookEvent struct {
	HookEventName string `json:"hook_event_name"`
	SessionID     string `json:"session_id"`
	Prompt        string `json:"prompt"`
	ToolName      string `json:"tool_name"`
	ToolInput     struct {
		FilePath string `json:"file_path"`
	} `json:"tool_input"`
	ToolResponse json.RawMessage `json:"tool_response"`
	Reason       string          `json:"reason"`
	ContextSize  int             `json:"context_size"`
	ExitReason   string          `json:"exit_reason"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Process one hook event from stdin",
		Long: "Read a JSON hook event from stdin and dispatch it: retrieve context on " +
			"prompt submit, record tool observations, summarize on stop, preserve " +
			"before compaction. Exits 0 (allow) or 2 (warn); internal errors degrade " +
			"to a no-op so the surrounding session is never interrupted.",
		Run: runHook,
	}

	RootCmd.AddCommand(cmd)
}

// hook diagnostics go to stderr via slog; stdout carries only content
// meant for the assistant's context.
var hookLog = slog.New(slog.NewTextHandler(os.Stderr, nil))

func runHook(cmd *cobra.Command, args []string) {
	var ev hookEvent
	if err := json.NewDecoder(os.Stdin).Decode(&ev); err != nil {
		hookLog.Warn("undecodable hook event", "err", err)
		os.Exit(0)
	}

	s, err := openStore()
	if err != nil {
		hookLog.Warn("store unavailable", "err", err)
		os.Exit(0)
	}
	defer s.Close()

	switch ev.HookEventName {
	case "UserPromptSubmit":
		hookRetrieve(cmd, s, &ev)
	case "PostToolUse":
		hookStore(cmd, s, &ev)
	case "Stop", "SubagentStop":
		hookStop(cmd, s, &ev)
	case "PreCompact":
		hookPreCompact(cmd, s, &ev)
	}
	os.Exit(0)
}

func hookRetrieve(cmd *cobra.Command, s *store.MemoryStore, ev *hookEvent) {
	if strings.TrimSpace(ev.Prompt) == "" {
		return
	}

	// Throttle: don't re-suggest for the same prompt within the window.
	sum := sha256.Sum256([]byte(ev.Prompt))
	key := "retrieve:" + hex.EncodeToString(sum[:8])
	if sc, err := scratch.Open(s.Config().ScratchPath()); err == nil {
		defer sc.Close()
		if _, at, ok, _ := sc.Get(cmd.Context(), key); ok && time.Since(at) < retrieveThrottle {
			return
		}
		sc.Put(cmd.Context(), key, ev.SessionID)
	}

	hits, err := s.Search(cmd.Context(), ev.Prompt, nil, 0)
	if err != nil {
		hookLog.Warn("retrieve failed", "err", err)
		return
	}
	if len(hits) == 0 {
		return
	}

	fmt.Println("Relevant memories from previous sessions:")
	for _, h := range hits {
		preview := strings.ReplaceAll(h.Content, "\n", " ")
		if len(preview) > 200 {
			preview = preview[:200]
		}
		fmt.Printf("- [%.2f] %s\n", h.Similarity, preview)
	}
}

func hookStore(cmd *cobra.Command, s *store.MemoryStore, ev *hookEvent) {
	if ev.ToolName == "" || len(ev.ToolResponse) == 0 {
		return
	}

	content := fmt.Sprintf("%s: %s", ev.ToolName, string(ev.ToolResponse))
	metadata := map[string]any{
		"hook":       "posttool",
		"tool":       ev.ToolName,
		"session_id": ev.SessionID,
	}
	if ev.ToolInput.FilePath != "" {
		metadata["file_path"] = ev.ToolInput.FilePath
	}

	if _, err := s.Store(cmd.Context(), content, metadata, model.TypeGeneral); err != nil {
		if errors.Is(err, store.ErrBusy) {
			hookLog.Warn("store contended", "err", err)
			os.Exit(2)
		}
		hookLog.Warn("store failed", "err", err)
	}
}

func hookStop(cmd *cobra.Command, s *store.MemoryStore, ev *hookEvent) {
	if ev.SessionID == "" {
		return
	}
	ctx := cmd.Context()
	ledger := store.NewLedger(s)

	tools, _ := ledger.ToolsUsed(ctx, ev.SessionID)
	files, _ := ledger.FilesTouched(ctx, ev.SessionID)
	errTypes, _ := ledger.ErrorTypes(ctx, ev.SessionID)

	var b strings.Builder
	fmt.Fprintf(&b, "Session Summary (Exit: %s)\n", exitReason(ev))
	b.WriteString(strings.Repeat("=", 50) + "\n")
	if len(files) > 0 {
		fmt.Fprintf(&b, "\nModified %d files\n", len(files))
	}
	if len(errTypes) > 0 {
		fmt.Fprintf(&b, "Resolved %d types of errors\n", len(errTypes))
	}
	if len(tools) > 0 {
		b.WriteString("\nTools Usage:\n")
		for tool, count := range tools {
			fmt.Fprintf(&b, "  - %s: %d times\n", tool, count)
		}
	}

	memoryType := model.TypeSessionSummary
	if ev.HookEventName == "SubagentStop" {
		memoryType = model.TypeSubagentSummary
	}

	metadata := map[string]any{
		"hook":        "stop",
		"session_id":  ev.SessionID,
		"exit_reason": exitReason(ev),
	}
	if _, err := s.Store(ctx, b.String(), metadata, memoryType); err != nil {
		hookLog.Warn("session summary store failed", "err", err)
		return
	}

	summaryJSON, _ := json.Marshal(map[string]any{
		"tools_used":    tools,
		"files_touched": files,
		"error_types":   errTypes,
	})
	if err := ledger.Close(ctx, ev.SessionID, string(summaryJSON), len(files)); err != nil {
		hookLog.Warn("session close failed", "err", err)
	}
}

func hookPreCompact(cmd *cobra.Command, s *store.MemoryStore, ev *hookEvent) {
	reason := ev.Reason
	if reason == "" {
		reason = "context_limit"
	}

	extra := map[string]any{"context_size": ev.ContextSize}
	if ev.SessionID != "" {
		extra["session_id"] = ev.SessionID
	}

	report, err := retention.New(s).Preserve(cmd.Context(), reason, extra)
	if err != nil {
		hookLog.Warn("preservation failed", "err", err)
		return
	}

	if reason == "user_requested" {
		fmt.Printf("Preserved %d important memories before compaction\n", report.PreservedCount)
		fmt.Println("These memories will remain accessible for future reference.")
	}
}

func exitReason(ev *hookEvent) string {
	if ev.ExitReason != "" {
		return ev.ExitReason
	}
	return "normal"
}
