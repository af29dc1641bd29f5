package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coderecall/recall/internal/retention"
)

func init() {
	cmd := &cobra.Command{
		Use:   "preserve",
		Short: "Preserve important memories before compaction",
		Long:  "Score recent memories for importance, store a preservation summary, and bump access counts of the survivors.",
		Run:   runPreserve,
	}

	cmd.Flags().String("reason", "context_limit", "Compaction reason")
	cmd.Flags().Bool("dry-run", false, "Only list candidates, do not write anything")

	RootCmd.AddCommand(cmd)
}

func runPreserve(cmd *cobra.Command, args []string) {
	reason, _ := cmd.Flags().GetString("reason")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	engine := retention.New(s)

	if dryRun {
		candidates, err := engine.SelectForPreservation(cmd.Context())
		if err != nil {
			exitErr("preserve", err)
		}
		b, _ := json.MarshalIndent(candidates, "", "  ")
		fmt.Println(string(b))
		return
	}

	report, err := engine.Preserve(cmd.Context(), reason, nil)
	if err != nil {
		exitErr("preserve", err)
	}

	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
}
