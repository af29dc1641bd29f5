package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every memory in the current project",
		Run:   runClear,
	}

	cmd.Flags().Bool("yes", false, "Confirm deletion (required)")

	RootCmd.AddCommand(cmd)
}

func runClear(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		exitErr("clear", fmt.Errorf("refusing to clear without --yes"))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	count, err := s.ClearProject(cmd.Context())
	if err != nil {
		exitErr("clear", err)
	}

	fmt.Printf(`{"ok":true,"cleared":%d}`+"\n", count)
}
