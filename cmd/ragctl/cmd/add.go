package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ragforge/kbengine/internal/clifmt"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add PATH",
		Short: "Ingest a text file as a new user knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}

			entry, err := eng.AddKB(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := clifmt.New(cmd.OutOrStdout())
			w.Successf("added %q (%d chunks)", entry.Name, entry.Index.ChunkCount())
			return nil
		},
	}
}
