package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ragforge/kbengine/internal/clifmt"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every loaded knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}

			w := clifmt.New(cmd.OutOrStdout())
			listed := eng.ListKBs()
			if len(listed) == 0 {
				w.Warning("no knowledge bases loaded")
				return nil
			}
			for _, l := range listed {
				w.KBRow(l.Name, l.Path, l.Active)
			}
			return nil
		},
	}
}
