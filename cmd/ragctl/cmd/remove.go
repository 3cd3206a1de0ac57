package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ragforge/kbengine/internal/clifmt"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a knowledge base by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}

			if err := eng.RemoveKB(args[0]); err != nil {
				return err
			}

			clifmt.New(cmd.OutOrStdout()).Successf("removed %q", args[0])
			return nil
		},
	}
}
