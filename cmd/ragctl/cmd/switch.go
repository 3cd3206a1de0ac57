package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ragforge/kbengine/internal/clifmt"
)

func newSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch NAME",
		Short: "Mark a knowledge base as active for SINGLE-mode queries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}

			if err := eng.SwitchKB(args[0]); err != nil {
				return err
			}

			clifmt.New(cmd.OutOrStdout()).Successf("switched to %q", args[0])
			return nil
		},
	}
}
