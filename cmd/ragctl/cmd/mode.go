package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ragforge/kbengine/internal/clifmt"
	"github.com/ragforge/kbengine/internal/state"
)

func newModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode {single|multi}",
		Short: "Switch between SINGLE and MULTI retrieval mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}

			if err := eng.SetMode(cmd.Context(), state.Mode(args[0])); err != nil {
				return err
			}

			clifmt.New(cmd.OutOrStdout()).Successf("mode set to %q", args[0])
			return nil
		},
	}
}
