package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ragforge/kbengine/internal/clifmt"
)

func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Enable the retrieval engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			if err := eng.SetEnabled(cmd.Context(), true); err != nil {
				return err
			}
			clifmt.New(cmd.OutOrStdout()).Success("engine enabled")
			return nil
		},
	}
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable the retrieval engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			if err := eng.SetEnabled(cmd.Context(), false); err != nil {
				return err
			}
			clifmt.New(cmd.OutOrStdout()).Success("engine disabled")
			return nil
		},
	}
}
