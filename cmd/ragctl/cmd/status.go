package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragforge/kbengine/internal/clifmt"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine status: enabled flag, mode, active KB, and chunk totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}

			st := eng.Status()
			w := clifmt.New(cmd.OutOrStdout())
			w.Header("engine status")
			fmt.Fprintf(cmd.OutOrStdout(), "enabled:       %v\n", st.Enabled)
			fmt.Fprintf(cmd.OutOrStdout(), "mode:          %s\n", st.Mode)
			fmt.Fprintf(cmd.OutOrStdout(), "active:        %s\n", st.ActiveName)
			fmt.Fprintf(cmd.OutOrStdout(), "loaded:        %v\n", st.LoadedNames)
			fmt.Fprintf(cmd.OutOrStdout(), "total chunks:  %d\n", st.TotalChunks)
			fmt.Fprintf(cmd.OutOrStdout(), "chunk size:    %d\n", st.ChunkSize)
			fmt.Fprintf(cmd.OutOrStdout(), "chunk overlap: %d\n", st.ChunkOverlap)
			return nil
		},
	}
}
