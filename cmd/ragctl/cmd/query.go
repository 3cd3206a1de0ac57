package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragforge/kbengine/internal/clifmt"
	"github.com/ragforge/kbengine/internal/engine"
	"github.com/ragforge/kbengine/internal/state"
)

func newQueryCmd() *cobra.Command {
	var modeOverride string

	cmd := &cobra.Command{
		Use:   "query TEXT...",
		Short: "Query the knowledge base and print the assembled context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}

			var opts engine.QueryOptions
			if modeOverride != "" {
				m := state.Mode(modeOverride)
				opts.Mode = &m
			}

			res, err := eng.Query(cmd.Context(), strings.Join(args, " "), opts)
			if err != nil {
				return err
			}

			w := clifmt.New(cmd.OutOrStdout())
			w.Context(res.Context)
			fmt.Fprintf(cmd.OutOrStdout(), "\n(%d match(es))\n", res.Metadata.MatchCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&modeOverride, "mode", "", "override the engine's configured mode for this query: single or multi")
	return cmd
}
