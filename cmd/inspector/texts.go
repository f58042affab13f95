package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/user/pagestate-service/internal/entity"
)

func newTextsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "texts <url>",
		Short: "List the short visible texts the element tracker found on a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return e.withPage(cmd.Context(), out, args[0], func(p *page, _ *entity.AnalysisResult) error {
				for _, text := range p.session.Clicker().GetAvailableTexts(cmd.Context()) {
					fmt.Fprintln(out, text)
				}
				return nil
			})
		},
	}
}
