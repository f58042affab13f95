package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/usecase"
)

func newInspectCmd(e *env) *cobra.Command {
	var quick, posting bool
	cmd := &cobra.Command{
		Use:   "inspect <url>",
		Short: "Load a page and print its full state analysis",
		Long: `Checks the worker's hostname block, loads the page and analyzes it.
A page showing a banned account blocks this hostname for the whole fleet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return e.withPage(cmd.Context(), out, args[0], func(p *page, result *entity.AnalysisResult) error {
				analyzer := p.session.Analyzer()
				switch {
				case quick:
					summary, err := analyzer.QuickStatusCheck(cmd.Context())
					if err != nil {
						return err
					}
					return writeJSON(out, summary)
				case posting:
					check, err := analyzer.VerifyPostingCapability(cmd.Context())
					if err != nil {
						return err
					}
					return writeJSON(out, check)
				}
				return writeJSON(out, result)
			})
		},
	}
	cmd.Flags().BoolVar(&quick, "quick", false, "print only the quick status check")
	cmd.Flags().BoolVar(&posting, "posting", false, "print only the posting capability check")
	cmd.MarkFlagsMutuallyExclusive("quick", "posting")
	return cmd
}

// describe turns the guard's refusals into one line for the operator.
func describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, usecase.ErrHostBlocked):
		return fmt.Sprintf("host refused: %v", err)
	case errors.Is(err, usecase.ErrAccountBlocked):
		return fmt.Sprintf("account banned, host locked: %v", err)
	}
	return err.Error()
}
