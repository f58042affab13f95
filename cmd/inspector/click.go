package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/usecase"
)

func newClickCmd(e *env) *cobra.Command {
	var (
		match   string
		tag     string
		wait    time.Duration
		rescan  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "click <url> <text>",
		Short: "Load a page and click the element showing text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			text := args[1]
			return e.withPage(cmd.Context(), out, args[0], func(p *page, _ *entity.AnalysisResult) error {
				clicker := p.session.Clicker()
				if wait > 0 {
					found, err := clicker.WaitForElement(cmd.Context(), p.session.Control(), text, usecase.WaitOptions{
						MatchType:   entity.MatchType(match),
						ElementType: tag,
						Timeout:     wait,
					})
					if err != nil {
						return err
					}
					if !found {
						return fmt.Errorf("%q did not appear within %s", text, wait)
					}
				}

				ok := clicker.ClickElementWithText(cmd.Context(), text, usecase.ClickOptions{
					MatchType:      entity.MatchType(match),
					ElementType:    tag,
					Timeout:        timeout,
					WaitAfterClick: rescan,
				})
				if !ok {
					return fmt.Errorf("could not click %q", text)
				}
				fmt.Fprintf(out, "clicked %q\n", text)

				// the click may have exposed a ban screen
				if _, err := p.guard.EnsureSafe(cmd.Context(), p.account); err != nil {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&match, "match", string(entity.MatchExact), "exact or contains")
	cmd.Flags().StringVar(&tag, "tag", "", "only consider elements with this tag name")
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for the text to appear")
	cmd.Flags().BoolVar(&rescan, "rescan", true, "rescan elements after the click")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-strategy click timeout")
	return cmd
}
