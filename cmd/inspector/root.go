package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/user/pagestate-service/internal/app"
	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/usecase"
	"github.com/user/pagestate-service/pkg/config"
	"github.com/user/pagestate-service/pkg/logger"
	"github.com/user/pagestate-service/pkg/metrics"
	"go.uber.org/zap"
)

// env is what every subcommand shares once configuration is loaded.
type env struct {
	v       *viper.Viper
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	account string
}

func newRootCmd() *cobra.Command {
	e := &env{v: viper.New()}

	root := &cobra.Command{
		Use:           "inspector",
		Short:         "Inspect pages through a real browser with fleet ban protection.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWith(e.v)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = logger.Init(cmd.ErrOrStderr(), logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, LogFile: cfg.LogFile})
			e.metrics = metrics.New(prometheus.NewRegistry())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.log != nil {
				_ = e.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("driver", "", "browser backend: chromedp or rod")
	flags.Bool("headless", true, "run the browser headless")
	flags.String("browser-bin", "", "path to the browser binary")
	flags.String("worker-hostname", "", "hostname blocks are written for (default: os hostname)")
	flags.String("block-store", "", "hostname block store: postgres, redis or sqlite")
	flags.String("event-store", "", "account event store: postgres or sqlite")
	flags.String("sqlite-path", "", "SQLite database file")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "console or json")
	flags.StringVar(&e.account, "account", "", "account ID bans are attributed to")

	for key, name := range map[string]string{
		"BROWSER_DRIVER":  "driver",
		"HEADLESS":        "headless",
		"BROWSER_BIN":     "browser-bin",
		"WORKER_HOSTNAME": "worker-hostname",
		"BLOCK_STORE":     "block-store",
		"EVENT_STORE":     "event-store",
		"SQLITE_PATH":     "sqlite-path",
		"LOG_LEVEL":       "log-level",
		"LOG_FORMAT":      "log-format",
	} {
		_ = e.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		newInspectCmd(e),
		newTextsCmd(e),
		newClickCmd(e),
		newUnblockCmd(e),
	)
	return root
}

// page is a loaded tab with the components acting on it.
type page struct {
	session *usecase.PageSession
	guard   *usecase.PageGuard
	ban     *usecase.BanProtectionCoordinator
	account entity.Account
}

// withPage opens stores and a browser tab, refuses blocked hosts, loads url
// and hands the analyzed page to fn. An analysis that stopped the visit is
// written to out. Everything is torn down afterwards.
func (e *env) withPage(ctx context.Context, out io.Writer, url string, fn func(p *page, result *entity.AnalysisResult) error) error {
	stores, err := app.OpenStores(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	defer stores.Close()
	ban := stores.BanProtection(e.cfg, e.log, e.metrics)

	browser, err := app.OpenBrowser(ctx, e.cfg, e.log)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer browser.Close()

	driver, err := browser.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open tab: %w", err)
	}
	session := usecase.NewPageSession(driver, app.SessionConfig(e.cfg), e.log, e.metrics)
	defer session.Close()

	p := &page{
		session: session,
		guard:   usecase.NewPageGuard(session, ban, e.log),
		ban:     ban,
		account: entity.Account{ID: e.account},
	}
	if err := session.Start(ctx); err != nil {
		return err
	}
	result, err := p.guard.Visit(ctx, p.account, url)
	if err != nil {
		if result != nil {
			_ = writeJSON(out, result)
		}
		return err
	}
	return fn(p, result)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
