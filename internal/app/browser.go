package app

import (
	"context"
	"fmt"

	"github.com/user/pagestate-service/internal/adapter/chromedp_driver"
	"github.com/user/pagestate-service/internal/adapter/rod_driver"
	"github.com/user/pagestate-service/internal/repository"
	"github.com/user/pagestate-service/internal/usecase"
	"github.com/user/pagestate-service/pkg/config"
	"go.uber.org/zap"
)

// Browser opens tabs on whichever automation backend BROWSER_DRIVER picks.
type Browser interface {
	NewPage() (repository.PageDriver, error)
	Close()
}

type chromedpBrowser struct{ b *chromedp_driver.Browser }

func (c chromedpBrowser) NewPage() (repository.PageDriver, error) {
	d, err := c.b.NewPage()
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c chromedpBrowser) Close() { c.b.Close() }

type rodBrowser struct{ b *rod_driver.Browser }

func (r rodBrowser) NewPage() (repository.PageDriver, error) { return r.b.NewPage(), nil }
func (r rodBrowser) Close()                                  { r.b.Close() }

// OpenBrowser launches the configured browser backend.
func OpenBrowser(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Browser, error) {
	switch cfg.BrowserDriver {
	case "chromedp":
		b, err := chromedp_driver.NewBrowser(ctx, chromedp_driver.Options{
			Headless:        cfg.Headless,
			ExecPath:        cfg.BrowserBin,
			PageLoadTimeout: cfg.PageLoadTimeout(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return chromedpBrowser{b}, nil
	case "rod":
		return rodBrowser{rod_driver.NewBrowser(rod_driver.Options{
			Headless:        cfg.Headless,
			BinPath:         cfg.BrowserBin,
			PageLoadTimeout: cfg.PageLoadTimeout(),
		}, logger)}, nil
	}
	return nil, fmt.Errorf("unknown browser driver %q", cfg.BrowserDriver)
}

// SessionConfig maps configuration onto page session tuning.
func SessionConfig(cfg *config.Config) usecase.PageSessionConfig {
	return usecase.PageSessionConfig{
		AnalysisTTL:       cfg.AnalysisCacheTTL(),
		ElementCacheLimit: cfg.ElementCacheLimit,
		ClicksPerSecond:   cfg.ClickRatePerSec,
		Tracking: usecase.TrackingOptions{
			UpdateInterval:  cfg.TrackerInterval(),
			MaxWords:        cfg.TrackerMaxWords,
			OnlyVisible:     true,
			AutoTrack:       true,
			URLPollInterval: cfg.URLPollInterval(),
			SettleDelay:     cfg.SPASettle(),
		},
	}
}
