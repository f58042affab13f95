package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/user/pagestate-service/internal/repository"
	"github.com/user/pagestate-service/pkg/metrics"
	"go.uber.org/zap"
)

// PageSessionConfig tunes the components of a PageSession.
type PageSessionConfig struct {
	AnalysisTTL       time.Duration
	ElementCacheLimit int
	ClicksPerSecond   float64
	Tracking          TrackingOptions
}

// PageSession owns everything bound to one browser tab. Close it before the
// tab goes away so tracking stops with the page.
type PageSession struct {
	driver   repository.PageDriver
	tracker  *ElementTracker
	analyzer *PageStateAnalyzer
	clicker  *ClickOrchestrator
	control  *SessionControl
	tracking TrackingOptions
	logger   *zap.Logger

	closeOnce sync.Once
}

func NewPageSession(driver repository.PageDriver, cfg PageSessionConfig, logger *zap.Logger, m *metrics.Metrics) *PageSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	tracker := NewElementTracker(driver, NewElementCache(cfg.ElementCacheLimit), logger, m)
	return &PageSession{
		driver:   driver,
		tracker:  tracker,
		analyzer: NewPageStateAnalyzer(driver, nil, logger, m, cfg.AnalysisTTL),
		clicker:  NewClickOrchestrator(driver, tracker, logger, m, cfg.ClicksPerSecond),
		control:  NewSessionControl(),
		tracking: cfg.Tracking,
		logger:   logger.Named("session"),
	}
}

func (s *PageSession) Driver() repository.PageDriver { return s.driver }
func (s *PageSession) Tracker() *ElementTracker      { return s.tracker }
func (s *PageSession) Analyzer() *PageStateAnalyzer  { return s.analyzer }
func (s *PageSession) Clicker() *ClickOrchestrator   { return s.clicker }
func (s *PageSession) Control() *SessionControl      { return s.control }

// Start begins element tracking with the configured options.
func (s *PageSession) Start(ctx context.Context) error {
	return s.tracker.StartElementTracking(ctx, s.tracking)
}

// Navigate loads url, drops its stale analysis and rescans its elements.
func (s *PageSession) Navigate(ctx context.Context, url string) error {
	if err := s.driver.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	current, err := s.driver.URL(ctx)
	if err != nil {
		current = url
	}
	s.analyzer.InvalidateCache(url)
	s.analyzer.InvalidateCache(current)
	if _, err := s.tracker.Refresh(ctx); err != nil {
		s.logger.Warn("Element scan after navigation failed", zap.String("url", current), zap.Error(err))
	}
	return nil
}

// Close stops tracking. It is safe to call more than once.
func (s *PageSession) Close() {
	s.closeOnce.Do(func() {
		s.control.RequestCancel()
		s.tracker.StopElementTracking()
		s.logger.Debug("Page session closed")
	})
}
