package usecase

import (
	"context"
	"fmt"

	"github.com/user/pagestate-service/internal/entity"
	"go.uber.org/zap"
)

// PageGuard is the gate a worker passes before acting on a page: host block
// check, page analysis, and the ban reaction when the page shows one.
type PageGuard struct {
	session *PageSession
	ban     *BanProtectionCoordinator
	logger  *zap.Logger
}

func NewPageGuard(session *PageSession, ban *BanProtectionCoordinator, logger *zap.Logger) *PageGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageGuard{session: session, ban: ban, logger: logger.Named("guard")}
}

// EnsureHostFree fails with ErrHostBlocked while this machine is blocked.
func (g *PageGuard) EnsureHostFree(ctx context.Context) error {
	block, err := g.ban.ActiveBlock(ctx, g.ban.Hostname())
	if err != nil {
		return err
	}
	if block != nil {
		return fmt.Errorf("%w: %s (%d minutes left)", ErrHostBlocked, block.Reason, block.RemainingMinutes(g.ban.now()))
	}
	return nil
}

// EnsureSafe checks the host block, analyzes the current page and, if the
// page shows a banned account, blocks the host and fails with
// ErrAccountBlocked. The analysis is returned whenever it ran.
func (g *PageGuard) EnsureSafe(ctx context.Context, account entity.Account) (*entity.AnalysisResult, error) {
	if err := g.EnsureHostFree(ctx); err != nil {
		return nil, err
	}

	result, err := g.session.Analyzer().AnalyzeFullPage(ctx, AnalyzeOptions{})
	if err != nil {
		return nil, err
	}

	banType, banned := BanTypeOf(result)
	if !banned {
		return result, nil
	}

	g.logger.Error("Account ban detected",
		zap.String("account", account.ID),
		zap.String("type", string(banType)),
		zap.String("url", result.URL),
	)
	reason := result.Errors.Reason
	if reason == "" {
		reason = string(banType)
	}
	g.ban.HandleNewAccountBlock(ctx, account, reason, banType)
	return result, fmt.Errorf("%w: %s", ErrAccountBlocked, banType)
}

// Visit refuses to load url on a blocked host, loads it and runs EnsureSafe.
func (g *PageGuard) Visit(ctx context.Context, account entity.Account, url string) (*entity.AnalysisResult, error) {
	if err := g.EnsureHostFree(ctx); err != nil {
		return nil, err
	}
	if err := g.session.Navigate(ctx, url); err != nil {
		return nil, err
	}
	return g.EnsureSafe(ctx, account)
}
