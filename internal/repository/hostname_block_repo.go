package repository

import (
	"context"
	"time"

	"github.com/user/pagestate-service/internal/entity"
)

// HostnameBlockRepository defines the interface for the fleet-wide hostname
// block table. It is the only state worker processes must agree on.
type HostnameBlockRepository interface {
	// FindActive returns the block for hostname if it is still in force at
	// now, or nil when there is none or it has expired.
	FindActive(ctx context.Context, hostname string, now time.Time) (*entity.HostnameBlock, error)
	// Block creates or overwrites the block for block.Hostname.
	Block(ctx context.Context, block *entity.HostnameBlock) error
	// Unblock removes the block for hostname, reporting whether one existed.
	Unblock(ctx context.Context, hostname string) (bool, error)
	// ListActive returns every block still in force at now.
	ListActive(ctx context.Context, now time.Time) ([]*entity.HostnameBlock, error)
}
