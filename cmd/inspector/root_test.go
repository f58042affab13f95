package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/pagestate-service/internal/adapter/sqlite"
	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/usecase"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedBlock(t *testing.T, path, host string) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	now := time.Now()
	require.NoError(t, store.Block(context.Background(), &entity.HostnameBlock{
		Hostname:        host,
		BlockedUntil:    now.Add(45 * time.Minute),
		Reason:          "locked",
		BlockType:       entity.ErrorTypeAccountLocked,
		DurationMinutes: 45,
		CreatedAt:       now,
	}))
}

func TestUnblockCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagestate.db")
	seedBlock(t, path, "worker-3")
	seedBlock(t, path, "worker-9")
	flags := []string{"--block-store", "sqlite", "--event-store", "sqlite", "--sqlite-path", path, "--worker-hostname", "Worker-9", "--log-level", "error"}

	out, err := run(t, append([]string{"unblock", "worker-3"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "worker-3 unblocked\n", out)

	out, err = run(t, append([]string{"unblock", "worker-3"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "worker-3 was not blocked\n", out)

	out, err = run(t, append([]string{"unblock"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "worker-9 unblocked\n", out, "defaults to this worker")
}

func TestFlagsOverrideConfig(t *testing.T) {
	_, err := run(t, "unblock", "--block-store", "etcd", "--worker-hostname", "w")
	assert.ErrorContains(t, err, `unknown BLOCK_STORE "etcd"`)

	_, err = run(t, "inspect")
	assert.Error(t, err, "url is required")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", describe(nil))
	assert.Equal(t, "host refused: hostname is blocked: locked (12 minutes left)",
		describe(fmt.Errorf("%w: locked (12 minutes left)", usecase.ErrHostBlocked)))
	assert.Contains(t, describe(fmt.Errorf("%w: ACCOUNT_LOCKED", usecase.ErrAccountBlocked)), "account banned")
	assert.Equal(t, "boom", describe(errors.New("boom")))
}
