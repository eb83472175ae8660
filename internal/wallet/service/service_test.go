package service

import (
	"testing"

	"github.com/telewallet/telewallet/internal/wallet/store"
	"github.com/telewallet/telewallet/internal/wallet/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}
