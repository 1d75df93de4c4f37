package vault

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clapogame/clapobot/internal/domain"
)

const testAddr = "0x1111111111111111111111111111111111111111"

func testSecret() domain.Secret {
	return domain.Secret{
		Symbols: []string{"BTC", "ETH", "ADA", "DOGE", "TRX", "SHIB", "PEPE"},
		Roles: []domain.Role{
			domain.RoleLeader, domain.RoleCoLeader,
			domain.RoleRegular, domain.RoleRegular, domain.RoleRegular,
			domain.RoleRegular, domain.RoleRegular,
		},
		Salt: "clapo-1700000000000000000-test",
	}
}

func openTestVault(t *testing.T, passphrase string) (*Bolt, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.vault")
	v, err := Open(path, passphrase)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v, path
}

func TestStoreLoadRoundTrip(t *testing.T) {
	for _, passphrase := range []string{"", "hunter2"} {
		name := "plain"
		if passphrase != "" {
			name = "sealed"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			v, _ := openTestVault(t, passphrase)

			secret := testSecret()
			require.NoError(t, v.Store(ctx, MatchKey(7), secret))

			got, err := v.Load(ctx, MatchKey(7))
			require.NoError(t, err)
			assert.Equal(t, secret, got)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	ctx := context.Background()
	v, _ := openTestVault(t, "")

	_, err := v.Load(ctx, MatchKey(99))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSecretSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.vault")

	v, err := Open(path, "hunter2")
	require.NoError(t, err)
	secret := testSecret()
	require.NoError(t, v.Store(ctx, MatchKey(3), secret))
	require.NoError(t, v.Close())

	reopened, err := Open(path, "hunter2")
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, MatchKey(3))
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestUnsealWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wrongpass.vault")

	v, err := Open(path, "correct")
	require.NoError(t, err)
	require.NoError(t, v.Store(ctx, MatchKey(1), testSecret()))
	require.NoError(t, v.Close())

	wrong, err := Open(path, "incorrect")
	require.NoError(t, err)
	defer wrong.Close()

	_, err = wrong.Load(ctx, MatchKey(1))
	assert.Error(t, err)
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	v, _ := openTestVault(t, "")

	require.NoError(t, v.Store(ctx, MatchKey(5), testSecret()))
	require.NoError(t, v.Clear(ctx, MatchKey(5)))
	require.NoError(t, v.Clear(ctx, MatchKey(5)))

	_, err := v.Load(ctx, MatchKey(5))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdoptPromotesPendingSecret(t *testing.T) {
	ctx := context.Background()
	v, _ := openTestVault(t, "hunter2")

	secret := testSecret()
	require.NoError(t, v.Store(ctx, PendingKey(testAddr), secret))
	require.NoError(t, v.Adopt(ctx, testAddr, 42))

	got, err := v.Load(ctx, MatchKey(42))
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	_, err = v.Load(ctx, PendingKey(testAddr))
	assert.ErrorIs(t, err, domain.ErrNotFound, "pending key cleared on adopt")

	id, err := v.Sessions().Get(ctx, testAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id, "session recorded in the same transaction")
}

func TestAdoptWithoutPendingSecret(t *testing.T) {
	ctx := context.Background()
	v, _ := openTestVault(t, "")

	err := v.Adopt(ctx, testAddr, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = v.Sessions().Get(ctx, testAddr)
	assert.ErrorIs(t, err, domain.ErrNoActiveMatch, "failed adopt leaves no session")
}

func TestResolveClearsEverything(t *testing.T) {
	ctx := context.Background()
	v, _ := openTestVault(t, "")

	require.NoError(t, v.Store(ctx, PendingKey(testAddr), testSecret()))
	require.NoError(t, v.Adopt(ctx, testAddr, 9))
	require.NoError(t, v.Resolve(ctx, testAddr, 9))

	_, err := v.Load(ctx, MatchKey(9))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = v.Sessions().Get(ctx, testAddr)
	assert.ErrorIs(t, err, domain.ErrNoActiveMatch)

	// Resolving an already-resolved match is harmless.
	assert.NoError(t, v.Resolve(ctx, testAddr, 9))
}

func TestSessionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	v, _ := openTestVault(t, "")
	sessions := v.Sessions()

	_, err := sessions.Get(ctx, testAddr)
	assert.ErrorIs(t, err, domain.ErrNoActiveMatch)

	require.NoError(t, sessions.Set(ctx, testAddr, 17))
	id, err := sessions.Get(ctx, testAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), id)

	require.NoError(t, sessions.Clear(ctx, testAddr))
	_, err = sessions.Get(ctx, testAddr)
	assert.ErrorIs(t, err, domain.ErrNoActiveMatch)
}
