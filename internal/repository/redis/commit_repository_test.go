package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alfanzaky/txqueue/internal/domain"
)

// Set TEST_REDIS_ADDR (host:port) to run against a live server.
func newTestRepository(t *testing.T) *CommitRepository {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	prefix := "txqueue-test-" + uuid.NewString()
	t.Cleanup(func() {
		client.Del(context.Background(), prefix+LedgerKeySuffix, prefix+StreamKeySuffix)
	})
	return NewCommitRepository(client, prefix)
}

func TestRedisCommitIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	tx, err := domain.CreateTransactionRequest{
		Account: "acct", Amount: 500, Currency: "USD", Kind: domain.KindNameCredit,
	}.ToTransaction(time.Now())
	require.NoError(t, err)

	require.NoError(t, repo.Commit(ctx, tx))
	require.NoError(t, repo.Commit(ctx, tx))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	recent, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, tx.ID.String(), recent[0].ID)

	got, err := repo.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, int64(500), got.Amount)

	missing, err := repo.Get(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}
