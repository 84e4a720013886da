package db

import (
	"sync"
	"testing"

	"sitaraServer/config"
	"sitaraServer/game"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteBazaar(t *testing.T) {
	ctx := setupPostgres(t)
	withRedis := useRedis(t)
	f, settings := fundedFixture(t, ctx)

	t.Run("unknown bazaar", func(t *testing.T) {
		assert.ErrorIs(t, DeleteBazaar(ctx, uuid.NewString()), ErrNotFound)
	})

	t.Run("racing a bet never fails with an internal error", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			b, err := CreateBazaar(ctx, BazaarInput{Name: "Race Bazaar " + uuid.NewString()[:8], OpenTime: "10:00", CloseTime: "12:00"})
			require.NoError(t, err)
			t.Cleanup(func() {
				_, _ = PostgresPool.Exec(ctx, `DELETE FROM bets WHERE bazaar_id = $1`, b.ID)
				_, _ = PostgresPool.Exec(ctx, `DELETE FROM bazaars WHERE id = $1`, b.ID)
			})

			start := make(chan struct{})
			var wg sync.WaitGroup
			var betErr, delErr error
			wg.Add(2)
			go func() {
				defer wg.Done()
				<-start
				_, betErr = PlaceBets(ctx, f.user.ID, b.ID, "2031-05-01", []BetRequest{
					{GameType: game.SingleDigit, Session: game.SessionOpen, Number: "3", Amount: settings.MinBet},
				})
			}()
			go func() {
				defer wg.Done()
				<-start
				delErr = DeleteBazaar(ctx, b.ID)
			}()
			close(start)
			wg.Wait()

			if betErr == nil {
				assert.ErrorIs(t, delErr, ErrBazaarInUse)
			} else {
				assert.ErrorIs(t, betErr, ErrNotFound)
				assert.NoError(t, delErr)
			}
		}
	})

	t.Run("deleting drops the cached list", func(t *testing.T) {
		if !withRedis {
			t.Skip("REDIS_URL not set")
		}
		b, err := CreateBazaar(ctx, BazaarInput{Name: "Cached Bazaar " + uuid.NewString()[:8], OpenTime: "10:00", CloseTime: "12:00"})
		require.NoError(t, err)

		_, err = ListActiveBazaarsCached(ctx)
		require.NoError(t, err)

		require.NoError(t, DeleteBazaar(ctx, b.ID))

		var cached []Bazaar
		assert.False(t, GetCachedJSON(ctx, config.RedisBazaarListKey, &cached))
	})
}
