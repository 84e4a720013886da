package export

import (
	"context"
	"os"
	"testing"
	"time"

	"sitaraServer/config"
	"sitaraServer/db"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocuments(t *testing.T) {
	b := db.Bazaar{ID: "b1", Name: "Kalyan", OpenTime: "15:45", CloseTime: "17:45", Active: true}
	doc := bazaarDoc(b)
	assert.Equal(t, "Kalyan", doc["name"])
	assert.Equal(t, []int{}, doc["closedWeekdays"])
	assert.Equal(t, firestore.ServerTimestamp, doc["updatedAt"])

	r := db.Result{BazaarID: "b1", Date: "2024-01-08", OpenPanna: "128", OpenAnk: "1", Display: "128-1*-***"}
	rd := resultDoc(r)
	assert.Equal(t, "128-1*-***", rd["display"])
	assert.Equal(t, "", rd["closePanna"])

	assert.Equal(t, "b1_2024-01-08", ResultDocID("b1", "2024-01-08"))
	assert.Equal(t, "12.50", walletDoc("12.50")["balance"])
}

func TestDisabledMirror(t *testing.T) {
	m, err := NewFirestoreMirror(context.Background(), config.FirebaseConfig{})
	require.NoError(t, err)
	assert.False(t, m.Enabled())

	ctx := context.Background()
	assert.NoError(t, m.MirrorWallet(ctx, "u1", decimal.NewFromInt(10)))
	sum, err := m.ExportAll(ctx, &Snapshot{Bazaars: []db.Bazaar{{ID: "b1"}}})
	require.NoError(t, err)
	assert.Zero(t, sum.Bazaars)
	assert.NoError(t, m.Close())
}

// Runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST is set.
func TestFirestoreMirrorEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	m, err := NewFirestoreMirror(ctx, config.FirebaseConfig{ProjectID: "sitara-test"})
	require.NoError(t, err)
	defer m.Close()

	fm := m.(*FirestoreMirror)
	id := "test-" + time.Now().Format("150405.000000")

	require.NoError(t, m.MirrorBazaar(ctx, db.Bazaar{ID: id, Name: "Emu", OpenTime: "10:00", CloseTime: "11:00"}))
	snap, err := fm.client.Collection(collectionBazaars).Doc(id).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Emu", snap.Data()["name"])

	sum, err := m.ExportAll(ctx, &Snapshot{
		Bazaars:  []db.Bazaar{{ID: id, Name: "Emu"}},
		Results:  []db.Result{{BazaarID: id, Date: "2024-01-08", OpenPanna: "128"}},
		Balances: map[string]string{id: "100.00"},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Bazaars: 1, Results: 1, Wallets: 1}, Summary{Bazaars: sum.Bazaars, Results: sum.Results, Wallets: sum.Wallets, Failed: sum.Failed})

	require.NoError(t, m.DeleteResult(ctx, id, "2024-01-08"))
	require.NoError(t, m.DeleteBazaar(ctx, id))
}
