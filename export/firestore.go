package export

import (
	"context"
	"fmt"
	"time"

	"sitaraServer/config"
	"sitaraServer/db"
	"sitaraServer/fbapp"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	collectionBazaars = "bazaars"
	collectionResults = "results"
	collectionWallets = "wallets"
)

// Mirror copies read-models into the app-facing store.
type Mirror interface {
	MirrorBazaar(ctx context.Context, b db.Bazaar) error
	DeleteBazaar(ctx context.Context, id string) error
	MirrorResult(ctx context.Context, r db.Result) error
	DeleteResult(ctx context.Context, bazaarID, date string) error
	MirrorWallet(ctx context.Context, userID string, balance decimal.Decimal) error
	ExportAll(ctx context.Context, snap *Snapshot) (Summary, error)
	Enabled() bool
	Close() error
}

// Summary reports what a full export wrote.
type Summary struct {
	Bazaars  int           `json:"bazaars"`
	Results  int           `json:"results"`
	Wallets  int           `json:"wallets"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Snapshot is the data a full export writes.
type Snapshot struct {
	Bazaars  []db.Bazaar
	Results  []db.Result
	Balances map[string]string
}

// LoadSnapshot reads every bazaar, the results of the last days days
// ending at today, and all wallet balances.
func LoadSnapshot(ctx context.Context, today time.Time, days int) (*Snapshot, error) {
	bazaars, err := db.ListBazaars(ctx, false)
	if err != nil {
		return nil, err
	}

	from := today.AddDate(0, 0, -(days - 1)).Format(config.DateLayout)
	results, err := db.ListResults(ctx, "", from, today.Format(config.DateLayout))
	if err != nil {
		return nil, err
	}

	balances, err := db.AllUserBalances(ctx)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Bazaars: bazaars, Results: results, Balances: balances}, nil
}

// ResultDocID is the document id of a bazaar's result for a date.
func ResultDocID(bazaarID, date string) string {
	return bazaarID + "_" + date
}

func bazaarDoc(b db.Bazaar) map[string]any {
	weekdays := b.ClosedWeekdays
	if weekdays == nil {
		weekdays = []int{}
	}
	return map[string]any{
		"name":           b.Name,
		"openTime":       b.OpenTime,
		"closeTime":      b.CloseTime,
		"closedWeekdays": weekdays,
		"active":         b.Active,
		"sortOrder":      b.SortOrder,
		"updatedAt":      firestore.ServerTimestamp,
	}
}

func resultDoc(r db.Result) map[string]any {
	return map[string]any{
		"bazaarId":   r.BazaarID,
		"bazaarName": r.BazaarName,
		"date":       r.Date,
		"openPanna":  r.OpenPanna,
		"closePanna": r.ClosePanna,
		"openAnk":    r.OpenAnk,
		"closeAnk":   r.CloseAnk,
		"jodi":       r.Jodi,
		"display":    r.Display,
		"updatedAt":  firestore.ServerTimestamp,
	}
}

func walletDoc(balance string) map[string]any {
	return map[string]any{
		"balance":   balance,
		"updatedAt": firestore.ServerTimestamp,
	}
}

// FirestoreMirror writes to Cloud Firestore
type FirestoreMirror struct {
	client *firestore.Client
}

// NewFirestoreMirror connects to Firestore, or returns a NopMirror when
// Firebase is not configured.
func NewFirestoreMirror(ctx context.Context, cfg config.FirebaseConfig) (Mirror, error) {
	if !cfg.Enabled() {
		zap.S().Info("🔕 Firestore mirror disabled")
		return NopMirror{}, nil
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	client, err := firestore.NewClient(ctx, projectID, fbapp.ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	zap.S().Info("✅ Firestore mirror enabled")
	return &FirestoreMirror{client: client}, nil
}

func (m *FirestoreMirror) Enabled() bool { return true }

func (m *FirestoreMirror) Close() error {
	return m.client.Close()
}

func (m *FirestoreMirror) MirrorBazaar(ctx context.Context, b db.Bazaar) error {
	_, err := m.client.Collection(collectionBazaars).Doc(b.ID).Set(ctx, bazaarDoc(b), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to mirror bazaar %s: %w", b.ID, err)
	}
	return nil
}

func (m *FirestoreMirror) DeleteBazaar(ctx context.Context, id string) error {
	if _, err := m.client.Collection(collectionBazaars).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete mirrored bazaar %s: %w", id, err)
	}
	return nil
}

func (m *FirestoreMirror) MirrorResult(ctx context.Context, r db.Result) error {
	doc := m.client.Collection(collectionResults).Doc(ResultDocID(r.BazaarID, r.Date))
	if _, err := doc.Set(ctx, resultDoc(r)); err != nil {
		return fmt.Errorf("failed to mirror result %s/%s: %w", r.BazaarID, r.Date, err)
	}
	return nil
}

func (m *FirestoreMirror) DeleteResult(ctx context.Context, bazaarID, date string) error {
	doc := m.client.Collection(collectionResults).Doc(ResultDocID(bazaarID, date))
	if _, err := doc.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete mirrored result %s/%s: %w", bazaarID, date, err)
	}
	return nil
}

func (m *FirestoreMirror) MirrorWallet(ctx context.Context, userID string, balance decimal.Decimal) error {
	doc := m.client.Collection(collectionWallets).Doc(userID)
	if _, err := doc.Set(ctx, walletDoc(balance.StringFixed(2)), firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to mirror wallet %s: %w", userID, err)
	}
	return nil
}

// ExportAll writes the whole snapshot through a BulkWriter. Individual
// document failures are counted, not returned.
func (m *FirestoreMirror) ExportAll(ctx context.Context, snap *Snapshot) (Summary, error) {
	start := time.Now()
	bw := m.client.BulkWriter(ctx)

	var jobs []*firestore.BulkWriterJob
	enqueue := func(ref *firestore.DocumentRef, data map[string]any) error {
		job, err := bw.Set(ref, data)
		if err != nil {
			return fmt.Errorf("failed to queue %s: %w", ref.Path, err)
		}
		jobs = append(jobs, job)
		return nil
	}

	var summary Summary
	for _, b := range snap.Bazaars {
		if err := enqueue(m.client.Collection(collectionBazaars).Doc(b.ID), bazaarDoc(b)); err != nil {
			bw.End()
			return summary, err
		}
		summary.Bazaars++
	}
	for _, r := range snap.Results {
		if err := enqueue(m.client.Collection(collectionResults).Doc(ResultDocID(r.BazaarID, r.Date)), resultDoc(r)); err != nil {
			bw.End()
			return summary, err
		}
		summary.Results++
	}
	for userID, balance := range snap.Balances {
		if err := enqueue(m.client.Collection(collectionWallets).Doc(userID), walletDoc(balance)); err != nil {
			bw.End()
			return summary, err
		}
		summary.Wallets++
	}

	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			summary.Failed++
			zap.L().Warn("export write failed", zap.Error(err))
		}
	}

	summary.Duration = time.Since(start)
	zap.S().Infof("📤 Firestore export: %d bazaars, %d results, %d wallets, %d failed in %s",
		summary.Bazaars, summary.Results, summary.Wallets, summary.Failed, summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// NopMirror discards every write.
type NopMirror struct{}

func (NopMirror) MirrorBazaar(context.Context, db.Bazaar) error { return nil }
func (NopMirror) DeleteBazaar(context.Context, string) error { return nil }
func (NopMirror) MirrorResult(context.Context, db.Result) error { return nil }
func (NopMirror) DeleteResult(context.Context, string, string) error { return nil }
func (NopMirror) MirrorWallet(context.Context, string, decimal.Decimal) error { return nil }
func (NopMirror) Enabled() bool { return false }
func (NopMirror) Close() error { return nil }
func (NopMirror) ExportAll(context.Context, *Snapshot) (Summary, error) { return Summary{}, nil }
