package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const resultColumns = `r.bazaar_id, b.name, r.result_date, r.open_panna, r.close_panna,
	r.open_declared_at, r.close_declared_at, r.updated_at`

func scanResult(row pgx.Row) (*Result, error) {
	var r Result
	var date time.Time
	if err := row.Scan(&r.BazaarID, &r.BazaarName, &date, &r.OpenPanna, &r.ClosePanna,
		&r.OpenDeclaredAt, &r.CloseDeclaredAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Date = dateString(date)
	r.fillDerived()
	return &r, nil
}

// GetResult returns one bazaar's result for a date
func GetResult(ctx context.Context, bazaarID, date string) (*Result, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	r, err := scanResult(PostgresPool.QueryRow(ctx, `
		SELECT `+resultColumns+`
		FROM results r JOIN bazaars b ON b.id = r.bazaar_id
		WHERE r.bazaar_id = $1 AND r.result_date = $2::date
	`, bazaarID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return r, nil
}

// ListResults returns results between from and to inclusive, newest date
// first and in bazaar display order within a date. An empty bazaarID
// matches every bazaar.
func ListResults(ctx context.Context, bazaarID, from, to string) ([]Result, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	rows, err := PostgresPool.Query(ctx, `
		SELECT `+resultColumns+`
		FROM results r JOIN bazaars b ON b.id = r.bazaar_id
		WHERE r.result_date BETWEEN $1::date AND $2::date
		  AND ($3 = '' OR r.bazaar_id = $3)
		ORDER BY r.result_date DESC, b.sort_order, b.open_time, b.name
	`, from, to, bazaarID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// ResultsByBazaar indexes a day's results for the board view
func ResultsByBazaar(ctx context.Context, date string) (map[string]Result, error) {
	results, err := ListResults(ctx, "", date, date)
	if err != nil {
		return nil, err
	}

	byBazaar := make(map[string]Result, len(results))
	for _, r := range results {
		byBazaar[r.BazaarID] = r
	}
	return byBazaar, nil
}
