package repo

import (
	"context"
	"errors"
)

const (
	getCurrencyRate   = `SELECT rate FROM currencies WHERE id = $1`
	listCurrencyRates = `SELECT id, rate FROM currencies`
)

// Rates reads currency rates from the currencies table.
type Rates struct {
	DB DBTX
}

// Rate returns the stored rate, 0 for an unknown currency.
func (r Rates) Rate(ctx context.Context, currencyID int64) (float64, error) {
	if currencyID == 0 {
		return 0, nil
	}
	var rate float64
	err := r.DB.QueryRow(ctx, getCurrencyRate, currencyID).Scan(&rate)
	if err != nil {
		if errors.Is(mapNoRows(err), ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return rate, nil
}

// AllRates returns every stored rate keyed by currency id.
func (r Rates) AllRates(ctx context.Context) (map[int64]float64, error) {
	rows, err := r.DB.Query(ctx, listCurrencyRates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]float64{}
	for rows.Next() {
		var (
			id   int64
			rate float64
		)
		if err := rows.Scan(&id, &rate); err != nil {
			return nil, err
		}
		out[id] = rate
	}
	return out, rows.Err()
}
