package sync

import (
	"fmt"

	"github.com/sahelpos/terminal/internal/db"
	"github.com/sahelpos/terminal/internal/models"
)

// Extractor reads the rows mutated since the last successful
// synchronization checkpoint. It is read-only against the store: a
// stale read only ever lags the latest commit, which is safe because
// anything missed stays ahead of the checkpoint for the next run.
type Extractor struct {
	store *db.Store
}

// NewExtractor creates an Extractor over the given store.
func NewExtractor(store *db.Store) *Extractor {
	return &Extractor{store: store}
}

// Extract builds the changeset of everything written strictly after
// since. Sale lines carry no timestamp of their own: they travel
// transitively with their parent sale.
func (e *Extractor) Extract(since string) (*models.ChangeSet, error) {
	cs := &models.ChangeSet{Timestamp: models.Now()}

	products, err := e.store.ProductsChangedSince(since)
	if err != nil {
		return nil, fmt.Errorf("extract products: %w", err)
	}
	cs.Products = products

	users, err := e.store.UsersChangedSince(since)
	if err != nil {
		return nil, fmt.Errorf("extract users: %w", err)
	}
	cs.Users = users

	sales, err := e.store.SalesCreatedSince(since)
	if err != nil {
		return nil, fmt.Errorf("extract sales: %w", err)
	}
	cs.Sales = sales

	for _, sale := range sales {
		lines, err := e.store.SaleLines(sale.ID)
		if err != nil {
			return nil, fmt.Errorf("extract lines of sale %s: %w", sale.Number, err)
		}
		cs.SaleLines = append(cs.SaleLines, lines...)
	}

	entries, err := e.store.StockEntriesCreatedSince(since)
	if err != nil {
		return nil, fmt.Errorf("extract stock history: %w", err)
	}
	cs.StockEntries = entries

	return cs, nil
}
