package models

// StockEntry is one line of the stock audit trail. Entries are pure
// log: never updated, never deleted. Ref is a device-generated unique
// reference so that replaying the same changeset cannot duplicate an
// entry.
type StockEntry struct {
	ID        int64   `db:"id" json:"id"`
	Ref       string  `db:"ref" json:"ref"`
	Barcode   string  `db:"code_barre" json:"code_barre"`
	Delta     float64 `db:"quantite" json:"quantite"`
	Reason    string  `db:"motif" json:"motif"`
	CreatedAt string  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for StockEntry.
func (StockEntry) TableName() string {
	return "historique_stock"
}
