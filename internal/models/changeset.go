package models

// ChangeSet is the unit of exchange with the central server: every row
// modified since a checkpoint, grouped by entity, plus the extraction
// instant. The JSON field names are the server's wire contract and must
// not change.
type ChangeSet struct {
	Products     []Product    `json:"produits"`
	Sales        []Sale       `json:"ventes"`
	SaleLines    []SaleLine   `json:"details_ventes"`
	StockEntries []StockEntry `json:"historique_stock"`
	Users        []User       `json:"utilisateurs"`
	Timestamp    string       `json:"timestamp"`
}

// Empty reports whether the changeset carries no rows at all. An empty
// changeset is never worth a network round trip.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Products) == 0 &&
		len(cs.Sales) == 0 &&
		len(cs.SaleLines) == 0 &&
		len(cs.StockEntries) == 0 &&
		len(cs.Users) == 0
}

// Size returns the total number of rows across all entities.
func (cs *ChangeSet) Size() int {
	return len(cs.Products) + len(cs.Sales) + len(cs.SaleLines) +
		len(cs.StockEntries) + len(cs.Users)
}

// PullRequest is the body of a pull call: the checkpoint after which
// the server should report its accumulated changes.
type PullRequest struct {
	Since string `json:"depuis"`
}
