package models

// Sale represents a completed till transaction. Sales are append-only:
// once written they are never updated, so the only cross-device conflict
// is "already present". Number is the natural key, generated on the
// device that rang the sale up.
type Sale struct {
	ID          int64   `db:"id" json:"id"`
	Number      string  `db:"numero" json:"numero"`
	Date        string  `db:"date" json:"date"`
	Total       float64 `db:"total" json:"total"`
	PaymentMode string  `db:"mode_paiement" json:"mode_paiement"`
	UserEmail   string  `db:"utilisateur" json:"utilisateur"`
}

// TableName returns the table name for Sale.
func (Sale) TableName() string {
	return "ventes"
}

// SaleLine represents one line of a sale. Lines are always created with
// their parent sale and carried transitively during synchronization.
//
// SaleID is the parent's local row id on the device that produced the
// line; it is transmitted only as a hint. SaleNumber is the parent's
// natural key and is the authoritative association on merge.
type SaleLine struct {
	ID         int64   `db:"id" json:"id"`
	SaleID     int64   `db:"vente_id" json:"vente_id"`
	SaleNumber string  `db:"numero_vente" json:"numero_vente"`
	Barcode    string  `db:"code_barre" json:"code_barre"`
	Quantity   float64 `db:"quantite" json:"quantite"`
	UnitPrice  float64 `db:"prix_unitaire" json:"prix_unitaire"`
}

// TableName returns the table name for SaleLine.
func (SaleLine) TableName() string {
	return "details_ventes"
}
