package models

// Product represents a catalogue item. The barcode is the natural key
// shared across devices; ID is meaningful only on the device that
// created the row.
type Product struct {
	ID            int64   `db:"id" json:"id"`
	Barcode       string  `db:"code_barre" json:"code_barre"`
	Name          string  `db:"nom" json:"nom"`
	PurchasePrice float64 `db:"prix_achat" json:"prix_achat"`
	SalePrice     float64 `db:"prix_vente" json:"prix_vente"`
	Stock         float64 `db:"stock" json:"stock"`
	UpdatedAt     string  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Product.
func (Product) TableName() string {
	return "produits"
}
