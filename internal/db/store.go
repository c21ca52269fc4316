// Package db provides the repository operations for the terminal data models.
package db

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/sahelpos/terminal/internal/models"
)

// Parameter keys persisted in the parametres table.
const (
	ParamLastSync = "derniere_synchro"
	ParamDeviceID = "device_id"
)

// Store provides repository operations over the terminal database. It is
// an explicit handle passed into every component that touches the store:
// there is no package-level connection.
type Store struct {
	db *sql.DB

	// Prepared statement cache for frequently used queries.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewStore creates a new Store instance.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (s *Store) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (s *Store) Close() error {
	var firstErr error
	s.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// Parameters (checkpoint, device id)
// =====================================================

// GetParameter returns the value for a parameter key, or fallback when
// the key is absent.
func (s *Store) GetParameter(key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT valeur FROM parametres WHERE cle = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetParameter upserts a parameter value.
func (s *Store) SetParameter(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO parametres (cle, valeur) VALUES (?, ?)
		ON CONFLICT(cle) DO UPDATE SET valeur = excluded.valeur
	`, key, value)
	return err
}

// Checkpoint returns the last successful synchronization instant, or the
// far-past sentinel when the terminal has never synchronized.
func (s *Store) Checkpoint() (string, error) {
	return s.GetParameter(ParamLastSync, models.TimeSentinel)
}

// AdvanceCheckpoint moves the checkpoint forward to ts. The checkpoint
// is monotonically non-decreasing: an older value is silently ignored.
func (s *Store) AdvanceCheckpoint(ts string) error {
	current, err := s.Checkpoint()
	if err != nil {
		return err
	}
	if !models.Newer(ts, current) {
		return nil
	}
	return s.SetParameter(ParamLastSync, ts)
}

// =====================================================
// Product operations
// =====================================================

// GetProductByBarcode retrieves a product by its natural key.
func (s *Store) GetProductByBarcode(barcode string) (*models.Product, error) {
	query := `
	SELECT id, code_barre, nom, prix_achat, prix_vente, stock, updated_at
	FROM produits WHERE code_barre = ?
	`
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var p models.Product
	err = stmt.QueryRow(barcode).Scan(
		&p.ID, &p.Barcode, &p.Name, &p.PurchasePrice, &p.SalePrice, &p.Stock, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProduct creates a local product, stamping its watermark.
func (s *Store) SaveProduct(p *models.Product) error {
	if p.UpdatedAt == "" {
		p.UpdatedAt = models.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO produits (code_barre, nom, prix_achat, prix_vente, stock, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Barcode, p.Name, p.PurchasePrice, p.SalePrice, p.Stock, p.UpdatedAt)
	if err != nil {
		return err
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// UpdateProduct updates a local product by natural key and refreshes its
// watermark.
func (s *Store) UpdateProduct(p *models.Product) error {
	p.UpdatedAt = models.Now()
	_, err := s.db.Exec(`
		UPDATE produits SET nom = ?, prix_achat = ?, prix_vente = ?, stock = ?, updated_at = ?
		WHERE code_barre = ?
	`, p.Name, p.PurchasePrice, p.SalePrice, p.Stock, p.UpdatedAt, p.Barcode)
	return err
}

// UpsertProductFromRemote writes an incoming product row, keeping the
// incoming watermark verbatim so replay stays idempotent. The local row
// id is never touched.
func (s *Store) UpsertProductFromRemote(p *models.Product) error {
	_, err := s.db.Exec(`
		INSERT INTO produits (code_barre, nom, prix_achat, prix_vente, stock, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code_barre) DO UPDATE SET
			nom = excluded.nom,
			prix_achat = excluded.prix_achat,
			prix_vente = excluded.prix_vente,
			stock = excluded.stock,
			updated_at = excluded.updated_at
	`, p.Barcode, p.Name, p.PurchasePrice, p.SalePrice, p.Stock, p.UpdatedAt)
	return err
}

// ProductsChangedSince returns products whose watermark is strictly
// greater than since, ordered by watermark.
func (s *Store) ProductsChangedSince(since string) ([]models.Product, error) {
	rows, err := s.db.Query(`
		SELECT id, code_barre, nom, prix_achat, prix_vente, stock, updated_at
		FROM produits WHERE updated_at > ? ORDER BY updated_at
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.PurchasePrice, &p.SalePrice, &p.Stock, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// =====================================================
// User operations
// =====================================================

// GetUserByEmail retrieves a user by its natural key.
func (s *Store) GetUserByEmail(email string) (*models.User, error) {
	query := `
	SELECT id, email, nom, role, mot_de_passe, updated_at
	FROM utilisateurs WHERE email = ?
	`
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var u models.User
	err = stmt.QueryRow(email).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUser creates a local user, stamping its watermark.
func (s *Store) SaveUser(u *models.User) error {
	if u.UpdatedAt == "" {
		u.UpdatedAt = models.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO utilisateurs (email, nom, role, mot_de_passe, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.Email, u.Name, u.Role, u.PasswordHash, u.UpdatedAt)
	if err != nil {
		return err
	}
	u.ID, _ = res.LastInsertId()
	return nil
}

// UpdateUser updates a local user by natural key and refreshes its
// watermark.
func (s *Store) UpdateUser(u *models.User) error {
	u.UpdatedAt = models.Now()
	_, err := s.db.Exec(`
		UPDATE utilisateurs SET nom = ?, role = ?, mot_de_passe = ?, updated_at = ?
		WHERE email = ?
	`, u.Name, u.Role, u.PasswordHash, u.UpdatedAt, u.Email)
	return err
}

// UpsertUserFromRemote writes an incoming user row, keeping the incoming
// watermark verbatim.
func (s *Store) UpsertUserFromRemote(u *models.User) error {
	_, err := s.db.Exec(`
		INSERT INTO utilisateurs (email, nom, role, mot_de_passe, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			nom = excluded.nom,
			role = excluded.role,
			mot_de_passe = excluded.mot_de_passe,
			updated_at = excluded.updated_at
	`, u.Email, u.Name, u.Role, u.PasswordHash, u.UpdatedAt)
	return err
}

// UsersChangedSince returns users whose watermark is strictly greater
// than since, ordered by watermark.
func (s *Store) UsersChangedSince(since string) ([]models.User, error) {
	rows, err := s.db.Query(`
		SELECT id, email, nom, role, mot_de_passe, updated_at
		FROM utilisateurs WHERE updated_at > ? ORDER BY updated_at
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// =====================================================
// Sale operations
// =====================================================

// GetSaleByNumber retrieves a sale by its natural key.
func (s *Store) GetSaleByNumber(number string) (*models.Sale, error) {
	query := `
	SELECT id, numero, date, total, mode_paiement, utilisateur
	FROM ventes WHERE numero = ?
	`
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var v models.Sale
	err = stmt.QueryRow(number).Scan(&v.ID, &v.Number, &v.Date, &v.Total, &v.PaymentMode, &v.UserEmail)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SaveSale records a completed sale with its lines in one transaction.
// Sales are append-only: there is no update path.
func (s *Store) SaveSale(sale *models.Sale, lines []models.SaleLine) error {
	if sale.Date == "" {
		sale.Date = models.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	res, err := tx.Exec(`
		INSERT INTO ventes (numero, date, total, mode_paiement, utilisateur)
		VALUES (?, ?, ?, ?, ?)
	`, sale.Number, sale.Date, sale.Total, sale.PaymentMode, sale.UserEmail)
	if err != nil {
		tx.Rollback()
		return err
	}
	saleID, _ := res.LastInsertId()

	for i := range lines {
		lines[i].SaleID = saleID
		lines[i].SaleNumber = sale.Number
		if _, err := tx.Exec(`
			INSERT INTO details_ventes (vente_id, code_barre, quantite, prix_unitaire)
			VALUES (?, ?, ?, ?)
		`, saleID, lines[i].Barcode, lines[i].Quantity, lines[i].UnitPrice); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	sale.ID = saleID
	return nil
}

// InsertSaleFromRemote inserts an incoming sale and its lines, attaching
// every line to the freshly inserted local row. Returns the local sale id.
func (s *Store) InsertSaleFromRemote(sale *models.Sale, lines []models.SaleLine) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}

	res, err := tx.Exec(`
		INSERT INTO ventes (numero, date, total, mode_paiement, utilisateur)
		VALUES (?, ?, ?, ?, ?)
	`, sale.Number, sale.Date, sale.Total, sale.PaymentMode, sale.UserEmail)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	saleID, _ := res.LastInsertId()

	for _, line := range lines {
		if _, err := tx.Exec(`
			INSERT INTO details_ventes (vente_id, code_barre, quantite, prix_unitaire)
			VALUES (?, ?, ?, ?)
		`, saleID, line.Barcode, line.Quantity, line.UnitPrice); err != nil {
			tx.Rollback()
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return saleID, nil
}

// SalesCreatedSince returns sales created strictly after since, ordered
// by creation date.
func (s *Store) SalesCreatedSince(since string) ([]models.Sale, error) {
	rows, err := s.db.Query(`
		SELECT id, numero, date, total, mode_paiement, utilisateur
		FROM ventes WHERE date > ? ORDER BY date
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []models.Sale
	for rows.Next() {
		var v models.Sale
		if err := rows.Scan(&v.ID, &v.Number, &v.Date, &v.Total, &v.PaymentMode, &v.UserEmail); err != nil {
			return nil, err
		}
		sales = append(sales, v)
	}
	return sales, rows.Err()
}

// SaleLines returns the lines of a sale, each carrying the parent's
// natural key so the association survives crossing devices.
func (s *Store) SaleLines(saleID int64) ([]models.SaleLine, error) {
	rows, err := s.db.Query(`
		SELECT d.id, d.vente_id, v.numero, d.code_barre, d.quantite, d.prix_unitaire
		FROM details_ventes d
		JOIN ventes v ON v.id = d.vente_id
		WHERE d.vente_id = ?
		ORDER BY d.id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.SaleLine
	for rows.Next() {
		var l models.SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.SaleNumber, &l.Barcode, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// CountSaleLines returns the number of lines attached to a local sale.
func (s *Store) CountSaleLines(saleID int64) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM details_ventes WHERE vente_id = ?", saleID).Scan(&n)
	return n, err
}

// InsertSaleLineFromRemote attaches an incoming line to an already
// resolved local sale row.
func (s *Store) InsertSaleLineFromRemote(saleID int64, line *models.SaleLine) error {
	_, err := s.db.Exec(`
		INSERT INTO details_ventes (vente_id, code_barre, quantite, prix_unitaire)
		VALUES (?, ?, ?, ?)
	`, saleID, line.Barcode, line.Quantity, line.UnitPrice)
	return err
}

// =====================================================
// Stock history operations
// =====================================================

// SaveStockEntry appends an entry to the stock audit trail.
func (s *Store) SaveStockEntry(e *models.StockEntry) error {
	if e.CreatedAt == "" {
		e.CreatedAt = models.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO historique_stock (ref, code_barre, quantite, motif, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.Ref, e.Barcode, e.Delta, e.Reason, e.CreatedAt)
	if err != nil {
		return err
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// InsertStockEntryIfAbsent inserts an incoming audit entry unless its
// reference is already present. Returns true when a row was written.
func (s *Store) InsertStockEntryIfAbsent(e *models.StockEntry) (bool, error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO historique_stock (ref, code_barre, quantite, motif, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.Ref, e.Barcode, e.Delta, e.Reason, e.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StockEntriesCreatedSince returns audit entries created strictly after
// since, in creation order.
func (s *Store) StockEntriesCreatedSince(since string) ([]models.StockEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, ref, code_barre, quantite, motif, created_at
		FROM historique_stock WHERE created_at > ? ORDER BY created_at
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.StockEntry
	for rows.Next() {
		var e models.StockEntry
		if err := rows.Scan(&e.ID, &e.Ref, &e.Barcode, &e.Delta, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
