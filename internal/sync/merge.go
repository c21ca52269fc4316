package sync

import (
	"database/sql"
	"errors"

	"github.com/sahelpos/terminal/internal/db"
	apperrors "github.com/sahelpos/terminal/internal/errors"
	"github.com/sahelpos/terminal/internal/logging"
	"github.com/sahelpos/terminal/internal/models"
)

// MergeStats summarizes one merge pass.
type MergeStats struct {
	Applied   int // rows written to the local store
	Unchanged int // rows already present or older than the local state
	Rejected  int // rows skipped because they were malformed or unresolvable
}

// Merger applies a received changeset onto the local store. Conflict
// policy is last-write-wins keyed by the row's own updated_at watermark,
// so replaying the same changeset is a no-op the second time.
//
// Failures are per-row: a bad row is logged and skipped, never aborting
// the batch. A partial merge still strictly moves state forward and the
// next pull retries whatever was skipped.
type Merger struct {
	store *db.Store
}

// NewMerger creates a Merger over the given store.
func NewMerger(store *db.Store) *Merger {
	return &Merger{store: store}
}

// Apply merges every row of the changeset into the local store.
func (m *Merger) Apply(cs *models.ChangeSet) *MergeStats {
	stats := &MergeStats{}

	m.mergeProducts(cs.Products, stats)
	m.mergeUsers(cs.Users, stats)
	m.mergeSales(cs, stats)
	m.mergeStockEntries(cs.StockEntries, stats)

	return stats
}

// mergeProducts applies last-write-wins keyed by barcode. A local row
// with a strictly greater watermark wins: it holds an edit this device
// has not pushed yet, and an older remote state must not clobber it.
func (m *Merger) mergeProducts(products []models.Product, stats *MergeStats) {
	for i := range products {
		incoming := &products[i]
		if incoming.Barcode == "" {
			m.reject(stats, "product without barcode", nil, map[string]interface{}{"nom": incoming.Name})
			continue
		}

		local, err := m.store.GetProductByBarcode(incoming.Barcode)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			m.reject(stats, "product lookup failed", err, map[string]interface{}{"code_barre": incoming.Barcode})
			continue
		}

		if local != nil && models.Newer(local.UpdatedAt, incoming.UpdatedAt) {
			stats.Unchanged++
			continue
		}

		if err := m.store.UpsertProductFromRemote(incoming); err != nil {
			m.reject(stats, "product upsert failed", err, map[string]interface{}{"code_barre": incoming.Barcode})
			continue
		}
		stats.Applied++
	}
}

// mergeUsers applies last-write-wins keyed by email.
func (m *Merger) mergeUsers(users []models.User, stats *MergeStats) {
	for i := range users {
		incoming := &users[i]
		if incoming.Email == "" {
			m.reject(stats, "user without email", nil, map[string]interface{}{"nom": incoming.Name})
			continue
		}

		local, err := m.store.GetUserByEmail(incoming.Email)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			m.reject(stats, "user lookup failed", err, map[string]interface{}{"email": incoming.Email})
			continue
		}

		if local != nil && models.Newer(local.UpdatedAt, incoming.UpdatedAt) {
			stats.Unchanged++
			continue
		}

		if err := m.store.UpsertUserFromRemote(incoming); err != nil {
			m.reject(stats, "user upsert failed", err, map[string]interface{}{"email": incoming.Email})
			continue
		}
		stats.Applied++
	}
}

// mergeSales inserts sales that are not yet present, together with their
// lines. Sales are append-only, so "already present" is the only
// conflict and it is benign.
//
// Line association goes strictly through the sale's natural key. The
// remote numeric vente_id is accepted only as a lookup hint into the
// sales of the same changeset; it is never used to attach a line to a
// local row directly, because local ids do not match across devices.
func (m *Merger) mergeSales(cs *models.ChangeSet, stats *MergeStats) {
	// Remote local-id -> natural key, valid only within this changeset.
	remoteNumbers := make(map[int64]string, len(cs.Sales))
	for _, sale := range cs.Sales {
		remoteNumbers[sale.ID] = sale.Number
	}

	// Group incoming lines under their sale's natural key.
	linesByNumber := make(map[string][]models.SaleLine)
	for _, line := range cs.SaleLines {
		number := line.SaleNumber
		if number == "" {
			number = remoteNumbers[line.SaleID]
		}
		if number == "" {
			m.reject(stats, "sale line with unresolvable parent", nil,
				map[string]interface{}{"vente_id": line.SaleID, "code_barre": line.Barcode})
			continue
		}
		linesByNumber[number] = append(linesByNumber[number], line)
	}

	for i := range cs.Sales {
		incoming := &cs.Sales[i]
		lines := linesByNumber[incoming.Number]
		delete(linesByNumber, incoming.Number)

		if incoming.Number == "" {
			m.reject(stats, "sale without number", nil, map[string]interface{}{"date": incoming.Date})
			stats.Rejected += len(lines)
			continue
		}

		_, err := m.store.GetSaleByNumber(incoming.Number)
		if err == nil {
			// Already present together with its lines.
			stats.Unchanged += 1 + len(lines)
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			m.reject(stats, "sale lookup failed", err, map[string]interface{}{"numero": incoming.Number})
			stats.Rejected += len(lines)
			continue
		}

		if _, err := m.store.InsertSaleFromRemote(incoming, lines); err != nil {
			m.reject(stats, "sale insert failed", err, map[string]interface{}{"numero": incoming.Number})
			stats.Rejected += len(lines)
			continue
		}
		stats.Applied += 1 + len(lines)
	}

	// Lines whose parent sale was not part of the changeset: resolve the
	// local sale by natural key and attach only when the local sale has
	// no lines yet, so replays cannot duplicate them.
	for number, lines := range linesByNumber {
		m.mergeOrphanLines(number, lines, stats)
	}
}

func (m *Merger) mergeOrphanLines(number string, lines []models.SaleLine, stats *MergeStats) {
	local, err := m.store.GetSaleByNumber(number)
	if errors.Is(err, sql.ErrNoRows) {
		m.reject(stats, "sale lines for unknown sale", nil,
			map[string]interface{}{"numero_vente": number, "lines": len(lines)})
		stats.Rejected += len(lines) - 1
		return
	}
	if err != nil {
		m.reject(stats, "sale lookup failed", err, map[string]interface{}{"numero_vente": number})
		stats.Rejected += len(lines) - 1
		return
	}

	existing, err := m.store.CountSaleLines(local.ID)
	if err != nil {
		m.reject(stats, "sale line count failed", err, map[string]interface{}{"numero_vente": number})
		stats.Rejected += len(lines) - 1
		return
	}
	if existing > 0 {
		stats.Unchanged += len(lines)
		return
	}

	for i := range lines {
		if err := m.store.InsertSaleLineFromRemote(local.ID, &lines[i]); err != nil {
			m.reject(stats, "sale line insert failed", err,
				map[string]interface{}{"numero_vente": number, "code_barre": lines[i].Barcode})
			continue
		}
		stats.Applied++
	}
}

// mergeStockEntries inserts audit entries keyed by their device-generated
// reference. The audit trail is append-only; duplicates are ignored.
func (m *Merger) mergeStockEntries(entries []models.StockEntry, stats *MergeStats) {
	for i := range entries {
		incoming := &entries[i]
		if incoming.Ref == "" {
			m.reject(stats, "stock entry without ref", nil,
				map[string]interface{}{"code_barre": incoming.Barcode})
			continue
		}

		inserted, err := m.store.InsertStockEntryIfAbsent(incoming)
		if err != nil {
			m.reject(stats, "stock entry insert failed", err,
				map[string]interface{}{"ref": incoming.Ref})
			continue
		}
		if inserted {
			stats.Applied++
		} else {
			stats.Unchanged++
		}
	}
}

func (m *Merger) reject(stats *MergeStats, message string, err error, context map[string]interface{}) {
	stats.Rejected++
	logging.ErrorWithCode("Merge row rejected: "+message,
		string(apperrors.ErrMergeRowRejected), err, context)
}
