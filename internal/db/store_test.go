package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahelpos/terminal/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbh, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	require.NoError(t, NewMigrator(dbh.DB).Up())

	store := NewStore(dbh.DB)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMigrator_UpIsIdempotent(t *testing.T) {
	dbh, err := OpenMemory()
	require.NoError(t, err)
	defer dbh.Close()

	m := NewMigrator(dbh.DB)
	require.NoError(t, m.Up())
	require.NoError(t, m.Up())

	version, err := m.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestCheckpoint_DefaultsToSentinel(t *testing.T) {
	store := newTestStore(t)

	cp, err := store.Checkpoint()
	require.NoError(t, err)
	assert.Equal(t, models.TimeSentinel, cp)
}

func TestAdvanceCheckpoint_ForwardOnly(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AdvanceCheckpoint("2024-05-01T12:00:00Z"))
	cp, err := store.Checkpoint()
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", cp)

	// An older value must not move the checkpoint backwards.
	require.NoError(t, store.AdvanceCheckpoint("2024-04-01T00:00:00Z"))
	cp, err = store.Checkpoint()
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", cp)

	// Equal value is a no-op, not an error.
	require.NoError(t, store.AdvanceCheckpoint("2024-05-01T12:00:00Z"))
	cp, err = store.Checkpoint()
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", cp)
}

func TestProduct_SaveAndLookupByBarcode(t *testing.T) {
	store := newTestStore(t)

	p := &models.Product{Barcode: "X1", Name: "Sucre", SalePrice: 600}
	require.NoError(t, store.SaveProduct(p))
	assert.NotZero(t, p.ID)
	assert.NotEmpty(t, p.UpdatedAt, "save must stamp the watermark")

	got, err := store.GetProductByBarcode("X1")
	require.NoError(t, err)
	assert.Equal(t, "Sucre", got.Name)

	_, err = store.GetProductByBarcode("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpsertProductFromRemote_KeepsIncomingWatermark(t *testing.T) {
	store := newTestStore(t)

	remote := &models.Product{Barcode: "X1", Name: "Sucre", SalePrice: 600, UpdatedAt: "2024-02-01T00:00:00Z"}
	require.NoError(t, store.UpsertProductFromRemote(remote))

	got, err := store.GetProductByBarcode("X1")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01T00:00:00Z", got.UpdatedAt)

	// Second write with the same natural key updates in place.
	remote.Name = "Sucre roux"
	remote.UpdatedAt = "2024-02-02T00:00:00Z"
	require.NoError(t, store.UpsertProductFromRemote(remote))

	again, err := store.GetProductByBarcode("X1")
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID, "local id survives remote upserts")
	assert.Equal(t, "Sucre roux", again.Name)
	assert.Equal(t, "2024-02-02T00:00:00Z", again.UpdatedAt)
}

func TestProductsChangedSince_StrictlyGreater(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertProductFromRemote(&models.Product{Barcode: "A", UpdatedAt: "2024-01-01T00:00:00Z"}))
	require.NoError(t, store.UpsertProductFromRemote(&models.Product{Barcode: "B", UpdatedAt: "2024-01-02T00:00:00Z"}))

	changed, err := store.ProductsChangedSince("2024-01-01T00:00:00Z")
	require.NoError(t, err)
	require.Len(t, changed, 1, "row at exactly the checkpoint is excluded")
	assert.Equal(t, "B", changed[0].Barcode)

	all, err := store.ProductsChangedSince(models.TimeSentinel)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSaveSale_WritesLinesTransactionally(t *testing.T) {
	store := newTestStore(t)

	sale := &models.Sale{Number: "V-1", Total: 1100}
	lines := []models.SaleLine{
		{Barcode: "A", Quantity: 1, UnitPrice: 600},
		{Barcode: "B", Quantity: 1, UnitPrice: 500},
	}
	require.NoError(t, store.SaveSale(sale, lines))
	require.NotZero(t, sale.ID)
	assert.NotEmpty(t, sale.Date)

	got, err := store.SaleLines(sale.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "V-1", got[0].SaleNumber, "lines carry the parent natural key")
	assert.Equal(t, sale.ID, got[0].SaleID)

	n, err := store.CountSaleLines(sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSaveSale_DuplicateNumberRejected(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveSale(&models.Sale{Number: "V-1"}, nil))
	err := store.SaveSale(&models.Sale{Number: "V-1"}, nil)
	assert.Error(t, err, "sale numbers are unique")
}

func TestSalesCreatedSince(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveSale(&models.Sale{Number: "V-1", Date: "2024-01-01T10:00:00Z"}, nil))
	require.NoError(t, store.SaveSale(&models.Sale{Number: "V-2", Date: "2024-01-03T10:00:00Z"}, nil))

	sales, err := store.SalesCreatedSince("2024-01-02T00:00:00Z")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "V-2", sales[0].Number)
}

func TestInsertStockEntryIfAbsent_DedupesOnRef(t *testing.T) {
	store := newTestStore(t)

	e := &models.StockEntry{Ref: "r-1", Barcode: "A", Delta: -2, CreatedAt: "2024-01-01T00:00:00Z"}
	inserted, err := store.InsertStockEntryIfAbsent(e)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertStockEntryIfAbsent(e)
	require.NoError(t, err)
	assert.False(t, inserted, "replaying the same entry is a no-op")

	entries, err := store.StockEntriesCreatedSince(models.TimeSentinel)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestParameters_Roundtrip(t *testing.T) {
	store := newTestStore(t)

	v, err := store.GetParameter("absent", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	require.NoError(t, store.SetParameter("device_id", "abc"))
	require.NoError(t, store.SetParameter("device_id", "def"))

	v, err = store.GetParameter("device_id", "")
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}
