package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeSet_Empty(t *testing.T) {
	cs := &ChangeSet{Timestamp: Now()}
	assert.True(t, cs.Empty(), "changeset with only a timestamp is empty")
	assert.Equal(t, 0, cs.Size())

	cs.Products = append(cs.Products, Product{Barcode: "123"})
	assert.False(t, cs.Empty())
	assert.Equal(t, 1, cs.Size())
}

func TestChangeSet_Size_CountsEveryEntity(t *testing.T) {
	cs := &ChangeSet{
		Products:     make([]Product, 2),
		Sales:        make([]Sale, 1),
		SaleLines:    make([]SaleLine, 3),
		StockEntries: make([]StockEntry, 1),
		Users:        make([]User, 1),
	}
	assert.Equal(t, 8, cs.Size())
}

// TestChangeSet_WireEncoding pins the JSON envelope exchanged with the
// server. The field names are a contract: a rename here breaks every
// deployed terminal.
func TestChangeSet_WireEncoding(t *testing.T) {
	cs := ChangeSet{
		Products: []Product{{
			ID:            1,
			Barcode:       "6181112223334",
			Name:          "Farine 1kg",
			PurchasePrice: 350,
			SalePrice:     500,
			Stock:         24,
			UpdatedAt:     "2024-03-01T08:30:00Z",
		}},
		Sales: []Sale{{
			ID:          7,
			Number:      "V-9F8E7D6C-0001",
			Date:        "2024-03-01T09:15:00Z",
			Total:       1500,
			PaymentMode: "especes",
			UserEmail:   "aminata@example.com",
		}},
		SaleLines: []SaleLine{{
			ID:         11,
			SaleID:     7,
			SaleNumber: "V-9F8E7D6C-0001",
			Barcode:    "6181112223334",
			Quantity:   3,
			UnitPrice:  500,
		}},
		StockEntries: []StockEntry{{
			ID:        4,
			Ref:       "0e3f9a34-0000-4000-8000-000000000001",
			Barcode:   "6181112223334",
			Delta:     -3,
			Reason:    "vente",
			CreatedAt: "2024-03-01T09:15:00Z",
		}},
		Users: []User{{
			ID:           2,
			Email:        "aminata@example.com",
			Name:         "Aminata",
			Role:         "caissier",
			PasswordHash: "sha256:abcd",
			UpdatedAt:    "2024-02-20T10:00:00Z",
		}},
		Timestamp: "2024-03-01T10:00:00Z",
	}

	data, err := json.MarshalIndent(cs, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "changeset", data)
}

func TestChangeSet_WireDecoding(t *testing.T) {
	body := `{
		"produits": [{"id": 9, "code_barre": "P1", "nom": "Savon", "prix_achat": 100, "prix_vente": 150, "stock": 5, "updated_at": "2024-01-02T00:00:00Z"}],
		"ventes": [],
		"details_ventes": [],
		"historique_stock": [],
		"utilisateurs": [],
		"timestamp": "2024-01-02T08:00:00Z"
	}`

	var cs ChangeSet
	require.NoError(t, json.Unmarshal([]byte(body), &cs))
	require.Len(t, cs.Products, 1)
	assert.Equal(t, "P1", cs.Products[0].Barcode)
	assert.Equal(t, 150.0, cs.Products[0].SalePrice)
	assert.Equal(t, "2024-01-02T08:00:00Z", cs.Timestamp)
}

func TestNewer(t *testing.T) {
	assert.True(t, Newer("2024-01-02T00:00:00Z", "2024-01-01T00:00:00Z"))
	assert.False(t, Newer("2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z"))
	assert.False(t, Newer("2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"), "equal timestamps are not newer")

	// Malformed values compare as the zero time.
	assert.False(t, Newer("not-a-time", TimeSentinel))
	assert.True(t, Newer(TimeSentinel, "not-a-time"))
}

func TestFormatParseRoundTrip(t *testing.T) {
	instant := time.Date(2024, 6, 15, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, instant, ParseTime(FormatTime(instant)))
}

func TestTimeSentinel_IsFarPast(t *testing.T) {
	assert.True(t, ParseTime(TimeSentinel).Before(time.Now()))
	assert.False(t, ParseTime(TimeSentinel).IsZero(), "sentinel must parse")
}
