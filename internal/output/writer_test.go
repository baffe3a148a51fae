package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"electrichouse/crawler/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProducesJSONArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "output.json")
	price := 100.0
	currency := "SAR"

	records := []domain.ProductRecord{
		{
			UID:         "p1",
			SKU:         "SKU-1",
			Name:        "Kettle",
			StockStatus: domain.StockStatusInStock,
			FinalPrice:  &price,
			Currency:    &currency,
			SourceSite:  "electric-house",
		},
		{
			UID:         "p2",
			SKU:         "SKU-2",
			StockStatus: domain.StockStatusOutOfStock,
			SourceSite:  "electric-house",
		},
	}

	require.NoError(t, NewJSONWriter(path).Write(records))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)

	assert.Equal(t, "SKU-1", decoded[0]["sku"])
	assert.Equal(t, float64(100), decoded[0]["final_price"])
	assert.Equal(t, "SAR", decoded[0]["currency"])

	// Absent price blocks serialize as null, not as missing keys.
	second := decoded[1]
	for _, key := range []string{"final_price", "regular_price", "currency", "discount_amount", "discount_percent", "image_url", "description"} {
		v, ok := second[key]
		assert.True(t, ok, "expected key %s", key)
		assert.Nil(t, v, "expected %s to be null", key)
	}

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteNilRecordsYieldsEmptyArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, NewJSONWriter(path).Write(nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []domain.ProductRecord
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Empty(t, decoded)
}

func TestWriteReplacesPreviousDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "output.json")
	w := NewJSONWriter(path)

	require.NoError(t, w.Write([]domain.ProductRecord{{UID: "old"}, {UID: "older"}}))
	require.NoError(t, w.Write([]domain.ProductRecord{{UID: "new"}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []domain.ProductRecord
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "new", decoded[0].UID)
}
