package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" RAM ")
	require.NoError(t, err)
	require.Equal(t, CategoryRAM, c)

	_, err = ParseCategory("fan")
	require.Error(t, err)
}

func TestCategoryOrderAndMultiSelect(t *testing.T) {
	keys := make([]string, 0, CategoryCount)
	var multi []string
	for _, c := range Categories() {
		keys = append(keys, c.String())
		if c.MultiSelect() {
			multi = append(multi, c.String())
		}
	}
	require.Equal(t, []string{"cpu", "motherboard", "ram", "gpu", "storage", "psu", "case", "cooling", "monitor"}, keys)
	require.Equal(t, []string{"ram", "storage", "cooling", "monitor"}, multi)
}

func TestCategoryJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Category{"c": CategoryGPU})
	require.NoError(t, err)
	require.JSONEq(t, `{"c":"gpu"}`, string(data))

	var out struct {
		C Category `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"c":"cooling"}`), &out))
	require.Equal(t, CategoryCooling, out.C)
	require.Error(t, json.Unmarshal([]byte(`{"c":"fan"}`), &out))

	_, err = json.Marshal(struct{ C Category }{C: Category(42)})
	require.Error(t, err)
}
