package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mega-minerals/oreflow/internal/normalize"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"price_date, index_name ,price_usd_per_t",
		"2025-08-01,62FE_CFR, 101.5 ",
		`2025-08-02,"62FE_CFR",102.0`,
	}, "\n")

	recs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Header and values are trimmed, raw text otherwise untouched.
	assert.Equal(t, "101.5", recs[0]["price_usd_per_t"])
	assert.Equal(t, "62FE_CFR", recs[0]["index_name"])
	assert.Equal(t, "2025-08-02", recs[1]["price_date"])
}

func TestReadCSVRaggedRows(t *testing.T) {
	t.Parallel()

	in := "a,b,c\n1,2\n3,4,5,6\n"
	recs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Short rows leave trailing columns absent; long rows drop extras.
	assert.Equal(t, normalize.Record{"a": "1", "b": "2"}, recs[0])
	assert.Equal(t, normalize.Record{"a": "3", "b": "4", "c": "5"}, recs[1])
}

func TestReadCSVEmpty(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")

	// Header only: no records, no error.
	recs, err := ReadCSV(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "market_prices.csv")
	require.NoError(t, os.WriteFile(path, []byte("price_date,index_name,price_usd_per_t\n2025-08-01,62FE_CFR,101.5\n"), 0o644))

	recs, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "62FE_CFR", recs[0]["index_name"])

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestDiscoverDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"market_prices.csv", "vessel_schedule.csv", "notes.txt", "unknown_stream.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.csv"), 0o755))

	got, err := DiscoverDir(dir, []string{normalize.StreamPrices, normalize.StreamVessels, normalize.StreamAssays})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		normalize.StreamPrices:  filepath.Join(dir, "market_prices.csv"),
		normalize.StreamVessels: filepath.Join(dir, "vessel_schedule.csv"),
	}, got)

	_, err = DiscoverDir(filepath.Join(dir, "nope"), nil)
	assert.Error(t, err)
}
