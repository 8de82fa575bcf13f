// Package inventory computes daily port inventory snapshots per
// (site, product): net deltas, running cumulative tonnes on hand, the
// trailing 14-day ship-load average, days on hand, and inventory value.
package inventory

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/model"
)

// shipLoadWindowDays is the trailing window for the ship-load average.
const shipLoadWindowDays = 14

// DefaultIndex is the reference price index used when a product has no
// specific index mapping.
const DefaultIndex = "62FE_CFR"

// productIndexes maps product codes to their market price index.
var productIndexes = map[string]string{
	"MM62": "62FE_CFR",
	"MM58": "58FE_CFR",
	"MM65": "65FE_CFR",
}

// IndexFor returns the price index used to value a product. fallback
// overrides the built-in reference index when non-empty.
func IndexFor(product, fallback string) string {
	if idx, ok := productIndexes[product]; ok {
		return idx
	}
	if fallback != "" {
		return fallback
	}
	return DefaultIndex
}

type partitionKey struct {
	site    string
	product string
}

type dayTotals struct {
	net      float64
	shipLoad float64 // tonnes loaded out to vessels, positive
}

// Build computes the port inventory view. Snapshots are ordered by
// (site, product, date); cumulative tonnes on hand is the running sum of
// net deltas within each partition and is never reordered once computed.
func Build(events []model.StockpileEvent, prices []model.MarketPrice, defaultIndex string) []model.PortInventorySnapshot {
	if defaultIndex == "" {
		defaultIndex = DefaultIndex
	}
	partitions := make(map[partitionKey]map[time.Time]*dayTotals)
	for _, e := range events {
		key := partitionKey{site: e.Site, product: e.Product}
		days, ok := partitions[key]
		if !ok {
			days = make(map[time.Time]*dayTotals)
			partitions[key] = days
		}
		day := model.Day(e.EventTime)
		t, ok := days[day]
		if !ok {
			t = &dayTotals{}
			days[day] = t
		}
		t.net += e.TonnesDelta
		if e.EventType == model.EventShipLoad {
			t.shipLoad += -e.TonnesDelta
		}
	}

	priceIndex := indexPrices(prices)

	keys := make([]partitionKey, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].site != keys[j].site {
			return keys[i].site < keys[j].site
		}
		return keys[i].product < keys[j].product
	})

	var out []model.PortInventorySnapshot
	for _, key := range keys {
		out = append(out, buildPartition(key, partitions[key], priceIndex, defaultIndex)...)
	}

	zap.L().Info("inventory: snapshots built",
		zap.Int("partitions", len(keys)),
		zap.Int("rows", len(out)),
	)
	return out
}

func buildPartition(key partitionKey, days map[time.Time]*dayTotals, prices map[string]map[time.Time]float64, defaultIndex string) []model.PortInventorySnapshot {
	dates := make([]time.Time, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := IndexFor(key.product, defaultIndex)
	snaps := make([]model.PortInventorySnapshot, 0, len(dates))
	var cumulative float64

	for i, d := range dates {
		t := days[d]
		cumulative += t.net

		avg := trailingShipAvg(dates, days, i)

		snap := model.PortInventorySnapshot{
			Site:           key.site,
			Product:        key.product,
			Date:           d,
			NetDelta:       t.net,
			TonnesOnHand:   cumulative,
			AvgShipLoad14d: avg,
		}
		if avg > 0 {
			snap.DaysOnHand = model.Float(cumulative / avg)
		}
		if p, ok := lookupPrice(prices, index, defaultIndex, d); ok {
			snap.IndexPrice = model.Float(p)
			snap.InventoryValue = model.Float(cumulative * p)
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

// trailingShipAvg averages daily ship-load tonnage over snapshot days
// within the trailing window ending at dates[i]. Partial windows average
// over whatever days exist.
func trailingShipAvg(dates []time.Time, days map[time.Time]*dayTotals, i int) float64 {
	cutoff := dates[i].AddDate(0, 0, -(shipLoadWindowDays - 1))
	var sum float64
	var n int
	for j := i; j >= 0; j-- {
		if dates[j].Before(cutoff) {
			break
		}
		sum += days[dates[j]].shipLoad
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func indexPrices(prices []model.MarketPrice) map[string]map[time.Time]float64 {
	out := make(map[string]map[time.Time]float64)
	for _, p := range prices {
		byDate, ok := out[p.IndexName]
		if !ok {
			byDate = make(map[time.Time]float64)
			out[p.IndexName] = byDate
		}
		byDate[model.Day(p.Date)] = p.PriceUSD
	}
	return out
}

// lookupPrice resolves the price for an index on a date, falling back to
// the default reference index when the specific index has no print.
// A date with no price on either index yields no value, not zero.
func lookupPrice(prices map[string]map[time.Time]float64, index, defaultIndex string, d time.Time) (float64, bool) {
	if byDate, ok := prices[index]; ok {
		if p, ok := byDate[d]; ok {
			return p, true
		}
	}
	if index != defaultIndex {
		if byDate, ok := prices[defaultIndex]; ok {
			if p, ok := byDate[d]; ok {
				return p, true
			}
		}
	}
	return 0, false
}
