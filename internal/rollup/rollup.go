// Package rollup aggregates demurrage, inventory, and water tonnage by
// month and product for trend reporting.
package rollup

import (
	"sort"

	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/model"
)

type key struct {
	month   string
	product string
}

// Build computes the monthly rollup view. Demurrage exposure and water
// tonnage (tonnes actually loaded onto vessels) roll up by laycan end
// month; inventory averages daily tonnes on hand over the snapshot days
// in the month.
func Build(
	coverage []model.VesselCoverage,
	inventory []model.PortInventorySnapshot,
	vessels []model.VesselSchedule,
) []model.MonthlyRollup {
	acc := make(map[key]*model.MonthlyRollup)
	get := func(month, product string) *model.MonthlyRollup {
		k := key{month: month, product: product}
		r, ok := acc[k]
		if !ok {
			r = &model.MonthlyRollup{Month: month, Product: product}
			acc[k] = r
		}
		return r
	}

	for _, c := range coverage {
		r := get(c.LaycanEnd.Format("2006-01"), c.Product)
		r.TotalDemurrageUSD += c.DemurrageExposureUSD
		r.VesselCount++
	}

	for _, v := range vessels {
		r := get(v.LaycanEnd.Format("2006-01"), v.Product)
		r.VesselLoadedTonnes += v.ActualLoadedTonnes
	}

	inventoryDays := make(map[key]int)
	for _, s := range inventory {
		k := key{month: s.Date.Format("2006-01"), product: s.Product}
		r := get(k.month, k.product)
		r.AvgTonnesOnHand += s.TonnesOnHand
		inventoryDays[k]++
	}
	for k, n := range inventoryDays {
		if n > 0 {
			acc[k].AvgTonnesOnHand /= float64(n)
		}
	}

	out := make([]model.MonthlyRollup, 0, len(acc))
	for _, r := range acc {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Product < out[j].Product
	})

	zap.L().Info("rollup: monthly rows built", zap.Int("rows", len(out)))
	return out
}
