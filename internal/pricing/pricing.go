// Package pricing joins contract positions to quarterly index prices,
// FX rates, and cost-curve sensitivities to compute base-case and
// stressed margins and EBITDA impact.
package pricing

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/model"
)

// Stress-case multipliers on cost sensitivities.
const (
	fuelStress    = 1.5
	freightStress = 3.0
	fxStress      = 2.0
)

// fxPairs maps a contract settlement currency to the quoted FX pair.
// USD contracts need no conversion.
var fxPairs = map[string]string{
	"AUD": "AUDUSD",
	"CNY": "USDCNY",
	"JPY": "USDJPY",
	"EUR": "USDEUR",
}

// Build computes the contract financial scenario view. A position with no
// matching quarter price produces nil margins, not an error.
func Build(
	positions []model.ContractPosition,
	contracts []model.Contract,
	prices []model.MarketPrice,
	fxRates []model.FxRate,
	curves []model.CostCurve,
	cal Calendar,
	counters *model.Counters,
) []model.ContractFinancialScenario {
	contractByID := make(map[string]model.Contract, len(contracts))
	for _, c := range contracts {
		contractByID[c.ContractID] = c
	}

	out := make([]model.ContractFinancialScenario, 0, len(positions))
	for _, pos := range positions {
		out = append(out, buildOne(pos, contractByID, prices, fxRates, curves, cal, counters))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })

	zap.L().Info("pricing: scenarios computed", zap.Int("rows", len(out)))
	return out
}

func buildOne(
	pos model.ContractPosition,
	contractByID map[string]model.Contract,
	prices []model.MarketPrice,
	fxRates []model.FxRate,
	curves []model.CostCurve,
	cal Calendar,
	counters *model.Counters,
) model.ContractFinancialScenario {
	sc := model.ContractFinancialScenario{
		PositionID:  pos.ID,
		ContractID:  pos.ContractID,
		Product:     pos.Product,
		Quarter:     pos.Quarter,
		TotalVolume: pos.TotalVolume,
	}

	contract, hasContract := contractByID[pos.ContractID]
	if hasContract {
		sc.Customer = contract.Customer
	} else {
		counters.UnmatchedJoins++
		zap.L().Debug("pricing: no contract for position", zap.String("position", pos.ID))
	}

	start, end := cal.Window(pos.Quarter)

	// Realized price: fixed when set, else quarter-average index plus
	// the position's premium or discount.
	if pos.FixedPrice != nil {
		sc.PriceType = model.PriceTypeFixed
		sc.BaseRealizedPrice = model.Float(*pos.FixedPrice)
	} else {
		sc.PriceType = model.PriceTypeIndexLinked
		if hasContract {
			if avg, ok := quarterAvgPrice(prices, contract.PricingIndex, start, end); ok {
				sc.BaseRealizedPrice = model.Float(avg + pos.IndexPremiumDiscount)
			}
		}
	}

	if hasContract {
		if pair, ok := fxPairs[contract.FxCurrency]; ok {
			if avg, ok := quarterAvgFx(fxRates, pair, start, end); ok {
				sc.FxRateQuarterAvg = model.Float(avg)
			}
		}
	}

	curve, ambiguous := matchCurve(curves, pos.Product, pos.Quarter)
	if curve == nil {
		counters.UnmatchedJoins++
		return sc
	}
	sc.UnitCashCost = model.Float(curve.UnitCashCost)
	sc.CostCurveAmbiguous = ambiguous
	if ambiguous {
		counters.AmbiguousJoins++
	}

	if sc.BaseRealizedPrice == nil {
		return sc
	}

	price := *sc.BaseRealizedPrice
	base := price - curve.UnitCashCost
	stressedCost := curve.UnitCashCost +
		curve.FuelSensitivity*fuelStress +
		curve.FreightSensitivity*freightStress +
		curve.FxSensitivity*fxStress
	scenario := price - stressedCost

	sc.BaseCaseMargin = model.Float(base)
	sc.ScenarioMargin = model.Float(scenario)
	sc.EBITDAImpactUSD = model.Float((scenario - base) * pos.TotalVolume)

	return sc
}

// quarterAvgPrice averages an index's daily prints over [start, end).
func quarterAvgPrice(prices []model.MarketPrice, index string, start, end time.Time) (float64, bool) {
	var sum float64
	var n int
	for _, p := range prices {
		if p.IndexName != index {
			continue
		}
		d := model.Day(p.Date)
		if d.Before(start) || !d.Before(end) {
			continue
		}
		sum += p.PriceUSD
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func quarterAvgFx(rates []model.FxRate, pair string, start, end time.Time) (float64, bool) {
	var sum float64
	var n int
	for _, r := range rates {
		if r.CurrencyPair != pair {
			continue
		}
		d := model.Day(r.Date)
		if d.Before(start) || !d.Before(end) {
			continue
		}
		sum += r.Rate
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// matchCurve finds the cost curve for a product and quarter. Curves are
// regional; multiple regions qualifying is an ambiguous join resolved by
// lexicographic region then curve ID.
func matchCurve(curves []model.CostCurve, product, quarter string) (*model.CostCurve, bool) {
	var candidates []model.CostCurve
	for _, c := range curves {
		if c.Product == product && c.Quarter == quarter {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Region != candidates[j].Region {
			return candidates[i].Region < candidates[j].Region
		}
		return candidates[i].ID < candidates[j].ID
	})
	return &candidates[0], len(candidates) > 1
}
