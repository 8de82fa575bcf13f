// Package normalize validates and casts raw heterogeneous fact records
// into typed model structs. Malformed records are dropped and counted,
// never fatal to the run.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/model"
)

// Record is one raw row keyed by column name, as read from a CSV header.
type Record map[string]string

// Fact stream names, used for malformed-record counters and table names.
const (
	StreamProduction  = "mine_production"
	StreamRail        = "rail_movements"
	StreamStockpile   = "port_stockpile_events"
	StreamVessels     = "vessel_schedule"
	StreamAssays      = "ore_quality_assays"
	StreamContracts   = "commercial_contracts"
	StreamPrices      = "market_prices"
	StreamFx          = "fx_rates"
	StreamCostCurves  = "cost_curves"
	StreamPositions   = "contract_positions"
	StreamMaintenance = "maintenance_logs"
	StreamTelemetry   = "asset_telemetry"
	StreamShipments   = "shipment_revenue"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func (r Record) str(key string) string {
	return strings.TrimSpace(r[key])
}

func (r Record) requireStr(key string) (string, error) {
	s := r.str(key)
	if s == "" {
		return "", eris.Errorf("normalize: missing %s", key)
	}
	return s, nil
}

func (r Record) float(key string) (float64, error) {
	s := r.str(key)
	if s == "" {
		return 0, eris.Errorf("normalize: missing %s", key)
	}
	f, ok := parseFloat(s)
	if !ok {
		return 0, eris.Errorf("normalize: bad numeric %s=%q", key, s)
	}
	return f, nil
}

// optFloat returns nil for empty values and an error only for present but
// unparsable ones.
func (r Record) optFloat(key string) (*float64, error) {
	s := r.str(key)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil, nil
	}
	f, ok := parseFloat(s)
	if !ok {
		return nil, eris.Errorf("normalize: bad numeric %s=%q", key, s)
	}
	return &f, nil
}

func (r Record) intval(key string) (int, error) {
	f, err := r.float(key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func (r Record) boolean(key string) (bool, error) {
	s := strings.ToLower(r.str(key))
	switch s {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0", "":
		return false, nil
	}
	return false, eris.Errorf("normalize: bad boolean %s=%q", key, s)
}

func (r Record) date(key string) (time.Time, error) {
	t, err := r.timestamp(key)
	if err != nil {
		return time.Time{}, err
	}
	return model.Day(t), nil
}

func (r Record) timestamp(key string) (time.Time, error) {
	s := r.str(key)
	if s == "" {
		return time.Time{}, eris.Errorf("normalize: missing %s", key)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("normalize: bad timestamp %s=%q", key, s)
}

// parseFloat tolerates thousands separators and a leading currency sign.
func parseFloat(s string) (float64, bool) {
	cleaned := strings.ReplaceAll(s, ",", "")
	cleaned = strings.TrimPrefix(cleaned, "$")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseProduction casts one raw mine production row.
func ParseProduction(r Record) (model.ProductionRecord, error) {
	var p model.ProductionRecord
	var err error
	if p.ID, err = r.requireStr("production_id"); err != nil {
		return p, err
	}
	if p.Date, err = r.date("production_date"); err != nil {
		return p, err
	}
	if p.MineSite, err = r.requireStr("mine_site"); err != nil {
		return p, err
	}
	if p.Product, err = r.requireStr("product_code"); err != nil {
		return p, err
	}
	if p.Tonnes, err = r.float("tonnes_produced"); err != nil {
		return p, err
	}
	return p, nil
}

// ParseRail casts one raw rail movement row.
func ParseRail(r Record) (model.RailMovement, error) {
	var m model.RailMovement
	var err error
	if m.ID, err = r.requireStr("rail_id"); err != nil {
		return m, err
	}
	if m.DepartureTime, err = r.timestamp("departure_time"); err != nil {
		return m, err
	}
	if m.ArrivalTime, err = r.timestamp("arrival_time"); err != nil {
		return m, err
	}
	if m.OriginMine, err = r.requireStr("origin_mine"); err != nil {
		return m, err
	}
	if m.PortSite, err = r.requireStr("port_site"); err != nil {
		return m, err
	}
	if m.Product, err = r.requireStr("product_code"); err != nil {
		return m, err
	}
	if m.Tonnes, err = r.float("tonnes_rail"); err != nil {
		return m, err
	}
	return m, nil
}

// ParseStockpile casts one raw stockpile event row.
func ParseStockpile(r Record) (model.StockpileEvent, error) {
	var e model.StockpileEvent
	var err error
	if e.ID, err = r.requireStr("event_id"); err != nil {
		return e, err
	}
	if e.EventTime, err = r.timestamp("event_time"); err != nil {
		return e, err
	}
	if e.Site, err = r.requireStr("site"); err != nil {
		return e, err
	}
	e.StockpileID = r.str("stockpile_id")
	if e.Product, err = r.requireStr("product_code"); err != nil {
		return e, err
	}
	if e.EventType, err = r.requireStr("event_type"); err != nil {
		return e, err
	}
	if e.TonnesDelta, err = r.float("tonnes_delta"); err != nil {
		return e, err
	}
	e.ShipmentID = r.str("shipment_id")
	return e, nil
}

// ParseVessel casts one raw vessel schedule row.
func ParseVessel(r Record) (model.VesselSchedule, error) {
	var v model.VesselSchedule
	var err error
	if v.VesselID, err = r.requireStr("vessel_id"); err != nil {
		return v, err
	}
	v.VesselName = r.str("vessel_name")
	if v.Customer, err = r.requireStr("customer_name"); err != nil {
		return v, err
	}
	if v.Product, err = r.requireStr("product_code"); err != nil {
		return v, err
	}
	if v.Site, err = r.requireStr("site"); err != nil {
		return v, err
	}
	if v.LaycanStart, err = r.date("laycan_start_date"); err != nil {
		return v, err
	}
	if v.LaycanEnd, err = r.date("laycan_end_date"); err != nil {
		return v, err
	}
	if v.PlannedArrival, err = r.timestamp("planned_arrival_time"); err != nil {
		return v, err
	}
	if v.ActualArrival, err = r.timestamp("actual_arrival_time"); err != nil {
		return v, err
	}
	if v.PlannedTonnes, err = r.float("planned_tonnes"); err != nil {
		return v, err
	}
	if v.ActualLoadedTonnes, err = r.float("actual_loaded_tonnes"); err != nil {
		return v, err
	}
	if v.DemurrageRate, err = r.float("demurrage_rate_usd_per_day"); err != nil {
		return v, err
	}
	return v, nil
}

// ParseAssay casts one raw quality assay row.
func ParseAssay(r Record) (model.QualityAssay, error) {
	var a model.QualityAssay
	var err error
	if a.ID, err = r.requireStr("assay_id"); err != nil {
		return a, err
	}
	if a.SampleTime, err = r.timestamp("sample_time"); err != nil {
		return a, err
	}
	if a.Site, err = r.requireStr("site"); err != nil {
		return a, err
	}
	if a.Product, err = r.requireStr("product_code"); err != nil {
		return a, err
	}
	a.ShipmentID = r.str("shipment_id")
	if a.FePct, err = r.float("fe_pct"); err != nil {
		return a, err
	}
	if a.MoisturePct, err = r.float("moisture_pct"); err != nil {
		return a, err
	}
	if a.SiO2Pct, err = r.float("sio2_pct"); err != nil {
		return a, err
	}
	if a.Al2O3Pct, err = r.float("al2o3_pct"); err != nil {
		return a, err
	}
	if a.PPct, err = r.float("p_pct"); err != nil {
		return a, err
	}
	return a, nil
}

// ParseContract casts one raw commercial contract row.
func ParseContract(r Record) (model.Contract, error) {
	var c model.Contract
	var err error
	if c.ContractID, err = r.requireStr("contract_id"); err != nil {
		return c, err
	}
	if c.Customer, err = r.requireStr("customer_name"); err != nil {
		return c, err
	}
	if c.Product, err = r.requireStr("product_code"); err != nil {
		return c, err
	}
	if c.StartDate, err = r.date("contract_start_date"); err != nil {
		return c, err
	}
	if c.EndDate, err = r.date("contract_end_date"); err != nil {
		return c, err
	}
	c.PricingIndex = r.str("pricing_index")
	c.FreightTerm = r.str("freight_term")
	c.FxCurrency = r.str("fx_currency")
	if c.FeMinPct, err = r.float("fe_min_pct"); err != nil {
		return c, err
	}
	if c.MoistureMaxPct, err = r.float("moisture_max_pct"); err != nil {
		return c, err
	}
	if c.CarbonReopener, err = r.boolean("has_carbon_price_reopener"); err != nil {
		return c, err
	}
	if c.Scope3Required, err = r.boolean("requires_scope3_reporting"); err != nil {
		return c, err
	}
	if c.DemurrageFreeDays, err = r.intval("demurrage_free_days"); err != nil {
		return c, err
	}
	if c.DemurrageRate, err = r.float("demurrage_rate_usd_per_day"); err != nil {
		return c, err
	}
	if c.BaseMarginTarget, err = r.float("base_margin_target_usd_per_t"); err != nil {
		return c, err
	}
	return c, nil
}

// ParsePrice casts one raw market price row.
func ParsePrice(r Record) (model.MarketPrice, error) {
	var p model.MarketPrice
	var err error
	if p.Date, err = r.date("price_date"); err != nil {
		return p, err
	}
	if p.IndexName, err = r.requireStr("index_name"); err != nil {
		return p, err
	}
	if p.PriceUSD, err = r.float("price_usd_per_t"); err != nil {
		return p, err
	}
	return p, nil
}

// ParseFx casts one raw FX rate row.
func ParseFx(r Record) (model.FxRate, error) {
	var f model.FxRate
	var err error
	if f.Date, err = r.date("fx_date"); err != nil {
		return f, err
	}
	if f.CurrencyPair, err = r.requireStr("currency_pair"); err != nil {
		return f, err
	}
	if f.Rate, err = r.float("fx_rate"); err != nil {
		return f, err
	}
	return f, nil
}

// ParseCostCurve casts one raw cost curve row.
func ParseCostCurve(r Record) (model.CostCurve, error) {
	var c model.CostCurve
	var err error
	if c.ID, err = r.requireStr("cost_curve_id"); err != nil {
		return c, err
	}
	if c.Product, err = r.requireStr("product_code"); err != nil {
		return c, err
	}
	c.Region = r.str("region")
	if c.Quarter, err = r.requireStr("quarter"); err != nil {
		return c, err
	}
	if c.UnitCashCost, err = r.float("unit_cash_cost_usd_per_t"); err != nil {
		return c, err
	}
	if c.FuelSensitivity, err = r.float("fuel_cost_sensitivity_usd_per_t"); err != nil {
		return c, err
	}
	if c.FreightSensitivity, err = r.float("freight_cost_sensitivity_usd_per_t"); err != nil {
		return c, err
	}
	if c.FxSensitivity, err = r.float("fx_sensitivity_usd_per_t"); err != nil {
		return c, err
	}
	return c, nil
}

// ParsePosition casts one raw contract position row.
func ParsePosition(r Record) (model.ContractPosition, error) {
	var p model.ContractPosition
	var err error
	if p.ID, err = r.requireStr("position_id"); err != nil {
		return p, err
	}
	if p.ContractID, err = r.requireStr("contract_id"); err != nil {
		return p, err
	}
	if p.Quarter, err = r.requireStr("quarter"); err != nil {
		return p, err
	}
	if p.Product, err = r.requireStr("product_code"); err != nil {
		return p, err
	}
	if p.TotalVolume, err = r.float("total_volume_t"); err != nil {
		return p, err
	}
	if p.FixedPrice, err = r.optFloat("fixed_price_usd_per_t"); err != nil {
		return p, err
	}
	if p.IndexPremiumDiscount, err = r.float("index_premium_discount_usd_per_t"); err != nil {
		return p, err
	}
	return p, nil
}

// ParseMaintenance casts one raw maintenance log row.
func ParseMaintenance(r Record) (model.MaintenanceLog, error) {
	var m model.MaintenanceLog
	var err error
	if m.WorkOrderID, err = r.requireStr("work_order_id"); err != nil {
		return m, err
	}
	if m.AssetID, err = r.requireStr("asset_id"); err != nil {
		return m, err
	}
	if m.AssetType, err = r.requireStr("asset_type"); err != nil {
		return m, err
	}
	if m.Site, err = r.requireStr("site"); err != nil {
		return m, err
	}
	m.WorkOrderType = r.str("work_order_type")
	if m.StartTime, err = r.timestamp("start_time"); err != nil {
		return m, err
	}
	if m.EndTime, err = r.timestamp("end_time"); err != nil {
		return m, err
	}
	if m.DowntimeHours, err = r.optFloat("downtime_hours"); err != nil {
		return m, err
	}
	return m, nil
}

// ParseTelemetry casts one raw telemetry row.
func ParseTelemetry(r Record) (model.AssetTelemetry, error) {
	var t model.AssetTelemetry
	var err error
	if t.AssetID, err = r.requireStr("asset_id"); err != nil {
		return t, err
	}
	if t.Date, err = r.date("date"); err != nil {
		return t, err
	}
	if t.UtilizationPct, err = r.float("utilization_pct"); err != nil {
		return t, err
	}
	if t.VibrationIndex, err = r.float("vibration_index"); err != nil {
		return t, err
	}
	if t.TemperatureIndex, err = r.float("temperature_index"); err != nil {
		return t, err
	}
	return t, nil
}

// ParseShipment casts one raw shipment revenue row.
func ParseShipment(r Record) (model.ShipmentRevenue, error) {
	var s model.ShipmentRevenue
	var err error
	if s.ShipmentID, err = r.requireStr("shipment_id"); err != nil {
		return s, err
	}
	if s.ContractID, err = r.requireStr("contract_id"); err != nil {
		return s, err
	}
	if s.VesselID, err = r.requireStr("vessel_id"); err != nil {
		return s, err
	}
	if s.Product, err = r.requireStr("product_code"); err != nil {
		return s, err
	}
	if s.NominationDate, err = r.date("nomination_date"); err != nil {
		return s, err
	}
	if s.PlannedLoadDate, err = r.date("planned_load_date"); err != nil {
		return s, err
	}
	if s.PlannedTonnes, err = r.float("planned_tonnes"); err != nil {
		return s, err
	}
	if s.RealizedPrice, err = r.float("realized_price_usd_per_t"); err != nil {
		return s, err
	}
	if s.RealizedRevenue, err = r.float("realized_revenue_usd"); err != nil {
		return s, err
	}
	return s, nil
}

// Stream applies parse to every raw record, dropping malformed rows.
// Returns the typed records and the number dropped; a summary is logged
// when anything was dropped.
func Stream[T any](stream string, records []Record, parse func(Record) (T, error)) ([]T, int) {
	out := make([]T, 0, len(records))
	var dropped int
	for _, r := range records {
		v, err := parse(r)
		if err != nil {
			dropped++
			zap.L().Debug("normalize: dropped record",
				zap.String("stream", stream),
				zap.Error(err),
			)
			continue
		}
		out = append(out, v)
	}
	if dropped > 0 {
		zap.L().Warn("normalize: malformed records dropped",
			zap.String("stream", stream),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(out)),
		)
	}
	return out, dropped
}
