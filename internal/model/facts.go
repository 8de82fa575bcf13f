package model

import "time"

// Fact streams are immutable, externally supplied records. The pipeline
// never mutates them; each run reads a fully materialized set.

// ProductionRecord is one batch of ore produced at a mine site.
type ProductionRecord struct {
	ID       string    `json:"production_id"`
	Date     time.Time `json:"production_date"`
	MineSite string    `json:"mine_site"`
	Product  string    `json:"product_code"`
	Tonnes   float64   `json:"tonnes_produced"`
}

// RailMovement is one train consignment from a mine to a port.
type RailMovement struct {
	ID            string    `json:"rail_id"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	OriginMine    string    `json:"origin_mine"`
	PortSite      string    `json:"port_site"`
	Product       string    `json:"product_code"`
	Tonnes        float64   `json:"tonnes_rail"`
}

// Stockpile event types as they appear in the facts.
const (
	EventInitialInventory = "initial_inventory"
	EventRailIn           = "rail_in"
	EventShipLoad         = "ship_load"
	EventRehandle         = "rehandle"
	EventAdjustment       = "adjustment"
)

// StockpileEvent is a signed tonnage movement on a port stockpile.
// ShipmentID is set only on ship_load events tied to a nominated shipment.
type StockpileEvent struct {
	ID          string    `json:"event_id"`
	EventTime   time.Time `json:"event_time"`
	Site        string    `json:"site"`
	StockpileID string    `json:"stockpile_id"`
	Product     string    `json:"product_code"`
	EventType   string    `json:"event_type"`
	TonnesDelta float64   `json:"tonnes_delta"`
	ShipmentID  string    `json:"shipment_id,omitempty"`
}

// VesselSchedule is one vessel call with its contractual laycan window.
type VesselSchedule struct {
	VesselID           string    `json:"vessel_id"`
	VesselName         string    `json:"vessel_name"`
	Customer           string    `json:"customer_name"`
	Product            string    `json:"product_code"`
	Site               string    `json:"site"`
	LaycanStart        time.Time `json:"laycan_start_date"`
	LaycanEnd          time.Time `json:"laycan_end_date"`
	PlannedArrival     time.Time `json:"planned_arrival_time"`
	ActualArrival      time.Time `json:"actual_arrival_time"`
	PlannedTonnes      float64   `json:"planned_tonnes"`
	ActualLoadedTonnes float64   `json:"actual_loaded_tonnes"`
	DemurrageRate      float64   `json:"demurrage_rate_usd_per_day"`
}

// QualityAssay is one lab sample. ShipmentID is empty for stockpile-only
// samples.
type QualityAssay struct {
	ID          string    `json:"assay_id"`
	SampleTime  time.Time `json:"sample_time"`
	Site        string    `json:"site"`
	Product     string    `json:"product_code"`
	ShipmentID  string    `json:"shipment_id,omitempty"`
	FePct       float64   `json:"fe_pct"`
	MoisturePct float64   `json:"moisture_pct"`
	SiO2Pct     float64   `json:"sio2_pct"`
	Al2O3Pct    float64   `json:"al2o3_pct"`
	PPct        float64   `json:"p_pct"`
}

// Contract is a commercial offtake agreement.
type Contract struct {
	ContractID         string    `json:"contract_id"`
	Customer           string    `json:"customer_name"`
	Product            string    `json:"product_code"`
	StartDate          time.Time `json:"contract_start_date"`
	EndDate            time.Time `json:"contract_end_date"`
	PricingIndex       string    `json:"pricing_index"`
	FreightTerm        string    `json:"freight_term"`
	FxCurrency         string    `json:"fx_currency"`
	FeMinPct           float64   `json:"fe_min_pct"`
	MoistureMaxPct     float64   `json:"moisture_max_pct"`
	CarbonReopener     bool      `json:"has_carbon_price_reopener"`
	Scope3Required     bool      `json:"requires_scope3_reporting"`
	DemurrageFreeDays  int       `json:"demurrage_free_days"`
	DemurrageRate      float64   `json:"demurrage_rate_usd_per_day"`
	BaseMarginTarget   float64   `json:"base_margin_target_usd_per_t"`
}

// MarketPrice is one daily index print.
type MarketPrice struct {
	Date      time.Time `json:"price_date"`
	IndexName string    `json:"index_name"`
	PriceUSD  float64   `json:"price_usd_per_t"`
}

// FxRate is one daily FX fixing.
type FxRate struct {
	Date         time.Time `json:"fx_date"`
	CurrencyPair string    `json:"currency_pair"`
	Rate         float64   `json:"fx_rate"`
}

// CostCurve holds quarterly unit cost and stress sensitivities for a
// product/region.
type CostCurve struct {
	ID                 string  `json:"cost_curve_id"`
	Product            string  `json:"product_code"`
	Region             string  `json:"region"`
	Quarter            string  `json:"quarter"`
	UnitCashCost       float64 `json:"unit_cash_cost_usd_per_t"`
	FuelSensitivity    float64 `json:"fuel_cost_sensitivity_usd_per_t"`
	FreightSensitivity float64 `json:"freight_cost_sensitivity_usd_per_t"`
	FxSensitivity      float64 `json:"fx_sensitivity_usd_per_t"`
}

// ContractPosition is a quarterly volume commitment under a contract.
// FixedPrice nil means the position prices off the contract's index.
type ContractPosition struct {
	ID                   string   `json:"position_id"`
	ContractID           string   `json:"contract_id"`
	Quarter              string   `json:"quarter"`
	Product              string   `json:"product_code"`
	TotalVolume          float64  `json:"total_volume_t"`
	FixedPrice           *float64 `json:"fixed_price_usd_per_t,omitempty"`
	IndexPremiumDiscount float64  `json:"index_premium_discount_usd_per_t"`
}

// MaintenanceLog is one work order against a port asset.
type MaintenanceLog struct {
	WorkOrderID   string    `json:"work_order_id"`
	AssetID       string    `json:"asset_id"`
	AssetType     string    `json:"asset_type"`
	Site          string    `json:"site"`
	WorkOrderType string    `json:"work_order_type"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DowntimeHours *float64  `json:"downtime_hours,omitempty"`
}

// AssetTelemetry is one daily condition reading per asset.
type AssetTelemetry struct {
	AssetID          string    `json:"asset_id"`
	Date             time.Time `json:"date"`
	UtilizationPct   float64   `json:"utilization_pct"`
	VibrationIndex   float64   `json:"vibration_index"`
	TemperatureIndex float64   `json:"temperature_index"`
}

// ShipmentRevenue ties a nominated shipment to its contract, vessel, and
// realized commercial value.
type ShipmentRevenue struct {
	ShipmentID      string    `json:"shipment_id"`
	ContractID      string    `json:"contract_id"`
	VesselID        string    `json:"vessel_id"`
	Product         string    `json:"product_code"`
	NominationDate  time.Time `json:"nomination_date"`
	PlannedLoadDate time.Time `json:"planned_load_date"`
	PlannedTonnes   float64   `json:"planned_tonnes"`
	RealizedPrice   float64   `json:"realized_price_usd_per_t"`
	RealizedRevenue float64   `json:"realized_revenue_usd"`
}

// FactSet bundles all fact streams for a single pipeline run.
type FactSet struct {
	Production    []ProductionRecord
	RailMovements []RailMovement
	Stockpile     []StockpileEvent
	Vessels       []VesselSchedule
	Assays        []QualityAssay
	Contracts     []Contract
	Prices        []MarketPrice
	FxRates       []FxRate
	CostCurves    []CostCurve
	Positions     []ContractPosition
	Maintenance   []MaintenanceLog
	Telemetry     []AssetTelemetry
	Shipments     []ShipmentRevenue
}

// Day truncates t to UTC midnight. All date-grained joins in the pipeline
// go through this so that timestamps and dates compare cleanly.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
