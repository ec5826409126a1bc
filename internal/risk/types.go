package risk

// ViolationType names a pre-trade control that an order breached.
type ViolationType string

const (
	ViolationKillSwitch    ViolationType = "KILL_SWITCH_ACTIVE"
	ViolationPositionLimit ViolationType = "POSITION_LIMIT"
	ViolationDailyVolume   ViolationType = "DAILY_VOLUME_LIMIT"
	ViolationNetExposure   ViolationType = "NET_EXPOSURE_LIMIT"
	ViolationGrossExposure ViolationType = "GROSS_EXPOSURE_LIMIT"
)

// Limits is the mutable pre-trade control configuration. It is replaced
// atomically; checks in flight finish with the snapshot they loaded.
type Limits struct {
	MaxPositionSize   float64 `json:"max_position_size" mapstructure:"max_position_size"`
	MaxDailyVolume    float64 `json:"max_daily_volume" mapstructure:"max_daily_volume"`
	MaxNetExposure    float64 `json:"max_net_exposure" mapstructure:"max_net_exposure"`
	MaxGrossExposure  float64 `json:"max_gross_exposure" mapstructure:"max_gross_exposure"`
	KillSwitchEnabled bool    `json:"kill_switch_enabled" mapstructure:"kill_switch_enabled"`
}

// DefaultLimits returns the deployment defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:  1_000_000,
		MaxDailyVolume:   10_000_000,
		MaxNetExposure:   5_000_000,
		MaxGrossExposure: 15_000_000,
	}
}

// Position tracks the open quantity and cost basis for one symbol.
// Quantity is signed: positive long, negative short. RealizedPnL is
// reserved and stays zero.
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	RealizedPnL  float64 `json:"realized_pnl"`
}

// Exposure returns quantity times average price, signed.
func (p Position) Exposure() float64 {
	return p.Quantity * p.AveragePrice
}

// CheckResult is the outcome of a pre-trade evaluation.
type CheckResult struct {
	Passed     bool
	Violations []ViolationType
	Message    string
}

// Metrics is a point-in-time snapshot of the engine's risk state.
type Metrics struct {
	NetExposure      float64 `json:"net_exposure"`
	GrossExposure    float64 `json:"gross_exposure"`
	DailyVolume      float64 `json:"daily_volume"`
	TotalPositions   int     `json:"total_positions"`
	LargestPosition  float64 `json:"largest_position"`
	KillSwitchActive bool    `json:"kill_switch_active"`
}
