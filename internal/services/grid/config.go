package grid

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// PolicyKind selects the ladder policy an engine runs
type PolicyKind string

const (
	PolicyNormal PolicyKind = "normal"
	PolicyShift  PolicyKind = "shift"
	PolicyFan    PolicyKind = "fan"
)

// PretestKind selects how a configuration is re-tuned before trading
type PretestKind string

const (
	PretestNone      PretestKind = "none"
	PretestNeighbors PretestKind = "neighbors"
)

var (
	ErrInvalidStepSize  = errors.New("step size must be positive")
	ErrInvalidMaxSteps  = errors.New("max steps must be at least 1")
	ErrInvalidOrderLots = errors.New("order lots must be at least 1")
	ErrSetOrdersCount   = errors.New("set orders count must be between 1 and max steps")
	ErrThresholds       = errors.New("threshold steps must exceed set orders count")
	ErrStopPct          = errors.New("stop percentages must not be negative")
	ErrStepSizeShift    = errors.New("step size shift must not be negative")
	ErrPolicy           = errors.New("unknown policy")
	ErrPretest          = errors.New("unknown pretest kind")
	ErrSymbol           = errors.New("symbol must not contain whitespace or '='")
)

// Config describes the ladder shape. Treat it as a value: copy, never share.
type Config struct {
	Symbol string     `yaml:"symbol"`
	Policy PolicyKind `yaml:"policy"`

	MaxSteps       int     `yaml:"max_steps"`
	BaseSteps      int     `yaml:"base_steps"`
	OrderLots      int     `yaml:"order_lots"`
	StepSize       float64 `yaml:"step_size"`
	StepSizeShift  float64 `yaml:"step_size_shift"`
	SetOrdersCount int     `yaml:"set_orders_count"`

	// Zero disables threshold cancellation for that side
	BuyThresholdSteps  int `yaml:"buy_threshold_steps"`
	SellThresholdSteps int `yaml:"sell_threshold_steps"`

	// Zero disables the exit
	StopUpPct   float64 `yaml:"stop_up_pct"`
	StopDownPct float64 `yaml:"stop_down_pct"`

	MajorityTrade bool `yaml:"majority_trade"`

	PretestKind   PretestKind `yaml:"pretest_kind"`
	PretestPeriod int         `yaml:"pretest_period"`
}

// NewConfig applies defaults, clamps BaseSteps and validates
func NewConfig(c Config) (Config, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Normalize fills defaults and clamps BaseSteps into the allowed range
func (c Config) Normalize() Config {
	if c.Policy == "" {
		c.Policy = PolicyNormal
	}
	if c.PretestKind == "" {
		c.PretestKind = PretestNone
	}
	if c.SetOrdersCount == 0 {
		c.SetOrdersCount = c.MaxSteps
	}

	low := 0
	if c.MajorityTrade {
		low = -c.MaxSteps
	}
	if c.BaseSteps < low {
		c.BaseSteps = low
	}
	if c.BaseSteps > c.MaxSteps {
		c.BaseSteps = c.MaxSteps
	}
	return c
}

// Validate checks the invariants a configuration must hold before an engine uses it
func (c Config) Validate() error {
	switch c.Policy {
	case PolicyNormal, PolicyShift, PolicyFan:
	default:
		return fmt.Errorf("%w: %q", ErrPolicy, c.Policy)
	}
	switch c.PretestKind {
	case PretestNone, PretestNeighbors:
	default:
		return fmt.Errorf("%w: %q", ErrPretest, c.PretestKind)
	}
	if strings.ContainsAny(c.Symbol, "= \t\r\n\v\f") {
		return fmt.Errorf("%w: %q", ErrSymbol, c.Symbol)
	}
	if !finite(c.StepSize) || c.StepSize <= 0 {
		return ErrInvalidStepSize
	}
	if c.MaxSteps < 1 {
		return ErrInvalidMaxSteps
	}
	if c.OrderLots < 1 {
		return ErrInvalidOrderLots
	}
	if c.SetOrdersCount < 1 || c.SetOrdersCount > c.MaxSteps {
		return ErrSetOrdersCount
	}
	if c.BuyThresholdSteps > 0 && c.BuyThresholdSteps <= c.SetOrdersCount {
		return fmt.Errorf("%w: buy %d, set %d", ErrThresholds, c.BuyThresholdSteps, c.SetOrdersCount)
	}
	if c.SellThresholdSteps > 0 && c.SellThresholdSteps <= c.SetOrdersCount {
		return fmt.Errorf("%w: sell %d, set %d", ErrThresholds, c.SellThresholdSteps, c.SetOrdersCount)
	}
	if !finite(c.StopUpPct) || !finite(c.StopDownPct) || c.StopUpPct < 0 || c.StopDownPct < 0 {
		return ErrStopPct
	}
	if !finite(c.StepSizeShift) || c.StepSizeShift < 0 {
		return ErrStepSizeShift
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Depo is the notional the stop thresholds are measured against
func (c Config) Depo(startPrice, lotSize float64) float64 {
	if lotSize <= 0 {
		lotSize = 1
	}
	depo := startPrice * float64(c.MaxSteps*c.OrderLots) * lotSize
	if c.MajorityTrade {
		depo *= 2
	}
	return depo
}

// MinLots is the lowest net position the ladder may reach
func (c Config) MinLots() int {
	if c.MajorityTrade {
		return -c.MaxSteps * c.OrderLots
	}
	return 0
}

// MaxLots is the highest net position the ladder may reach
func (c Config) MaxLots() int {
	return c.MaxSteps * c.OrderLots
}

// BaseLots is the position the engine rebalances to at day start
func (c Config) BaseLots() int {
	return c.BaseSteps * c.OrderLots
}

// Fingerprint identifies the day-level behaviour of a configuration.
// Pretest settings only pick a configuration, so they are left out.
func (c Config) Fingerprint() string {
	c.PretestKind = ""
	c.PretestPeriod = 0
	return Encode(c)
}

func (c Config) String() string {
	return Encode(c)
}
