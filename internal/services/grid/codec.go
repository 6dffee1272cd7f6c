package grid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrCodec = errors.New("invalid configuration string")

// Encode renders a configuration as a compact line, e.g.
//
//	BTCUSDT policy=fan max=6 base=3 lots=1 step=25.5 shift=0.05 set=3 bt=5 st=5 up=0.02 down=0.05 maj=1 pretest=neighbors:5
//
// Optional keys with zero values are omitted. Decode(Encode(c)) == c.
func Encode(c Config) string {
	var sb strings.Builder
	sb.WriteString(c.Symbol)
	writeKey(&sb, "policy", string(c.Policy))
	writeKey(&sb, "max", strconv.Itoa(c.MaxSteps))
	writeKey(&sb, "base", strconv.Itoa(c.BaseSteps))
	writeKey(&sb, "lots", strconv.Itoa(c.OrderLots))
	writeKey(&sb, "step", formatFloat(c.StepSize))
	if c.StepSizeShift != 0 {
		writeKey(&sb, "shift", formatFloat(c.StepSizeShift))
	}
	writeKey(&sb, "set", strconv.Itoa(c.SetOrdersCount))
	if c.BuyThresholdSteps != 0 {
		writeKey(&sb, "bt", strconv.Itoa(c.BuyThresholdSteps))
	}
	if c.SellThresholdSteps != 0 {
		writeKey(&sb, "st", strconv.Itoa(c.SellThresholdSteps))
	}
	if c.StopUpPct != 0 {
		writeKey(&sb, "up", formatFloat(c.StopUpPct))
	}
	if c.StopDownPct != 0 {
		writeKey(&sb, "down", formatFloat(c.StopDownPct))
	}
	if c.MajorityTrade {
		writeKey(&sb, "maj", "1")
	}
	if c.PretestKind != "" || c.PretestPeriod != 0 {
		writeKey(&sb, "pretest", fmt.Sprintf("%s:%d", c.PretestKind, c.PretestPeriod))
	}
	return sb.String()
}

// Decode parses a line produced by Encode. The result is not validated.
func Decode(s string) (Config, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Config{}, fmt.Errorf("%w: empty", ErrCodec)
	}

	var c Config
	start := 0
	if !strings.Contains(fields[0], "=") {
		c.Symbol = fields[0]
		start = 1
	}

	for _, field := range fields[start:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return Config{}, fmt.Errorf("%w: %q is not key=value", ErrCodec, field)
		}
		if err := decodeKey(&c, key, value); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrCodec, key, err)
		}
	}
	return c, nil
}

func decodeKey(c *Config, key, value string) error {
	var err error
	switch key {
	case "policy":
		c.Policy = PolicyKind(value)
	case "max":
		c.MaxSteps, err = strconv.Atoi(value)
	case "base":
		c.BaseSteps, err = strconv.Atoi(value)
	case "lots":
		c.OrderLots, err = strconv.Atoi(value)
	case "step":
		c.StepSize, err = parseFloat(value)
	case "shift":
		c.StepSizeShift, err = parseFloat(value)
	case "set":
		c.SetOrdersCount, err = strconv.Atoi(value)
	case "bt":
		c.BuyThresholdSteps, err = strconv.Atoi(value)
	case "st":
		c.SellThresholdSteps, err = strconv.Atoi(value)
	case "up":
		c.StopUpPct, err = parseFloat(value)
	case "down":
		c.StopDownPct, err = parseFloat(value)
	case "maj":
		c.MajorityTrade, err = strconv.ParseBool(value)
	case "pretest":
		kind, period, ok := strings.Cut(value, ":")
		if !ok {
			return errors.New("expected kind:period")
		}
		c.PretestKind = PretestKind(kind)
		c.PretestPeriod, err = strconv.Atoi(period)
	default:
		return errors.New("unknown key")
	}
	return err
}

// parseFloat accepts finite numbers only
func parseFloat(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

func writeKey(sb *strings.Builder, key, value string) {
	sb.WriteByte(' ')
	sb.WriteString(key)
	sb.WriteByte('=')
	sb.WriteString(value)
}

// shortest decimal that parses back to the same float64
func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}
