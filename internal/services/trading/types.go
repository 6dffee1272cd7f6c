package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/services/accounting"
	"GridTradeBot/internal/services/strategy"
)

type State string

const (
	StateNew      State = "new"
	StateWorking  State = "working"
	StateFinished State = "finished"
)

type ExitCode int

const (
	ExitNone ExitCode = iota
	ExitSessionEnd
	ExitStopLoss
	ExitTakeProfit
	ExitCommand
	ExitCancelled
	ExitError
)

func (c ExitCode) String() string {
	switch c {
	case ExitNone:
		return "none"
	case ExitSessionEnd:
		return "session_end"
	case ExitStopLoss:
		return "stop_loss"
	case ExitTakeProfit:
		return "take_profit"
	case ExitCommand:
		return "command"
	case ExitCancelled:
		return "cancelled"
	case ExitError:
		return "error"
	}
	return fmt.Sprintf("exit(%d)", int(c))
}

type CommandKind string

const (
	CommandStop          CommandKind = "stop"
	CommandStopLiquidate CommandKind = "stop_liquidate"
)

type Command struct {
	ID   uint
	Kind CommandKind
}

// CommandSource yields operator requests queued for a run
type CommandSource interface {
	Pending(ctx context.Context, runID uint) ([]Command, error)
	// Complete marks a consumed command finished, or failed when err is set
	Complete(ctx context.Context, cmd Command, err error) error
}

// Snapshot is the externally visible state of an engine
type Snapshot struct {
	Status  State
	Data    string
	Total   float64
	Profit  float64
	EndLots int
	Errors  int
	Time    time.Time
}

// RunRecorder receives snapshots. Errors are logged and never stop trading.
type RunRecorder interface {
	Record(ctx context.Context, runID uint, s Snapshot) error
}

type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) {
	strategy.ContextSleep(ctx, d)
}

const (
	DefaultSleepTrading = 30 * time.Second
	DefaultRetryBackoff = time.Second
	minOffHoursSleep    = 2 * time.Second
)

type Options struct {
	// Trading window as offsets from midnight in Location. A zero
	// SessionEnd means the window runs to midnight.
	SessionStart time.Duration
	SessionEnd   time.Duration
	Location     *time.Location

	SleepTrading time.Duration
	RetryBackoff time.Duration
	LotSize      float64

	Clock    Clock
	Commands CommandSource
	Recorder RunRecorder
	RunID    uint
	Logger   *logrus.Entry
	DealSink accounting.DealSink
}

func (o *Options) setDefaults() {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.SleepTrading <= 0 {
		o.SleepTrading = DefaultSleepTrading
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.LotSize <= 0 {
		o.LotSize = 1
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
}

// Summary is the human-facing result of an engine's day
type Summary struct {
	Symbol     string
	StartPrice float64
	StartLots  int
	EndPrice   float64
	EndLots    int
	Operations int
	Profit     float64
	Errors     int
	Reliable   bool
	ExitCode   ExitCode
}

func (s Summary) String() string {
	line := fmt.Sprintf("%s exit=%s start=%d@%.8g end=%d@%.8g ops=%d profit=%.2f errors=%d",
		s.Symbol, s.ExitCode, s.StartLots, s.StartPrice, s.EndLots, s.EndPrice,
		s.Operations, s.Profit, s.Errors)
	if !s.Reliable {
		line += " (unreliable: no price was ever fetched)"
	}
	return line
}
