package fraud

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrAccountBlocked is returned by CheckAllowed for blacklisted accounts.
var ErrAccountBlocked = errors.New("account is blacklisted")

// Rules holds the thresholds of both detection rules.
type Rules struct {
	// LargeAmount flags any transaction strictly above it.
	LargeAmount decimal.Decimal
	// VelocityWindow is the largest gap between two transactions of one
	// account that still counts as the same burst.
	VelocityWindow time.Duration
	// MaxBurst is the largest burst size that is not flagged.
	MaxBurst int
}

// DefaultRules returns the stock thresholds: 10000.00, 60s, 3.
func DefaultRules() Rules {
	return Rules{
		LargeAmount:    decimal.RequireFromString("10000.00"),
		VelocityWindow: 60 * time.Second,
		MaxBurst:       3,
	}
}

// ScanMode selects how Monitor walks account histories.
type ScanMode string

const (
	// ScanIncremental evaluates only records appended since the previous scan.
	ScanIncremental ScanMode = "incremental"
	// ScanRescan re-walks every history from the first record on each call,
	// so counters and flags accumulate across scans.
	ScanRescan ScanMode = "rescan"
)

// ParseScanMode accepts "incremental" or "rescan"; empty input means incremental.
func ParseScanMode(raw string) (ScanMode, error) {
	switch ScanMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ScanIncremental:
		return ScanIncremental, nil
	case ScanRescan:
		return ScanRescan, nil
	default:
		return "", fmt.Errorf("unknown scan mode %q", raw)
	}
}

// Options configures a Detector.
type Options struct {
	Rules   Rules
	Mode    ScanMode
	Workers int
	Logger  *slog.Logger
	// Now stamps FlaggedAt; defaults to time.Now.
	Now func() time.Time
}
