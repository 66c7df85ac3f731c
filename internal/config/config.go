// Package config handles RunParams loading and validation for the simulator.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KlmnCapital/simulation-engine/internal/apperrors"
)

// Verbosity controls how much detail the summary report includes.
type Verbosity string

const (
	Minimal  Verbosity = "MINIMAL"
	Standard Verbosity = "STANDARD"
	Detailed Verbosity = "DETAILED"
)

// DistributionKind selects a FillDistribution implementation.
type DistributionKind string

const (
	DistributionConstant DistributionKind = "constant"
	DistributionNormal   DistributionKind = "normal"
)

// FillDistributionConfig parameterizes one side's fill-rate distribution.
type FillDistributionConfig struct {
	Kind   DistributionKind `yaml:"kind"`
	Value  float64          `yaml:"value"`  // constant rate, in [0,100]
	Mean   float64          `yaml:"mean"`   // normal: mean rate
	StdDev float64          `yaml:"stddev"` // normal: standard deviation
}

// RunParams enumerates every configurable option of a simulation run, per
// spec.md §6.
type RunParams struct {
	Depth               int    `yaml:"depth"`
	SymbolCount         int    `yaml:"symbol_count"`
	StartingCash        int64  `yaml:"starting_cash"` // ticks
	SendLatencyNs       uint64 `yaml:"send_latency_ns"`
	ReceiveLatencyNs    uint64 `yaml:"receive_latency_ns"`
	SettlementDelayNs   uint64 `yaml:"settlement_delay_ns"` // default 25h

	BuyFillDistribution  FillDistributionConfig `yaml:"buy_fill_rate_distribution"`
	SellFillDistribution FillDistributionConfig `yaml:"sell_fill_rate_distribution"`

	UseRandomness bool  `yaml:"use_randomness"`
	RandomSeed    int64 `yaml:"random_seed"`

	LeverageFactor float64 `yaml:"leverage_factor"`
	InterestRate   float64 `yaml:"interest_rate"` // annual percent

	EnforceTradingHours      bool `yaml:"enforce_trading_hours"`
	AllowExtendedHours       bool `yaml:"allow_extended_hours_trading"`
	DaylightSavings          bool `yaml:"daylight_savings"`

	StatisticsUpdateRateSeconds int `yaml:"statistics_update_rate_seconds"`

	VerbosityLevel Verbosity `yaml:"verbosity_level"`
	StrategyName   string    `yaml:"strategy_name"`
	OutputFile     string    `yaml:"output_file"`

	// Ambient-stack additions, off by default.
	MetricsEnabled    bool   `yaml:"metrics_enabled"`
	MetricsAddr       string `yaml:"metrics_addr"`
	PersistenceDBPath string `yaml:"persistence_db_path"`
	LiveMonitorAddr   string `yaml:"live_monitor_addr"`
	LogLevel          string `yaml:"log_level"`
}

// Default returns a RunParams populated with the sensible defaults spec.md
// §6 implies (24-hour 1x Market fill, no randomness, 25h settlement).
func Default() RunParams {
	return RunParams{
		Depth:                       1,
		SymbolCount:                 1,
		StartingCash:                0,
		SendLatencyNs:               0,
		ReceiveLatencyNs:            0,
		SettlementDelayNs:           25 * 3600 * 1_000_000_000,
		BuyFillDistribution:         FillDistributionConfig{Kind: DistributionConstant, Value: 100},
		SellFillDistribution:        FillDistributionConfig{Kind: DistributionConstant, Value: 100},
		UseRandomness:               false,
		RandomSeed:                  0,
		LeverageFactor:              2.0,
		InterestRate:                5.0,
		EnforceTradingHours:         false,
		AllowExtendedHours:          false,
		DaylightSavings:             false,
		StatisticsUpdateRateSeconds: 60,
		VerbosityLevel:              Standard,
		StrategyName:                "strategy",
		OutputFile:                  "",
		LogLevel:                    "INFO",
	}
}

// ValidationError represents one configuration validation failure.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// Load reads RunParams from a YAML file, expanding ${VAR} environment
// references, applying defaults for unset fields, and validating the result.
func Load(filename string) (*RunParams, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", apperrors.ErrConfigError, err)
	}

	expanded := expandEnvVars(string(data))

	params := Default()
	if err := yaml.Unmarshal([]byte(expanded), &params); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file: %v", apperrors.ErrConfigError, err)
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigError, err)
	}

	return &params, nil
}

// Validate performs comprehensive validation of RunParams, returning every
// failure joined together (not just the first).
func (p *RunParams) Validate() error {
	var errs []string

	if p.Depth <= 0 {
		errs = append(errs, ValidationError{Field: "depth", Value: p.Depth, Message: "must be positive"}.Error())
	}
	if p.SymbolCount <= 0 {
		errs = append(errs, ValidationError{Field: "symbol_count", Value: p.SymbolCount, Message: "must be positive"}.Error())
	}
	if p.StartingCash < 0 {
		errs = append(errs, ValidationError{Field: "starting_cash", Value: p.StartingCash, Message: "must be non-negative"}.Error())
	}
	if p.LeverageFactor <= 0 {
		errs = append(errs, ValidationError{Field: "leverage_factor", Value: p.LeverageFactor, Message: "must be positive"}.Error())
	}
	if p.InterestRate < 0 {
		errs = append(errs, ValidationError{Field: "interest_rate", Value: p.InterestRate, Message: "must be non-negative"}.Error())
	}
	if p.StatisticsUpdateRateSeconds <= 0 {
		errs = append(errs, ValidationError{Field: "statistics_update_rate_seconds", Value: p.StatisticsUpdateRateSeconds, Message: "must be positive"}.Error())
	}
	switch p.VerbosityLevel {
	case Minimal, Standard, Detailed:
	default:
		errs = append(errs, ValidationError{Field: "verbosity_level", Value: p.VerbosityLevel, Message: "must be MINIMAL, STANDARD or DETAILED"}.Error())
	}
	if err := validateDistribution("buy_fill_rate_distribution", p.BuyFillDistribution); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDistribution("sell_fill_rate_distribution", p.SellFillDistribution); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func validateDistribution(field string, d FillDistributionConfig) error {
	switch d.Kind {
	case DistributionConstant:
		if d.Value < 0 || d.Value > 100 {
			return ValidationError{Field: field + ".value", Value: d.Value, Message: "must be in [0,100]"}
		}
	case DistributionNormal:
		if d.StdDev < 0 {
			return ValidationError{Field: field + ".stddev", Value: d.StdDev, Message: "must be non-negative"}
		}
	default:
		return ValidationError{Field: field + ".kind", Value: d.Kind, Message: "must be 'constant' or 'normal'"}
	}
	return nil
}

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}
