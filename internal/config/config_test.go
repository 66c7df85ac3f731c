package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KlmnCapital/simulation-engine/internal/apperrors"
)

func TestDefaultValidates(t *testing.T) {
	p := Default()
	assert.NoError(t, p.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	p := Default()
	p.Depth = 0
	p.SymbolCount = -1
	p.StartingCash = -5
	p.LeverageFactor = 0
	p.InterestRate = -1
	p.StatisticsUpdateRateSeconds = 0
	p.VerbosityLevel = "LOUD"

	err := p.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, field := range []string{"depth", "symbol_count", "starting_cash", "leverage_factor", "interest_rate", "statistics_update_rate_seconds", "verbosity_level"} {
		assert.Contains(t, msg, field)
	}
}

func TestValidateDistributionKind(t *testing.T) {
	p := Default()
	p.BuyFillDistribution.Kind = "exponential"
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buy_fill_rate_distribution.kind")
}

func TestValidateConstantDistributionRange(t *testing.T) {
	p := Default()
	p.SellFillDistribution = FillDistributionConfig{Kind: DistributionConstant, Value: 150}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sell_fill_rate_distribution.value")
}

func TestLoadExpandsEnvVarsAndValidates(t *testing.T) {
	t.Setenv("SIM_STARTING_CASH", "500000000")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	contents := `
depth: 3
symbol_count: 2
starting_cash: ${SIM_STARTING_CASH}
leverage_factor: 2.0
interest_rate: 5.0
statistics_update_rate_seconds: 60
verbosity_level: STANDARD
buy_fill_rate_distribution:
  kind: constant
  value: 100
sell_fill_rate_distribution:
  kind: constant
  value: 100
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(contents), 0644))

	params, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 3, params.Depth)
	assert.Equal(t, int64(500000000), params.StartingCash)
}

func TestLoadMissingFileReturnsConfigError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.ErrorIs(t, err, apperrors.ErrConfigError)
}
