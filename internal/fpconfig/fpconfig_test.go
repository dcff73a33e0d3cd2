package fpconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesMatchPackageDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 125, cfg.Match.DM)
	assert.Equal(t, 40, cfg.MatchThreshold)
}

func TestParseEnvFileOverridesThreshold(t *testing.T) {
	cfg := Default()
	parseEnvFile("FPRINT_MATCH_THRESHOLD=60\nFPRINT_DM=200\n# comment\n", &cfg)
	assert.Equal(t, 60, cfg.MatchThreshold)
	assert.Equal(t, 200, cfg.Match.DM)
}

func TestApplyKeyIgnoresUnknown(t *testing.T) {
	cfg := Default()
	applyKey("FPRINT_UNKNOWN", "1", &cfg)
	assert.Equal(t, Default(), cfg)
}
