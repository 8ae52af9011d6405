package decision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicyOverridesDefaults(t *testing.T) {
	p, err := ParsePolicy([]byte("low_risk_ratio: 0.25\nloan_income_multiple: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.25, p.LowRiskRatio)
	assert.Equal(t, 3.0, p.LoanIncomeMultiple)
	assert.Equal(t, DefaultPolicy().HighRiskRatio, p.HighRiskRatio)
}

func TestParsePolicyRejectsInvalid(t *testing.T) {
	_, err := ParsePolicy([]byte("low_risk_ratio: 0.7\nhigh_risk_ratio: 0.6\n"))
	assert.ErrorContains(t, err, "invalid policy")

	_, err = ParsePolicy([]byte("low_risk_ratio: [1, 2]"))
	assert.ErrorContains(t, err, "failed to parse policy")
}

func TestLoadPolicy(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("high_risk_ratio: 0.5\n"), 0o600))
	p, err = LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.HighRiskRatio)

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
