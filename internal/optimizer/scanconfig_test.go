package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanConfigAllowsEverythingByDefault(t *testing.T) {
	c := ScanConfig{}
	require.True(t, c.Allows("lodash"))
}

func TestScanConfigExcludeWins(t *testing.T) {
	c := ScanConfig{Include: []string{"**"}, Exclude: []string{"@internal/**"}}
	require.False(t, c.Allows("@internal/tools"))
	require.True(t, c.Allows("lodash"))
}

func TestScanConfigIncludeRestricts(t *testing.T) {
	c := ScanConfig{Include: []string{"react", "react-dom"}}
	require.True(t, c.Allows("react"))
	require.False(t, c.Allows("vue"))
}
