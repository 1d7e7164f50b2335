package contract

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleContracts = `
[sources.entsoe]
name = "ENTSO-E Transparency Platform"
freshness_sla_seconds = 21600
required = ["total_generation_mw", "renewable_share", "available"]

[sources.entsoe.types]
total_generation_mw = "numeric"
renewable_share = "numeric"
available = "boolean"

[sources.entsoe.ranges]
total_generation_mw = [0.0, 200000.0]
renewable_share = [0.0, 1.0]

[sources.openchargemap]
name = "OpenChargeMap"
freshness_sla_seconds = 86400
required = ["total_chargers"]

[sources.openchargemap.types]
total_chargers = "numeric"
`

func writeContractsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contracts.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeContractsFile(t, sampleContracts)

	contracts, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, contracts, 2)

	byID := make(map[string]Contract)
	for _, c := range contracts {
		byID[c.SourceID] = c
	}

	entsoe := byID["entsoe"]
	assert.Equal(t, "ENTSO-E Transparency Platform", entsoe.SourceName)
	assert.Equal(t, 6*time.Hour, entsoe.FreshnessSLA)
	assert.ElementsMatch(t, []string{"total_generation_mw", "renewable_share", "available"}, entsoe.RequiredFields)
	assert.Equal(t, KindBool, entsoe.FieldTypes["available"])
	assert.Equal(t, Range{Min: 0, Max: 200000}, entsoe.FieldRanges["total_generation_mw"])

	ocm := byID["openchargemap"]
	assert.Equal(t, 24*time.Hour, ocm.FreshnessSLA)
	assert.Empty(t, ocm.FieldRanges)
}

func TestLoadFilePolledSource(t *testing.T) {
	path := writeContractsFile(t, `
[sources.polled]
name = "Polled"
url = "https://api.example.com/v1/data"
poll_interval_seconds = 300
required = ["v"]
`)

	contracts, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "https://api.example.com/v1/data", contracts[0].Endpoint)
	assert.Equal(t, 5*time.Minute, contracts[0].PollInterval)
}

func TestLoadFilePollWithoutURL(t *testing.T) {
	path := writeContractsFile(t, `
[sources.bad]
poll_interval_seconds = 60
required = ["v"]
`)

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileBadRange(t *testing.T) {
	path := writeContractsFile(t, `
[sources.bad]
required = ["v"]
[sources.bad.types]
v = "numeric"
[sources.bad.ranges]
v = [1.0, 2.0, 3.0]
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be [min, max]")
}

func TestRegisterFile(t *testing.T) {
	path := writeContractsFile(t, sampleContracts)

	reg := NewRegistry()
	n, err := RegisterFile(reg, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"entsoe", "openchargemap"}, reg.SourceIDs())
}
