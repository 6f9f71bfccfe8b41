package governance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphacouncil/core/internal/bus"
)

func samplePolicy() Policy {
	return Policy{
		Name:              "quant",
		Capabilities:      map[Capability]bool{CapabilityReadPortfolio: true},
		AllowedRecipients: map[string]bool{bus.Broadcast: true, "Orchestrator": true},
	}
}

func TestExport_YAMLRoundTrip(t *testing.T) {
	table := NewTable(bus.New())
	table.Register(samplePolicy())

	data, err := table.Export(FormatYAML)
	require.NoError(t, err)

	policies, err := ParsePolicies(data)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "quant", policies[0].Name)
	assert.True(t, policies[0].Capabilities[CapabilityReadPortfolio])
	assert.True(t, policies[0].AllowedRecipients[bus.Broadcast])
	assert.True(t, policies[0].AllowedRecipients["Orchestrator"])
}

func TestExport_JSONRoundTrip(t *testing.T) {
	table := NewTable(bus.New())
	table.Register(samplePolicy())

	data, err := table.Export(FormatJSON)
	require.NoError(t, err)

	policies, err := ParsePolicies(data)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "quant", policies[0].Name)
}

func TestParsePolicies_YAMLDocument(t *testing.T) {
	doc := []byte(`policies:
  - name: research
    capabilities: []
    allowed_recipients: [broadcast]
  - name: portfolio
    capabilities: [read_portfolio]
    allowed_recipients: [broadcast, Orchestrator]
`)

	policies, err := ParsePolicies(doc)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "research", policies[0].Name)
	assert.False(t, policies[0].Capabilities[CapabilityReadPortfolio])
	assert.True(t, policies[1].Capabilities[CapabilityReadPortfolio])
}

func TestParsePolicies_Errors(t *testing.T) {
	_, err := ParsePolicies(nil)
	assert.Error(t, err)

	_, err = ParsePolicies([]byte(`policies: [{capabilities: []}]`))
	assert.ErrorContains(t, err, "missing name")

	_, err = ParsePolicies([]byte(`not: [valid`))
	assert.Error(t, err)
}

func TestLoadFromFile_RegistersAndAuthorizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`policies:
  - name: whale
    capabilities: []
    allowed_recipients: [Orchestrator]
`), 0600))

	table := NewTable(bus.New())
	require.NoError(t, table.LoadFromFile(path))

	assert.True(t, table.IsAuthorized("whale", "whale_signal", "Orchestrator"))
	assert.False(t, table.IsAuthorized("whale", "whale_signal", "quant"))
}

func TestExportToFile_FormatFromExtension(t *testing.T) {
	dir := t.TempDir()
	table := NewTable(bus.New())
	table.Register(samplePolicy())

	jsonPath := filepath.Join(dir, "policies.json")
	require.NoError(t, table.ExportToFile(jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), data[0])

	yamlPath := filepath.Join(dir, "policies.yaml")
	require.NoError(t, table.ExportToFile(yamlPath))

	fresh := NewTable(bus.New())
	require.NoError(t, fresh.LoadFromFile(yamlPath))
	assert.True(t, fresh.IsAuthorized("quant", "analysis_result", "Orchestrator"))
}
