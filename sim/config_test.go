package sim_test

import (
	"testing"

	"github.com/memarena/memarena/sim"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	config := sim.DefaultConfig()
	require.NoError(t, config.Validate())
	require.Equal(t, 1000, config.TotalSize)
	require.Equal(t, 150, config.Quantum)
	require.Len(t, config.Tasks, 4)
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
totalSize: 500
quantum: 100
minSplitRemainder: 8
tasks:
  - id: 1
    memoryRequired: 100
    executionUnits: 250
    priority: high
  - id: 2
    memoryRequired: 50
    executionUnits: 75
    priority: low
`)

	config, err := sim.ParseConfig(data)
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	require.Equal(t, 500, config.TotalSize)
	require.Equal(t, 100, config.Quantum)
	require.Equal(t, 8, config.MinSplitRemainder)
	require.Len(t, config.Tasks, 2)
	require.Equal(t, "high", config.Tasks[0].Priority)
	require.Equal(t, 75, config.Tasks[1].ExecutionUnits)
}

func TestParseConfigRejectsMalformedYaml(t *testing.T) {
	_, err := sim.ParseConfig([]byte("totalSize: [not a number"))
	require.Error(t, err)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sim.Config)
	}{
		{"non-positive pool", func(c *sim.Config) { c.TotalSize = 0 }},
		{"non-positive quantum", func(c *sim.Config) { c.Quantum = -1 }},
		{"negative split remainder", func(c *sim.Config) { c.MinSplitRemainder = -1 }},
		{"duplicate task id", func(c *sim.Config) { c.Tasks[1].ID = c.Tasks[0].ID }},
		{"non-positive task memory", func(c *sim.Config) { c.Tasks[0].MemoryRequired = 0 }},
		{"task memory exceeds pool", func(c *sim.Config) { c.Tasks[0].MemoryRequired = 2000 }},
		{"negative execution units", func(c *sim.Config) { c.Tasks[0].ExecutionUnits = -5 }},
		{"unknown priority", func(c *sim.Config) { c.Tasks[0].Priority = "urgent" }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := sim.DefaultConfig()
			test.mutate(config)
			require.Error(t, config.Validate())
		})
	}
}
