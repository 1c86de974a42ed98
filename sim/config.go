package sim

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/memarena/memarena/sched"
	"gopkg.in/yaml.v3"
)

// TaskConfig is a serialisable description of one task in a scenario.
type TaskConfig struct {
	ID             int    `json:"id" yaml:"id"`
	MemoryRequired int    `json:"memoryRequired" yaml:"memoryRequired"`
	ExecutionUnits int    `json:"executionUnits" yaml:"executionUnits"`
	Priority       string `json:"priority" yaml:"priority"`
}

func (t TaskConfig) priority() (sched.Priority, error) {
	switch t.Priority {
	case "high":
		return sched.PriorityHigh, nil
	case "low":
		return sched.PriorityLow, nil
	}
	return 0, cerrors.Newf("task %d: unknown priority %q, expected \"high\" or \"low\"", t.ID, t.Priority)
}

// Config is a serialisable representation of a scenario: one memory pool and the
// tasks competing for it. It can be populated from YAML or JSON; callers may also
// start from DefaultConfig and modify the returned struct.
type Config struct {
	// TotalSize is the size of the memory pool in units
	TotalSize int `json:"totalSize" yaml:"totalSize"`
	// Quantum is the round-robin execution budget per turn, in units
	Quantum int `json:"quantum" yaml:"quantum"`
	// MinSplitRemainder tunes the allocator's split threshold; 0 selects
	// region.DefaultMinSplitRemainder
	MinSplitRemainder int `json:"minSplitRemainder" yaml:"minSplitRemainder"`
	// Synchronized guards the allocator with a mutex; only needed when tasks are
	// submitted from multiple goroutines
	Synchronized bool `json:"synchronized" yaml:"synchronized"`

	Tasks []TaskConfig `json:"tasks" yaml:"tasks"`
}

// DefaultConfig returns the reference scenario: a pool of 1000 units, a quantum of
// 150, two high-priority tasks and two low-priority tasks.
func DefaultConfig() *Config {
	return &Config{
		TotalSize: 1000,
		Quantum:   150,
		Tasks: []TaskConfig{
			{ID: 1, MemoryRequired: 200, ExecutionUnits: 300, Priority: "high"},
			{ID: 2, MemoryRequired: 250, ExecutionUnits: 400, Priority: "high"},
			{ID: 3, MemoryRequired: 150, ExecutionUnits: 500, Priority: "low"},
			{ID: 4, MemoryRequired: 100, ExecutionUnits: 200, Priority: "low"},
		},
	}
}

// ParseConfig populates a Config from YAML bytes. The result is not validated;
// callers should run Validate before handing it to Run.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate returns an error describing invalid settings, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.TotalSize <= 0 {
		return cerrors.Newf("totalSize must be > 0, got %d", c.TotalSize)
	}
	if c.Quantum <= 0 {
		return cerrors.Newf("quantum must be > 0, got %d", c.Quantum)
	}
	if c.MinSplitRemainder < 0 {
		return cerrors.Newf("minSplitRemainder must be >= 0, got %d", c.MinSplitRemainder)
	}

	seen := make(map[int]struct{}, len(c.Tasks))
	for _, task := range c.Tasks {
		if _, dup := seen[task.ID]; dup {
			return cerrors.Newf("task id %d is used more than once", task.ID)
		}
		seen[task.ID] = struct{}{}

		if task.MemoryRequired <= 0 {
			return cerrors.Newf("task %d: memoryRequired must be > 0, got %d", task.ID, task.MemoryRequired)
		}
		if task.MemoryRequired > c.TotalSize {
			return cerrors.Newf("task %d: memoryRequired %d exceeds the pool size %d and can never be satisfied", task.ID, task.MemoryRequired, c.TotalSize)
		}
		if task.ExecutionUnits < 0 {
			return cerrors.Newf("task %d: executionUnits must be >= 0, got %d", task.ID, task.ExecutionUnits)
		}
		if _, err := task.priority(); err != nil {
			return err
		}
	}

	return nil
}
