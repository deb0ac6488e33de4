package docker

import (
	"time"

	"github.com/sakif/pygate/internal/sandbox"
)

// Config holds the configuration for Docker execution.
type Config struct {
	// Image is the Docker image to use for execution. It must provide python.
	Image string `yaml:"image"`
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64 `yaml:"memory_bytes"`
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64 `yaml:"cpus"`
	// PidsLimit caps processes inside the container.
	PidsLimit int64 `yaml:"pids"`
	// Timeout is the default execution limit when a request carries none.
	Timeout time.Duration `yaml:"timeout"`
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int `yaml:"pool_size"`
	// StderrTail is how many bytes of stderr are kept in a result.
	StderrTail int `yaml:"stderr_tail"`
	// OutputKB caps stdout and stderr each; a snippet writing more is
	// stopped with a resource-limit failure.
	OutputKB int `yaml:"output_kb"`
}

// DefaultConfig provides sensible defaults for a Python sandbox.
func DefaultConfig() Config {
	return Config{
		Image:       "python:3.12-alpine",
		MemoryLimit: 128 * 1024 * 1024,
		CPULimit:    0.5,
		PidsLimit:   64,
		Timeout:     5 * time.Second,
		PoolSize:    3,
		StderrTail:  4096,
		OutputKB:    sandbox.DefaultOutputKB,
	}
}
