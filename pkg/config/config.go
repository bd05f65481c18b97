package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelTrace LogLevel = "trace"
)

// PortRange is an inclusive range of host ports reserved for one engine.
type PortRange struct {
	Start int
	End   int
}

// Size returns the number of ports in the range.
func (r PortRange) Size() int {
	return r.End - r.Start + 1
}

// Config holds all application configuration
type Config struct {
	LogLevel LogLevel
	Port     int
	DataDir  string
	Socket   string // Container runtime socket path
	Runtime  string // Container runtime: "docker" or "containerd"

	// Provisioning policy
	MaxRunningInstances  int
	InstanceCPULimit     float64 // cores per instance
	InstanceMemoryLimit  int64   // bytes per instance
	InstanceStorageLimit int64   // bytes per instance, advisory
	PortRanges           map[string]PortRange
}

// defaultPortRanges maps engine names to their reserved host port ranges.
// Ranges are disjoint so a port identifies its engine.
func defaultPortRanges() map[string]PortRange {
	return map[string]PortRange{
		"postgresql": {Start: 5432, End: 5531},
		"mysql":      {Start: 3306, End: 3405},
		"mariadb":    {Start: 3406, End: 3505},
		"mongodb":    {Start: 27017, End: 27116},
		"redis":      {Start: 6379, End: 6478},
	}
}

// Network returns the shared container network name
func (c *Config) Network() string {
	return "dbforge"
}

// StoragePath returns the path to the bbolt database file
func (c *Config) StoragePath() string {
	return filepath.Join(c.DataDir, "dbforge.db")
}

// Addr returns the HTTP server address
func (c *Config) Addr() string {
	if c.Port == 0 {
		return ":8080"
	}
	return fmt.Sprintf(":%d", c.Port)
}

// PortRange returns the host port range reserved for an engine.
func (c *Config) PortRange(engine string) (PortRange, bool) {
	r, ok := c.PortRanges[engine]
	return r, ok
}

// FromArgs creates a Config from CLI arguments
func FromArgs() *Config {
	port := flag.Int("port", 8080, "HTTP server port")
	dataDir := flag.String("data", "./data", "Data directory for storage")
	socket := flag.String("socket", "", "Container runtime socket path")
	runtime := flag.String("runtime", "docker", "Container runtime: docker or containerd")
	logLevel := flag.String("log-level", "info", "Logging level (info, debug, error, trace)")
	maxRunning := flag.Int("max-instances", 8, "Maximum concurrently running instances")
	cpuLimit := flag.Float64("instance-cpu", 0.25, "CPU cores per instance")
	memLimit := flag.Int64("instance-memory", 256, "Memory per instance (MB)")
	storageLimit := flag.Int64("instance-storage", 1024, "Storage per instance (MB)")
	flag.Parse()

	if *dataDir == "" {
		*dataDir = "./data"
	}
	if *runtime == "" {
		*runtime = "docker"
	}
	if *logLevel == "" {
		*logLevel = "info"
	}

	return &Config{
		Port:                 *port,
		DataDir:              *dataDir,
		Socket:               *socket,
		Runtime:              *runtime,
		LogLevel:             LogLevel(*logLevel),
		MaxRunningInstances:  *maxRunning,
		InstanceCPULimit:     *cpuLimit,
		InstanceMemoryLimit:  *memLimit * 1024 * 1024,
		InstanceStorageLimit: *storageLimit * 1024 * 1024,
		PortRanges:           defaultPortRanges(),
	}
}

// Validate validates the configuration and creates necessary directories
func (c *Config) Validate() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	if c.MaxRunningInstances < 1 {
		return fmt.Errorf("max-instances must be at least 1")
	}
	for engine, r := range c.PortRanges {
		if r.Start <= 0 || r.End < r.Start {
			return fmt.Errorf("invalid port range for %s: %d-%d", engine, r.Start, r.End)
		}
	}
	return nil
}
