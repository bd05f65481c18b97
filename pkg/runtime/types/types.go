// Package types defines shared types for the runtime package hierarchy.
// This package exists to avoid import cycles between runtime and its sub-packages.
package types

import "context"

// Client defines the container runtime operations interface.
// Implementations: docker.Client, containerd.Client.
//
// Adapters carry no retry or compensation logic; failure handling is the
// caller's responsibility.
type Client interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// Image operations. PullImage is a no-op when the exact repo:tag is
	// already present locally, and verifies presence after pulling.
	PullImage(ctx context.Context, imageName string) error

	// Container operations
	CreateContainer(ctx context.Context, cfg *ContainerConfig) (string, error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string) error
	RemoveContainer(ctx context.Context, containerID string, force bool) error
	// RemoveContainerByName force-removes a container by name; missing
	// containers are not an error.
	RemoveContainerByName(ctx context.Context, name string) error

	// Container inspection
	GetContainerStatus(ctx context.Context, containerID string) (string, error)
	GetContainerStats(ctx context.Context, containerID string) (*ContainerStats, error)
	GetContainerLogs(ctx context.Context, containerID string, tail int) (string, error)

	// Volume management
	DeleteVolume(ctx context.Context, name string) error
}

// ContainerConfig holds configuration for creating a container
type ContainerConfig struct {
	Name         string
	Image        string
	Cmd          []string // command/args to run (optional, overrides image default)
	Env          []string
	PortBindings map[string]string // containerPort/proto -> hostPort
	Volumes      map[string]string // volume name or hostPath -> containerPath
	MemoryLimit  int64             // bytes
	CPULimit     float64           // cores
	Labels       map[string]string
}

// ContainerStats holds container resource statistics
type ContainerStats struct {
	CPUPercent    float64
	MemoryUsage   int64
	MemoryLimit   int64
	MemoryPercent float64
	NetworkRx     int64
	NetworkTx     int64
}
