package containerd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/containers"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirrobot01/dbforge/pkg/runtime/types"
)

const (
	// Namespace is the containerd namespace for DBForge
	Namespace = "dbforge"

	// volumeRoot emulates named volumes with host directories
	volumeRoot = "/var/lib/dbforge/volumes"
)

// Client wraps the containerd SDK client
type Client struct {
	cli     *containerd.Client
	network string
}

// Verify Client implements types.Client interface
var _ types.Client = (*Client)(nil)

// NewClient creates a new containerd SDK client
func NewClient(socketPath string, networkName string) (*Client, error) {
	cli, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create containerd client: %w", err)
	}

	return &Client{
		cli:     cli,
		network: networkName,
	}, nil
}

// Close closes the containerd client
func (c *Client) Close() error {
	return c.cli.Close()
}

// ctx returns a context with the DBForge namespace
func (c *Client) ctx(parent context.Context) context.Context {
	return namespaces.WithNamespace(parent, Namespace)
}

// Ping checks if containerd is accessible
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.cli.Version(c.ctx(ctx))
	return err
}

// PullImage pulls an image unless it is already present in the namespace.
func (c *Client) PullImage(ctx context.Context, imageName string) error {
	normalizedName := normalizeImageName(imageName)

	if _, err := c.cli.GetImage(c.ctx(ctx), normalizedName); err == nil {
		return nil
	}

	// Native snapshotter works in Docker-in-Docker environments
	_, err := c.cli.Pull(c.ctx(ctx), normalizedName,
		containerd.WithPullUnpack,
		containerd.WithPullSnapshotter("native"),
	)
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}

	if _, err := c.cli.GetImage(c.ctx(ctx), normalizedName); err != nil {
		return fmt.Errorf("image %s not present after pull: %w", imageName, err)
	}
	return nil
}

// normalizeImageName converts Docker Hub short names to fully qualified references
func normalizeImageName(name string) string {
	// If already fully qualified, return as-is
	if strings.Contains(name, "/") && strings.Contains(strings.Split(name, "/")[0], ".") {
		return name
	}

	if !strings.Contains(name, "/") {
		// Official image like "postgres:16" -> "docker.io/library/postgres:16"
		return "docker.io/library/" + name
	}

	// User image like "user/repo:tag" -> "docker.io/user/repo:tag"
	return "docker.io/" + name
}

// CreateContainer creates a new container
func (c *Client) CreateContainer(ctx context.Context, cfg *types.ContainerConfig) (string, error) {
	ctx = c.ctx(ctx)

	imageName := normalizeImageName(cfg.Image)
	image, err := c.cli.GetImage(ctx, imageName)
	if err != nil {
		return "", fmt.Errorf("image %s not found: %w", cfg.Image, err)
	}

	specOpts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(cfg.Env),
	}

	if len(cfg.Cmd) > 0 {
		specOpts = append(specOpts, oci.WithProcessArgs(cfg.Cmd...))
	}

	for hostPath, containerPath := range cfg.Volumes {
		source := hostPath

		// Named volumes are emulated with host directories
		if !strings.HasPrefix(source, "/") && !strings.HasPrefix(source, ".") {
			source = filepath.Join(volumeRoot, hostPath)
			if err := os.MkdirAll(source, 0755); err != nil {
				return "", fmt.Errorf("failed to create volume directory %s: %w", source, err)
			}
		}

		specOpts = append(specOpts, oci.WithMounts([]specs.Mount{
			{
				Type:        "bind",
				Source:      source,
				Destination: containerPath,
				Options:     []string{"rbind", "rw"},
			},
		}))
	}

	if cfg.MemoryLimit > 0 || cfg.CPULimit > 0 {
		specOpts = append(specOpts, func(_ context.Context, _ oci.Client, _ *containers.Container, s *oci.Spec) error {
			if s.Linux == nil {
				s.Linux = &specs.Linux{}
			}
			if s.Linux.Resources == nil {
				s.Linux.Resources = &specs.LinuxResources{}
			}
			if cfg.MemoryLimit > 0 {
				if s.Linux.Resources.Memory == nil {
					s.Linux.Resources.Memory = &specs.LinuxMemory{}
				}
				s.Linux.Resources.Memory.Limit = &cfg.MemoryLimit
			}
			if cfg.CPULimit > 0 {
				if s.Linux.Resources.CPU == nil {
					s.Linux.Resources.CPU = &specs.LinuxCPU{}
				}
				period := uint64(100000)
				quota := int64(cfg.CPULimit * float64(period))
				s.Linux.Resources.CPU.Period = &period
				s.Linux.Resources.CPU.Quota = &quota
			}
			return nil
		})
	}

	container, err := c.cli.NewContainer(
		ctx,
		cfg.Name,
		containerd.WithImage(image),
		containerd.WithSnapshotter("native"),
		containerd.WithNewSnapshot(cfg.Name+"-snapshot", image),
		containerd.WithNewSpec(specOpts...),
		containerd.WithContainerLabels(cfg.Labels),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	return container.ID(), nil
}

// StartContainer starts a container
func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	ctx = c.ctx(ctx)

	container, err := c.cli.LoadContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("container not found: %w", err)
	}

	task, err := container.NewTask(ctx, cio.NewCreator(cio.WithStdio))
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}

	return nil
}

// StopContainer stops a container
func (c *Client) StopContainer(ctx context.Context, containerID string) error {
	ctx = c.ctx(ctx)

	container, err := c.cli.LoadContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("container not found: %w", err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return nil // No running task
	}

	if err := task.Kill(ctx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to kill task: %w", err)
	}

	exitCh, err := task.Wait(ctx)
	if err != nil {
		return err
	}

	select {
	case <-exitCh:
	case <-time.After(10 * time.Second):
		task.Kill(ctx, syscall.SIGKILL)
	}

	_, err = task.Delete(ctx)
	return err
}

// RemoveContainer removes a container
func (c *Client) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	ctx = c.ctx(ctx)

	container, err := c.cli.LoadContainer(ctx, containerID)
	if err != nil {
		return nil // Already removed
	}

	if task, err := container.Task(ctx, nil); err == nil {
		if force {
			task.Kill(ctx, syscall.SIGKILL)
		}
		task.Delete(ctx, containerd.WithProcessKill)
	}

	return container.Delete(ctx, containerd.WithSnapshotCleanup)
}

// RemoveContainerByName force-removes any container with the given name.
// Container IDs are names in containerd, so this is a load-and-remove.
func (c *Client) RemoveContainerByName(ctx context.Context, name string) error {
	nsCtx := c.ctx(ctx)
	if _, err := c.cli.LoadContainer(nsCtx, name); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return nil
	}
	return c.RemoveContainer(ctx, name, true)
}

// GetContainerStatus returns the container's running status
func (c *Client) GetContainerStatus(ctx context.Context, containerID string) (string, error) {
	ctx = c.ctx(ctx)

	container, err := c.cli.LoadContainer(ctx, containerID)
	if err != nil {
		return "error", nil
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return "stopped", nil
	}

	status, err := task.Status(ctx)
	if err != nil {
		return "error", nil
	}

	switch status.Status {
	case containerd.Running:
		return "running", nil
	case containerd.Created, containerd.Pausing:
		return "creating", nil
	case containerd.Stopped, containerd.Paused:
		return "stopped", nil
	default:
		return "error", nil
	}
}

// GetContainerStats returns container resource usage statistics
func (c *Client) GetContainerStats(ctx context.Context, containerID string) (*types.ContainerStats, error) {
	ctx = c.ctx(ctx)

	container, err := c.cli.LoadContainer(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("container not found: %w", err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("no running task: %w", err)
	}

	metrics, err := task.Metrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}

	// TODO: decode the typeurl-wrapped cgroup metrics payload
	_ = metrics

	return &types.ContainerStats{}, nil
}

// GetContainerLogs retrieves the last N lines of container logs
func (c *Client) GetContainerLogs(ctx context.Context, containerID string, tail int) (string, error) {
	// containerd doesn't store logs like Docker
	return "", fmt.Errorf("containerd does not support log retrieval directly; use a logging driver")
}

// DeleteVolume removes an emulated named volume
func (c *Client) DeleteVolume(ctx context.Context, name string) error {
	volPath := filepath.Join(volumeRoot, name)
	if err := os.RemoveAll(volPath); err != nil {
		return fmt.Errorf("failed to remove volume directory %s: %w", volPath, err)
	}
	return nil
}
