package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"
	"github.com/sirrobot01/dbforge/pkg/runtime/types"
)

// Client wraps the Docker SDK client
type Client struct {
	cli     *client.Client
	network string
}

// Verify Client implements types.Client interface
var _ types.Client = (*Client)(nil)

// NewClient creates a new Docker SDK client
func NewClient(socketPath string, networkName string) (*Client, error) {
	host := "unix://" + socketPath

	cli, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	c := &Client{
		cli:     cli,
		network: networkName,
	}

	// Ensure the shared bridge network exists
	if err := c.ensureNetwork(context.Background()); err != nil {
		cli.Close()
		return nil, err
	}

	return c, nil
}

// Close closes the Docker client
func (c *Client) Close() error {
	return c.cli.Close()
}

// Ping checks if Docker is accessible
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.cli.Ping(ctx)
	return err
}

// ensureNetwork creates the shared network if it doesn't exist
func (c *Client) ensureNetwork(ctx context.Context) error {
	networks, err := c.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return err
	}

	for _, n := range networks {
		if n.Name == c.network {
			return nil
		}
	}

	_, err = c.cli.NetworkCreate(ctx, c.network, network.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{
			"dbforge.managed": "true",
		},
	})
	return err
}

// imagePresent reports whether the exact repo:tag exists locally.
func (c *Client) imagePresent(ctx context.Context, imageName string) (bool, error) {
	images, err := c.cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}
	return false, nil
}

// PullImage pulls an image unless the exact repo:tag is already present.
// After a pull it verifies the image actually arrived; registries can
// return a clean stream for manifests they never delivered.
func (c *Client) PullImage(ctx context.Context, imageName string) error {
	present, err := c.imagePresent(ctx, imageName)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if present {
		log.Debug().Str("image", imageName).Msg("Image already present, skipping pull")
		return nil
	}

	reader, err := c.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}
	defer reader.Close()

	// Drain the progress stream; the pull is not complete until EOF.
	dec := json.NewDecoder(reader)
	for {
		var msg struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read pull progress for %s: %w", imageName, err)
		}
		if msg.Error != "" {
			return fmt.Errorf("failed to pull image %s: %s", imageName, msg.Error)
		}
	}

	present, err = c.imagePresent(ctx, imageName)
	if err != nil {
		return fmt.Errorf("failed to verify image %s: %w", imageName, err)
	}
	if !present {
		return fmt.Errorf("image %s not present after pull", imageName)
	}
	return nil
}

// CreateContainer creates a new container
func (c *Client) CreateContainer(ctx context.Context, cfg *types.ContainerConfig) (string, error) {
	exposedPorts := nat.PortSet{}
	portBindings := nat.PortMap{}

	for containerPort, hostPort := range cfg.PortBindings {
		port := nat.Port(containerPort)
		exposedPorts[port] = struct{}{}
		portBindings[port] = []nat.PortBinding{
			{HostIP: "0.0.0.0", HostPort: hostPort},
		}
	}

	var mounts []mount.Mount
	for source, containerPath := range cfg.Volumes {
		// Named volume vs bind mount
		mountType := mount.TypeBind
		if !strings.HasPrefix(source, "/") && !strings.HasPrefix(source, ".") {
			mountType = mount.TypeVolume
		}
		mounts = append(mounts, mount.Mount{
			Type:   mountType,
			Source: source,
			Target: containerPath,
		})
	}

	containerCfg := &container.Config{
		Image:        cfg.Image,
		Cmd:          cfg.Cmd,
		Env:          cfg.Env,
		ExposedPorts: exposedPorts,
		Labels:       cfg.Labels,
	}

	hostCfg := &container.HostConfig{
		PortBindings:  portBindings,
		Mounts:        mounts,
		NetworkMode:   container.NetworkMode(c.network),
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
	}

	if cfg.MemoryLimit > 0 {
		hostCfg.Memory = cfg.MemoryLimit
	}
	if cfg.CPULimit > 0 {
		hostCfg.NanoCPUs = int64(cfg.CPULimit * 1e9)
	}

	resp, err := c.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, cfg.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	return resp.ID, nil
}

// StartContainer starts a container
func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	return c.cli.ContainerStart(ctx, containerID, container.StartOptions{})
}

// StopContainer stops a container
func (c *Client) StopContainer(ctx context.Context, containerID string) error {
	timeout := 10
	return c.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})
}

// RemoveContainer removes a container
func (c *Client) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	return c.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: true,
	})
}

// RemoveContainerByName force-removes any container with the given name.
// A missing container is not an error; this makes container names safe to
// reuse after a failed provision left debris behind.
func (c *Client) RemoveContainerByName(ctx context.Context, name string) error {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	for _, ctr := range containers {
		for _, n := range ctr.Names {
			if strings.TrimPrefix(n, "/") == name {
				if err := c.RemoveContainer(ctx, ctr.ID, true); err != nil {
					return fmt.Errorf("failed to remove container %s: %w", name, err)
				}
				log.Debug().Str("name", name).Str("container_id", ctr.ID[:12]).Msg("Removed leftover container")
			}
		}
	}
	return nil
}

// GetContainerStatus returns the container's running status
func (c *Client) GetContainerStatus(ctx context.Context, containerID string) (string, error) {
	info, err := c.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "error", nil
		}
		return "", err
	}

	if info.State.Running {
		return "running", nil
	}
	if info.State.Paused {
		return "stopped", nil
	}
	if info.State.Restarting {
		return "creating", nil
	}
	if info.State.Dead || info.State.OOMKilled {
		return "error", nil
	}
	return "stopped", nil
}

// GetContainerStats returns container resource usage statistics
func (c *Client) GetContainerStats(ctx context.Context, containerID string) (*types.ContainerStats, error) {
	stats, err := c.cli.ContainerStatsOneShot(ctx, containerID)
	if err != nil {
		return nil, err
	}
	defer stats.Body.Close()

	var statsJSON struct {
		CPUStats struct {
			CPUUsage struct {
				TotalUsage int64 `json:"total_usage"`
			} `json:"cpu_usage"`
			SystemCPUUsage int64 `json:"system_cpu_usage"`
			OnlineCPUs     int   `json:"online_cpus"`
		} `json:"cpu_stats"`
		PreCPUStats struct {
			CPUUsage struct {
				TotalUsage int64 `json:"total_usage"`
			} `json:"cpu_usage"`
			SystemCPUUsage int64 `json:"system_cpu_usage"`
		} `json:"precpu_stats"`
		MemoryStats struct {
			Usage int64 `json:"usage"`
			Limit int64 `json:"limit"`
		} `json:"memory_stats"`
		Networks map[string]struct {
			RxBytes int64 `json:"rx_bytes"`
			TxBytes int64 `json:"tx_bytes"`
		} `json:"networks"`
	}

	if err := json.NewDecoder(stats.Body).Decode(&statsJSON); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}

	cpuDelta := float64(statsJSON.CPUStats.CPUUsage.TotalUsage - statsJSON.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(statsJSON.CPUStats.SystemCPUUsage - statsJSON.PreCPUStats.SystemCPUUsage)
	cpuPercent := 0.0
	if systemDelta > 0 && cpuDelta > 0 {
		numCPUs := statsJSON.CPUStats.OnlineCPUs
		if numCPUs == 0 {
			numCPUs = 1
		}
		cpuPercent = (cpuDelta / systemDelta) * float64(numCPUs) * 100.0
	}

	var networkRx, networkTx int64
	for _, net := range statsJSON.Networks {
		networkRx += net.RxBytes
		networkTx += net.TxBytes
	}

	memPercent := 0.0
	if statsJSON.MemoryStats.Limit > 0 {
		memPercent = float64(statsJSON.MemoryStats.Usage) / float64(statsJSON.MemoryStats.Limit) * 100.0
	}

	return &types.ContainerStats{
		CPUPercent:    cpuPercent,
		MemoryUsage:   statsJSON.MemoryStats.Usage,
		MemoryLimit:   statsJSON.MemoryStats.Limit,
		MemoryPercent: memPercent,
		NetworkRx:     networkRx,
		NetworkTx:     networkTx,
	}, nil
}

// GetContainerLogs retrieves the last N lines of container logs
func (c *Client) GetContainerLogs(ctx context.Context, containerID string, tail int) (string, error) {
	if tail <= 0 {
		tail = 100
	}
	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       fmt.Sprintf("%d", tail),
	}
	reader, err := c.cli.ContainerLogs(ctx, containerID, options)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	output, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// DeleteVolume removes a Docker volume
func (c *Client) DeleteVolume(ctx context.Context, name string) error {
	return c.cli.VolumeRemove(ctx, name, true)
}
