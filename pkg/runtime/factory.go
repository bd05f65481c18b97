package runtime

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sirrobot01/dbforge/pkg/runtime/containerd"
	"github.com/sirrobot01/dbforge/pkg/runtime/docker"
)

// DefaultSockets maps runtime names to default socket paths.
// Podman exposes a docker-compatible socket, so "docker" with a podman
// socket path works unchanged.
var DefaultSockets = map[string]string{
	"docker":     "/var/run/docker.sock",
	"containerd": "/run/containerd/containerd.sock",
}

// New creates a new container runtime client.
// runtime: "docker" or "containerd". An empty socketPath falls back to the
// runtime's default socket.
func New(runtime, socketPath, networkName string) (Client, error) {
	if runtime == "" {
		runtime = "docker"
	}

	defaultSocket, ok := DefaultSockets[runtime]
	if !ok {
		return nil, fmt.Errorf("unknown runtime: %s (valid: docker, containerd)", runtime)
	}
	if socketPath == "" {
		socketPath = defaultSocket
	}

	if err := validateSocket(socketPath); err != nil {
		return nil, err
	}

	log.Info().
		Str("runtime", runtime).
		Str("socket", socketPath).
		Msg("Initializing container runtime")

	var (
		client Client
		err    error
	)
	switch runtime {
	case "docker":
		client, err = docker.NewClient(socketPath, networkName)
	case "containerd":
		client, err = containerd.NewClient(socketPath, networkName)
	}
	if err != nil {
		return nil, err
	}

	if err := pingWithTimeout(client, socketPath, runtime); err != nil {
		client.Close()
		return nil, err
	}

	log.Info().
		Str("runtime", runtime).
		Str("socket", socketPath).
		Msg("Container runtime connected successfully")

	return client, nil
}

// validateSocket checks if socket path exists and is accessible
func validateSocket(socketPath string) error {
	info, err := os.Stat(socketPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("socket not found at %s", socketPath)
		}
		return fmt.Errorf("cannot access socket at %s: %w", socketPath, err)
	}

	// Check if it's a socket or symlink to socket
	mode := info.Mode()
	if mode&os.ModeSocket == 0 && mode&os.ModeSymlink == 0 {
		// May still be valid on some systems, continue with warning
		log.Warn().
			Str("socket", socketPath).
			Str("mode", mode.String()).
			Msg("Socket path may not be a Unix socket")
	}

	return nil
}

// pingWithTimeout pings the runtime with a timeout
func pingWithTimeout(client Client, socketPath, runtime string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("cannot connect to %s daemon at %s: %w", runtime, socketPath, err)
	}
	return nil
}
