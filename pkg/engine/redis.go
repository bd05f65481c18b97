package engine

import "fmt"

func init() {
	Register(&Redis{})
}

// Redis implements the Engine interface for Redis
type Redis struct{}

func (e *Redis) Name() string {
	return "redis"
}

func (e *Redis) DisplayName() string {
	return "Redis"
}

func (e *Redis) Image() string {
	return "redis"
}

func (e *Redis) DefaultPort() int {
	return 6379
}

func (e *Redis) DataPath() string {
	return "/data"
}

func (e *Redis) Category() Category {
	return KeyValue
}

func (e *Redis) Versions() []Version {
	return []Version{
		{Version: "7", Tag: "7", Default: true},
		{Version: "6.2", Tag: "6.2"},
	}
}

func (e *Redis) EnvVars(username, password, database string) []string {
	// Auth is enforced through the server command; the env var is informational
	// for tools that read container config.
	return []string{
		"REDIS_PASSWORD=" + password,
	}
}

func (e *Redis) ContainerCmd(password string) []string {
	if password != "" {
		return []string{"redis-server", "--requirepass", password}
	}
	return nil
}

func (e *Redis) DSN(host string, port int, username, password, database string) string {
	if password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/0", password, host, port)
	}
	return fmt.Sprintf("redis://%s:%d/0", host, port)
}

func (e *Redis) BootstrapDDL() string {
	return ""
}
