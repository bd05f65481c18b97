// Package engine defines the catalog of supported database engines.
// Each engine describes how its containers are configured and how clients
// connect; query execution lives in pkg/query, keyed by Category.
package engine

// Category groups engines by their query model. Every engine belongs to
// exactly one category and all category-specific behavior (executors,
// introspection, export) dispatches on it.
type Category string

const (
	Relational Category = "relational"
	Document   Category = "document"
	KeyValue   Category = "keyvalue"
)

// Version is a concrete image tag offered for an engine. Exactly one
// version per engine is the default.
type Version struct {
	Version string `json:"version"`
	Tag     string `json:"tag"`
	Default bool   `json:"default"`
}

// Engine defines the interface for database engine implementations
type Engine interface {
	Name() string        // registry key, e.g. "postgresql"
	DisplayName() string // e.g. "PostgreSQL"
	Image() string
	DefaultPort() int // port the server listens on inside the container
	DataPath() string
	Category() Category
	Versions() []Version

	EnvVars(username, password, database string) []string
	// ContainerCmd returns custom command/args to run the container (optional, nil = use image default)
	ContainerCmd(password string) []string

	// DSN returns the native connection string for the engine's driver
	DSN(host string, port int, username, password, database string) string

	// BootstrapDDL returns a starter table statement applied after provisioning,
	// or "" when the engine has no schema to bootstrap
	BootstrapDDL() string
}

// DefaultVersion returns the engine's default version.
func DefaultVersion(e Engine) Version {
	versions := e.Versions()
	for _, v := range versions {
		if v.Default {
			return v
		}
	}
	return versions[0]
}

// ResolveVersion returns the catalog entry matching the requested version,
// or the default when the request is empty.
func ResolveVersion(e Engine, requested string) (Version, bool) {
	if requested == "" {
		return DefaultVersion(e), true
	}
	for _, v := range e.Versions() {
		if v.Version == requested {
			return v, true
		}
	}
	return Version{}, false
}
