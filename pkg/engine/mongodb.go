package engine

import "fmt"

func init() {
	Register(&MongoDB{})
}

// MongoDB implements the Engine interface for MongoDB
type MongoDB struct{}

func (e *MongoDB) Name() string {
	return "mongodb"
}

func (e *MongoDB) DisplayName() string {
	return "MongoDB"
}

func (e *MongoDB) Image() string {
	return "mongo"
}

func (e *MongoDB) DefaultPort() int {
	return 27017
}

func (e *MongoDB) DataPath() string {
	return "/data/db"
}

func (e *MongoDB) Category() Category {
	return Document
}

func (e *MongoDB) Versions() []Version {
	return []Version{
		{Version: "7", Tag: "7", Default: true},
		{Version: "6", Tag: "6"},
	}
}

func (e *MongoDB) EnvVars(username, password, database string) []string {
	return []string{
		"MONGO_INITDB_ROOT_USERNAME=" + username,
		"MONGO_INITDB_ROOT_PASSWORD=" + password,
		"MONGO_INITDB_DATABASE=" + database,
	}
}

func (e *MongoDB) ContainerCmd(password string) []string {
	return nil // use image default
}

func (e *MongoDB) DSN(host string, port int, username, password, database string) string {
	// Root users created by the init scripts live in the admin database.
	return fmt.Sprintf("mongodb://%s:%s@%s:%d/%s?authSource=admin",
		username, password, host, port, database)
}

func (e *MongoDB) BootstrapDDL() string {
	return ""
}
