package engine

import "fmt"

func init() {
	Register(&PostgreSQL{})
}

// PostgreSQL implements the Engine interface for PostgreSQL
type PostgreSQL struct{}

func (e *PostgreSQL) Name() string {
	return "postgresql"
}

func (e *PostgreSQL) DisplayName() string {
	return "PostgreSQL"
}

func (e *PostgreSQL) Image() string {
	return "postgres"
}

func (e *PostgreSQL) DefaultPort() int {
	return 5432
}

func (e *PostgreSQL) DataPath() string {
	return "/var/lib/postgresql/data"
}

func (e *PostgreSQL) Category() Category {
	return Relational
}

func (e *PostgreSQL) Versions() []Version {
	return []Version{
		{Version: "16", Tag: "16", Default: true},
		{Version: "15", Tag: "15"},
		{Version: "14", Tag: "14"},
	}
}

func (e *PostgreSQL) EnvVars(username, password, database string) []string {
	return []string{
		"POSTGRES_USER=" + username,
		"POSTGRES_PASSWORD=" + password,
		"POSTGRES_DB=" + database,
	}
}

func (e *PostgreSQL) ContainerCmd(password string) []string {
	return nil // use image default
}

func (e *PostgreSQL) DSN(host string, port int, username, password, database string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		username, password, host, port, database)
}

func (e *PostgreSQL) BootstrapDDL() string {
	return `CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    email VARCHAR(150) UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`
}
