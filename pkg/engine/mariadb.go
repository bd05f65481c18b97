package engine

import "fmt"

func init() {
	Register(&MariaDB{})
}

// MariaDB implements the Engine interface for MariaDB
type MariaDB struct{}

func (e *MariaDB) Name() string {
	return "mariadb"
}

func (e *MariaDB) DisplayName() string {
	return "MariaDB"
}

func (e *MariaDB) Image() string {
	return "mariadb"
}

func (e *MariaDB) DefaultPort() int {
	return 3306
}

func (e *MariaDB) DataPath() string {
	return "/var/lib/mysql"
}

func (e *MariaDB) Category() Category {
	return Relational
}

func (e *MariaDB) Versions() []Version {
	return []Version{
		{Version: "11", Tag: "11", Default: true},
		{Version: "10.11", Tag: "10.11"},
	}
}

func (e *MariaDB) EnvVars(username, password, database string) []string {
	// MariaDB images accept the MYSQL_* variable family.
	return []string{
		"MYSQL_ROOT_PASSWORD=" + password + "_root",
		"MYSQL_DATABASE=" + database,
		"MYSQL_USER=" + username,
		"MYSQL_PASSWORD=" + password,
	}
}

func (e *MariaDB) ContainerCmd(password string) []string {
	return []string{"--bind-address=0.0.0.0"}
}

func (e *MariaDB) DSN(host string, port int, username, password, database string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&allowNativePasswords=true",
		username, password, host, port, database)
}

func (e *MariaDB) BootstrapDDL() string {
	return `CREATE TABLE IF NOT EXISTS users (
    id INT AUTO_INCREMENT PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    email VARCHAR(150) UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`
}
