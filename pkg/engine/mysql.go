package engine

import "fmt"

func init() {
	Register(&MySQL{})
}

// MySQL implements the Engine interface for MySQL
type MySQL struct{}

func (e *MySQL) Name() string {
	return "mysql"
}

func (e *MySQL) DisplayName() string {
	return "MySQL"
}

func (e *MySQL) Image() string {
	return "mysql"
}

func (e *MySQL) DefaultPort() int {
	return 3306
}

func (e *MySQL) DataPath() string {
	return "/var/lib/mysql"
}

func (e *MySQL) Category() Category {
	return Relational
}

func (e *MySQL) Versions() []Version {
	return []Version{
		{Version: "8.0", Tag: "8.0", Default: true},
		{Version: "8.4", Tag: "8.4"},
		{Version: "5.7", Tag: "5.7"},
	}
}

func (e *MySQL) EnvVars(username, password, database string) []string {
	// Root password is derived from the instance password so admin access
	// stays recoverable without storing a second credential.
	return []string{
		"MYSQL_ROOT_PASSWORD=" + password + "_root",
		"MYSQL_DATABASE=" + database,
		"MYSQL_USER=" + username,
		"MYSQL_PASSWORD=" + password,
	}
}

func (e *MySQL) ContainerCmd(password string) []string {
	return []string{"--bind-address=0.0.0.0"}
}

func (e *MySQL) DSN(host string, port int, username, password, database string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&allowNativePasswords=true",
		username, password, host, port, database)
}

func (e *MySQL) BootstrapDDL() string {
	return `CREATE TABLE IF NOT EXISTS users (
    id INT AUTO_INCREMENT PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    email VARCHAR(150) UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`
}
