package engine

import (
	"strings"
	"testing"
)

func TestRegistryContainsAllEngines(t *testing.T) {
	want := []string{"mariadb", "mongodb", "mysql", "postgresql", "redis"}
	got := List()
	if len(got) != len(want) {
		t.Fatalf("expected %d engines, got %d: %v", len(want), len(got), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("engine %d: expected %s, got %s", i, name, got[i])
		}
	}
}

func TestGetUnknownEngine(t *testing.T) {
	if _, err := Get("cassandra"); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestEachEngineHasOneDefaultVersion(t *testing.T) {
	for _, name := range List() {
		e, err := Get(name)
		if err != nil {
			t.Fatal(err)
		}
		defaults := 0
		for _, v := range e.Versions() {
			if v.Default {
				defaults++
			}
		}
		if defaults != 1 {
			t.Errorf("%s: expected exactly one default version, got %d", name, defaults)
		}
	}
}

func TestResolveVersion(t *testing.T) {
	e, err := Get("postgresql")
	if err != nil {
		t.Fatal(err)
	}

	v, ok := ResolveVersion(e, "")
	if !ok || v.Version != "16" {
		t.Errorf("empty request: expected default 16, got %v (ok=%v)", v, ok)
	}

	v, ok = ResolveVersion(e, "15")
	if !ok || v.Tag != "15" {
		t.Errorf("expected version 15, got %v (ok=%v)", v, ok)
	}

	if _, ok := ResolveVersion(e, "9.6"); ok {
		t.Error("expected unknown version 9.6 to fail resolution")
	}
}

func TestMySQLRootPasswordDerivation(t *testing.T) {
	e := &MySQL{}
	env := e.EnvVars("alice", "s3cret", "mydb")
	found := false
	for _, v := range env {
		if v == "MYSQL_ROOT_PASSWORD=s3cret_root" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected derived root password in env, got %v", env)
	}
}

func TestRedisContainerCmd(t *testing.T) {
	e := &Redis{}
	cmd := e.ContainerCmd("pw123")
	if len(cmd) != 3 || cmd[0] != "redis-server" || cmd[1] != "--requirepass" || cmd[2] != "pw123" {
		t.Errorf("unexpected redis command: %v", cmd)
	}
	if e.ContainerCmd("") != nil {
		t.Error("expected nil command without password")
	}
}

func TestMongoDSNUsesAdminAuthSource(t *testing.T) {
	e := &MongoDB{}
	dsn := e.DSN("localhost", 27020, "root", "pw", "appdb")
	if !strings.Contains(dsn, "authSource=admin") {
		t.Errorf("expected authSource=admin in DSN, got %s", dsn)
	}
}

func TestCategories(t *testing.T) {
	cases := map[string]Category{
		"postgresql": Relational,
		"mysql":      Relational,
		"mariadb":    Relational,
		"mongodb":    Document,
		"redis":      KeyValue,
	}
	for name, want := range cases {
		e, err := Get(name)
		if err != nil {
			t.Fatal(err)
		}
		if e.Category() != want {
			t.Errorf("%s: expected category %s, got %s", name, want, e.Category())
		}
	}
}
