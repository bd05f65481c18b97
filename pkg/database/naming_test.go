package database

import (
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Sales DB", "sales_db"},
		{"my-app.prod", "my_app_prod"},
		{"already_safe_1", "already_safe_1"},
		{"", "db"},
		{"!!!", "___"},
	}
	for _, tc := range cases {
		if got := SanitizeName(tc.in); got != tc.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeNameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 80)
	if got := SanitizeName(long); len(got) != 50 {
		t.Errorf("expected 50-char cap, got %d chars", len(got))
	}
}

func TestContainerNameDeterministic(t *testing.T) {
	want := "dbforge_7_postgresql_sales_db"
	got := ContainerName(7, "postgresql", "Sales DB")
	if got != want {
		t.Errorf("ContainerName = %q, want %q", got, want)
	}
	if again := ContainerName(7, "postgresql", "Sales DB"); again != got {
		t.Errorf("container name is not deterministic: %q vs %q", got, again)
	}
}

func TestVolumeName(t *testing.T) {
	if got := VolumeName("db-12345678"); got != "dbforge-vol-db-12345678" {
		t.Errorf("unexpected volume name: %q", got)
	}
}
