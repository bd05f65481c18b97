package database

import (
	"fmt"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9_]`)

// SanitizeName lowercases a display name and replaces anything outside
// [a-z0-9_], capped at 50 characters. The result is safe as a database
// identifier and as a container name segment.
func SanitizeName(name string) string {
	s := unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_")
	if len(s) > 50 {
		s = s[:50]
	}
	if s == "" {
		s = "db"
	}
	return s
}

// ContainerName derives the deterministic container name for an instance.
// The triple (owner, engine, name) maps to one name for the row's lifetime,
// so a retried provision replaces its own debris instead of colliding.
func ContainerName(ownerID int64, engineName, displayName string) string {
	return fmt.Sprintf("dbforge_%d_%s_%s", ownerID, engineName, SanitizeName(displayName))
}

// VolumeName derives the data volume name for an instance.
func VolumeName(instanceID string) string {
	return "dbforge-vol-" + instanceID
}
