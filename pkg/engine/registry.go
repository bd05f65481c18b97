package engine

import (
	"fmt"
	"sort"
	"sync"
)

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// Register registers a database engine
func Register(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[e.Name()] = e
}

// Get returns a registered engine by name
func Get(name string) (Engine, error) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()

	e, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine: %s", name)
	}
	return e, nil
}

// List returns all registered engine names
func List() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()

	names := make([]string, 0, len(engines))
	for n := range engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Info returns metadata about all registered engines
func Info() []map[string]interface{} {
	enginesMu.RLock()
	defer enginesMu.RUnlock()

	info := make([]map[string]interface{}, 0, len(engines))
	for _, e := range engines {
		info = append(info, map[string]interface{}{
			"name":        e.Name(),
			"displayName": e.DisplayName(),
			"category":    e.Category(),
			"defaultPort": e.DefaultPort(),
			"versions":    e.Versions(),
		})
	}
	sort.Slice(info, func(i, j int) bool {
		return info[i]["name"].(string) < info[j]["name"].(string)
	})
	return info
}
