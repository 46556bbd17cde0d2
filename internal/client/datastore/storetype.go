package datastore

import (
	"fmt"
	"strings"
)

// StoreType selects where a DataStore reads and writes.
type StoreType int

const (
	// Network reads and writes the backend only.
	Network StoreType = iota
	// Sync works against the local cache and queues every write for push.
	Sync
	// Cache writes through to the backend and caches what it returns.
	Cache
)

func (t StoreType) String() string {
	switch t {
	case Network:
		return "NETWORK"
	case Sync:
		return "SYNC"
	case Cache:
		return "CACHE"
	}
	return fmt.Sprintf("StoreType(%d)", int(t))
}

func (t StoreType) valid() bool {
	return t == Network || t == Sync || t == Cache
}

// ParseStoreType accepts the names printed by String, case-insensitively.
func ParseStoreType(s string) (StoreType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NETWORK":
		return Network, nil
	case "SYNC":
		return Sync, nil
	case "CACHE":
		return Cache, nil
	}
	return 0, invalidArgument("unknown store type %q", s)
}
