package storage

import (
	"time"
)

// Instance lifecycle statuses. Deleted and error are terminal; deleted rows
// are kept so their ports and container names stay reserved for auditing.
const (
	StatusCreating = "creating"
	StatusRunning  = "running"
	StatusStopped  = "stopped"
	StatusError    = "error"
	StatusDeleted  = "deleted"
)

// Instance represents a provisioned database instance
type Instance struct {
	ID            string    `json:"id" msgpack:"id"`
	OwnerID       int64     `json:"ownerId" msgpack:"owner_id"`
	Name          string    `json:"name" msgpack:"name"`
	Engine        string    `json:"engine" msgpack:"engine"`
	Version       string    `json:"version" msgpack:"version"`
	Status        string    `json:"status" msgpack:"status"`
	Host          string    `json:"host" msgpack:"host"`
	Port          int       `json:"port" msgpack:"port"`
	Username      string    `json:"username" msgpack:"username"`
	Password      string    `json:"-" msgpack:"password"` // Never sent to frontend
	Database      string    `json:"database" msgpack:"database"`
	ContainerID   string    `json:"containerId,omitempty" msgpack:"container_id"`
	ContainerName string    `json:"containerName" msgpack:"container_name"`
	APIToken      string    `json:"-" msgpack:"api_token"`
	StorageLimit  int64     `json:"storageLimit" msgpack:"storage_limit"` // bytes
	MemoryLimit   int64     `json:"memoryLimit" msgpack:"memory_limit"`   // bytes
	CPULimit      float64   `json:"cpuLimit" msgpack:"cpu_limit"`
	ErrorMessage  string    `json:"errorMessage,omitempty" msgpack:"error_message"`
	CreatedAt     time.Time `json:"createdAt" msgpack:"created_at"`
	StartedAt     time.Time `json:"startedAt,omitempty" msgpack:"started_at"`
}

// Deleted reports whether the instance has been soft-deleted.
func (i *Instance) Deleted() bool {
	return i.Status == StatusDeleted
}

// ApiToken represents an account-level API token. Only the bcrypt digest is
// stored; the raw token is returned once at issuance.
type ApiToken struct {
	ID         string     `json:"id" msgpack:"id"`
	OwnerID    int64      `json:"ownerId" msgpack:"owner_id"`
	Name       string     `json:"name" msgpack:"name"`
	TokenHash  string     `json:"-" msgpack:"token_hash"`
	Active     bool       `json:"active" msgpack:"active"`
	CreatedAt  time.Time  `json:"createdAt" msgpack:"created_at"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty" msgpack:"last_used_at"`
}

// Storage defines the interface for data persistence
type Storage interface {
	Close() error
	DataDir() string

	// Instance operations
	CreateInstance(inst *Instance) error
	GetInstance(id string) (*Instance, error)
	ListInstances() []*Instance
	UpdateInstance(inst *Instance) error

	// API token operations
	CreateToken(token *ApiToken) error
	GetToken(id string) (*ApiToken, error)
	ListTokens(ownerID int64) []*ApiToken
	UpdateToken(token *ApiToken) error
}

// New creates a new storage instance
func New(path, dataDir string) (Storage, error) {
	return NewBoltStorage(path, dataDir)
}
