package store

import (
	"errors"

	"matter-rainmaker/internal/matter"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	// Attribute values
	SaveAttribute(ref matter.AttributeRef, v matter.Value) error
	LoadAttributes() (map[matter.AttributeRef]matter.Value, error)
	DeleteAttributes() error

	// Node identity
	SaveNodeInfo(info *NodeInfo) error
	GetNodeInfo() (*NodeInfo, error)

	// Close the store
	Close() error
}
