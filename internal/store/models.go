package store

import "time"

// NodeInfo is the persisted identity of the node.
// Secret is hidden from API/JSON serialization via json:"-".
type NodeInfo struct {
	NodeID    string    `json:"node_id"`
	CreatedAt time.Time `json:"created_at"`
	Boots     int       `json:"boots"`
	Secret    string    `json:"-"`
}

// nodeInfoStorage is the internal struct used for DB serialization,
// preserving the secret on disk.
type nodeInfoStorage struct {
	NodeID    string    `json:"node_id"`
	CreatedAt time.Time `json:"created_at"`
	Boots     int       `json:"boots"`
	Secret    string    `json:"secret,omitempty"`
}
