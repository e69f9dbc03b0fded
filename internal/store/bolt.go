package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"matter-rainmaker/internal/matter"
)

var (
	bucketAttributes = []byte("attributes")
	bucketNode       = []byte("node")
	keyNodeInfo      = []byte("info")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketAttributes, bucketNode} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// attrKey renders a ref as a fixed-width key so ForEach yields tree order.
func attrKey(ref matter.AttributeRef) []byte {
	return []byte(fmt.Sprintf("%04X/%08X/%08X", ref.Endpoint, ref.Cluster, ref.Attribute))
}

func parseAttrKey(k []byte) (matter.AttributeRef, error) {
	var ref matter.AttributeRef
	if _, err := fmt.Sscanf(string(k), "%04X/%08X/%08X", &ref.Endpoint, &ref.Cluster, &ref.Attribute); err != nil {
		return ref, fmt.Errorf("bad attribute key %q: %w", k, err)
	}
	return ref, nil
}

func (s *BoltStore) SaveAttribute(ref matter.AttributeRef, v matter.Value) error {
	data, err := matter.EncodeValue(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ref, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttributes)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketAttributes)
		}
		return b.Put(attrKey(ref), data)
	})
}

func (s *BoltStore) LoadAttributes() (map[matter.AttributeRef]matter.Value, error) {
	attrs := make(map[matter.AttributeRef]matter.Value)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttributes)
		if b == nil {
			return nil // no bucket = no attributes
		}
		return b.ForEach(func(k, v []byte) error {
			ref, err := parseAttrKey(k)
			if err != nil {
				return err
			}
			val, err := matter.DecodeValue(v)
			if err != nil {
				return fmt.Errorf("decode %s: %w", ref, err)
			}
			attrs[ref] = val
			return nil
		})
	})
	return attrs, err
}

func (s *BoltStore) DeleteAttributes() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketAttributes) != nil {
			if err := tx.DeleteBucket(bucketAttributes); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(bucketAttributes)
		return err
	})
}

func (s *BoltStore) SaveNodeInfo(info *NodeInfo) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNode)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNode)
		}
		// Use internal storage struct to persist the secret.
		st := nodeInfoStorage{
			NodeID:    info.NodeID,
			CreatedAt: info.CreatedAt,
			Boots:     info.Boots,
			Secret:    info.Secret,
		}
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		return b.Put(keyNodeInfo, data)
	})
}

func (s *BoltStore) GetNodeInfo() (*NodeInfo, error) {
	var info NodeInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNode)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNode)
		}
		data := b.Get(keyNodeInfo)
		if data == nil {
			return fmt.Errorf("node info: %w", ErrNotFound)
		}
		var st nodeInfoStorage
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}
		info = NodeInfo{
			NodeID:    st.NodeID,
			CreatedAt: st.CreatedAt,
			Boots:     st.Boots,
			Secret:    st.Secret,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
