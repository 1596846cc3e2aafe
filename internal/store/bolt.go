package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketAttributes = []byte("attributes")
	bucketFabrics    = []byte("fabrics")
	bucketNode       = []byte("node")
	keyFabrics       = []byte("list")
	keyIdentity      = []byte("identity")
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
		for _, b := range [][]byte{bucketAttributes, bucketFabrics, bucketNode} {
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

// attributeKey orders records by endpoint, then cluster, then attribute, so
// one endpoint's values form a contiguous prefix range.
func attributeKey(endpointID uint16, clusterID, attrID uint32) []byte {
	key := make([]byte, 10)
	binary.BigEndian.PutUint16(key[0:2], endpointID)
	binary.BigEndian.PutUint32(key[2:6], clusterID)
	binary.BigEndian.PutUint32(key[6:10], attrID)
	return key
}

func (s *BoltStore) SaveAttribute(rec *AttributeRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttributes)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketAttributes)
		}
		data, err := marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(attributeKey(rec.EndpointID, rec.ClusterID, rec.AttributeID), data)
	})
}

func (s *BoltStore) GetAttribute(endpointID uint16, clusterID, attrID uint32) (*AttributeRecord, error) {
	var rec AttributeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttributes)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketAttributes)
		}
		data := b.Get(attributeKey(endpointID, clusterID, attrID))
		if data == nil {
			return fmt.Errorf("attribute %d/0x%04X/0x%04X: %w", endpointID, clusterID, attrID, ErrNotFound)
		}
		return unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) ListAttributes(endpointID uint16) ([]*AttributeRecord, error) {
	var records []*AttributeRecord
	prefix := make([]byte, 2)
	binary.BigEndian.PutUint16(prefix, endpointID)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttributes)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && k[0] == prefix[0] && k[1] == prefix[1]; k, v = c.Next() {
			var rec AttributeRecord
			if err := unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode attribute %X: %w", k, err)
			}
			records = append(records, &rec)
		}
		return nil
	})
	return records, err
}

func (s *BoltStore) SaveFabrics(fabrics []Fabric) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFabrics)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketFabrics)
		}
		if fabrics == nil {
			fabrics = []Fabric{}
		}
		data, err := marshal(fabrics)
		if err != nil {
			return err
		}
		return b.Put(keyFabrics, data)
	})
}

func (s *BoltStore) ListFabrics() ([]Fabric, error) {
	var fabrics []Fabric
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFabrics)
		if b == nil {
			return nil
		}
		data := b.Get(keyFabrics)
		if data == nil {
			return nil
		}
		return unmarshal(data, &fabrics)
	})
	return fabrics, err
}

func (s *BoltStore) NodeIdentity() (*NodeIdentity, error) {
	var id NodeIdentity
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNode)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNode)
		}
		if data := b.Get(keyIdentity); data != nil {
			return unmarshal(data, &id)
		}
		id = NodeIdentity{
			UniqueID:  uuid.NewString(),
			CreatedAt: time.Now().UTC(),
		}
		data, err := marshal(&id)
		if err != nil {
			return err
		}
		return b.Put(keyIdentity, data)
	})
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
