// Package boltstore is the bbolt Backend: the flat-file store medium.
//
// Each entity gets its own bucket keyed by object ID. A value is the
// record's seq (8 bytes, big endian) followed by its canonical JSON
// attribute map. The meta bucket tracks the highest seq ever stored.
//
// Fetches read the entity's bucket in one read transaction and evaluate the
// request in memory with queryir.Apply, so ordering matches the SQLite
// backend exactly. bbolt reads are memory-mapped, which makes the batch size
// hint moot here.
package boltstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
	"github.com/roach88/datastack/internal/store"
)

var (
	metaBucket = []byte("meta")
	seqKey     = []byte("seq")
)

// Store is the bbolt Backend.
type Store struct {
	db    *bolt.DB
	model *ir.Model
}

var _ store.Backend = (*Store)(nil)

// Open opens or creates the bolt file at path and ensures a bucket exists
// for every entity in the model.
func Open(path string, model *ir.Model) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := bolt.Open(path, 0666, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}

	s := &Store{db: db, model: model}
	if err := s.initializeBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing buckets: %w", err)
	}
	return s, nil
}

// initializeBuckets creates the meta and entity buckets if they do not
// already exist.
func (s *Store) initializeBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return fmt.Errorf("creating bucket: %s: %w", metaBucket, err)
		}
		if s.model == nil {
			return nil
		}
		for _, name := range s.model.EntityNames() {
			if _, err := tx.CreateBucketIfNotExists(entityBucket(name)); err != nil {
				return fmt.Errorf("creating bucket: %s: %w", name, err)
			}
		}
		return nil
	})
}

func entityBucket(entity string) []byte {
	return []byte("entity:" + entity)
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Fetch returns the records matching req. Returns an empty slice, not nil.
func (s *Store) Fetch(ctx context.Context, req queryir.FetchRequest) ([]ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []ir.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(entityBucket(req.Entity))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			rec, err := s.decode(req.Entity, k, v)
			if err != nil {
				return err
			}
			all = append(all, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.Entity, err)
	}

	records := queryir.Apply(req, all)
	if !req.IncludesPropertyValues {
		for i := range records {
			records[i].Values = nil
		}
	}
	return records, nil
}

// Commit applies every change in one bbolt write transaction.
func (s *Store) Commit(ctx context.Context, cs store.ChangeSet) error {
	if cs.IsEmpty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		maxSeq := readSeq(meta)

		for _, rec := range cs.Inserts {
			b, err := tx.CreateBucketIfNotExists(entityBucket(rec.Entity))
			if err != nil {
				return fmt.Errorf("insert %s %s: %w", rec.Entity, rec.ID, err)
			}
			key := []byte(rec.ID)
			if b.Get(key) != nil {
				return fmt.Errorf("insert %s %s: id already exists", rec.Entity, rec.ID)
			}
			if err := s.put(b, rec); err != nil {
				return fmt.Errorf("insert %s %s: %w", rec.Entity, rec.ID, err)
			}
			maxSeq = max(maxSeq, rec.Seq)
		}

		for _, u := range cs.Updates {
			b := tx.Bucket(entityBucket(u.Entity))
			if b == nil {
				return fmt.Errorf("update %s %s: %w", u.Entity, u.ID, store.ErrNotFound)
			}
			raw := b.Get([]byte(u.ID))
			if raw == nil {
				return fmt.Errorf("update %s %s: %w", u.Entity, u.ID, store.ErrNotFound)
			}
			rec, err := s.decode(u.Entity, []byte(u.ID), raw)
			if err != nil {
				return fmt.Errorf("update %s %s: %w", u.Entity, u.ID, err)
			}
			rec.Values = rec.Values.Apply(u.Patch)
			if err := s.put(b, rec); err != nil {
				return fmt.Errorf("update %s %s: %w", u.Entity, u.ID, err)
			}
		}

		for _, d := range cs.Deletes {
			b := tx.Bucket(entityBucket(d.Entity))
			if b == nil {
				continue
			}
			if err := b.Delete([]byte(d.ID)); err != nil {
				return fmt.Errorf("delete %s %s: %w", d.Entity, d.ID, err)
			}
		}

		return writeSeq(meta, maxSeq)
	})
}

// MaxSeq returns the highest seq ever stored. Unlike the SQLite backend it
// does not decrease when the newest records are deleted.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.View(func(tx *bolt.Tx) error {
		seq = readSeq(tx.Bucket(metaBucket))
		return nil
	})
	return seq, err
}

func (s *Store) put(b *bolt.Bucket, rec ir.Record) error {
	data, err := ir.MarshalObject(rec.Values.WithoutNulls())
	if err != nil {
		return err
	}
	buf := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(rec.Seq))
	buf = append(buf, data...)
	return b.Put([]byte(rec.ID), buf)
}

// decode copies out of the mmap'd value; bbolt memory is only valid inside
// the transaction.
func (s *Store) decode(entity string, key, raw []byte) (ir.Record, error) {
	if len(raw) < 8 {
		return ir.Record{}, fmt.Errorf("object %s: corrupt value", key)
	}
	var schema *ir.EntitySchema
	if s.model != nil {
		schema, _ = s.model.Entity(entity)
	}
	values, err := ir.UnmarshalObject(raw[8:], schema)
	if err != nil {
		return ir.Record{}, fmt.Errorf("object %s: %w", key, err)
	}
	return ir.Record{
		ID:     ir.ObjectID(string(key)),
		Entity: entity,
		Seq:    int64(binary.BigEndian.Uint64(raw[:8])),
		Values: values,
	}, nil
}

func readSeq(meta *bolt.Bucket) int64 {
	v := meta.Get(seqKey)
	if len(v) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(v))
}

func writeSeq(meta *bolt.Bucket, seq int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(seq))
	return meta.Put(seqKey, buf)
}
