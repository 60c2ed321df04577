package trace

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/colorfulnotion/xpvm/common"
	"github.com/colorfulnotion/xpvm/log"
)

// Store persists steps in LevelDB keyed by proc||step, both big-endian, so
// one processor's steps iterate in execution order.
// LevelDB handles its own synchronization.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens or creates a store at path. An empty path keeps the store
// in memory.
func OpenStore(path string) (*Store, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace db at %s: %w", path, err)
	}
	log.Debug(log.TraceMonitoring, "opened trace store", "path", path)
	return &Store{db: db}, nil
}

func stepKey(proc, step uint64) []byte {
	return append(common.Uint64ToBigEndian(proc), common.Uint64ToBigEndian(step)...)
}

func (s *Store) WriteStep(step *Step) error {
	val, err := json.Marshal(step)
	if err != nil {
		return err
	}
	return s.db.Put(stepKey(step.Proc, step.Step), val, nil)
}

// Get returns (nil, false, nil) when the step is absent.
func (s *Store) Get(proc, step uint64) (*Step, bool, error) {
	data, err := s.db.Get(stepKey(proc, step), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get step %d/%d: %w", proc, step, err)
	}
	var st Step
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, err
	}
	return &st, true, nil
}

// Steps returns every recorded step of proc in order.
func (s *Store) Steps(proc uint64) ([]*Step, error) {
	var out []*Step
	err := s.Iterate(proc, func(st *Step) bool {
		out = append(out, st)
		return true
	})
	return out, err
}

// Iterate calls fn for each step of proc until fn returns false.
func (s *Store) Iterate(proc uint64, fn func(*Step) bool) error {
	iter := s.db.NewIterator(util.BytesPrefix(common.Uint64ToBigEndian(proc)), nil)
	defer iter.Release()
	for iter.Next() {
		var st Step
		if err := json.Unmarshal(iter.Value(), &st); err != nil {
			return fmt.Errorf("decode step %x: %w", iter.Key(), err)
		}
		if !fn(&st) {
			break
		}
	}
	return iter.Error()
}

// Processors lists the processor ids that have recorded steps.
func (s *Store) Processors() ([]uint64, error) {
	var out []uint64
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	for ok := iter.First(); ok; {
		key := iter.Key()
		if len(key) < 8 {
			ok = iter.Next()
			continue
		}
		proc := binary.BigEndian.Uint64(key[:8])
		out = append(out, proc)
		if proc == ^uint64(0) {
			break
		}
		ok = iter.Seek(common.Uint64ToBigEndian(proc + 1))
	}
	return out, iter.Error()
}

// Last returns the final step recorded for proc.
func (s *Store) Last(proc uint64) (*Step, bool, error) {
	iter := s.db.NewIterator(util.BytesPrefix(common.Uint64ToBigEndian(proc)), nil)
	defer iter.Release()
	if !iter.Last() {
		return nil, false, iter.Error()
	}
	if !bytes.HasPrefix(iter.Key(), common.Uint64ToBigEndian(proc)) {
		return nil, false, nil
	}
	var st Step
	if err := json.Unmarshal(iter.Value(), &st); err != nil {
		return nil, false, err
	}
	return &st, true, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
