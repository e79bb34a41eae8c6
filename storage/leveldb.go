package storage

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBStore is a persistent KeyValueStore backed by goleveldb.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) a leveldb database at the given path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		Filter:                 filter.NewBloomFilter(10),
		OpenFilesCacheCapacity: 64,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %s", path)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "leveldb get")
	}
	return v, nil
}

func (s *LevelDBStore) Has(key []byte) (bool, error) {
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return false, errors.Wrap(err, "leveldb has")
	}
	return ok, nil
}

func (s *LevelDBStore) Put(key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return errors.Wrap(err, "leveldb put")
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
