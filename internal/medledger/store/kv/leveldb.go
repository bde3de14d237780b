package kv

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_storage "github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDB adapts a goleveldb database to Backend.
type LevelDB struct {
	db *leveldb.DB
}

func OpenLevelDB(path string, readOnly bool) (*LevelDB, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: readOnly,
		ReadOnly:       readOnly,
	}
	db, err := leveldb.OpenFile(path, opt)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

// OpenLevelDBMemory opens a throwaway database held in memory.
func OpenLevelDBMemory() (*LevelDB, error) {
	db, err := leveldb.Open(ldb_storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb memory: %w", err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb get: %w", err)
	}
	return v, nil
}

func (l *LevelDB) Write(b *Batch) error {
	lb := new(leveldb.Batch)
	for _, p := range b.puts {
		lb.Put(p.key, p.value)
	}
	if err := l.db.Write(lb, &ldb_opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("leveldb write: %w", err)
	}
	return nil
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
