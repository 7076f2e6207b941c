package storage

import (
	"errors"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	ethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store that also hosts the
// state trie nodes. Implementations exist for memory (tests) and LevelDB.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	TrieDB() *triedb.Database
	Close()
}

// kvStore shares the Get/Put plumbing between backends. Trie nodes and raw
// keys live in the same keyspace; raw keys must carry a prefix.
type kvStore struct {
	disk   ethdb.Database
	trieDB *triedb.Database
}

func newKVStore(disk ethdb.Database) kvStore {
	return kvStore{disk: disk, trieDB: triedb.NewDatabase(disk, triedb.HashDefaults)}
}

func (s kvStore) Put(key []byte, value []byte) error {
	return s.disk.Put(key, value)
}

func (s kvStore) Get(key []byte) ([]byte, error) {
	ok, err := s.disk.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	value, err := s.disk.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s kvStore) Has(key []byte) (bool, error) {
	return s.disk.Has(key)
}

func (s kvStore) Delete(key []byte) error {
	return s.disk.Delete(key)
}

func (s kvStore) TrieDB() *triedb.Database {
	return s.trieDB
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	kvStore
}

func NewMemDB() *MemDB {
	return &MemDB{kvStore: newKVStore(rawdb.NewMemoryDatabase())}
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	db.trieDB.Close()
	db.disk.Close()
}

// --- Persistent DB ---

const (
	levelDBCacheMB = 16
	levelDBHandles = 16
)

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	kvStore
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := ethleveldb.New(path, levelDBCacheMB, levelDBHandles, "", false)
	if err != nil {
		return nil, err
	}
	return &LevelDB{kvStore: newKVStore(rawdb.NewDatabase(kv))}, nil
}

// Close flushes the trie database and closes the LevelDB handle.
func (ldb *LevelDB) Close() {
	ldb.trieDB.Close()
	ldb.disk.Close()
}
