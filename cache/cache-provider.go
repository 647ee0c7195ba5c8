package cache

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// CacheProvider is an interface for a cache provider.
// It stores and retrieves []byte values, which represent HTTP responses,
// grouped into named caches. A named cache is created lazily on first write
// and can be deleted as a whole.
//
// Implementations must be thread-safe!
type CacheProvider interface {
	// Get returns the stored bytes for the given key in the given named cache.
	// It also returns a boolean indicating whether the entry exists.
	Get(name, key string) ([]byte, bool, error)
	// Put stores the given bytes under the given key,
	// creating the named cache if needed.
	// Writing an existing key overwrites it and refreshes its insertion order.
	Put(name, key string, bytes []byte) error
	// Keys returns all keys in the named cache in insertion order, oldest first.
	Keys(name string) ([]string, error)
	// Delete removes a single entry. Deleting a missing entry is not an error.
	Delete(name, key string) error
	// DeleteAll removes the named cache and everything in it.
	DeleteAll(name string) error
	// Names returns the names of all caches that hold at least one entry.
	Names() ([]string, error)
}

type memCache struct {
	order   []string
	entries map[string][]byte
}

type MemCache struct {
	mutex *sync.RWMutex
	db    map[string]*memCache
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[string]*memCache),
	}
}

func (m MemCache) Get(name, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	c, ok := m.db[name]
	if !ok {
		return nil, false, nil
	}
	bytes, ok := c.entries[key]
	return bytes, ok, nil
}

func (m MemCache) Put(name, key string, bytes []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	c, ok := m.db[name]
	if !ok {
		c = &memCache{entries: make(map[string][]byte)}
		m.db[name] = c
	}
	if _, exists := c.entries[key]; exists {
		// overwrites move the key to the back, same as a sqlite re-insert
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.order = append(c.order, key)
	c.entries[key] = bytes
	return nil
}

func (m MemCache) Keys(name string) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	c, ok := m.db[name]
	if !ok {
		return []string{}, nil
	}
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys, nil
}

func (m MemCache) Delete(name, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	c, ok := m.db[name]
	if !ok {
		return nil
	}
	if _, exists := c.entries[key]; !exists {
		return nil
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if len(c.entries) == 0 {
		delete(m.db, name)
	}
	return nil
}

func (m MemCache) DeleteAll(name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, name)
	return nil
}

func (m MemCache) Names() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	names := make([]string, 0, len(m.db))
	for name := range m.db {
		names = append(names, name)
	}
	return names, nil
}

type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteCache(filename string) SQLiteCache {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	// rowid doubles as the insertion order needed for FIFO eviction
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		name TEXT NOT NULL,
		key TEXT NOT NULL,
		bytes BLOB,
		PRIMARY KEY (name, key)
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("CREATE INDEX IF NOT EXISTS name_idx ON cache (name)")
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteCache) Get(name, key string) ([]byte, bool, error) {
	var bytes []byte
	err := s.db.QueryRow("SELECT bytes FROM cache WHERE name = ? AND key = ?", name, key).Scan(&bytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bytes, true, nil
}

func (s SQLiteCache) Put(name, key string, bytes []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	// REPLACE assigns a fresh rowid, moving the entry to the back of the order
	_, err := s.db.Exec("INSERT OR REPLACE INTO cache (name, key, bytes) VALUES (?, ?, ?)",
		name, key, bytes)
	return err
}

func (s SQLiteCache) Keys(name string) ([]string, error) {
	keys := make([]string, 0)
	rows, err := s.db.Query("SELECT key FROM cache WHERE name = ? ORDER BY rowid ASC", name)
	if err != nil {
		return keys, err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s SQLiteCache) Delete(name, key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM cache WHERE name = ? AND key = ?", name, key)
	return err
}

func (s SQLiteCache) DeleteAll(name string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM cache WHERE name = ?", name)
	return err
}

func (s SQLiteCache) Names() ([]string, error) {
	names := make([]string, 0)
	rows, err := s.db.Query("SELECT DISTINCT name FROM cache")
	if err != nil {
		return names, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
