package duck

import (
	"context"
	"sync"

	"github.com/bruin-data/historian/pkg/ansisql"
)

// databaseLocks maps database paths to their corresponding locks to prevent concurrent access
var databaseLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: make(map[string]*sync.Mutex),
}

func databaseLock(path string) *sync.Mutex {
	databaseLocks.Lock()
	defer databaseLocks.Unlock()

	lock, ok := databaseLocks.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		databaseLocks.locks[path] = lock
	}
	return lock
}

// this allows us to share locks between different components to the same database
func LockDatabase(path string) {
	databaseLock(path).Lock()
}

func UnlockDatabase(path string) {
	databaseLock(path).Unlock()
}

// lockingConnector holds the database lock for the lifetime of each transaction, DuckDB files accept a single writer.
type lockingConnector struct {
	inner ansisql.Connector
	path  string
}

//nolint:ireturn
func (c *lockingConnector) Begin(ctx context.Context) (ansisql.Conn, error) {
	LockDatabase(c.path)
	conn, err := c.inner.Begin(ctx)
	if err != nil {
		UnlockDatabase(c.path)
		return nil, err
	}
	return &lockedConn{Conn: conn, path: c.path}, nil
}

func (c *lockingConnector) Close() error {
	return c.inner.Close()
}

type lockedConn struct {
	ansisql.Conn
	path     string
	released sync.Once
}

func (c *lockedConn) release() {
	c.released.Do(func() { UnlockDatabase(c.path) })
}

func (c *lockedConn) Commit(ctx context.Context) error {
	defer c.release()
	return c.Conn.Commit(ctx)
}

func (c *lockedConn) Rollback(ctx context.Context) error {
	defer c.release()
	return c.Conn.Rollback(ctx)
}
