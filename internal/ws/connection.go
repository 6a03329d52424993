package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection represents a single WebSocket client connection with its
// associated identity and a write mutex for serializing outbound frames.
type Connection struct {
	ID          string     // connection ID (UUID)
	UserID      string     // authenticated user this connection belongs to
	DisplayName string     // user's display name, carried on sent messages
	Conn        net.Conn   // underlying TCP connection
	Fd          int        // file descriptor for epoll lookups
	CreatedAt   time.Time  // when the connection was established
	LastPing    time.Time  // last heartbeat received from the client
	writeMu     sync.Mutex // serializes writes to this connection
	processing  int32      // atomic flag: 0 = idle, 1 = being read by handleConn
}

// WriteMessage sends a WebSocket text frame to this connection. The write
// mutex ensures that concurrent goroutines do not interleave frame bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

// ConnectionManager is a thread-safe registry that maps connection IDs and
// file descriptors to their respective Connection objects. It supports O(1)
// lookups by both connection ID and fd, plus user-keyed lookups for
// presence decisions.
type ConnectionManager struct {
	mu     sync.RWMutex
	byID   map[string]*Connection         // connection_id -> Connection
	byFd   map[int]*Connection            // fd -> Connection
	byUser map[string]map[string]struct{} // user_id -> set of connection ids
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID:   make(map[string]*Connection),
		byFd:   make(map[int]*Connection),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Add registers a new connection in the ID, fd and user lookup maps.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.byFd[conn.Fd] = conn
	if conn.UserID != "" {
		set, ok := cm.byUser[conn.UserID]
		if !ok {
			set = make(map[string]struct{})
			cm.byUser[conn.UserID] = set
		}
		set[conn.ID] = struct{}{}
	}
	cm.mu.Unlock()
}

// Remove removes a connection by connection ID, closes the underlying
// network connection, and removes it from the lookup maps. The first result
// reports whether the connection was found; the second whether this was the
// user's last live connection on this server.
func (cm *ConnectionManager) Remove(id string) (removed, lastForUser bool) {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		delete(cm.byFd, conn.Fd)
		if conn.UserID != "" {
			set := cm.byUser[conn.UserID]
			delete(set, id)
			if len(set) == 0 {
				delete(cm.byUser, conn.UserID)
				lastForUser = true
			}
		}
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok, lastForUser
}

// Get returns the connection for the given connection ID, or nil if not found.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// GetByFd returns the connection for the given file descriptor, or nil if
// not found.
func (cm *ConnectionManager) GetByFd(fd int) *Connection {
	cm.mu.RLock()
	conn := cm.byFd[fd]
	cm.mu.RUnlock()
	return conn
}

// GetByConn returns the connection for the given net.Conn by extracting
// its file descriptor. Returns nil if not found.
func (cm *ConnectionManager) GetByConn(c net.Conn) *Connection {
	fd := socketFD(c)
	return cm.GetByFd(fd)
}

// ByUser returns all live connections belonging to the given user.
func (cm *ConnectionManager) ByUser(userID string) []*Connection {
	cm.mu.RLock()
	ids := cm.byUser[userID]
	conns := make([]*Connection, 0, len(ids))
	for id := range ids {
		if conn, ok := cm.byID[id]; ok {
			conns = append(conns, conn)
		}
	}
	cm.mu.RUnlock()
	return conns
}

// Count returns the current number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections. The returned slice is
// safe to iterate without holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
