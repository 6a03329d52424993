package ws

import "sync"

// Roster tracks which local connections have joined which conversations.
// It is pure bookkeeping: the server wires it to the message bus so that a
// conversation is subscribed on the first local join and unsubscribed when
// the last local member leaves.
type Roster struct {
	mu     sync.RWMutex
	byConv map[string]map[string]*Connection // conversation_id -> connection_id -> conn
	byConn map[string]map[string]struct{}    // connection_id -> set of conversation ids
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{
		byConv: make(map[string]map[string]*Connection),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join adds a connection to a conversation's local audience. It returns
// true when this is the first local connection in the conversation, i.e.
// when the caller should subscribe the conversation on the bus.
func (r *Roster) Join(conn *Connection, conversationID string) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	audience, ok := r.byConv[conversationID]
	if !ok {
		audience = make(map[string]*Connection)
		r.byConv[conversationID] = audience
		first = true
	}
	audience[conn.ID] = conn

	joined, ok := r.byConn[conn.ID]
	if !ok {
		joined = make(map[string]struct{})
		r.byConn[conn.ID] = joined
	}
	joined[conversationID] = struct{}{}
	return first
}

// Leave removes a connection from a conversation's local audience. It
// returns true when the conversation has no local connections left.
func (r *Roster) Leave(conn *Connection, conversationID string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(conn.ID, conversationID)
}

// Drop removes a connection from every conversation it had joined and
// returns the conversations left with no local audience.
func (r *Roster) Drop(connID string) (emptied []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conversationID := range r.byConn[connID] {
		if r.leaveLocked(connID, conversationID) {
			emptied = append(emptied, conversationID)
		}
	}
	delete(r.byConn, connID)
	return emptied
}

func (r *Roster) leaveLocked(connID, conversationID string) (empty bool) {
	audience, ok := r.byConv[conversationID]
	if !ok {
		return false
	}
	delete(audience, connID)
	if len(audience) == 0 {
		delete(r.byConv, conversationID)
		empty = true
	}
	if joined, ok := r.byConn[connID]; ok {
		delete(joined, conversationID)
	}
	return empty
}

// Broadcast writes data to every local connection in the conversation.
// Write errors on individual connections are ignored; dead connections are
// reaped by the heartbeat.
func (r *Roster) Broadcast(conversationID string, data []byte) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.byConv[conversationID]))
	for _, conn := range r.byConv[conversationID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.WriteMessage(data)
	}
}

// Audience returns the number of local connections in a conversation.
func (r *Roster) Audience(conversationID string) int {
	r.mu.RLock()
	n := len(r.byConv[conversationID])
	r.mu.RUnlock()
	return n
}
