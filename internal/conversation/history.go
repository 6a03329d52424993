package conversation

import "sync"

// DefaultHistorySize is the number of recent messages retained per
// conversation for replay to newly joined clients.
const DefaultHistorySize = 20

// HistoryCache keeps the last N accepted messages per conversation in
// memory so the gateway can replay recent context on join without a store
// round trip. It is goroutine-safe and bounded per conversation by a ring
// buffer; it is a cache only, the store remains the source of truth.
type HistoryCache struct {
	mu    sync.RWMutex
	size  int
	rings map[string]*messageRing // conversationID -> ring
}

type messageRing struct {
	items []Message
	pos   int
	count int
}

// NewHistoryCache creates an empty cache retaining size messages per
// conversation (DefaultHistorySize if size <= 0).
func NewHistoryCache(size int) *HistoryCache {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &HistoryCache{
		size:  size,
		rings: make(map[string]*messageRing),
	}
}

// Add records an accepted message. When the ring is full the oldest
// message is overwritten.
func (h *HistoryCache) Add(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ring, ok := h.rings[msg.ConversationID]
	if !ok {
		ring = &messageRing{items: make([]Message, h.size)}
		h.rings[msg.ConversationID] = ring
	}

	ring.items[ring.pos] = msg
	ring.pos = (ring.pos + 1) % h.size
	if ring.count < h.size {
		ring.count++
	}
}

// Drop removes a single message from a conversation's ring, preserving
// order. Used when a call placeholder is deleted before it scrolls out.
func (h *HistoryCache) Drop(conversationID, messageID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ring, ok := h.rings[conversationID]
	if !ok {
		return
	}

	kept := make([]Message, 0, ring.count)
	start := (ring.pos - ring.count + h.size) % h.size
	for i := 0; i < ring.count; i++ {
		m := ring.items[(start+i)%h.size]
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}

	ring.items = make([]Message, h.size)
	copy(ring.items, kept)
	ring.pos = len(kept) % h.size
	ring.count = len(kept)
}

// Recent returns the conversation's cached messages in chronological order
// (oldest first). Returns an empty slice for an unknown conversation.
func (h *HistoryCache) Recent(conversationID string) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ring, ok := h.rings[conversationID]
	if !ok {
		return []Message{}
	}

	result := make([]Message, ring.count)
	start := (ring.pos - ring.count + h.size) % h.size
	for i := 0; i < ring.count; i++ {
		result[i] = ring.items[(start+i)%h.size]
	}
	return result
}

// Forget drops a conversation's ring entirely.
func (h *HistoryCache) Forget(conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rings, conversationID)
}
