package cache

import (
	"container/list"

	"github.com/tonelab/supertonic/tts/audio"
)

// memoryTier is an LRU map of uncompressed buffers bounded by total bytes.
// Not safe for concurrent use; AudioCache holds the lock.
type memoryTier struct {
	capacity int64
	size     int64
	order    *list.List // front = most recent
	items    map[string]*list.Element
}

type memoryEntry struct {
	key string
	buf audio.Buffer
}

func newMemoryTier(capacity int64) *memoryTier {
	return &memoryTier{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (m *memoryTier) get(key string) (audio.Buffer, bool) {
	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(el)
	return el.Value.(*memoryEntry).buf, true
}

func (m *memoryTier) put(key string, buf audio.Buffer) {
	if int64(len(buf)) > m.capacity {
		return
	}
	if el, ok := m.items[key]; ok {
		m.size -= int64(len(el.Value.(*memoryEntry).buf))
		m.order.Remove(el)
		delete(m.items, key)
	}
	for m.size+int64(len(buf)) > m.capacity && m.order.Len() > 0 {
		m.evictOldest()
	}
	el := m.order.PushFront(&memoryEntry{key: key, buf: buf})
	m.items[key] = el
	m.size += int64(len(buf))
}

func (m *memoryTier) delete(key string) {
	if el, ok := m.items[key]; ok {
		m.size -= int64(len(el.Value.(*memoryEntry).buf))
		m.order.Remove(el)
		delete(m.items, key)
	}
}

func (m *memoryTier) evictOldest() {
	el := m.order.Back()
	if el == nil {
		return
	}
	entry := el.Value.(*memoryEntry)
	m.size -= int64(len(entry.buf))
	m.order.Remove(el)
	delete(m.items, entry.key)
}
