package cache

// entryStore maps keys to entries and keeps the occupancy counters and the
// tag index in step with every structural change. It holds no policy.
// Caller must hold the engine mutex.
type entryStore[V any] struct {
	items map[string]*entry[V]
	tags  map[string]map[string]struct{}
	bytes int64
}

func newEntryStore[V any]() *entryStore[V] {
	return &entryStore[V]{
		items: make(map[string]*entry[V]),
		tags:  make(map[string]map[string]struct{}),
	}
}

// put inserts e, replacing and returning any previous entry under the same key.
func (s *entryStore[V]) put(e *entry[V]) (*entry[V], bool) {
	prev, replaced := s.remove(e.key)

	s.items[e.key] = e
	s.bytes += e.sizeBytes
	for _, tag := range e.tags {
		keys, ok := s.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tags[tag] = keys
		}
		keys[e.key] = struct{}{}
	}

	return prev, replaced
}

// take returns the entry stored under key.
func (s *entryStore[V]) take(key string) (*entry[V], bool) {
	e, ok := s.items[key]
	return e, ok
}

// remove deletes key and returns the removed entry.
func (s *entryStore[V]) remove(key string) (*entry[V], bool) {
	e, ok := s.items[key]
	if !ok {
		return nil, false
	}

	delete(s.items, key)
	s.bytes -= e.sizeBytes
	for _, tag := range e.tags {
		if keys, ok := s.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.tags, tag)
			}
		}
	}

	return e, true
}

// keysWithTag returns the keys currently indexed under tag.
func (s *entryStore[V]) keysWithTag(tag string) []string {
	keys := make([]string, 0, len(s.tags[tag]))
	for k := range s.tags[tag] {
		keys = append(keys, k)
	}
	return keys
}

// each calls fn for every entry until fn returns false.
// fn must not mutate the store.
func (s *entryStore[V]) each(fn func(*entry[V]) bool) {
	for _, e := range s.items {
		if !fn(e) {
			return
		}
	}
}

func (s *entryStore[V]) len() int {
	return len(s.items)
}

func (s *entryStore[V]) size() int64 {
	return s.bytes
}

// reset drops every entry and returns what was stored.
func (s *entryStore[V]) reset() map[string]*entry[V] {
	old := s.items
	s.items = make(map[string]*entry[V])
	s.tags = make(map[string]map[string]struct{})
	s.bytes = 0
	return old
}
