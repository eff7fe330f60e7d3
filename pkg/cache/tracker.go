package cache

import "container/list"

// recencyList orders keys by access. The most recently used key is at the
// front, the least recently used at the back.
type recencyList struct {
	l *list.List
}

func newRecencyList() *recencyList {
	return &recencyList{l: list.New()}
}

// add pushes key to the front and returns its element.
func (r *recencyList) add(key string) *list.Element {
	return r.l.PushFront(key)
}

// touch marks elem as most recently used.
func (r *recencyList) touch(elem *list.Element) {
	if elem != nil {
		r.l.MoveToFront(elem)
	}
}

func (r *recencyList) remove(elem *list.Element) {
	if elem != nil {
		r.l.Remove(elem)
	}
}

// ranks returns each key's distance from the back of the list:
// 0 is the least recently used key.
func (r *recencyList) ranks() map[string]int {
	ranks := make(map[string]int, r.l.Len())
	i := 0
	for elem := r.l.Back(); elem != nil; elem = elem.Prev() {
		ranks[elem.Value.(string)] = i
		i++
	}
	return ranks
}

func (r *recencyList) reset() {
	r.l.Init()
}

// frequencyTable counts accesses per key. Unlike entry.accessCount it
// survives replacement of a key until the next maintenance tick.
type frequencyTable struct {
	counts map[string]int64
}

func newFrequencyTable() *frequencyTable {
	return &frequencyTable{counts: make(map[string]int64)}
}

func (f *frequencyTable) inc(key string) {
	f.counts[key]++
}

// seed sets the count for key, used when rebuilding from a snapshot.
func (f *frequencyTable) seed(key string, n int64) {
	f.counts[key] = n
}

func (f *frequencyTable) get(key string) int64 {
	return f.counts[key]
}

func (f *frequencyTable) forget(key string) {
	delete(f.counts, key)
}

// rebase starts a new maintenance window: every counter is reset to the
// current access count of its key, so history carried over a replacement
// lasts until the next tick. Keys for which current reports false are dropped.
func (f *frequencyTable) rebase(current func(key string) (int64, bool)) {
	for k := range f.counts {
		n, ok := current(k)
		if !ok {
			delete(f.counts, k)
			continue
		}
		f.counts[k] = n
	}
}

func (f *frequencyTable) reset() {
	f.counts = make(map[string]int64)
}
