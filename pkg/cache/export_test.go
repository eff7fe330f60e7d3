package cache

// Maintain runs one maintenance tick synchronously.
func (e *Engine[V]) Maintain() (expired, evicted int) {
	return e.maintain()
}
