package offlinecache

// enforceLimit caps the entry count of the role's current cache, removing
// oldest entries first. Enumeration order is the provider's native insertion
// order, so eviction is FIFO, not LRU. Individual delete failures are logged
// and skipped: eviction is best-effort, and a cache briefly over its limit
// is tolerated.
func (e *Engine) enforceLimit(role string) {
	limit := e.limits[role]
	if limit <= 0 {
		return
	}
	name := e.namer.Name(role)
	keys, err := e.cache.Keys(name)
	if err != nil {
		e.log.Error().Err(err).Str("cache", name).Msg("Could not list keys for eviction")
		return
	}
	if len(keys) <= limit {
		return
	}
	for _, key := range keys[:len(keys)-limit] {
		e.log.Trace().Str("cache", name).Str("key", key).Msg("Evicting entry")
		if err := e.cache.Delete(name, key); err != nil {
			e.log.Error().Err(err).Str("cache", name).Str("key", key).Msg("Could not evict entry")
		}
	}
}
