package tilecache

// TileEvent is the snapshot-based notification fired on every tile state
// transition while diagnostics are enabled. It carries no live reference
// back into the cache, so an observer cannot mutate cache state from
// inside its callback.
type TileEvent struct {
	Tile TileSnapshot
}

// CacheObserver receives tile lifecycle notifications. OnTileEvent is
// invoked synchronously while the cache holds its lock: implementations
// must not call back into the same Cache, and should do as little work as
// possible (queue the event elsewhere) to avoid stalling other callers.
type CacheObserver interface {
	OnTileEvent(TileEvent)
}

// CacheObserverFunc adapts a function to a CacheObserver.
type CacheObserverFunc func(TileEvent)

func (f CacheObserverFunc) OnTileEvent(e TileEvent) { f(e) }

// SubscriptionID identifies a previously registered CacheObserver so it can
// later be removed with Cache.Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id SubscriptionID
	CacheObserver
}

// observerRegistry is a small mutex-free registry: it is only ever mutated
// and read while the owning Cache's lock is held.
type observerRegistry struct {
	diagnosticsEnabled bool
	nextID             SubscriptionID
	observers          []subscription
}

func (r *observerRegistry) setDiagnostics(enabled bool) {
	r.diagnosticsEnabled = enabled
}

func (r *observerRegistry) subscribe(o CacheObserver) SubscriptionID {
	r.nextID++
	id := r.nextID
	r.observers = append(r.observers, subscription{id: id, CacheObserver: o})
	return id
}

func (r *observerRegistry) unsubscribe(id SubscriptionID) {
	for i, sub := range r.observers {
		if sub.id == id {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *observerRegistry) notify(e TileEvent) {
	if !r.diagnosticsEnabled {
		return
	}
	for _, sub := range r.observers {
		sub.OnTileEvent(e)
	}
}
