// Package frontier holds the queue of pending URLs plus the visited and
// in-flight bookkeeping that enforces at-most-once visitation.
package frontier

import "sync"

// Entry is a queued URL with its BFS depth from the seed.
type Entry struct {
	URL   string
	Depth int
}

// Stats is a point-in-time view of frontier occupancy.
type Stats struct {
	Queued   int `json:"queued"`
	InFlight int `json:"in_flight"`
	Visited  int `json:"visited"`
}

// Frontier is a FIFO queue of normalized URLs. A URL is popped at most
// once per run: once claimed it moves to in-flight and then to visited,
// whatever the fetch outcome, and is never re-queued. Safe for
// concurrent use by multiple fetch workers.
type Frontier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	accept   func(url string) bool
	queue    []Entry
	queued   map[string]struct{}
	inFlight map[string]struct{}
	visited  map[string]struct{}
	closed   bool
}

// New creates an empty Frontier. accept, if non-nil, gates every Offer;
// URLs it rejects are dropped silently (scope filtering).
func New(accept func(url string) bool) *Frontier {
	f := &Frontier{
		accept:   accept,
		queued:   make(map[string]struct{}),
		inFlight: make(map[string]struct{}),
		visited:  make(map[string]struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Offer enqueues url unless it is already queued, in-flight, visited,
// rejected by the accept gate, or the frontier is closed. Returns true
// only when the URL was actually added.
func (f *Frontier) Offer(url string, depth int) bool {
	if f.accept != nil && !f.accept(url) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if _, ok := f.visited[url]; ok {
		return false
	}
	if _, ok := f.inFlight[url]; ok {
		return false
	}
	if _, ok := f.queued[url]; ok {
		return false
	}

	f.queued[url] = struct{}{}
	f.queue = append(f.queue, Entry{URL: url, Depth: depth})
	f.cond.Signal()
	return true
}

// Next pops the oldest queued entry and claims it as in-flight.
// It blocks while the queue is empty but other workers still hold
// in-flight URLs that may produce new links. Returns ok=false when the
// frontier is exhausted (nothing queued, nothing in flight) or closed;
// a closed frontier refuses further pops so in-flight work can drain.
func (f *Frontier) Next() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed {
			return Entry{}, false
		}
		if len(f.queue) > 0 {
			e := f.queue[0]
			f.queue = f.queue[1:]
			delete(f.queued, e.URL)
			f.inFlight[e.URL] = struct{}{}
			return e, true
		}
		if len(f.inFlight) == 0 {
			return Entry{}, false
		}
		f.cond.Wait()
	}
}

// MarkVisited moves url from in-flight to visited, regardless of fetch
// outcome. A page that failed after all retries still counts as visited
// and is never retried across frontier cycles.
func (f *Frontier) MarkVisited(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.inFlight[url]; !ok {
		return
	}
	delete(f.inFlight, url)
	f.visited[url] = struct{}{}

	// The last in-flight URL finishing may exhaust the frontier; wake
	// blocked workers so they can observe it.
	f.cond.Broadcast()
}

// Close stops the frontier: no further offers are accepted and blocked
// or future Next calls return ok=false immediately. Used when the page
// ceiling is reached or the run is canceled.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// Seen reports whether url has already been queued, claimed, or visited.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[url]; ok {
		return true
	}
	if _, ok := f.inFlight[url]; ok {
		return true
	}
	_, ok := f.queued[url]
	return ok
}

// Stats returns current occupancy counts.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Queued:   len(f.queue),
		InFlight: len(f.inFlight),
		Visited:  len(f.visited),
	}
}
