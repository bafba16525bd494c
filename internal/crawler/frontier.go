package crawler

// Entry is a URL waiting in the frontier together with its distance from
// the seed.
type Entry struct {
	URL   string
	Depth int
}

// Frontier is the breadth-first work queue of a single job. Push is the only
// way in and enforces the budgets: an entry is admitted only while
// visited+queued < maxPages and its depth does not exceed maxDepth. URLs are
// expected in canonical form.
type Frontier struct {
	queue    []Entry
	queued   map[string]struct{}
	visited  map[string]struct{}
	maxPages int
	maxDepth int
}

// NewFrontier returns an empty frontier with the given budgets.
func NewFrontier(maxPages, maxDepth int) *Frontier {
	return &Frontier{
		queued:   make(map[string]struct{}),
		visited:  make(map[string]struct{}),
		maxPages: maxPages,
		maxDepth: maxDepth,
	}
}

// Push enqueues url at depth and reports whether it was admitted.
func (f *Frontier) Push(url string, depth int) bool {
	if depth < 0 || depth > f.maxDepth {
		return false
	}
	if _, ok := f.visited[url]; ok {
		return false
	}
	if _, ok := f.queued[url]; ok {
		return false
	}
	if len(f.visited)+len(f.queue) >= f.maxPages {
		return false
	}
	f.queue = append(f.queue, Entry{URL: url, Depth: depth})
	f.queued[url] = struct{}{}
	return true
}

// Pop removes the oldest entry. ok is false when the queue is empty.
func (f *Frontier) Pop() (Entry, bool) {
	if len(f.queue) == 0 {
		return Entry{}, false
	}
	e := f.queue[0]
	f.queue[0] = Entry{}
	f.queue = f.queue[1:]
	delete(f.queued, e.URL)
	return e, true
}

// MarkVisited records url as processed. It returns false if it already was.
func (f *Frontier) MarkVisited(url string) bool {
	if _, ok := f.visited[url]; ok {
		return false
	}
	f.visited[url] = struct{}{}
	return true
}

// Visited reports whether url was already processed.
func (f *Frontier) Visited(url string) bool {
	_, ok := f.visited[url]
	return ok
}

// VisitedCount is the number of processed URLs.
func (f *Frontier) VisitedCount() int { return len(f.visited) }

// Len is the number of queued entries.
func (f *Frontier) Len() int { return len(f.queue) }

// MaxDepth returns the depth budget.
func (f *Frontier) MaxDepth() int { return f.maxDepth }

// Exhausted reports whether the traversal must stop: nothing is queued or
// the page budget is spent.
func (f *Frontier) Exhausted() bool {
	return len(f.queue) == 0 || len(f.visited) >= f.maxPages
}
