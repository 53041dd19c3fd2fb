// Package graph assembles the site link graph: one node per distinct
// normalized URL, directed edges from a visited page to every same-scope
// link discovered on it.
package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/use-agent/sitewalk/models"
)

// Builder accumulates PageRecords and edges for one crawl run.
// All mutations are serialized internally; safe for concurrent use.
type Builder struct {
	mu      sync.RWMutex
	ids     map[string]models.PageID // normalized URL -> id
	records map[models.PageID]models.PageRecord
	edgeSet map[models.Edge]struct{}
	edges   []models.Edge // insertion order, for stable reporting
	nextID  models.PageID
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		ids:     make(map[string]models.PageID),
		records: make(map[models.PageID]models.PageRecord),
		edgeSet: make(map[models.Edge]struct{}),
		nextID:  1,
	}
}

// pageID assigns a new PageID if url is unseen, else returns the
// existing one. Caller must hold b.mu.
func (b *Builder) pageID(url string) models.PageID {
	if id, ok := b.ids[url]; ok {
		return id
	}
	id := b.nextID
	b.nextID++
	b.ids[url] = id
	return id
}

// RecordPage stores a successful PageRecord for url and returns its
// PageID. Calling it again for the same URL keeps the id stable and
// overwrites the record fields.
func (b *Builder) RecordPage(url, title string, dim models.Dimensions, inv models.ElementInventory, duration time.Duration, screenshot string) models.PageID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.pageID(url)
	b.records[id] = models.PageRecord{
		ID:         id,
		URL:        url,
		Title:      title,
		Dim:        dim,
		Inventory:  inv,
		Duration:   duration,
		Timestamp:  time.Now(),
		Status:     models.StatusSuccess,
		Screenshot: screenshot,
	}
	return id
}

// RecordFailure stores a Failed PageRecord for url. Failed pages keep a
// node in the graph so the report can list them under their own heading.
func (b *Builder) RecordFailure(url, errorKind string, attempts int) models.PageID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.pageID(url)
	b.records[id] = models.PageRecord{
		ID:        id,
		URL:       url,
		Timestamp: time.Now(),
		Status:    models.StatusFailed,
		ErrorKind: errorKind,
		Attempts:  attempts,
	}
	return id
}

// RecordEdge appends a directed edge from a recorded page to a target
// URL. Duplicate (source, target) pairs collapse to one edge. The source
// must already have a PageRecord; the target need not.
func (b *Builder) RecordEdge(source models.PageID, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.records[source]; !ok {
		return fmt.Errorf("graph: edge source %d has no page record", source)
	}

	e := models.Edge{Source: source, Target: target}
	if _, ok := b.edgeSet[e]; ok {
		return nil
	}
	b.edgeSet[e] = struct{}{}
	b.edges = append(b.edges, e)
	return nil
}

// Get returns the PageRecord stored for id, if any.
func (b *Builder) Get(id models.PageID) (models.PageRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.records[id]
	return r, ok
}

// PageIDOf returns the id assigned to url, if any.
func (b *Builder) PageIDOf(url string) (models.PageID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.ids[url]
	return id, ok
}

// Counts returns the number of succeeded and failed records and edges.
func (b *Builder) Counts() (succeeded, failed, edges int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.records {
		if r.Status == models.StatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed, len(b.edges)
}

// Snapshot returns a read-only copy of the graph: pages sorted by id,
// edges in discovery order. Two snapshots without intervening mutation
// are structurally equal.
func (b *Builder) Snapshot() models.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pages := make([]models.PageRecord, 0, len(b.records))
	for _, r := range b.records {
		pages = append(pages, r)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].ID < pages[j].ID })

	edges := make([]models.Edge, len(b.edges))
	copy(edges, b.edges)

	return models.Snapshot{Pages: pages, Edges: edges}
}
