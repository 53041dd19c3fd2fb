package models

import "time"

// PageID is the stable per-run identifier assigned to a distinct
// normalized URL at first discovery. It is the graph node key; display
// formatting never derives identity from URL text.
type PageID int

// PageStatus marks the terminal outcome of a fetch attempt.
type PageStatus string

const (
	StatusSuccess PageStatus = "success"
	StatusFailed  PageStatus = "failed"
)

// Dimensions holds the rendered page size in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PageRecord is created when a fetch attempt terminates, success or
// exhausted retries, and is immutable thereafter.
type PageRecord struct {
	ID         PageID           `json:"id"`
	URL        string           `json:"url"`
	Title      string           `json:"title,omitempty"`
	Dim        Dimensions       `json:"dimensions"`
	Inventory  ElementInventory `json:"inventory"`
	Duration   time.Duration    `json:"duration"`
	Timestamp  time.Time        `json:"timestamp"`
	Status     PageStatus       `json:"status"`
	ErrorKind  string           `json:"error_kind,omitempty"`
	Attempts   int              `json:"attempts,omitempty"`
	Screenshot string           `json:"screenshot,omitempty"`
}

// Edge is a directed link recorded at discovery time. The target is a
// URL, not a PageID: it may resolve to a record later or stay unvisited
// when depth or page ceilings cut the crawl short.
type Edge struct {
	Source PageID `json:"source"`
	Target string `json:"target"`
}

// Snapshot is a read-only copy of the crawl graph used for reporting.
type Snapshot struct {
	Pages []PageRecord `json:"pages"`
	Edges []Edge       `json:"edges"`
}

// ElementInventory holds categorized counts of interactive elements
// found on a rendered page. The categories are fixed; the renderer is
// responsible for populating them.
type ElementInventory struct {
	Buttons     int `json:"buttons"`
	Links       int `json:"links"`
	Inputs      int `json:"inputs"`
	Selects     int `json:"selects"`
	Checkboxes  int `json:"checkboxes"`
	Radios      int `json:"radios"`
	Clickables  int `json:"clickables"`
	Iframes     int `json:"iframes"`
	Tabs        int `json:"tabs"`
	Menus       int `json:"menus"`
	Tooltips    int `json:"tooltips"`
	Modals      int `json:"modals"`
	Expandables int `json:"expandables"`
}

// ElementCount pairs a category label with its count for ordered display.
type ElementCount struct {
	Category string
	Count    int
}

// Counts returns the non-zero categories in a fixed display order.
func (inv ElementInventory) Counts() []ElementCount {
	all := []ElementCount{
		{"buttons", inv.Buttons},
		{"links", inv.Links},
		{"inputs", inv.Inputs},
		{"selects", inv.Selects},
		{"checkboxes", inv.Checkboxes},
		{"radios", inv.Radios},
		{"clickables", inv.Clickables},
		{"iframes", inv.Iframes},
		{"tabs", inv.Tabs},
		{"menus", inv.Menus},
		{"tooltips", inv.Tooltips},
		{"modals", inv.Modals},
		{"expandables", inv.Expandables},
	}
	out := make([]ElementCount, 0, len(all))
	for _, c := range all {
		if c.Count > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Total returns the sum across all categories.
func (inv ElementInventory) Total() int {
	total := 0
	for _, c := range inv.Counts() {
		total += c.Count
	}
	return total
}
