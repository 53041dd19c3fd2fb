package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/use-agent/sitewalk/models"
)

const (
	// Children per node in the rendered views. Full fan-out makes large
	// sites unreadable; the complete edge list lives in the snapshot.
	maxTreeChildren    = 5
	maxMermaidChildren = 3
)

// asciiTree renders the link graph as an indented tree rooted at the
// first recorded page. Cycles are marked instead of followed.
func asciiTree(snap models.Snapshot) string {
	if len(snap.Pages) == 0 {
		return ""
	}

	byURL := make(map[string]models.PageID, len(snap.Pages))
	for _, p := range snap.Pages {
		byURL[p.URL] = p.ID
	}
	children := childLinks(snap)

	var b strings.Builder
	var walk func(url string, depth int, seen map[string]bool)
	walk = func(url string, depth int, seen map[string]bool) {
		indent := strings.Repeat("    ", depth)
		if seen[url] {
			fmt.Fprintf(&b, "%s└── %s (cyclic)\n", indent, shortURL(url, 50))
			return
		}
		seen[url] = true
		fmt.Fprintf(&b, "%s└── %s\n", indent, shortURL(url, 50))

		id, visited := byURL[url]
		if !visited {
			return
		}
		links := children[id]
		if len(links) > maxTreeChildren {
			links = links[:maxTreeChildren]
		}
		for _, link := range links {
			branch := make(map[string]bool, len(seen))
			for k := range seen {
				branch[k] = true
			}
			walk(link, depth+1, branch)
		}
	}

	walk(snap.Pages[0].URL, 0, make(map[string]bool))
	return b.String()
}

// mermaidFlowchart renders the link graph as a Mermaid flowchart body.
func mermaidFlowchart(snap models.Snapshot) string {
	if len(snap.Pages) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("flowchart TD\n")

	byURL := make(map[string]models.PageID, len(snap.Pages))
	for _, p := range snap.Pages {
		byURL[p.URL] = p.ID
		fmt.Fprintf(&b, "    page_%d[\"%s\"]\n", p.ID, shortURL(p.URL, 20))
	}

	// Unvisited edge targets become leaf nodes past the recorded ids.
	next := models.PageID(0)
	for _, p := range snap.Pages {
		if p.ID > next {
			next = p.ID
		}
	}
	perSource := make(map[models.PageID]int)
	written := make(map[string]bool)
	for _, e := range snap.Edges {
		if perSource[e.Source] >= maxMermaidChildren {
			continue
		}
		perSource[e.Source]++

		target, ok := byURL[e.Target]
		if !ok {
			next++
			target = next
			byURL[e.Target] = target
			fmt.Fprintf(&b, "    page_%d[\"%s\"]\n", target, shortURL(e.Target, 20))
		}

		edge := fmt.Sprintf("    page_%d-->page_%d\n", e.Source, target)
		if written[edge] {
			continue
		}
		written[edge] = true
		b.WriteString(edge)
	}
	return b.String()
}

// childLinks groups edge targets by source page, sorted for stable output.
func childLinks(snap models.Snapshot) map[models.PageID][]string {
	children := make(map[models.PageID][]string)
	for _, e := range snap.Edges {
		children[e.Source] = append(children[e.Source], e.Target)
	}
	for id := range children {
		sort.Strings(children[id])
	}
	return children
}

// shortURL strips the scheme and truncates for display.
func shortURL(url string, max int) string {
	s := strings.TrimPrefix(url, "https://")
	s = strings.TrimPrefix(s, "http://")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
