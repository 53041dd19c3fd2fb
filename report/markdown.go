package report

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/nao1215/markdown"

	"github.com/use-agent/sitewalk/models"
)

// MarkdownLog writes the append-only markdown crawl log: one entry per
// page, a cumulative progress section after each visit, and a final
// summary. Events arrive from concurrent workers; writes are serialized.
type MarkdownLog struct {
	mu sync.Mutex
	w  io.Writer
}

// NewMarkdownLog writes the log header and returns the reporter.
func NewMarkdownLog(w io.Writer) (*MarkdownLog, error) {
	l := &MarkdownLog{w: w}

	md := markdown.NewMarkdown(w)
	md.H1("Crawl Progress - Real-time Updates")
	md.PlainText("")
	md.PlainText("*This log updates as pages are crawled*")
	md.PlainText("")
	if err := md.Build(); err != nil {
		return nil, models.NewCrawlError(models.ErrCodeReport, "write crawl log header", err)
	}
	return l, nil
}

func (l *MarkdownLog) PageSucceeded(rec models.PageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	md := markdown.NewMarkdown(l.w)
	md.H2("Page: " + rec.URL)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Title", rec.Title},
			{"Time", rec.Timestamp.Format("2006-01-02 15:04:05")},
			{"Processing Time", fmt.Sprintf("%.2fs", rec.Duration.Seconds())},
			{"Page Dimensions", fmt.Sprintf("%dx%d pixels", rec.Dim.Width, rec.Dim.Height)},
			{"Interactive Elements", strconv.Itoa(rec.Inventory.Total())},
		},
	})
	if rec.Screenshot != "" {
		md.PlainText("")
		md.PlainTextf("**Screenshot**: `%s`", rec.Screenshot)
	}
	md.PlainText("")
	return l.build(md)
}

func (l *MarkdownLog) PageFailed(f models.PageFailure) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	md := markdown.NewMarkdown(l.w)
	md.H2("❌ Failed: " + f.URL)
	md.PlainTextf("**Error**: %s", f.ErrorKind)
	if f.Attempts > 0 {
		md.PlainTextf("**Attempts**: %d", f.Attempts)
	}
	md.PlainText("")
	md.HorizontalRule()
	md.PlainText("")
	return l.build(md)
}

func (l *MarkdownLog) Progress(p models.Progress) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	md := markdown.NewMarkdown(l.w)
	md.HorizontalRule()
	md.PlainText("")
	md.H2("Current Progress - " + time.Now().Format("2006-01-02 15:04:05"))
	md.BulletList(
		fmt.Sprintf("Pages Crawled So Far: %d", p.PagesCrawled),
		"Latest Page: "+p.LatestURL,
		"Latest Title: "+p.LatestTitle,
	)
	md.PlainText("")

	if counts := p.Inventory.Counts(); len(counts) > 0 {
		md.H3("Interactive Elements Found")
		items := make([]string, len(counts))
		for i, c := range counts {
			items[i] = fmt.Sprintf("%s: %d", c.Category, c.Count)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if tree := asciiTree(p.Graph); tree != "" {
		md.H3("Site Tree")
		md.CodeBlocks(markdown.SyntaxHighlightText, tree)
		md.PlainText("")
	}
	if chart := mermaidFlowchart(p.Graph); chart != "" {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart)
		md.PlainText("")
	}
	return l.build(md)
}

func (l *MarkdownLog) RunFinished(s models.Summary) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	md := markdown.NewMarkdown(l.w)
	md.H2("Crawl Summary")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + s.Seed + "`"},
			{"Pages Succeeded", strconv.Itoa(s.Succeeded)},
			{"Pages Failed", strconv.Itoa(s.Failed)},
			{"Edges", strconv.Itoa(s.Edges)},
			{"Duration", s.Duration.Round(time.Millisecond).String()},
			{"Termination", s.Termination},
		},
	})
	md.PlainText("")
	md.HorizontalRule()
	md.PlainTextf("*Log finished at %s*", s.FinishedAt.Format("2006-01-02 15:04:05"))
	return l.build(md)
}

func (l *MarkdownLog) build(md *markdown.Markdown) error {
	if err := md.Build(); err != nil {
		return models.NewCrawlError(models.ErrCodeReport, "write crawl log entry", err)
	}
	return nil
}
