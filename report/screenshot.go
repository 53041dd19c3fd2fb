package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/sitewalk/models"
)

// ScreenshotWriter stores full-page screenshots on disk, one PNG per
// visited page, keyed by capture time and a filesystem-safe form of the
// URL.
type ScreenshotWriter struct {
	dir string
}

// NewScreenshotWriter ensures dir exists and returns the writer.
func NewScreenshotWriter(dir string) (*ScreenshotWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, models.NewCrawlError(models.ErrCodeReport, "create screenshot directory", err)
	}
	return &ScreenshotWriter{dir: dir}, nil
}

// Save writes png and returns the stored path.
func (w *ScreenshotWriter) Save(url string, ts time.Time, png []byte) (string, error) {
	name := fmt.Sprintf("%s_%s.png", ts.Format("20060102_150405"), cleanFilename(url))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", models.NewCrawlError(models.ErrCodeReport, "write screenshot", err)
	}
	return path, nil
}

// cleanFilename maps a URL to a filesystem-safe name, capped at 50
// characters. Distinctness comes from the timestamp prefix, not from
// the URL text.
func cleanFilename(url string) string {
	s := strings.TrimPrefix(url, "https://")
	s = strings.TrimPrefix(s, "http://")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}
