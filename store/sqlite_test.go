package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/sitewalk/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sitewalk.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndLoadRun(t *testing.T) {
	s := openTestStore(t)

	started := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	summary := models.Summary{
		Seed:        "https://example.com/",
		Succeeded:   2,
		Failed:      1,
		Edges:       2,
		Termination: "exhausted",
		StartedAt:   started,
		FinishedAt:  started.Add(5 * time.Second),
	}
	snap := models.Snapshot{
		Pages: []models.PageRecord{
			{
				ID: 1, URL: "https://example.com/", Title: "Home",
				Dim:       models.Dimensions{Width: 1280, Height: 3000},
				Inventory: models.ElementInventory{Buttons: 2, Links: 4},
				Duration:  1200 * time.Millisecond,
				Timestamp: started.Add(time.Second),
				Status:    models.StatusSuccess,
			},
			{
				ID: 2, URL: "https://example.com/a", Title: "A",
				Timestamp: started.Add(2 * time.Second),
				Status:    models.StatusSuccess,
			},
			{
				ID: 3, URL: "https://example.com/slow",
				Timestamp: started.Add(3 * time.Second),
				Status:    models.StatusFailed,
				ErrorKind: models.ErrCodeTimeoutExhausted,
				Attempts:  3,
			},
		},
		Edges: []models.Edge{
			{Source: 1, Target: "https://example.com/a"},
			{Source: 1, Target: "https://example.com/slow"},
		},
	}

	runID, err := s.SaveRun(summary, snap)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if runID == 0 {
		t.Fatal("SaveRun returned zero id")
	}

	run, err := s.LoadRun(runID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if run == nil {
		t.Fatal("LoadRun returned nil for saved run")
	}
	if run.Seed != summary.Seed || run.Succeeded != 2 || run.Failed != 1 || run.Termination != "exhausted" {
		t.Errorf("run = %+v", run)
	}

	got, err := s.LoadSnapshot(runID)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got.Pages) != 3 || len(got.Edges) != 2 {
		t.Fatalf("snapshot = %d pages / %d edges, want 3/2", len(got.Pages), len(got.Edges))
	}
	if got.Pages[0].URL != "https://example.com/" || got.Pages[0].Dim.Height != 3000 {
		t.Errorf("pages[0] = %+v", got.Pages[0])
	}
	if got.Pages[2].Status != models.StatusFailed || got.Pages[2].Attempts != 3 {
		t.Errorf("pages[2] = %+v", got.Pages[2])
	}
	if got.Edges[0] != (models.Edge{Source: 1, Target: "https://example.com/a"}) {
		t.Errorf("edges[0] = %+v", got.Edges[0])
	}
}

func TestStore_LoadMissingRun(t *testing.T) {
	s := openTestStore(t)

	run, err := s.LoadRun(42)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if run != nil {
		t.Errorf("LoadRun returned %+v for missing run", run)
	}
}

func TestStore_RunsAreIsolated(t *testing.T) {
	s := openTestStore(t)

	snap := models.Snapshot{
		Pages: []models.PageRecord{
			{ID: 1, URL: "https://example.com/", Timestamp: time.Now(), Status: models.StatusSuccess},
		},
	}
	summary := models.Summary{Seed: "https://example.com/", Succeeded: 1, Termination: "exhausted",
		StartedAt: time.Now(), FinishedAt: time.Now()}

	first, err := s.SaveRun(summary, snap)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	second, err := s.SaveRun(summary, snap)
	if err != nil {
		t.Fatalf("SaveRun second: %v", err)
	}
	if first == second {
		t.Fatal("two runs share an id")
	}

	got, err := s.LoadSnapshot(second)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got.Pages) != 1 {
		t.Errorf("second run has %d pages, want 1", len(got.Pages))
	}
}
