package frontier

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestOffer_Deduplicates(t *testing.T) {
	f := New(nil)

	if !f.Offer("https://example.com/a", 1) {
		t.Fatal("first offer should be accepted")
	}
	if f.Offer("https://example.com/a", 1) {
		t.Error("duplicate offer should be a no-op")
	}
	if got := f.Stats().Queued; got != 1 {
		t.Errorf("queued = %d, want 1", got)
	}
}

func TestOffer_ScopeGate(t *testing.T) {
	f := New(func(url string) bool {
		return strings.HasPrefix(url, "https://example.com/")
	})

	if !f.Offer("https://example.com/a", 0) {
		t.Error("in-scope URL should be accepted")
	}
	if f.Offer("https://other.com/x", 0) {
		t.Error("out-of-scope URL should be rejected")
	}
	if got := f.Stats().Queued; got != 1 {
		t.Errorf("queued = %d, want 1", got)
	}
}

func TestNext_FIFOAndClaim(t *testing.T) {
	f := New(nil)
	f.Offer("https://example.com/a", 0)
	f.Offer("https://example.com/b", 1)

	e1, ok := f.Next()
	if !ok || e1.URL != "https://example.com/a" || e1.Depth != 0 {
		t.Fatalf("first pop = %+v, ok=%v; want /a at depth 0", e1, ok)
	}
	e2, ok := f.Next()
	if !ok || e2.URL != "https://example.com/b" {
		t.Fatalf("second pop = %+v, ok=%v; want /b", e2, ok)
	}

	// Both claimed URLs are in flight and refuse re-offers.
	if f.Offer(e1.URL, 2) {
		t.Error("in-flight URL should not be re-queued")
	}

	st := f.Stats()
	if st.InFlight != 2 || st.Queued != 0 {
		t.Errorf("stats = %+v, want 2 in flight, 0 queued", st)
	}
}

func TestMarkVisited_NeverRequeued(t *testing.T) {
	f := New(nil)
	f.Offer("https://example.com/a", 0)

	e, _ := f.Next()
	f.MarkVisited(e.URL)

	if f.Offer(e.URL, 1) {
		t.Error("visited URL should never be re-queued")
	}
	if _, ok := f.Next(); ok {
		t.Error("frontier should be exhausted")
	}
	if got := f.Stats().Visited; got != 1 {
		t.Errorf("visited = %d, want 1", got)
	}
}

func TestNext_BlocksWhileInFlight(t *testing.T) {
	f := New(nil)
	f.Offer("https://example.com/a", 0)

	e, _ := f.Next()

	popped := make(chan bool, 1)
	go func() {
		_, ok := f.Next()
		popped <- ok
	}()

	// The worker must block: queue is empty but /a is still in flight
	// and could discover new links.
	select {
	case <-popped:
		t.Fatal("Next returned while another URL was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	// Finishing /a with a new discovery unblocks the waiter.
	f.Offer("https://example.com/b", 1)
	f.MarkVisited(e.URL)

	select {
	case ok := <-popped:
		if !ok {
			t.Error("Next should have returned the newly offered URL")
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up")
	}
}

func TestNext_ExhaustionWakesAllWorkers(t *testing.T) {
	f := New(nil)
	f.Offer("https://example.com/a", 0)

	e, _ := f.Next()

	var wg sync.WaitGroup
	results := make(chan bool, 3)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := f.Next()
			results <- ok
		}()
	}

	// Last in-flight URL finishes without discoveries: exhaustion.
	f.MarkVisited(e.URL)
	wg.Wait()
	close(results)

	for ok := range results {
		if ok {
			t.Error("worker should observe exhaustion")
		}
	}
}

func TestClose_StopsPopsAndOffers(t *testing.T) {
	f := New(nil)
	f.Offer("https://example.com/a", 0)
	f.Close()

	if _, ok := f.Next(); ok {
		t.Error("closed frontier must not issue pops")
	}
	if f.Offer("https://example.com/b", 0) {
		t.Error("closed frontier must not accept offers")
	}
}

func TestConcurrentWorkers_AtMostOnceClaim(t *testing.T) {
	f := New(nil)
	const n = 200
	urls := make([]string, n)
	for i := range n {
		urls[i] = "https://example.com/p" + string(rune('a'+i%26)) + "/" + string(rune('0'+i%10)) + "/" + strings.Repeat("x", i%7)
	}
	seen := make(map[string]struct{}, n)
	for _, u := range urls {
		seen[u] = struct{}{}
	}

	for u := range seen {
		f.Offer(u, 0)
	}
	total := f.Stats().Queued

	var mu sync.Mutex
	claimed := make(map[string]int)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, ok := f.Next()
				if !ok {
					return
				}
				mu.Lock()
				claimed[e.URL]++
				mu.Unlock()
				f.MarkVisited(e.URL)
			}
		}()
	}
	wg.Wait()

	if len(claimed) != total {
		t.Errorf("claimed %d distinct URLs, want %d", len(claimed), total)
	}
	for u, c := range claimed {
		if c != 1 {
			t.Errorf("URL %q claimed %d times", u, c)
		}
	}
	if got := f.Stats().Visited; got != total {
		t.Errorf("visited = %d, want %d", got, total)
	}
}
