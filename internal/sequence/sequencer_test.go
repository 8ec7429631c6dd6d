package sequence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/store/memory"
)

func TestIssueStartsAtConfiguredValue(t *testing.T) {
	seq := New(memory.New(), "", "", 0)

	first, err := seq.Issue(context.Background(), "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first.String() != "KS-10001" {
		t.Fatalf("first = %s, want KS-10001", first)
	}
	second, _ := seq.Issue(context.Background(), "main")
	if second.String() != "KS-10002" {
		t.Fatalf("second = %s, want KS-10002", second)
	}
}

func TestIssueScopesAreIndependent(t *testing.T) {
	seq := New(memory.New(), "main", "R-", 1)
	ctx := context.Background()

	a, _ := seq.Issue(ctx, "till-1")
	b, _ := seq.Issue(ctx, "till-2")
	c, _ := seq.Issue(ctx, "till-1")
	if a.Value != 1 || b.Value != 1 || c.Value != 2 {
		t.Fatalf("got %d/%d/%d", a.Value, b.Value, c.Value)
	}
}

func TestIssueConcurrentYieldsContiguousSet(t *testing.T) {
	seq := New(memory.New(), "main", "KS-", 500)
	const n = 64

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		values []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := seq.Issue(context.Background(), "")
			if err != nil {
				t.Errorf("issue: %v", err)
				return
			}
			mu.Lock()
			values = append(values, num.Value)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	if len(values) != n {
		t.Fatalf("got %d values", len(values))
	}
	for i, v := range values {
		if v != int64(500+i) {
			t.Fatalf("values[%d] = %d, want %d", i, v, 500+i)
		}
	}
}

type failingStore struct{}

func (failingStore) NextReceiptNumber(context.Context, string, domain.ReceiptSequence) (domain.ReceiptNumber, error) {
	return domain.ReceiptNumber{}, errors.New("connection reset")
}

func TestIssueWrapsStoreError(t *testing.T) {
	_, err := New(failingStore{}, "main", "", 0).Issue(context.Background(), "")
	if err == nil || err.Error() != "issue receipt number for main: connection reset" {
		t.Fatalf("unexpected error %v", err)
	}
}
