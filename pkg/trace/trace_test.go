package trace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSpanNesting(t *testing.T) {
	tc := Begin()

	if tc.TraceID() == "" {
		t.Fatal("empty trace ID")
	}
	if tc.Depth() != 0 {
		t.Fatalf("Depth = %d, want 0", tc.Depth())
	}

	outer := tc.BeginSpan("handler")
	inner := tc.BeginSpan("query")

	if inner.ParentID != outer.ID {
		t.Errorf("inner.ParentID = %q, want %q", inner.ParentID, outer.ID)
	}
	if tc.Current() != inner {
		t.Error("Current() is not the innermost span")
	}
	if tc.Depth() != 2 {
		t.Errorf("Depth = %d, want 2", tc.Depth())
	}

	tc.EndSpan(inner, nil)
	if inner.Status != StatusOK {
		t.Errorf("inner.Status = %q, want %q", inner.Status, StatusOK)
	}
	if tc.Current() != outer {
		t.Error("Current() did not pop back to outer span")
	}

	tc.EndSpan(outer, errors.New("boom"))
	if outer.Status != StatusError {
		t.Errorf("outer.Status = %q, want %q", outer.Status, StatusError)
	}
	if tc.Depth() != 0 {
		t.Errorf("Depth = %d after all ends, want 0", tc.Depth())
	}
}

func TestOutOfOrderEndRepairs(t *testing.T) {
	tc := Begin()

	outer := tc.BeginSpan("outer")
	mid := tc.BeginSpan("mid")
	inner := tc.BeginSpan("inner")

	// Closing outer first abandons everything above it.
	tc.EndSpan(outer, nil)

	if mid.Status != StatusAbandoned {
		t.Errorf("mid.Status = %q, want %q", mid.Status, StatusAbandoned)
	}
	if inner.Status != StatusAbandoned {
		t.Errorf("inner.Status = %q, want %q", inner.Status, StatusAbandoned)
	}
	if outer.Status != StatusOK {
		t.Errorf("outer.Status = %q, want %q", outer.Status, StatusOK)
	}
	if tc.Depth() != 0 {
		t.Errorf("Depth = %d, want 0", tc.Depth())
	}
}

func TestUnknownSpanDrainsStack(t *testing.T) {
	tc := Begin()
	open := tc.BeginSpan("open")

	stray := &Span{ID: "stray", Name: "stray", Start: time.Now()}
	tc.EndSpan(stray, nil)

	if open.Status != StatusAbandoned {
		t.Errorf("open.Status = %q, want %q", open.Status, StatusAbandoned)
	}
	if stray.Status != StatusOK {
		t.Errorf("stray.Status = %q, want %q", stray.Status, StatusOK)
	}
	if tc.Depth() != 0 {
		t.Errorf("Depth = %d, want 0", tc.Depth())
	}
}

func TestStrictModePanics(t *testing.T) {
	tc := Begin()
	tc.SetStrict(true)

	outer := tc.BeginSpan("outer")
	tc.BeginSpan("inner")

	defer func() {
		if recover() == nil {
			t.Error("out-of-order EndSpan did not panic in strict mode")
		}
	}()
	tc.EndSpan(outer, nil)
}

func TestEndReturnsOrphans(t *testing.T) {
	tc := Begin()
	a := tc.BeginSpan("a")
	b := tc.BeginSpan("b")

	orphans := tc.End()
	if len(orphans) != 2 {
		t.Fatalf("len(orphans) = %d, want 2", len(orphans))
	}
	// Innermost first.
	if orphans[0] != b || orphans[1] != a {
		t.Error("orphans not returned innermost-first")
	}
	for _, s := range orphans {
		if s.Status != StatusAbandoned {
			t.Errorf("orphan %q status = %q, want %q", s.Name, s.Status, StatusAbandoned)
		}
	}

	if tc.End() != nil {
		t.Error("second End returned orphans from an empty stack")
	}
}

func TestFork(t *testing.T) {
	tc := Begin()
	parent := tc.BeginSpan("handler")

	f := tc.Fork("background")

	if f.TraceID() != tc.TraceID() {
		t.Error("fork did not keep the trace ID")
	}
	root := f.Current()
	if root == nil || root.Name != "background" {
		t.Fatalf("fork root = %+v, want span named background", root)
	}
	if root.ParentID != "" {
		t.Errorf("fork root parent = %q, want none", root.ParentID)
	}
	if root.ID == parent.ID {
		t.Error("fork root reused the origin's span ID")
	}

	// Closing the fork does not touch the origin stack.
	f.End()
	if tc.Depth() != 1 {
		t.Errorf("origin Depth = %d after fork End, want 1", tc.Depth())
	}
}

func TestQueryStats(t *testing.T) {
	tc := Begin()
	tc.RecordQuery(10 * time.Millisecond)
	tc.RecordQuery(15 * time.Millisecond)

	count, total := tc.QueryStats()
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if total != 25*time.Millisecond {
		t.Errorf("total = %v, want 25ms", total)
	}
}

func TestContextCarrier(t *testing.T) {
	tc := Begin()
	ctx := NewContext(context.Background(), tc)

	got, ok := FromContext(ctx)
	if !ok || got != tc {
		t.Error("FromContext did not return the stored trace context")
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext reported a trace on a bare context")
	}
}

func TestConcurrentTraces(t *testing.T) {
	const workers = 50

	type result struct {
		traceID string
		spans   [3]*Span
	}
	results := make([]result, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tc := Begin()
			a := tc.BeginSpan("outer")
			b := tc.BeginSpan("mid")
			c := tc.BeginSpan("inner")
			tc.EndSpan(c, nil)
			tc.EndSpan(b, nil)
			tc.EndSpan(a, nil)
			if orphans := tc.End(); len(orphans) != 0 {
				t.Errorf("worker %d: %d orphans, want 0", i, len(orphans))
			}
			results[i] = result{traceID: tc.TraceID(), spans: [3]*Span{a, b, c}}
		}(i)
	}
	wg.Wait()

	traceIDs := make(map[string]bool, workers)
	spanOwner := make(map[string]int, workers*3)
	for i, res := range results {
		if traceIDs[res.traceID] {
			t.Fatalf("trace ID %s assigned to more than one trace", res.traceID)
		}
		traceIDs[res.traceID] = true

		a, b, c := res.spans[0], res.spans[1], res.spans[2]
		if a.ParentID != "" {
			t.Errorf("worker %d: root parent = %q, want none", i, a.ParentID)
		}
		if b.ParentID != a.ID || c.ParentID != b.ID {
			t.Errorf("worker %d: span tree mis-nested: %q->%q, %q->%q",
				i, b.ParentID, a.ID, c.ParentID, b.ID)
		}
		for _, s := range res.spans {
			if s.Status != StatusOK {
				t.Errorf("worker %d: span %s status = %q, want ok", i, s.Name, s.Status)
			}
			spanOwner[s.ID] = i
		}
	}

	// No span may claim a parent from another trace.
	for i, res := range results {
		for _, s := range res.spans {
			if s.ParentID == "" {
				continue
			}
			if owner, ok := spanOwner[s.ParentID]; !ok || owner != i {
				t.Errorf("worker %d: span %s has parent %q from trace %d", i, s.Name, s.ParentID, owner)
			}
		}
	}
}

func TestConcurrentForks(t *testing.T) {
	tc := Begin()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := tc.Fork(fmt.Sprintf("worker-%d", i))
			s1 := f.BeginSpan("outer")
			s2 := f.BeginSpan("mid")
			s3 := f.BeginSpan("inner")
			f.RecordQuery(time.Millisecond)
			f.EndSpan(s3, nil)
			f.EndSpan(s2, nil)
			f.EndSpan(s1, nil)
			if orphans := f.End(); len(orphans) != 1 {
				t.Errorf("worker %d: %d orphans, want 1 (the fork root)", i, len(orphans))
			}
		}(i)
	}
	wg.Wait()
}
