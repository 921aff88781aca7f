package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/untoldecay/RuneEcho/internal/types"
)

func failureRetryCount(t *testing.T, store *Store, entryID, fingerprint string) int {
	t.Helper()
	var n int
	err := store.UnderlyingDB().QueryRow(`
		SELECT retry_count FROM echo_search_failures
		WHERE entry_id = ? AND token_fingerprint = ?
	`, entryID, fingerprint).Scan(&n)
	if err != nil {
		t.Fatalf("failed to read retry_count: %v", err)
	}
	return n
}

func TestRecordSearchFailureIncrements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := testEntry("reviewer", "etched", "missed entry", 3)
	seedEntries(t, store, []types.Entry{e})

	fp := "abc123fingerprint"
	if err := store.RecordSearchFailure(ctx, e.ID, fp); err != nil {
		t.Fatalf("RecordSearchFailure failed: %v", err)
	}
	if got := failureRetryCount(t, store, e.ID, fp); got != 0 {
		t.Errorf("first failure retry_count = %d, want 0", got)
	}

	if err := store.RecordSearchFailure(ctx, e.ID, fp); err != nil {
		t.Fatalf("RecordSearchFailure failed: %v", err)
	}
	if got := failureRetryCount(t, store, e.ID, fp); got != 1 {
		t.Errorf("second failure retry_count = %d, want 1", got)
	}
}

func TestRecordSearchFailureCapsRetries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := testEntry("reviewer", "etched", "missed entry", 3)
	seedEntries(t, store, []types.Entry{e})

	fp := "cap-fingerprint"
	for i := 0; i < 6; i++ {
		if err := store.RecordSearchFailure(ctx, e.ID, fp); err != nil {
			t.Fatalf("RecordSearchFailure failed: %v", err)
		}
	}
	if got := failureRetryCount(t, store, e.ID, fp); got != retryMaxCount {
		t.Errorf("retry_count = %d, want capped at %d", got, retryMaxCount)
	}

	// At the cap the row no longer qualifies for injection.
	candidates, err := store.RetryCandidates(ctx, fp, nil)
	if err != nil {
		t.Fatalf("RetryCandidates failed: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no candidates at retry cap, got %d", len(candidates))
	}
}

func TestRetryCandidates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	missed := testEntry("reviewer", "etched", "previously missed entry", 3)
	matched := testEntry("reviewer", "etched", "already in results", 9)
	seedEntries(t, store, []types.Entry{missed, matched})

	fp := "query-fingerprint"
	if err := store.RecordSearchFailure(ctx, missed.ID, fp); err != nil {
		t.Fatalf("RecordSearchFailure failed: %v", err)
	}
	if err := store.RecordSearchFailure(ctx, matched.ID, fp); err != nil {
		t.Fatalf("RecordSearchFailure failed: %v", err)
	}

	candidates, err := store.RetryCandidates(ctx, fp, []string{matched.ID})
	if err != nil {
		t.Fatalf("RetryCandidates failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	c := candidates[0]
	if c.ID != missed.ID {
		t.Errorf("candidate = %s, want %s", c.ID, missed.ID)
	}
	if c.BM25 != RetryScore {
		t.Errorf("synthetic score = %v, want %v", c.BM25, RetryScore)
	}
	if !c.RetrySource {
		t.Errorf("candidate not flagged retry_source")
	}

	// A different fingerprint matches nothing.
	other, err := store.RetryCandidates(ctx, "other-fingerprint", nil)
	if err != nil {
		t.Fatalf("RetryCandidates failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no candidates for unrelated fingerprint, got %d", len(other))
	}
}

func TestResetFailureOnMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := testEntry("reviewer", "etched", "recovered entry", 3)
	seedEntries(t, store, []types.Entry{e})

	fp := "reset-fingerprint"
	if err := store.RecordSearchFailure(ctx, e.ID, fp); err != nil {
		t.Fatalf("RecordSearchFailure failed: %v", err)
	}
	if err := store.ResetFailureOnMatch(ctx, e.ID, fp); err != nil {
		t.Fatalf("ResetFailureOnMatch failed: %v", err)
	}

	n, err := store.FailureCount(ctx, e.ID)
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if n != 0 {
		t.Errorf("failure rows after reset = %d, want 0", n)
	}

	// Recording again after a reset starts a fresh row at zero.
	if err := store.RecordSearchFailure(ctx, e.ID, fp); err != nil {
		t.Fatalf("RecordSearchFailure failed: %v", err)
	}
	if got := failureRetryCount(t, store, e.ID, fp); got != 0 {
		t.Errorf("retry_count after reset+record = %d, want 0", got)
	}
}

func TestCleanupAgedFailures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fresh := testEntry("reviewer", "etched", "fresh failure", 3)
	stale := testEntry("reviewer", "etched", "stale failure", 9)
	seedEntries(t, store, []types.Entry{fresh, stale})

	if err := store.RecordSearchFailure(ctx, fresh.ID, "fp-fresh"); err != nil {
		t.Fatalf("RecordSearchFailure failed: %v", err)
	}
	old := time.Now().UTC().AddDate(0, 0, -40).Format(time.RFC3339)
	_, err := store.UnderlyingDB().Exec(`
		INSERT INTO echo_search_failures (entry_id, token_fingerprint, retry_count, first_failed_at)
		VALUES (?, 'fp-stale', 0, ?)
	`, stale.ID, old)
	if err != nil {
		t.Fatalf("seed stale failure failed: %v", err)
	}

	// Aged rows are invisible to injection even before cleanup runs.
	pre, err := store.RetryCandidates(ctx, "fp-stale", nil)
	if err != nil {
		t.Fatalf("RetryCandidates failed: %v", err)
	}
	if len(pre) != 0 {
		t.Errorf("aged failure surfaced as candidate")
	}

	removed, err := store.CleanupAgedFailures(ctx)
	if err != nil {
		t.Fatalf("CleanupAgedFailures failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	n, err := store.FailureCount(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("fresh failure was removed")
	}
}
