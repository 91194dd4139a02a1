package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"moneta/internal/engine"
	apperrors "moneta/internal/errors"
	"moneta/internal/models"
	"moneta/internal/testutil"
)

var _ engine.Gateway = (*testutil.FakeGateway)(nil)

func remoteCategory() models.Category {
	return models.Category{ID: "c1", Name: "Food", Type: models.EntryTypeExpense, Active: true, UpdatedAt: testutil.T1}
}

func remoteTransaction() models.Transaction {
	return models.Transaction{
		ID: "t1", Date: "2024-03-05", Type: models.EntryTypeExpense,
		Amount: 15000, CategoryID: "c1", UpdatedAt: testutil.T1,
	}
}

func TestSync_FirstCycle(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()
	gw.Categories["c1"] = remoteCategory()
	gw.Transactions["t1"] = remoteTransaction()

	eng := engine.New(c, gw)
	result, err := eng.Sync(context.Background())
	testutil.AssertNoError(t, err)

	if result.Pulled != 2 {
		t.Errorf("expected 2 pulled, got %d", result.Pulled)
	}

	tx, err := c.GetTransaction("t1")
	testutil.AssertNoError(t, err)
	if tx.Month != "2024-03" {
		t.Errorf("expected derived month 2024-03, got %s", tx.Month)
	}
	if tx.Amount != 15000 || tx.CategoryID != "c1" {
		t.Errorf("unexpected transaction after pull: %+v", tx)
	}

	cat, err := c.GetCategory("c1")
	testutil.AssertNoError(t, err)
	if cat.Name != "Food" {
		t.Errorf("expected category Food, got %s", cat.Name)
	}

	count, err := c.PendingCount()
	testutil.AssertNoError(t, err)
	if count != 0 {
		t.Errorf("expected 0 pending after first sync, got %d", count)
	}

	meta, err := c.SyncMeta()
	testutil.AssertNoError(t, err)
	if meta.LastSyncAt == nil {
		t.Error("expected lastSyncAt recorded locally")
	}
	if gw.Meta["lastSyncAt"] == "" {
		t.Error("expected lastSyncAt recorded remotely")
	}

	if eng.State() != engine.StateIdle {
		t.Errorf("expected engine back to idle, got %s", eng.State())
	}
}

func TestSync_Idempotent(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()
	gw.Categories["c1"] = remoteCategory()
	gw.Transactions["t1"] = remoteTransaction()

	eng := engine.New(c, gw)
	_, err := eng.Sync(context.Background())
	testutil.AssertNoError(t, err)

	before, err := c.ListTransactions("", "")
	testutil.AssertNoError(t, err)

	second, err := eng.Sync(context.Background())
	testutil.AssertNoError(t, err)
	if second.Pushed != 0 || second.Deleted != 0 {
		t.Errorf("expected nothing pushed on idempotent cycle, got %+v", second)
	}
	if second.PendingAfter != 0 {
		t.Errorf("expected 0 pending, got %d", second.PendingAfter)
	}

	after, err := c.ListTransactions("", "")
	testutil.AssertNoError(t, err)
	if len(before) != len(after) || !before[0].UpdatedAt.Equal(after[0].UpdatedAt) {
		t.Errorf("expected cache unchanged, before=%+v after=%+v", before, after)
	}
}

func TestSync_PushesLocalEdits(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()

	testutil.SaveCategory(t, c, testutil.NewCategory("c1", "Food"))
	testutil.SaveTransaction(t, c, testutil.NewTransaction("t1"))

	eng := engine.New(c, gw)
	result, err := eng.Sync(context.Background())
	testutil.AssertNoError(t, err)

	if result.Pushed != 2 {
		t.Errorf("expected 2 pushed, got %d", result.Pushed)
	}
	if result.PendingAfter != 0 {
		t.Errorf("expected 0 pending after push, got %d", result.PendingAfter)
	}
	if _, ok := gw.Transactions["t1"]; !ok {
		t.Error("expected t1 on the remote store")
	}
	if _, ok := gw.Categories["c1"]; !ok {
		t.Error("expected c1 on the remote store")
	}
}

func TestSync_RoundTrip(t *testing.T) {
	// Write locally, sync, then pull into a second fresh cache: both caches
	// converge on the same entity.
	first := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()

	testutil.SaveCategory(t, first, testutil.NewCategory("c1", "Food"))
	tx := testutil.NewTransaction("t1")
	tx.Notes = "lunch"
	testutil.SaveTransaction(t, first, tx)

	_, err := engine.New(first, gw).Sync(context.Background())
	testutil.AssertNoError(t, err)

	second := testutil.SetupTestCache(t)
	_, err = engine.New(second, gw).Sync(context.Background())
	testutil.AssertNoError(t, err)

	got, err := second.GetTransaction("t1")
	testutil.AssertNoError(t, err)
	want, err := first.GetTransaction("t1")
	testutil.AssertNoError(t, err)

	if got.Date != want.Date || got.Month != want.Month || got.Type != want.Type ||
		got.Amount != want.Amount || got.CategoryID != want.CategoryID || got.Notes != want.Notes {
		t.Errorf("round-trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestSync_PartialPushFailure(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()

	testutil.SyncedCategory(t, c, testutil.NewCategory("c1", "Food"))
	for _, id := range []string{"t1", "t2", "t3"} {
		testutil.SaveTransaction(t, c, testutil.NewTransaction(id))
	}
	gw.TransactionErrs["t2"] = apperrors.ErrRemoteUnavailable

	eng := engine.New(c, gw)
	result, err := eng.Sync(context.Background())
	testutil.AssertNoError(t, err)

	if result.Pushed != 2 {
		t.Errorf("expected 2 pushed, got %d", result.Pushed)
	}
	if result.PushFailures != 1 {
		t.Errorf("expected 1 push failure, got %d", result.PushFailures)
	}
	if result.PendingAfter != 1 {
		t.Errorf("expected exactly the failed entity pending, got %d", result.PendingAfter)
	}

	pending, err := c.PendingTransactions()
	testutil.AssertNoError(t, err)
	if len(pending) != 1 || pending[0].ID != "t2" {
		t.Fatalf("expected t2 pending, got %+v", pending)
	}

	// Next cycle retries only the failed subset.
	delete(gw.TransactionErrs, "t2")
	result, err = eng.Sync(context.Background())
	testutil.AssertNoError(t, err)
	if result.Pushed != 1 || result.PendingAfter != 0 {
		t.Errorf("expected the retry to clear the backlog, got %+v", result)
	}
}

func TestSync_DeletesSyncedEntityEverywhere(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()
	gw.Categories["c1"] = remoteCategory()
	gw.Transactions["t1"] = remoteTransaction()

	eng := engine.New(c, gw)
	_, err := eng.Sync(context.Background())
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, c.RemoveTransaction("t1"))

	result, err := eng.Sync(context.Background())
	testutil.AssertNoError(t, err)
	if result.Deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", result.Deleted)
	}
	if _, ok := gw.Transactions["t1"]; ok {
		t.Error("expected t1 removed from the remote store")
	}
	if _, err := c.GetTransaction("t1"); err == nil {
		t.Error("expected t1 purged from the cache")
	}

	count, err := c.PendingCount()
	testutil.AssertNoError(t, err)
	if count != 0 {
		t.Errorf("expected 0 pending, got %d", count)
	}
}

func TestSync_NeverSyncedDeleteMakesNoRemoteCall(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()

	testutil.SaveTransaction(t, c, testutil.NewTransaction("t1"))
	testutil.AssertNoError(t, c.RemoveTransaction("t1"))

	eng := engine.New(c, gw)
	_, err := eng.Sync(context.Background())
	testutil.AssertNoError(t, err)

	if calls := gw.DeleteCalls.Load(); calls != 0 {
		t.Errorf("expected no remote delete calls, got %d", calls)
	}
}

func TestSync_LocalNewerEditWinsAndIsPushed(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()
	gw.Categories["c1"] = remoteCategory()

	stale := remoteTransaction() // remote copy at T1
	gw.Transactions["t1"] = stale

	local := testutil.NewTransaction("t1")
	local.Notes = "local edit"
	local.UpdatedAt = testutil.T2
	testutil.SaveTransaction(t, c, local)

	eng := engine.New(c, gw)
	result, err := eng.Sync(context.Background())
	testutil.AssertNoError(t, err)

	if result.Conflicts != 1 {
		t.Errorf("expected 1 observed conflict, got %d", result.Conflicts)
	}
	if got := gw.Transactions["t1"]; got.Notes != "local edit" {
		t.Errorf("expected local edit pushed to remote, got notes=%q", got.Notes)
	}
	if result.PendingAfter != 0 {
		t.Errorf("expected 0 pending, got %d", result.PendingAfter)
	}
}

func TestSync_CoalescesConcurrentTrigger(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()
	gw.BlockFetch = make(chan struct{})

	eng := engine.New(c, gw)

	started := make(chan struct{})
	finished := make(chan error, 1)
	go func() {
		close(started)
		_, err := eng.Sync(context.Background())
		finished <- err
	}()

	<-started
	// Wait until the first cycle is inside the blocked fetch.
	deadline := time.After(2 * time.Second)
	for gw.FetchCalls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first cycle never reached the gateway")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	_, err := eng.Sync(context.Background())
	if !errors.Is(err, apperrors.ErrSyncInFlight) {
		t.Errorf("expected ErrSyncInFlight, got %v", err)
	}

	close(gw.BlockFetch)
	testutil.AssertNoError(t, <-finished)
}

func TestSync_PermanentErrorAbortsCycle(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()
	gw.FetchCategoriesErr = apperrors.ErrRemoteAuth

	testutil.SaveTransaction(t, c, testutil.NewTransaction("t1"))

	eng := engine.New(c, gw)
	_, err := eng.Sync(context.Background())
	testutil.AssertAppError(t, err, "REMOTE_AUTH")

	if eng.State() != engine.StateIdle {
		t.Errorf("expected engine to settle back to idle, got %s", eng.State())
	}

	// The cache stays fully usable offline; the edit is still pending.
	count, cErr := c.PendingCount()
	testutil.AssertNoError(t, cErr)
	if count != 1 {
		t.Errorf("expected the local edit to survive, got %d pending", count)
	}
}

func TestSync_PermanentPushErrorAbortsButKeepsCommittedWrites(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()

	testutil.SyncedCategory(t, c, testutil.NewCategory("c1", "Food"))
	testutil.SaveTransaction(t, c, testutil.NewTransaction("t1"))
	gw.TransactionErrs["t1"] = apperrors.ErrRemoteSchema

	eng := engine.New(c, gw)
	_, err := eng.Sync(context.Background())
	testutil.AssertAppError(t, err, "REMOTE_SCHEMA")

	count, cErr := c.PendingCount()
	testutil.AssertNoError(t, cErr)
	if count != 1 {
		t.Errorf("expected failed entity still pending, got %d", count)
	}
}

func TestSync_Cancellation(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()
	gw.Categories["c1"] = remoteCategory()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := engine.New(c, gw)
	if _, err := eng.Sync(ctx); err == nil {
		t.Fatal("expected cancellation to surface an error")
	}
	if eng.State() != engine.StateIdle {
		t.Errorf("expected engine back to idle after cancellation, got %s", eng.State())
	}
}
