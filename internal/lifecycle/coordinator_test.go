package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"moneta/internal/engine"
	apperrors "moneta/internal/errors"
	"moneta/internal/lifecycle"
	"moneta/internal/testutil"
)

func waitInitialized(t *testing.T, c *lifecycle.Coordinator) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !c.Initialized() {
		select {
		case <-deadline:
			t.Fatal("coordinator never initialized")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestStart_RunsFirstSyncExactlyOnce(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()

	coord := lifecycle.New(engine.New(c, gw), 0)
	coord.Start(context.Background())
	coord.Start(context.Background())
	coord.Start(context.Background())
	defer coord.Close()

	waitInitialized(t, coord)
	if got := gw.FetchCalls.Load(); got != 1 {
		t.Errorf("expected exactly one initial sync, got %d fetches", got)
	}
}

func TestStart_FailedFirstSyncStillInitializes(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()
	gw.FetchCategoriesErr = apperrors.ErrRemoteUnavailable

	coord := lifecycle.New(engine.New(c, gw), 0)
	coord.Start(context.Background())
	defer coord.Close()

	waitInitialized(t, coord)

	// The local cache stays fully usable.
	testutil.SaveTransaction(t, c, testutil.NewTransaction("t1"))
	count, err := c.PendingCount()
	testutil.AssertNoError(t, err)
	if count != 1 {
		t.Errorf("expected cache writes to work after a failed first sync, got %d pending", count)
	}
}

func TestRefresh_RunsACycle(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()

	coord := lifecycle.New(engine.New(c, gw), 0)
	coord.Start(context.Background())
	defer coord.Close()
	waitInitialized(t, coord)

	testutil.SaveCategory(t, c, testutil.NewCategory("c1", "Food"))

	result, err := coord.Refresh(context.Background())
	testutil.AssertNoError(t, err)
	if result.Pushed != 1 {
		t.Errorf("expected the refresh to push the new category, got %+v", result)
	}
	if coord.State() != engine.StateIdle {
		t.Errorf("expected idle after refresh, got %s", coord.State())
	}
}

func TestClose_BeforeStartIsSafe(t *testing.T) {
	c := testutil.SetupTestCache(t)
	coord := lifecycle.New(engine.New(c, testutil.NewFakeGateway()), 0)
	coord.Close()
}

func TestClose_CancelsInFlightCycle(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()
	gw.BlockFetch = make(chan struct{})

	coord := lifecycle.New(engine.New(c, gw), 0)
	coord.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for gw.FetchCalls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first sync never reached the gateway")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	closed := make(chan struct{})
	go func() {
		coord.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock the in-flight cycle")
	}
}

func TestBackgroundRefreshLoop(t *testing.T) {
	c := testutil.SetupTestCache(t)
	gw := testutil.NewFakeGateway()

	coord := lifecycle.New(engine.New(c, gw), 10*time.Millisecond)
	coord.Start(context.Background())
	defer coord.Close()
	waitInitialized(t, coord)

	deadline := time.After(2 * time.Second)
	for gw.FetchCalls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected periodic refreshes, saw %d fetches", gw.FetchCalls.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
