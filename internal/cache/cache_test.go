package cache_test

import (
	"path/filepath"
	"testing"
	"time"

	"moneta/internal/cache"
	"moneta/internal/models"
	"moneta/internal/testutil"
)

func TestSaveTransaction(t *testing.T) {
	t.Run("create_stamps_and_derives_month", func(t *testing.T) {
		c := testutil.SetupTestCache(t)

		tx := testutil.NewTransaction("t1")
		tx.Month = "1999-12" // never trusted from input
		testutil.SaveTransaction(t, c, tx)

		saved, err := c.GetTransaction("t1")
		testutil.AssertNoError(t, err)
		if saved.Month != "2024-03" {
			t.Errorf("expected month 2024-03, got %s", saved.Month)
		}
		if saved.UpdatedAt.IsZero() {
			t.Error("expected UpdatedAt to be stamped")
		}
		if saved.RemoteUpdatedAt != nil {
			t.Error("expected new entity to have no remote timestamp")
		}
	})

	t.Run("last_write_wins_discards_older", func(t *testing.T) {
		c := testutil.SetupTestCache(t)

		newer := testutil.NewTransaction("t1")
		newer.Notes = "newer"
		newer.UpdatedAt = testutil.T2
		testutil.SaveTransaction(t, c, newer)

		older := testutil.NewTransaction("t1")
		older.Notes = "older"
		older.UpdatedAt = testutil.T1
		testutil.SaveTransaction(t, c, older)

		saved, err := c.GetTransaction("t1")
		testutil.AssertNoError(t, err)
		if saved.Notes != "newer" {
			t.Errorf("expected newer value to survive, got notes=%q", saved.Notes)
		}
	})

	t.Run("tie_favors_incoming", func(t *testing.T) {
		c := testutil.SetupTestCache(t)

		first := testutil.NewTransaction("t1")
		first.Notes = "first"
		first.UpdatedAt = testutil.T1
		testutil.SaveTransaction(t, c, first)

		second := testutil.NewTransaction("t1")
		second.Notes = "second"
		second.UpdatedAt = testutil.T1
		testutil.SaveTransaction(t, c, second)

		saved, err := c.GetTransaction("t1")
		testutil.AssertNoError(t, err)
		if saved.Notes != "second" {
			t.Errorf("expected incoming value to win the tie, got notes=%q", saved.Notes)
		}
	})

	t.Run("preserves_remote_timestamp", func(t *testing.T) {
		c := testutil.SetupTestCache(t)

		tx := testutil.NewTransaction("t1")
		testutil.SyncedTransaction(t, c, tx)

		edit := testutil.NewTransaction("t1")
		edit.Notes = "edited"
		testutil.SaveTransaction(t, c, edit)

		pending, err := c.PendingTransactions()
		testutil.AssertNoError(t, err)
		if len(pending) != 1 || pending[0].ID != "t1" {
			t.Fatalf("expected the edit to be pending, got %v", pending)
		}
		if pending[0].RemoteUpdatedAt == nil {
			t.Error("expected remote timestamp to be preserved across a local edit")
		}
	})
}

func TestApplyRemoteTransaction(t *testing.T) {
	t.Run("new_entity_is_not_pending", func(t *testing.T) {
		c := testutil.SetupTestCache(t)

		remote := testutil.NewTransaction("t1")
		remote.UpdatedAt = testutil.T1
		applied, err := c.ApplyRemoteTransaction(remote)
		testutil.AssertNoError(t, err)
		if !applied {
			t.Error("expected remote value to apply")
		}

		count, err := c.PendingCount()
		testutil.AssertNoError(t, err)
		if count != 0 {
			t.Errorf("expected 0 pending, got %d", count)
		}
	})

	t.Run("remote_newer_wins", func(t *testing.T) {
		c := testutil.SetupTestCache(t)

		local := testutil.NewTransaction("t1")
		local.Notes = "local"
		local.UpdatedAt = testutil.T1
		testutil.SaveTransaction(t, c, local)

		remote := testutil.NewTransaction("t1")
		remote.Notes = "remote"
		remote.UpdatedAt = testutil.T2
		applied, err := c.ApplyRemoteTransaction(remote)
		testutil.AssertNoError(t, err)
		if !applied {
			t.Error("expected newer remote value to apply")
		}

		saved, err := c.GetTransaction("t1")
		testutil.AssertNoError(t, err)
		if saved.Notes != "remote" {
			t.Errorf("expected remote value, got %q", saved.Notes)
		}

		count, err := c.PendingCount()
		testutil.AssertNoError(t, err)
		if count != 0 {
			t.Errorf("expected 0 pending after remote overwrite, got %d", count)
		}
	})

	t.Run("tie_favors_remote", func(t *testing.T) {
		c := testutil.SetupTestCache(t)

		local := testutil.NewTransaction("t1")
		local.Notes = "local"
		local.UpdatedAt = testutil.T1
		testutil.SaveTransaction(t, c, local)

		remote := testutil.NewTransaction("t1")
		remote.Notes = "remote"
		remote.UpdatedAt = testutil.T1
		applied, err := c.ApplyRemoteTransaction(remote)
		testutil.AssertNoError(t, err)
		if !applied {
			t.Error("expected remote value to win the tie")
		}

		saved, err := c.GetTransaction("t1")
		testutil.AssertNoError(t, err)
		if saved.Notes != "remote" {
			t.Errorf("expected remote value on tie, got %q", saved.Notes)
		}
	})

	t.Run("local_newer_survives_and_stays_pending", func(t *testing.T) {
		c := testutil.SetupTestCache(t)

		local := testutil.NewTransaction("t1")
		local.Notes = "local"
		local.UpdatedAt = testutil.T2
		testutil.SaveTransaction(t, c, local)

		remote := testutil.NewTransaction("t1")
		remote.Notes = "remote"
		remote.UpdatedAt = testutil.T1
		applied, err := c.ApplyRemoteTransaction(remote)
		testutil.AssertNoError(t, err)
		if applied {
			t.Error("expected local value to survive")
		}

		saved, err := c.GetTransaction("t1")
		testutil.AssertNoError(t, err)
		if saved.Notes != "local" {
			t.Errorf("expected local value, got %q", saved.Notes)
		}

		// The remote timestamp was still recorded: this is a true
		// local-only edit awaiting push, not a never-synced entity.
		pending, err := c.PendingTransactions()
		testutil.AssertNoError(t, err)
		if len(pending) != 1 || pending[0].RemoteUpdatedAt == nil {
			t.Fatalf("expected a pending entity with a recorded remote timestamp, got %+v", pending)
		}
	})
}

func TestRemoveTransaction(t *testing.T) {
	t.Run("never_synced_is_erased", func(t *testing.T) {
		c := testutil.SetupTestCache(t)

		testutil.SaveTransaction(t, c, testutil.NewTransaction("t1"))
		testutil.AssertNoError(t, c.RemoveTransaction("t1"))

		if _, err := c.GetTransaction("t1"); err == nil {
			t.Error("expected transaction to be gone")
		}
		pending, err := c.PendingTransactions()
		testutil.AssertNoError(t, err)
		if len(pending) != 0 {
			t.Errorf("expected no pending entities, got %d", len(pending))
		}
	})

	t.Run("synced_is_tombstoned", func(t *testing.T) {
		c := testutil.SetupTestCache(t)

		testutil.SyncedTransaction(t, c, testutil.NewTransaction("t1"))
		testutil.AssertNoError(t, c.RemoveTransaction("t1"))

		// Hidden from reads but retained as a pending delete.
		if _, err := c.GetTransaction("t1"); err == nil {
			t.Error("expected tombstoned transaction to be hidden")
		}
		pending, err := c.PendingTransactions()
		testutil.AssertNoError(t, err)
		if len(pending) != 1 || !pending[0].Tombstone {
			t.Fatalf("expected one tombstone, got %+v", pending)
		}

		testutil.AssertNoError(t, c.PurgeTransaction("t1"))
		pending, err = c.PendingTransactions()
		testutil.AssertNoError(t, err)
		if len(pending) != 0 {
			t.Errorf("expected tombstone purged, got %d pending", len(pending))
		}
	})

	t.Run("missing_id", func(t *testing.T) {
		c := testutil.SetupTestCache(t)
		testutil.AssertAppError(t, c.RemoveTransaction("nope"), "NOT_FOUND")
	})
}

func TestPendingCount(t *testing.T) {
	c := testutil.SetupTestCache(t)

	testutil.SaveCategory(t, c, testutil.NewCategory("c1", "Food"))
	testutil.SaveTransaction(t, c, testutil.NewTransaction("t1"))
	testutil.SyncedTransaction(t, c, testutil.NewTransaction("t2"))

	count, err := c.PendingCount()
	testutil.AssertNoError(t, err)
	if count != 2 {
		t.Errorf("expected 2 pending (c1 and t1), got %d", count)
	}
}

func TestListFilters(t *testing.T) {
	c := testutil.SetupTestCache(t)

	exp := testutil.NewTransaction("t1")
	testutil.SaveTransaction(t, c, exp)

	inc := testutil.NewTransaction("t2")
	inc.Type = models.EntryTypeIncome
	inc.Date = "2024-04-01"
	testutil.SaveTransaction(t, c, inc)

	byType, err := c.ListTransactions(models.EntryTypeIncome, "")
	testutil.AssertNoError(t, err)
	if len(byType) != 1 || byType[0].ID != "t2" {
		t.Errorf("expected only t2, got %v", byType)
	}

	byMonth, err := c.ListTransactions("", "2024-03")
	testutil.AssertNoError(t, err)
	if len(byMonth) != 1 || byMonth[0].ID != "t1" {
		t.Errorf("expected only t1, got %v", byMonth)
	}

	inactive := testutil.NewCategory("c1", "Old")
	inactive.Active = false
	testutil.SaveCategory(t, c, inactive)
	testutil.SaveCategory(t, c, testutil.NewCategory("c2", "Food"))

	active, err := c.ListCategories("", true)
	testutil.AssertNoError(t, err)
	if len(active) != 1 || active[0].ID != "c2" {
		t.Errorf("expected only active c2, got %v", active)
	}
}

func TestCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moneta.db")

	c, err := cache.Open(path)
	testutil.AssertNoError(t, err)
	testutil.SaveTransaction(t, c, testutil.NewTransaction("t1"))
	testutil.AssertNoError(t, c.SetLastSyncAt(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)))
	testutil.AssertNoError(t, c.Close())

	reopened, err := cache.Open(path)
	testutil.AssertNoError(t, err)
	defer func() { _ = reopened.Close() }()

	saved, err := reopened.GetTransaction("t1")
	testutil.AssertNoError(t, err)
	if saved.Amount != 15000 {
		t.Errorf("expected amount 15000 after reopen, got %d", saved.Amount)
	}

	count, err := reopened.PendingCount()
	testutil.AssertNoError(t, err)
	if count != 1 {
		t.Errorf("expected pending edit to survive restart, got %d", count)
	}

	meta, err := reopened.SyncMeta()
	testutil.AssertNoError(t, err)
	if meta.LastSyncAt == nil {
		t.Error("expected last sync time to survive restart")
	}
}
