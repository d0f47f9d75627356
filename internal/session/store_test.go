package session

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/arjun/pinpoint/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewStoreWithPath(dbPath)
	if err != nil {
		t.Fatalf("NewStoreWithPath() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		Hotspots: []models.Hotspot{
			{ID: 1, X: 45.5, Y: 30.25, Prompt: "remove shadow", ReferenceImages: []models.ReferenceImage{}},
			{ID: 2, X: 60, Y: 70, Prompt: "", ReferenceImages: []models.ReferenceImage{
				{ID: "r1", URL: "https://cdn.example.com/r.png", PreviewURL: "https://cdn.example.com/r-sm.png"},
			}},
		},
		Session: &Session{
			ID:              "sess-1",
			Status:          StatusActive,
			PhaseHotspotIDs: []int{1, 2},
			TotalHotspotIDs: []int{1, 2},
		},
		SessionsUsed: 1,
		EditCount:    1,
		History: []ProcessedImage{
			{ID: "h0", URL: "https://cdn.example.com/base.png"},
			{ID: "h1", URL: "https://cdn.example.com/v1.png"},
		},
		HistoryIndex: 1,
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "img-abc", testSnapshot()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "img-abc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got.EditCount != 1 || got.SessionsUsed != 1 || got.HistoryIndex != 1 {
		t.Errorf("counters = (%d, %d, %d), want (1, 1, 1)", got.EditCount, got.SessionsUsed, got.HistoryIndex)
	}
	if got.Session == nil || got.Session.ID != "sess-1" {
		t.Fatalf("Session = %+v, want sess-1", got.Session)
	}
	if len(got.Session.PhaseHotspotIDs) != 2 {
		t.Errorf("PhaseHotspotIDs = %v, want 2 ids", got.Session.PhaseHotspotIDs)
	}
	if len(got.Hotspots) != 2 {
		t.Fatalf("len(Hotspots) = %d, want 2", len(got.Hotspots))
	}
	if got.Hotspots[0].X != 45.5 || got.Hotspots[0].Prompt != "remove shadow" {
		t.Errorf("Hotspots[0] = %+v", got.Hotspots[0])
	}
	if got.Hotspots[1].Reference() == nil || got.Hotspots[1].Reference().ID != "r1" {
		t.Errorf("Hotspots[1] reference = %+v, want r1", got.Hotspots[1].Reference())
	}
	if len(got.History) != 2 || got.History[1].URL != "https://cdn.example.com/v1.png" {
		t.Errorf("History = %+v", got.History)
	}
}

func TestStore_SaveUpserts(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	snap := testSnapshot()
	if err := store.Save(ctx, "img-abc", snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	snap.EditCount = 2
	snap.Session = nil
	if err := store.Save(ctx, "img-abc", snap); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := store.Load(ctx, "img-abc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.EditCount != 2 {
		t.Errorf("EditCount = %d after upsert, want 2", got.EditCount)
	}
	if got.Session != nil {
		t.Errorf("Session = %+v after upsert, want nil", got.Session)
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("List() = %d rows after upsert, want 1", len(infos))
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := testStore(t)
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Load(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "img-1", testSnapshot()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, "img-2", &Snapshot{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List() = %d rows, want 2", len(infos))
	}
	for _, info := range infos {
		if info.ID == "img-1" && info.HotspotCount != 2 {
			t.Errorf("img-1 HotspotCount = %d, want 2", info.HotspotCount)
		}
	}

	if err := store.Delete(ctx, "img-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	infos, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "img-2" {
		t.Errorf("List() after delete = %+v, want only img-2", infos)
	}
}
