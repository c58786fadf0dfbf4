package store

import (
	"testing"
	"time"

	"seogen/pkg/domain"
)

func TestMemoryStoreUsers(t *testing.T) {
	s := NewMemoryStore()
	u := domain.User{ID: "u1", Email: "a@example.com", PasswordHash: "hash"}
	if err := s.SaveUser(u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	exists, err := s.HasUserEmail("a@example.com")
	if err != nil || !exists {
		t.Fatalf("HasUserEmail = (%v, %v), want (true, nil)", exists, err)
	}
	got, ok, err := s.GetUserByEmail("a@example.com")
	if err != nil || !ok || got.ID != "u1" {
		t.Fatalf("GetUserByEmail = (%+v, %v, %v)", got, ok, err)
	}
	got, ok, err = s.GetUserByID("u1")
	if err != nil || !ok || got.Email != "a@example.com" {
		t.Fatalf("GetUserByID = (%+v, %v, %v)", got, ok, err)
	}
	if _, ok, _ := s.GetUserByID("missing"); ok {
		t.Fatalf("expected missing user lookup to report absence")
	}
}

func TestMemoryStoreRecordsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	for i, id := range []string{"r1", "r2", "r3"} {
		err := s.SaveRecord(domain.SeoRecord{
			ID:        id,
			UserID:    "u1",
			Title:     "title " + id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("save record: %v", err)
		}
	}
	if err := s.SaveRecord(domain.SeoRecord{ID: "other", UserID: "u2", CreatedAt: base}); err != nil {
		t.Fatalf("save record: %v", err)
	}
	items, err := s.ListRecordsByUser("u1")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	if items[0].ID != "r3" || items[2].ID != "r1" {
		t.Fatalf("expected newest-first order, got %q..%q", items[0].ID, items[2].ID)
	}
}
