package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/model"
	"github.com/sakif/pygate/internal/repository"
)

// newTestDB opens a fresh in-memory database that is closed with the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestSnippet(t *testing.T, db *DB, name, code string) *model.Snippet {
	t.Helper()
	snippet := &model.Snippet{Name: name, Code: code, Accepted: true}
	if err := db.Create(context.Background(), snippet); err != nil {
		t.Fatalf("failed to create test snippet: %v", err)
	}
	return snippet
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

func TestCreate(t *testing.T) {
	db := newTestDB(t)
	snippet := createTestSnippet(t, db, "Hello", "print('hello')")

	if snippet.ID == "" {
		t.Error("Create() did not set snippet.ID")
	}
	if snippet.CreatedAt.IsZero() || snippet.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
}

func TestCreate_StoresVerdict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	snippet := &model.Snippet{
		Name:      "escape",
		Code:      "import os",
		Accepted:  false,
		Rejection: "PolicyViolation(\"Import of 'os' is not allowed\")",
	}
	if err := db.Create(ctx, snippet); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := db.GetByID(ctx, snippet.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Accepted {
		t.Error("Accepted = true, want false")
	}
	if found.Rejection != snippet.Rejection {
		t.Errorf("Rejection = %q, want %q", found.Rejection, snippet.Rejection)
	}
	if found.UserID != "" {
		t.Errorf("UserID = %q, want empty", found.UserID)
	}
}

func TestCreate_WithOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, 7, "owner")

	snippet := &model.Snippet{Name: "mine", Code: "x = 1", UserID: user.ID}
	if err := db.Create(ctx, snippet); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	found, err := db.GetByID(ctx, snippet.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", found.UserID, user.ID)
	}
}

func TestCreate_UnknownOwner(t *testing.T) {
	db := newTestDB(t)
	snippet := &model.Snippet{Name: "orphan", Code: "x = 1", UserID: "missing"}
	if err := db.Create(context.Background(), snippet); err == nil {
		t.Fatal("Create() should fail the user_id foreign key")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	empty, err := db.List(ctx, repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("List() on empty db returned %d snippets", len(empty))
	}

	first := createTestSnippet(t, db, "first", "a = 1")
	createTestSnippet(t, db, "second", "b = 2")
	last := createTestSnippet(t, db, "third", "c = 3")

	all, err := db.List(ctx, repository.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() returned %d snippets, want 3", len(all))
	}
	if all[0].ID != last.ID || all[2].ID != first.ID {
		t.Errorf("List() order = %s..%s, want newest first", all[0].Name, all[2].Name)
	}
}

func TestList_Pagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for range 25 {
		createTestSnippet(t, db, "snippet", "code")
	}

	tests := []struct {
		name string
		opts repository.ListOptions
		want int
	}{
		{"default limit", repository.ListOptions{}, 20},
		{"first page", repository.ListOptions{Limit: 10}, 10},
		{"last page", repository.ListOptions{Limit: 10, Offset: 20}, 5},
		{"past the end", repository.ListOptions{Limit: 10, Offset: 30}, 0},
		{"negative offset", repository.ListOptions{Limit: 3, Offset: -4}, 3},
		{"limit clamped", repository.ListOptions{Limit: 1000}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.List(ctx, tt.opts)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List() returned %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	snippet := createTestSnippet(t, db, "original", "print(1)")

	snippet.Name = "updated"
	snippet.Code = "import os"
	snippet.Accepted = false
	snippet.Rejection = "PolicyViolation(\"Import of 'os' is not allowed\")"
	if err := db.Update(ctx, snippet); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, err := db.GetByID(ctx, snippet.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Name != "updated" || found.Code != "import os" {
		t.Errorf("after update got %q / %q", found.Name, found.Code)
	}
	if found.Accepted || found.Rejection == "" {
		t.Error("Update() did not store the new verdict")
	}
	if found.UpdatedAt.Before(found.CreatedAt) {
		t.Error("UpdatedAt is before CreatedAt")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.Update(context.Background(), &model.Snippet{ID: "nonexistent", Name: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	snippet := createTestSnippet(t, db, "to delete", "print('bye')")

	if err := db.Delete(ctx, snippet.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.GetByID(ctx, snippet.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
	if err := db.Delete(ctx, snippet.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
