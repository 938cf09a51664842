package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wispberry-tech/wispy-admin/store"
)

var newsColumns = []string{"title", "summary", "published_at", "is_featured"}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func createTestStore(t *testing.T) *Store {
	t.Helper()
	seq := 0
	clock := &stepClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
	s, err := OpenSQLite(":memory:", Options{
		Now: clock.Now,
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	})
	if err != nil {
		t.Fatal("Failed to open store:", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Schema().EnsureSchema(context.Background()); err != nil {
		t.Fatal("Failed to ensure schema:", err)
	}
	return s
}

func mustInsertNews(t *testing.T, s *Store, title string, published any) store.Row {
	t.Helper()
	row, err := s.Insert(context.Background(), "news", newsColumns, store.Row{
		"title":        title,
		"published_at": published,
		"is_featured":  false,
	})
	if err != nil {
		t.Fatalf("Insert(%s) error = %v", title, err)
	}
	return row
}

func TestStore_InsertAssignsIdentityAndTimestamps(t *testing.T) {
	s := createTestStore(t)

	row := mustInsertNews(t, s, "Season opener", time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))

	if row[store.ColumnID] != "id-001" {
		t.Errorf("id = %v, want id-001", row[store.ColumnID])
	}
	if got := fmt.Sprint(row[store.ColumnCreatedAt]); got != "2026-03-14T09:30:01.000000000Z" {
		t.Errorf("created_at = %s", got)
	}
	if fmt.Sprint(row[store.ColumnCreatedAt]) != fmt.Sprint(row[store.ColumnUpdatedAt]) {
		t.Error("created_at and updated_at differ on insert")
	}
	if got := fmt.Sprint(row["published_at"]); got != "2026-03-01T18:00:00.000000000Z" {
		t.Errorf("published_at = %s", got)
	}
	if row["title"] != "Season opener" {
		t.Errorf("title = %v", row["title"])
	}
	if _, ok := row["content"]; ok {
		t.Error("unrequested column returned")
	}
}

func TestStore_InsertRejectsServerOwnedColumns(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Insert(context.Background(), "news", newsColumns, store.Row{
		"title": "x",
		"id":    "chosen-by-client",
	})
	if err == nil {
		t.Fatal("Insert() with client id succeeded")
	}
}

func TestStore_SelectOrdering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustInsertNews(t, s, "march 3", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	mustInsertNews(t, s, "undated", nil)
	mustInsertNews(t, s, "march 9", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	// sub-second precision must still order correctly as text
	mustInsertNews(t, s, "march 9 later", time.Date(2026, 3, 9, 0, 0, 0, 500, time.UTC))

	tests := []struct {
		name  string
		order store.Order
		want  string
	}{
		{"published desc, nulls last", store.Order{Column: "published_at", Direction: store.Desc}, "march 9 later,march 9,march 3,undated"},
		{"published asc, nulls last", store.Order{Column: "published_at", Direction: store.Asc}, "march 3,march 9,march 9 later,undated"},
		{"created desc", store.Order{Column: store.ColumnCreatedAt, Direction: store.Desc}, "march 9 later,march 9,undated,march 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.Select(ctx, "news", newsColumns, tt.order)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			var titles []string
			for _, r := range rows {
				titles = append(titles, fmt.Sprint(r["title"]))
			}
			if got := strings.Join(titles, ","); got != tt.want {
				t.Errorf("order = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStore_SelectBreaksTiesByID(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	ids := []string{"id-c", "id-a", "id-b"}
	s, err := OpenSQLite(":memory:", Options{
		Now: func() time.Time { return stamp },
		NewID: func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		},
	})
	if err != nil {
		t.Fatal("Failed to open store:", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Schema().EnsureSchema(context.Background()); err != nil {
		t.Fatal("Failed to ensure schema:", err)
	}

	for _, title := range []string{"c", "a", "b"} {
		mustInsertNews(t, s, title, nil)
	}

	for _, dir := range []store.Direction{store.Desc, store.Asc} {
		rows, err := s.Select(context.Background(), "news", newsColumns, store.Order{Column: store.ColumnCreatedAt, Direction: dir})
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		var got []string
		for _, r := range rows {
			got = append(got, fmt.Sprint(r[store.ColumnID]))
		}
		if strings.Join(got, ",") != "id-a,id-b,id-c" {
			t.Errorf("Select(%s) ids = %v, want id order for equal timestamps", dir, got)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{"plain", "CREATE TABLE a (x INT);\nCREATE INDEX i ON a(x);\n", 2},
		{"trailing statement without semicolon", "SELECT 1;\nSELECT 2", 2},
		{"dollar-quoted body", "CREATE FUNCTION f() RETURNS trigger AS $$\nBEGIN\n    NEW.x = 1;\n    RETURN NEW;\nEND;\n$$ LANGUAGE plpgsql;\nSELECT 1;", 2},
		{"only whitespace left", "SELECT 1;\n\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitStatements(tt.script)
			if len(got) != tt.want {
				t.Fatalf("splitStatements() = %d statements %q, want %d", len(got), got, tt.want)
			}
		})
	}

	stmts := splitStatements("CREATE FUNCTION f() AS $$ BEGIN x; END; $$ LANGUAGE plpgsql;")
	if !strings.Contains(stmts[0], "END; $$ LANGUAGE plpgsql") {
		t.Errorf("function body was split: %q", stmts[0])
	}
}

func TestPostgresSchema_StampsUpdatedAtOnUpdate(t *testing.T) {
	script, err := schemaFiles.ReadFile("sql/postgres_schema.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, table := range []string{"news", "sports", "live_matches", "products", "community_highlights", "registrations"} {
		trigger := "CREATE TRIGGER " + table + "_set_updated_at BEFORE UPDATE ON " + table
		if !strings.Contains(string(script), trigger) {
			t.Errorf("postgres schema has no updated_at trigger for %s", table)
		}
	}
}

func TestStore_SelectEmptyTable(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.Select(context.Background(), "sports", []string{"name"}, store.Order{Column: store.ColumnCreatedAt, Direction: store.Desc})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("Select() = %#v, want empty non-nil slice", rows)
	}
}

func TestStore_UpdateAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	created := mustInsertNews(t, s, "Draft", nil)
	id := fmt.Sprint(created[store.ColumnID])

	updated, err := s.Update(ctx, "news", newsColumns, id, store.Row{"summary": "Short"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated["summary"] != "Short" || updated["title"] != "Draft" {
		t.Errorf("Update() row = %v", updated)
	}
	if fmt.Sprint(updated[store.ColumnUpdatedAt]) <= fmt.Sprint(updated[store.ColumnCreatedAt]) {
		t.Error("updated_at did not advance")
	}

	if _, err := s.Update(ctx, "news", newsColumns, "missing", store.Row{"summary": "x"}); !errors.Is(err, store.ErrNoRows) {
		t.Errorf("Update(missing) error = %v, want ErrNoRows", err)
	}

	if err := s.Delete(ctx, "news", id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	row, err := s.SelectByID(ctx, "news", newsColumns, id)
	if err != nil {
		t.Fatalf("SelectByID() error = %v", err)
	}
	if row != nil {
		t.Errorf("SelectByID() after Delete() = %v, want nil", row)
	}
	if err := s.Delete(ctx, "news", id); err != nil {
		t.Errorf("Delete() of missing id error = %v", err)
	}
}

func TestStore_ErrorsAreNormalized(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		run      func(s *Store) error
		wantCode string
	}{
		{
			name: "missing table",
			run: func(s *Store) error {
				_, err := s.Select(ctx, "fixtures", []string{"name"}, store.Order{Column: store.ColumnCreatedAt, Direction: store.Asc})
				return err
			},
			wantCode: "42P01",
		},
		{
			name: "unknown column",
			run: func(s *Store) error {
				_, err := s.Insert(ctx, "news", newsColumns, store.Row{"title": "x", "headline": "y"})
				return err
			},
			wantCode: "42703",
		},
		{
			name: "not null",
			run: func(s *Store) error {
				_, err := s.Insert(ctx, "news", newsColumns, store.Row{"summary": "no title"})
				return err
			},
			wantCode: "23502",
		},
		{
			name: "check constraint",
			run: func(s *Store) error {
				_, err := s.Insert(ctx, "products", []string{"name", "stock"}, store.Row{"name": "Scarf", "stock": -1})
				return err
			},
			wantCode: "23514",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(createTestStore(t))
			var serr *store.Error
			if !errors.As(err, &serr) {
				t.Fatalf("error = %v (%T), want *store.Error", err, err)
			}
			if serr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q (message %q)", serr.Code, tt.wantCode, serr.Message)
			}
		})
	}
}

func TestStore_DuplicateIDIsUniqueViolation(t *testing.T) {
	s, err := OpenSQLite(":memory:", Options{NewID: func() string { return "fixed" }})
	if err != nil {
		t.Fatal("Failed to open store:", err)
	}
	defer s.Close()
	ctx := context.Background()
	if err := s.Schema().EnsureSchema(ctx); err != nil {
		t.Fatal("Failed to ensure schema:", err)
	}

	if _, err := s.Insert(ctx, "sports", []string{"name"}, store.Row{"name": "Rugby"}); err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}
	_, err = s.Insert(ctx, "sports", []string{"name"}, store.Row{"name": "Hockey"})
	var serr *store.Error
	if !errors.As(err, &serr) || serr.Code != "23505" {
		t.Errorf("second Insert() error = %v, want code 23505", err)
	}
}

func TestStore_RejectsUnsafeIdentifiers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Select(ctx, `news"; DROP TABLE news; --`, newsColumns, store.Order{Column: "title", Direction: store.Asc}); err == nil {
		t.Error("Select() accepted an unsafe table name")
	}
	if _, err := s.SelectByID(ctx, "news", []string{"title, content"}, "x"); err == nil {
		t.Error("SelectByID() accepted an unsafe column name")
	}
	if exists, _ := s.Schema().TableExists(ctx, "news"); !exists {
		t.Error("news table missing after rejected statements")
	}
}

func TestSchemaManager(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sm := s.Schema()

	if err := sm.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() second run error = %v", err)
	}

	for _, table := range []string{"news", "sports", "live_matches", "products", "community_highlights", "registrations"} {
		exists, err := sm.TableExists(ctx, table)
		if err != nil {
			t.Fatalf("TableExists(%s) error = %v", table, err)
		}
		if !exists {
			t.Errorf("TableExists(%s) = false", table)
		}
	}

	if err := sm.ValidateSchema(ctx, "news", "fixtures"); err == nil || !strings.Contains(err.Error(), "fixtures") {
		t.Errorf("ValidateSchema() error = %v, want missing fixtures", err)
	}

	info, err := sm.GetSchemaInfo(ctx)
	if err != nil {
		t.Fatalf("GetSchemaInfo() error = %v", err)
	}
	if info.DatabaseType != SQLite || len(info.Tables) != 6 {
		t.Errorf("GetSchemaInfo() = %+v", info)
	}
}
