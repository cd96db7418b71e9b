package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"docselect/internal/document"
)

func testRegistry(t *testing.T) *document.Registry {
	t.Helper()
	person := &document.StructType{Name: "person", Fields: map[string]*document.DataType{
		"name": document.String,
		"age":  document.Int,
	}}
	reg := document.NewRegistry()
	if _, err := reg.Register("music", nil,
		document.Field{Name: "title", Type: document.String},
		document.Field{Name: "year", Type: document.Int},
		document.Field{Name: "rating", Type: document.Double},
		document.Field{Name: "tags", Type: document.ArrayOf(document.String)},
		document.Field{Name: "labels", Type: document.WeightedSetOf(document.String)},
		document.Field{Name: "meta", Type: document.MapOf(document.String, document.Int)},
		document.Field{Name: "artist", Type: document.StructOf(person)},
		document.Field{Name: "live", Type: document.Bool},
	); err != nil {
		t.Fatal(err)
	}
	return reg
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "docs.db"), testRegistry(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func musicDoc(t *testing.T, s *Store, id string, year int64) *document.Document {
	t.Helper()
	dt, ok := s.Registry().DocumentType("music")
	if !ok {
		t.Fatal("music type not registered")
	}
	d := document.New(dt, document.MustParseID(id))
	d.Fields["title"] = document.StringValue("title of " + id)
	d.Fields["year"] = document.IntValue(year)
	return d
}

func mustPut(t *testing.T, s *Store, docs ...*document.Document) {
	t.Helper()
	for _, d := range docs {
		if err := s.Put(context.Background(), d); err != nil {
			t.Fatalf("Put %s: %v", d.ID, err)
		}
	}
}

func TestStorePutGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	d := musicDoc(t, s, "id:ns:music:n=1234:a", 1999)
	d.Fields["rating"] = document.FloatValue(4.5)
	d.Fields["live"] = document.BoolValue(true)
	d.Fields["tags"] = document.Array{document.StringValue("x"), document.StringValue("y")}
	d.Fields["labels"] = document.WeightedSet{{Key: document.StringValue("rock"), Weight: 3}}
	d.Fields["meta"] = document.Map{{Key: document.StringValue("plays"), Value: document.IntValue(7)}}
	d.Fields["artist"] = &document.Struct{Type: "person", Fields: map[string]document.Value{
		"name": document.StringValue("Ann"),
		"age":  document.IntValue(42),
	}}
	mustPut(t, s, d)

	got, err := s.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != d.ID || got.Type.Name() != "music" {
		t.Errorf("got %s of type %s", got.ID, got.Type.Name())
	}
	if !reflect.DeepEqual(got.Fields, d.Fields) {
		t.Errorf("fields = %v, want %v", got.Fields, d.Fields)
	}

	// Put replaces.
	d2 := musicDoc(t, s, "id:ns:music:n=1234:a", 2005)
	mustPut(t, s, d2)
	got, err = s.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := got.Fields["rating"]; ok {
		t.Error("replaced document kept an old field")
	}
	if got.Fields["year"] != document.IntValue(2005) {
		t.Errorf("year = %v, want 2005", got.Fields["year"])
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), document.MustParseID("id:ns:music::missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d := musicDoc(t, s, "id:ns:music::a", 2000)
	mustPut(t, s, d)

	found, err := s.Remove(ctx, d.ID)
	if err != nil || !found {
		t.Fatalf("Remove = %v, %v; want true, nil", found, err)
	}
	found, err = s.Remove(ctx, d.ID)
	if err != nil || found {
		t.Fatalf("second Remove = %v, %v; want false, nil", found, err)
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	reg := testRegistry(t)

	s, err := Open(path, reg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mustPut(t, s, musicDoc(t, s, "id:ns:music::a", 2000))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(path, reg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, err := s.Get(context.Background(), document.MustParseID("id:ns:music::a")); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}

func TestStoreUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d := musicDoc(t, s, "id:ns:music::a", 2000)
	mustPut(t, s, d)

	got, err := s.Update(ctx, &document.Update{
		ID:   d.ID,
		Type: d.Type,
		Updates: []document.FieldUpdate{
			{Field: "year", Op: document.UpdateIncrement, Value: document.FloatValue(3)},
			{Field: "title", Op: document.UpdateClear},
		},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Fields["year"] != document.IntValue(2003) {
		t.Errorf("year = %v, want 2003", got.Fields["year"])
	}

	stored, err := s.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := stored.Fields["title"]; ok {
		t.Error("cleared field still stored")
	}

	_, err = s.Update(ctx, &document.Update{ID: document.MustParseID("id:ns:music::missing"), Type: d.Type})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing document: err = %v, want ErrNotFound", err)
	}
}

func TestStoreApplyCondition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustPut(t, s, musicDoc(t, s, "id:ns:music::a", 2000))

	update := func(cond string) document.FeedOperation {
		dt, _ := s.Registry().DocumentType("music")
		return document.FeedOperation{
			Op: &document.Update{
				ID:      document.MustParseID("id:ns:music::a"),
				Type:    dt,
				Updates: []document.FieldUpdate{{Field: "year", Op: document.UpdateIncrement, Value: document.FloatValue(1)}},
			},
			Condition: cond,
		}
	}

	tests := []struct {
		name     string
		cond     string
		wantErr  error
		wantYear int64
	}{
		{"no condition", "", nil, 2001},
		{"true", "music.year == 2001", nil, 2002},
		{"false", "music.year == 1", ErrConditionFailed, 2002},
		{"invalid", "music.rating > 3", ErrConditionFailed, 2002},
		{"wrong type", "video", ErrConditionFailed, 2002},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Apply(ctx, update(tt.cond))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Apply err = %v, want %v", err, tt.wantErr)
			}
			d, err := s.Get(ctx, document.MustParseID("id:ns:music::a"))
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if d.Fields["year"] != document.IntValue(tt.wantYear) {
				t.Errorf("year = %v, want %d", d.Fields["year"], tt.wantYear)
			}
		})
	}
}

func TestStoreApplyConditionMissingDocument(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Apply(context.Background(), document.FeedOperation{
		Op:        &document.Remove{ID: document.MustParseID("id:ns:music::none")},
		Condition: "music",
	})
	if !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("err = %v, want ErrConditionFailed", err)
	}
}

func TestStoreApplyOperations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d := musicDoc(t, s, "id:ns:music::a", 2000)

	if _, err := s.Apply(ctx, document.FeedOperation{Op: &document.Put{Document: d}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Apply(ctx, document.FeedOperation{Op: &document.Get{ID: d.ID}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Fields["year"] != document.IntValue(2000) {
		t.Errorf("year = %v", got.Fields["year"])
	}
	if _, err := s.Apply(ctx, document.FeedOperation{Op: &document.Remove{ID: d.ID}}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Apply(ctx, document.FeedOperation{Op: &document.Remove{ID: d.ID}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: err = %v, want ErrNotFound", err)
	}
}

func TestStoreApplyBadCondition(t *testing.T) {
	s := openTestStore(t)
	mustPut(t, s, musicDoc(t, s, "id:ns:music::a", 2000))
	_, err := s.Apply(context.Background(), document.FeedOperation{
		Op:        &document.Get{ID: document.MustParseID("id:ns:music::a")},
		Condition: "music.year ==",
	})
	if err == nil || errors.Is(err, ErrConditionFailed) {
		t.Fatalf("err = %v, want a parse error", err)
	}
}
