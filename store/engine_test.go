package store_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"objectstore/cache"
	"objectstore/models"
	"objectstore/store"
)

// newTestEngine opens a fresh in-memory SQLite database and returns an
// Engine and Coordinator over it.
func newTestEngine(t *testing.T) (*store.Engine, *store.Coordinator) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	engine := store.NewEngine(db, cache.NewMappingCache())
	return engine, store.NewCoordinator(engine)
}

// withTx runs fn inside a committed transaction and fails the test if fn
// or the commit returns an error.
func withTx(t *testing.T, coord *store.Coordinator, fn func(tx *sql.Tx) error) {
	t.Helper()
	if err := coord.WithTransaction(context.Background(), fn); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestStoreContentDedup(t *testing.T) {
	engine, coord := newTestEngine(t)

	var objectID, rev1 string
	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", nil, json.RawMessage(`{"a":1}`))
		if err != nil {
			return err
		}
		if !result.NewVersion {
			t.Errorf("first store: new_version = false, want true")
		}
		objectID, rev1 = result.ObjectID, result.RevisionID
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", objectID, nil, json.RawMessage(`{"a":1}`))
		if err != nil {
			return err
		}
		if result.NewVersion {
			t.Errorf("repeat store: new_version = true, want false")
		}
		if result.RevisionID != rev1 {
			t.Errorf("repeat store revision_id = %s, want %s", result.RevisionID, rev1)
		}
		return nil
	})

	var rev2 string
	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", objectID, nil, json.RawMessage(`{"a":2}`))
		if err != nil {
			return err
		}
		if !result.NewVersion {
			t.Errorf("changed store: new_version = false, want true")
		}
		if result.RevisionID == rev1 {
			t.Errorf("changed store revision_id unchanged: %s", result.RevisionID)
		}
		rev2 = result.RevisionID
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		result, _, err := engine.Retrieve(tx, "c1", "n1", objectID, "", "", "")
		if err != nil {
			return err
		}
		if result.RevisionID != rev2 {
			t.Errorf("retrieve head revision_id = %s, want %s", result.RevisionID, rev2)
		}
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		result, _, err := engine.Retrieve(tx, "c1", "n1", objectID, rev1, "", "")
		if err != nil {
			return err
		}
		body, _ := json.Marshal(result.Object)
		if string(body) != `{"a":1}` {
			t.Errorf("retrieve by revision_id body = %s, want {\"a\":1}", body)
		}
		return nil
	})
}

// TestStoreKeyOrderIndependence exercises the structural-equality contract:
// key order in the incoming JSON object must not affect dedup.
func TestStoreKeyOrderIndependence(t *testing.T) {
	engine, coord := newTestEngine(t)
	var objectID, rev1 string

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", nil, json.RawMessage(`{"a":1,"b":2}`))
		if err != nil {
			return err
		}
		objectID, rev1 = result.ObjectID, result.RevisionID
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", objectID, nil, json.RawMessage(`{"b":2,"a":1}`))
		if err != nil {
			return err
		}
		if result.NewVersion {
			t.Errorf("key-reordered store: new_version = true, want false")
		}
		if result.RevisionID != rev1 {
			t.Errorf("key-reordered revision_id = %s, want %s", result.RevisionID, rev1)
		}
		return nil
	})
}

func TestStoreAndRetrieveTags(t *testing.T) {
	engine, coord := newTestEngine(t)
	var objectID string

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", []string{"alpha", "beta"}, json.RawMessage(`{"k":true}`))
		if err != nil {
			return err
		}
		objectID = result.ObjectID
		if len(result.Tags) != 2 {
			t.Errorf("store tags = %v, want 2 entries", result.Tags)
		}
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		ids, err := engine.NamespaceQuery(tx, "c1", "n1", "alpha")
		if err != nil {
			return err
		}
		found := false
		for _, id := range ids {
			if id == objectID {
				found = true
			}
		}
		if !found {
			t.Errorf("namespace_query(tag=alpha) = %v, want to contain %s", ids, objectID)
		}
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		tags, err := engine.ReplaceTags(tx, "c1", "n1", objectID, []string{"gamma"})
		if err != nil {
			return err
		}
		if len(tags) != 1 || tags[0] != "gamma" {
			t.Errorf("replace_tags = %v, want [gamma]", tags)
		}
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		result, _, err := engine.Retrieve(tx, "c1", "n1", objectID, "", "", "")
		if err != nil {
			return err
		}
		if len(result.ObjectTags) != 1 || result.ObjectTags[0] != "gamma" {
			t.Errorf("retrieve object_tags after replace = %v, want [gamma]", result.ObjectTags)
		}
		return nil
	})
}

func TestEmptyTagListLeavesTagTableUnchanged(t *testing.T) {
	engine, coord := newTestEngine(t)
	var objectID string

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", nil, json.RawMessage(`{"k":1}`))
		if err != nil {
			return err
		}
		objectID = result.ObjectID
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		tags, err := engine.GetTags(tx, "c1", "n1", objectID)
		if err != nil {
			return err
		}
		if len(tags) != 0 {
			t.Errorf("get_tags after tagless store = %v, want empty", tags)
		}
		return nil
	})
}

func TestRetrieveUnknownRevisionIsNotFound(t *testing.T) {
	engine, coord := newTestEngine(t)
	var objectID string

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", nil, json.RawMessage(`{"k":1}`))
		if err != nil {
			return err
		}
		objectID = result.ObjectID
		return nil
	})

	err := coord.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, _, err := engine.Retrieve(tx, "c1", "n1", objectID, "no-such-revision", "", "")
		return err
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("retrieve with unknown revision_id error = %v, want ErrNotFound", err)
	}
}

func TestDeleteLastRevisionPurgesTags(t *testing.T) {
	engine, coord := newTestEngine(t)
	var objectID string

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", []string{"alpha"}, json.RawMessage(`{"k":1}`))
		if err != nil {
			return err
		}
		objectID = result.ObjectID
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		return engine.Delete(tx, "c1", "n1", objectID, "")
	})

	err := coord.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, _, err := engine.Retrieve(tx, "c1", "n1", objectID, "", "", "")
		return err
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("retrieve after delete error = %v, want ErrNotFound", err)
	}

	withTx(t, coord, func(tx *sql.Tx) error {
		// namespace_query joins the object table, so the deleted object
		// must no longer be listed under its former tag.
		ids, err := engine.NamespaceQuery(tx, "c1", "n1", "alpha")
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == objectID {
				t.Errorf("namespace_query(tag=alpha) still contains deleted object %s", objectID)
			}
		}
		return nil
	})

	// GetTags would return NotFound for an object with no revision, so
	// store under the same object_id again without tags: if the "alpha"
	// binding had survived the delete, it would reappear here.
	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", objectID, nil, json.RawMessage(`{"k":1}`))
		if err != nil {
			return err
		}
		if len(result.Tags) != 0 {
			t.Errorf("tags after re-storing deleted object %s = %v, want empty", objectID, result.Tags)
		}
		return nil
	})
}

func TestClearNamespaceRequiresConfirm(t *testing.T) {
	engine, coord := newTestEngine(t)

	err := coord.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		return engine.ClearNamespace(tx, "c1", "n1", nil, false)
	})
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("clear_namespace without confirm error = %v, want ErrInvalidArgument", err)
	}
}

func TestClearNamespaceByTagIsSelective(t *testing.T) {
	engine, coord := newTestEngine(t)
	var alphaID, otherID string

	withTx(t, coord, func(tx *sql.Tx) error {
		r1, err := engine.Store(tx, "c1", "n1", "", []string{"alpha"}, json.RawMessage(`{"k":1}`))
		if err != nil {
			return err
		}
		alphaID = r1.ObjectID

		r2, err := engine.Store(tx, "c1", "n1", "", []string{"beta"}, json.RawMessage(`{"k":2}`))
		if err != nil {
			return err
		}
		otherID = r2.ObjectID
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		return engine.ClearNamespace(tx, "c1", "n1", []string{"alpha"}, true)
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		ids, err := engine.NamespaceQuery(tx, "c1", "n1", "")
		if err != nil {
			return err
		}
		foundAlpha, foundOther := false, false
		for _, id := range ids {
			if id == alphaID {
				foundAlpha = true
			}
			if id == otherID {
				foundOther = true
			}
		}
		if foundAlpha {
			t.Errorf("alpha-tagged object %s survived clear_namespace(tags=[alpha])", alphaID)
		}
		if !foundOther {
			t.Errorf("beta-tagged object %s was wrongly removed", otherID)
		}
		return nil
	})
}

func TestListMappingsOrderedAndNotFoundWhenEmpty(t *testing.T) {
	engine, coord := newTestEngine(t)

	err := coord.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, err := engine.ListMappings(tx, "c1", "")
		return err
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("list_mappings on empty store error = %v, want ErrNotFound", err)
	}

	withTx(t, coord, func(tx *sql.Tx) error {
		_, err := engine.Store(tx, "c1", "zzz", "", nil, json.RawMessage(`{}`))
		return err
	})
	withTx(t, coord, func(tx *sql.Tx) error {
		_, err := engine.Store(tx, "c1", "aaa", "", nil, json.RawMessage(`{}`))
		return err
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		mappings, err := engine.ListMappings(tx, "c1", "")
		if err != nil {
			return err
		}
		if len(mappings) != 2 {
			t.Fatalf("list_mappings = %d rows, want 2", len(mappings))
		}
		if mappings[0].NamespaceID != "aaa" || mappings[1].NamespaceID != "zzz" {
			t.Errorf("list_mappings order = [%s, %s], want [aaa, zzz]", mappings[0].NamespaceID, mappings[1].NamespaceID)
		}
		return nil
	})
}

func TestAddTagsIsAdditiveAndIgnoresDuplicates(t *testing.T) {
	engine, coord := newTestEngine(t)
	var objectID string

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", []string{"alpha"}, json.RawMessage(`{"k":1}`))
		if err != nil {
			return err
		}
		objectID = result.ObjectID
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		tags, err := engine.AddTags(tx, "c1", "n1", objectID, []string{"alpha", "beta"})
		if err != nil {
			return err
		}
		if len(tags) != 2 {
			t.Errorf("add_tags(alpha, beta) onto [alpha] = %v, want 2 entries", tags)
		}
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		tags, err := engine.GetTags(tx, "c1", "n1", objectID)
		if err != nil {
			return err
		}
		if len(tags) != 2 {
			t.Errorf("get_tags after add_tags = %v, want 2 entries", tags)
		}
		return nil
	})
}

func TestAddTagsOnUnknownObjectIsNotFound(t *testing.T) {
	engine, coord := newTestEngine(t)

	err := coord.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, err := engine.AddTags(tx, "c1", "n1", "no-such-object", []string{"alpha"})
		return err
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("add_tags on unknown object error = %v, want ErrNotFound", err)
	}
}

// TestRemoveTagsNamed exercises the "delete named" half of
// remove_tags(object, tags?): only the given tags are removed, the rest
// survive.
func TestRemoveTagsNamed(t *testing.T) {
	engine, coord := newTestEngine(t)
	var objectID string

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", []string{"alpha", "beta", "gamma"}, json.RawMessage(`{"k":1}`))
		if err != nil {
			return err
		}
		objectID = result.ObjectID
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		tags, err := engine.RemoveTags(tx, "c1", "n1", objectID, []string{"beta"})
		if err != nil {
			return err
		}
		for _, tag := range tags {
			if tag == "beta" {
				t.Errorf("remove_tags([beta]) result = %v, still contains beta", tags)
			}
		}
		if len(tags) != 2 {
			t.Errorf("remove_tags([beta]) result = %v, want 2 remaining entries", tags)
		}
		return nil
	})
}

// TestRemoveTagsOmittedDeletesAll exercises the "or all if omitted" half
// of remove_tags(object, tags?): an empty/omitted tag list clears every
// binding for the object, it must not be a silent no-op.
func TestRemoveTagsOmittedDeletesAll(t *testing.T) {
	engine, coord := newTestEngine(t)
	var objectID string

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", []string{"alpha", "beta"}, json.RawMessage(`{"k":1}`))
		if err != nil {
			return err
		}
		objectID = result.ObjectID
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		tags, err := engine.RemoveTags(tx, "c1", "n1", objectID, nil)
		if err != nil {
			return err
		}
		if len(tags) != 0 {
			t.Errorf("remove_tags(nil) result = %v, want empty", tags)
		}
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		tags, err := engine.GetTags(tx, "c1", "n1", objectID)
		if err != nil {
			return err
		}
		if len(tags) != 0 {
			t.Errorf("get_tags after remove_tags(nil) = %v, want empty", tags)
		}
		return nil
	})

	withTx(t, coord, func(tx *sql.Tx) error {
		result, _, err := engine.Retrieve(tx, "c1", "n1", objectID, "", "", "")
		if err != nil {
			return err
		}
		if len(result.ObjectTags) != 0 {
			t.Errorf("object_tags snapshot after remove_tags(nil) = %v, want empty", result.ObjectTags)
		}
		return nil
	})
}

// TestStoreWithoutObjectIDUsesResolvedID exercises Open Question 1: a
// content-identical store with tags and no client-supplied object_id must
// attach the tags to the resolved object id, not a blank one.
func TestStoreWithoutObjectIDUsesResolvedID(t *testing.T) {
	engine, coord := newTestEngine(t)
	var objectID string

	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", nil, json.RawMessage(`{"a":1}`))
		if err != nil {
			return err
		}
		objectID = result.ObjectID
		return nil
	})

	// A second store of the same content with no object_id mints a new
	// object rather than colliding with the first (object_id is empty on
	// both calls only because no object_id was supplied - each absent
	// object_id always mints a fresh identity). What must NOT happen is a
	// tag binding recorded against an empty-string object id.
	withTx(t, coord, func(tx *sql.Tx) error {
		result, err := engine.Store(tx, "c1", "n1", "", []string{"alpha"}, json.RawMessage(`{"a":1}`))
		if err != nil {
			return err
		}
		if result.ObjectID == "" {
			t.Fatalf("store returned empty object_id")
		}
		if result.ObjectID == objectID {
			t.Fatalf("second store without object_id collided with first: %s", objectID)
		}
		tags, err := engine.GetTags(tx, "c1", "n1", result.ObjectID)
		if err != nil {
			return err
		}
		if len(tags) != 1 || tags[0] != "alpha" {
			t.Errorf("get_tags(%s) = %v, want [alpha]", result.ObjectID, tags)
		}
		return nil
	})
}
