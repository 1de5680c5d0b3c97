package api

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"objectstore/models"
	"objectstore/store"
)

// maxBodyBytes caps a stored object's JSON payload, matching the teacher's
// api_helpers.go MaxBytesReader guard against unbounded request bodies.
const maxBodyBytes = 1 << 20

// Handlers implements the HTTP surface of spec.md §6 against a
// *store.Coordinator.
type Handlers struct {
	coord *store.Coordinator
}

// NewHandlers returns a Handlers dispatching through coord.
func NewHandlers(coord *store.Coordinator) *Handlers {
	return &Handlers{coord: coord}
}

// work is what a handler runs inside one request transaction: it returns
// the response fields to merge into the "OK" envelope.
type work func(tx *sql.Tx) (fields Envelope, err error)

// run opens a transaction via the coordinator, executes fn inside it, and
// writes the JSON response. On error it maps the error's models.Kind to an
// HTTP status; on success it merges fn's fields into {"status":"OK"}. When
// ns is non-empty, run additionally resolves the namespace's mapping
// identifier inside the same transaction and echoes it back as
// X-Object-Store-Mapping-Id, matching the original's per-route "_mid"
// response metadata for every namespaced call.
func (h *Handlers) run(w http.ResponseWriter, r *http.Request, clientID, ns string, fn work) {
	var fields Envelope
	var mappingID string

	err := h.coord.WithTransaction(r.Context(), func(tx *sql.Tx) error {
		f, err := fn(tx)
		if err != nil {
			return err
		}
		fields = f
		if ns != "" {
			mid, err := h.coord.Engine().ResolveMappingIdentifier(tx, clientID, ns)
			if err != nil {
				return err
			}
			mappingID = mid
		}
		return nil
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	if mappingID != "" {
		w.Header().Set("X-Object-Store-Mapping-Id", mappingID)
	}
	RespondOK(w, fields)
}

func clientIDOf(r *http.Request) string {
	auth, _ := GetAuthContext(r)
	if auth == nil {
		return ""
	}
	return auth.ClientID
}

// Store handles POST /{ns}[/{object_id}] and POST /store/{ns}.
func (h *Handlers) Store(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns := vars["ns"]
	objectID := vars["object_id"]
	clientID := clientIDOf(r)

	tags, err := store.ParseTagList(r.URL.Query().Get("tags"))
	if err != nil {
		RespondError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		RespondError(w, models.ErrInvalidArgument)
		return
	}

	h.run(w, r, clientID, ns, func(tx *sql.Tx) (Envelope, error) {
		result, err := h.coord.Engine().Store(tx, clientID, ns, objectID, tags, json.RawMessage(body))
		if err != nil {
			return nil, err
		}
		return Envelope{
			"namespace_id":     ns,
			"object_id":        result.ObjectID,
			"revision_id":      result.RevisionID,
			"new_version":      result.NewVersion,
			"tags":             result.Tags,
			"object_timestamp": result.ObjectTimestamp,
		}, nil
	})
}

// Retrieve handles GET /{ns}/{object_id}[/{prop}] and
// GET /retrieve/{ns}/{object_id}[/{prop}].
func (h *Handlers) Retrieve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns := vars["ns"]
	objectID := vars["object_id"]
	prop := vars["prop"]
	clientID := clientIDOf(r)

	revisionID := r.URL.Query().Get("revision_id")
	tag := r.URL.Query().Get("tag")

	h.run(w, r, clientID, ns, func(tx *sql.Tx) (Envelope, error) {
		result, value, err := h.coord.Engine().Retrieve(tx, clientID, ns, objectID, revisionID, tag, prop)
		if err != nil {
			return nil, err
		}

		if prop != "" && prop != "revisions" {
			return Envelope{prop: value}, nil
		}
		return Envelope(result.AsMap()), nil
	})
}

// Delete handles DELETE /{ns}/{object_id} and DELETE /delete/{ns}/{object_id}.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns := vars["ns"]
	objectID := vars["object_id"]
	clientID := clientIDOf(r)
	revisionID := r.URL.Query().Get("revision_id")

	h.run(w, r, clientID, ns, func(tx *sql.Tx) (Envelope, error) {
		if err := h.coord.Engine().Delete(tx, clientID, ns, objectID, revisionID); err != nil {
			return nil, err
		}
		return Envelope{"namespace_id": ns, "object_id": objectID}, nil
	})
}

// Revisions handles GET /{ns}/{object_id}/revisions and
// GET /query/{ns}/{object_id}.
func (h *Handlers) Revisions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns := vars["ns"]
	objectID := vars["object_id"]
	clientID := clientIDOf(r)

	h.run(w, r, clientID, ns, func(tx *sql.Tx) (Envelope, error) {
		revisions, err := h.coord.Engine().ObjectRevisions(tx, clientID, ns, objectID)
		if err != nil {
			return nil, err
		}
		return Envelope{"namespace_id": ns, "object_id": objectID, "revisions": revisions}, nil
	})
}

// Tags handles GET/PATCH/PUT/POST /tags/{ns}/{object_id}: GET reads the
// current tag set, POST adds to it, PUT replaces it wholesale, and PATCH
// removes the named tags. The HTTP method table in spec.md §6 does not
// pin down which verb maps to which tag-mutation operation; this mapping
// is this service's own choice.
func (h *Handlers) Tags(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns := vars["ns"]
	objectID := vars["object_id"]
	clientID := clientIDOf(r)

	tags, err := store.ParseTagList(r.URL.Query().Get("tags"))
	if err != nil {
		RespondError(w, err)
		return
	}

	h.run(w, r, clientID, ns, func(tx *sql.Tx) (Envelope, error) {
		var result []string
		var err error
		switch r.Method {
		case http.MethodGet:
			result, err = h.coord.Engine().GetTags(tx, clientID, ns, objectID)
		case http.MethodPost:
			result, err = h.coord.Engine().AddTags(tx, clientID, ns, objectID, tags)
		case http.MethodPut:
			result, err = h.coord.Engine().ReplaceTags(tx, clientID, ns, objectID, tags)
		case http.MethodPatch:
			result, err = h.coord.Engine().RemoveTags(tx, clientID, ns, objectID, tags)
		}
		if err != nil {
			return nil, err
		}
		return Envelope{"namespace_id": ns, "object_id": objectID, "tags": result}, nil
	})
}

// NamespaceQuery handles GET /{ns} and GET /query/{ns}.
func (h *Handlers) NamespaceQuery(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns := vars["ns"]
	clientID := clientIDOf(r)
	tag := r.URL.Query().Get("tag")

	h.run(w, r, clientID, ns, func(tx *sql.Tx) (Envelope, error) {
		ids, err := h.coord.Engine().NamespaceQuery(tx, clientID, ns, tag)
		if err != nil {
			return nil, err
		}
		return Envelope{"namespace_id": ns, "object_ids": ids}, nil
	})
}

// ClearNamespace handles DELETE /{ns} and DELETE /clear/{ns}.
func (h *Handlers) ClearNamespace(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns := vars["ns"]
	clientID := clientIDOf(r)

	confirm := r.URL.Query().Get("confirm") == "true"
	tags, err := store.ParseTagList(r.URL.Query().Get("tags"))
	if err != nil {
		RespondError(w, err)
		return
	}

	h.run(w, r, clientID, ns, func(tx *sql.Tx) (Envelope, error) {
		if err := h.coord.Engine().ClearNamespace(tx, clientID, ns, tags, confirm); err != nil {
			return nil, err
		}
		return Envelope{"namespace_id": ns}, nil
	})
}

// ListMappings handles GET /mappings.
func (h *Handlers) ListMappings(w http.ResponseWriter, r *http.Request) {
	clientID := clientIDOf(r)
	namespaceID := r.URL.Query().Get("namespace_id")

	// ListMappings is a read-only query over existing mappings; it must not
	// resolve (and thereby provision) a mapping for a namespace_id filter
	// that doesn't exist yet, so it is not passed as ns here.
	h.run(w, r, clientID, "", func(tx *sql.Tx) (Envelope, error) {
		mappings, err := h.coord.Engine().ListMappings(tx, clientID, namespaceID)
		if err != nil {
			return nil, err
		}
		return Envelope{"mappings": mappings}, nil
	})
}
