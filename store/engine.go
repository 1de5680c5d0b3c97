package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"objectstore/cache"
	"objectstore/logger"
	"objectstore/models"
)

// Engine is the Object Store Engine: it implements store, retrieve,
// delete, namespace_query, object_revisions, clear_namespace, and
// list_mappings against a single *sql.DB, coordinating the Mapping
// Registry, Schema Provisioner, and Tag Index described by the component
// design.
//
// Engine itself holds no per-request state; every operation takes the
// *sql.Tx the Request Coordinator opened for the current request.
type Engine struct {
	db           *sql.DB
	mappingCache *cache.MappingCache
}

// NewEngine constructs an Engine backed by db, with mappingCache as its
// process-wide Mapping Registry cache.
func NewEngine(db *sql.DB, mappingCache *cache.MappingCache) *Engine {
	return &Engine{db: db, mappingCache: mappingCache}
}

// DB returns the underlying *sql.DB, for use by the Request Coordinator to
// open per-request transactions.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// now formats the current time the way every timestamp column in this
// schema is stored: lexicographically sortable, so "ORDER BY timestamp
// DESC" agrees with chronological order.
func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

// ensure is the Schema Provisioner's ensure(client_id, namespace_id?)
// operation. It idempotently creates the Mapping table, and — if
// namespaceID is non-empty — resolves its physical suffix via the Mapping
// Registry and idempotently creates that namespace's object and tag
// tables. Passing an empty namespaceID (used by ListMappings) ensures only
// the mapping table and returns empty table names.
func (e *Engine) ensure(tx *sql.Tx, clientID, namespaceID string) (objectTable, tagTable string, err error) {
	if err = ensureMappingTable(tx); err != nil {
		return "", "", fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	if namespaceID == "" {
		return "", "", nil
	}

	suffix, err := e.resolveMapping(tx, e.mappingCache, clientID, namespaceID)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", models.ErrInternal, err)
	}

	objectTable, tagTable, err = ensureNamespaceTables(tx, suffix)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	return objectTable, tagTable, nil
}

// ResolveMappingIdentifier exposes the Mapping Registry's resolved
// physical-table suffix for (clientID, namespaceID), for callers outside
// the engine that want to report it — e.g. the HTTP layer's diagnostic
// "which table backs this namespace" response header. Safe to call
// alongside any other engine operation in the same transaction: a
// resolved mapping is cached, so this never re-provisions.
func (e *Engine) ResolveMappingIdentifier(tx *sql.Tx, clientID, namespaceID string) (string, error) {
	if err := ensureMappingTable(tx); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	return e.resolveMapping(tx, e.mappingCache, clientID, namespaceID)
}

// headRow is the subset of an Object Revision row the engine reads most
// often: enough to decide content-dedup and to answer retrieve.
type headRow struct {
	ObjectJSON string
	RevisionID string
	Timestamp  string
}

// selectHead returns the head revision row for object_id — the one with
// the greatest timestamp — or (nil, nil) if the object has no revisions.
func selectHead(tx *sql.Tx, objectTable, clientID, namespaceID, objectID string) (*headRow, error) {
	row := tx.QueryRow(
		fmt.Sprintf(`SELECT object_json, revision_id, timestamp FROM %s
			WHERE client_id=? AND namespace_id=? AND object_id=?
			ORDER BY timestamp DESC LIMIT 1`, objectTable),
		clientID, namespaceID, objectID,
	)
	var h headRow
	if err := row.Scan(&h.ObjectJSON, &h.RevisionID, &h.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

// jsonEqual reports whether a and b are the same JSON document under
// semantic equality: object key order is irrelevant, array element order
// is significant. Both arguments must already be valid JSON.
func jsonEqual(a, b string) (bool, error) {
	var av, bv interface{}
	if err := json.Unmarshal([]byte(a), &av); err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(b), &bv); err != nil {
		return false, err
	}
	return reflect.DeepEqual(av, bv), nil
}

// Store implements the store(client_id, ns, object_id?, tags?, payload)
// contract of the Object Store Engine.
//
// If the head revision's body is structurally equal to payload, the head
// revision is reused (new_version=false); otherwise a new revision is
// minted (new_version=true). Submitted tags are inserted (insert-or-ignore)
// regardless of whether a new revision was created, and the tag snapshot
// is refreshed on every revision row of the object.
func (e *Engine) Store(tx *sql.Tx, clientID, namespaceID, objectID string, tags []string, payload json.RawMessage) (*models.StoreResult, error) {
	if namespaceID == "" || len(payload) == 0 {
		return nil, fmt.Errorf("namespace and payload are required: %w", models.ErrInvalidArgument)
	}
	var probe interface{}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", models.ErrInvalidArgument)
	}
	canonical, err := json.Marshal(probe)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	objectJSON := string(canonical)

	objectTable, tagTable, err := e.ensure(tx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}

	// objectIDUse is the object id this store call actually writes to:
	// the client-supplied one, or a freshly minted one when absent. Every
	// downstream reference — including the tag inserts below — uses this
	// value, never the possibly-empty objectID the caller passed in. The
	// distilled implementation this service is based on used the raw
	// objectID there, which would attach tags to an empty-string object
	// id whenever the client omitted object_id on a content-identical
	// restore; that is treated as a bug here and corrected.
	objectIDUse := objectID
	if objectIDUse == "" {
		objectIDUse = NewObjectID()
	}

	head, err := selectHead(tx, objectTable, clientID, namespaceID, objectIDUse)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}

	var revisionID, timestamp string
	newVersion := false

	if head != nil {
		equal, err := jsonEqual(head.ObjectJSON, objectJSON)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
		if equal {
			revisionID = head.RevisionID
			timestamp = head.Timestamp
			logger.Debug("store %s/%s: payload matches head revision %s", namespaceID, objectIDUse, revisionID)
		} else {
			newVersion = true
		}
	} else {
		newVersion = true
	}

	if newVersion {
		revisionID = NewRevisionID()
		timestamp = now()
		logger.Debug("store %s/%s: new revision %s", namespaceID, objectIDUse, revisionID)
		_, err = tx.Exec(
			fmt.Sprintf(`INSERT INTO %s (client_id, namespace_id, object_id, revision_id, object_json, object_tags, timestamp)
				VALUES (?, ?, ?, ?, ?, '[]', ?)`, objectTable),
			clientID, namespaceID, objectIDUse, revisionID, objectJSON, timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
	}

	for _, tag := range tags {
		if _, err := tx.Exec(
			fmt.Sprintf(`INSERT OR IGNORE INTO %s (client_id, namespace_id, object_id, object_tag, timestamp) VALUES (?, ?, ?, ?, ?)`, tagTable),
			clientID, namespaceID, objectIDUse, tag, now(),
		); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
	}

	currentTags, err := refreshTagSnapshot(tx, objectTable, tagTable, clientID, namespaceID, objectIDUse)
	if err != nil {
		return nil, err
	}

	return &models.StoreResult{
		ObjectID:        objectIDUse,
		RevisionID:      revisionID,
		NewVersion:      newVersion,
		Tags:            currentTags,
		ObjectTimestamp: timestamp,
	}, nil
}

// Retrieve implements the retrieve(client_id, ns, object_id, revision_id?,
// tag?, prop?) contract.
func (e *Engine) Retrieve(tx *sql.Tx, clientID, namespaceID, objectID, revisionID, tag, prop string) (*models.RetrieveResult, interface{}, error) {
	objectTable, tagTable, err := e.ensure(tx, clientID, namespaceID)
	if err != nil {
		return nil, nil, err
	}

	query := fmt.Sprintf(`SELECT o.object_id, o.revision_id, o.object_json, o.object_tags, o.timestamp
		FROM %s o`, objectTable)
	args := []interface{}{clientID, namespaceID, objectID}
	where := "WHERE o.client_id=? AND o.namespace_id=? AND o.object_id=?"

	if revisionID != "" {
		where += " AND o.revision_id=?"
		args = append(args, revisionID)
	}
	if tag != "" {
		query += fmt.Sprintf(` INNER JOIN %s t
			ON o.client_id = t.client_id AND o.namespace_id = t.namespace_id AND o.object_id = t.object_id`, tagTable)
		where += " AND t.object_tag=?"
		args = append(args, tag)
	}
	query += " " + where + " ORDER BY o.timestamp DESC LIMIT 1"

	row := tx.QueryRow(query, args...)
	var gotObjectID, gotRevisionID, objectJSON, tagsJSON, timestamp string
	if err := row.Scan(&gotObjectID, &gotRevisionID, &objectJSON, &tagsJSON, &timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("object %s/%s not found: %w", namespaceID, objectID, models.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}

	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	var body interface{}
	if err := json.Unmarshal([]byte(objectJSON), &body); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}

	result := &models.RetrieveResult{
		ClientID:        clientID,
		NamespaceID:      namespaceID,
		ObjectID:        gotObjectID,
		RevisionID:      gotRevisionID,
		Object:          body,
		ObjectTags:      tags,
		ObjectTimestamp: timestamp,
	}

	if prop == "revisions" {
		revisions, err := listRevisions(tx, objectTable, clientID, namespaceID, gotObjectID)
		if err != nil {
			return nil, nil, err
		}
		result.Revisions = revisions
	}

	if prop == "" {
		return result, nil, nil
	}

	fields := result.AsMap()
	value, ok := fields[prop]
	if !ok {
		return nil, nil, fmt.Errorf("property %q not valid: %w", prop, models.ErrInvalidArgument)
	}
	return result, value, nil
}

// listRevisions returns every revision of objectID, ordered newest first.
func listRevisions(tx *sql.Tx, objectTable, clientID, namespaceID, objectID string) ([]models.RevisionSummary, error) {
	rows, err := tx.Query(
		fmt.Sprintf(`SELECT revision_id, timestamp FROM %s
			WHERE client_id=? AND namespace_id=? AND object_id=? ORDER BY timestamp DESC`, objectTable),
		clientID, namespaceID, objectID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	defer rows.Close()

	var revisions []models.RevisionSummary
	for rows.Next() {
		var r models.RevisionSummary
		if err := rows.Scan(&r.RevisionID, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// ObjectRevisions implements object_revisions(client_id, ns, object_id).
func (e *Engine) ObjectRevisions(tx *sql.Tx, clientID, namespaceID, objectID string) ([]models.RevisionSummary, error) {
	objectTable, _, err := e.ensure(tx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}
	revisions, err := listRevisions(tx, objectTable, clientID, namespaceID, objectID)
	if err != nil {
		return nil, err
	}
	if len(revisions) == 0 {
		return nil, fmt.Errorf("no revisions for %s/%s: %w", namespaceID, objectID, models.ErrNotFound)
	}
	return revisions, nil
}

// objectExists reports whether objectID has any revision in objectTable.
func objectExists(tx *sql.Tx, objectTable, clientID, namespaceID, objectID string) (bool, error) {
	var exists int
	err := tx.QueryRow(
		fmt.Sprintf(`SELECT 1 FROM %s WHERE client_id=? AND namespace_id=? AND object_id=? LIMIT 1`, objectTable),
		clientID, namespaceID, objectID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete implements delete(client_id, ns, object_id, revision_id?).
func (e *Engine) Delete(tx *sql.Tx, clientID, namespaceID, objectID, revisionID string) error {
	objectTable, tagTable, err := e.ensure(tx, clientID, namespaceID)
	if err != nil {
		return err
	}

	exists, err := objectExists(tx, objectTable, clientID, namespaceID, objectID)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	if !exists {
		return fmt.Errorf("object %s/%s not found: %w", namespaceID, objectID, models.ErrNotFound)
	}

	if revisionID != "" {
		if _, err := tx.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE client_id=? AND namespace_id=? AND object_id=? AND revision_id=?`, objectTable),
			clientID, namespaceID, objectID, revisionID,
		); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
	} else {
		if _, err := tx.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE client_id=? AND namespace_id=? AND object_id=?`, objectTable),
			clientID, namespaceID, objectID,
		); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
	}

	remains, err := objectExists(tx, objectTable, clientID, namespaceID, objectID)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	if !remains {
		logger.Debug("last revision of %s/%s deleted, purging tag bindings", namespaceID, objectID)
		if _, err := tx.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE client_id=? AND namespace_id=? AND object_id=?`, tagTable),
			clientID, namespaceID, objectID,
		); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
	}

	return nil
}

// NamespaceQuery implements namespace_query(client_id, ns, tag?).
func (e *Engine) NamespaceQuery(tx *sql.Tx, clientID, namespaceID, tag string) ([]string, error) {
	objectTable, tagTable, err := e.ensure(tx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT DISTINCT o.object_id FROM %s o`, objectTable)
	args := []interface{}{clientID, namespaceID}
	where := " WHERE o.client_id=? AND o.namespace_id=?"
	if tag != "" {
		query += fmt.Sprintf(` INNER JOIN %s t
			ON o.client_id = t.client_id AND o.namespace_id = t.namespace_id AND o.object_id = t.object_id`, tagTable)
		where += " AND t.object_tag=?"
		args = append(args, tag)
	}
	query += where

	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClearNamespace implements clear_namespace(client_id, ns, tags?, confirm).
func (e *Engine) ClearNamespace(tx *sql.Tx, clientID, namespaceID string, tags []string, confirm bool) error {
	if !confirm {
		return fmt.Errorf("clear_namespace requires confirm=true: %w", models.ErrInvalidArgument)
	}

	objectTable, tagTable, err := e.ensure(tx, clientID, namespaceID)
	if err != nil {
		return err
	}

	if len(tags) == 0 {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE client_id=? AND namespace_id=?`, tagTable), clientID, namespaceID); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE client_id=? AND namespace_id=?`, objectTable), clientID, namespaceID); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
		return nil
	}

	// With tags: delete bindings for each named tag, then delete object
	// rows whose object_id appears in the (now-deleted) tag table under
	// any of those tags. Unlike the implementation this was distilled
	// from — which referenced the unsuffixed literal table names
	// "objects"/"objects_tags" in this subquery, a bug — this uses the
	// resolved, suffixed physical tables throughout, so the subquery must
	// run against a snapshot of matching object ids captured before the
	// tag rows are deleted.
	placeholders := make([]string, len(tags))
	args := make([]interface{}, 0, len(tags)+2)
	args = append(args, clientID, namespaceID)
	for i, t := range tags {
		placeholders[i] = "?"
		args = append(args, t)
	}
	matchSQL := fmt.Sprintf(
		`SELECT DISTINCT object_id FROM %s WHERE client_id=? AND namespace_id=? AND object_tag IN (%s)`,
		tagTable, joinPlaceholders(placeholders),
	)
	rows, err := tx.Query(matchSQL, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	var objectIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
		objectIDs = append(objectIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInternal, err)
	}

	for _, tag := range tags {
		if _, err := tx.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE client_id=? AND namespace_id=? AND object_tag=?`, tagTable),
			clientID, namespaceID, tag,
		); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
	}

	for _, objectID := range objectIDs {
		if _, err := tx.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE client_id=? AND namespace_id=? AND object_id=?`, objectTable),
			clientID, namespaceID, objectID,
		); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
	}

	return nil
}

// joinPlaceholders joins "?" placeholders with ", " for an IN (...) clause.
func joinPlaceholders(placeholders []string) string {
	out := ""
	for i, p := range placeholders {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// ListMappings implements list_mappings(client_id, namespace_id?).
func (e *Engine) ListMappings(tx *sql.Tx, clientID, namespaceID string) ([]models.Mapping, error) {
	if _, _, err := e.ensure(tx, clientID, ""); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT client_id, namespace_id, identifier_name, timestamp FROM %s`, mappingTableName)
	var args []interface{}
	if namespaceID != "" {
		query += " WHERE namespace_id=?"
		args = append(args, namespaceID)
	}
	query += " ORDER BY client_id ASC, namespace_id ASC"

	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	defer rows.Close()

	var mappings []models.Mapping
	for rows.Next() {
		var m models.Mapping
		if err := rows.Scan(&m.ClientID, &m.NamespaceID, &m.IdentifierName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("no mappings found: %w", models.ErrNotFound)
	}
	return mappings, nil
}
