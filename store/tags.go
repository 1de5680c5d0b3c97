package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"objectstore/logger"
	"objectstore/models"
)

// refreshTagSnapshot is the Tag Index's shared refresh routine: it reads
// the current set of tag bindings for (clientID, namespaceID, objectID)
// from tagTable and rewrites the denormalized object_tags JSON column on
// every revision row of that object in objectTable, inside the caller's
// transaction. Every operation that mutates the tag table — store,
// add/replace/remove tags — ends by calling this, so object_tags never
// drifts from the normalized tag table.
//
// It returns the tag list it just wrote, sorted the way the tag table
// itself is read (insertion order of the underlying SELECT, which SQLite
// does not guarantee beyond rowid order — callers needing a stable order
// should sort the result themselves).
func refreshTagSnapshot(tx *sql.Tx, objectTable, tagTable, clientID, namespaceID, objectID string) ([]string, error) {
	rows, err := tx.Query(
		fmt.Sprintf(`SELECT object_tag FROM %s WHERE client_id=? AND namespace_id=? AND object_id=?`, tagTable),
		clientID, namespaceID, objectID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	tags := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
		tags = append(tags, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}

	encoded, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}

	if _, err := tx.Exec(
		fmt.Sprintf(`UPDATE %s SET object_tags=? WHERE client_id=? AND namespace_id=? AND object_id=?`, objectTable),
		string(encoded), clientID, namespaceID, objectID,
	); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}

	logger.Debug("refreshed tag snapshot for %s/%s: %v", namespaceID, objectID, tags)
	return tags, nil
}

// AddTags implements add_tags_to_object(client_id, ns, object_id, tags):
// insert-or-ignore each tag binding, then refresh the snapshot.
func (e *Engine) AddTags(tx *sql.Tx, clientID, namespaceID, objectID string, tags []string) ([]string, error) {
	objectTable, tagTable, err := e.ensure(tx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}
	exists, err := objectExists(tx, objectTable, clientID, namespaceID, objectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	if !exists {
		return nil, fmt.Errorf("object %s/%s not found: %w", namespaceID, objectID, models.ErrNotFound)
	}

	for _, tag := range tags {
		if _, err := tx.Exec(
			fmt.Sprintf(`INSERT OR IGNORE INTO %s (client_id, namespace_id, object_id, object_tag, timestamp) VALUES (?, ?, ?, ?, ?)`, tagTable),
			clientID, namespaceID, objectID, tag, now(),
		); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
	}

	return refreshTagSnapshot(tx, objectTable, tagTable, clientID, namespaceID, objectID)
}

// ReplaceTags implements a full tag-set replacement: every existing binding
// for the object is removed and the given tags are inserted fresh, then the
// snapshot is refreshed. Used when a client PUTs the complete tag set
// rather than PATCHing it.
func (e *Engine) ReplaceTags(tx *sql.Tx, clientID, namespaceID, objectID string, tags []string) ([]string, error) {
	objectTable, tagTable, err := e.ensure(tx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}
	exists, err := objectExists(tx, objectTable, clientID, namespaceID, objectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	if !exists {
		return nil, fmt.Errorf("object %s/%s not found: %w", namespaceID, objectID, models.ErrNotFound)
	}

	if _, err := tx.Exec(
		fmt.Sprintf(`DELETE FROM %s WHERE client_id=? AND namespace_id=? AND object_id=?`, tagTable),
		clientID, namespaceID, objectID,
	); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}

	for _, tag := range tags {
		if _, err := tx.Exec(
			fmt.Sprintf(`INSERT OR IGNORE INTO %s (client_id, namespace_id, object_id, object_tag, timestamp) VALUES (?, ?, ?, ?, ?)`, tagTable),
			clientID, namespaceID, objectID, tag, now(),
		); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
	}

	return refreshTagSnapshot(tx, objectTable, tagTable, clientID, namespaceID, objectID)
}

// RemoveTags implements remove_tags_from_object(client_id, ns, object_id,
// tags): delete each named binding, then refresh the snapshot. Removing a
// tag that was never bound is not an error. If tags is empty, every binding
// for the object is removed, mirroring the "or all if omitted" half of the
// contract.
func (e *Engine) RemoveTags(tx *sql.Tx, clientID, namespaceID, objectID string, tags []string) ([]string, error) {
	objectTable, tagTable, err := e.ensure(tx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}
	exists, err := objectExists(tx, objectTable, clientID, namespaceID, objectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	if !exists {
		return nil, fmt.Errorf("object %s/%s not found: %w", namespaceID, objectID, models.ErrNotFound)
	}

	if len(tags) == 0 {
		if _, err := tx.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE client_id=? AND namespace_id=? AND object_id=?`, tagTable),
			clientID, namespaceID, objectID,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
		return refreshTagSnapshot(tx, objectTable, tagTable, clientID, namespaceID, objectID)
	}

	for _, tag := range tags {
		if _, err := tx.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE client_id=? AND namespace_id=? AND object_id=? AND object_tag=?`, tagTable),
			clientID, namespaceID, objectID, tag,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
	}

	return refreshTagSnapshot(tx, objectTable, tagTable, clientID, namespaceID, objectID)
}

// GetTags implements get_tags_of_object(client_id, ns, object_id).
func (e *Engine) GetTags(tx *sql.Tx, clientID, namespaceID, objectID string) ([]string, error) {
	objectTable, tagTable, err := e.ensure(tx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}
	exists, err := objectExists(tx, objectTable, clientID, namespaceID, objectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	if !exists {
		return nil, fmt.Errorf("object %s/%s not found: %w", namespaceID, objectID, models.ErrNotFound)
	}

	rows, err := tx.Query(
		fmt.Sprintf(`SELECT object_tag FROM %s WHERE client_id=? AND namespace_id=? AND object_id=?`, tagTable),
		clientID, namespaceID, objectID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInternal, err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
