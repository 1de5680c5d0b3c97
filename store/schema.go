package store

import (
	"database/sql"
	"fmt"

	"objectstore/logger"
)

// mappingTableName is the fixed name of the Mapping table; it is never
// suffixed because it is shared across every (client_id, namespace_id).
const mappingTableName = "objects_mapping"

// objectTableName returns the physical table name for a namespace's object
// revisions. suffix must already have passed isValidSuffix.
func objectTableName(suffix string) string {
	return "objects_" + suffix
}

// tagTableName returns the physical table name for a namespace's tag
// bindings. suffix must already have passed isValidSuffix.
func tagTableName(suffix string) string {
	return "objects_tags_" + suffix
}

// ensureMappingTable idempotently creates the Mapping table. Safe to call
// on every request; CREATE TABLE IF NOT EXISTS is a no-op once the table
// exists.
func ensureMappingTable(tx *sql.Tx) error {
	logger.Debug("ensuring mapping table %s exists", mappingTableName)
	_, err := tx.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			client_id TEXT NOT NULL,
			namespace_id TEXT NOT NULL,
			identifier_name TEXT NOT NULL UNIQUE,
			timestamp DATETIME NOT NULL,
			PRIMARY KEY(client_id, namespace_id)
		)`, mappingTableName))
	return err
}

// ensureNamespaceTables idempotently creates the object and tag tables for
// the physical suffix backing (client_id, namespace_id). suffix is checked
// against isValidSuffix here before it is interpolated into any DDL; an
// invalid suffix is refused with an error.
func ensureNamespaceTables(tx *sql.Tx, suffix string) (objectTable, tagTable string, err error) {
	if !isValidSuffix(suffix) {
		return "", "", fmt.Errorf("refusing to provision tables for invalid suffix %q", suffix)
	}

	objectTable = objectTableName(suffix)
	tagTable = tagTableName(suffix)

	logger.Debug("ensuring namespace tables %s, %s exist", objectTable, tagTable)

	if _, err = tx.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			client_id TEXT NOT NULL,
			namespace_id TEXT NOT NULL,
			object_id TEXT NOT NULL,
			revision_id TEXT NOT NULL,
			object_json TEXT NOT NULL,
			object_tags TEXT NOT NULL DEFAULT '[]',
			timestamp DATETIME NOT NULL,
			PRIMARY KEY(client_id, namespace_id, object_id, revision_id)
		)`, objectTable)); err != nil {
		return "", "", err
	}

	if _, err = tx.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			client_id TEXT NOT NULL,
			namespace_id TEXT NOT NULL,
			object_id TEXT NOT NULL,
			object_tag TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			PRIMARY KEY(client_id, namespace_id, object_id, object_tag)
		)`, tagTable)); err != nil {
		return "", "", err
	}

	return objectTable, tagTable, nil
}
