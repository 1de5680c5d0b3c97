package store

import (
	"database/sql"
	"errors"
	"fmt"

	"objectstore/cache"
	"objectstore/logger"
)

// resolveMapping implements the Mapping Registry's resolve(client_id,
// namespace_id) contract:
//
//  1. Check the process-wide cache; a hit returns immediately.
//  2. Miss: read the Mapping table. If found, populate the cache and
//     return.
//  3. Not found: generate short suffixes until one is not present in the
//     Mapping table, insert (client_id, namespace_id, suffix, now), commit,
//     populate the cache, return.
//
// The per-key lock obtained from the cache serializes concurrent first-time
// resolves for the same key within this process; a UNIQUE(identifier_name)
// or PRIMARY KEY(client_id, namespace_id) violation from a concurrent
// writer in another process is handled by re-reading the committed row.
func (e *Engine) resolveMapping(tx *sql.Tx, mappingCache *cache.MappingCache, clientID, namespaceID string) (string, error) {
	key := cache.MappingKey{ClientID: clientID, NamespaceID: namespaceID}

	if identifier, ok := mappingCache.Get(key); ok {
		logger.Trace("mapping cache hit for %s/%s -> %s", clientID, namespaceID, identifier)
		return identifier, nil
	}

	unlock := mappingCache.Lock(key)
	defer unlock()

	// Re-check now that we hold the per-key lock: another goroutine may
	// have just finished resolving this exact key.
	if identifier, ok := mappingCache.Get(key); ok {
		return identifier, nil
	}

	identifier, err := readMappingIdentifier(tx, clientID, namespaceID)
	if err != nil {
		return "", err
	}

	if identifier == "" {
		identifier, err = insertNewMapping(tx, clientID, namespaceID)
		if err != nil {
			// A concurrent writer may have claimed this key first; adopt
			// its row if one is now visible.
			existing, readErr := readMappingIdentifier(tx, clientID, namespaceID)
			if readErr != nil || existing == "" {
				return "", err
			}
			identifier = existing
		}
	}

	mappingCache.Set(key, identifier)
	logger.Info("resolved mapping %s/%s -> %s", clientID, namespaceID, identifier)
	return identifier, nil
}

// readMappingIdentifier reads the identifier_name for (clientID,
// namespaceID), returning "" if no row exists.
func readMappingIdentifier(tx *sql.Tx, clientID, namespaceID string) (string, error) {
	var identifier string
	err := tx.QueryRow(
		fmt.Sprintf("SELECT identifier_name FROM %s WHERE client_id=? AND namespace_id=?", mappingTableName),
		clientID, namespaceID,
	).Scan(&identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return identifier, nil
}

// mappingIdentifierExists reports whether suffix is already claimed by some
// mapping row, used to avoid minting a colliding suffix.
func mappingIdentifierExists(tx *sql.Tx, suffix string) (bool, error) {
	var exists int
	err := tx.QueryRow(
		fmt.Sprintf("SELECT 1 FROM %s WHERE identifier_name=?", mappingTableName),
		suffix,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// insertNewMapping mints a fresh suffix, inserts the mapping row, and
// returns the suffix. The insert relies on the table's PRIMARY KEY and
// UNIQUE(identifier_name) constraints to serialize against concurrent
// writers in other processes; a constraint violation here is reported to
// the caller, who is expected to retry by re-reading (the coordinator's
// transaction is rolled back and the request may be retried).
func insertNewMapping(tx *sql.Tx, clientID, namespaceID string) (string, error) {
	const maxAttempts = 20
	var suffix string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := NewSuffix()
		if err != nil {
			return "", err
		}
		exists, err := mappingIdentifierExists(tx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			suffix = candidate
			break
		}
		logger.Warn("suffix collision on %q, retrying", candidate)
	}
	if suffix == "" {
		return "", fmt.Errorf("failed to mint a unique table suffix after %d attempts", maxAttempts)
	}

	_, err := tx.Exec(
		fmt.Sprintf("INSERT INTO %s (client_id, namespace_id, identifier_name, timestamp) VALUES (?, ?, ?, ?)", mappingTableName),
		clientID, namespaceID, suffix, now(),
	)
	if err != nil {
		return "", err
	}

	logger.Info("provisioned new mapping %s/%s -> %s", clientID, namespaceID, suffix)
	return suffix, nil
}
