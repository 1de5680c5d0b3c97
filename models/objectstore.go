package models

// Mapping associates a (client_id, namespace_id) pair with the short
// physical-table suffix that backs it. Primary key (ClientID, NamespaceID);
// IdentifierName is unique across the mapping table.
type Mapping struct {
	ClientID       string `json:"client_id"`
	NamespaceID    string `json:"namespace_id"`
	IdentifierName string `json:"identifier_name"`
	CreatedAt      string `json:"timestamp"`
}

// ObjectRevision is one historical version of an object's JSON body.
// Primary key (ClientID, NamespaceID, ObjectID, RevisionID).
type ObjectRevision struct {
	ClientID    string
	NamespaceID string
	ObjectID    string
	RevisionID  string
	ObjectJSON  string
	// TagsSnapshot is the JSON-array serialization of the object's current
	// tag set, denormalized onto every revision row (see Tag Index).
	TagsSnapshot string
	CreatedAt    string
}

// TagBinding is an object-level (not revision-level) tag association.
// Primary key (ClientID, NamespaceID, ObjectID, Tag).
type TagBinding struct {
	ClientID    string
	NamespaceID string
	ObjectID    string
	Tag         string
	CreatedAt   string
}

// RevisionSummary is the {revision_id, timestamp} pair returned by
// object_revisions and the "revisions" property of retrieve.
type RevisionSummary struct {
	RevisionID string `json:"revision_id"`
	Timestamp  string `json:"timestamp"`
}

// StoreResult is the response payload of a store operation.
type StoreResult struct {
	ObjectID        string   `json:"object_id"`
	RevisionID      string   `json:"revision_id"`
	NewVersion      bool     `json:"new_version"`
	Tags            []string `json:"tags"`
	ObjectTimestamp string   `json:"object_timestamp"`
}

// RetrieveResult is the full response envelope of a retrieve operation
// before any "prop" projection is applied.
type RetrieveResult struct {
	ClientID        string            `json:"client_id"`
	NamespaceID     string            `json:"namespace_id"`
	ObjectID        string            `json:"object_id"`
	RevisionID      string            `json:"revision_id"`
	Object          interface{}       `json:"object"`
	ObjectTags      []string          `json:"object_tags"`
	ObjectTimestamp string            `json:"object_timestamp"`
	Revisions       []RevisionSummary `json:"revisions,omitempty"`
}

// AsMap exposes RetrieveResult's fields by name so the "prop" projection of
// retrieve (spec'd as "if prop names another field of the response
// envelope, return that field alone") can look one up generically.
func (r *RetrieveResult) AsMap() map[string]interface{} {
	m := map[string]interface{}{
		"client_id":        r.ClientID,
		"namespace_id":     r.NamespaceID,
		"object_id":        r.ObjectID,
		"revision_id":      r.RevisionID,
		"object":           r.Object,
		"object_tags":      r.ObjectTags,
		"object_timestamp": r.ObjectTimestamp,
	}
	if r.Revisions != nil {
		m["revisions"] = r.Revisions
	}
	return m
}
