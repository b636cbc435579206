package user

import (
	"context"
	"encoding/json"
	"fmt"
)

// Repository persists one document per user, partitioned by role.
type Repository interface {
	// Write stores an encoded document in rec.Role's partition under rec.ID,
	// replacing any existing document. rec.Path is ignored.
	Write(ctx context.Context, rec RawRecord) error
	// Load reads the document for id in role's partition. A missing document
	// reports false with a nil error.
	Load(ctx context.Context, id string, role Role) (User, bool, error)
	// Delete removes the document for id from whichever partition holds it.
	Delete(ctx context.Context, id string) (bool, error)
	// ListAll returns every document in role's partition without decoding it.
	ListAll(ctx context.Context, role Role) ([]RawRecord, error)
	// Count returns the number of regular files in role's partition.
	Count(ctx context.Context, role Role) (int, error)
}

// RawRecord is a stored document that has not been decoded into a User.
type RawRecord struct {
	ID   string
	Role Role
	Path string
	Data []byte
}

// NewRecord encodes u for storage.
func NewRecord(u User) (RawRecord, error) {
	data, err := Encode(u)
	if err != nil {
		return RawRecord{}, fmt.Errorf("encode user %s: %w", u.Base().ID, err)
	}
	return RawRecord{ID: u.Base().ID, Role: u.Role(), Data: data}, nil
}

// Field extracts a top-level string field without decoding the whole
// document. It reports false when the document is malformed or the field is
// absent or not a string.
func (r RawRecord) Field(name string) (string, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(r.Data, &doc); err != nil {
		return "", false
	}
	raw, ok := doc[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Decode parses the record as a full User.
func (r RawRecord) Decode() (User, error) {
	return Decode(r.Role, r.Data)
}
