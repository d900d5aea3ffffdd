package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/tieenbuii/WEB-API/internal/domain"
)

// Now is the clock used for timestamps. Tests may replace it.
var Now = func() time.Time { return time.Now().UTC() }

// PrepareCreate copies doc and fills the id, timestamps and version.
func PrepareCreate(doc domain.Document) domain.Document {
	out := doc.Clone()
	if out == nil {
		out = domain.Document{}
	}
	if out.ID() == "" {
		out[domain.FieldID] = uuid.NewString()
	}
	now := Now()
	if _, ok := out[domain.FieldCreatedAt]; !ok {
		out[domain.FieldCreatedAt] = now
	}
	if _, ok := out[domain.FieldUpdatedAt]; !ok {
		out[domain.FieldUpdatedAt] = now
	}
	out[domain.FieldVersion] = int64(0)
	return out
}

// PreparePatch copies patch without immutable keys and stamps updatedAt
// unless the caller supplied one.
func PreparePatch(patch domain.Document) domain.Document {
	out := patch.Without(domain.FieldID, domain.FieldCreatedAt, domain.FieldVersion, "_id")
	if _, ok := out[domain.FieldUpdatedAt]; !ok {
		out[domain.FieldUpdatedAt] = Now()
	}
	return out
}

// PrepareSave copies doc with a bumped version.
func PrepareSave(doc domain.Document) domain.Document {
	out := doc.Clone()
	v, _ := out.Int(domain.FieldVersion)
	out[domain.FieldVersion] = v + 1
	return out
}
