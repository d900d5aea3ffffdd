package resource

import (
	"context"
	"strings"
	"time"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	"github.com/tieenbuii/WEB-API/pkg/slug"
)

type productHooks struct{}

var unescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">")

func (productHooks) BeforeCreate(_ context.Context, op *Op) error {
	op.Body["createdBy"] = op.Caller.ID
	if op.Body.String("slug") == "" {
		op.Body["slug"] = slug.Generate(op.Body.String("title"))
	}
	if _, ok := op.Body[fieldInventory]; !ok {
		op.Body[fieldInventory] = int64(0)
	}
	for k, v := range domain.Summarize(nil).Patch() {
		if _, ok := op.Body[k]; !ok {
			op.Body[k] = v
		}
	}
	return nil
}

// BeforeUpdate stamps the editor and restores markup that the admin editor
// escapes. Product edits skip schema validation.
func (productHooks) BeforeUpdate(_ context.Context, op *Op) error {
	op.Body["updatedBy"] = op.Caller.ID
	op.Body[domain.FieldUpdatedAt] = store.Now().Add(-time.Second)
	if desc, ok := op.Body["description"].(string); ok {
		op.Body["description"] = unescaper.Replace(desc)
	}
	if title := op.Body.String("title"); title != "" && op.Body.String("slug") == "" {
		op.Body["slug"] = slug.Generate(title)
	}
	op.Validate = false
	return nil
}
