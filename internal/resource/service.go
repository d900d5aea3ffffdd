// Package resource implements the generic create, read, update, delete,
// listing and table operations shared by every entity, dispatching
// entity-specific side effects to hooks registered in a Registry.
package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/query"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
	"github.com/tieenbuii/WEB-API/pkg/pagination"
)

// Service runs resource operations.
type Service struct {
	registry  *Registry
	events    Publisher
	queryOpts query.Options
	logger    *slog.Logger
}

// NewService creates a service. events may be nil.
func NewService(registry *Registry, events Publisher, queryOpts query.Options, logger *slog.Logger) *Service {
	return &Service{
		registry:  registry,
		events:    events,
		queryOpts: queryOpts,
		logger:    logger,
	}
}

// Written is the outcome of a create or update.
type Written struct {
	Doc domain.Document
	// Summary replaces Doc in the response when set.
	Summary map[string]any
}

// Create persists a new record after the entity's before hooks ran.
func (s *Service) Create(ctx context.Context, e domain.Entity, req Request) (w Written, err error) {
	defer func() { operationsTotal.WithLabelValues(string(e), "create", outcome(err)).Inc() }()

	d, err := s.registry.Lookup(e)
	if err != nil {
		return Written{}, err
	}
	op := newOp(e, req)

	if h, ok := d.Hooks.(BeforeCreator); ok {
		if err := h.BeforeCreate(ctx, op); err != nil {
			s.rollback(ctx, op)
			return Written{}, err
		}
	}

	doc, err := d.Accessor.Create(ctx, op.Body)
	if err != nil {
		s.rollback(ctx, op)
		return Written{}, fmt.Errorf("create %s: %w", e, err)
	}
	op.Result, op.ID = doc, doc.ID()

	if h, ok := d.Hooks.(AfterCreator); ok {
		if err := h.AfterCreate(ctx, op); err != nil {
			return Written{}, err
		}
	}

	s.publish(ctx, e, ActionCreated, op.Result)
	s.logger.InfoContext(ctx, "document created",
		slog.String("entity", string(e)),
		slog.String("id", op.ID),
	)
	return Written{Doc: redact(d, op.Result), Summary: op.Summary}, nil
}

// Get returns one record with its relations expanded.
func (s *Service) Get(ctx context.Context, e domain.Entity, id string) (domain.Document, error) {
	d, err := s.registry.Lookup(e)
	if err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, d, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", e, id, err)
	}
	doc, err = s.populate(ctx, d.Populate, doc)
	if err != nil {
		return nil, err
	}
	return redact(d, doc), nil
}

// load returns the record bound to ctx by the permission gate when it is the
// one asked for, and reads it from the accessor otherwise.
func (s *Service) load(ctx context.Context, d *Descriptor, id string) (domain.Document, error) {
	if h, ok := d.Hooks.(ContextBinder); ok {
		if doc, ok := h.Bound(ctx); ok && doc.ID() == id {
			return doc.Clone(), nil
		}
	}
	return d.Accessor.FindByID(ctx, id)
}

// ListRequest is a getAll call.
type ListRequest struct {
	ParentID string
	Values   url.Values
}

// ListResult is one page of records and its position.
type ListResult struct {
	Docs []domain.Document
	// Paged is set when the request named a page.
	Paged       bool
	CurrentPage int
	TotalPage   int
	// Overflow is set when the requested page lies past the last one.
	Overflow bool
	// Aggregates holds parent aggregates for nested listings that have them.
	Aggregates domain.Document
}

// List runs the query pipeline for e.
func (s *Service) List(ctx context.Context, e domain.Entity, req ListRequest) (res ListResult, err error) {
	defer func() { operationsTotal.WithLabelValues(string(e), "list", outcome(err)).Inc() }()

	d, err := s.registry.Lookup(e)
	if err != nil {
		return ListResult{}, err
	}

	base := store.Filter{}
	if req.ParentID != "" && d.ParentField != "" {
		base[d.ParentField] = req.ParentID
	}
	if h, ok := d.Hooks.(BaseFilterer); ok {
		for k, v := range h.BaseFilter() {
			base[k] = v
		}
	}

	q, page, err := query.Build(req.Values, base, s.queryOpts)
	if err != nil {
		return ListResult{}, err
	}
	docs, err := d.Accessor.Find(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list %s: %w", e, err)
	}
	for i := range docs {
		if docs[i], err = s.populate(ctx, d.ListPopulate, docs[i]); err != nil {
			return ListResult{}, err
		}
		docs[i] = redact(d, docs[i])
	}

	res = ListResult{Docs: docs, TotalPage: 1, Paged: req.Values.Has("page")}
	if res.Paged {
		res.CurrentPage = page.Page
	}

	if h, ok := d.Hooks.(ParentSummarizer); ok && req.ParentID != "" {
		agg, total, err := h.SummarizeParent(ctx, req.ParentID)
		if err != nil {
			return ListResult{}, err
		}
		res.Aggregates = agg
		if res.Paged {
			res.locate(total, page)
		}
		return res, nil
	}

	if res.Paged {
		total, err := d.Accessor.Count(ctx, q.Filter)
		if err != nil {
			return ListResult{}, fmt.Errorf("count %s: %w", e, err)
		}
		res.locate(total, page)
	}
	return res, nil
}

func (r *ListResult) locate(total int64, page pagination.Params) {
	w := pagination.Locate(total, page)
	r.TotalPage = w.TotalPage
	r.Overflow = w.Overflow
}

// Update patches a record.
func (s *Service) Update(ctx context.Context, e domain.Entity, req Request) (w Written, err error) {
	defer func() { operationsTotal.WithLabelValues(string(e), "update", outcome(err)).Inc() }()

	d, err := s.registry.Lookup(e)
	if err != nil {
		return Written{}, err
	}
	op := newOp(e, req)

	if h, ok := d.Hooks.(BeforeUpdater); ok {
		if err := h.BeforeUpdate(ctx, op); err != nil {
			s.rollback(ctx, op)
			return Written{}, err
		}
	}

	doc, err := d.Accessor.FindByIDAndUpdate(ctx, op.ID, op.Body, store.UpdateOptions{Validate: op.Validate})
	if err != nil {
		s.rollback(ctx, op)
		return Written{}, fmt.Errorf("update %s %s: %w", e, op.ID, err)
	}
	op.Result = doc

	if h, ok := d.Hooks.(AfterUpdater); ok {
		if err := h.AfterUpdate(ctx, op); err != nil {
			return Written{}, err
		}
	}

	s.publish(ctx, e, ActionUpdated, op.Result)
	return Written{Doc: redact(d, op.Result), Summary: op.Summary}, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, e domain.Entity, req Request) (err error) {
	defer func() { operationsTotal.WithLabelValues(string(e), "delete", outcome(err)).Inc() }()

	d, err := s.registry.Lookup(e)
	if err != nil {
		return err
	}
	op := newOp(e, req)

	if h, ok := d.Hooks.(BeforeDeleter); ok {
		if err := h.BeforeDelete(ctx, op); err != nil {
			s.rollback(ctx, op)
			return err
		}
	}

	doc, err := d.Accessor.FindByIDAndDelete(ctx, op.ID)
	if err != nil {
		s.rollback(ctx, op)
		return fmt.Errorf("delete %s %s: %w", e, op.ID, err)
	}
	op.Result = doc

	if h, ok := d.Hooks.(AfterDeleter); ok {
		if err := h.AfterDelete(ctx, op); err != nil {
			return err
		}
	}

	s.publish(ctx, e, ActionDeleted, domain.Document{domain.FieldID: op.ID})
	s.logger.InfoContext(ctx, "document deleted",
		slog.String("entity", string(e)),
		slog.String("id", op.ID),
	)
	return nil
}

// CheckPermission loads the record and fails with Forbidden unless the
// caller owns it or holds a privileged role. The returned context carries
// the record for entities that bind it.
func (s *Service) CheckPermission(ctx context.Context, e domain.Entity, caller domain.Caller, id string) (context.Context, error) {
	d, err := s.registry.Lookup(e)
	if err != nil {
		return ctx, err
	}
	doc, err := d.Accessor.FindByID(ctx, id)
	if err != nil {
		return ctx, fmt.Errorf("check permission on %s %s: %w", e, id, err)
	}

	allowed := caller.Privileged() || caller.Owns(doc.Ref("user"))
	if h, ok := d.Hooks.(Permitter); ok {
		allowed = h.Permit(caller, doc)
	}
	if !allowed {
		operationsTotal.WithLabelValues(string(e), "permission", "forbidden").Inc()
		s.logger.WarnContext(ctx, "permission denied",
			slog.String("entity", string(e)),
			slog.String("id", id),
			slog.String("caller", caller.ID),
		)
		return ctx, apperrors.Forbidden()
	}

	if h, ok := d.Hooks.(ContextBinder); ok {
		ctx = h.Bind(ctx, doc)
	}
	return ctx, nil
}

func newOp(e domain.Entity, req Request) *Op {
	body := req.Body.Clone()
	if body == nil {
		body = domain.Document{}
	}
	return &Op{
		Entity:   e,
		Caller:   req.Caller,
		ParentID: req.ParentID,
		ID:       req.ID,
		Body:     body,
		Validate: true,
	}
}

func (s *Service) rollback(ctx context.Context, op *Op) {
	for i := len(op.undo) - 1; i >= 0; i-- {
		if err := op.undo[i](context.WithoutCancel(ctx)); err != nil {
			s.logger.ErrorContext(ctx, "compensation failed",
				slog.String("entity", string(op.Entity)),
				slog.String("id", op.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	op.undo = nil
}

func (s *Service) publish(ctx context.Context, e domain.Entity, action string, doc domain.Document) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e, action, doc); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish entity event",
			slog.String("entity", string(e)),
			slog.String("action", action),
			slog.String("id", doc.ID()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) populate(ctx context.Context, specs []Populate, doc domain.Document) (domain.Document, error) {
	for _, p := range specs {
		target, err := s.registry.Lookup(p.Entity)
		if err != nil {
			return nil, err
		}
		switch v := doc[p.Field].(type) {
		case nil:
		case []any:
			expanded := make([]any, 0, len(v))
			for _, item := range v {
				ref, err := s.expand(ctx, target, p, domain.RefID(item))
				if err != nil {
					return nil, err
				}
				if ref != nil {
					expanded = append(expanded, map[string]any(ref))
				}
			}
			doc[p.Field] = expanded
		default:
			ref, err := s.expand(ctx, target, p, domain.RefID(v))
			if err != nil {
				return nil, err
			}
			if ref == nil {
				doc[p.Field] = nil
			} else {
				doc[p.Field] = map[string]any(ref)
			}
		}
	}
	return doc, nil
}

// expand loads one referenced record. A dangling reference yields nil.
func (s *Service) expand(ctx context.Context, target *Descriptor, p Populate, id string) (domain.Document, error) {
	if id == "" {
		return nil, nil
	}
	ref, err := target.Accessor.FindByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("populate %s: %w", p.Field, err)
	}
	ref = redact(target, ref)
	return domain.Document(p.Fields.Apply(ref.Without(domain.FieldVersion))), nil
}

func redact(d *Descriptor, doc domain.Document) domain.Document {
	if h, ok := d.Hooks.(Redactor); ok {
		return h.Redact(doc)
	}
	return doc
}
