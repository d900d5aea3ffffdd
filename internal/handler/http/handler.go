package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/resource"
	"github.com/tieenbuii/WEB-API/pkg/httputil"
	"github.com/tieenbuii/WEB-API/pkg/middleware"
)

// maxBodyBytes caps request bodies at 1MB.
const maxBodyBytes = 1 << 20

// Route parameter names.
const (
	paramID       = "id"
	paramParentID = "productId"
)

// Operations is the resource layer the builders drive.
type Operations interface {
	Create(ctx context.Context, e domain.Entity, req resource.Request) (resource.Written, error)
	Get(ctx context.Context, e domain.Entity, id string) (domain.Document, error)
	List(ctx context.Context, e domain.Entity, req resource.ListRequest) (resource.ListResult, error)
	Update(ctx context.Context, e domain.Entity, req resource.Request) (resource.Written, error)
	Delete(ctx context.Context, e domain.Entity, req resource.Request) error
	CheckPermission(ctx context.Context, e domain.Entity, caller domain.Caller, id string) (context.Context, error)
	Table(ctx context.Context, e domain.Entity, req resource.TableRequest) (resource.TableResult, error)
}

// Factory builds the generic handlers for any registered entity.
type Factory struct {
	ops    Operations
	logger *slog.Logger
}

// NewFactory creates a handler factory over ops.
func NewFactory(ops Operations, logger *slog.Logger) *Factory {
	return &Factory{ops: ops, logger: logger}
}

// callerFrom converts the authenticated principal to the domain caller.
func callerFrom(r *http.Request) domain.Caller {
	c, _ := middleware.CallerFromContext(r.Context())
	return domain.Caller{ID: c.ID, Role: c.Role}
}

func (f *Factory) writeRequest(w http.ResponseWriter, r *http.Request) (resource.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body domain.Document
	if err := httputil.DecodeJSON(r, &body); err != nil {
		return resource.Request{}, err
	}
	return resource.Request{
		Caller:   callerFrom(r),
		ParentID: chi.URLParam(r, paramParentID),
		ID:       chi.URLParam(r, paramID),
		Body:     body,
	}, nil
}

func written(res resource.Written) any {
	if res.Summary != nil {
		return res.Summary
	}
	return map[string]any{"data": res.Doc}
}

// CreateOne handles POST on a collection.
func (f *Factory) CreateOne(e domain.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := f.writeRequest(w, r)
		if err != nil {
			httputil.WriteError(w, r, err, f.logger)
			return
		}
		res, err := f.ops.Create(r.Context(), e, req)
		if err != nil {
			httputil.WriteError(w, r, err, f.logger)
			return
		}
		httputil.WriteSuccess(w, http.StatusCreated, written(res))
	}
}

// GetOne handles GET on a single record.
func (f *Factory) GetOne(e domain.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := f.ops.Get(r.Context(), e, chi.URLParam(r, paramID))
		if err != nil {
			httputil.WriteError(w, r, err, f.logger)
			return
		}
		httputil.WriteSuccess(w, http.StatusOK, map[string]any{"data": doc})
	}
}

// GetAll handles GET on a collection, optionally nested under a product.
func (f *Factory) GetAll(e domain.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := f.ops.List(r.Context(), e, resource.ListRequest{
			ParentID: chi.URLParam(r, paramParentID),
			Values:   r.URL.Query(),
		})
		if err != nil {
			httputil.WriteError(w, r, err, f.logger)
			return
		}

		docs := res.Docs
		if docs == nil {
			docs = []domain.Document{}
		}

		switch {
		case res.Aggregates != nil:
			data := map[string]any{
				"data":      docs,
				"results":   len(docs),
				"totalPage": res.TotalPage,
			}
			for k, v := range res.Aggregates {
				data[k] = v
			}
			httputil.WriteSuccess(w, http.StatusOK, data)
		case res.Overflow:
			httputil.WriteSuccess(w, http.StatusOK, map[string]any{
				"data":      docs,
				"results":   len(docs),
				"totalPage": 1,
			})
		default:
			data := map[string]any{"data": docs, "totalPage": res.TotalPage}
			if res.Paged {
				data["currentPage"] = res.CurrentPage
			}
			httputil.WriteList(w, len(docs), data)
		}
	}
}

// UpdateOne handles PATCH on a single record.
func (f *Factory) UpdateOne(e domain.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := f.writeRequest(w, r)
		if err != nil {
			httputil.WriteError(w, r, err, f.logger)
			return
		}
		res, err := f.ops.Update(r.Context(), e, req)
		if err != nil {
			httputil.WriteError(w, r, err, f.logger)
			return
		}
		httputil.WriteSuccess(w, http.StatusOK, written(res))
	}
}

// DeleteOne handles DELETE on a single record.
func (f *Factory) DeleteOne(e domain.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f.ops.Delete(r.Context(), e, resource.Request{
			Caller:   callerFrom(r),
			ParentID: chi.URLParam(r, paramParentID),
			ID:       chi.URLParam(r, paramID),
		})
		if err != nil {
			httputil.WriteError(w, r, err, f.logger)
			return
		}
		httputil.WriteSuccess(w, http.StatusNoContent, nil)
	}
}

// GetTable handles the server-side grid endpoint. The payload is written
// without the success envelope.
func (f *Factory) GetTable(e domain.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		search := q.Get("search[value]")
		if search == "" {
			search = q.Get("search.value")
		}

		res, err := f.ops.Table(r.Context(), e, resource.TableRequest{
			Search: search,
			Start:  atoi(q.Get("start")),
			Length: atoi(q.Get("length")),
			Draw:   atoi(q.Get("draw")),
		})
		if err != nil {
			httputil.WriteError(w, r, err, f.logger)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

// CheckPermission guards the wrapped handler with the ownership check on the
// record named by the id route parameter.
func (f *Factory) CheckPermission(e domain.Entity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := f.ops.CheckPermission(r.Context(), e, callerFrom(r), chi.URLParam(r, paramID))
			if err != nil {
				httputil.WriteError(w, r, err, f.logger)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
