package resource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/query"
	"github.com/tieenbuii/WEB-API/internal/ratings"
	"github.com/tieenbuii/WEB-API/internal/store"
	"github.com/tieenbuii/WEB-API/internal/store/memory"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

var (
	admin    = domain.Caller{ID: "admin-1", Role: domain.RoleAdmin}
	employee = domain.Caller{ID: "emp-1", Role: domain.RoleEmployee}
	alice    = domain.Caller{ID: "u-alice", Role: domain.RoleUser}
	bob      = domain.Caller{ID: "u-bob", Role: domain.RoleUser}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedEvent struct {
	entity domain.Entity
	action string
	id     string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e domain.Entity, action string, doc domain.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{entity: e, action: action, id: doc.ID()})
	return p.err
}

type harness struct {
	t       *testing.T
	backend store.Backend
	svc     *Service
	events  *fakePublisher
}

func newHarness(t *testing.T, policy StockPolicy) *harness {
	t.Helper()
	return newHarnessOn(t, memory.NewBackend(), policy)
}

func newHarnessOn(t *testing.T, backend store.Backend, policy StockPolicy) *harness {
	t.Helper()
	rec := ratings.NewRecomputer(backend.Collection("reviews"), backend.Collection("products"), testLogger())
	reg := NewDefaultRegistry(backend, Options{
		StockPolicy: policy,
		Ratings:     ratings.SyncDispatcher{Recomputer: rec},
		BcryptCost:  bcrypt.MinCost,
		Logger:      testLogger(),
	})
	events := &fakePublisher{}
	return &harness{
		t:       t,
		backend: backend,
		svc:     NewService(reg, events, query.DefaultOptions(), testLogger()),
		events:  events,
	}
}

func (h *harness) create(e domain.Entity, caller domain.Caller, body domain.Document) domain.Document {
	h.t.Helper()
	w, err := h.svc.Create(context.Background(), e, Request{Caller: caller, Body: body})
	require.NoError(h.t, err)
	return w.Doc
}

func (h *harness) product(title string, inventory int64) string {
	h.t.Helper()
	return h.create(domain.Product, admin, domain.Document{
		"title":     title,
		"price":     100,
		"inventory": inventory,
	}).ID()
}

func (h *harness) raw(e domain.Entity, id string) domain.Document {
	h.t.Helper()
	d, err := h.backend.Collection(e.Collection()).FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return d
}

func (h *harness) inventory(productID string) int64 {
	h.t.Helper()
	v, ok := h.raw(domain.Product, productID).Int("inventory")
	require.True(h.t, ok)
	return v
}

func (h *harness) count(e domain.Entity) int64 {
	h.t.Helper()
	n, err := h.backend.Collection(e.Collection()).Count(context.Background(), store.Filter{})
	require.NoError(h.t, err)
	return n
}

func cart(lines ...domain.Document) domain.Document {
	items := make([]any, len(lines))
	for i, l := range lines {
		items[i] = map[string]any(l)
	}
	return domain.Document{"cart": items}
}

func invoice(lines ...domain.Document) domain.Document {
	items := make([]any, len(lines))
	for i, l := range lines {
		items[i] = map[string]any(l)
	}
	return domain.Document{"invoice": items}
}

func line(product string, qty int64) domain.Document {
	return domain.Document{"product": product, "quantity": qty}
}

func requireStatus(t *testing.T, err error, status int) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, status, appErr.Status)
	return appErr
}
