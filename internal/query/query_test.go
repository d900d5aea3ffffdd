package query

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

func f64(v float64) *float64 { return &v }

func mustValues(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestBuild_RangeSynthesis(t *testing.T) {
	q, _, err := Build(mustValues(t, "price_gte=10&price_lte=50"), nil, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, store.Filter{"price": store.Range{Gte: f64(10), Lte: f64(50)}}, q.Filter)
}

func TestBuild_BracketRange(t *testing.T) {
	q, _, err := Build(mustValues(t, "promotion[lt]=5&category=shoes"), nil, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, store.Filter{
		"promotion": store.Range{Lt: f64(5)},
		"category":  "shoes",
	}, q.Filter)
}

func TestBuild_UnconfiguredRangeFieldIsEquality(t *testing.T) {
	q, _, err := Build(mustValues(t, "rating_gte=4"), nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, store.Filter{"rating_gte": "4"}, q.Filter)
}

func TestBuild_InvalidRange(t *testing.T) {
	_, _, err := Build(mustValues(t, "price_gt=cheap"), nil, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestBuild_ReservedKeysAndRepeats(t *testing.T) {
	q, _, err := Build(mustValues(t, "page=2&sort=price&limit=5&fields=title&status=a&status=b"), nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, store.Filter{"status": store.In{"a", "b"}}, q.Filter)
}

func TestBuild_BaseWins(t *testing.T) {
	q, _, err := Build(mustValues(t, "product=other&parent=x"), store.Filter{"product": "p1", "parent": nil}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, store.Filter{"product": "p1", "parent": nil}, q.Filter)
}

func TestBuild_Pagination(t *testing.T) {
	q, page, err := Build(mustValues(t, "page=3&limit=10"), nil, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 20, q.Skip)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 3, page.Page)
}

func TestBuild_UnparsablePaginationFallsBack(t *testing.T) {
	q, page, err := Build(mustValues(t, "page=abc&limit=-5"), nil, Options{DefaultLimit: 25})
	require.NoError(t, err)

	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 0, q.Skip)
	assert.Equal(t, 25, q.Limit)
}

func TestBuild_Defaults(t *testing.T) {
	q, page, err := Build(url.Values{}, nil, Options{DefaultLimit: 25})
	require.NoError(t, err)

	assert.Empty(t, q.Filter)
	assert.Equal(t, []store.SortField{{Field: "createdAt", Desc: true}}, q.Sort)
	assert.Equal(t, store.Projection{Exclude: []string{"__v"}}, q.Fields)
	assert.Equal(t, 0, q.Skip)
	assert.Equal(t, 25, q.Limit)
	assert.Equal(t, 1, page.Page)
}

func TestBuild_SortAndFields(t *testing.T) {
	q, _, err := Build(mustValues(t, "sort=-price,title,&fields=title,-description,price"), nil, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []store.SortField{{Field: "price", Desc: true}, {Field: "title"}}, q.Sort)
	assert.Equal(t, []string{"title", "price"}, q.Fields.Include)
	assert.Equal(t, []string{"description"}, q.Fields.Exclude)
}

func TestFeatures_StagesAreIndependent(t *testing.T) {
	q, _, err := New(mustValues(t, "sort=title&page=2"), DefaultOptions()).Sort().Result()
	require.NoError(t, err)

	assert.Nil(t, q.Filter)
	assert.Equal(t, []store.SortField{{Field: "title"}}, q.Sort)
	assert.Zero(t, q.Skip)
}
