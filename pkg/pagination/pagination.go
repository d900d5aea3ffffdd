package pagination

import (
	"net/url"
	"strconv"
)

// DefaultLimit is the page size used when neither the caller nor the
// configuration supplies one.
const DefaultLimit = 100

// Params holds the page window requested through query parameters.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Skip  int `json:"-"`
}

// FromValues reads page and limit from query values. Non-positive or
// unparsable values fall back to page 1 and defaultLimit.
func FromValues(q url.Values, defaultLimit int) Params {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	p := Params{Page: 1, Limit: defaultLimit}

	if v, ok := positiveInt(q.Get("page")); ok {
		p.Page = v
	}
	if v, ok := positiveInt(q.Get("limit")); ok {
		p.Limit = v
	}

	p.Skip = (p.Page - 1) * p.Limit
	return p
}

func positiveInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// TotalPages returns ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	pages := total / int64(limit)
	if total%int64(limit) > 0 {
		pages++
	}
	return int(pages)
}

// Window describes where a requested page falls relative to the result set.
type Window struct {
	TotalPage   int
	CurrentPage int
	// Overflow is set when the requested page lies past the last page.
	Overflow bool
}

// Locate computes the page window for a count. A page beyond the last one
// reports Overflow with TotalPage clamped to 1.
func Locate(total int64, p Params) Window {
	pages := TotalPages(total, p.Limit)
	if p.Page > pages {
		return Window{TotalPage: 1, CurrentPage: p.Page, Overflow: true}
	}
	return Window{TotalPage: pages, CurrentPage: p.Page}
}
