// Package search turns visitor filters into store queries and renders the
// matching events as an HTML fragment.
package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/a-szyszlo/event-manager/internal/apperr"
	"github.com/a-szyszlo/event-manager/internal/textutil"
	"github.com/go-playground/validator/v10"
)

const (
	PageSize = 10
	maxPage  = 100000

	DateLayout = "2006-01-02"
)

const (
	msgInvalidDate = "Invalid date format."
	msgDateOrder   = "Start date cannot be later than end date."
)

var validate = validator.New()

// Filter is the raw filter state as submitted by the search form.
type Filter struct {
	Text     string
	Cities   string // comma-joined
	DateFrom string
	DateTo   string
	Page     string
}

type dateRange struct {
	From string `validate:"omitempty,datetime=2006-01-02"`
	To   string `validate:"omitempty,datetime=2006-01-02"`
}

// Query describes one page of published events. StartFrom and StartTo are
// inclusive site-local wall times in event.StartLayout, empty when unbounded.
type Query struct {
	Text      string
	Terms     []string
	CitySlugs []string
	StartFrom string
	StartTo   string
	Page      int
	PageSize  int
}

func (q Query) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// TotalPages is the number of pages needed for total results.
func (q Query) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + q.PageSize - 1) / q.PageSize
}

// Key is a canonical representation of the query, equal for equal queries.
func (q Query) Key() string {
	v := url.Values{}
	v.Set("q", strings.Join(q.Terms, " "))
	v.Set("city", strings.Join(q.CitySlugs, ","))
	v.Set("from", q.StartFrom)
	v.Set("to", q.StartTo)
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.PageSize))
	return "search:v1:" + v.Encode()
}

// Build validates f and produces the store query. It does no I/O.
func Build(f Filter) (Query, error) {
	dr := dateRange{
		From: strings.TrimSpace(f.DateFrom),
		To:   strings.TrimSpace(f.DateTo),
	}

	if err := validate.Struct(dr); err != nil {
		return Query{}, apperr.Validation(msgInvalidDate).WithDetails(dateFieldErrors(err))
	}

	// YYYY-MM-DD compares correctly as a string
	if dr.From != "" && dr.To != "" && dr.From > dr.To {
		return Query{}, apperr.Validation(msgDateOrder)
	}

	text := textutil.CollapseSpaces(f.Text)

	q := Query{
		Text:      text,
		Terms:     strings.Fields(text),
		CitySlugs: textutil.SlugList(f.Cities),
		Page:      ParsePage(f.Page),
		PageSize:  PageSize,
	}
	if dr.From != "" {
		q.StartFrom = dr.From + " 00:00:00"
	}
	if dr.To != "" {
		q.StartTo = dr.To + " 23:59:59"
	}

	return q, nil
}

// ParsePage is lenient: anything that is not a positive integer means page 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	if n > maxPage {
		return maxPage
	}
	return n
}

func dateFieldErrors(err error) map[string]string {
	out := map[string]string{}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}

	for _, fe := range verrs {
		switch fe.Field() {
		case "From":
			out["date_from"] = "must be YYYY-MM-DD"
		case "To":
			out["date_to"] = "must be YYYY-MM-DD"
		}
	}
	return out
}
