// Package view projects the reconciled notification list into filtered pages.
package view

import (
	"fmt"
	"strings"

	"github.com/hoken-app/insurance-portal/pkg/sdk"
	"golang.org/x/text/cases"
)

// DefaultPageSize matches the summary widget
const DefaultPageSize = 5

// ReadFilter selects entries by read state
type ReadFilter string

const (
	ReadAny    ReadFilter = "all"
	ReadOnly   ReadFilter = "read"
	UnreadOnly ReadFilter = "unread"
)

// ParseReadFilter accepts "all", "read" or "unread"; empty means all
func ParseReadFilter(s string) (ReadFilter, error) {
	switch ReadFilter(strings.ToLower(s)) {
	case "", ReadAny:
		return ReadAny, nil
	case ReadOnly:
		return ReadOnly, nil
	case UnreadOnly:
		return UnreadOnly, nil
	}
	return "", fmt.Errorf("unknown read filter %q", s)
}

func (f ReadFilter) match(n sdk.Notification) bool {
	switch f {
	case ReadOnly:
		return n.IsRead
	case UnreadOnly:
		return !n.IsRead
	default:
		return true
	}
}

// Query describes one projection. An empty Type matches every type.
type Query struct {
	Read     ReadFilter
	Type     sdk.NotificationType
	Keyword  string
	Locale   string
	PageSize int
	Page     int
}

// Page is one slice of the filtered list
type Page struct {
	Items      []sdk.Notification
	Page       int
	PageSize   int
	TotalPages int
	Total      int
	// Start and End are 1-based and inclusive; both are 0 for an empty page
	Start int
	End   int
}

// HasNext reports whether a later page exists
func (p Page) HasNext() bool {
	return p.Page < p.TotalPages
}

// HasPrev reports whether an earlier page exists
func (p Page) HasPrev() bool {
	return p.Page > 1
}

// Project filters list by q and returns the requested page, clamped to
// [1, TotalPages]. list is not modified.
func Project(list []sdk.Notification, q Query) Page {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	filtered := Filter(list, q)

	total := len(filtered)
	totalPages := (total + size - 1) / size

	page := clamp(q.Page, totalPages)

	out := Page{
		Items:      []sdk.Notification{},
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
		Total:      total,
	}
	if total == 0 {
		return out
	}

	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	out.Items = filtered[start:end]
	out.Start = start + 1
	out.End = end
	return out
}

// Filter returns the entries of list matching the read, type and keyword
// filters of q, in list order
func Filter(list []sdk.Notification, q Query) []sdk.Notification {
	m := newKeywordMatcher(q.Keyword, q.Locale)

	out := make([]sdk.Notification, 0, len(list))
	for _, n := range list {
		if !q.Read.match(n) {
			continue
		}
		if q.Type != "" && n.Type != q.Type {
			continue
		}
		if !m.match(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

type keywordMatcher struct {
	caser   cases.Caser
	keyword string
	locale  string
}

func newKeywordMatcher(keyword, locale string) *keywordMatcher {
	m := &keywordMatcher{caser: cases.Fold(), locale: locale}
	m.keyword = m.caser.String(strings.TrimSpace(keyword))
	return m
}

// match is true when the folded keyword occurs in the title or summary of
// the active locale. Text shown through the other language's fallback is
// not searched.
func (m *keywordMatcher) match(n sdk.Notification) bool {
	if m.keyword == "" {
		return true
	}
	if strings.Contains(m.caser.String(n.Title.In(m.locale)), m.keyword) {
		return true
	}
	return strings.Contains(m.caser.String(n.MessageSummary.In(m.locale)), m.keyword)
}

func clamp(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}
