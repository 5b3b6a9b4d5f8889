package view

import "github.com/hoken-app/insurance-portal/pkg/sdk"

// Pager holds the filter and page state of one list view. Any filter change
// returns to page 1.
type Pager struct {
	query Query
}

func NewPager(pageSize int, locale string) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{query: Query{Read: ReadAny, Locale: locale, PageSize: pageSize, Page: 1}}
}

// Query returns the current query
func (p *Pager) Query() Query {
	return p.query
}

func (p *Pager) SetReadFilter(f ReadFilter) {
	p.query.Read = f
	p.query.Page = 1
}

// SetType filters by t; the empty type shows all
func (p *Pager) SetType(t sdk.NotificationType) {
	p.query.Type = t
	p.query.Page = 1
}

func (p *Pager) SetKeyword(keyword string) {
	p.query.Keyword = keyword
	p.query.Page = 1
}

func (p *Pager) SetLocale(locale string) {
	p.query.Locale = locale
	p.query.Page = 1
}

// Project renders the current page of list
func (p *Pager) Project(list []sdk.Notification) Page {
	page := Project(list, p.query)
	p.query.Page = page.Page
	return page
}

// Next moves forward one page, stopping at the last
func (p *Pager) Next(list []sdk.Notification) Page {
	return p.GoTo(list, p.query.Page+1)
}

// Prev moves back one page, stopping at the first
func (p *Pager) Prev(list []sdk.Notification) Page {
	return p.GoTo(list, p.query.Page-1)
}

// GoTo jumps to page n, clamped to [1, TotalPages]
func (p *Pager) GoTo(list []sdk.Notification, n int) Page {
	p.query.Page = n
	return p.Project(list)
}
