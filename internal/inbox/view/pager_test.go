package view

import (
	"testing"

	"github.com/hoken-app/insurance-portal/pkg/sdk"
	"github.com/stretchr/testify/assert"
)

func TestPagerNavigationClamps(t *testing.T) {
	list := notifications(11)
	p := NewPager(5, "ja")

	assert.Equal(t, 1, p.Prev(list).Page)
	assert.Equal(t, 2, p.Next(list).Page)
	assert.Equal(t, 3, p.Next(list).Page)
	assert.Equal(t, 3, p.Next(list).Page)
	assert.Equal(t, 1, p.GoTo(list, 0).Page)
	assert.Equal(t, 3, p.GoTo(list, 10).Page)
}

func TestPagerFilterChangeResetsPage(t *testing.T) {
	list := notifications(11)
	list[0].IsRead = true
	list[1].Type = sdk.TypeAlert

	changes := map[string]func(p *Pager){
		"read":    func(p *Pager) { p.SetReadFilter(UnreadOnly) },
		"type":    func(p *Pager) { p.SetType(sdk.TypeInfo) },
		"keyword": func(p *Pager) { p.SetKeyword("お知らせ") },
		"locale":  func(p *Pager) { p.SetLocale("en") },
	}

	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			p := NewPager(5, "ja")
			p.GoTo(list, 3)
			assert.Equal(t, 3, p.Query().Page)

			change(p)

			assert.Equal(t, 1, p.Query().Page)
			assert.Equal(t, 1, p.Project(list).Page)
		})
	}
}

func TestPagerShrinkingListClampsPage(t *testing.T) {
	p := NewPager(0, "ja")
	p.GoTo(notifications(11), 3)

	page := p.Project(notifications(4))

	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	assert.Len(t, page.Items, 4)
}
