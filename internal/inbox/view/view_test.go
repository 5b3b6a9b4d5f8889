package view

import (
	"fmt"
	"testing"

	"github.com/hoken-app/insurance-portal/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notifications(n int) []sdk.Notification {
	out := make([]sdk.Notification, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, sdk.Notification{
			MessageID: fmt.Sprintf("m%02d", i),
			Type:      sdk.TypeInfo,
			Title:     sdk.MultilingualText{Ja: fmt.Sprintf("お知らせ %d", i), En: fmt.Sprintf("Notice %d", i)},
		})
	}
	return out
}

func messageIDs(list []sdk.Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.MessageID)
	}
	return out
}

func TestProjectPageCount(t *testing.T) {
	tests := []struct {
		n, size, wantPages int
	}{
		{0, 5, 0},
		{1, 5, 1},
		{5, 5, 1},
		{6, 5, 2},
		{11, 5, 3},
		{7, 3, 3},
		{12, 0, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			page := Project(notifications(tt.n), Query{PageSize: tt.size, Page: 1})

			assert.Equal(t, tt.wantPages, page.TotalPages)
			assert.Equal(t, tt.n, page.Total)
		})
	}
}

func TestProjectSlicesAndClamps(t *testing.T) {
	list := notifications(12)

	page := Project(list, Query{Page: 3})
	assert.Equal(t, []string{"m11", "m12"}, messageIDs(page.Items))
	assert.Equal(t, 11, page.Start)
	assert.Equal(t, 12, page.End)
	assert.False(t, page.HasNext())
	assert.True(t, page.HasPrev())

	assert.Equal(t, 3, Project(list, Query{Page: 99}).Page)
	assert.Equal(t, 1, Project(list, Query{Page: -4}).Page)
}

func TestProjectEmpty(t *testing.T) {
	page := Project(nil, Query{Page: 2})

	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.Page)
	assert.Zero(t, page.Start)
	assert.False(t, page.HasNext())
	assert.False(t, page.HasPrev())
}

func TestFilterReadAndType(t *testing.T) {
	list := []sdk.Notification{
		{MessageID: "a", Type: sdk.TypeInfo, IsRead: true},
		{MessageID: "b", Type: sdk.TypeAlert},
		{MessageID: "c", Type: sdk.TypeAlert, IsRead: true},
	}

	assert.Equal(t, []string{"a", "b", "c"}, messageIDs(Filter(list, Query{Read: ReadAny})))
	assert.Equal(t, []string{"a", "c"}, messageIDs(Filter(list, Query{Read: ReadOnly})))
	assert.Equal(t, []string{"b"}, messageIDs(Filter(list, Query{Read: UnreadOnly})))
	assert.Equal(t, []string{"b", "c"}, messageIDs(Filter(list, Query{Type: sdk.TypeAlert})))
	assert.Equal(t, []string{"c"}, messageIDs(Filter(list, Query{Read: ReadOnly, Type: sdk.TypeAlert})))
}

func TestFilterKeyword(t *testing.T) {
	list := []sdk.Notification{
		{
			MessageID:      "title",
			Title:          sdk.MultilingualText{Ja: "契約更新のご案内", En: "Contract RENEWAL"},
			MessageSummary: sdk.MultilingualText{Ja: "手続き", En: "Action needed"},
		},
		{
			MessageID:      "summary",
			Title:          sdk.MultilingualText{Ja: "メンテナンス", En: "Maintenance"},
			MessageSummary: sdk.MultilingualText{Ja: "更新作業", En: "Scheduled renewal of systems"},
		},
		{
			MessageID:     "detail-only",
			Title:         sdk.MultilingualText{Ja: "お知らせ", En: "Notice"},
			MessageDetail: sdk.MultilingualText{Ja: "更新", En: "renewal"},
		},
		{
			MessageID:      "english-only",
			Title:          sdk.MultilingualText{En: "Policy lapse"},
			MessageSummary: sdk.MultilingualText{En: "Premium overdue"},
		},
	}

	tests := []struct {
		name    string
		keyword string
		locale  string
		want    []string
	}{
		{"empty matches all", "", "en", []string{"title", "summary", "detail-only", "english-only"}},
		{"blank matches all", "   ", "en", []string{"title", "summary", "detail-only", "english-only"}},
		{"case insensitive title or summary", "Renewal", "en", []string{"title", "summary"}},
		{"upper case keyword", "MAINTENANCE", "en", []string{"summary"}},
		{"locale selects text", "renewal", "ja", []string{}},
		{"japanese keyword", "更新", "ja", []string{"title", "summary"}},
		{"no match", "claim", "en", []string{}},
		{"active locale only", "lapse", "en", []string{"english-only"}},
		{"fallback text is not searched", "lapse", "ja", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(list, Query{Keyword: tt.keyword, Locale: tt.locale})
			assert.Equal(t, tt.want, messageIDs(got))
		})
	}
}

func TestParseReadFilter(t *testing.T) {
	for in, want := range map[string]ReadFilter{"": ReadAny, "all": ReadAny, "READ": ReadOnly, "unread": UnreadOnly} {
		got, err := ParseReadFilter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseReadFilter("archived")
	assert.Error(t, err)
}
