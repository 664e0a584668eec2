package screens

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/internhub/internal/listview"
)

// list is the browsing state shared by every tabular screen: loaded rows,
// the memoized filtered view, cursor and the search box.
type list[T any, K comparable] struct {
	rows      *listview.Rows[T, K]
	view      *listview.View[T]
	criteria  listview.Criteria
	page      listview.Page[T]
	cursor    int
	search    textinput.Model
	searching bool
	loading   bool
}

func newList[T any, K comparable](schema listview.Schema[T], key func(T) K, deps Deps) *list[T, K] {
	ti := textinput.New()
	ti.Placeholder = "キーワード"
	ti.CharLimit = 100
	ti.Width = 30

	return &list[T, K]{
		rows: listview.NewRows(key),
		view: listview.NewView(schema),
		criteria: listview.Criteria{
			Filters:  map[string]string{},
			Location: deps.Location,
			Page:     1,
			PageSize: deps.PageSize,
		},
		search: ti,
	}
}

// load replaces the rows unless err is set. It reports whether rows changed.
func (l *list[T, K]) load(items []T, err error) bool {
	l.loading = false
	changed := l.rows.Load(items, err)
	l.recompute()
	return changed
}

func (l *list[T, K]) recompute() {
	l.page = l.view.Compute(l.rows.Items(), l.rows.Version(), l.criteria)
	l.criteria.Page = l.page.Page
	if l.cursor >= len(l.page.Items) {
		l.cursor = max(0, len(l.page.Items)-1)
	}
}

func (l *list[T, K]) selected() (T, bool) {
	var zero T
	if l.cursor < 0 || l.cursor >= len(l.page.Items) {
		return zero, false
	}
	return l.page.Items[l.cursor], true
}

// setFilter changes one categorical filter and returns to the first page.
func (l *list[T, K]) setFilter(name, value string) {
	filters := make(map[string]string, len(l.criteria.Filters)+1)
	for k, v := range l.criteria.Filters {
		filters[k] = v
	}
	filters[name] = value
	l.criteria.Filters = filters
	l.criteria.Page = 1
	l.cursor = 0
	l.recompute()
}

func (l *list[T, K]) filter(name string) string {
	if v, ok := l.criteria.Filters[name]; ok && v != "" {
		return v
	}
	return listview.All
}

// cycle returns the value after current in values, wrapping to the first.
func cycle(values []string, current string) string {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}

// handleKey consumes browsing keys. The second result is false when the key
// is left for the screen.
func (l *list[T, K]) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if l.searching {
		switch msg.String() {
		case "enter":
			l.searching = false
			l.search.Blur()
			return nil, true
		case "esc":
			l.searching = false
			l.search.Blur()
			l.search.SetValue("")
			l.setQuery("")
			return nil, true
		}
		var cmd tea.Cmd
		l.search, cmd = l.search.Update(msg)
		l.setQuery(l.search.Value())
		return cmd, true
	}

	switch msg.String() {
	case "up", "k":
		if l.cursor > 0 {
			l.cursor--
		}
	case "down", "j":
		if l.cursor < len(l.page.Items)-1 {
			l.cursor++
		}
	case "right", "l":
		l.criteria.Page++
		l.cursor = 0
		l.recompute()
	case "left", "h":
		if l.criteria.Page > 1 {
			l.criteria.Page--
			l.cursor = 0
			l.recompute()
		}
	case "s":
		l.criteria.Sort = l.criteria.Sort.Next()
		l.recompute()
	case "/":
		l.searching = true
		l.search.Focus()
		return textinput.Blink, true
	default:
		return nil, false
	}
	return nil, true
}

// updateInput forwards non-key messages, such as cursor blinks, to the
// search box while it has focus.
func (l *list[T, K]) updateInput(msg tea.Msg) tea.Cmd {
	if !l.searching {
		return nil
	}
	var cmd tea.Cmd
	l.search, cmd = l.search.Update(msg)
	return cmd
}

func (l *list[T, K]) setQuery(q string) {
	l.criteria.Query = q
	l.criteria.Page = 1
	l.cursor = 0
	l.recompute()
}

// status renders the search box and the paging line.
func (l *list[T, K]) status() string {
	var b strings.Builder
	if l.searching {
		b.WriteString("検索: ")
		b.WriteString(l.search.View())
		b.WriteString("\n")
	} else if l.criteria.Query != "" {
		b.WriteString(DimStyle.Render(fmt.Sprintf("検索: %s", l.criteria.Query)))
		b.WriteString("\n")
	}
	pages := max(l.page.TotalPages, 1)
	b.WriteString(DimStyle.Render(fmt.Sprintf("%d/%dページ (全%d件)  並び順: %s",
		l.page.Page, pages, l.page.Total, sortLabel(l.criteria.Sort))))
	return b.String()
}

// rowLines renders the current page with a cursor marker.
func (l *list[T, K]) rowLines(render func(T) string) string {
	var b strings.Builder
	for i, item := range l.page.Items {
		cursor := "  "
		style := NormalStyle
		if i == l.cursor {
			cursor = "> "
			style = SelectedStyle
		}
		b.WriteString(style.Render(cursor + render(item)))
		b.WriteString("\n")
	}
	return b.String()
}

func sortLabel(k listview.SortKind) string {
	switch k {
	case listview.SortDateAsc:
		return "日付が古い順"
	case listview.SortNumberDesc:
		return "数値が大きい順"
	case listview.SortNumberAsc:
		return "数値が小さい順"
	case listview.SortStringAsc:
		return "名前順"
	default:
		return "日付が新しい順"
	}
}

func filterLabel(v string) string {
	if v == listview.All || v == "" {
		return "すべて"
	}
	return v
}
