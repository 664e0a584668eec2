package listview

import (
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"
)

type record struct {
	ID         int
	Name       string
	University string
	Status     string
	Rating     int
	CreatedAt  time.Time
}

var base = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

func day(n int) time.Time { return base.AddDate(0, 0, n) }

var schema = Schema[record]{
	Search: []func(record) string{
		func(r record) string { return r.Name },
		func(r record) string { return r.University },
	},
	Categories: map[string]func(record) string{
		"status": func(r record) string { return r.Status },
	},
	Date:   func(r record) time.Time { return r.CreatedAt },
	Number: func(r record) float64 { return float64(r.Rating) },
	String: func(r record) string { return r.Name },
}

func sample() []record {
	return []record{
		{ID: 1, Name: "Tanaka Hanako", University: "東京大学", Status: "pending", Rating: 3, CreatedAt: day(0)},
		{ID: 2, Name: "佐藤", University: "Kyoto University", Status: "completed", Rating: 5, CreatedAt: day(1)},
		{ID: 3, Name: "tanaka ichiro", University: "大阪大学", Status: "completed", Rating: 4, CreatedAt: day(2)},
		{ID: 4, Name: "鈴木", University: "名古屋大学", Status: "pending", Rating: 1, CreatedAt: day(3)},
	}
}

func ids(rows []record) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestSortDateDescByDefault(t *testing.T) {
	rows := []record{
		{ID: 3, CreatedAt: day(3)},
		{ID: 1, CreatedAt: day(1)},
		{ID: 2, CreatedAt: day(2)},
	}
	got := ids(Apply(rows, schema, Criteria{}))
	if want := []int{3, 2, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestApplyIsPureAndDeterministic(t *testing.T) {
	rows := sample()
	before := sample()
	c := Criteria{Query: "tanaka", Sort: SortNumberAsc}

	first := Apply(rows, schema, c)
	second := Apply(rows, schema, c)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated calls differ: %v vs %v", ids(first), ids(second))
	}
	if !reflect.DeepEqual(rows, before) {
		t.Fatal("input slice was modified")
	}
}

func TestSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	tests := []struct {
		query string
		want  []int
	}{
		{"TANAKA", []int{3, 1}},
		{"kyoto", []int{2}},
		{"大学", []int{4, 3, 1}},
		{"  ", []int{4, 3, 2, 1}},
		{"nobody", []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ids(Apply(sample(), schema, Criteria{Query: tt.query}))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFiltersCombineWithAnd(t *testing.T) {
	rows := sample()
	search := Criteria{Query: "tanaka"}
	status := Criteria{Filters: map[string]string{"status": "pending"}}
	both := Criteria{Query: "tanaka", Filters: map[string]string{"status": "pending"}}

	inSearch := map[int]bool{}
	for _, r := range Apply(rows, schema, search) {
		inSearch[r.ID] = true
	}
	var intersection []int
	for _, r := range Apply(rows, schema, status) {
		if inSearch[r.ID] {
			intersection = append(intersection, r.ID)
		}
	}

	got := ids(Apply(rows, schema, both))
	if !reflect.DeepEqual(got, intersection) {
		t.Fatalf("got %v, want intersection %v", got, intersection)
	}
	if want := []int{1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestAllSentinelMatchesAbsentFilter(t *testing.T) {
	rows := sample()
	for _, q := range []string{"", "tanaka", "大学"} {
		withAll := Apply(rows, schema, Criteria{Query: q, Filters: map[string]string{"status": All}})
		without := Apply(rows, schema, Criteria{Query: q})
		if !reflect.DeepEqual(withAll, without) {
			t.Errorf("query %q: %v != %v", q, ids(withAll), ids(without))
		}
	}
}

func TestDateRangeIsInclusiveByDay(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	rows := []record{
		{ID: 1, CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, tokyo)},
		{ID: 2, CreatedAt: time.Date(2024, 5, 1, 23, 59, 59, 0, tokyo)},
		{ID: 3, CreatedAt: time.Date(2024, 5, 2, 12, 0, 0, 0, tokyo)},
		{ID: 4, CreatedAt: time.Date(2024, 5, 3, 0, 0, 0, 0, tokyo)},
		{ID: 5, CreatedAt: time.Date(2024, 4, 30, 23, 59, 59, 0, tokyo)},
	}
	may1 := time.Date(2024, 5, 1, 15, 0, 0, 0, tokyo)
	may2 := time.Date(2024, 5, 2, 9, 0, 0, 0, tokyo)

	single := ids(Apply(rows, schema, Criteria{From: may1, Location: tokyo, Sort: SortDateAsc}))
	if want := []int{1, 2}; !reflect.DeepEqual(single, want) {
		t.Fatalf("single day: got %v, want %v", single, want)
	}

	ranged := ids(Apply(rows, schema, Criteria{From: may1, To: may2, Location: tokyo, Sort: SortDateAsc}))
	if want := []int{1, 2, 3}; !reflect.DeepEqual(ranged, want) {
		t.Fatalf("range: got %v, want %v", ranged, want)
	}

	upTo := ids(Apply(rows, schema, Criteria{To: may1, Location: tokyo, Sort: SortDateAsc}))
	if want := []int{5, 1, 2}; !reflect.DeepEqual(upTo, want) {
		t.Fatalf("open start: got %v, want %v", upTo, want)
	}
}

func TestSortKinds(t *testing.T) {
	tests := []struct {
		sort SortKind
		want []int
	}{
		{SortDateDesc, []int{4, 3, 2, 1}},
		{SortDateAsc, []int{1, 2, 3, 4}},
		{SortNumberDesc, []int{2, 3, 1, 4}},
		{SortNumberAsc, []int{4, 1, 3, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.sort.String(), func(t *testing.T) {
			got := ids(Apply(sample(), schema, Criteria{Sort: tt.sort}))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortStringUsesJapaneseCollation(t *testing.T) {
	rows := []record{
		{ID: 1, Name: "わたなべ"},
		{ID: 2, Name: "あおき"},
		{ID: 3, Name: "かとう"},
	}
	got := ids(Apply(rows, schema, Criteria{Sort: SortStringAsc}))
	if want := []int{2, 3, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseSort(t *testing.T) {
	for k := range sortNames {
		if got := ParseSort(k.String()); got != k {
			t.Errorf("ParseSort(%q) = %v", k.String(), got)
		}
	}
	if got := ParseSort("bogus"); got != SortDateDesc {
		t.Errorf("unknown sort should default to date desc, got %v", got)
	}
	if got := SortStringAsc.Next(); got != SortDateDesc {
		t.Errorf("Next should wrap, got %v", got)
	}
}

func TestPaginationReconstructsFilteredSet(t *testing.T) {
	var rows []record
	for i := 1; i <= 47; i++ {
		rows = append(rows, record{ID: i, CreatedAt: day(i)})
	}
	for _, size := range []int{1, 2, 5, 20, 46, 47, 48, 100} {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			first := Paginate(rows, 1, size)
			var joined []record
			for p := 1; p <= first.TotalPages; p++ {
				joined = append(joined, Paginate(rows, p, size).Items...)
			}
			if !reflect.DeepEqual(joined, rows) {
				t.Fatalf("pages do not reconstruct the set: got %d rows", len(joined))
			}
			if want := (47 + size - 1) / size; first.TotalPages != want {
				t.Fatalf("total pages %d, want %d", first.TotalPages, want)
			}
		})
	}
}

func TestPaginationClampsOutOfRange(t *testing.T) {
	var rows []record
	for i := 1; i <= 45; i++ {
		rows = append(rows, record{ID: i})
	}

	p := Paginate(rows, 9, 20)
	if p.Page != 3 || len(p.Items) != 5 {
		t.Fatalf("page past the end: page=%d items=%d", p.Page, len(p.Items))
	}
	p = Paginate(rows, -2, 20)
	if p.Page != 1 || len(p.Items) != 20 {
		t.Fatalf("negative page: page=%d items=%d", p.Page, len(p.Items))
	}
	p = Paginate(rows, 1, 0)
	if p.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size, got %d", p.PageSize)
	}
	empty := Paginate[record](nil, 3, 20)
	if empty.Page != 1 || empty.TotalPages != 0 || len(empty.Items) != 0 {
		t.Fatalf("empty: %+v", empty)
	}
}

func TestViewMemoizes(t *testing.T) {
	holder := NewRows(func(r record) int { return r.ID })
	holder.Load(sample(), nil)
	view := NewView(schema)

	c := Criteria{Query: "tanaka", PageSize: 1, Page: 1}
	view.Compute(holder.Items(), holder.Version(), c)
	view.Compute(holder.Items(), holder.Version(), c)
	if n := view.Computations(); n != 1 {
		t.Fatalf("unchanged inputs recomputed: %d", n)
	}

	c.Page = 2
	page := view.Compute(holder.Items(), holder.Version(), c)
	if n := view.Computations(); n != 1 {
		t.Fatalf("page change should reuse the filtered set, computed %d times", n)
	}
	if page.Page != 2 || len(page.Items) != 1 || page.Items[0].ID != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}

	holder.Upsert(record{ID: 5, Name: "Tanaka Jiro", CreatedAt: day(9)})
	page = view.Compute(holder.Items(), holder.Version(), c)
	if n := view.Computations(); n != 2 {
		t.Fatalf("source change should recompute, computed %d times", n)
	}
	if page.Total != 3 {
		t.Fatalf("expected 3 matches after upsert, got %d", page.Total)
	}

	c.Query = "佐藤"
	view.Compute(holder.Items(), holder.Version(), c)
	if n := view.Computations(); n != 3 {
		t.Fatalf("criteria change should recompute, computed %d times", n)
	}
}

func TestRowsKeepPreviousOnFailedLoad(t *testing.T) {
	holder := NewRows(func(r record) int { return r.ID })
	holder.Load(sample(), nil)
	version := holder.Version()

	if holder.Load(nil, errors.New("network down")) {
		t.Fatal("failed load reported success")
	}
	if holder.Len() != 4 || holder.Version() != version {
		t.Fatalf("failed load touched rows: len=%d version=%d", holder.Len(), holder.Version())
	}
}

func TestRowsPatches(t *testing.T) {
	holder := NewRows(func(r record) int { return r.ID })
	holder.Load(sample(), nil)
	previous := holder.Items()

	holder.Upsert(record{ID: 2, Name: "佐藤", Status: "rejected"})
	if got, _ := holder.Find(2); got.Status != "rejected" {
		t.Fatalf("upsert did not replace: %+v", got)
	}
	if previous[1].Status != "completed" {
		t.Fatal("upsert mutated a slice handed out earlier")
	}

	holder.Upsert(record{ID: 9})
	if holder.Items()[0].ID != 9 || holder.Len() != 5 {
		t.Fatalf("new row should be prepended: %v", ids(holder.Items()))
	}

	holder.Append(record{ID: 10})
	if items := holder.Items(); items[len(items)-1].ID != 10 {
		t.Fatalf("append should add at the end: %v", ids(items))
	}

	holder.Remove(1)
	if _, ok := holder.Find(1); ok {
		t.Fatal("remove left the row in place")
	}
	v := holder.Version()
	holder.Remove(404)
	if holder.Version() != v {
		t.Fatal("removing a missing key should not bump the version")
	}
}
