package listview

import "slices"

// Rows holds the last successfully loaded rows of a list together with a
// version that changes on every replacement or patch.
type Rows[T any, K comparable] struct {
	items   []T
	version uint64
	key     func(T) K
}

func NewRows[T any, K comparable](key func(T) K) *Rows[T, K] {
	return &Rows[T, K]{key: key}
}

// Load replaces the rows when err is nil. On error the previous rows stay in
// place and Load reports false.
func (r *Rows[T, K]) Load(items []T, err error) bool {
	if err != nil {
		return false
	}
	r.items = slices.Clone(items)
	r.version++
	return true
}

// Items returns the current rows. Callers must not modify the slice.
func (r *Rows[T, K]) Items() []T { return r.items }

func (r *Rows[T, K]) Version() uint64 { return r.version }

func (r *Rows[T, K]) Len() int { return len(r.items) }

// Find returns the row with key k.
func (r *Rows[T, K]) Find(k K) (T, bool) {
	for _, item := range r.items {
		if r.key(item) == k {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Upsert patches a written row in place, or prepends it when new so that it
// shows up first under the default newest-first order.
func (r *Rows[T, K]) Upsert(item T) {
	k := r.key(item)
	next := slices.Clone(r.items)
	if i := slices.IndexFunc(next, func(x T) bool { return r.key(x) == k }); i >= 0 {
		next[i] = item
	} else {
		next = append([]T{item}, next...)
	}
	r.items = next
	r.version++
}

// Append adds a new row at the end, the order a chat thread grows in.
func (r *Rows[T, K]) Append(item T) {
	r.items = append(slices.Clone(r.items), item)
	r.version++
}

func (r *Rows[T, K]) Remove(k K) {
	next := slices.DeleteFunc(slices.Clone(r.items), func(x T) bool { return r.key(x) == k })
	if len(next) == len(r.items) {
		return
	}
	r.items = next
	r.version++
}

// View memoizes Apply and Paginate. It recomputes only when the criteria or
// the source version differ from the previous call.
type View[T any] struct {
	schema   Schema[T]
	criteria Criteria
	version  uint64
	valid    bool
	filtered []T
	page     Page[T]
	computes int
}

func NewView[T any](schema Schema[T]) *View[T] {
	return &View[T]{schema: schema}
}

// Compute returns the current page for rows at version under c.
func (v *View[T]) Compute(rows []T, version uint64, c Criteria) Page[T] {
	if v.valid && v.version == version && v.criteria.Equal(c) {
		return v.page
	}
	if !v.valid || v.version != version || !v.criteria.sameFilter(c) {
		v.filtered = Apply(rows, v.schema, c)
		v.computes++
	}
	v.page = Paginate(v.filtered, c.Page, c.PageSize)
	v.criteria = c
	v.version = version
	v.valid = true
	return v.page
}

// Filtered returns every row matching the last criteria, across all pages.
func (v *View[T]) Filtered() []T { return v.filtered }

// Computations counts how many times the filter and sort actually ran.
func (v *View[T]) Computations() int { return v.computes }

// sameFilter ignores paging, which does not change the filtered set.
func (c Criteria) sameFilter(o Criteria) bool {
	c.Page, o.Page = 0, 0
	c.PageSize, o.PageSize = 0, 0
	return c.Equal(o)
}
