package aggregate

// distinct collects the keys referenced by rows, first occurrence order.
func distinct[T any, K comparable](rows []T, key func(T) K) []K {
	var zero K
	seen := make(map[K]struct{}, len(rows))
	var keys []K
	for _, r := range rows {
		k := key(r)
		if k == zero {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// index builds the key -> row lookup map for a secondary fetch.
func index[T any, K comparable](rows []T, key func(T) K) map[K]T {
	m := make(map[K]T, len(rows))
	for _, r := range rows {
		m[key(r)] = r
	}
	return m
}

// lookup returns nil on a miss so row builders can apply their fallback.
func lookup[K comparable, T any](m map[K]T, k K) *T {
	v, ok := m[k]
	if !ok {
		return nil
	}
	return &v
}
