// Package finding defines the scan's output record and its stable ordering.
package finding

import "sort"

// Finding is a single extracted secret candidate. It lives only for the
// duration of one file's processing; once serialized, it's discarded.
type Finding struct {
	FileHash    string
	Value       string
	StartOffset int
}

// OutputItem is the persisted projection of a Finding.
type OutputItem struct {
	FileHash string `json:"file_hash"`
	Value    string `json:"value"`
}

// SortStable orders findings by (start_offset ascending, len(value)
// descending, value lexicographic ascending), per spec §4.9. Applying it
// more than once is idempotent.
func SortStable(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.StartOffset != b.StartOffset {
			return a.StartOffset < b.StartOffset
		}
		if len(a.Value) != len(b.Value) {
			return len(a.Value) > len(b.Value)
		}
		return a.Value < b.Value
	})
}
