package moderation

import "sort"

// AllowList is the fixed set of admin ids, built once at startup.
type AllowList struct {
	ids map[int64]struct{}
}

// NewAllowList copies ids into an immutable set.
func NewAllowList(ids []int64) AllowList {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return AllowList{ids: set}
}

// IsAdmin reports whether id may moderate.
func (a AllowList) IsAdmin(id int64) bool {
	_, ok := a.ids[id]
	return ok
}

// IDs returns the admins in ascending order.
func (a AllowList) IDs() []int64 {
	out := make([]int64, 0, len(a.ids))
	for id := range a.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
