// Package compare computes period-over-period change summaries between two
// snapshots of the same dataset, grouped by a categorical dimension. Both
// inputs are canonical tables; the differ is pure and allocates its result.
package compare

import (
	"fmt"
	"math"
	"sort"

	"github.com/fedemoisello/Visibility-Netsuite/internal/core"
)

// GroupBy names a grouping dimension and extracts the group key from a
// record. ok=false drops the record from the grouping (e.g. the month
// dimension has no key for undated records), mirroring how null group keys
// behave in the source data tooling.
type GroupBy struct {
	Name string
	Key  func(core.Record) (string, bool)
}

// ByClient groups by client name.
func ByClient() GroupBy {
	return GroupBy{Name: "client", Key: func(r core.Record) (string, bool) {
		return r.Client, true
	}}
}

// ByPartner groups by the partner/owner column.
func ByPartner() GroupBy {
	return GroupBy{Name: "partner", Key: func(r core.Record) (string, bool) {
		return r.Partner, true
	}}
}

// ByPM groups by the project-manager column.
func ByPM() GroupBy {
	return GroupBy{Name: "pm", Key: func(r core.Record) (string, bool) {
		return r.PM, true
	}}
}

// ByColumn groups by an externally supplied source column (a project code,
// typically) carried in the records' Extra fields.
func ByColumn(column string) GroupBy {
	return GroupBy{Name: column, Key: func(r core.Record) (string, bool) {
		v, ok := r.Extra[column]
		return v, ok && v != ""
	}}
}

// ByMonth groups by the (year, month) composite. Undated records have no
// month to land in and are excluded from this dimension only.
func ByMonth() GroupBy {
	return GroupBy{Name: "month", Key: func(r core.Record) (string, bool) {
		if !r.HasDate {
			return "", false
		}
		return fmt.Sprintf("%s %d", r.MonthName, r.Year), true
	}}
}

// GroupChange is one group's current/previous comparison. Percent carries the
// +Inf sentinel whenever the previous amount is zero, 0/0 included: division
// never panics and never produces NaN, so downstream sorts stay deterministic.
type GroupChange struct {
	Key      string
	Current  float64
	Previous float64
	Change   float64
	Percent  float64
}

// Summary is the full comparison: every group in the union of both key sets,
// sorted by absolute change descending, plus one overall record computed from
// the unweighted full-table sums.
type Summary struct {
	GroupBy string
	Groups  []GroupChange
	Overall GroupChange
}

// Diff compares two snapshots along the given dimension. A group present in
// only one snapshot is kept, the other side defaulting to zero; no group is
// silently dropped.
func Diff(current, previous *core.Table, by GroupBy) *Summary {
	cur := groupSums(current, by)
	prev := groupSums(previous, by)

	keys := make(map[string]struct{}, len(cur)+len(prev))
	for k := range cur {
		keys[k] = struct{}{}
	}
	for k := range prev {
		keys[k] = struct{}{}
	}

	groups := make([]GroupChange, 0, len(keys))
	for k := range keys {
		groups = append(groups, change(k, cur[k], prev[k]))
	}
	sort.Slice(groups, func(i, j int) bool {
		ai, aj := math.Abs(groups[i].Change), math.Abs(groups[j].Change)
		if ai != aj {
			return ai > aj
		}
		return groups[i].Key < groups[j].Key
	})

	return &Summary{
		GroupBy: by.Name,
		Groups:  groups,
		Overall: change("Total", tableSum(current), tableSum(previous)),
	}
}

// TopN returns the first n groups of an already-sorted summary. Slicing for
// presentation is a caller concern; the engine always reports every group.
func TopN(groups []GroupChange, n int) []GroupChange {
	if n <= 0 || n >= len(groups) {
		return groups
	}
	return groups[:n]
}

func change(key string, cur, prev float64) GroupChange {
	c := GroupChange{Key: key, Current: cur, Previous: prev, Change: cur - prev}
	if prev == 0 {
		c.Percent = math.Inf(1)
	} else {
		c.Percent = c.Change / prev * 100
	}
	return c
}

func groupSums(t *core.Table, by GroupBy) map[string]float64 {
	sums := make(map[string]float64)
	if t == nil {
		return sums
	}
	for _, r := range t.Records {
		key, ok := by.Key(r)
		if !ok {
			continue
		}
		if core.IsMissing(r.Amount) {
			// NaN cells stay visible in the canonical table but cannot be
			// allowed to poison every group total.
			continue
		}
		sums[key] += r.Amount
	}
	return sums
}

func tableSum(t *core.Table) float64 {
	var sum float64
	if t == nil {
		return 0
	}
	for _, r := range t.Records {
		if core.IsMissing(r.Amount) {
			continue
		}
		sum += r.Amount
	}
	return sum
}
