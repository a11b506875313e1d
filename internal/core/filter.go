package core

// Filter is a row predicate. Filters compose with And and are applied before
// aggregation; the aggregator itself never filters.
type Filter func(Record) bool

// ByClients keeps records whose client is in the given set. An empty set
// keeps everything, matching the "no selection" behavior of the filter UI.
func ByClients(clients []string) Filter {
	if len(clients) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(clients))
	for _, c := range clients {
		set[c] = struct{}{}
	}
	return func(r Record) bool {
		_, ok := set[r.Client]
		return ok
	}
}

// ByYear keeps records dated in the given year. Records without a date never
// match.
func ByYear(year int) Filter {
	return func(r Record) bool {
		return r.HasDate && r.Year == year
	}
}

// ByQuarter keeps records in the given quarter label (Q1..Q4 or QuarterNone).
func ByQuarter(quarter string) Filter {
	return func(r Record) bool {
		return r.Quarter == quarter
	}
}

// ByPartners keeps records whose partner is in the given set.
func ByPartners(partners []string) Filter {
	if len(partners) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(partners))
	for _, p := range partners {
		set[p] = struct{}{}
	}
	return func(r Record) bool {
		_, ok := set[r.Partner]
		return ok
	}
}

// ByPMs keeps records whose PM is in the given set.
func ByPMs(pms []string) Filter {
	if len(pms) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(pms))
	for _, p := range pms {
		set[p] = struct{}{}
	}
	return func(r Record) bool {
		_, ok := set[r.PM]
		return ok
	}
}

// Apply returns a new table with the records matching every non-nil filter.
// The input table is left untouched. Filtering everything away yields an
// empty table, which downstream consumers treat as a valid terminal state.
func Apply(t *Table, filters ...Filter) *Table {
	out := &Table{}
	for _, r := range t.Records {
		keep := true
		for _, f := range filters {
			if f == nil {
				continue
			}
			if !f(r) {
				keep = false
				break
			}
		}
		if keep {
			out.Records = append(out.Records, r)
		}
	}
	return out
}
