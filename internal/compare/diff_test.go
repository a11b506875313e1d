package compare

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/fedemoisello/Visibility-Netsuite/internal/core"
)

func tableOf(entries map[string]float64) *core.Table {
	t := &core.Table{}
	// Deterministic record order is irrelevant to the differ; map order is fine.
	for client, amount := range entries {
		t.Records = append(t.Records, core.Record{Client: client, Amount: amount})
	}
	return t
}

func findGroup(s *Summary, key string) (GroupChange, bool) {
	for _, g := range s.Groups {
		if g.Key == key {
			return g, true
		}
	}
	return GroupChange{}, false
}

func TestDiffEndToEnd(t *testing.T) {
	current := tableOf(map[string]float64{"Acme": 2000, "Beta": 2000})
	previous := tableOf(map[string]float64{"Acme": 1500, "Gamma": 300})

	s := Diff(current, previous, ByClient())
	if s.GroupBy != "client" {
		t.Errorf("GroupBy = %q", s.GroupBy)
	}
	if len(s.Groups) != 3 {
		t.Fatalf("groups = %+v, want union of both key sets", s.Groups)
	}

	// Sorted by |change| descending: Beta +2000, Acme +500, Gamma -300.
	order := []string{s.Groups[0].Key, s.Groups[1].Key, s.Groups[2].Key}
	if order[0] != "Beta" || order[1] != "Acme" || order[2] != "Gamma" {
		t.Fatalf("order = %v, want [Beta Acme Gamma]", order)
	}

	acme, _ := findGroup(s, "Acme")
	if acme.Change != 500 || math.Abs(acme.Percent-33.333333) > 0.001 {
		t.Errorf("Acme = %+v", acme)
	}
	beta, _ := findGroup(s, "Beta")
	if beta.Change != 2000 || !math.IsInf(beta.Percent, 1) {
		t.Errorf("Beta = %+v, want +Inf percent", beta)
	}
	gamma, _ := findGroup(s, "Gamma")
	if gamma.Change != -300 || gamma.Percent != -100 {
		t.Errorf("Gamma = %+v", gamma)
	}

	// Overall record from unweighted full sums; the per-group deltas must
	// add up to the same change.
	if s.Overall.Current != 4000 || s.Overall.Previous != 1800 || s.Overall.Change != 2200 {
		t.Errorf("Overall = %+v", s.Overall)
	}
	var deltaSum float64
	for _, g := range s.Groups {
		deltaSum += g.Change
	}
	if deltaSum != s.Overall.Change {
		t.Errorf("per-group deltas sum to %v, overall change %v", deltaSum, s.Overall.Change)
	}
}

func TestDiffSymmetry(t *testing.T) {
	a := tableOf(map[string]float64{"Acme": 2000, "Beta": 500})
	b := tableOf(map[string]float64{"Acme": 1500, "Gamma": 300})

	fwd := Diff(a, b, ByClient())
	rev := Diff(b, a, ByClient())

	for _, g := range fwd.Groups {
		r, ok := findGroup(rev, g.Key)
		if !ok {
			t.Fatalf("group %q missing from reverse diff", g.Key)
		}
		if r.Change != -g.Change {
			t.Errorf("%s: forward change %v, reverse %v", g.Key, g.Change, r.Change)
		}
	}
	if fwd.Overall.Change != -rev.Overall.Change {
		t.Errorf("overall: %v vs %v", fwd.Overall.Change, rev.Overall.Change)
	}
}

func TestDiffZeroPreviousSentinel(t *testing.T) {
	s := Diff(
		tableOf(map[string]float64{"Acme": 500}),
		tableOf(map[string]float64{}),
		ByClient(),
	)
	g := s.Groups[0]
	if !math.IsInf(g.Percent, 1) || math.IsNaN(g.Percent) {
		t.Fatalf("percent = %v, want the +Inf sentinel", g.Percent)
	}

	// 0/0 is the same sentinel, never NaN and never a panic.
	s = Diff(
		tableOf(map[string]float64{"Acme": 0}),
		tableOf(map[string]float64{"Acme": 0}),
		ByClient(),
	)
	g = s.Groups[0]
	if !math.IsInf(g.Percent, 1) {
		t.Fatalf("0/0 percent = %v, want +Inf sentinel", g.Percent)
	}
	if !math.IsInf(s.Overall.Percent, 1) {
		t.Fatalf("0/0 overall percent = %v, want +Inf sentinel", s.Overall.Percent)
	}
}

func TestDiffDeterministicTieBreak(t *testing.T) {
	// Two groups with identical |change| sort by key.
	s := Diff(
		tableOf(map[string]float64{"B": 100, "A": 100}),
		tableOf(map[string]float64{"B": 0, "A": 0}),
		ByClient(),
	)
	if s.Groups[0].Key != "A" || s.Groups[1].Key != "B" {
		t.Fatalf("tie order = [%s %s], want [A B]", s.Groups[0].Key, s.Groups[1].Key)
	}
}

func TestDiffByDimensions(t *testing.T) {
	cur := &core.Table{Records: []core.Record{
		{Client: "Acme", Partner: "Jane", PM: "Ann", Amount: 100,
			HasDate: true, Year: 2024, MonthName: "January",
			Extra: map[string]string{"Project": "P-1"}},
		{Client: "Beta", Partner: "Jane", PM: "Bob", Amount: 50,
			HasDate: true, Year: 2024, MonthName: "February",
			Extra: map[string]string{"Project": "P-2"}},
		{Client: "Gamma", Partner: "Mia", PM: "Bob", Amount: 25,
			Quarter: core.QuarterNone}, // undated, no Extra
	}}
	prev := &core.Table{}

	s := Diff(cur, prev, ByPartner())
	if g, _ := findGroup(s, "Jane"); g.Current != 150 {
		t.Errorf("partner Jane = %+v", g)
	}

	s = Diff(cur, prev, ByPM())
	if g, _ := findGroup(s, "Bob"); g.Current != 75 {
		t.Errorf("pm Bob = %+v", g)
	}

	s = Diff(cur, prev, ByColumn("Project"))
	if len(s.Groups) != 2 {
		t.Errorf("project groups = %+v, records without the column drop out", s.Groups)
	}

	s = Diff(cur, prev, ByMonth())
	if _, ok := findGroup(s, "January 2024"); !ok {
		t.Errorf("month groups = %+v", s.Groups)
	}
	if len(s.Groups) != 2 {
		t.Errorf("undated record must not join the month dimension: %+v", s.Groups)
	}
	// Overall still counts every record, including the undated one.
	if s.Overall.Current != 175 {
		t.Errorf("overall = %+v", s.Overall)
	}
}

func TestDiffSkipsNaNAmounts(t *testing.T) {
	cur := &core.Table{Records: []core.Record{
		{Client: "Acme", Amount: 100},
		{Client: "Acme", Amount: math.NaN()},
	}}
	s := Diff(cur, &core.Table{}, ByClient())
	if g, _ := findGroup(s, "Acme"); g.Current != 100 {
		t.Fatalf("Acme = %+v, want NaN skipped", g)
	}
	if s.Overall.Current != 100 {
		t.Fatalf("overall = %+v", s.Overall)
	}
}

func TestTopN(t *testing.T) {
	groups := []GroupChange{{Key: "a"}, {Key: "b"}, {Key: "c"}}
	if got := TopN(groups, 2); len(got) != 2 {
		t.Errorf("TopN(2) = %v", got)
	}
	if got := TopN(groups, 0); len(got) != 3 {
		t.Errorf("TopN(0) should return everything, got %v", got)
	}
	if got := TopN(groups, 10); len(got) != 3 {
		t.Errorf("TopN(10) = %v", got)
	}
}

func TestWriteCSV(t *testing.T) {
	s := Diff(
		tableOf(map[string]float64{"Acme": 2000, "Beta": 2000}),
		tableOf(map[string]float64{"Acme": 1500, "Gamma": 300}),
		ByClient(),
	)

	var buf bytes.Buffer
	if err := WriteCSV(s, &buf, ','); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "client,current,previous,change,change_pct" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "Beta,2000.00,0.00,2000.00,Inf" {
		t.Errorf("first group = %q", lines[1])
	}
	if lines[len(lines)-1] != "Total,4000.00,1800.00,2200.00,122.22" {
		t.Errorf("overall = %q", lines[len(lines)-1])
	}
}
