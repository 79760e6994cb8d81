package metrics

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the numeric history of one sensor.
type Summary struct {
	UniqueID  string    `json:"unique_id"`
	Attribute string    `json:"attribute"`
	Unit      string    `json:"unit,omitempty"`
	Count     int       `json:"count"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"stddev"`
	First     time.Time `json:"first"`
	Last      time.Time `json:"last"`
}

// Summarize groups events by unique id and computes statistics over their
// numeric values. Sensors without any numeric value are omitted.
// The result is sorted by unique id.
func Summarize(events []SensorStateEvent) []Summary {
	type acc struct {
		s    Summary
		vals []float64
	}
	groups := map[string]*acc{}
	for _, ev := range events {
		v, ok := ev.Numeric()
		if !ok {
			continue
		}
		g, ok := groups[ev.UniqueID]
		if !ok {
			g = &acc{s: Summary{UniqueID: ev.UniqueID, Attribute: ev.Attribute, Unit: ev.Unit, First: ev.Time, Last: ev.Time}}
			groups[ev.UniqueID] = g
		}
		if ev.Time.Before(g.s.First) {
			g.s.First = ev.Time
		}
		if ev.Time.After(g.s.Last) {
			g.s.Last = ev.Time
		}
		g.vals = append(g.vals, v)
	}

	out := make([]Summary, 0, len(groups))
	for _, g := range groups {
		g.s.Count = len(g.vals)
		g.s.Min = floats.Min(g.vals)
		g.s.Max = floats.Max(g.vals)
		g.s.Mean, g.s.StdDev = stat.MeanStdDev(g.vals, nil)
		if g.s.Count == 1 {
			g.s.StdDev = 0
		}
		out = append(out, g.s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out
}
