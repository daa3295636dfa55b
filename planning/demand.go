package planning

import (
	"sort"
	"time"
)

// AggregateDemand collapses fulfilled demand events into a regular series of
// per-bucket totals.
//
// Rules:
//   - only events with Fulfilled == true count
//   - events in the same bucket sum
//   - buckets between the first and last observed bucket with no events become
//     zero-demand observations (never interpolated)
//   - output is sorted by period ascending; no events gives an empty series
func AggregateDemand(events []DemandEvent, g Granularity) DemandSeries {
	totals := make(map[time.Time]float64)
	for _, e := range events {
		if !e.Fulfilled {
			continue
		}
		totals[g.BucketStart(e.At)] += e.Quantity
	}
	if len(totals) == 0 {
		return DemandSeries{}
	}

	starts := make([]time.Time, 0, len(totals))
	for s := range totals {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	first, last := starts[0], starts[len(starts)-1]
	var series DemandSeries
	for cur := first; !cur.After(last); cur = g.Next(cur) {
		series = append(series, DemandObservation{
			Period:   g.Key(cur),
			Start:    cur,
			Quantity: totals[cur],
		})
	}
	return series
}

// TrimSeries keeps only observations whose bucket starts in [from, to).
func TrimSeries(s DemandSeries, from, to time.Time) DemandSeries {
	out := DemandSeries{}
	for _, o := range s {
		if o.Start.Before(from) || !o.Start.Before(to) {
			continue
		}
		out = append(out, o)
	}
	return out
}
