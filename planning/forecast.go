/*
forecast.go - Triple exponential smoothing (Holt-Winters)

PURPOSE:
  Fits a level/trend/seasonal model to a regular DemandSeries and projects
  H future periods with 95% interval bounds.

MODEL:
  Seasonal indices are multiplicative ratios to the series mean; level and
  trend are additive. For each observed period t = 1 .. n-1, with
  s = seasonal[t mod m]:

    level[t]  = alpha * (y[t] / s) + (1 - alpha) * (level[t-1] + trend[t-1])
    trend[t]  = beta  * (level[t] - level[t-1]) + (1 - beta) * trend[t-1]
    seasonal  = gamma * (y[t] / level[t]) + (1 - gamma) * s

  Initialization:
    seasonal[i] = y[i] / mean(y)           for i < m
    level[0]    = y[0]
    trend[0]    = (y[m] - y[0]) / m

ERROR ESTIMATE:
  One-step-ahead residuals |y[t] - (level[t-1] + trend[t-1]) * s| for t >= m,
  taken before the seasonal index at t is updated. Their population standard
  deviation drives the interval margin 1.96 * stdDev * sqrt(h).

PRECONDITIONS:
  n >= 2 * m (one cycle to initialize, one to fit). Shorter series fail with
  *InsufficientHistoryError.

OUTPUT:
  Point forecasts and bounds are rounded to whole units and floored at zero.
  The function is pure: same inputs, bit-identical result. ID and
  GeneratedAt are left empty for the caller to stamp.
*/
package planning

import (
	"math"
)

// intervalZ is the normal quantile for a two-sided 95% interval.
const intervalZ = 1.96

// Forecast runs Holt-Winters over series and projects horizon periods.
func Forecast(itemID ItemID, series DemandSeries, g Granularity, params ForecastParams, horizon int) (ForecastResult, error) {
	if err := params.Validate(); err != nil {
		return ForecastResult{}, err
	}
	if horizon < 1 {
		return ForecastResult{}, &ValidationError{Field: "horizon", Message: "must be positive"}
	}
	if n, required := len(series), params.MinObservations(); n < required {
		return ForecastResult{}, &InsufficientHistoryError{Required: required, Provided: n}
	}

	y := series.Values()
	for _, v := range y {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ForecastResult{}, &ValidationError{Field: "quantity", Message: "demand must be a finite non-negative number"}
		}
	}

	fit := fitHoltWinters(y, params)
	mean, stdDev := meanStdDev(fit.residuals)

	last, _ := series.Last()
	n := len(y)
	m := params.SeasonalPeriod
	finalLevel := fit.level[n-1]
	finalTrend := fit.trend[n-1]

	points := make([]ForecastPoint, horizon)
	for h := 1; h <= horizon; h++ {
		raw := (finalLevel + float64(h)*finalTrend) * fit.seasonal[(n+h-1)%m]
		point := math.Round(math.Max(0, raw))
		margin := intervalZ * stdDev * math.Sqrt(float64(h))

		points[h-1] = ForecastPoint{
			PeriodOffset:  h,
			Period:        g.Key(g.Add(last.Start, h)),
			PointForecast: point,
			LowerBound:    math.Max(0, math.Round(point-margin)),
			UpperBound:    math.Round(point + margin),
		}
	}

	return ForecastResult{
		ItemID:         itemID,
		Params:         params,
		Granularity:    g,
		SeriesEnd:      last.Period,
		Observations:   n,
		ResidualMean:   mean,
		ResidualStdDev: stdDev,
		Points:         points,
	}, nil
}

// hwFit is the state of one fitting pass. Every slice is owned by the pass.
type hwFit struct {
	level     []float64 // level[t] after observing y[t]
	trend     []float64
	seasonal  []float64 // length m, updated in place
	residuals []float64 // one-step-ahead absolute errors for t >= m
}

func fitHoltWinters(y []float64, p ForecastParams) hwFit {
	n, m := len(y), p.SeasonalPeriod

	fit := hwFit{
		level:    make([]float64, n),
		trend:    make([]float64, n),
		seasonal: make([]float64, m),
	}

	avg, _ := meanStdDev(y)
	for i := 0; i < m; i++ {
		if avg > 0 {
			fit.seasonal[i] = y[i] / avg
		} else {
			fit.seasonal[i] = 1
		}
	}

	fit.level[0] = y[0]
	if n > m {
		fit.trend[0] = (y[m] - y[0]) / float64(m)
	}

	for t := 1; t < n; t++ {
		idx := t % m
		s := fit.seasonal[idx]
		prevLevel, prevTrend := fit.level[t-1], fit.trend[t-1]

		if t >= m {
			fit.residuals = append(fit.residuals, math.Abs(y[t]-(prevLevel+prevTrend)*s))
		}

		fit.level[t] = p.Alpha*deseasonalize(y[t], s) + (1-p.Alpha)*(prevLevel+prevTrend)
		fit.trend[t] = p.Beta*(fit.level[t]-prevLevel) + (1-p.Beta)*prevTrend
		if fit.level[t] != 0 {
			fit.seasonal[idx] = p.Gamma*(y[t]/fit.level[t]) + (1-p.Gamma)*s
		}
	}
	return fit
}

// deseasonalize divides by the seasonal index; a zero index (a season that
// never saw demand) leaves the observation as is.
func deseasonalize(v, index float64) float64 {
	if index == 0 {
		return v
	}
	return v / index
}

// meanStdDev returns the mean and population standard deviation of xs.
func meanStdDev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	sq := 0.0
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}
