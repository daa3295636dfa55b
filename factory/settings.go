package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/warp/replenishment-engine/planning"
)

// =============================================================================
// ENGINE SETTINGS
// =============================================================================
//
// Settings file layout (every field optional, missing fields keep defaults):
//
//	{
//	  "forecast": {
//	    "alpha": 0.2, "beta": 0.1, "gamma": 0.3,
//	    "seasonal_period": 12,
//	    "horizon": 6,
//	    "lookback_periods": 36,
//	    "granularity": "month"
//	  },
//	  "planning": {
//	    "horizon_days": 90,
//	    "workers": 4
//	  }
//	}

// SettingsJSON is the JSON representation of the engine settings.
type SettingsJSON struct {
	Forecast ForecastJSON `json:"forecast"`
	Planning PlanningJSON `json:"planning"`
}

type ForecastJSON struct {
	Alpha           *float64 `json:"alpha,omitempty"`
	Beta            *float64 `json:"beta,omitempty"`
	Gamma           *float64 `json:"gamma,omitempty"`
	SeasonalPeriod  *int     `json:"seasonal_period,omitempty"`
	Horizon         *int     `json:"horizon,omitempty"`
	LookbackPeriods *int     `json:"lookback_periods,omitempty"`
	Granularity     *string  `json:"granularity,omitempty"`
}

type PlanningJSON struct {
	HorizonDays *int `json:"horizon_days,omitempty"`
	Workers     *int `json:"workers,omitempty"`
}

// Settings is the validated engine configuration.
type Settings struct {
	Forecast planning.ForecastSettings
	Planning planning.PlanningConfig
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Forecast: planning.DefaultForecastSettings(),
		Planning: planning.DefaultPlanningConfig(),
	}
}

// LoadSettings reads a settings file. An empty path returns the defaults.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings overlays the JSON document on the defaults and validates
// the result.
func ParseSettings(data []byte) (Settings, error) {
	var sj SettingsJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings JSON: %w", err)
	}
	return sj.Apply(DefaultSettings())
}

// Apply overlays the set fields of sj on base and validates the result.
func (sj SettingsJSON) Apply(base Settings) (Settings, error) {
	s := base
	fj := sj.Forecast

	setFloat(&s.Forecast.Params.Alpha, fj.Alpha)
	setFloat(&s.Forecast.Params.Beta, fj.Beta)
	setFloat(&s.Forecast.Params.Gamma, fj.Gamma)
	setInt(&s.Forecast.Params.SeasonalPeriod, fj.SeasonalPeriod)
	setInt(&s.Forecast.Horizon, fj.Horizon)
	setInt(&s.Forecast.LookbackPeriods, fj.LookbackPeriods)
	if fj.Granularity != nil {
		g, err := planning.ParseGranularity(*fj.Granularity)
		if err != nil {
			return Settings{}, err
		}
		s.Forecast.Granularity = g
	}

	setInt(&s.Planning.HorizonDays, sj.Planning.HorizonDays)
	setInt(&s.Planning.Workers, sj.Planning.Workers)

	if err := s.Forecast.Validate(); err != nil {
		return Settings{}, err
	}
	if err := s.Planning.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ToJSON converts validated settings back to their JSON form.
func (s Settings) ToJSON() SettingsJSON {
	g := string(s.Forecast.Granularity)
	p := s.Forecast.Params
	return SettingsJSON{
		Forecast: ForecastJSON{
			Alpha:           &p.Alpha,
			Beta:            &p.Beta,
			Gamma:           &p.Gamma,
			SeasonalPeriod:  &p.SeasonalPeriod,
			Horizon:         &s.Forecast.Horizon,
			LookbackPeriods: &s.Forecast.LookbackPeriods,
			Granularity:     &g,
		},
		Planning: PlanningJSON{
			HorizonDays: &s.Planning.HorizonDays,
			Workers:     &s.Planning.Workers,
		},
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
