package daylight

import (
	"fmt"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/rs/zerolog"

	"solarwatch/config"
)

type Phase string

const (
	PhaseNight        Phase = "NIGHT"
	PhaseSunriseGrace Phase = "SUNRISE_GRACE"
	PhaseDay          Phase = "DAY"
	PhaseSunsetGrace  Phase = "SUNSET_GRACE"
)

// Info is the daylight context for one evaluation cycle.
type Info struct {
	Phase             Phase     `json:"phase"`
	IsDaylight        bool      `json:"is_daylight"`
	Sunrise           time.Time `json:"sunrise"`
	SunriseGraceEnd   time.Time `json:"sunrise_grace_end"`
	Sunset            time.Time `json:"sunset"`
	SunsetGraceStart  time.Time `json:"sunset_grace_start"`
	ProductionOverAt  time.Time `json:"production_over_at"`
	ProductionDayOver bool      `json:"production_day_over"`
	InGraceWindow     bool      `json:"in_grace_window"`
	SkipModbus        bool      `json:"skip_modbus"`
	SkipCloud         bool      `json:"skip_cloud"`
}

// Policy classifies wall-clock time into day phases. Info is a pure
// function of the given instant and the configuration; sunrise and sunset
// come from astronomy when coordinates are configured, otherwise from the
// static HH:MM fallback.
type Policy struct {
	cfg config.DaylightConfig
	log zerolog.Logger
}

func NewPolicy(cfg config.DaylightConfig, log zerolog.Logger) *Policy {
	return &Policy{
		cfg: cfg,
		log: log.With().Str("component", "daylight-policy").Logger(),
	}
}

// Info computes the daylight context for the given instant. The instant
// is interpreted in the configured timezone; callers must not pass
// timestamps whose zone is unknown without assigning one first.
func (p *Policy) Info(now time.Time) Info {
	loc := p.cfg.Location()
	now = now.In(loc)

	sunriseAt, sunsetAt := p.sunTimes(now, loc)

	graceEnd := sunriseAt.Add(time.Duration(p.cfg.SunriseGraceMinutes) * time.Minute)
	graceStart := sunsetAt.Add(-time.Duration(p.cfg.SunsetGraceMinutes) * time.Minute)
	// Degenerate grace windows collapse rather than crossing over.
	if graceStart.Before(graceEnd) {
		graceStart = graceEnd
	}
	productionOverAt := sunsetAt.Add(time.Duration(p.cfg.SummaryDelayMinutes) * time.Minute)

	var phase Phase
	switch {
	case now.Before(sunriseAt):
		phase = PhaseNight
	case now.Before(graceEnd):
		phase = PhaseSunriseGrace
	case now.Before(graceStart):
		phase = PhaseDay
	case now.Before(sunsetAt):
		phase = PhaseSunsetGrace
	default:
		phase = PhaseNight
	}

	// The production day stays "over" through the night until the next
	// day's sunrise takes effect.
	productionDayOver := !now.Before(productionOverAt) || now.Before(sunriseAt)

	return Info{
		Phase:             phase,
		IsDaylight:        !now.Before(sunriseAt) && now.Before(sunsetAt),
		Sunrise:           sunriseAt,
		SunriseGraceEnd:   graceEnd,
		Sunset:            sunsetAt,
		SunsetGraceStart:  graceStart,
		ProductionOverAt:  productionOverAt,
		ProductionDayOver: productionDayOver,
		InGraceWindow:     phase == PhaseSunriseGrace || phase == PhaseSunsetGrace,
		SkipModbus:        phase == PhaseNight && p.cfg.SkipModbusAtNight,
		SkipCloud:         phase == PhaseNight && p.cfg.SkipCloudAtNight,
	}
}

func (p *Policy) sunTimes(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if p.cfg.HasCoordinates {
		rise, set := sunrise.SunriseSunset(p.cfg.Latitude, p.cfg.Longitude, now.Year(), now.Month(), now.Day())
		if !rise.IsZero() && !set.IsZero() {
			return rise.In(loc), set.In(loc)
		}
		p.log.Debug().
			Float64("latitude", p.cfg.Latitude).
			Float64("longitude", p.cfg.Longitude).
			Msg("no astronomical sunrise/sunset for this date, using static times")
	}

	rise, err := atClockTime(now, p.cfg.StaticSunrise, loc)
	if err != nil {
		rise = atClock(now, 6, 30, loc)
	}
	set, err := atClockTime(now, p.cfg.StaticSunset, loc)
	if err != nil {
		set = atClock(now, 20, 30, loc)
	}
	return rise, set
}

func atClockTime(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q: %w", hhmm, err)
	}
	return atClock(day, parsed.Hour(), parsed.Minute(), loc), nil
}

func atClock(day time.Time, hour, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
}
