package journal

import "time"

// DateLayout is the calendar-date wire format.
const DateLayout = "2006-01-02"

// Moment records when a serving was eaten, at one of two precision levels.
// Every record written by this tool carries both the calendar date and the
// precise instant; records imported from older sources may carry the date
// only. Consumers branch explicitly on HasPrecise instead of probing, so
// every degraded code path is visible at the call site.
type Moment struct {
	CalendarDate string     `json:"calendar_date"`
	Precise      *time.Time `json:"precise,omitempty"`
}

// PreciseMoment returns a Moment carrying t and the calendar date derived
// from it in t's location.
func PreciseMoment(t time.Time) Moment {
	return Moment{
		CalendarDate: t.Format(DateLayout),
		Precise:      &t,
	}
}

// CalendarOnly returns a date-only Moment.
func CalendarOnly(date string) Moment {
	return Moment{CalendarDate: date}
}

// HasPrecise reports whether the fine-grained instant is known.
func (m Moment) HasPrecise() bool {
	return m.Precise != nil
}

// Valid reports whether the moment can be scored at all. A record with
// neither a precise instant nor a calendar date is unscorable and is
// skipped by the engine.
func (m Moment) Valid() bool {
	return m.Precise != nil || m.CalendarDate != ""
}

// Weekday returns the weekday at the best available precision. Date-only
// moments parse the date in UTC; the second return is false when the date
// string does not parse.
func (m Moment) Weekday() (time.Weekday, bool) {
	if m.Precise != nil {
		return m.Precise.Weekday(), true
	}
	d, err := time.Parse(DateLayout, m.CalendarDate)
	if err != nil {
		return time.Sunday, false
	}
	return d.Weekday(), true
}

// MinutesOfDay returns minutes since midnight in the instant's location.
// Only available for precise moments.
func (m Moment) MinutesOfDay() (int, bool) {
	if m.Precise == nil {
		return 0, false
	}
	return m.Precise.Hour()*60 + m.Precise.Minute(), true
}

// SameDateAs reports whether the calendar date equals t's calendar date in
// t's location. Exact string comparison; "yesterday" never matches.
func (m Moment) SameDateAs(t time.Time) bool {
	return m.CalendarDate != "" && m.CalendarDate == t.Format(DateLayout)
}
