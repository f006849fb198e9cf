// Package markethours models the CME equity-futures trading session.
//
// Globex trades from Sunday 17:00 to Friday 16:00 Chicago time with a daily
// maintenance halt from 16:00 to 17:00. A Session carries the close time and
// the pre-close window inside which open positions are flattened.
package markethours

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Default CME settings.
const (
	DefaultLocation   = "America/Chicago"
	DefaultClose      = "16:00"
	DefaultExitWindow = 30 * time.Second

	// Globex reopens one hour after the daily close.
	ReopenAfter = time.Hour
)

// Session is a daily session with a fixed local close time.
type Session struct {
	loc        *time.Location
	closeHour  int
	closeMin   int
	exitWindow time.Duration
}

// New builds a session. closeHHMM is local wall-clock time, e.g. "16:00".
func New(location, closeHHMM string, exitWindow time.Duration) (*Session, error) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return nil, fmt.Errorf("markethours: location %q: %w", location, err)
	}
	ct, err := time.Parse("15:04", closeHHMM)
	if err != nil {
		return nil, fmt.Errorf("markethours: close %q: %w", closeHHMM, err)
	}
	if exitWindow < 0 {
		return nil, fmt.Errorf("markethours: negative exit window %v", exitWindow)
	}
	return &Session{loc: loc, closeHour: ct.Hour(), closeMin: ct.Minute(), exitWindow: exitWindow}, nil
}

// CME returns the default 16:00 America/Chicago session with a 30 s window.
func CME() *Session {
	s, err := New(DefaultLocation, DefaultClose, DefaultExitWindow)
	if err != nil {
		// tzdata is embedded, so this only fails on a broken build
		panic(err)
	}
	return s
}

// Location returns the session time zone.
func (s *Session) Location() *time.Location { return s.loc }

// IsTradingDay returns true if t's local date is Mon–Fri and not a full holiday.
func (s *Session) IsTradingDay(t time.Time) bool {
	lt := t.In(s.loc)
	wd := lt.Weekday()
	return wd >= time.Monday && wd <= time.Friday && !IsHoliday(lt)
}

// TodayClose returns the close on t's local date, honouring early closes.
func (s *Session) TodayClose(t time.Time) time.Time {
	lt := t.In(s.loc)
	if h, m, ok := EarlyClose(lt); ok {
		return time.Date(lt.Year(), lt.Month(), lt.Day(), h, m, 0, 0, s.loc)
	}
	return time.Date(lt.Year(), lt.Month(), lt.Day(), s.closeHour, s.closeMin, 0, 0, s.loc)
}

// IsOpen reports whether Globex is trading at t.
func (s *Session) IsOpen(t time.Time) bool {
	lt := t.In(s.loc)
	cl := s.TodayClose(lt)
	reopen := time.Date(lt.Year(), lt.Month(), lt.Day(), s.closeHour, s.closeMin, 0, 0, s.loc).Add(ReopenAfter)

	switch lt.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return !lt.Before(reopen) && !IsHoliday(lt.AddDate(0, 0, 1))
	case time.Friday:
		return s.IsTradingDay(lt) && lt.Before(cl)
	}
	if !s.IsTradingDay(lt) {
		return false
	}
	// Evening session belongs to the next trading day.
	if !lt.Before(reopen) {
		return s.IsTradingDay(lt.AddDate(0, 0, 1))
	}
	return lt.Before(cl)
}

// TimeUntilClose returns the duration until today's close, or 0 once past it.
func (s *Session) TimeUntilClose(t time.Time) time.Duration {
	d := s.TodayClose(t).Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

// NearClose reports whether t falls within the exit window before today's
// close, close time included. Always false on non-trading days.
func (s *Session) NearClose(t time.Time) bool {
	return s.closesWithin(t, 0)
}

// closesWithin reports whether a bar closing at t is at or before today's
// close and the bar after it, width later, closes inside the exit window.
func (s *Session) closesWithin(t time.Time, width time.Duration) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	cl := s.TodayClose(t)
	return !t.Add(width).Before(cl.Add(-s.exitWindow)) && !t.After(cl)
}

// BarClock applies the exit window to bars of a fixed width.
type BarClock struct {
	s     *Session
	width time.Duration
}

// ForBars returns a clock for bars of the given width. A bar is near the
// close when the next bar would close inside the exit window, so an exit
// decided on it can still fill before the halt.
func (s *Session) ForBars(width time.Duration) *BarClock {
	return &BarClock{s: s, width: width}
}

// NearClose reports whether the bar closing at t is the last one to act on
// before the close.
func (c *BarClock) NearClose(t time.Time) bool {
	return c.s.closesWithin(t, c.width)
}

// StatusString returns a human-readable session status.
func (s *Session) StatusString(t time.Time) string {
	if s.IsOpen(t) {
		return fmt.Sprintf("Globex open, closes in %s", fmtDur(s.TimeUntilClose(t)))
	}
	return fmt.Sprintf("Globex closed (%s)", t.In(s.loc).Format("Mon 15:04 MST"))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
