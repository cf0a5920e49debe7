package lookup

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"

	"narrative-lab/internal/domain"
)

// Sessions tells whether an exchange holds a regular session on a date.
type Sessions interface {
	IsSession(d domain.CalendarDate) bool
}

// exchangeSessions adapts a scmhub/calendar exchange calendar.
type exchangeSessions struct {
	cal *calendar.Calendar
}

func (e exchangeSessions) IsSession(d domain.CalendarDate) bool {
	loc := e.cal.Loc
	if loc == nil {
		loc = time.UTC
	}
	// Midday avoids zone-boundary surprises for the exchange's local date.
	return e.cal.IsBusinessDay(time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, loc))
}

// WeekdaySessions treats Monday through Friday as sessions.
type WeekdaySessions struct{}

// IsSession implements Sessions.
func (WeekdaySessions) IsSession(d domain.CalendarDate) bool {
	wd := d.Time().Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// micBySuffix maps ticker suffixes to ISO 10383 MIC codes.
var micBySuffix = map[string]string{
	".L":  "xlon",
	".PA": "xpar",
	".DE": "xfra",
	".AS": "xams",
	".MI": "xmil",
	".MC": "xmad",
	".SW": "xswx",
	".TO": "xtse",
	".T":  "xtks",
	".HK": "xhkg",
	".AX": "xasx",
}

// MICForSymbol resolves the exchange for a symbol from its suffix.
func MICForSymbol(symbol, defaultMIC string) string {
	if i := strings.LastIndex(symbol, "."); i > 0 {
		if mic, ok := micBySuffix[strings.ToUpper(symbol[i:])]; ok {
			return mic
		}
	}
	if defaultMIC == "" {
		return "xnys"
	}
	return defaultMIC
}

// SessionsFor returns the exchange calendar for a symbol, falling back to
// weekdays when the calendar library has no entry for the MIC.
func SessionsFor(symbol, defaultMIC string) Sessions {
	cal := calendar.GetCalendar(MICForSymbol(symbol, defaultMIC))
	if cal == nil {
		return WeekdaySessions{}
	}
	return exchangeSessions{cal: cal}
}

// MissingSessions counts exchange sessions in [from, to] that have no row in the index.
func MissingSessions(x *PriceIndex, s Sessions, from, to domain.CalendarDate) int {
	if x == nil || s == nil || to.Before(from) {
		return 0
	}
	missing := 0
	for d := from; !d.After(to); d = d.AddDays(1) {
		if s.IsSession(d) && !x.Contains(d) {
			missing++
		}
	}
	return missing
}
