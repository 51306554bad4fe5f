package aggregate

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"distiller/internal/services"
)

// DateLayout is the calendar-day format accepted on the command line and used
// for package identifiers.
const DateLayout = "2006-01-02"

// titleLayout renders dates for human-facing package titles.
const titleLayout = "January 2, 2006"

var titleCaser = cases.Title(language.English)

// Window is an inclusive calendar-day range to harvest. Start and End carry
// date granularity only; time-of-day components are ignored.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window from two dates, rejecting inverted ranges.
func NewWindow(start, end time.Time) (Window, error) {
	start = truncateToDay(start)
	end = truncateToDay(end)
	if end.Before(start) {
		return Window{}, services.Wrap(services.ErrValidation, "aggregate", "window",
			fmt.Sprintf("end date %s precedes start date %s", end.Format(DateLayout), start.Format(DateLayout)), nil)
	}
	return Window{Start: start, End: end}, nil
}

// ParseWindow parses command-line date arguments. An empty end collapses the
// window to the single start day.
func ParseWindow(startArg, endArg string) (Window, error) {
	start, err := time.Parse(DateLayout, strings.TrimSpace(startArg))
	if err != nil {
		return Window{}, services.Wrap(services.ErrValidation, "aggregate", "window",
			fmt.Sprintf("invalid start date %q (expected YYYY-MM-DD)", startArg), err)
	}
	if strings.TrimSpace(endArg) == "" {
		return NewWindow(start, start)
	}
	end, err := time.Parse(DateLayout, strings.TrimSpace(endArg))
	if err != nil {
		return Window{}, services.Wrap(services.ErrValidation, "aggregate", "window",
			fmt.Sprintf("invalid end date %q (expected YYYY-MM-DD)", endArg), err)
	}
	return NewWindow(start, end)
}

// SingleDay reports whether the window covers exactly one calendar day.
func (w Window) SingleDay() bool {
	return w.Start.Equal(w.End)
}

// ID is the stable package identifier derived from the window dates.
func (w Window) ID() string {
	if w.SingleDay() {
		return w.Start.Format(DateLayout)
	}
	return fmt.Sprintf("%s_to_%s", w.Start.Format(DateLayout), w.End.Format(DateLayout))
}

// DateRange returns the window bounds as ISO date strings for manifests.
func (w Window) DateRange() [2]string {
	return [2]string{w.Start.Format(DateLayout), w.End.Format(DateLayout)}
}

// Title renders the human-facing package title. The section slug arrives
// lowercase from configuration and is title-cased for display.
func (w Window) Title(publication, section string) string {
	label := publication
	if section = strings.TrimSpace(section); section != "" {
		label = fmt.Sprintf("%s (%s)", publication, titleCaser.String(section))
	}
	if w.SingleDay() {
		return fmt.Sprintf("%s, %s", label, w.Start.Format(titleLayout))
	}
	return fmt.Sprintf("%s, %s to %s", label, w.Start.Format(titleLayout), w.End.Format(titleLayout))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
