package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"distiller/internal/aggregate"
)

// windowFlags selects the publication window a command operates on. Either a
// single --date or a --start/--end pair.
type windowFlags struct {
	date  string
	start string
	end   string
}

func (w *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.date, "date", "", "Publication date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&w.start, "start", "", "First publication date of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&w.end, "end", "", "Last publication date of the window (YYYY-MM-DD)")
}

func (w *windowFlags) resolve() (aggregate.Window, error) {
	date := strings.TrimSpace(w.date)
	start := strings.TrimSpace(w.start)
	end := strings.TrimSpace(w.end)

	switch {
	case date != "" && (start != "" || end != ""):
		return aggregate.Window{}, errors.New("--date cannot be combined with --start or --end")
	case date != "":
		return aggregate.ParseWindow(date, "")
	case start != "":
		return aggregate.ParseWindow(start, end)
	default:
		return aggregate.Window{}, errors.New("a window is required: pass --date or --start/--end")
	}
}
