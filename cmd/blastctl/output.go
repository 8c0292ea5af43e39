package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"

	"github.com/kass/go-blast-survey/pkg/config"
	"github.com/kass/go-blast-survey/pkg/store"
)

// app carries the state shared by every command
type app struct {
	cfgPath  string
	driver   string
	dsn      string
	logLevel string
	jsonOut  bool

	cfg    *config.Config
	out    io.Writer
	colors palette
}

// openStore connects to the configured database
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, a.cfg.Database)
}

// palette holds ANSI codes, all empty when output is not a terminal
type palette struct {
	reset, red, green, yellow, cyan, bold string
}

func newPalette(w io.Writer) palette {
	f, ok := w.(*os.File)
	if !ok || (!isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())) {
		return palette{}
	}
	return palette{
		reset:  "\033[0m",
		red:    "\033[31m",
		green:  "\033[32m",
		yellow: "\033[33m",
		cyan:   "\033[36m",
		bold:   "\033[1m",
	}
}

func (a *app) printTitle(title string) {
	fmt.Fprintf(a.out, "%s%s%s%s\n", a.colors.bold, a.colors.cyan, title, a.colors.reset)
	fmt.Fprintln(a.out, strings.Repeat("=", len(title)))
}

func (a *app) printSuccess(format string, args ...any) {
	fmt.Fprintf(a.out, "%s✓ %s%s\n", a.colors.green, fmt.Sprintf(format, args...), a.colors.reset)
}

func (a *app) printWarning(format string, args ...any) {
	fmt.Fprintf(a.out, "%s! %s%s\n", a.colors.yellow, fmt.Sprintf(format, args...), a.colors.reset)
}

func (a *app) printStat(label string, value any) {
	fmt.Fprintf(a.out, "  %s%s:%s %v\n", a.colors.bold, label, a.colors.reset, value)
}

// printJSON writes v as indented JSON
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "blastctl: encode output")
	}
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("blastctl: invalid id %q", arg)
	}
	return id, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatRatio(used, total int) string {
	return fmt.Sprintf("%d of %d", used, total)
}

func formatListing(id int64, bench string, holes int) string {
	if bench == "" {
		bench = "-"
	}
	return fmt.Sprintf("#%d bench %s, %d holes", id, bench, holes)
}
