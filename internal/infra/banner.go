package infra

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// PrintBanner displays the startup banner of long-running commands.
// The frame is cyan on the public API and yellow when an API key is set.
func PrintBanner(w io.Writer, cfg *Config) {
	frame := color.New(color.FgCyan)
	plan := "PUBLIC (50 req/min)"
	if cfg.API.APIKey != "" {
		frame = color.New(color.FgYellow)
		plan = "API KEY"
	}
	if !cfg.UI.Color {
		frame.DisableColor()
	}

	line := func(format string, args ...any) {
		frame.Fprintf(w, "#   %-53s #\n", fmt.Sprintf(format, args...))
	}

	fmt.Fprintln(w)
	frame.Fprintln(w, strings.Repeat("#", 59))
	line("")
	line("📈 Crypto Dashboard")
	line("")
	line("API:      %s", plan)
	line("CURRENCY: %s", strings.ToUpper(cfg.Feed.Currency))
	line("REFRESH:  %s", refreshLabel(cfg))
	line("VERSION:  %s", cfg.App.Version)
	line("")
	frame.Fprintln(w, strings.Repeat("#", 59))
	fmt.Fprintln(w)
}

func refreshLabel(cfg *Config) string {
	if !cfg.Feed.AutoRefresh {
		return "manual"
	}
	return "every " + cfg.Feed.RefreshInterval.String()
}
