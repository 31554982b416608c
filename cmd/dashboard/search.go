package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Gabrielc476/dashboard-crypto/internal/app"
	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/engine"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// searchCmd looks coins up by name or symbol.
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search coins by name or symbol",
	Long: `Search the CoinGecko catalogue.

With a query the matches are printed once. Without one, and when stdin is a
terminal, an interactive prompt opens: type to search, use the arrow keys to
highlight a suggestion, Enter to open it and Esc to quit.`,
	RunE: withBootstrap(runSearch),
}

func runSearch(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	fd := int(os.Stdin.Fd())
	if query == "" && term.IsTerminal(fd) {
		return runInteractiveSearch(cmd, b, fd)
	}
	if n := utf8.RuneCountInString(query); n < b.Config.Search.MinLength || n > b.Config.Search.MaxLength {
		return fmt.Errorf("query must be %d to %d characters", b.Config.Search.MinLength, b.Config.Search.MaxLength)
	}

	results, err := b.Client.SearchCoins(cmd.Context(), query)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	return safeRender(w, func() error {
		if len(results) == 0 {
			fmt.Fprintf(w, "No coins found for %q.\n", query)
			return nil
		}
		if len(results) > b.Config.Search.MaxSuggestions {
			results = results[:b.Config.Search.MaxSuggestions]
		}
		return renderSearchResults(w, results)
	})
}

// input is one decoded keypress of the interactive prompt.
type input struct {
	key  engine.Key // Zero for text edits
	r    rune       // Printable rune to append
	back bool       // Backspace
	quit bool       // Ctrl-C or Ctrl-D
}

// decodeInput maps one read from a raw terminal to an input. ok is false for
// sequences the prompt ignores.
func decodeInput(buf []byte) (in input, ok bool) {
	if len(buf) == 0 {
		return input{}, false
	}
	switch {
	case len(buf) >= 3 && buf[0] == 0x1b && buf[1] == '[':
		switch buf[2] {
		case 'A':
			return input{key: engine.KeyUp}, true
		case 'B':
			return input{key: engine.KeyDown}, true
		}
		return input{}, false
	case len(buf) == 1 && buf[0] == 0x1b:
		return input{key: engine.KeyEscape}, true
	case buf[0] == '\r' || buf[0] == '\n':
		return input{key: engine.KeyEnter}, true
	case buf[0] == 0x7f || buf[0] == 0x08:
		return input{back: true}, true
	case buf[0] == 0x03 || buf[0] == 0x04:
		return input{quit: true}, true
	}
	r, _ := utf8.DecodeRune(buf)
	if r == utf8.RuneError || r < 0x20 {
		return input{}, false
	}
	return input{r: r}, true
}

// readInputs decodes stdin until ctx is done or the reader fails.
func readInputs(ctx context.Context, r io.Reader) <-chan input {
	ch := make(chan input)
	go func() {
		defer close(ch)
		buf := make([]byte, 16)
		for {
			n, err := r.Read(buf)
			if err != nil {
				return
			}
			in, ok := decodeInput(buf[:n])
			if !ok {
				continue
			}
			select {
			case ch <- in:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func runInteractiveSearch(cmd *cobra.Command, b *app.Bootstrap, fd int) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	searcher := b.NewSearcher()
	defer searcher.Close()

	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	restored := false
	restore := func() {
		if !restored {
			_ = term.Restore(fd, old)
			restored = true
		}
	}
	defer restore()

	w := cmd.OutOrStdout()
	pal := newPalette(b.Theme.Resolved())
	var drawMu sync.Mutex
	draw := func(st engine.SearchState) {
		drawMu.Lock()
		defer drawMu.Unlock()
		_ = safeRender(w, func() error {
			drawSearch(w, st, pal)
			return nil
		})
	}
	searcher.OnUpdate(draw)
	searcher.ShowSuggestions()
	draw(searcher.State())

	var (
		query  []rune
		picked *domain.Suggestion
	)
	inputs := readInputs(ctx, os.Stdin)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case in, ok := <-inputs:
			if !ok || in.quit {
				break loop
			}
			switch {
			case in.key == engine.KeyEnter:
				st := searcher.State()
				if st.ShowSuggestions && st.SelectedIndex >= 0 && st.SelectedIndex < len(st.Suggestions) {
					sug := st.Suggestions[st.SelectedIndex]
					picked = &sug
				}
				if searcher.HandleKey(ctx, in.key) && picked != nil {
					break loop
				}
			case in.key == engine.KeyEscape:
				if !searcher.HandleKey(ctx, in.key) {
					break loop
				}
			case in.key != 0:
				searcher.HandleKey(ctx, in.key)
			case in.back:
				if len(query) > 0 {
					query = query[:len(query)-1]
				}
				searcher.UpdateQuery(string(query))
				if len(query) == 0 {
					searcher.ShowSuggestions()
				}
			default:
				if len(query) < b.Config.Search.MaxLength {
					query = append(query, in.r)
				}
				searcher.UpdateQuery(string(query))
			}
		}
	}

	searcher.Close()
	restore()
	drawMu.Lock()
	fmt.Fprint(w, "\r\n")
	drawMu.Unlock()
	if picked == nil {
		return nil
	}
	return runCoin(cmd, []string{picked.ID}, b)
}

// drawSearch repaints the prompt and the dropdown. Lines end in \r\n because
// the terminal is in raw mode.
func drawSearch(w io.Writer, st engine.SearchState, pal palette) {
	var sb strings.Builder
	sb.WriteString("\x1b[H\x1b[2J")
	sb.WriteString(pal.title.Sprint("Search: "))
	sb.WriteString(st.Query)
	sb.WriteString("\r\n")

	switch {
	case st.IsSearching:
		sb.WriteString(pal.muted.Sprint(engine.MsgSearching) + "\r\n")
	case st.ErrMessage != "":
		sb.WriteString(pal.warning.Sprint("⚠️  "+st.ErrMessage) + "\r\n")
	}

	if st.ShowSuggestions {
		if len(st.Suggestions) == 0 && strings.TrimSpace(st.Query) != "" && !st.IsSearching {
			sb.WriteString(pal.muted.Sprint("No matches") + "\r\n")
		}
		for i, s := range st.Suggestions {
			line := fmt.Sprintf("%-28s %-8s %s", s.Name, strings.ToUpper(s.Symbol), suggestionTag(s))
			if i == st.SelectedIndex {
				line = pal.title.Sprint("> " + line)
			} else {
				line = "  " + line
			}
			sb.WriteString(line + "\r\n")
		}
	}
	sb.WriteString(pal.muted.Sprint("↑/↓ select · Enter open · Esc close · Ctrl-C quit"))
	fmt.Fprint(w, sb.String())
}

func suggestionTag(s domain.Suggestion) string {
	switch {
	case s.FromHistory:
		return "recent"
	case s.IsPlaceholder:
		return "popular"
	case s.MarketCapRank > 0:
		return domain.FormatRank(s.MarketCapRank)
	}
	return ""
}

// historyCmd lists and edits the search history.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently opened search results",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		entries := b.History.List()
		w := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(w, "Search history is empty.")
			return nil
		}
		now := b.Clock.Now()
		for i, e := range entries {
			fmt.Fprintf(w, "%2d. %-24s %-8s %s\n", i+1, e.Name, strings.ToUpper(e.Symbol), domain.FormatTimeAgo(e.SearchedAt, now))
		}
		return nil
	}),
}

var historyRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove one coin from the search history",
	Args:  cobra.ExactArgs(1),
	RunE: withBootstrap(func(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
		return b.History.Remove(cmd.Context(), args[0])
	}),
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the search history",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		if err := b.History.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Search history cleared.")
		return nil
	}),
}

func init() {
	historyCmd.AddCommand(historyRemoveCmd)
	historyCmd.AddCommand(historyClearCmd)
}
