package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Gabrielc476/dashboard-crypto/internal/app"
	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/prefs"
	"github.com/spf13/cobra"
)

// favoritesCmd manages the favorites list.
var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	Aliases: []string{"fav"},
	Short:   "Manage favorite coins",
	Long: `Manage the ordered list of favorite coins.

Without a subcommand the favorites are listed with live prices.

Examples:
  dashboard favorites add bitcoin ethereum
  dashboard favorites reorder 2 1
  dashboard favorites export > favorites.json
  dashboard favorites import favorites.json --replace`,
	Args: cobra.NoArgs,
	RunE: withBootstrap(runFavoritesList),
}

func runFavoritesList(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
	w := cmd.OutOrStdout()
	ids := b.Favorites.List()
	meta := b.Favorites.Metadata()
	pal := newPalette(b.Theme.Resolved())
	if meta.IsEmpty {
		fmt.Fprintln(w, "No favorites yet. Add one with: dashboard favorites add <id>")
		return nil
	}

	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		for i, id := range ids {
			fmt.Fprintf(w, "%2d. %s\n", i+1, id)
		}
	} else {
		coins, err := b.Client.GetCoinsByIDs(cmd.Context(), ids, b.Config.Feed.Currency)
		if err != nil {
			return err
		}
		ordered := orderByIDs(coins, ids)
		err = safeRender(w, func() error {
			table := coinTable{currency: b.Config.Feed.Currency, favorites: ids, narrow: isNarrow(), pal: pal}
			return table.render(w, ordered)
		})
		if err != nil {
			return err
		}
	}
	pal.muted.Fprintf(w, "%d/%d favorites, %d slots left\n", meta.Count, meta.MaxCount, meta.RemainingSlots)
	return nil
}

// orderByIDs returns coins in the order of ids, skipping ids without data.
func orderByIDs(coins []domain.Coin, ids []string) []domain.Coin {
	byID := make(map[string]domain.Coin, len(coins))
	for _, c := range coins {
		byID[c.ID] = c
	}
	out := make([]domain.Coin, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add <id>...",
	Short: "Add coins to the favorites",
	Args:  cobra.MinimumNArgs(1),
	RunE: withBootstrap(func(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
		ctx := cmd.Context()
		w := cmd.OutOrStdout()
		if len(args) > 1 {
			before := len(b.Favorites.List())
			if _, err := b.Favorites.AddMany(ctx, args); err != nil {
				return err
			}
			fmt.Fprintf(w, "Added %d favorites.\n", len(b.Favorites.List())-before)
			return nil
		}

		id := args[0]
		if !prefs.IsValidID(id) {
			return errors.New(domain.MsgInvalidCoin)
		}
		if b.Favorites.IsFavorite(id) {
			fmt.Fprintf(w, "%s is already a favorite.\n", id)
			return nil
		}
		added, err := b.Favorites.Add(ctx, id)
		if err != nil {
			return err
		}
		if !added {
			return fmt.Errorf("favorites are full (%d max)", b.Favorites.Max())
		}
		fmt.Fprintf(w, "★ %s added.\n", id)
		return nil
	}),
}

var favoritesRemoveCmd = &cobra.Command{
	Use:     "remove <id>...",
	Aliases: []string{"rm"},
	Short:   "Remove coins from the favorites",
	Args:    cobra.MinimumNArgs(1),
	RunE: withBootstrap(func(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
		n, err := b.Favorites.RemoveMany(cmd.Context(), args)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d favorites.\n", n)
		return nil
	}),
}

var favoritesToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Add the coin if missing, remove it otherwise",
	Args:  cobra.ExactArgs(1),
	RunE: withBootstrap(func(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
		if !prefs.IsValidID(args[0]) {
			return errors.New(domain.MsgInvalidCoin)
		}
		changed, err := b.Favorites.Toggle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("favorites are full (%d max)", b.Favorites.Max())
		}
		state := "removed from"
		if b.Favorites.IsFavorite(args[0]) {
			state = "added to"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s favorites.\n", args[0], state)
		return nil
	}),
}

var favoritesReorderCmd = &cobra.Command{
	Use:   "reorder <from> <to>",
	Short: "Move a favorite to another position (1-based)",
	Args:  cobra.ExactArgs(2),
	RunE: withBootstrap(func(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
		from, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[0])
		}
		to, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[1])
		}
		moved, err := b.Favorites.Reorder(cmd.Context(), from-1, to-1)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("positions must be within 1..%d", len(b.Favorites.List()))
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(b.Favorites.List(), ", "))
		return nil
	}),
}

var favoritesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every favorite",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		return b.Favorites.Clear(cmd.Context())
	}),
}

var favoritesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Drop malformed or duplicate ids",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		n, err := b.Favorites.Validate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dropped %d invalid entries.\n", n)
		return nil
	}),
}

var favoritesExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the favorites as JSON to a file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: withBootstrap(func(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
		data, err := b.Favorites.Export()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		return os.WriteFile(args[0], data, 0o644)
	}),
}

var favoritesImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Load favorites exported earlier",
	Args:  cobra.ExactArgs(1),
	RunE: withBootstrap(func(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}
		replace, _ := cmd.Flags().GetBool("replace")
		n, err := b.Favorites.Import(cmd.Context(), data, !replace)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d ids, %d favorites now.\n", n, len(b.Favorites.List()))
		return nil
	}),
}

var favoritesBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Save a timestamped backup and prune old ones",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		data, err := b.Favorites.Export()
		if err != nil {
			return err
		}
		path, err := b.Backups.Save(data)
		if err != nil {
			return err
		}
		if err := b.Backups.Cleanup(b.Config.Favorites.BackupKeep); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
		return nil
	}),
}

var favoritesRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the favorites with the newest backup",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		data, err := b.Backups.LoadLatest()
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("no backups in %s", b.Backups.Dir())
		}
		n, err := b.Favorites.Import(cmd.Context(), data, false)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d favorites.\n", n)
		return nil
	}),
}

func init() {
	favoritesCmd.Flags().Bool("offline", false, "List ids without fetching prices")
	favoritesImportCmd.Flags().Bool("replace", false, "Replace the list instead of merging")

	favoritesCmd.AddCommand(favoritesAddCmd)
	favoritesCmd.AddCommand(favoritesRemoveCmd)
	favoritesCmd.AddCommand(favoritesToggleCmd)
	favoritesCmd.AddCommand(favoritesReorderCmd)
	favoritesCmd.AddCommand(favoritesClearCmd)
	favoritesCmd.AddCommand(favoritesValidateCmd)
	favoritesCmd.AddCommand(favoritesExportCmd)
	favoritesCmd.AddCommand(favoritesImportCmd)
	favoritesCmd.AddCommand(favoritesBackupCmd)
	favoritesCmd.AddCommand(favoritesRestoreCmd)
}

// themeCmd shows or changes the color theme.
var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Show the color theme",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		printTheme(cmd.OutOrStdout(), b.Theme)
		return nil
	}),
}

func printTheme(w io.Writer, t *prefs.Theme) {
	mode := t.Get()
	fmt.Fprintf(w, "%s %s", mode.Icon(), mode.Label())
	if t.IsSystemManaged() {
		fmt.Fprintf(w, " (following system: %s)", t.Resolved().Label())
	}
	fmt.Fprintln(w)
}

var themeSetCmd = &cobra.Command{
	Use:       "set <light|dark|auto>",
	Short:     "Choose a theme",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(prefs.ThemeLight), string(prefs.ThemeDark), string(prefs.ThemeAuto)},
	RunE: withBootstrap(func(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
		mode, err := prefs.ParseTheme(args[0])
		if err != nil {
			return err
		}
		if err := b.Theme.Set(cmd.Context(), mode); err != nil {
			return err
		}
		printTheme(cmd.OutOrStdout(), b.Theme)
		return nil
	}),
}

// themeChange adapts a Theme method to a subcommand that prints the result.
func themeChange(fn func(*prefs.Theme, *cobra.Command) error) func(*cobra.Command, []string) error {
	return withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		if err := fn(b.Theme, cmd); err != nil {
			return err
		}
		printTheme(cmd.OutOrStdout(), b.Theme)
		return nil
	})
}

var themeToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Switch between light and dark",
	Args:  cobra.NoArgs,
	RunE: themeChange(func(t *prefs.Theme, cmd *cobra.Command) error {
		_, err := t.Toggle(cmd.Context())
		return err
	}),
}

var themeCycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Step through light, dark and auto",
	Args:  cobra.NoArgs,
	RunE: themeChange(func(t *prefs.Theme, cmd *cobra.Command) error {
		_, err := t.Cycle(cmd.Context())
		return err
	}),
}

var themeResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Follow the system theme again",
	Args:  cobra.NoArgs,
	RunE: themeChange(func(t *prefs.Theme, cmd *cobra.Command) error {
		return t.ResetToSystem(cmd.Context())
	}),
}

func init() {
	themeCmd.AddCommand(themeSetCmd)
	themeCmd.AddCommand(themeToggleCmd)
	themeCmd.AddCommand(themeCycleCmd)
	themeCmd.AddCommand(themeResetCmd)
}

// settingsCmd shows the stored dashboard settings.
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the stored dashboard settings",
	Long: `Show the stored dashboard settings and the values in effect.

Stored settings override the config file; flags and DASHBOARD_* variables
override both.

Keys: ` + strings.Join(prefs.SettingKeys, ", "),
	Args: cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		s := b.Settings.Get()
		feed := b.Config.Feed
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-17s %-10s %s\n", "KEY", "STORED", "EFFECTIVE")
		fmt.Fprintf(w, "%-17s %-10s %s\n", "currency", orDash(s.Currency), feed.Currency)
		fmt.Fprintf(w, "%-17s %-10s %d\n", "coin_limit", orDash(intOrEmpty(s.CoinLimit)), feed.Limit)
		fmt.Fprintf(w, "%-17s %-10s %s\n", "sort_by", orDash(s.SortBy), feed.SortBy)
		auto := ""
		if s.AutoRefresh != nil {
			auto = strconv.FormatBool(*s.AutoRefresh)
		}
		fmt.Fprintf(w, "%-17s %-10s %t\n", "auto_refresh", orDash(auto), feed.AutoRefresh)
		interval := ""
		if s.RefreshIntervalSec > 0 {
			interval = strconv.Itoa(s.RefreshIntervalSec) + "s"
		}
		fmt.Fprintf(w, "%-17s %-10s %s\n", "refresh_interval", orDash(interval), feed.RefreshInterval)
		return nil
	}),
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func intOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

var settingsSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Store one setting",
	Args:      cobra.ExactArgs(2),
	ValidArgs: prefs.SettingKeys,
	RunE: withBootstrap(func(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
		if err := b.Settings.SetField(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
		return nil
	}),
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every stored setting",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		return b.Settings.Reset(cmd.Context())
	}),
}

func init() {
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
}
