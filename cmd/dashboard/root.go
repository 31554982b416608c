package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gabrielc476/dashboard-crypto/internal/app"
	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Set by the release build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:           "dashboard",
	Short:         "Cryptocurrency market dashboard backed by the CoinGecko API.",
	Long:          `Dashboard lists the top coins, searches the CoinGecko catalogue and keeps your favorites, search history and display settings on disk.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(coinCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(globalCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(favoritesCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config file")
	flags.String("secrets", "", "Path to secrets file holding the API key")
	flags.String("workdir", "", "Directory for the preference database and backups")
	flags.Bool("ephemeral", false, "Keep preferences in memory for this run only")
	flags.StringP("currency", "c", "", "Quote currency, e.g. usd or eur")
	flags.IntP("limit", "l", 0, "Number of coins to load (1-250)")
	flags.StringP("sort", "s", "", "Sort order: "+sortKeys())
	flags.String("log-level", "", "Log level: debug or info or warn or error")
	flags.Bool("no-color", false, "Disable colored output")
	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("binding root flags: %v", err))
	}
}

// initConfig binds DASHBOARD_* environment variables.
func initConfig() {
	viper.SetEnvPrefix("DASHBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// applyFlags copies the flags and variables that were actually set onto cfg.
func applyFlags(cfg *infra.Config) {
	if viper.IsSet("currency") {
		if c := strings.ToLower(strings.TrimSpace(viper.GetString("currency"))); c != "" {
			cfg.Feed.Currency = c
		}
	}
	if viper.IsSet("limit") {
		cfg.Feed.Limit = viper.GetInt("limit")
	}
	if viper.IsSet("sort") {
		if s := viper.GetString("sort"); s != "" {
			cfg.Feed.SortBy = s
		}
	}
	if viper.IsSet("log-level") {
		if lvl := viper.GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
	}
	if viper.GetBool("no-color") {
		cfg.UI.Color = false
	}
}

// openBootstrap initializes the application for one command run.
func openBootstrap(ctx context.Context) (*app.Bootstrap, error) {
	if s := viper.GetString("sort"); s != "" {
		if _, err := domain.ParseSortOption(s); err != nil {
			return nil, err
		}
	}

	b := app.NewBootstrap()
	err := b.Initialize(ctx, app.Options{
		ConfigPath:  viper.GetString("config"),
		SecretsPath: viper.GetString("secrets"),
		WorkDir:     viper.GetString("workdir"),
		Ephemeral:   viper.GetBool("ephemeral"),
		Override:    applyFlags,
	})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("bootstrapping failed: %w", err)
	}
	if !b.Config.UI.Color {
		color.NoColor = true
	}
	return b, nil
}

type runFunc func(cmd *cobra.Command, args []string, b *app.Bootstrap) error

// withBootstrap opens the application around fn and closes it afterwards.
func withBootstrap(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		b, err := openBootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()
		return fn(cmd, args, b)
	}
}

// describeError turns err into the line printed on exit. API failures use
// the same wording as the view state.
func describeError(err error) string {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return domain.UserMessage(err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.MsgCancelled
	}
	return err.Error()
}

func sortKeys() string {
	keys := make([]string, 0, len(domain.SortOptions))
	for _, o := range domain.SortOptions {
		keys = append(keys, string(o.Key))
	}
	return strings.Join(keys, ", ")
}
