// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"fmt"
	"os"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediagrab/internal/config"
	"mediagrab/internal/log"

	// Register the site extractors.
	_ "mediagrab/internal/site"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagFormat        string
	flagMaxHeight     int
	flagPick          bool
	flagList          bool
	flagDownload      bool
	flagOutput        string
	flagPlay          bool
	flagPlayer        string
	flagLanguage      string
	flagNoSubs        bool
	flagVideoPassword string
	flagJSON          bool
	flagDebug         bool
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mediagrab <url>",
	Short: "Extract and rank the media formats of a web page",
	Long: `mediagrab resolves a page URL into every downloadable format the site offers,
ranks them, and prints, plays or downloads the selected one.
Streams are played with mpv/vlc and downloaded with ffmpeg.`,
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: loadConfig,
	RunE:              extractRun,
	SilenceUsage:      true,
}

// Execute runs the root command.
func Execute() {
	// Colored help only when a person is reading it
	if term.IsTerminal(int(os.Stdout.Fd())) {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "", "Format selector: best | worst | bestvideo | bestaudio | <id>, \"/\" separated")
	rootCmd.PersistentFlags().IntVar(&flagMaxHeight, "max-height", 0, "Ignore formats taller than this when picking best")
	rootCmd.PersistentFlags().BoolVar(&flagPick, "pick", false, "Pick the format interactively with fzf")
	rootCmd.PersistentFlags().BoolVarP(&flagList, "list-formats", "F", false, "List formats and exit")
	rootCmd.PersistentFlags().BoolVarP(&flagDownload, "download", "d", false, "Download the selected format with ffmpeg")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Download directory (default: download_dir from config)")
	rootCmd.PersistentFlags().BoolVarP(&flagPlay, "play", "p", false, "Play the selected format")
	rootCmd.PersistentFlags().StringVar(&flagPlayer, "player", "", "Media player: mpv | vlc | iina | celluloid")
	rootCmd.PersistentFlags().StringVarP(&flagLanguage, "sub-lang", "l", "", "Subtitle language (default: en)")
	rootCmd.PersistentFlags().BoolVarP(&flagNoSubs, "no-subs", "n", false, "Disable subtitles")
	rootCmd.PersistentFlags().StringVar(&flagVideoPassword, "video-password", "", "Password for protected links")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Output extraction result as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(extractorsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagFormat != "" {
		cfg.Format = flagFormat
	}
	if flagMaxHeight != 0 {
		cfg.MaxHeight = flagMaxHeight
	}
	if flagPlayer != "" {
		cfg.Player = flagPlayer
	}
	if flagLanguage != "" {
		cfg.SubsLanguage = flagLanguage
	}
	if flagVideoPassword != "" {
		cfg.VideoPassword = flagVideoPassword
	}
	if flagDebug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return log.Setup(log.Options{
		Level: cfg.LogLevel,
		JSON:  cfg.LogJSON,
		File:  cfg.LogFile,
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mediagrab %s\n", Version)
	},
}
