// Package main provides the entry point for the Supertonic CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/tonelab/supertonic/internal/cache"
	"github.com/tonelab/supertonic/internal/doc"
	"github.com/tonelab/supertonic/tts"
	"github.com/tonelab/supertonic/tts/audio"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string

	flagVoice   string
	flagLang    string
	flagRate    string
	flagQuality string
	flagSteps   int
	flagChunk   int
	flagSilence float64
	flagOut     string
	flagPlay    bool
	flagWatch   bool
	flagNoCache bool
	flagDebug   bool

	rootCmd = &cobra.Command{
		Use:   "supertonic [TEXT|FILE|-]",
		Short: "Neural text-to-speech on the command line",
		Long: paragraph(
			fmt.Sprintf("\nTurn text into speech, %s.", keyword("right from your terminal")),
		),
		Example: paragraph("supertonic \"Hello there.\"\nsupertonic --voice F3 --quality high notes.md\ncat article.txt | supertonic --play"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ArbitraryArgs,
		RunE:             execute,
	}
)

// loadConfig layers the effective configuration: defaults, config file,
// environment, then any flag the user actually set.
func loadConfig(cmd *cobra.Command) (tts.Config, error) {
	cfg, err := tts.LoadConfig()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("voice") {
		cfg.Voice = flagVoice
	}
	if flags.Changed("lang") {
		cfg.Language = flagLang
	}
	if flags.Changed("rate") {
		cfg.Rate = flagRate
	}
	if flags.Changed("quality") {
		cfg.Quality = flagQuality
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkLength = flagChunk
	}
	if flags.Changed("silence") {
		cfg.Silence = flagSilence
	}
	if flags.Changed("play") {
		cfg.Output.Play = flagPlay
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !flagNoCache
	}
	if flags.Changed("debug") {
		cfg.Debug = flagDebug
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// requestOptions converts the effective configuration plus per-request flags
// into synthesis options.
func requestOptions(cfg tts.Config) tts.Options {
	opts := cfg.Options()
	if flagSteps > 0 {
		opts.TotalSteps = flagSteps
	}
	return opts
}

// newSynthesizer builds the shared synthesizer, wiring the disk cache when
// it is enabled.
func newSynthesizer(cfg tts.Config, logger *log.Logger) (*tts.Synthesizer, error) {
	var audioCache tts.Cache
	if cfg.Cache.Enabled {
		dir := cfg.Cache.Dir
		if dir == "" {
			d, err := defaultCacheDir()
			if err != nil {
				return nil, fmt.Errorf("resolving cache directory: %w", err)
			}
			dir = d
		}
		c, err := cache.New(cache.Config{
			Dir:      dir,
			MaxBytes: int64(cfg.Cache.MaxSizeMB) << 20,
			MaxAge:   cfg.Cache.MaxAge,
		})
		if err != nil {
			// A broken cache directory should not block synthesis.
			logger.Warn("audio cache unavailable", "err", err)
		} else {
			audioCache = c
		}
	}

	return tts.NewSynthesizer(tts.SynthesizerConfig{
		Config: cfg,
		Cache:  audioCache,
		Logger: logger,
	})
}

func defaultCacheDir() (string, error) {
	scope := gap.NewScope(gap.User, "supertonic")
	dir, err := scope.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audio"), nil
}

// input is one resolvable synthesis source.
type input struct {
	text string
	// path is set when the text came from a file, which enables --watch.
	path string
}

// resolveInput decides what to speak: piped stdin, an explicit "-", a file
// path, or the arguments themselves as literal text. Markdown files are
// reduced to their speakable prose first.
func resolveInput(args []string) (*input, error) {
	if yes, err := stdinIsPipe(); err != nil {
		return nil, err
	} else if yes {
		return readFrom(os.Stdin, "")
	}

	if len(args) == 0 {
		return nil, errors.New("missing input: pass text, a file path, or - for stdin")
	}
	if len(args) == 1 {
		if args[0] == "-" {
			return readFrom(os.Stdin, "")
		}
		if st, err := os.Stat(args[0]); err == nil && st.Mode().IsRegular() {
			return readFile(args[0])
		}
	}
	return &input{text: strings.Join(args, " ")}, nil
}

func readFrom(r io.Reader, path string) (*input, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read input: %w", err)
	}
	return &input{text: string(b), path: path}, nil
}

func readFile(path string) (*input, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	text := string(b)
	if doc.IsMarkdownPath(path) {
		text, err = doc.Speakable(b)
		if err != nil {
			return nil, fmt.Errorf("unable to extract markdown text: %w", err)
		}
	}
	return &input{text: text, path: path}, nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLog(cfg.Debug)

	src, err := resolveInput(args)
	if err != nil {
		return err
	}
	if flagWatch && src.path == "" {
		return errors.New("--watch needs a file argument")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	synth, err := newSynthesizer(cfg, logger)
	if err != nil {
		return err
	}
	defer synth.Close() //nolint:errcheck

	var player *audio.Player
	if cfg.Output.Play {
		player, err = openPlayer(ctx, synth)
		if err != nil {
			return err
		}
		defer player.Close() //nolint:errcheck
	}

	if flagWatch {
		return watchAndSpeak(ctx, synth, player, cfg, src.path, os.Stdout)
	}
	return speak(ctx, synth, player, cfg, src.text, os.Stdout)
}

// openPlayer initializes the engine first so the playback device opens at
// the model's real sample rate.
func openPlayer(ctx context.Context, synth *tts.Synthesizer) (*audio.Player, error) {
	if err := synth.Init(ctx); err != nil {
		return nil, err
	}
	return audio.NewPlayer(synth.SampleRate())
}

// speak runs one synthesis and reports the outcome.
func speak(ctx context.Context, synth *tts.Synthesizer, player *audio.Player, cfg tts.Config, text string, w io.Writer) error {
	opts := requestOptions(cfg)
	opts.Language = cfg.Language
	opts.SavePath = outputPath(cfg, text, opts)

	result, err := synth.Synthesize(ctx, text, opts)
	if err != nil {
		return err
	}
	printResult(w, result)

	if player != nil {
		if err := player.Play(result.Audio); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
	}
	synth.Flush()
	return nil
}

// outputPath picks where the finished WAV lands: the explicit --out value,
// or a deterministic name under the configured output directory.
func outputPath(cfg tts.Config, text string, opts tts.Options) string {
	if flagOut != "" {
		return flagOut
	}
	lang := opts.Language
	if lang == "" {
		lang = cfg.Language
	}
	return tts.OutputName(cfg.Output.Dir, lang, opts.Resolve().Voice, tts.RequestKey(text, lang, opts))
}

func printResult(w io.Writer, result *tts.Result) {
	note := ""
	if result.Cached {
		note = subtle(" (cached)")
	}
	fmt.Fprintf(w, "%s %s%s\n",
		keyword(fmt.Sprintf("%.1fs", result.Duration)),
		result.Path,
		note)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "log debug output to stderr")
	rootCmd.Flags().StringVar(&flagVoice, "voice", "", "voice key (F1-F5, M1-M5)")
	rootCmd.Flags().StringVar(&flagLang, "lang", "", "language code (en, ko, es, pt, fr)")
	rootCmd.Flags().StringVar(&flagRate, "rate", "", "speech rate: multiplier, percentage, or preset (e.g. 1.5, +20%, slow)")
	rootCmd.Flags().StringVarP(&flagQuality, "quality", "q", "", "quality preset (fast, balanced, high, ultra)")
	rootCmd.Flags().IntVar(&flagSteps, "steps", 0, "diffusion step count (overrides --quality)")
	rootCmd.Flags().IntVar(&flagChunk, "chunk-size", 0, "max characters per chunk for long text")
	rootCmd.Flags().Float64Var(&flagSilence, "silence", 0, "seconds of silence between chunks")
	rootCmd.Flags().StringVarP(&flagOut, "out", "o", "", "output WAV path")
	rootCmd.Flags().BoolVarP(&flagPlay, "play", "p", false, "play the audio on the default output device")
	rootCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "watch the input file and re-speak on change")
	rootCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "bypass the synthesized-audio cache")

	rootCmd.AddCommand(mixedCmd, voicesCmd, assetsCmd, serveCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "supertonic")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "supertonic")}, dirs...)
	}

	if c := os.Getenv("SUPERTONIC_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("supertonic")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("supertonic")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}
	configFile = filepath.Join(dirs[0], "supertonic.yml")
}

// isTerminal reports whether styled output should be emitted.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
