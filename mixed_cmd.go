package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tonelab/supertonic/tts"
	"github.com/tonelab/supertonic/tts/audio"
)

var mixedCmd = &cobra.Command{
	Use:   "mixed [TAGGED-TEXT|FILE|-]",
	Short: "Synthesize language-tagged text",
	Long: paragraph(fmt.Sprintf(
		"\nSpeak text that switches languages mid-stream. Wrap each span in a language tag, %s, and every span is synthesized in its own language with a short pause between spans.",
		keyword("like <en>hello</en> <es>hola</es>"),
	)),
	Example: paragraph(`supertonic mixed "<en>The word</en> <fr>bonjour</fr> <en>means hello.</en>"`),
	Args:    cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := setupLog(cfg.Debug)

		src, err := resolveInput(args)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		synth, err := newSynthesizer(cfg, logger)
		if err != nil {
			return err
		}
		defer synth.Close() //nolint:errcheck

		opts := requestOptions(cfg)
		opts.SavePath = flagOut
		if opts.SavePath == "" {
			opts.SavePath = tts.OutputName(cfg.Output.Dir, "mixed", opts.Resolve().Voice,
				tts.RequestKey(src.text, "mixed", opts))
		}

		result, err := synth.SynthesizeMixed(ctx, src.text, opts)
		if err != nil {
			return err
		}
		printResult(os.Stdout, result)

		if cfg.Output.Play {
			player, err := audio.NewPlayer(synth.SampleRate())
			if err != nil {
				return err
			}
			defer player.Close() //nolint:errcheck
			if err := player.Play(result.Audio); err != nil {
				return fmt.Errorf("playback failed: %w", err)
			}
		}
		synth.Flush()
		return nil
	},
}

func init() {
	mixedCmd.Flags().StringVar(&flagVoice, "voice", "", "voice key (F1-F5, M1-M5)")
	mixedCmd.Flags().StringVar(&flagRate, "rate", "", "speech rate: multiplier, percentage, or preset")
	mixedCmd.Flags().StringVarP(&flagQuality, "quality", "q", "", "quality preset (fast, balanced, high, ultra)")
	mixedCmd.Flags().IntVar(&flagSteps, "steps", 0, "diffusion step count (overrides --quality)")
	mixedCmd.Flags().Float64Var(&flagSilence, "silence", 0, "seconds of silence between segments")
	mixedCmd.Flags().StringVarP(&flagOut, "out", "o", "", "output WAV path")
	mixedCmd.Flags().BoolVarP(&flagPlay, "play", "p", false, "play the audio on the default output device")
	mixedCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "bypass the synthesized-audio cache")
}
