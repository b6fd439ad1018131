package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tonelab/supertonic/tts"
	"github.com/tonelab/supertonic/tts/audio"
)

// watchDebounce coalesces the burst of events editors emit on save.
const watchDebounce = 300 * time.Millisecond

// watchAndSpeak speaks the file once, then re-speaks it every time it
// changes, until ctx is cancelled. Synthesis failures are reported and
// watching continues; only watcher failures end the loop.
func watchAndSpeak(ctx context.Context, synth *tts.Synthesizer, player *audio.Player, cfg tts.Config, path string, w io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unable to resolve path: %w", err)
	}

	// Failures inside the loop are warnings: the file may simply be
	// mid-save, and the next write gets another chance.
	report := func(err error) {
		serr := tts.NewSynthesisError(err, "cli", "watch").
			WithSeverity(tts.SeverityWarning).
			WithContext("path", abs)
		fmt.Fprintln(w, errorText(serr.Error()))
	}
	speakFile := func() {
		src, err := readFile(abs)
		if err != nil {
			report(err)
			return
		}
		if err := speak(ctx, synth, player, cfg, src.text, w); err != nil {
			report(err)
		}
	}
	speakFile()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	// Watch the directory, not the file: editors that write a temp file and
	// rename it over the original would otherwise drop the watch.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("unable to watch %s: %w", filepath.Dir(abs), err)
	}
	fmt.Fprintln(w, subtle("watching "+path+" (ctrl-c to stop)"))

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watcher.Errors:
			return fmt.Errorf("watch failed: %w", err)
		case ev := <-watcher.Events:
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(watchDebounce)
		case <-debounce.C:
			speakFile()
		}
	}
}
