package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# default voice key (F1-F5, M1-M5)
voice: "M1"
# default language when detection can't decide (en, ko, es, pt, fr)
language: "en"
# speech rate: a multiplier ("1.5"), a percentage ("+20%"), or a preset
# (slow, normal, fast, ultra_fast). Empty means normal speed.
rate: ""
# quality preset: fast, balanced, high, ultra
quality: "balanced"
# max characters per chunk when splitting long text
chunk_length: 300
# seconds of silence between chunks
silence: 0.3
# log debug output
debug: false

assets:
  # model directory. Empty means the per-user cache directory.
  root: ""
  # model repository to download from
  repo: "onnx-community/Supertonic-TTS-2-ONNX"
  # download rate limit
  requests_per_minute: 30

engine:
  # inference threads per graph; 0 lets the runtime decide
  threads: 0

output:
  # directory for generated WAV files
  dir: "."
  # play finished audio on the default output device
  play: false

cache:
  # cache synthesized audio so repeated requests are instant
  enabled: true
  # cache directory. Empty means the per-user cache directory.
  dir: ""
  max_size_mb: 512
  max_age: "720h"

server:
  host: "127.0.0.1"
  port: 8000
  requests_per_minute: 60
  read_timeout: "30s"
  write_timeout: "5m"
  max_body_bytes: 1048576
  queue_depth: 32
`

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show the supertonic config file",
	Long:    paragraph(fmt.Sprintf("\n%s the supertonic config file path, creating a commented default the first time. Edit it with your editor of choice.", keyword("Print"))),
	Example: paragraph("supertonic config\nsupertonic config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}
		fmt.Println(configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
