package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tonelab/supertonic/tts/assets"
)

var fetchVoices bool

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Manage the model assets",
	Long: paragraph(fmt.Sprintf(
		"\nInspect and prefetch the model files synthesis needs. Assets download %s on first use; these commands let you do it ahead of time or check what's on disk.",
		keyword("automatically"),
	)),
}

var assetsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which model files are present",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		manager, err := newManager(cmd)
		if err != nil {
			return err
		}

		fmt.Println(subtle(manager.Root()))
		var total int64
		missing := 0
		for _, name := range assets.RequiredModelFiles {
			st, err := os.Stat(filepath.Join(manager.Root(), name))
			if err != nil {
				missing++
				fmt.Printf("  %s %s\n", errorText("missing"), name)
				continue
			}
			total += st.Size()
			fmt.Printf("  %s %s %s\n", keyword("ok"), name, subtle(humanize.Bytes(uint64(st.Size()))))
		}
		fmt.Printf("%d of %d files, %s on disk\n",
			len(assets.RequiredModelFiles)-missing, len(assets.RequiredModelFiles),
			humanize.Bytes(uint64(total)))
		if missing > 0 {
			fmt.Println(subtle("run \"supertonic assets fetch\" to download the rest"))
		}
		return nil
	},
}

var assetsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download any missing model files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		manager, err := newManager(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		root, err := manager.EnsureModels(ctx)
		if err != nil {
			return err
		}
		if fetchVoices {
			for _, key := range assets.VoiceKeys() {
				if _, err := manager.EnsureVoiceStyle(ctx, key); err != nil {
					return err
				}
			}
		}
		fmt.Println("model assets ready in", keyword(root))
		return nil
	},
}

func newManager(cmd *cobra.Command) (*assets.Manager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := setupLog(cfg.Debug)

	managerCfg := cfg.ManagerConfig()
	managerCfg.Logger = logger.WithPrefix("assets")
	return assets.NewManager(managerCfg)
}

func init() {
	assetsFetchCmd.Flags().BoolVar(&fetchVoices, "voices", false, "also prefetch every voice style")
	assetsCmd.AddCommand(assetsStatusCmd, assetsFetchCmd)
}
