// Command docmark converts legacy Word (.doc), Office Open XML (.docx) and
// PDF documents to Markdown.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docmark/internal/config"
	"docmark/internal/errlog"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	errlog.Close()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app carries the settings shared by every subcommand. cfg is the effective
// configuration: file values, then DOCMARK_* environment variables, then
// command-line flags.
type app struct {
	v       *viper.Viper
	cfgPath string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "docmark",
		Short: "Convert .doc, .docx and PDF documents to Markdown",
		Long: `docmark turns word-processor documents and PDFs into Markdown.

Legacy .doc files go through a chain of extractors (a local LibreOffice when
available, then a binary heuristic, then a raw byte scan). .docx packages are
walked for headings, lists, tables, links and footnotes. PDF pages are
rebuilt line by line from word positions. Images are either inlined as data
URIs or written to a directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default "+defaultConfigPath()+")")

	root.AddCommand(
		a.newConvertCmd(),
		a.newDetectCmd(),
		a.newConfigCmd(),
		newLogCmd(),
		newVersionCmd(),
	)
	return root
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("data", "config.json")
	}
	return filepath.Join(dir, "docmark", "config.json")
}

func (a *app) configPath() string {
	if a.cfgPath != "" {
		return a.cfgPath
	}
	return defaultConfigPath()
}

// setup resolves the effective configuration and opens the error log when
// one is configured. A missing config file is not created here. DOCMARK_*
// variables may also come from a .env file in the working directory.
func (a *app) setup() error {
	_ = godotenv.Load()

	a.v.SetEnvPrefix("DOCMARK")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range config.Keys {
		if err := a.v.BindEnv(key); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := config.DefaultConfig()
	path := a.configPath()
	if _, err := os.Stat(path); err == nil {
		cm := config.NewConfigManager(path)
		if err := cm.Load(); err != nil {
			return err
		}
		cfg = cm.Get()
	}

	overrides := make(map[string]any)
	for _, key := range config.Keys {
		if a.v.IsSet(key) {
			overrides[key] = a.v.Get(key)
		}
	}
	cfg, err := cfg.WithOverrides(overrides)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.Log.ErrorDir != "" {
		if err := errlog.Init(cfg.Log.ErrorDir); err != nil {
			log.Printf("[Config] error log disabled: %v", err)
		} else {
			errlog.SetRotationSizeMB(cfg.Log.RotateMB)
		}
	}
	return nil
}
