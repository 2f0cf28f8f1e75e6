package main

import (
	"context"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/massmux/QwenImageBot/internal"
	"github.com/massmux/QwenImageBot/internal/account"
	"github.com/massmux/QwenImageBot/internal/api"
	"github.com/massmux/QwenImageBot/internal/api/admin"
	"github.com/massmux/QwenImageBot/internal/network"
	"github.com/massmux/QwenImageBot/internal/plugin"
	"github.com/massmux/QwenImageBot/internal/qwen"
	"github.com/massmux/QwenImageBot/internal/runtime/mutex"
	"github.com/massmux/QwenImageBot/internal/session"
	"github.com/massmux/QwenImageBot/internal/telegram"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	_ "net/http/pprof"
)

var (
	configFile string
	debugLog   bool
)

var rootCmd = &cobra.Command{
	Use:   "qwenimagebot",
	Short: "Telegram bot for Qwen image generation and editing",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug logging")
}

// setLogger will initialize the log format
func setLogger() {
	log.SetLevel(log.InfoLevel)
	if debugLog {
		log.SetLevel(log.DebugLevel)
	}
	customFormatter := new(log.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	log.SetFormatter(customFormatter)
}

func main() {
	defer withRecovery()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := internal.LoadConfiguration(configFile); err != nil {
		log.Errorf("[config] %v", err)
		return err
	}
	cfg := internal.Configuration

	httpClient, err := network.GetClient(cfg.Bot.SocksProxy, 0)
	if err != nil {
		return err
	}
	p := plugin.New(cfg,
		qwen.NewClientFromConfiguration(cfg.Qwen, httpClient),
		session.New(cfg.Qwen.GlobalPromptExtend(),
			session.WithPendingEditTimeout(time.Duration(cfg.Qwen.PendingEditTimeout)*time.Second)),
		account.New(cfg.Qwen.ApiKey1, cfg.Qwen.ApiKey2),
	)
	log.Infof("[plugin] initialized, models: %v, edit models: %v", cfg.Qwen.Models, cfg.Qwen.EditModels)

	bot, err := telegram.NewBot(cfg, p)
	if err != nil {
		return err
	}
	server := startAdminServer(cfg.Bot.AdminAPIHost, p)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	bot.Start(ctx)
	return nil
}

// startAdminServer serves the internal admin api. It should not be exposed publicly.
func startAdminServer(address string, p *plugin.Plugin) *api.Server {
	s := api.NewServer(address)
	admin.New(p).Register(s)
	s.AppendRoute("/mutex", mutex.ServeHTTP, http.MethodGet)
	s.AppendRoute("/mutex/unlock/{id}", mutex.UnlockHTTP, http.MethodPost)
	s.PathPrefix("/debug/pprof/", http.DefaultServeMux)
	s.ListenAndServe()
	return s
}

func withRecovery() {
	if r := recover(); r != nil {
		log.Errorln("Recovered panic: ", r)
		debug.PrintStack()
	}
}
