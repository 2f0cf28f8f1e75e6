package telegram

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eko/gocache/store"
	"github.com/massmux/QwenImageBot/internal"
	"github.com/massmux/QwenImageBot/internal/network"
	"github.com/massmux/QwenImageBot/internal/plugin"
	limiter "github.com/massmux/QwenImageBot/internal/rate"
	"github.com/massmux/QwenImageBot/internal/runtime/mutex"
	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	tb "gopkg.in/lightningtipbot/telebot.v3"
)

type QwenBot struct {
	Telegram  *tb.Bot
	Plugin    *plugin.Plugin
	parseMode string
	Cache
}
type Cache struct {
	*store.GoCacheStore
}

var telegramHandlerRegistration = sync.Once{}

// NewBot connects to Telegram and wires the plugin.
func NewBot(cfg internal.Config, p *plugin.Plugin) (*QwenBot, error) {
	tgb, err := newTelegramBot(cfg)
	if err != nil {
		return nil, err
	}
	limiter.Start()
	return &QwenBot{
		Telegram:  tgb,
		Plugin:    p,
		parseMode: cfg.Telegram.ParseMode,
		Cache:     newCache(),
	}, nil
}

func newCache() Cache {
	gocacheClient := gocache.New(24*time.Hour, 30*time.Minute)
	return Cache{GoCacheStore: store.NewGoCache(gocacheClient, nil)}
}

// newTelegramBot will create a new Telegram bot.
func newTelegramBot(cfg internal.Config) (*tb.Bot, error) {
	// long polling holds a request open for 60s
	client, err := network.GetClient(cfg.Bot.SocksProxy, 90*time.Second)
	if err != nil {
		return nil, err
	}
	return tb.NewBot(tb.Settings{
		Token:     cfg.Telegram.ApiKey,
		Poller:    &tb.LongPoller{Timeout: 60 * time.Second},
		ParseMode: tb.ParseMode(cfg.Telegram.ParseMode),
		Client:    client,
		OnError: func(err error, c tb.Context) {
			// interceptors already log
			log.Tracef("[telegram] %v", err)
		},
	})
}

// GracefulShutdown will gracefully shutdown the bot
// It will wait for all mutex locks to unlock before shutdown.
func (bot *QwenBot) GracefulShutdown() {
	t := time.NewTicker(time.Second * 10)
	defer t.Stop()
	log.Infof("[shutdown] Graceful shutdown (timeout=10s).")
	for {
		select {
		case <-t.C:
			log.Infof("[shutdown] Graceful shutdown timeout reached. Forcing shutdown.")
			return
		default:
			if mutex.IsEmpty() {
				log.Infof("[shutdown] Graceful shutdown successful.")
				return
			}
		}
		time.Sleep(time.Second)
		log.Tracef("[shutdown] Trying graceful shutdown...")
	}
}

// Start registers the handlers, runs the bot and blocks until SIGINT or SIGTERM.
func (bot *QwenBot) Start(ctx context.Context) {
	log.Infof("[Telegram] Authorized on account @%s", bot.Telegram.Me.Username)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bot.registerTelegramHandlers()

	// expire pending edits
	bot.Plugin.Sessions().Start(ctx)

	go bot.Telegram.Start()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-exit:
	case <-ctx.Done():
	}
	bot.Telegram.Stop()
	bot.GracefulShutdown()
}
