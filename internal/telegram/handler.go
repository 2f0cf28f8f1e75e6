package telegram

import (
	"fmt"
	"strings"

	"github.com/massmux/QwenImageBot/internal/telegram/intercept"
	log "github.com/sirupsen/logrus"
	tb "gopkg.in/lightningtipbot/telebot.v3"
)

type Handler struct {
	Endpoints   []interface{}
	Handler     intercept.Func
	Interceptor *Interceptor
}

type Interceptor struct {
	Before  []intercept.Func
	After   []intercept.Func
	OnDefer []intercept.Func
}

// registerTelegramHandlers will register all Telegram handlers.
func (bot *QwenBot) registerTelegramHandlers() {
	telegramHandlerRegistration.Do(func() {
		for _, h := range bot.getHandler() {
			log.Debugf("[telegram] registering %v", h.Endpoints)
			bot.register(h)
		}
	})
}

// handle accepts an endpoint and handler for Telegram handler registration.
// Slash commands are also registered uppercase and with the first letter uppercase.
func (bot *QwenBot) handle(endpoint interface{}, handler tb.HandlerFunc) {
	bot.Telegram.Handle(endpoint, handler)
	if sEndpoint, ok := endpoint.(string); ok && strings.HasPrefix(sEndpoint, "/") {
		bot.Telegram.Handle(strings.ToUpper(sEndpoint), handler)
		if len(sEndpoint) > 2 {
			bot.Telegram.Handle(fmt.Sprintf("/%s%s", strings.ToUpper(string(sEndpoint[1])), sEndpoint[2:]), handler)
		}
	}
}

// register registers a handler with the common interceptors around it.
func (bot *QwenBot) register(h Handler) {
	i := h.Interceptor
	if i == nil {
		i = &Interceptor{}
	}
	before := append([]intercept.Func{bot.requestIdInterceptor, bot.localizerInterceptor}, i.Before...)
	for _, endpoint := range h.Endpoints {
		bot.handle(endpoint, intercept.WithHandler(h.Handler,
			intercept.WithBefore(before...),
			intercept.WithAfter(i.After...),
			intercept.WithDefer(i.OnDefer...)))
	}
}

// getHandler returns a list of all handlers, that need to be registered with Telegram
func (bot *QwenBot) getHandler() []Handler {
	return []Handler{
		{
			Endpoints: []interface{}{"/start"},
			Handler:   bot.startHandler,
			Interceptor: &Interceptor{
				Before: []intercept.Func{bot.logMessageInterceptor},
			},
		},
		{
			Endpoints: []interface{}{"/help"},
			Handler:   bot.helpHandler,
			Interceptor: &Interceptor{
				Before: []intercept.Func{bot.logMessageInterceptor},
			},
		},
		{
			Endpoints: []interface{}{tb.OnText, tb.OnPhoto, tb.OnDocument},
			Handler:   bot.messageHandler,
			Interceptor: &Interceptor{
				Before: []intercept.Func{
					bot.requireMessageInterceptor,
					bot.logMessageInterceptor,
					bot.lockInterceptor,
				},
				OnDefer: []intercept.Func{bot.unlockInterceptor},
			},
		},
	}
}
