package telegram

import (
	"context"
	"testing"

	"github.com/massmux/QwenImageBot/internal/errors"
	"github.com/massmux/QwenImageBot/internal/runtime/mutex"
	"github.com/massmux/QwenImageBot/internal/telegram/intercept"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tb "gopkg.in/lightningtipbot/telebot.v3"
)

// messageContext answers Message and nothing else.
type messageContext struct {
	tb.Context
	message *tb.Message
}

func (c messageContext) Message() *tb.Message {
	return c.message
}

func newContext(m *tb.Message) intercept.Context {
	return intercept.Context{
		Context:     context.Background(),
		TeleContext: intercept.TeleContext{Context: messageContext{message: m}},
	}
}

func TestRequireMessageInterceptor(t *testing.T) {
	bot := &QwenBot{}
	_, err := bot.requireMessageInterceptor(newContext(nil))
	assert.ErrorIs(t, err, errors.Create(errors.InvalidTypeError))

	_, err = bot.requireMessageInterceptor(newContext(&tb.Message{Text: "Q画图 猫"}))
	assert.ErrorIs(t, err, errors.Create(errors.InvalidTypeError))

	m := &tb.Message{Sender: &tb.User{ID: 7}, Chat: &tb.Chat{ID: 7, Type: tb.ChatPrivate}}
	_, err = bot.requireMessageInterceptor(newContext(m))
	assert.NoError(t, err)
}

func TestLockInterceptorReleasesOwnAcquisition(t *testing.T) {
	bot := &QwenBot{}
	m := &tb.Message{Sender: &tb.User{ID: 42}, Chat: &tb.Chat{ID: 42, Type: tb.ChatPrivate}}

	ctx, err := bot.lockInterceptor(newContext(m))
	require.NoError(t, err)
	assert.False(t, mutex.IsEmpty())

	_, err = bot.unlockInterceptor(ctx)
	require.NoError(t, err)
	assert.True(t, mutex.IsEmpty())

	// a request that never locked releases nothing
	_, err = bot.unlockInterceptor(newContext(m))
	require.NoError(t, err)
	assert.True(t, mutex.IsEmpty())
}
