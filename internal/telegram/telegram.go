package telegram

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/store"
	"github.com/massmux/QwenImageBot/internal/i18n"
	"github.com/massmux/QwenImageBot/internal/plugin"
	"github.com/massmux/QwenImageBot/internal/rate"
	"github.com/massmux/QwenImageBot/internal/str"
	log "github.com/sirupsen/logrus"
	tb "gopkg.in/lightningtipbot/telebot.v3"
)

const (
	maxTextLength   = 4096
	resultCacheTime = 24 * time.Hour
)

func translate(ctx context.Context, id string) string {
	return i18n.Translate(ctx, id)
}

func (bot *QwenBot) trySendMessage(to tb.Recipient, what interface{}, options ...interface{}) (msg *tb.Message) {
	rate.CheckLimit(to)
	msg, err := bot.Telegram.Send(to, what, options...)
	if err != nil {
		log.Warnln(err.Error())
	}
	return
}

func (bot *QwenBot) tryReplyMessage(to *tb.Message, what interface{}, options ...interface{}) (msg *tb.Message) {
	rate.CheckLimit(to)
	msg, err := bot.Telegram.Reply(to, what, options...)
	if err != nil {
		log.Warnln(err.Error())
	}
	return
}

// escape cuts s before escaping so no escape sequence is split.
func (bot *QwenBot) escape(s string) string {
	return str.Escape(bot.parseMode, str.Truncate(s, maxTextLength))
}

func resultKey(chatID int64, messageID int) string {
	return fmt.Sprintf("result:%d:%d", chatID, messageID)
}

func (bot *QwenBot) cacheResult(chatID int64, messageID int, url string) {
	err := bot.Cache.Set(resultKey(chatID, messageID), url, &store.Options{Expiration: resultCacheTime})
	if err != nil {
		log.Errorf("[telegram] could not cache result %s: %v", resultKey(chatID, messageID), err)
	}
}

func (bot *QwenBot) cachedResult(chatID int64, messageID int) (string, bool) {
	v, err := bot.Cache.Get(resultKey(chatID, messageID))
	if err != nil {
		return "", false
	}
	url, ok := v.(string)
	return url, ok && url != ""
}

// messageReplier answers one incoming message.
type messageReplier struct {
	bot     *QwenBot
	message *tb.Message
}

func (bot *QwenBot) replier(m *tb.Message) plugin.Replier {
	return messageReplier{bot: bot, message: m}
}

func (r messageReplier) ReplyText(ctx context.Context, text string) error {
	if msg := r.bot.tryReplyMessage(r.message, r.bot.escape(text), tb.NoPreview); msg == nil {
		return fmt.Errorf("could not reply to message %d", r.message.ID)
	}
	return nil
}

// ReplyImage sends the result photo. Remote URLs are cached so that replying
// to the photo later edits the original instead of Telegram's recompressed copy.
func (r messageReplier) ReplyImage(ctx context.Context, image plugin.Image) error {
	photo := &tb.Photo{}
	if image.URL != "" {
		photo.File = tb.FromURL(image.URL)
	} else {
		photo.File = tb.File{FileReader: bytes.NewReader(image.Data)}
	}
	msg := r.bot.tryReplyMessage(r.message, photo)
	if msg == nil {
		return fmt.Errorf("could not send image to message %d", r.message.ID)
	}
	if image.URL != "" {
		r.bot.cacheResult(msg.Chat.ID, msg.ID, image.URL)
	}
	return nil
}
