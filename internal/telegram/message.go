package telegram

import (
	"fmt"
	"io"
	"strings"

	"github.com/massmux/QwenImageBot/internal/plugin"
	"github.com/massmux/QwenImageBot/internal/qwen"
	"github.com/massmux/QwenImageBot/internal/telegram/intercept"
	log "github.com/sirupsen/logrus"
	tb "gopkg.in/lightningtipbot/telebot.v3"
)

// SessionID identifies a user within a chat. Private chats use the user id alone.
func SessionID(m *tb.Message) string {
	if m.Chat == nil || m.Chat.Type == tb.ChatPrivate {
		return fmt.Sprintf("%d", m.Sender.ID)
	}
	return fmt.Sprintf("%d:%d", m.Chat.ID, m.Sender.ID)
}

func GetUserStr(user *tb.User) string {
	switch {
	case user.Username != "":
		return "@" + user.Username
	case user.FirstName != "":
		return user.FirstName
	}
	return fmt.Sprintf("%d", user.ID)
}

// messageText is the text of a message or the caption of a photo.
func messageText(m *tb.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// photoFile returns the image carried by m as a photo or an image document.
func photoFile(m *tb.Message) *tb.File {
	if m == nil {
		return nil
	}
	if m.Photo != nil {
		return m.Photo.MediaFile()
	}
	if m.Document != nil && strings.HasPrefix(m.Document.MIME, "image/") {
		return m.Document.MediaFile()
	}
	return nil
}

// imageSource loads the image of m lazily through the bot file api.
func (bot *QwenBot) imageSource(m *tb.Message) *qwen.ImageSource {
	file := photoFile(m)
	if file == nil {
		return nil
	}
	return &qwen.ImageSource{Open: func() (io.ReadCloser, error) {
		return bot.Telegram.File(file)
	}}
}

// referencedSource returns the image of the quoted message. Results the bot
// sent itself are taken from the cache by their remote URL.
func (bot *QwenBot) referencedSource(m *tb.Message) *qwen.ImageSource {
	if m.ReplyTo == nil {
		return nil
	}
	if url, ok := bot.cachedResult(m.Chat.ID, m.ReplyTo.ID); ok {
		return &qwen.ImageSource{URL: url}
	}
	return bot.imageSource(m.ReplyTo)
}

func (bot *QwenBot) event(m *tb.Message) plugin.Event {
	return plugin.Event{
		Session:    SessionID(m),
		Text:       messageText(m),
		Image:      bot.imageSource(m),
		Referenced: bot.referencedSource(m),
	}
}

// messageHandler hands every text and photo to the plugin.
func (bot *QwenBot) messageHandler(ctx intercept.Context) (intercept.Context, error) {
	m := ctx.Message()
	if handled := bot.Plugin.Handle(ctx, bot.event(m), bot.replier(m)); !handled {
		log.WithField("uid", requestId(ctx)).Tracef("[telegram] message %d not handled", m.ID)
	}
	return ctx, nil
}

func (bot *QwenBot) startHandler(ctx intercept.Context) (intercept.Context, error) {
	help := "/help"
	if prefixes := bot.Plugin.HelpCommands(); len(prefixes) > 0 {
		help = prefixes[0]
	}
	bot.trySendMessage(ctx.Chat(), bot.escape(fmt.Sprintf(translate(ctx, "startMessage"), help)))
	return ctx, nil
}

func (bot *QwenBot) helpHandler(ctx intercept.Context) (intercept.Context, error) {
	sessionID := ""
	if m := ctx.Message(); m != nil && m.Sender != nil {
		sessionID = SessionID(m)
	}
	bot.trySendMessage(ctx.Chat(), bot.escape(bot.Plugin.HelpText(ctx, sessionID)), tb.NoPreview)
	return ctx, nil
}
