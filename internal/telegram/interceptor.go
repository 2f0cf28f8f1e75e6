package telegram

import (
	"fmt"

	"github.com/massmux/QwenImageBot/internal/errors"
	"github.com/massmux/QwenImageBot/internal/i18n"
	"github.com/massmux/QwenImageBot/internal/runtime/mutex"
	"github.com/massmux/QwenImageBot/internal/str"
	"github.com/massmux/QwenImageBot/internal/telegram/intercept"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
)

type ctxKey string

const (
	uidKey    ctxKey = "uid"
	lockedKey ctxKey = "locked"
)

// requestIdInterceptor tags the request with a unique id for the logs.
func (bot *QwenBot) requestIdInterceptor(ctx intercept.Context) (intercept.Context, error) {
	return ctx.WithValue(uidKey, uuid.NewV4().String()), nil
}

func requestId(ctx intercept.Context) string {
	if uid, ok := ctx.Value(uidKey).(string); ok {
		return uid
	}
	return ""
}

func (bot *QwenBot) localizerInterceptor(ctx intercept.Context) (intercept.Context, error) {
	if sender := ctx.Sender(); sender != nil {
		ctx.Context = i18n.WithLocalizer(ctx.Context, sender.LanguageCode)
	}
	return ctx, nil
}

func (bot *QwenBot) requireMessageInterceptor(ctx intercept.Context) (intercept.Context, error) {
	if m := ctx.Message(); m == nil || m.Sender == nil || m.Chat == nil {
		return ctx, errors.Create(errors.InvalidTypeError)
	}
	return ctx, nil
}

type heldLock struct {
	key   string
	token uint64
}

// lockInterceptor serializes the messages of one session.
func (bot *QwenBot) lockInterceptor(ctx intercept.Context) (intercept.Context, error) {
	key := "session:" + SessionID(ctx.Message())
	return ctx.WithValue(lockedKey, heldLock{key: key, token: mutex.Lock(key)}), nil
}

// unlockInterceptor releases what lockInterceptor took on this request.
func (bot *QwenBot) unlockInterceptor(ctx intercept.Context) (intercept.Context, error) {
	if l, ok := ctx.Value(lockedKey).(heldLock); ok {
		mutex.Unlock(l.key, l.token)
	}
	return ctx, nil
}

const photoTag = "<Photo>"

func (bot *QwenBot) logMessageInterceptor(ctx intercept.Context) (intercept.Context, error) {
	m := ctx.Message()
	if m == nil || m.Sender == nil || m.Chat == nil {
		return ctx, errors.Create(errors.InvalidTypeError)
	}
	text := str.Truncate(messageText(m), 200)
	if photoFile(m) != nil {
		text = fmt.Sprintf("%s %s", photoTag, text)
	}
	logString := fmt.Sprintf("[%s:%d %s:%d] %s", m.Chat.Title, m.Chat.ID, GetUserStr(m.Sender), m.Sender.ID, text)
	if m.IsReply() && m.ReplyTo.Sender != nil {
		logString = fmt.Sprintf("%s -> %s", logString, GetUserStr(m.ReplyTo.Sender))
	}
	log.WithField("uid", requestId(ctx)).Info(logString)
	return ctx, nil
}
