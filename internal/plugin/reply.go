package plugin

import (
	"context"
	goerrors "errors"
	"fmt"

	"github.com/massmux/QwenImageBot/internal/errors"
	"github.com/massmux/QwenImageBot/internal/i18n"
	log "github.com/sirupsen/logrus"
)

func translate(ctx context.Context, id string) string {
	return i18n.Translate(ctx, id)
}

func (p *Plugin) replyError(ctx context.Context, r Replier, err error) {
	log.Errorf("[plugin] %v", err)
	p.reply(ctx, r, ErrorText(ctx, err))
}

// ErrorText maps err to the text shown to the user.
func ErrorText(ctx context.Context, err error) string {
	if goerrors.Is(err, context.Canceled) || goerrors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf(translate(ctx, "errorMessage"), err.Error())
	}
	code, ok := errors.Code(err)
	if !ok {
		return fmt.Sprintf(translate(ctx, "errorMessage"), err.Error())
	}
	switch code {
	case errors.PollTimeoutError:
		return translate(ctx, "pollTimeoutMessage")
	case errors.TaskFailedError:
		remoteCode, remoteMessage := errors.Remote(err)
		unknown := translate(ctx, "unknownValue")
		return fmt.Sprintf(translate(ctx, "taskFailedMessage"), valueOr(remoteCode, unknown), valueOr(remoteMessage, unknown))
	case errors.ImageDecodeError:
		return translate(ctx, "imageDecodeMessage")
	case errors.ImageMissingError:
		return translate(ctx, "imageMissingMessage")
	case errors.EmptyResultError:
		return translate(ctx, "drawFailedMessage")
	case errors.PluginDisabledError:
		return translate(ctx, "pluginDisabledMessage")
	}
	return fmt.Sprintf(translate(ctx, "errorMessage"), errors.Message(err))
}

func valueOr(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
