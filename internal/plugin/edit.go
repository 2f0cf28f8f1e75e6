package plugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/massmux/QwenImageBot/internal/command"
	"github.com/massmux/QwenImageBot/internal/errors"
	"github.com/massmux/QwenImageBot/internal/qwen"
	"github.com/massmux/QwenImageBot/internal/session"
	log "github.com/sirupsen/logrus"
)

// armEdit stores the instruction until the session's next image arrives.
func (p *Plugin) armEdit(ctx context.Context, ev Event, cmd command.Command, r Replier) error {
	req := p.editParser.Parse(cmd.Args)
	if req.Prompt == "" {
		p.reply(ctx, r, fmt.Sprintf(translate(ctx, "editPromptRequiredMessage"), cmd.Prefix))
		return nil
	}
	p.sessions.Arm(ev.Session, session.PendingEdit{
		Prompt:         req.Prompt,
		Model:          req.Model,
		NegativePrompt: req.NegativePrompt,
	})
	seconds := int(p.sessions.PendingEditTimeout().Seconds())
	p.reply(ctx, r, fmt.Sprintf(translate(ctx, "editWaitImageMessage"), seconds))
	return nil
}

// editNow edits an image carried or quoted by the command message.
func (p *Plugin) editNow(ctx context.Context, cmd command.Command, src qwen.ImageSource, r Replier) error {
	req := p.editParser.Parse(cmd.Args)
	if req.Prompt == "" {
		p.reply(ctx, r, fmt.Sprintf(translate(ctx, "editPromptRequiredMessage"), cmd.Prefix))
		return nil
	}
	return p.edit(ctx, session.PendingEdit{
		Prompt:         req.Prompt,
		Model:          req.Model,
		NegativePrompt: req.NegativePrompt,
	}, src, r)
}

func (p *Plugin) editPending(ctx context.Context, ev Event, r Replier) error {
	pending, ok := p.sessions.Consume(ev.Session)
	if !ok {
		// expired between the check and now
		return nil
	}
	return p.edit(ctx, pending, *ev.Image, r)
}

func (p *Plugin) edit(ctx context.Context, pending session.PendingEdit, src qwen.ImageSource, r Replier) error {
	n, key := p.accounts.Current()
	log.Infof("[plugin] edit model=%s account=%d", pending.Model, n)
	p.reply(ctx, r, fmt.Sprintf(translate(ctx, "editProgressMessage"), pending.Model))

	result, err := p.client.Edit(ctx, qwen.EditRequest{
		APIKey:         key,
		Model:          pending.Model,
		Prompt:         pending.Prompt,
		NegativePrompt: pending.NegativePrompt,
		Image:          src,
	})
	if err != nil {
		return err
	}
	image, err := resultImage(result)
	if err != nil {
		return err
	}
	return r.ReplyImage(ctx, image)
}

// resultImage accepts a URL or inline image data returned by the edit endpoint.
func resultImage(result string) (Image, error) {
	if strings.HasPrefix(result, "http://") || strings.HasPrefix(result, "https://") {
		return Image{URL: result}, nil
	}
	data, err := qwen.DecodeBase64(result)
	if err != nil {
		return Image{}, errors.New(errors.ImageDecodeError, err)
	}
	return Image{Data: data}, nil
}
