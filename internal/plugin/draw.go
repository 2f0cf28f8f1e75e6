package plugin

import (
	"context"
	"fmt"

	"github.com/massmux/QwenImageBot/internal/command"
	"github.com/massmux/QwenImageBot/internal/qwen"
	log "github.com/sirupsen/logrus"
)

func (p *Plugin) draw(ctx context.Context, ev Event, cmd command.Command, r Replier) error {
	req := p.drawParser.Parse(cmd.Args)
	if req.Prompt == "" {
		p.reply(ctx, r, translate(ctx, "drawPromptRequiredMessage"))
		return nil
	}
	n, key := p.accounts.Current()
	promptExtend := p.sessions.PromptExtend(ev.Session)
	log.Infof("[plugin] draw for %s model=%s size=%s prompt_extend=%t account=%d", ev.Session, req.Model, req.Size, promptExtend, n)
	p.reply(ctx, r, fmt.Sprintf(translate(ctx, "drawProgressMessage"), req.Model, req.Ratio))

	url, err := p.client.Generate(ctx, qwen.GenerateRequest{
		APIKey:         key,
		Model:          req.Model,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Size:           req.Size,
		PromptExtend:   promptExtend,
	})
	if err != nil {
		return err
	}
	return r.ReplyImage(ctx, Image{URL: url})
}
