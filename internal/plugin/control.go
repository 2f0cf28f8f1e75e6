package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/massmux/QwenImageBot/internal/command"
	"github.com/massmux/QwenImageBot/internal/errors"
	log "github.com/sirupsen/logrus"
)

// control toggles prompt extension. The first control prefix enables it,
// the second disables it.
func (p *Plugin) control(ctx context.Context, ev Event, cmd command.Command, r Replier) error {
	switch cmd.Index {
	case 0:
		p.sessions.SetPromptExtend(ev.Session, true)
		p.reply(ctx, r, translate(ctx, "promptExtendEnabledMessage"))
	case 1:
		p.sessions.SetPromptExtend(ev.Session, false)
		p.reply(ctx, r, translate(ctx, "promptExtendDisabledMessage"))
	default:
		p.reply(ctx, r, translate(ctx, "unknownControlMessage"))
	}
	return nil
}

// switchAccount selects account i+1 for the i-th account prefix.
func (p *Plugin) switchAccount(ctx context.Context, cmd command.Command, r Replier) error {
	n := cmd.Index + 1
	err := p.accounts.Switch(n)
	switch code, _ := errors.Code(err); {
	case err == nil:
		p.reply(ctx, r, fmt.Sprintf(translate(ctx, "accountSwitchedMessage"), n))
	case code == errors.AccountNotConfiguredError:
		p.reply(ctx, r, fmt.Sprintf(translate(ctx, "accountNotConfiguredMessage"), n))
	case code == errors.UnknownAccountError:
		p.reply(ctx, r, translate(ctx, "unknownAccountMessage"))
	default:
		return err
	}
	return nil
}

func (p *Plugin) help(ctx context.Context, ev Event, r Replier) error {
	p.reply(ctx, r, p.HelpText(ctx, ev.Session))
	return nil
}

// HelpText describes the commands, flags and current settings.
func (p *Plugin) HelpText(ctx context.Context, sessionID string) string {
	ratios := make([]string, 0, len(p.config.Ratios))
	for ratio := range p.config.Ratios {
		ratios = append(ratios, ratio)
	}
	sort.Strings(ratios)
	account, _ := p.accounts.Current()
	extend := translate(ctx, "disabledValue")
	if p.sessions.PromptExtend(sessionID) {
		extend = translate(ctx, "enabledValue")
	}
	draw := firstOr(p.commands.Image, "")
	edit := firstOr(p.commands.Edit, "")

	lines := []string{
		translate(ctx, "helpTitle"),
		fmt.Sprintf(translate(ctx, "helpDrawLine"), strings.Join(p.commands.Image, ", ")),
		translate(ctx, "helpRatioLine"),
		fmt.Sprintf(translate(ctx, "helpModelLine"), p.config.DefaultModel),
		translate(ctx, "helpNegativeLine"),
		fmt.Sprintf(translate(ctx, "helpEditLine"), strings.Join(p.commands.Edit, ", ")),
		fmt.Sprintf(translate(ctx, "helpControlLine"), strings.Join(p.commands.Control, ", ")),
		fmt.Sprintf(translate(ctx, "helpAccountLine"), strings.Join(p.commands.Account, ", ")),
		fmt.Sprintf(translate(ctx, "helpExampleLine"), draw, "一只可爱的小猫 --ar 16:9"),
		fmt.Sprintf(translate(ctx, "helpExampleLine"), draw, "一张酷炫的电影海报 --ar 3:4 --plus"),
		fmt.Sprintf(translate(ctx, "helpExampleLine"), edit, "把背景换成海边"),
		fmt.Sprintf(translate(ctx, "helpRatiosLine"), strings.Join(ratios, ", ")),
		fmt.Sprintf(translate(ctx, "helpDefaultRatioLine"), p.config.DefaultRatio),
		fmt.Sprintf(translate(ctx, "helpModelsLine"), strings.Join(p.config.Models, ", ")),
		fmt.Sprintf(translate(ctx, "helpEditModelsLine"), strings.Join(p.config.EditModels, ", ")),
		fmt.Sprintf(translate(ctx, "helpAccountStatusLine"), account),
		fmt.Sprintf(translate(ctx, "helpPromptExtendLine"), extend),
		translate(ctx, "helpNoteLine"),
	}
	log.Tracef("[plugin] help for %s", sessionID)
	return strings.Join(lines, "\n")
}

func firstOr(s []string, fallback string) string {
	if len(s) > 0 {
		return s[0]
	}
	return fallback
}
