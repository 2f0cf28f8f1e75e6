// Package plugin mediates between chat messages and the image service: it
// matches commands, keeps per-session state and turns results and failures
// into replies.
package plugin

import (
	"context"
	"sync/atomic"

	"github.com/massmux/QwenImageBot/internal"
	"github.com/massmux/QwenImageBot/internal/account"
	"github.com/massmux/QwenImageBot/internal/command"
	"github.com/massmux/QwenImageBot/internal/errors"
	"github.com/massmux/QwenImageBot/internal/prompt"
	"github.com/massmux/QwenImageBot/internal/qwen"
	"github.com/massmux/QwenImageBot/internal/session"
	log "github.com/sirupsen/logrus"
)

// Image is a result to send back. URL is preferred when both are set.
type Image struct {
	URL  string
	Data []byte
}

// Replier is the reply channel of the host for the message being handled.
type Replier interface {
	ReplyText(ctx context.Context, text string) error
	ReplyImage(ctx context.Context, image Image) error
}

// Event is one incoming chat message.
type Event struct {
	// Session identifies whose state the message reads and writes.
	Session string
	Text    string
	// Image attached to the message itself.
	Image *qwen.ImageSource
	// Referenced is the image of the message this one quotes.
	Referenced *qwen.ImageSource
}

func (e Event) hasImage() bool {
	return e.Image != nil && !e.Image.Empty()
}

// editSource returns the image an edit command applies to directly.
func (e Event) editSource() (qwen.ImageSource, bool) {
	if e.hasImage() {
		return *e.Image, true
	}
	if e.Referenced != nil && !e.Referenced.Empty() {
		return *e.Referenced, true
	}
	return qwen.ImageSource{}, false
}

type Plugin struct {
	config     internal.QwenConfiguration
	commands   internal.CommandConfiguration
	router     *command.Router
	drawParser *prompt.Parser
	editParser *prompt.Parser
	client     *qwen.Client
	sessions   *session.Store
	accounts   *account.Selector
	disabled   atomic.Bool
}

func New(cfg internal.Config, client *qwen.Client, sessions *session.Store, accounts *account.Selector) *Plugin {
	return &Plugin{
		config:     cfg.Qwen,
		commands:   cfg.Commands,
		router:     command.NewRouter(cfg.Commands),
		drawParser: prompt.NewGenerateParser(cfg.Qwen),
		editParser: prompt.NewEditParser(cfg.Qwen),
		client:     client,
		sessions:   sessions,
		accounts:   accounts,
	}
}

func (p *Plugin) Enabled() bool {
	return !p.disabled.Load()
}

func (p *Plugin) SetEnabled(enabled bool) {
	p.disabled.Store(!enabled)
	log.Infof("[plugin] enabled=%t", enabled)
}

func (p *Plugin) Accounts() *account.Selector {
	return p.accounts
}

func (p *Plugin) Sessions() *session.Store {
	return p.sessions
}

// Status is a snapshot for the admin api.
type Status struct {
	Enabled      bool `json:"enabled"`
	Account      int  `json:"account"`
	PendingEdits int  `json:"pending_edits"`
}

func (p *Plugin) Status() Status {
	n, _ := p.accounts.Current()
	return Status{Enabled: p.Enabled(), Account: n, PendingEdits: p.sessions.PendingCount()}
}

// Handle reacts to ev and reports whether the message was meant for the
// plugin. Unrelated messages get no reply. Failures are answered with a
// single error reply and never returned.
//
// Priority: an edit command on a message that carries or quotes an image
// runs immediately; then an uploaded image consumes the session's pending
// edit; then the text is matched against the command prefixes.
func (p *Plugin) Handle(ctx context.Context, ev Event, r Replier) bool {
	cmd, matched := p.router.Match(ev.Text)

	var run func() error
	switch {
	case matched && cmd.Kind == command.Edit && hasSource(ev):
		src, _ := ev.editSource()
		run = func() error {
			if ev.hasImage() {
				// this image supersedes whatever edit the session was waiting for
				p.sessions.Consume(ev.Session)
			}
			return p.editNow(ctx, cmd, src, r)
		}
	case ev.hasImage() && p.sessions.Pending(ev.Session):
		run = func() error { return p.editPending(ctx, ev, r) }
	case matched:
		run = func() error { return p.dispatch(ctx, ev, cmd, r) }
	default:
		return false
	}

	if !p.Enabled() {
		log.Debugf("[plugin] disabled, rejecting message from %s", ev.Session)
		p.replyError(ctx, r, errors.Create(errors.PluginDisabledError))
		return true
	}
	if err := run(); err != nil {
		p.replyError(ctx, r, err)
	}
	return true
}

func hasSource(ev Event) bool {
	_, ok := ev.editSource()
	return ok
}

func (p *Plugin) dispatch(ctx context.Context, ev Event, cmd command.Command, r Replier) error {
	log.Debugf("[plugin] %s command from %s: %q", cmd.Kind, ev.Session, cmd.Args)
	switch cmd.Kind {
	case command.Draw:
		return p.draw(ctx, ev, cmd, r)
	case command.Edit:
		return p.armEdit(ctx, ev, cmd, r)
	case command.Control:
		return p.control(ctx, ev, cmd, r)
	case command.Account:
		return p.switchAccount(ctx, cmd, r)
	case command.Help:
		return p.help(ctx, ev, r)
	}
	return nil
}

func (p *Plugin) reply(ctx context.Context, r Replier, text string) {
	if err := r.ReplyText(ctx, text); err != nil {
		log.Warnf("[plugin] could not send reply: %v", err)
	}
}

// HelpCommands returns the configured help prefixes.
func (p *Plugin) HelpCommands() []string {
	return p.commands.Help
}
