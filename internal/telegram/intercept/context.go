package intercept

import (
	"context"
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	tb "gopkg.in/lightningtipbot/telebot.v3"
)

// Context carries request scoped values next to the telebot context.
type Context struct {
	context.Context
	TeleContext
}
type TeleContext struct {
	tb.Context
}

// WithValue returns a copy of c whose context carries key.
func (c Context) WithValue(key, val interface{}) Context {
	c.Context = context.WithValue(c.Context, key, val)
	return c
}

type Func func(ctx Context) (Context, error)

type handlerInterceptor struct {
	handler Func
	before  Chain
	after   Chain
	onDefer Chain
}
type Chain []Func
type Option func(*handlerInterceptor)

func WithBefore(chain ...Func) Option {
	return func(a *handlerInterceptor) {
		a.before = chain
	}
}
func WithAfter(chain ...Func) Option {
	return func(a *handlerInterceptor) {
		a.after = chain
	}
}
func WithDefer(chain ...Func) Option {
	return func(a *handlerInterceptor) {
		a.onDefer = chain
	}
}

// intercept runs the chain and stops at the first error. The returned context
// is the last one produced without error.
func intercept(h Context, hm Chain) (Context, error) {
	for _, m := range hm {
		next, err := m(h)
		if err != nil {
			return h, err
		}
		h = next
	}
	return h, nil
}

// WithHandler wraps handler with the interceptor chains. The defer chain runs
// even when a before interceptor fails, with the context as far as it got.
func WithHandler(handler Func, option ...Option) tb.HandlerFunc {
	hm := &handlerInterceptor{handler: handler}
	for _, opt := range option {
		opt(hm)
	}
	return func(c tb.Context) (err error) {
		h := Context{TeleContext: TeleContext{Context: c}, Context: context.Background()}
		h, err = intercept(h, hm.before)
		defer func() {
			if _, deferErr := intercept(h, hm.onDefer); deferErr != nil {
				log.Traceln(deferErr)
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("[intercept] recovered panic: %v\n%s", r, debug.Stack())
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		if err != nil {
			log.Traceln(err)
			return err
		}
		h, err = hm.handler(h)
		if err != nil {
			log.Traceln(err)
			return err
		}
		_, err = intercept(h, hm.after)
		if err != nil {
			log.Traceln(err)
			return err
		}
		return nil
	}
}
