package rate

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
	tb "gopkg.in/lightningtipbot/telebot.v3"
)

// Limiter holds one token bucket per chat.
type Limiter struct {
	keys map[string]*rate.Limiter
	mu   *sync.RWMutex
	r    rate.Limit
	b    int
}

var idLimiter *Limiter
var globalLimiter *rate.Limiter

var startOnce sync.Once

// Start creates the per chat and global limiters. Telegram allows about 30
// messages per second overall and far fewer per chat.
func Start() {
	startOnce.Do(func() {
		idLimiter = NewLimiter(rate.Limit(1), 20)
		globalLimiter = rate.NewLimiter(rate.Limit(30), 30)
	})
}

func NewLimiter(r rate.Limit, b int) *Limiter {
	return &Limiter{
		keys: make(map[string]*rate.Limiter),
		mu:   &sync.RWMutex{},
		r:    r,
		b:    b,
	}
}

// CheckLimit blocks until a message to the recipient may be sent.
func CheckLimit(to interface{}) {
	Start()
	_ = globalLimiter.Wait(context.Background())
	if id := recipientID(to); len(id) > 0 {
		_ = idLimiter.GetLimiter(id).Wait(context.Background())
	}
}

func recipientID(to interface{}) string {
	switch v := to.(type) {
	case *tb.Message:
		if v.Chat != nil {
			return strconv.FormatInt(v.Chat.ID, 10)
		}
	case *tb.Chat:
		return strconv.FormatInt(v.ID, 10)
	case *tb.User:
		return strconv.FormatInt(v.ID, 10)
	case tb.Recipient:
		return v.Recipient()
	}
	return ""
}

// GetLimiter returns the limiter of key, creating it on first use.
func (i *Limiter) GetLimiter(key string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.keys[key]
	i.mu.RUnlock()
	if exists {
		return limiter
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if limiter, exists = i.keys[key]; !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.keys[key] = limiter
	}
	return limiter
}
