package mutex

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	cmap "github.com/orcaman/concurrent-map"
	log "github.com/sirupsen/logrus"
)

// mutexMap holds one mutex per key. Mutexes are never removed so that a
// waiter and a new caller always lock the same one.
var mutexMap cmap.ConcurrentMap

// heldMap records which keys are currently locked, by whom and since when.
var heldMap cmap.ConcurrentMap

var lastToken uint64

type holder struct {
	token uint64
	since time.Time
}

func init() {
	mutexMap = cmap.New()
	heldMap = cmap.New()
}

// Lock locks the mutex of s, creating it on first use. The returned token
// identifies this acquisition and must be handed back to Unlock.
func Lock(s string) uint64 {
	log.Tracef("[Mutex] Attempt Lock %s", s)
	mutexMap.SetIfAbsent(s, &sync.Mutex{})
	m, _ := mutexMap.Get(s)
	m.(*sync.Mutex).Lock()
	token := atomic.AddUint64(&lastToken, 1)
	heldMap.Set(s, holder{token: token, since: time.Now()})
	log.Tracef("[Mutex] Lock %s (%d)", s, token)
	return token
}

// Unlock releases the acquisition of s identified by token. A key that is not
// held, or is held by a later acquisition after a forced unlock, is skipped.
func Unlock(s string, token uint64) {
	released := heldMap.RemoveCb(s, func(_ string, v interface{}, exists bool) bool {
		return exists && v.(holder).token == token
	})
	if !released {
		log.Errorf("[Mutex] ⚠⚠⚠️ Unlock %s (%d) not held. Skip.", s, token)
		return
	}
	m, _ := mutexMap.Get(s)
	m.(*sync.Mutex).Unlock()
	log.Tracef("[Mutex] Unlock %s (%d)", s, token)
}

// IsEmpty reports whether no key is locked.
func IsEmpty() bool {
	return heldMap.Count() == 0
}

type heldLock struct {
	Key     string `json:"key"`
	Since   string `json:"since"`
	Seconds int64  `json:"seconds"`
}

// Held lists the locked keys, oldest first.
func Held() []heldLock {
	now := time.Now()
	locks := make([]heldLock, 0, heldMap.Count())
	for key, v := range heldMap.Items() {
		since := v.(holder).since
		locks = append(locks, heldLock{Key: key, Since: since.Format(time.RFC3339), Seconds: int64(now.Sub(since).Seconds())})
	}
	sort.Slice(locks, func(i, j int) bool {
		return locks[i].Seconds > locks[j].Seconds
	})
	return locks
}

func ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(Held()); err != nil {
		log.Errorf("[Mutex] %v", err)
	}
}

// UnlockHTTP force unlocks the key given in the route variable id. The
// interrupted holder's own Unlock becomes a no-op, so a new holder keeps its lock.
func UnlockHTTP(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, ok := heldMap.Get(id)
	if !ok {
		http.Error(w, fmt.Sprintf("%s is not locked", id), http.StatusNotFound)
		return
	}
	Unlock(id, v.(holder).token)
	log.Warnf("[Mutex] force unlocked %s", id)
	w.WriteHeader(http.StatusOK)
}
