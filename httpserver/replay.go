package httpserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/manuelog-udc/tfm-munics/api"
	"github.com/manuelog-udc/tfm-munics/interfaces"
)

const (
	// DefaultRequestWindow is how far a signed timestamp may be from server time.
	DefaultRequestWindow = 5 * time.Minute

	// DefaultReplayCapacity bounds the number of nonces remembered at once.
	DefaultReplayCapacity = 100_000
)

// ErrReplayCacheFull is returned when every remembered nonce is still live,
// so no further signed request can be admitted until some expire.
var ErrReplayCacheFull = errors.New("too many signed requests in flight")

// ReplayGuard admits each signed request at most once. The timestamp must be
// within window of server time, and the signer's nonce is remembered until
// no request carrying it could pass the timestamp check again.
type ReplayGuard struct {
	mu       sync.Mutex
	window   time.Duration
	capacity int
	seen     lru.BasicLRU[common.Hash, time.Time]
	now      func() time.Time
}

func NewReplayGuard(window time.Duration, capacity int) *ReplayGuard {
	if window <= 0 {
		window = DefaultRequestWindow
	}
	if capacity <= 0 {
		capacity = DefaultReplayCapacity
	}
	return &ReplayGuard{
		window:   window,
		capacity: capacity,
		seen:     lru.NewBasicLRU[common.Hash, time.Time](capacity),
		now:      time.Now,
	}
}

// Admit checks the request timestamp and records the nonce for signer.
func (g *ReplayGuard) Admit(signer interfaces.Address, sr api.SignedRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	signedAt := time.Unix(sr.Timestamp, 0)
	if signedAt.Before(now.Add(-g.window)) || signedAt.After(now.Add(g.window)) {
		return fmt.Errorf("%w: signed at %d, server time %d", api.ErrStaleRequest, sr.Timestamp, now.Unix())
	}

	// Entries are added in arrival order, so the oldest expires first.
	for {
		_, expiry, ok := g.seen.GetOldest()
		if !ok || expiry.After(now) {
			break
		}
		g.seen.RemoveOldest()
	}

	key := common.BytesToHash(crypto.Keccak256(signer[:], []byte(sr.Nonce)))
	if g.seen.Contains(key) {
		return api.ErrReplayedRequest
	}
	if g.seen.Len() >= g.capacity {
		return ErrReplayCacheFull
	}
	g.seen.Add(key, now.Add(2*g.window+time.Second))
	return nil
}
