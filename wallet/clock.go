package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/atomic"
)

// HeaderReader is the part of an Ethereum client ChainClock needs.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// ErrClockUnavailable is returned by ChainClock when the latest block header
// cannot be read.
var ErrClockUnavailable = errors.New("ledger time unavailable")

// ChainClock reports the timestamp of the latest block, never going below a
// timestamp it already reported.
type ChainClock struct {
	client  HeaderReader
	timeout time.Duration
	log     *slog.Logger
	last    atomic.Uint64
}

func NewChainClock(client HeaderReader, timeout time.Duration, log *slog.Logger) *ChainClock {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ChainClock{client: client, timeout: timeout, log: log}
}

func (c *ChainClock) Now() (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		c.log.Warn("Failed to read latest block header", "err", err)
		return 0, fmt.Errorf("%w: %w", ErrClockUnavailable, err)
	}
	if header == nil {
		return 0, fmt.Errorf("%w: empty header", ErrClockUnavailable)
	}
	return c.advance(header.Time), nil
}

func (c *ChainClock) advance(t uint64) uint64 {
	for {
		last := c.last.Load()
		if t <= last {
			return last
		}
		if c.last.CompareAndSwap(last, t) {
			return t
		}
	}
}

// ManualClock is a clock moved explicitly, for tests and simulations.
type ManualClock struct {
	now atomic.Uint64
}

func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) Now() (uint64, error) {
	return c.now.Load(), nil
}

// Advance moves the clock forward by seconds and returns the new time.
func (c *ManualClock) Advance(seconds uint64) uint64 {
	return c.now.Add(seconds)
}

// Set moves the clock to t. Moving backwards is ignored.
func (c *ManualClock) Set(t uint64) {
	for {
		cur := c.now.Load()
		if t <= cur || c.now.CompareAndSwap(cur, t) {
			return
		}
	}
}

// SystemClock reports wall-clock unix seconds, never going backwards.
type SystemClock struct {
	last atomic.Uint64
}

func (c *SystemClock) Now() (uint64, error) {
	t := uint64(time.Now().Unix())
	for {
		last := c.last.Load()
		if t <= last {
			return last, nil
		}
		if c.last.CompareAndSwap(last, t) {
			return t, nil
		}
	}
}
