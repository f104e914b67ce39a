package discord

import (
	"context"
	"sync"
	"time"

	"github.com/warp/birthday-engine/bot"
)

type waiter struct {
	channelID string
	authorID  string
	match     func(*bot.Message) bool
	ch        chan *bot.Message
}

// waiters holds pending WaitForMessage calls. A message satisfies at most
// one waiter; the earliest registered match wins.
type waiters struct {
	mu      sync.Mutex
	pending []*waiter
}

func newWaiters() *waiters {
	return &waiters{}
}

func (w *waiters) wait(ctx context.Context, channelID, authorID string, match func(*bot.Message) bool, timeout time.Duration) (*bot.Message, error) {
	wt := &waiter{
		channelID: channelID,
		authorID:  authorID,
		match:     match,
		ch:        make(chan *bot.Message, 1),
	}

	w.mu.Lock()
	w.pending = append(w.pending, wt)
	w.mu.Unlock()
	defer w.remove(wt)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-wt.ch:
		return msg, nil
	case <-timer.C:
		return nil, bot.ErrWaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliver offers msg to pending waiters and reports whether one took it.
func (w *waiters) deliver(msg *bot.Message) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, wt := range w.pending {
		if wt.channelID != msg.ChannelID || wt.authorID != msg.AuthorID {
			continue
		}
		if !wt.match(msg) {
			continue
		}
		wt.ch <- msg
		w.pending = append(w.pending[:i], w.pending[i+1:]...)
		return true
	}
	return false
}

func (w *waiters) remove(wt *waiter) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, p := range w.pending {
		if p == wt {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			return
		}
	}
}

func (w *waiters) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
