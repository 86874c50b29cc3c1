package telegram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Updater is implemented by *tgbotapi.BotAPI.
type Updater interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// WebhookPath derives a stable secret path from the bot token.
func WebhookPath(token string) string {
	h := sha256.Sum256([]byte(token))
	return "/webhook/" + hex.EncodeToString(h[:])[:16]
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// DefaultConcurrency bounds how many updates are analyzed at once.
const DefaultConcurrency = 4

// Pool runs update handlers with at most n in flight.
type Pool struct{ sem chan struct{} }

func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{sem: make(chan struct{}, n)}
}

// Go waits for a free slot and runs f in its own goroutine. It returns false,
// without running f, if ctx is done first.
func (p *Pool) Go(ctx context.Context, f func()) bool {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	go func() {
		defer func() { <-p.sem }()
		f()
	}()
	return true
}

// RunPolling long-polls for updates until ctx is done and hands each one to
// handle through pool. A nil pool means DefaultConcurrency. A saturated pool
// stalls the loop, so Telegram holds the backlog. Errors from Telegram are
// retried with a bounded delay.
func RunPolling(ctx context.Context, bot Updater, pool *Pool, handle func(tgbotapi.Update)) {
	if pool == nil {
		pool = NewPool(DefaultConcurrency)
	}
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Printf("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			log.Printf("polling error: %v; retry in %v", err, d)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			if !pool.Go(ctx, func() { handle(upd) }) {
				return
			}
		}

		if len(updates) == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}
