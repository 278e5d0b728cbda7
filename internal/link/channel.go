package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/group-controller/internal/log"
	"github.com/sweeney/group-controller/internal/logic"
)

// ErrDeliveryAbandoned is returned when a bounded retry policy runs out of attempts.
var ErrDeliveryAbandoned = errors.New("link: delivery abandoned")

// RetryPolicy controls how Notify retries unacknowledged updates.
type RetryPolicy struct {
	// MaxAttempts bounds the number of sends; 0 retries until acknowledged.
	MaxAttempts int
	// Backoff is the wait after the first failed attempt. It doubles on
	// every further failure up to MaxBackoff, or stays fixed when MaxBackoff
	// is 0. A zero Backoff retries immediately.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// MinInterval paces attempts; 0 disables pacing.
	MinInterval time.Duration
	// StallLogEvery logs a warning every n failed attempts; 0 disables it.
	StallLogEvery int
}

// DefaultRetryPolicy retries forever with no backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{StallLogEvery: 10}
}

// Hooks let the caller observe deliveries while they are in flight.
type Hooks struct {
	OnAttempt  func(u logic.Update, attempt int)
	OnResolved func(d logic.Delivery)
}

var _ logic.Channel = (*Channel)(nil)

// Channel is the acknowledged update channel. It is not safe for concurrent use.
type Channel struct {
	transport Transport
	policy    RetryPolicy
	limiter   *rate.Limiter
	clock     logic.Clock
	hooks     Hooks
	ignored   int
}

// NewChannel creates a channel over transport.
func NewChannel(transport Transport, policy RetryPolicy, clock logic.Clock) *Channel {
	limit := rate.Inf
	if policy.MinInterval > 0 {
		limit = rate.Every(policy.MinInterval)
	}
	return &Channel{
		transport: transport,
		policy:    policy,
		limiter:   rate.NewLimiter(limit, 1),
		clock:     clock,
	}
}

// SetHooks installs delivery observers.
func (c *Channel) SetHooks(h Hooks) {
	c.hooks = h
}

// Notify sends the update and retries until it is acknowledged, the retry
// policy gives up, or ctx is done.
func (c *Channel) Notify(ctx context.Context, u logic.Update) logic.Delivery {
	d := c.notify(ctx, u)
	if c.hooks.OnResolved != nil {
		c.hooks.OnResolved(d)
	}
	return d
}

func (c *Channel) notify(ctx context.Context, u logic.Update) logic.Delivery {
	d := logic.Delivery{Update: u}

	payload, err := EncodeStatus(u.Space, u.Available)
	if err != nil {
		d.Err = err
		return d
	}

	backoff := c.policy.Backoff
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			d.Err = err
			return d
		}

		d.Attempts++
		if c.hooks.OnAttempt != nil {
			c.hooks.OnAttempt(u, d.Attempts)
		}
		if c.transport.TrySend(payload) {
			d.Delivered = true
			if d.Attempts > 1 {
				log.Info(ctx, "link: update acknowledged after retries",
					log.Space(u.Space), slog.Int("attempts", d.Attempts))
			}
			return d
		}

		if c.policy.MaxAttempts > 0 && d.Attempts >= c.policy.MaxAttempts {
			d.Err = fmt.Errorf("space %d after %d attempts: %w", u.Space, d.Attempts, ErrDeliveryAbandoned)
			log.Warn(ctx, "link: giving up on update",
				log.Space(u.Space), slog.Bool("available", u.Available), slog.Int("attempts", d.Attempts))
			return d
		}
		if n := c.policy.StallLogEvery; n > 0 && d.Attempts%n == 0 {
			log.Warn(ctx, "link: update not acknowledged",
				log.Space(u.Space), slog.Int("attempts", d.Attempts))
		}

		if backoff > 0 {
			if err := c.clock.Sleep(ctx, backoff); err != nil {
				d.Err = err
				return d
			}
			if c.policy.MaxBackoff > 0 {
				backoff = min(2*backoff, c.policy.MaxBackoff)
			}
		} else if err := ctx.Err(); err != nil {
			d.Err = err
			return d
		}
	}
}

// DrainIncoming reads every pending inbound payload. Reserve commands are
// applied to r at the current time; anything else is dropped and counted.
func (c *Channel) DrainIncoming(r logic.Reserver) []logic.Command {
	var cmds []logic.Command
	for {
		p, ok := c.transport.TryReceive()
		if !ok {
			return cmds
		}

		space, err := DecodeReserve(p)
		if err != nil {
			c.ignored++
			log.Debug(context.Background(), "link: ignoring inbound payload", slog.Int("bytes", len(p)))
			continue
		}

		cmd := logic.Command{Space: space, At: c.clock.Now()}
		if err := r.Reserve(space, cmd.At); err != nil {
			log.Debug(context.Background(), "link: reserve rejected", log.Space(space), log.Err("error", err))
		} else {
			cmd.Applied = true
		}
		cmds = append(cmds, cmd)
	}
}

// Ignored returns the number of inbound payloads that were not reserve commands.
func (c *Channel) Ignored() int {
	return c.ignored
}
