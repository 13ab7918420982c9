package forward

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

// CopierOptions tunes the per-destination copy loop.
type CopierOptions struct {
	// Attempts is the total retry budget per destination (default 5).
	Attempts int
	// RatePerSec caps sends across all concurrent copies (0 disables).
	RatePerSec int
}

// Copier performs one content-preserving send per destination, absorbing
// destination-local failures. It never returns an error: every failure
// mode collapses into a terminal Outcome.
type Copier struct {
	sender   transport.Sender
	recorder Recorder
	limiter  *rate.Limiter
	attempts int
	log      logx.Logger

	sleep sleeper
	now   func() time.Time
}

func NewCopier(sender transport.Sender, rec Recorder, opt CopierOptions, log logx.Logger) *Copier {
	attempts := opt.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	var lim *rate.Limiter
	if opt.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(opt.RatePerSec), opt.RatePerSec)
	}
	return &Copier{
		sender:   sender,
		recorder: rec,
		limiter:  lim,
		attempts: attempts,
		log:      log,
		sleep:    sleepFor,
		now:      time.Now,
	}
}

// Copy sends msg to one destination with the bounded retry budget.
// A delivered copy bumps the destination's forward counter in the registry;
// failures never touch registry state.
func (c *Copier) Copy(ctx context.Context, msg *transport.Message, dest Destination) Outcome {
	kind := Classify(msg)
	if kind == KindUnsupported {
		c.log.Warn("unsupported message type", logx.String("channel", dest.ID))
		return Outcome{Destination: dest.ID, Status: PermanentFailure, Reason: "unsupported type"}
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Outcome{Destination: dest.ID, Status: ExhaustedRetries, Reason: err.Error(), Attempts: attempt}
			}
		}

		err := c.dispatch(ctx, kind, msg, dest.ID)
		if err == nil {
			if c.recorder != nil {
				if rerr := c.recorder.RecordDelivery(ctx, dest.ID, c.now()); rerr != nil {
					c.log.Warn("delivery not recorded", logx.String("channel", dest.ID), logx.Err(rerr))
				}
			}
			c.log.Debug("copied", logx.String("channel", dest.ID), logx.String("kind", kind.String()), logx.Int("attempt", attempt))
			return Outcome{Destination: dest.ID, Status: Delivered, Attempts: attempt}
		}

		class, wait := classifyFailure(err)
		rule := retryPolicy[class]
		if !rule.retry {
			c.log.Error("permanent failure", logx.String("channel", dest.ID), logx.String("class", class.String()), logx.Err(err))
			return Outcome{Destination: dest.ID, Status: PermanentFailure, Reason: err.Error(), Attempts: attempt}
		}

		lastErr = err
		if attempt == c.attempts {
			break
		}

		delay := rule.backoff(wait)
		c.log.Warn("send failed; retrying",
			logx.String("channel", dest.ID),
			logx.String("class", class.String()),
			logx.Int("attempt", attempt),
			logx.Int("budget", c.attempts),
			logx.Duration("backoff", delay),
			logx.Err(err))
		if serr := c.sleep(ctx, delay); serr != nil {
			return Outcome{Destination: dest.ID, Status: ExhaustedRetries, Reason: serr.Error(), Attempts: attempt}
		}
	}

	reason := "retry budget exhausted"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	c.log.Error("gave up after retries", logx.String("channel", dest.ID), logx.Int("attempts", c.attempts), logx.Err(lastErr))
	return Outcome{Destination: dest.ID, Status: ExhaustedRetries, Reason: reason, Attempts: c.attempts}
}

// dispatch selects the kind-appropriate send operation. The payload fields
// used here are exactly the ones the classifier matched on.
func (c *Copier) dispatch(ctx context.Context, kind ContentKind, m *transport.Message, chatID string) error {
	switch kind {
	case KindText:
		return c.sender.SendText(ctx, chatID, m.Text, m.Entities)
	case KindPhoto:
		return c.sender.SendPhoto(ctx, chatID, *m.Photo, m.Caption, m.CaptionEntities)
	case KindVideo:
		return c.sender.SendVideo(ctx, chatID, *m.Video, m.Caption, m.CaptionEntities)
	case KindDocument:
		return c.sender.SendDocument(ctx, chatID, *m.Document, m.Caption, m.CaptionEntities)
	case KindAudio:
		return c.sender.SendAudio(ctx, chatID, *m.Audio, m.Caption, m.CaptionEntities)
	case KindVoice:
		return c.sender.SendVoice(ctx, chatID, *m.Voice, m.Caption, m.CaptionEntities)
	case KindVideoNote:
		return c.sender.SendVideoNote(ctx, chatID, *m.VideoNote)
	case KindSticker:
		return c.sender.SendSticker(ctx, chatID, *m.Sticker)
	case KindAnimation:
		return c.sender.SendAnimation(ctx, chatID, *m.Animation, m.Caption, m.CaptionEntities)
	case KindPoll:
		return c.sender.SendPoll(ctx, chatID, *m.Poll)
	case KindLocation:
		return c.sender.SendLocation(ctx, chatID, *m.Location)
	case KindContact:
		return c.sender.SendContact(ctx, chatID, *m.Contact)
	default:
		return &transport.SendError{Description: "unsupported type"}
	}
}
