// Package telegram adapts the Telegram Bot API (via telebot) to the
// transport contract. All platform-specific error shapes, recipient
// addressing, and sendable construction live here; nothing above this
// package imports telebot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	out     atomic.Value // stores (chan<- transport.Update)
	runMu   sync.Mutex
	running bool

	// dropped counts updates discarded because the consumer lagged behind
	// the poll loop. Reported periodically instead of per update.
	dropped uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	b, err := tele.NewBot(tele.Settings{
		Token: cfg.Token,
		Poller: &tele.LongPoller{
			Timeout: timeout,
			// channel_post is not in Telegram's default allowed set.
			AllowedUpdates: []string{"message", "channel_post"},
		},
	})
	if err != nil {
		return nil, err
	}

	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.push(transport.Update{Kind: transport.UpdateCommand, Message: fromTelebot(m)})
		return nil
	})

	a.bot.Handle(tele.OnChannelPost, func(c tele.Context) error {
		m := c.Message()
		if m == nil {
			return nil
		}
		a.push(transport.Update{Kind: transport.UpdateChannelPost, Message: fromTelebot(m)})
		return nil
	})
}

func (a *Adapter) push(up transport.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- transport.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.dropped, 1)
	}
}

// Start runs the long-poll loop and blocks until the bot stops. Intended to
// run under a restart loop: an unexpected return while ctx is still live is
// the caller's cue to restart.
func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return errors.New("adapter already running")
	}
	a.running = true
	a.out.Store(out)
	a.runMu.Unlock()

	done := make(chan struct{})
	defer close(done)

	// Stop the poller when the context goes; telebot Stop can block if the
	// poller already exited, so it runs detached.
	go func() {
		select {
		case <-ctx.Done():
			go a.bot.Stop()
		case <-done:
		}
	}()

	// Periodic summary for dropped updates.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.dropped, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)",
						logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
				}
			}
		}
	}()

	a.log.Info("polling started")
	a.bot.Start()
	a.log.Info("polling stopped")

	a.runMu.Lock()
	a.running = false
	a.runMu.Unlock()
	return ctx.Err()
}

// Stop halts polling. Best-effort: never blocks shutdown on a pending
// long-poll beyond a short grace window.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	wasRunning := a.running
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	go a.bot.Stop()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return nil
}

func recipient(chatID string) (tele.Recipient, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		// Shaped so the retry policy treats a malformed id as permanent.
		return nil, &transport.SendError{
			Description: fmt.Sprintf("chat not found: malformed channel id %q", chatID),
		}
	}
	return tele.ChatID(id), nil
}

func (a *Adapter) send(ctx context.Context, chatID string, what any, opts *tele.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := recipient(chatID)
	if err != nil {
		return err
	}
	if opts == nil {
		_, err = a.bot.Send(to, what)
	} else {
		_, err = a.bot.Send(to, what, opts)
	}
	return mapError(err)
}

// entityOpts carries formatting entities. Telebot attaches them as message
// entities or caption entities depending on the sendable.
func entityOpts(entities any) *tele.SendOptions {
	e := toEntities(entities)
	if len(e) == 0 {
		return nil
	}
	return &tele.SendOptions{Entities: e}
}

func (a *Adapter) SendText(ctx context.Context, chatID string, text string, entities any) error {
	return a.send(ctx, chatID, text, entityOpts(entities))
}

func (a *Adapter) SendPhoto(ctx context.Context, chatID string, photo transport.FileRef, caption string, entities any) error {
	return a.send(ctx, chatID, &tele.Photo{
		File:    tele.File{FileID: photo.FileID},
		Caption: caption,
	}, entityOpts(entities))
}

func (a *Adapter) SendVideo(ctx context.Context, chatID string, video transport.Video, caption string, entities any) error {
	return a.send(ctx, chatID, &tele.Video{
		File:     tele.File{FileID: video.FileID},
		Caption:  caption,
		Duration: video.Duration,
		Width:    video.Width,
		Height:   video.Height,
	}, entityOpts(entities))
}

func (a *Adapter) SendDocument(ctx context.Context, chatID string, doc transport.FileRef, caption string, entities any) error {
	return a.send(ctx, chatID, &tele.Document{
		File:    tele.File{FileID: doc.FileID},
		Caption: caption,
	}, entityOpts(entities))
}

func (a *Adapter) SendAudio(ctx context.Context, chatID string, audio transport.FileRef, caption string, entities any) error {
	return a.send(ctx, chatID, &tele.Audio{
		File:    tele.File{FileID: audio.FileID},
		Caption: caption,
	}, entityOpts(entities))
}

func (a *Adapter) SendVoice(ctx context.Context, chatID string, voice transport.FileRef, caption string, entities any) error {
	return a.send(ctx, chatID, &tele.Voice{
		File:    tele.File{FileID: voice.FileID},
		Caption: caption,
	}, entityOpts(entities))
}

func (a *Adapter) SendVideoNote(ctx context.Context, chatID string, note transport.FileRef) error {
	return a.send(ctx, chatID, &tele.VideoNote{
		File: tele.File{FileID: note.FileID},
	}, nil)
}

func (a *Adapter) SendSticker(ctx context.Context, chatID string, sticker transport.FileRef) error {
	return a.send(ctx, chatID, &tele.Sticker{
		File: tele.File{FileID: sticker.FileID},
	}, nil)
}

func (a *Adapter) SendAnimation(ctx context.Context, chatID string, anim transport.FileRef, caption string, entities any) error {
	return a.send(ctx, chatID, &tele.Animation{
		File:    tele.File{FileID: anim.FileID},
		Caption: caption,
	}, entityOpts(entities))
}

func (a *Adapter) SendPoll(ctx context.Context, chatID string, poll transport.Poll) error {
	p := &tele.Poll{
		Question:        poll.Question,
		Anonymous:       poll.Anonymous,
		Type:            tele.PollType(poll.Type),
		MultipleAnswers: poll.MultipleAnswers,
	}
	for _, o := range poll.Options {
		p.Options = append(p.Options, tele.PollOption{Text: o})
	}
	return a.send(ctx, chatID, p, nil)
}

func (a *Adapter) SendLocation(ctx context.Context, chatID string, loc transport.Location) error {
	return a.send(ctx, chatID, &tele.Location{
		Lat: float32(loc.Latitude),
		Lng: float32(loc.Longitude),
	}, nil)
}

func (a *Adapter) SendContact(ctx context.Context, chatID string, contact transport.Contact) error {
	return a.send(ctx, chatID, &tele.Contact{
		PhoneNumber: contact.PhoneNumber,
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
	}, nil)
}

// Reply answers an admin chat directly by numeric id.
func (a *Adapter) Reply(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.bot.Send(tele.ChatID(chatID), text)
	return mapError(err)
}

var _ transport.Adapter = (*Adapter)(nil)
