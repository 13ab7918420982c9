package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"relaybot/internal/transport"
)

type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "i/o timeout" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return true }

func TestMapError(t *testing.T) {
	t.Parallel()

	t.Run("flood", func(t *testing.T) {
		t.Parallel()
		err := mapError(tele.FloodError{
			RetryAfter: 3,
		})
		var rl *transport.RateLimitedError
		if !errors.As(err, &rl) {
			t.Fatalf("got %T, want RateLimitedError", err)
		}
		if rl.RetryAfter != 3*time.Second {
			t.Fatalf("retry after = %v", rl.RetryAfter)
		}
	})

	t.Run("api error", func(t *testing.T) {
		t.Parallel()
		err := mapError(&tele.Error{Code: 400, Description: "Bad Request: chat not found"})
		var se *transport.SendError
		if !errors.As(err, &se) {
			t.Fatalf("got %T, want SendError", err)
		}
		if se.Code != 400 || se.Description != "Bad Request: chat not found" {
			t.Fatalf("send error = %+v", se)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		t.Parallel()
		var te *transport.TimeoutError
		if err := mapError(context.DeadlineExceeded); !errors.As(err, &te) {
			t.Fatalf("got %T, want TimeoutError", err)
		}
	})

	t.Run("net timeout", func(t *testing.T) {
		t.Parallel()
		var te *transport.TimeoutError
		if err := mapError(fakeTimeout{}); !errors.As(err, &te) {
			t.Fatalf("got %T, want TimeoutError", err)
		}
	})

	t.Run("passthrough", func(t *testing.T) {
		t.Parallel()
		plain := errors.New("boom")
		if err := mapError(plain); err != plain {
			t.Fatalf("got %v, want passthrough", err)
		}
	})

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		if err := mapError(nil); err != nil {
			t.Fatalf("got %v, want nil", err)
		}
	})
}

func TestRecipient(t *testing.T) {
	t.Parallel()

	to, err := recipient(" -1001234567890 ")
	if err != nil {
		t.Fatalf("recipient: %v", err)
	}
	if got := to.Recipient(); got != "-1001234567890" {
		t.Fatalf("recipient id = %q", got)
	}

	_, err = recipient("not-a-chat")
	var se *transport.SendError
	if !errors.As(err, &se) {
		t.Fatalf("got %T, want SendError", err)
	}
	// Must classify as permanent downstream.
	if want := "chat not found"; !strings.Contains(se.Description, want) {
		t.Fatalf("description %q lacks %q", se.Description, want)
	}
}

func TestFromTelebot(t *testing.T) {
	t.Parallel()

	t.Run("photo with caption entities", func(t *testing.T) {
		t.Parallel()
		in := &tele.Message{
			ID:              7,
			Chat:            &tele.Chat{ID: -1001},
			Caption:         "look",
			CaptionEntities: tele.Entities{{Type: tele.EntityBold, Offset: 0, Length: 4}},
			Photo:           &tele.Photo{File: tele.File{FileID: "photo-1"}},
		}
		got := fromTelebot(in)
		if got.ChatID != -1001 || got.ID != 7 {
			t.Fatalf("ids = %d/%d", got.ChatID, got.ID)
		}
		if got.Photo == nil || got.Photo.FileID != "photo-1" {
			t.Fatalf("photo = %+v", got.Photo)
		}
		if got.Caption != "look" || toEntities(got.CaptionEntities) == nil {
			t.Fatal("caption entities lost in conversion")
		}
	})

	t.Run("poll options flatten", func(t *testing.T) {
		t.Parallel()
		in := &tele.Message{
			Poll: &tele.Poll{
				Question:        "which",
				Options:         []tele.PollOption{{Text: "a"}, {Text: "b"}},
				Anonymous:       true,
				MultipleAnswers: true,
			},
		}
		got := fromTelebot(in)
		if got.Poll == nil || len(got.Poll.Options) != 2 || got.Poll.Options[1] != "b" {
			t.Fatalf("poll = %+v", got.Poll)
		}
		if !got.Poll.Anonymous || !got.Poll.MultipleAnswers {
			t.Fatalf("poll flags = %+v", got.Poll)
		}
	})

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		if fromTelebot(nil) != nil {
			t.Fatal("nil message must convert to nil")
		}
	})
}
