package transport

import "context"

type UpdateKind string

const (
	// UpdateCommand is a direct message to the bot (commands come in here).
	UpdateCommand UpdateKind = "command"
	// UpdateChannelPost is a post made in a channel the bot is a member of.
	UpdateChannelPost UpdateKind = "channel_post"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

// Message is an immutable snapshot of one inbound message. Exactly one
// content field is populated per instance; Classify() in internal/forward
// resolves which one wins when the transport reports several.
type Message struct {
	ID     int
	ChatID int64

	FromID       int64
	FromUsername string

	Text     string
	Entities any // adapter-specific formatting entities (Telegram: telebot Entities)

	Caption         string
	CaptionEntities any

	Photo     *FileRef
	Video     *Video
	Document  *FileRef
	Audio     *FileRef
	Voice     *FileRef
	VideoNote *FileRef
	Sticker   *FileRef
	Animation *FileRef
	Poll      *Poll
	Location  *Location
	Contact   *Contact
}

// FileRef points at a platform-hosted media object. Copies re-send the
// reference; no bytes are downloaded.
type FileRef struct {
	FileID string
}

type Video struct {
	FileID   string
	Duration int
	Width    int
	Height   int
}

type Poll struct {
	Question        string
	Options         []string
	Anonymous       bool
	Type            string
	MultipleAnswers bool
}

type Location struct {
	Latitude  float64
	Longitude float64
}

type Contact struct {
	PhoneNumber string
	FirstName   string
	LastName    string
}

// Sender is the outbound half of the transport: one operation per content
// kind, each addressed by the opaque destination channel id.
//
// Every method returns nil on success, or one of the typed signal errors
// (RateLimitedError, TimeoutError, SendError) when the platform classified
// the failure, or an arbitrary error otherwise.
type Sender interface {
	SendText(ctx context.Context, chatID string, text string, entities any) error
	SendPhoto(ctx context.Context, chatID string, photo FileRef, caption string, entities any) error
	SendVideo(ctx context.Context, chatID string, video Video, caption string, entities any) error
	SendDocument(ctx context.Context, chatID string, doc FileRef, caption string, entities any) error
	SendAudio(ctx context.Context, chatID string, audio FileRef, caption string, entities any) error
	SendVoice(ctx context.Context, chatID string, voice FileRef, caption string, entities any) error
	SendVideoNote(ctx context.Context, chatID string, note FileRef) error
	SendSticker(ctx context.Context, chatID string, sticker FileRef) error
	SendAnimation(ctx context.Context, chatID string, anim FileRef, caption string, entities any) error
	SendPoll(ctx context.Context, chatID string, poll Poll) error
	SendLocation(ctx context.Context, chatID string, loc Location) error
	SendContact(ctx context.Context, chatID string, contact Contact) error
}

// Replier is the minimal surface command handlers need to answer an admin.
type Replier interface {
	Reply(ctx context.Context, chatID int64, text string) error
}

// Adapter is a full inbound+outbound transport.
type Adapter interface {
	Sender
	Replier

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
}
