package forward

import "relaybot/internal/transport"

// ContentKind is the discriminated type of a message's payload.
type ContentKind int

const (
	KindUnsupported ContentKind = iota
	KindText
	KindPhoto
	KindVideo
	KindDocument
	KindAudio
	KindVoice
	KindVideoNote
	KindSticker
	KindAnimation
	KindPoll
	KindLocation
	KindContact
)

func (k ContentKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindDocument:
		return "document"
	case KindAudio:
		return "audio"
	case KindVoice:
		return "voice"
	case KindVideoNote:
		return "video_note"
	case KindSticker:
		return "sticker"
	case KindAnimation:
		return "animation"
	case KindPoll:
		return "poll"
	case KindLocation:
		return "location"
	case KindContact:
		return "contact"
	default:
		return "unsupported"
	}
}

// Classify maps a message to its content kind. Pure and deterministic:
// first match wins in a fixed priority order, so a message that somehow
// carries several populated fields still classifies one way. A message
// with no recognized field is KindUnsupported and must be skipped.
func Classify(m *transport.Message) ContentKind {
	switch {
	case m == nil:
		return KindUnsupported
	case m.Text != "":
		return KindText
	case m.Photo != nil:
		return KindPhoto
	case m.Video != nil:
		return KindVideo
	case m.Document != nil:
		return KindDocument
	case m.Audio != nil:
		return KindAudio
	case m.Voice != nil:
		return KindVoice
	case m.VideoNote != nil:
		return KindVideoNote
	case m.Sticker != nil:
		return KindSticker
	case m.Animation != nil:
		return KindAnimation
	case m.Poll != nil:
		return KindPoll
	case m.Location != nil:
		return KindLocation
	case m.Contact != nil:
		return KindContact
	default:
		return KindUnsupported
	}
}
