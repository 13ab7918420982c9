package forward

import (
	"testing"

	"relaybot/internal/transport"
)

func TestClassifyKinds(t *testing.T) {
	t.Parallel()
	ref := transport.FileRef{FileID: "f1"}
	tests := []struct {
		name string
		msg  *transport.Message
		want ContentKind
	}{
		{name: "text", msg: &transport.Message{Text: "hello"}, want: KindText},
		{name: "photo", msg: &transport.Message{Photo: &ref}, want: KindPhoto},
		{name: "video", msg: &transport.Message{Video: &transport.Video{FileID: "v"}}, want: KindVideo},
		{name: "document", msg: &transport.Message{Document: &ref}, want: KindDocument},
		{name: "audio", msg: &transport.Message{Audio: &ref}, want: KindAudio},
		{name: "voice", msg: &transport.Message{Voice: &ref}, want: KindVoice},
		{name: "video note", msg: &transport.Message{VideoNote: &ref}, want: KindVideoNote},
		{name: "sticker", msg: &transport.Message{Sticker: &ref}, want: KindSticker},
		{name: "animation", msg: &transport.Message{Animation: &ref}, want: KindAnimation},
		{name: "poll", msg: &transport.Message{Poll: &transport.Poll{Question: "q"}}, want: KindPoll},
		{name: "location", msg: &transport.Message{Location: &transport.Location{Latitude: 1}}, want: KindLocation},
		{name: "contact", msg: &transport.Message{Contact: &transport.Contact{PhoneNumber: "1"}}, want: KindContact},
		{name: "empty", msg: &transport.Message{}, want: KindUnsupported},
		{name: "nil", msg: nil, want: KindUnsupported},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.msg); got != tt.want {
				t.Fatalf("Classify() = %v, want %v", got, tt.want)
			}
			// Deterministic: same input, same answer.
			if got := Classify(tt.msg); got != tt.want {
				t.Fatalf("Classify() second call = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyPrecedence(t *testing.T) {
	t.Parallel()
	ref := transport.FileRef{FileID: "f1"}

	// Text outranks everything.
	m := &transport.Message{Text: "caption-ish", Photo: &ref, Sticker: &ref}
	if got := Classify(m); got != KindText {
		t.Fatalf("Classify() = %v, want %v", got, KindText)
	}

	// Photo outranks video.
	m = &transport.Message{Photo: &ref, Video: &transport.Video{FileID: "v"}}
	if got := Classify(m); got != KindPhoto {
		t.Fatalf("Classify() = %v, want %v", got, KindPhoto)
	}
}
