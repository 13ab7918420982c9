package telegram

import (
	tele "gopkg.in/telebot.v4"

	"relaybot/internal/transport"
)

// fromTelebot snapshots a telebot message into the transport shape. Media
// travels as file-id references only; entities pass through opaque so the
// outbound path can reattach them without the core knowing the wire format.
func fromTelebot(m *tele.Message) *transport.Message {
	if m == nil {
		return nil
	}

	out := &transport.Message{
		ID:      m.ID,
		Text:    m.Text,
		Caption: m.Caption,
	}
	if m.Chat != nil {
		out.ChatID = m.Chat.ID
	}
	if m.Sender != nil {
		out.FromID = m.Sender.ID
		out.FromUsername = m.Sender.Username
	}
	if len(m.Entities) > 0 {
		out.Entities = m.Entities
	}
	if len(m.CaptionEntities) > 0 {
		out.CaptionEntities = m.CaptionEntities
	}

	if m.Photo != nil {
		out.Photo = &transport.FileRef{FileID: m.Photo.FileID}
	}
	if m.Video != nil {
		out.Video = &transport.Video{
			FileID:   m.Video.FileID,
			Duration: m.Video.Duration,
			Width:    m.Video.Width,
			Height:   m.Video.Height,
		}
	}
	if m.Document != nil {
		out.Document = &transport.FileRef{FileID: m.Document.FileID}
	}
	if m.Audio != nil {
		out.Audio = &transport.FileRef{FileID: m.Audio.FileID}
	}
	if m.Voice != nil {
		out.Voice = &transport.FileRef{FileID: m.Voice.FileID}
	}
	if m.VideoNote != nil {
		out.VideoNote = &transport.FileRef{FileID: m.VideoNote.FileID}
	}
	if m.Sticker != nil {
		out.Sticker = &transport.FileRef{FileID: m.Sticker.FileID}
	}
	if m.Animation != nil {
		out.Animation = &transport.FileRef{FileID: m.Animation.FileID}
	}
	if m.Poll != nil {
		p := &transport.Poll{
			Question:        m.Poll.Question,
			Anonymous:       m.Poll.Anonymous,
			Type:            string(m.Poll.Type),
			MultipleAnswers: m.Poll.MultipleAnswers,
		}
		for _, o := range m.Poll.Options {
			p.Options = append(p.Options, o.Text)
		}
		out.Poll = p
	}
	if m.Location != nil {
		out.Location = &transport.Location{
			Latitude:  float64(m.Location.Lat),
			Longitude: float64(m.Location.Lng),
		}
	}
	if m.Contact != nil {
		out.Contact = &transport.Contact{
			PhoneNumber: m.Contact.PhoneNumber,
			FirstName:   m.Contact.FirstName,
			LastName:    m.Contact.LastName,
		}
	}

	return out
}

func toEntities(v any) tele.Entities {
	if e, ok := v.(tele.Entities); ok {
		return e
	}
	return nil
}
