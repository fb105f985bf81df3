// Package vkchannel bridges VK update delivery — Bots Long Poll or the
// Callback API webhook — into the conversation manager.
package vkchannel

import (
	"anonwall/pkg/bus"
)

// messageEvent is the message_new payload shared by both transports.
type messageEvent struct {
	FromID      int64                `json:"from_id"`
	PeerID      int64                `json:"peer_id"`
	Text        string               `json:"text"`
	Attachments []attachmentEnvelope `json:"attachments"`
}

// attachmentEnvelope is VK's type-tagged attachment object: the type field
// names which of the sibling payloads is present.
type attachmentEnvelope struct {
	Type      string            `json:"type"`
	Photo     *photoPayload     `json:"photo"`
	Doc       *docPayload       `json:"doc"`
	Audio     *mediaPayload     `json:"audio"`
	Video     *mediaPayload     `json:"video"`
	Sticker   *stickerPayload   `json:"sticker"`
	Wall      *wallPayload      `json:"wall"`
	WallReply *wallReplyPayload `json:"wall_reply"`
}

type mediaPayload struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
}

type photoPayload struct {
	ID      int64       `json:"id"`
	OwnerID int64       `json:"owner_id"`
	Sizes   []photoSize `json:"sizes"`
}

type photoSize struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type docPayload struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"owner_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

type stickerPayload struct {
	StickerID int64 `json:"sticker_id"`
}

type wallPayload struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
	// Older payloads carry to_id instead of owner_id.
	ToID int64 `json:"to_id"`
}

type wallReplyPayload struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
	PostID  int64 `json:"post_id"`
}

// toInbound maps one message event into the transport-neutral bus shape.
func toInbound(msg messageEvent) bus.InboundMessage {
	inbound := bus.InboundMessage{
		SenderID: msg.FromID,
		PeerID:   msg.PeerID,
		Text:     msg.Text,
	}
	for _, envelope := range msg.Attachments {
		inbound.Attachments = append(inbound.Attachments, decodeAttachment(envelope))
	}

	return inbound
}

func decodeAttachment(envelope attachmentEnvelope) bus.Attachment {
	switch {
	case envelope.Type == "audio" && envelope.Audio != nil:
		return bus.Attachment{Kind: bus.KindAudio, OwnerID: envelope.Audio.OwnerID, ID: envelope.Audio.ID}
	case envelope.Type == "video" && envelope.Video != nil:
		return bus.Attachment{Kind: bus.KindVideo, OwnerID: envelope.Video.OwnerID, ID: envelope.Video.ID}
	case envelope.Type == "photo" && envelope.Photo != nil:
		return bus.Attachment{Kind: bus.KindPhoto, OwnerID: envelope.Photo.OwnerID, ID: envelope.Photo.ID, URL: pickPhotoURL(envelope.Photo.Sizes)}
	case envelope.Type == "doc" && envelope.Doc != nil:
		return bus.Attachment{Kind: bus.KindDoc, OwnerID: envelope.Doc.OwnerID, ID: envelope.Doc.ID, URL: envelope.Doc.URL, Title: envelope.Doc.Title}
	case envelope.Type == "sticker" && envelope.Sticker != nil:
		return bus.Attachment{Kind: bus.KindSticker, ID: envelope.Sticker.StickerID}
	case envelope.Type == "wall" && envelope.Wall != nil:
		ownerID := envelope.Wall.OwnerID
		if ownerID == 0 {
			ownerID = envelope.Wall.ToID
		}
		return bus.Attachment{Kind: bus.KindWall, OwnerID: ownerID, ID: envelope.Wall.ID}
	case envelope.Type == "wall_reply" && envelope.WallReply != nil:
		return bus.Attachment{Kind: bus.KindWallReply, OwnerID: envelope.WallReply.OwnerID, PostID: envelope.WallReply.PostID, ID: envelope.WallReply.ID}
	default:
		return bus.Attachment{Kind: bus.KindOther}
	}
}

// pickPhotoURL chooses the medium photo rendition, falling back to the
// last listed size when no preferred type is present.
func pickPhotoURL(sizes []photoSize) string {
	for _, preferred := range []string{"m", "x", "y"} {
		for _, size := range sizes {
			if size.Type == preferred && size.URL != "" {
				return size.URL
			}
		}
	}

	if len(sizes) > 0 {
		return sizes[len(sizes)-1].URL
	}

	return ""
}
