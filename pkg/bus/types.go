// Package bus defines the transport-neutral message types exchanged
// between channel adapters and the conversation manager.
package bus

// AttachmentKind tags one inbound attachment variant.
type AttachmentKind string

const (
	KindAudio     AttachmentKind = "audio"
	KindVideo     AttachmentKind = "video"
	KindPhoto     AttachmentKind = "photo"
	KindDoc       AttachmentKind = "doc"
	KindSticker   AttachmentKind = "sticker"
	KindWall      AttachmentKind = "wall"
	KindWallReply AttachmentKind = "wall_reply"
	KindOther     AttachmentKind = "other"
)

// Attachment is a tagged variant over the attachment kinds the bot
// understands. Only the fields a kind needs are populated; consumers
// dispatch on Kind and never probe the remaining fields.
type Attachment struct {
	Kind AttachmentKind `json:"kind"`

	// audio, video, wall, wall_reply
	OwnerID int64 `json:"owner_id,omitempty"`
	// audio, video, wall (post id), sticker, wall_reply (comment id)
	ID int64 `json:"id,omitempty"`
	// wall_reply only: the post the reply belongs to
	PostID int64 `json:"post_id,omitempty"`

	// photo, doc: fetchable source URL
	URL string `json:"url,omitempty"`
	// doc: original document title, used as the staged upload filename
	Title string `json:"title,omitempty"`
}

// InboundMessage is one user message delivered by a transport adapter.
// There is no outbound counterpart: replies go out of band through the
// VK messages API.
type InboundMessage struct {
	SenderID    int64        `json:"sender_id"`
	PeerID      int64        `json:"peer_id"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}
