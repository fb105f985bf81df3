// Package upload converts inbound attachment descriptors into platform
// attachment tokens, re-hosting photo and document media under the
// community through VK's two-stage upload flows.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"anonwall/pkg/bus"
	"anonwall/pkg/vk"
)

// maxAttachments bounds how many attachments one comment may carry.
const maxAttachments = 2

const defaultFetchTimeout = 60 * time.Second

// Result is the transcoded attachment set for one message turn.
type Result struct {
	// Tokens in original attachment order, at most maxAttachments.
	Tokens []string
	// StickerID is the side-channel sticker field; stickers contribute no
	// token, and when several arrive the last one wins.
	StickerID int64
}

// Transcoder re-hosts media attachments. Photos go through the user-token
// client (wall photo uploads require a user context); documents and
// everything else go through the community-token client.
type Transcoder struct {
	group      *vk.Client
	user       *vk.Client
	groupID    int64
	httpClient *http.Client
	log        *slog.Logger
}

// NewTranscoder builds a transcoder for one community.
func NewTranscoder(group, user *vk.Client, groupID int64, log *slog.Logger) *Transcoder {
	if log == nil {
		log = slog.Default()
	}

	return &Transcoder{
		group:      group,
		user:       user,
		groupID:    groupID,
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		log:        log.With("component", "upload.transcoder"),
	}
}

// Transcode processes the first maxAttachments attachments in original
// order. Unknown kinds are skipped; any network or parse failure aborts
// the whole set, leaving containment to the caller.
func (t *Transcoder) Transcode(ctx context.Context, attachments []bus.Attachment) (Result, error) {
	if len(attachments) > maxAttachments {
		attachments = attachments[:maxAttachments]
	}

	var result Result
	for _, attachment := range attachments {
		switch attachment.Kind {
		case bus.KindAudio:
			result.Tokens = append(result.Tokens, fmt.Sprintf("audio%d_%d", attachment.OwnerID, attachment.ID))
		case bus.KindVideo:
			result.Tokens = append(result.Tokens, fmt.Sprintf("video%d_%d", attachment.OwnerID, attachment.ID))
		case bus.KindPhoto:
			token, err := t.transcodePhoto(ctx, attachment)
			if err != nil {
				return Result{}, fmt.Errorf("transcode photo: %w", err)
			}
			result.Tokens = append(result.Tokens, token)
		case bus.KindDoc:
			token, err := t.transcodeDoc(ctx, attachment)
			if err != nil {
				return Result{}, fmt.Errorf("transcode doc: %w", err)
			}
			result.Tokens = append(result.Tokens, token)
		case bus.KindSticker:
			result.StickerID = attachment.ID
		default:
			t.log.Debug("Skipping unsupported attachment kind", "kind", string(attachment.Kind))
		}
	}

	return result, nil
}

// photoUploadResponse is what the photo upload target returns.
type photoUploadResponse struct {
	Server int64  `json:"server"`
	Photo  string `json:"photo"`
	Hash   string `json:"hash"`
}

func (t *Transcoder) transcodePhoto(ctx context.Context, attachment bus.Attachment) (string, error) {
	server, err := t.user.PhotosGetWallUploadServer(ctx, t.groupID)
	if err != nil {
		return "", err
	}

	var uploaded photoUploadResponse
	if err := t.stageAndUpload(ctx, stageRequest{
		sourceURL: attachment.URL,
		field:     "photo",
		filename:  "photo.jpg",
		uploadURL: server.UploadURL,
	}, &uploaded); err != nil {
		return "", err
	}
	if uploaded.Photo == "" || uploaded.Photo == "[]" || uploaded.Hash == "" {
		return "", errors.New("upload target returned no photo payload")
	}

	saved, err := t.user.PhotosSaveWallPhoto(ctx, t.groupID, uploaded.Server, uploaded.Photo, uploaded.Hash)
	if err != nil {
		return "", err
	}
	if len(saved) == 0 {
		return "", errors.New("photos.saveWallPhoto returned no photos")
	}

	return fmt.Sprintf("photo%d_%d_%s", saved[0].OwnerID, saved[0].ID, saved[0].AccessKey), nil
}

// docUploadResponse is what the document upload target returns.
type docUploadResponse struct {
	File string `json:"file"`
}

func (t *Transcoder) transcodeDoc(ctx context.Context, attachment bus.Attachment) (string, error) {
	server, err := t.group.DocsGetWallUploadServer(ctx, t.groupID)
	if err != nil {
		return "", err
	}

	var uploaded docUploadResponse
	if err := t.stageAndUpload(ctx, stageRequest{
		sourceURL:      attachment.URL,
		field:          "file",
		filename:       attachment.Title,
		uploadURL:      server.UploadURL,
		followRedirect: true,
	}, &uploaded); err != nil {
		return "", err
	}
	if uploaded.File == "" {
		return "", errors.New("upload target returned no file payload")
	}

	doc, err := t.group.DocsSave(ctx, uploaded.File)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("doc%d_%d", doc.OwnerID, doc.ID), nil
}
