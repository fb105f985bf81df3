package vk

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/url"
	"strconv"
)

// User is the subset of a users.get profile the bot reads.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UsersGet resolves one profile by id. An empty slice means the sender
// could not be attributed to a real user.
func (c *Client) UsersGet(ctx context.Context, userID int64) ([]User, error) {
	params := url.Values{}
	params.Set("user_ids", strconv.FormatInt(userID, 10))

	var users []User
	if err := c.Call(ctx, "users.get", params, &users); err != nil {
		return nil, err
	}

	return users, nil
}

// CommentRequest is a fully assembled wall.createComment call.
type CommentRequest struct {
	FromGroup      int64
	OwnerID        int64
	PostID         int64
	ReplyToComment int64
	Message        string
	Attachments    string
	StickerID      int64
}

// WallCreateComment posts the comment as the community account and
// returns the created comment id.
func (c *Client) WallCreateComment(ctx context.Context, req CommentRequest) (int64, error) {
	params := url.Values{}
	params.Set("from_group", strconv.FormatInt(req.FromGroup, 10))
	params.Set("owner_id", strconv.FormatInt(req.OwnerID, 10))
	params.Set("post_id", strconv.FormatInt(req.PostID, 10))
	if req.ReplyToComment != 0 {
		params.Set("reply_to_comment", strconv.FormatInt(req.ReplyToComment, 10))
	}
	if req.Message != "" {
		params.Set("message", req.Message)
	}
	if req.Attachments != "" {
		params.Set("attachments", req.Attachments)
	}
	if req.StickerID != 0 {
		params.Set("sticker_id", strconv.FormatInt(req.StickerID, 10))
	}

	var result struct {
		CommentID int64 `json:"comment_id"`
	}
	if err := c.Call(ctx, "wall.createComment", params, &result); err != nil {
		return 0, err
	}

	return result.CommentID, nil
}

// MessagesSend delivers one text reply to a peer.
func (c *Client) MessagesSend(ctx context.Context, peerID int64, text string) error {
	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(peerID, 10))
	params.Set("message", text)
	params.Set("random_id", strconv.FormatInt(rand.Int64(), 10))

	return c.Call(ctx, "messages.send", params, nil)
}

// UploadServer is an upload target issued per media kind and community.
type UploadServer struct {
	UploadURL string `json:"upload_url"`
}

// PhotosGetWallUploadServer issues a wall photo upload target for the
// community.
func (c *Client) PhotosGetWallUploadServer(ctx context.Context, groupID int64) (UploadServer, error) {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(groupID, 10))

	var server UploadServer
	if err := c.Call(ctx, "photos.getWallUploadServer", params, &server); err != nil {
		return UploadServer{}, err
	}
	if server.UploadURL == "" {
		return UploadServer{}, errors.New("photos.getWallUploadServer: empty upload_url")
	}

	return server, nil
}

// SavedPhoto is one re-hosted wall photo.
type SavedPhoto struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	AccessKey string `json:"access_key"`
}

// PhotosSaveWallPhoto exchanges an upload response for a permanent photo.
func (c *Client) PhotosSaveWallPhoto(ctx context.Context, groupID int64, server int64, photo, hash string) ([]SavedPhoto, error) {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(groupID, 10))
	params.Set("server", strconv.FormatInt(server, 10))
	params.Set("photo", photo)
	params.Set("hash", hash)

	var photos []SavedPhoto
	if err := c.Call(ctx, "photos.saveWallPhoto", params, &photos); err != nil {
		return nil, err
	}

	return photos, nil
}

// DocsGetWallUploadServer issues a wall document upload target for the
// community.
func (c *Client) DocsGetWallUploadServer(ctx context.Context, groupID int64) (UploadServer, error) {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(groupID, 10))

	var server UploadServer
	if err := c.Call(ctx, "docs.getWallUploadServer", params, &server); err != nil {
		return UploadServer{}, err
	}
	if server.UploadURL == "" {
		return UploadServer{}, errors.New("docs.getWallUploadServer: empty upload_url")
	}

	return server, nil
}

// SavedDoc is one re-hosted document.
type SavedDoc struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
}

// DocsSave exchanges an upload response for a permanent document.
func (c *Client) DocsSave(ctx context.Context, file string) (SavedDoc, error) {
	params := url.Values{}
	params.Set("file", file)

	var result struct {
		Type string   `json:"type"`
		Doc  SavedDoc `json:"doc"`
	}
	if err := c.Call(ctx, "docs.save", params, &result); err != nil {
		return SavedDoc{}, err
	}
	if result.Doc.ID == 0 {
		return SavedDoc{}, errors.New("docs.save: response contains no document")
	}

	return result.Doc, nil
}

// LongPollServer is a Bots Long Poll session issued by the API.
type LongPollServer struct {
	Key    string `json:"key"`
	Server string `json:"server"`
	TS     string `json:"ts"`
}

// GroupsGetLongPollServer opens a Bots Long Poll session for the community.
func (c *Client) GroupsGetLongPollServer(ctx context.Context, groupID int64) (LongPollServer, error) {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(groupID, 10))

	var server LongPollServer
	if err := c.Call(ctx, "groups.getLongPollServer", params, &server); err != nil {
		return LongPollServer{}, err
	}
	if server.Server == "" || server.Key == "" {
		return LongPollServer{}, errors.New("groups.getLongPollServer: incomplete session")
	}

	return server, nil
}

// GroupsGetByID is a cheap authenticated probe used for readiness checks.
func (c *Client) GroupsGetByID(ctx context.Context, groupID int64) error {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(groupID, 10))

	return c.Call(ctx, "groups.getById", params, nil)
}
