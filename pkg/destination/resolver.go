// Package destination resolves a user's answer into a wall-post reference
// and enforces the community whitelist.
package destination

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"anonwall/pkg/bus"
)

// Control outcomes, distinguished from failures by the orchestrator.
var (
	// ErrNotFound means the turn contained neither a wall link nor a
	// forwarded wall attachment.
	ErrNotFound = errors.New("destination not found")
	// ErrForbidden means the destination owner is not whitelisted.
	ErrForbidden = errors.New("destination not allowed")
)

// wallPattern extracts owner, post, and optional reply ids from a pasted
// link. The id groups deliberately admit empty strings so that malformed
// links surface as integer parse failures instead of silently not matching.
var wallPattern = regexp.MustCompile(`wall(-?[0-9]*)_([0-9]*)(?:\?reply=([0-9]*))?`)

// Destination is one resolved comment target. A negative OwnerID denotes
// a community wall.
type Destination struct {
	OwnerID        int64
	PostID         int64
	ReplyToComment int64
}

// Address renders the canonical wall address for log records.
func (d Destination) Address(commentID int64) string {
	return fmt.Sprintf("wall%d_%d?reply=%d", d.OwnerID, d.PostID, commentID)
}

// Resolver parses destination answers against an immutable whitelist.
type Resolver struct {
	whitelist     map[int64]struct{}
	filterSources bool
}

// NewResolver builds a resolver. The whitelist is copied once and never
// mutated afterwards.
func NewResolver(whitelist []int64, filterSources bool) *Resolver {
	allowed := make(map[int64]struct{}, len(whitelist))
	for _, ownerID := range whitelist {
		allowed[ownerID] = struct{}{}
	}

	return &Resolver{whitelist: allowed, filterSources: filterSources}
}

// Resolve parses one user turn into a Destination. A pasted wall link wins
// over a forwarded attachment; if neither is present the result is
// ErrNotFound. Integer parse failures propagate as wrapped strconv errors.
// When source filtering is on, a resolved owner outside the whitelist
// yields ErrForbidden together with the destination it rejected.
func (r *Resolver) Resolve(turn bus.InboundMessage) (Destination, error) {
	dest, err := r.parse(turn)
	if err != nil {
		return Destination{}, err
	}

	if r.filterSources {
		if _, ok := r.whitelist[dest.OwnerID]; !ok {
			return dest, ErrForbidden
		}
	}

	return dest, nil
}

func (r *Resolver) parse(turn bus.InboundMessage) (Destination, error) {
	if match := wallPattern.FindStringSubmatch(turn.Text); match != nil {
		return parseLink(match)
	}

	if len(turn.Attachments) > 0 {
		first := turn.Attachments[0]
		switch first.Kind {
		case bus.KindWall:
			return Destination{OwnerID: first.OwnerID, PostID: first.ID}, nil
		case bus.KindWallReply:
			return Destination{
				OwnerID:        first.OwnerID,
				PostID:         first.PostID,
				ReplyToComment: first.ID,
			}, nil
		}
	}

	return Destination{}, ErrNotFound
}

func parseLink(match []string) (Destination, error) {
	ownerID, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return Destination{}, fmt.Errorf("parse owner id %q: %w", match[1], err)
	}

	postID, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return Destination{}, fmt.Errorf("parse post id %q: %w", match[2], err)
	}

	dest := Destination{OwnerID: ownerID, PostID: postID}
	if match[3] != "" {
		replyID, err := strconv.ParseInt(match[3], 10, 64)
		if err != nil {
			return Destination{}, fmt.Errorf("parse reply id %q: %w", match[3], err)
		}
		dest.ReplyToComment = replyID
	}

	return dest, nil
}
