// Package conversation drives the multi-turn submission flow: resolve a
// destination, collect the message, transcode attachments, redact links,
// and dispatch the comment as the community account.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"anonwall/pkg/bus"
	"anonwall/pkg/destination"
	"anonwall/pkg/filter"
	"anonwall/pkg/responses"
	"anonwall/pkg/upload"
	"anonwall/pkg/vk"
)

// DefaultQuestionTimeout bounds how long a question turn waits for the
// user's answer before the conversation is abandoned.
const DefaultQuestionTimeout = 10 * time.Minute

// API is the subset of the VK client the pipeline consumes.
type API interface {
	UsersGet(ctx context.Context, userID int64) ([]vk.User, error)
	WallCreateComment(ctx context.Context, req vk.CommentRequest) (int64, error)
	MessagesSend(ctx context.Context, peerID int64, text string) error
}

// Transcoder converts a turn's attachments into platform tokens.
type Transcoder interface {
	Transcode(ctx context.Context, attachments []bus.Attachment) (upload.Result, error)
}

// Resolver parses a destination answer.
type Resolver interface {
	Resolve(turn bus.InboundMessage) (destination.Destination, error)
}

// Pipeline runs one conversation from trigger to completion. All failures
// past the profile lookup are contained here: logged once and mapped to
// the generic error reply, with no detail exposed to the user.
type Pipeline struct {
	api             API
	transcoder      Transcoder
	resolver        Resolver
	templates       *responses.Templates
	groupID         int64
	filterLinks     bool
	logRequests     bool
	questionTimeout time.Duration
	log             *slog.Logger
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(api API, transcoder Transcoder, resolver Resolver, templates *responses.Templates, groupID int64, filterLinks, logRequests bool, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		api:             api,
		transcoder:      transcoder,
		resolver:        resolver,
		templates:       templates,
		groupID:         groupID,
		filterLinks:     filterLinks,
		logRequests:     logRequests,
		questionTimeout: DefaultQuestionTimeout,
		log:             log.With("component", "conversation.pipeline"),
	}
}

// Run executes one conversation to completion or to a defined early exit.
// Abandonment and cancellation end the conversation silently; every other
// failure is answered with the generic error template.
func (p *Pipeline) Run(ctx context.Context, s *session) {
	log := p.log.With("conversation_id", uuid.NewString()[:8], "sender_id", s.senderID)

	err := p.run(ctx, s, log)
	switch {
	case err == nil:
	case errors.Is(err, ErrAbandoned):
		log.Info("Conversation abandoned", "state", s.State().String())
	case errors.Is(err, context.Canceled):
	default:
		log.Error("Conversation failed", "state", s.State().String(), "error", err)
		p.reply(s.peerID, p.templates.ScriptError, log)
	}
}

func (p *Pipeline) run(ctx context.Context, s *session, log *slog.Logger) error {
	users, err := p.api.UsersGet(ctx, s.senderID)
	if err != nil {
		return fmt.Errorf("resolve sender profile: %w", err)
	}
	if len(users) == 0 {
		// Un-attributable sender; abort without any outbound message.
		log.Info("Rejected request from unattributable sender")
		return nil
	}
	if p.logRequests {
		log.Info("Incoming request", "user", users[0].FirstName+" "+users[0].LastName)
	}

	s.setState(StateAwaitingDestination)
	destTurn, err := p.ask(ctx, s, p.templates.GetDestination)
	if err != nil {
		return err
	}

	dest, err := p.resolver.Resolve(destTurn)
	if errors.Is(err, destination.ErrForbidden) {
		if p.logRequests {
			log.Info("Invalid destination", "owner_id", dest.OwnerID)
		}
		return p.reply(s.peerID, p.templates.InvalidDestination, log)
	}
	if err != nil {
		// Includes malformed numeric ids: a link that does not parse is a
		// destination the user failed to provide, not a script failure.
		if p.logRequests {
			log.Info("Destination unknown")
		}
		return p.reply(s.peerID, p.templates.PostNotFound, log)
	}

	s.setState(StateAwaitingMessage)
	msgTurn, err := p.ask(ctx, s, p.templates.GetMessage)
	if err != nil {
		return err
	}

	s.setState(StateDispatching)
	transcoded, err := p.transcoder.Transcode(ctx, msgTurn.Attachments)
	if err != nil {
		return fmt.Errorf("transcode attachments: %w", err)
	}

	text := msgTurn.Text
	if p.filterLinks {
		text = filter.RedactLinks(text)
	}

	commentID, err := p.api.WallCreateComment(ctx, vk.CommentRequest{
		FromGroup:      p.groupID,
		OwnerID:        dest.OwnerID,
		PostID:         dest.PostID,
		ReplyToComment: dest.ReplyToComment,
		Message:        text,
		Attachments:    strings.Join(transcoded.Tokens, ","),
		StickerID:      transcoded.StickerID,
	})
	if err != nil {
		return fmt.Errorf("create wall comment: %w", err)
	}

	s.setState(StateDone)
	if p.logRequests {
		log.Info("Comment posted", "address", dest.Address(commentID))
	}

	return p.reply(s.peerID, p.templates.MessageSent, log)
}

// ask sends a question and suspends until the sender's next turn.
func (p *Pipeline) ask(ctx context.Context, s *session, prompt string) (bus.InboundMessage, error) {
	if err := p.api.MessagesSend(ctx, s.peerID, prompt); err != nil {
		return bus.InboundMessage{}, fmt.Errorf("send question: %w", err)
	}

	return s.await(ctx, p.questionTimeout)
}

func (p *Pipeline) reply(peerID int64, text string, log *slog.Logger) error {
	// Replies get their own short deadline so a terminated conversation
	// cannot hang on the messages API.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.api.MessagesSend(ctx, peerID, text); err != nil {
		log.Error("Failed to send reply", "error", err)
		return nil
	}

	return nil
}
