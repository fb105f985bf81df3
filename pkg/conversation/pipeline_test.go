package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"anonwall/pkg/bus"
	"anonwall/pkg/destination"
	"anonwall/pkg/responses"
	"anonwall/pkg/upload"
	"anonwall/pkg/vk"
)

type fakeAPI struct {
	mu         sync.Mutex
	users      []vk.User
	usersErr   error
	sendErr    error
	commentErr error
	commentID  int64
	sent       []string
	comments   []vk.CommentRequest

	sends chan string
}

func newFakeAPI(users ...vk.User) *fakeAPI {
	return &fakeAPI{users: users, commentID: 77, sends: make(chan string, 16)}
}

func (f *fakeAPI) UsersGet(ctx context.Context, userID int64) ([]vk.User, error) {
	return f.users, f.usersErr
}

func (f *fakeAPI) WallCreateComment(ctx context.Context, req vk.CommentRequest) (int64, error) {
	f.mu.Lock()
	f.comments = append(f.comments, req)
	f.mu.Unlock()

	return f.commentID, f.commentErr
}

func (f *fakeAPI) MessagesSend(ctx context.Context, peerID int64, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	f.sends <- text

	return nil
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.sent...)
}

func (f *fakeAPI) commentRequests() []vk.CommentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vk.CommentRequest{}, f.comments...)
}

type fakeTranscoder struct {
	mu     sync.Mutex
	calls  int
	got    []bus.Attachment
	result upload.Result
	err    error
}

func (f *fakeTranscoder) Transcode(ctx context.Context, attachments []bus.Attachment) (upload.Result, error) {
	f.mu.Lock()
	f.calls++
	f.got = append([]bus.Attachment{}, attachments...)
	f.mu.Unlock()

	return f.result, f.err
}

func (f *fakeTranscoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeResolver struct {
	dest destination.Destination
	err  error
}

func (f *fakeResolver) Resolve(turn bus.InboundMessage) (destination.Destination, error) {
	return f.dest, f.err
}

func testTemplates() *responses.Templates {
	return &responses.Templates{
		TriggerWord:        "post anonymously",
		GetDestination:     "where?",
		PostNotFound:       "not found",
		InvalidDestination: "not allowed",
		GetMessage:         "what?",
		MessageSent:        "sent",
		ScriptError:        "oops",
	}
}

func newTestPipeline(api API, transcoder Transcoder, resolver Resolver, filterLinks bool) *Pipeline {
	return NewPipeline(api, transcoder, resolver, testTemplates(), 100, filterLinks, true, slog.New(slog.DiscardHandler))
}

func waitSend(t *testing.T, api *fakeAPI, want string) {
	t.Helper()

	select {
	case got := <-api.sends:
		if got != want {
			t.Fatalf("sent %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestPipelineHappyPath(t *testing.T) {
	api := newFakeAPI(vk.User{ID: 42, FirstName: "Ada", LastName: "Lovelace"})
	transcoder := &fakeTranscoder{result: upload.Result{Tokens: []string{"photo1_2_k", "doc3_4"}}}
	resolver := &fakeResolver{dest: destination.Destination{OwnerID: -123, PostID: 456, ReplyToComment: 7}}
	p := newTestPipeline(api, transcoder, resolver, true)
	s := newSession(42, 42)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), s)
		close(done)
	}()

	waitSend(t, api, "where?")
	s.deliver(bus.InboundMessage{SenderID: 42, Text: "wall-123_456?reply=7"})
	waitSend(t, api, "what?")
	s.deliver(bus.InboundMessage{
		SenderID:    42,
		Text:        "check https://example.com/page now",
		Attachments: []bus.Attachment{{Kind: bus.KindPhoto, URL: "https://host/p.jpg"}},
	})
	waitSend(t, api, "sent")
	<-done

	comments := api.commentRequests()
	if len(comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(comments))
	}
	req := comments[0]
	if req.FromGroup != 100 || req.OwnerID != -123 || req.PostID != 456 || req.ReplyToComment != 7 {
		t.Fatalf("comment request = %+v", req)
	}
	if req.Message != "check ****s://example****/page now" {
		t.Fatalf("message = %q, want links redacted", req.Message)
	}
	if req.Attachments != "photo1_2_k,doc3_4" {
		t.Fatalf("attachments = %q", req.Attachments)
	}
	if s.State() != StateDone {
		t.Fatalf("state = %s, want done", s.State())
	}
}

func TestPipelineFilterLinksDisabled(t *testing.T) {
	api := newFakeAPI(vk.User{ID: 42})
	resolver := &fakeResolver{dest: destination.Destination{OwnerID: -1, PostID: 2}}
	p := newTestPipeline(api, &fakeTranscoder{}, resolver, false)
	s := newSession(42, 42)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), s)
		close(done)
	}()

	waitSend(t, api, "where?")
	s.deliver(bus.InboundMessage{SenderID: 42, Text: "wall-1_2"})
	waitSend(t, api, "what?")
	s.deliver(bus.InboundMessage{SenderID: 42, Text: "see example.com today"})
	waitSend(t, api, "sent")
	<-done

	comments := api.commentRequests()
	if len(comments) != 1 || comments[0].Message != "see example.com today" {
		t.Fatalf("comments = %+v, want the text untouched", comments)
	}
}

func TestPipelineForbiddenDestination(t *testing.T) {
	api := newFakeAPI(vk.User{ID: 42})
	transcoder := &fakeTranscoder{}
	resolver := &fakeResolver{
		dest: destination.Destination{OwnerID: -999, PostID: 1},
		err:  destination.ErrForbidden,
	}
	p := newTestPipeline(api, transcoder, resolver, true)
	s := newSession(42, 42)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), s)
		close(done)
	}()

	waitSend(t, api, "where?")
	s.deliver(bus.InboundMessage{SenderID: 42, Text: "wall-999_1"})
	waitSend(t, api, "not allowed")
	<-done

	if transcoder.callCount() != 0 {
		t.Fatal("transcoder called for a rejected destination")
	}
	if len(api.commentRequests()) != 0 {
		t.Fatal("comment dispatched for a rejected destination")
	}
}

func TestPipelineDestinationNotFound(t *testing.T) {
	api := newFakeAPI(vk.User{ID: 42})
	resolver := &fakeResolver{err: destination.ErrNotFound}
	p := newTestPipeline(api, &fakeTranscoder{}, resolver, true)
	s := newSession(42, 42)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), s)
		close(done)
	}()

	waitSend(t, api, "where?")
	s.deliver(bus.InboundMessage{SenderID: 42, Text: "no link here"})
	waitSend(t, api, "not found")
	<-done

	if len(api.commentRequests()) != 0 {
		t.Fatal("comment dispatched without a destination")
	}
}

func TestPipelineUnattributableSenderIsSilent(t *testing.T) {
	api := newFakeAPI()
	p := newTestPipeline(api, &fakeTranscoder{}, &fakeResolver{}, true)
	s := newSession(42, 42)

	p.Run(context.Background(), s)

	if sent := api.sentTexts(); len(sent) != 0 {
		t.Fatalf("sent = %v, want silence", sent)
	}
}

func TestPipelineProfileLookupFailureRepliesGenericError(t *testing.T) {
	api := newFakeAPI()
	api.usersErr = errors.New("network down")
	p := newTestPipeline(api, &fakeTranscoder{}, &fakeResolver{}, true)
	s := newSession(42, 42)

	p.Run(context.Background(), s)

	sent := api.sentTexts()
	if len(sent) != 1 || sent[0] != "oops" {
		t.Fatalf("sent = %v, want only the generic error", sent)
	}
}

func TestPipelineDispatchFailureRepliesGenericError(t *testing.T) {
	api := newFakeAPI(vk.User{ID: 42})
	api.commentErr = errors.New("wall is closed")
	resolver := &fakeResolver{dest: destination.Destination{OwnerID: -1, PostID: 2}}
	p := newTestPipeline(api, &fakeTranscoder{}, resolver, true)
	s := newSession(42, 42)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), s)
		close(done)
	}()

	waitSend(t, api, "where?")
	s.deliver(bus.InboundMessage{SenderID: 42, Text: "wall-1_2"})
	waitSend(t, api, "what?")
	s.deliver(bus.InboundMessage{SenderID: 42, Text: "hello"})
	waitSend(t, api, "oops")
	<-done
}

func TestPipelineAbandonedQuestionEndsSilently(t *testing.T) {
	api := newFakeAPI(vk.User{ID: 42})
	p := newTestPipeline(api, &fakeTranscoder{}, &fakeResolver{}, true)
	p.questionTimeout = 20 * time.Millisecond
	s := newSession(42, 42)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), s)
		close(done)
	}()

	waitSend(t, api, "where?")
	<-done

	if sent := api.sentTexts(); len(sent) != 1 {
		t.Fatalf("sent = %v, want the question only", sent)
	}
	if s.State() != StateAwaitingDestination {
		t.Fatalf("state = %s, want awaiting_destination", s.State())
	}
}

func TestPipelineCancellationEndsSilently(t *testing.T) {
	api := newFakeAPI(vk.User{ID: 42})
	p := newTestPipeline(api, &fakeTranscoder{}, &fakeResolver{}, true)
	s := newSession(42, 42)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, s)
		close(done)
	}()

	waitSend(t, api, "where?")
	cancel()
	<-done

	if sent := api.sentTexts(); len(sent) != 1 {
		t.Fatalf("sent = %v, want no reply after cancellation", sent)
	}
}
