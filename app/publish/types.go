package publish

import (
	"context"

	"github.com/lysyi3m/feed2social/app/feed"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusError      Status = "error"
)

type State string

const (
	StateCreated      State = "created"
	StateProcessing   State = "processing"
	StatePublished    State = "published"
	StateReplied      State = "replied"
	StateReplySkipped State = "reply_skipped"
	StateFailed       State = "failed"
)

// Draft is the content handed to a destination for one post or reply.
type Draft struct {
	Text     string
	Segments []feed.Segment
	Links    []feed.LinkSpan
	ImageURL string
	Image    *feed.Image
	// MediaRef is the opaque handle returned by MediaUploader.UploadMedia.
	MediaRef string
	ReplyTo  *Post
}

// Container is a destination-issued handle for content that is not live yet.
type Container struct {
	ID              string
	Draft           Draft
	NeedsProcessing bool
}

// Post identifies a live post. Ref carries any extra reference a destination needs to reply to it.
type Post struct {
	ID  string
	Ref string
}

type Adapter interface {
	Name() string
	Create(ctx context.Context, draft Draft) (Container, error)
	Publish(ctx context.Context, container Container) (Post, error)
}

// StatusPoller is implemented by destinations that process containers asynchronously.
type StatusPoller interface {
	PollStatus(ctx context.Context, containerID string) (Status, error)
}

// MediaUploader is implemented by destinations that need image bytes uploaded before posting.
type MediaUploader interface {
	UploadMedia(ctx context.Context, image feed.Image) (string, error)
}

// SinglePost gives single-request destinations the Create half of Adapter.
// Create only stages the draft and Publish sends it.
type SinglePost struct{}

func (SinglePost) Create(_ context.Context, draft Draft) (Container, error) {
	return Container{Draft: draft}, nil
}

// Attempt is the in-memory record of one item's publish.
type Attempt struct {
	ItemID     string
	State      State
	CreationID string
	PostID     string
	Status     Status
	Polls      int
	ReplyErr   error
}

func (a *Attempt) Published() bool {
	switch a.State {
	case StatePublished, StateReplied, StateReplySkipped:
		return true
	}
	return false
}

// Request is one sanitized item to publish.
type Request struct {
	ItemID string
	Link   string
	Post   feed.SanitizedPost
}

// CommitFunc records the item as delivered. It runs after the primary post is live and before the reply.
type CommitFunc func(ctx context.Context) error
