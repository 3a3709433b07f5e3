package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/feed2social/app/feed"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollAttempts = 10
	DefaultReplyPrefix  = "Sync from: "
)

type ImageDownloader interface {
	Download(ctx context.Context, url string) (*feed.Image, error)
}

type Options struct {
	PollInterval     time.Duration
	PollAttempts     int
	AfterMediaDelay  time.Duration
	BeforeReplyDelay time.Duration
	Reply            bool
	ReplyPrefix      string
	// Sleep replaces the wall-clock wait between steps. Tests use it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Protocol drives one destination through create, processing poll, publish and reply.
type Protocol struct {
	adapter    Adapter
	downloader ImageDownloader
	opts       Options
}

func NewProtocol(adapter Adapter, downloader ImageDownloader, opts Options) *Protocol {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = DefaultPollAttempts
	}
	if opts.ReplyPrefix == "" {
		opts.ReplyPrefix = DefaultReplyPrefix
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}

	return &Protocol{
		adapter:    adapter,
		downloader: downloader,
		opts:       opts,
	}
}

func (p *Protocol) Destination() string {
	return p.adapter.Name()
}

// Run publishes one item. The returned attempt is never nil.
// commit is called once the primary post is live; a commit error is returned wrapped in ErrCommitFailed.
// A rate limit during the reply is returned as well, with the attempt already published.
func (p *Protocol) Run(ctx context.Context, req Request, commit CommitFunc) (*Attempt, error) {
	attempt := &Attempt{ItemID: req.ItemID}
	logger := slog.With("destination", p.adapter.Name(), "item_id", req.ItemID)

	draft := Draft{
		Text:     req.Post.Text,
		Segments: req.Post.Segments,
		Links:    req.Post.Links,
		ImageURL: req.Post.ImageURL,
	}

	if err := p.attachMedia(ctx, &draft, logger); err != nil {
		attempt.State = StateFailed
		return attempt, err
	}

	if draft.Text == "" && draft.ImageURL == "" {
		attempt.State = StateFailed
		return attempt, fmt.Errorf("%w: nothing left to post after media failure", ErrPublishFailed)
	}

	post, err := p.deliver(ctx, draft, attempt, logger)
	if err != nil {
		attempt.State = StateFailed
		return attempt, err
	}

	attempt.PostID = post.ID
	attempt.State = StatePublished
	logger.Info("Post published", "decision", "published", "post_id", post.ID)

	if commit != nil {
		if err := commit(ctx); err != nil {
			return attempt, fmt.Errorf("%w: %w", ErrCommitFailed, err)
		}
	}

	if !p.opts.Reply || req.Link == "" {
		attempt.State = StateReplySkipped
		logger.Debug("Reply skipped", "decision", "reply_skipped")
		return attempt, nil
	}

	if err := p.reply(ctx, req.Link, post, logger); err != nil {
		attempt.ReplyErr = err
		attempt.State = StateReplySkipped
		logger.Warn("Reply failed", "decision", "reply_failed", "error", err)
		if errors.Is(err, ErrRateLimited) {
			return attempt, err
		}
		return attempt, nil
	}

	attempt.State = StateReplied
	logger.Info("Reply published", "decision", "replied")

	return attempt, nil
}

// attachMedia downloads and uploads the image for destinations that take bytes.
// Failures other than rate limits leave a text-only draft.
func (p *Protocol) attachMedia(ctx context.Context, draft *Draft, logger *slog.Logger) error {
	uploader, ok := p.adapter.(MediaUploader)
	if !ok || draft.ImageURL == "" {
		return nil
	}

	if p.downloader == nil {
		logger.Warn("No media downloader, posting text only", "image_url", draft.ImageURL)
		draft.ImageURL = ""
		return nil
	}

	image, err := p.downloader.Download(ctx, draft.ImageURL)
	if err != nil {
		logger.Warn("Media download failed, posting text only", "decision", "text_only", "image_url", draft.ImageURL, "error", err)
		draft.ImageURL = ""
		return nil
	}

	ref, err := uploader.UploadMedia(ctx, *image)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			return fmt.Errorf("failed to upload media: %w", err)
		}
		logger.Warn("Media upload failed, posting text only", "decision", "text_only", "error", err)
		draft.ImageURL = ""
		return nil
	}

	draft.Image = image
	draft.MediaRef = ref
	logger.Debug("Media uploaded", "media_ref", ref, "bytes", len(image.Data))

	if p.opts.AfterMediaDelay > 0 {
		if err := p.opts.Sleep(ctx, p.opts.AfterMediaDelay); err != nil {
			return err
		}
	}

	return nil
}

func (p *Protocol) reply(ctx context.Context, link string, parent Post, logger *slog.Logger) error {
	if p.opts.BeforeReplyDelay > 0 {
		if err := p.opts.Sleep(ctx, p.opts.BeforeReplyDelay); err != nil {
			return err
		}
	}

	text := p.opts.ReplyPrefix + link
	segments, links := feed.Tokenize(text)

	draft := Draft{
		Text:     text,
		Segments: segments,
		Links:    links,
		ReplyTo:  &parent,
	}

	_, err := p.deliver(ctx, draft, &Attempt{ItemID: "reply"}, logger.With("reply_to", parent.ID))
	return err
}

// deliver runs create, the optional processing poll and publish for one draft.
func (p *Protocol) deliver(ctx context.Context, draft Draft, attempt *Attempt, logger *slog.Logger) (Post, error) {
	container, err := p.adapter.Create(ctx, draft)
	if err != nil {
		return Post{}, classify("create container", err)
	}

	attempt.CreationID = container.ID
	attempt.State = StateCreated
	logger.Debug("Container created", "creation_id", container.ID, "needs_processing", container.NeedsProcessing)

	if container.NeedsProcessing {
		if poller, ok := p.adapter.(StatusPoller); ok {
			if err := p.waitForProcessing(ctx, poller, container.ID, attempt, logger); err != nil {
				return Post{}, err
			}
		}
	}

	post, err := p.adapter.Publish(ctx, container)
	if err != nil {
		return Post{}, classify("publish", err)
	}

	return post, nil
}

func (p *Protocol) waitForProcessing(ctx context.Context, poller StatusPoller, containerID string, attempt *Attempt, logger *slog.Logger) error {
	attempt.State = StateProcessing
	attempt.Status = StatusInProgress

	for attempt.Polls < p.opts.PollAttempts {
		if err := p.opts.Sleep(ctx, p.opts.PollInterval); err != nil {
			return err
		}
		attempt.Polls++

		status, err := poller.PollStatus(ctx, containerID)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				return fmt.Errorf("failed to poll status: %w", err)
			}
			logger.Warn("Status poll failed", "attempt", attempt.Polls, "max_attempts", p.opts.PollAttempts, "error", err)
			continue
		}

		attempt.Status = status
		logger.Debug("Container status", "attempt", attempt.Polls, "status", status)

		switch status {
		case StatusFinished:
			return nil
		case StatusError:
			return fmt.Errorf("%w: container %s processing failed", ErrPublishFailed, containerID)
		}
	}

	return fmt.Errorf("%w: container %s not ready after %d polls", ErrPublishFailed, containerID, attempt.Polls)
}

func classify(step string, err error) error {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrPublishFailed) {
		return fmt.Errorf("failed to %s: %w", step, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", step, ErrPublishFailed, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
