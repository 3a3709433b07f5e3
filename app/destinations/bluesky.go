package destinations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/publish"
)

const (
	blueskyBaseURL    = "https://bsky.social"
	blueskyCollection = "app.bsky.feed.post"
)

var (
	_ publish.Adapter       = (*Bluesky)(nil)
	_ publish.MediaUploader = (*Bluesky)(nil)
)

// Bluesky writes app.bsky.feed.post records over XRPC. Links become facets
// addressed by UTF-8 byte offsets, and replies reference the parent by uri and cid.
type Bluesky struct {
	publish.SinglePost
	name        string
	handle      string
	appPassword string
	client      *xrpc.Client

	did string
	now func() time.Time
}

func NewBluesky(name, baseURL, handle, appPassword string, httpClient *http.Client, userAgent string) *Bluesky {
	if baseURL == "" {
		baseURL = blueskyBaseURL
	}

	client := &xrpc.Client{
		Client: httpClient,
		Host:   strings.TrimRight(baseURL, "/"),
	}
	if userAgent != "" {
		client.UserAgent = &userAgent
	}

	return &Bluesky{
		name:        name,
		handle:      handle,
		appPassword: appPassword,
		client:      client,
		now:         time.Now,
	}
}

func (b *Bluesky) Name() string {
	return b.name
}

// Login creates the session used by every later call.
func (b *Bluesky) Login(ctx context.Context) error {
	session, err := comatproto.ServerCreateSession(ctx, b.client, &comatproto.ServerCreateSession_Input{
		Identifier: b.handle,
		Password:   b.appPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", b.translate(err))
	}
	if session.AccessJwt == "" || session.Did == "" {
		return fmt.Errorf("session response without token or did")
	}

	b.client.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}
	b.did = session.Did

	return nil
}

// UploadMedia stores the image as a blob. The returned ref is the blob's JSON form.
func (b *Bluesky) UploadMedia(ctx context.Context, image feed.Image) (string, error) {
	out, err := comatproto.RepoUploadBlob(ctx, b.client, bytes.NewReader(image.Data))
	if err != nil {
		return "", b.translate(err)
	}
	if out.Blob == nil {
		return "", fmt.Errorf("upload response without blob")
	}

	ref, err := json.Marshal(out.Blob)
	if err != nil {
		return "", fmt.Errorf("failed to encode blob: %w", err)
	}

	return string(ref), nil
}

func (b *Bluesky) Publish(ctx context.Context, container publish.Container) (publish.Post, error) {
	draft := container.Draft

	post := &bsky.FeedPost{
		LexiconTypeID: blueskyCollection,
		Text:          draft.Text,
		CreatedAt:     b.now().UTC().Format(time.RFC3339),
		Facets:        linkFacets(draft.Links),
	}

	if draft.MediaRef != "" {
		var blob lexutil.LexBlob
		if err := json.Unmarshal([]byte(draft.MediaRef), &blob); err != nil {
			return publish.Post{}, fmt.Errorf("failed to decode blob ref: %w", err)
		}
		post.Embed = &bsky.FeedPost_Embed{
			EmbedImages: &bsky.EmbedImages{
				LexiconTypeID: "app.bsky.embed.images",
				Images:        []*bsky.EmbedImages_Image{{Image: &blob}},
			},
		}
	}

	if draft.ReplyTo != nil {
		parent := &comatproto.RepoStrongRef{Uri: draft.ReplyTo.ID, Cid: draft.ReplyTo.Ref}
		post.Reply = &bsky.FeedPost_ReplyRef{Root: parent, Parent: parent}
	}

	out, err := comatproto.RepoCreateRecord(ctx, b.client, &comatproto.RepoCreateRecord_Input{
		Repo:       b.did,
		Collection: blueskyCollection,
		Record:     &lexutil.LexiconTypeDecoder{Val: post},
	})
	if err != nil {
		return publish.Post{}, b.translate(err)
	}
	if out.Uri == "" || out.Cid == "" {
		return publish.Post{}, fmt.Errorf("%w: createRecord response without uri or cid", publish.ErrPublishFailed)
	}

	return publish.Post{ID: out.Uri, Ref: out.Cid}, nil
}

// translate maps XRPC failures onto the publish error types so the protocol
// can tell a rate limit from a rejected request.
func (b *Bluesky) translate(err error) error {
	var xerr *xrpc.Error
	if !errors.As(err, &xerr) {
		return err
	}

	if xerr.StatusCode == http.StatusTooManyRequests {
		limited := &publish.RateLimitError{Destination: b.name}
		if info := xerr.Ratelimit; info != nil {
			limited.Limit = strconv.Itoa(info.Limit)
			limited.Remaining = strconv.Itoa(info.Remaining)
			limited.Reset = info.Reset
		}
		return limited
	}

	body := ""
	if xerr.Wrapped != nil {
		body = xerr.Wrapped.Error()
	}
	return &publish.HTTPError{StatusCode: xerr.StatusCode, Body: body}
}

func linkFacets(links []feed.LinkSpan) []*bsky.RichtextFacet {
	facets := make([]*bsky.RichtextFacet, 0, len(links))
	for _, link := range links {
		facets = append(facets, &bsky.RichtextFacet{
			Index: &bsky.RichtextFacet_ByteSlice{
				ByteStart: int64(link.Start),
				ByteEnd:   int64(link.End),
			},
			Features: []*bsky.RichtextFacet_Features_Elem{{
				RichtextFacet_Link: &bsky.RichtextFacet_Link{
					LexiconTypeID: "app.bsky.richtext.facet#link",
					Uri:           link.URL,
				},
			}},
		})
	}
	return facets
}
