package destinations

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dghubble/oauth1"

	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/publish"
)

const (
	twitterAPIURL    = "https://api.x.com"
	twitterUploadURL = "https://upload.twitter.com"
)

var (
	_ publish.Adapter       = (*Twitter)(nil)
	_ publish.MediaUploader = (*Twitter)(nil)
)

type TwitterCredentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Twitter posts through the v2 tweets endpoint and uploads images through v1.1 media upload.
type Twitter struct {
	publish.SinglePost
	name      string
	apiURL    string
	uploadURL string
	client    apiClient
}

// NewTwitter signs every request with OAuth 1.0a on top of httpClient's transport.
func NewTwitter(name, apiURL, uploadURL string, creds TwitterCredentials, httpClient *http.Client, userAgent string) *Twitter {
	if apiURL == "" {
		apiURL = twitterAPIURL
	}
	if uploadURL == "" {
		uploadURL = twitterUploadURL
	}

	return &Twitter{
		name:      name,
		apiURL:    strings.TrimRight(apiURL, "/"),
		uploadURL: strings.TrimRight(uploadURL, "/"),
		client: apiClient{
			destination: name,
			httpClient:  oauth1Client(creds.ConsumerKey, creds.ConsumerSecret, creds.AccessToken, creds.AccessTokenSecret, httpClient),
			userAgent:   userAgent,
		},
	}
}

func (t *Twitter) Name() string {
	return t.name
}

func (t *Twitter) UploadMedia(ctx context.Context, image feed.Image) (string, error) {
	var resp struct {
		MediaIDString string `json:"media_id_string"`
	}
	err := t.client.postMultipart(ctx, t.uploadURL+"/1.1/media/upload.json", "media", imageFilename(image), image.Data, &resp)
	if err != nil {
		return "", err
	}
	if resp.MediaIDString == "" {
		return "", fmt.Errorf("media upload response without media_id_string")
	}

	return resp.MediaIDString, nil
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

func (t *Twitter) Publish(ctx context.Context, container publish.Container) (publish.Post, error) {
	draft := container.Draft

	body := tweetRequest{Text: draft.Text}
	if draft.MediaRef != "" {
		body.Media = &tweetMedia{MediaIDs: []string{draft.MediaRef}}
	}
	if draft.ReplyTo != nil {
		body.Reply = &tweetReply{InReplyToTweetID: draft.ReplyTo.ID}
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := t.client.postJSON(ctx, t.apiURL+"/2/tweets", body, nil, &resp, http.StatusCreated); err != nil {
		return publish.Post{}, err
	}
	if resp.Data.ID == "" {
		return publish.Post{}, fmt.Errorf("%w: tweet response without id", publish.ErrPublishFailed)
	}

	return publish.Post{ID: resp.Data.ID}, nil
}

func oauth1Client(consumerKey, consumerSecret, token, tokenSecret string, base *http.Client) *http.Client {
	config := oauth1.NewConfig(consumerKey, consumerSecret)
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	return config.Client(ctx, oauth1.NewToken(token, tokenSecret))
}

func imageFilename(image feed.Image) string {
	switch image.MIMEType {
	case "image/jpeg":
		return "image.jpg"
	case "image/gif":
		return "image.gif"
	case "image/webp":
		return "image.webp"
	default:
		return "image.png"
	}
}
