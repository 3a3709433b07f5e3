package destinations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/publish"
)

const plurkBaseURL = "https://www.plurk.com"

var (
	_ publish.Adapter       = (*Plurk)(nil)
	_ publish.MediaUploader = (*Plurk)(nil)
)

type PlurkCredentials struct {
	AppKey            string
	AppSecret         string
	AccessToken       string
	AccessTokenSecret string
}

// Plurk posts plurks and responses. Uploaded pictures are appended to the content as links.
type Plurk struct {
	publish.SinglePost
	name    string
	baseURL string
	client  apiClient
}

func NewPlurk(name, baseURL string, creds PlurkCredentials, httpClient *http.Client, userAgent string) *Plurk {
	if baseURL == "" {
		baseURL = plurkBaseURL
	}

	return &Plurk{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: apiClient{
			destination: name,
			httpClient:  oauth1Client(creds.AppKey, creds.AppSecret, creds.AccessToken, creds.AccessTokenSecret, httpClient),
			userAgent:   userAgent,
		},
	}
}

func (p *Plurk) Name() string {
	return p.name
}

func (p *Plurk) UploadMedia(ctx context.Context, image feed.Image) (string, error) {
	var resp struct {
		Full string `json:"full"`
	}
	err := p.client.postMultipart(ctx, p.baseURL+"/APP/Timeline/uploadPicture", "image", imageFilename(image), image.Data, &resp)
	if err != nil {
		return "", err
	}
	if resp.Full == "" {
		return "", fmt.Errorf("upload response without picture URL")
	}

	return resp.Full, nil
}

func (p *Plurk) Publish(ctx context.Context, container publish.Container) (publish.Post, error) {
	draft := container.Draft

	content := draft.Text
	if draft.MediaRef != "" {
		if content != "" {
			content += "\n"
		}
		content += draft.MediaRef
	}

	form := url.Values{}
	form.Set("content", content)
	form.Set("qualifier", ":")

	if draft.ReplyTo != nil {
		form.Set("plurk_id", draft.ReplyTo.ID)

		var resp struct {
			ID int64 `json:"id"`
		}
		if err := p.client.postForm(ctx, p.baseURL+"/APP/Responses/responseAdd", form, &resp); err != nil {
			return publish.Post{}, err
		}
		return publish.Post{ID: strconv.FormatInt(resp.ID, 10), Ref: draft.ReplyTo.ID}, nil
	}

	var resp struct {
		PlurkID int64 `json:"plurk_id"`
	}
	if err := p.client.postForm(ctx, p.baseURL+"/APP/Timeline/plurkAdd", form, &resp); err != nil {
		return publish.Post{}, err
	}
	if resp.PlurkID <= 0 {
		return publish.Post{}, fmt.Errorf("%w: plurkAdd response without plurk_id", publish.ErrPublishFailed)
	}

	return publish.Post{ID: strconv.FormatInt(resp.PlurkID, 10)}, nil
}
