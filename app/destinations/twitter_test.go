package destinations

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/publish"
)

var testTwitterCredentials = TwitterCredentials{
	ConsumerKey:       "ck",
	ConsumerSecret:    "cs",
	AccessToken:       "at",
	AccessTokenSecret: "ats",
}

func TestTwitterUploadAndPost(t *testing.T) {
	var uploaded []byte
	var tweets []map[string]any
	var authHeaders []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /1.1/media/upload.json", func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		file, _, err := r.FormFile("media")
		require.NoError(t, err)
		uploaded, _ = io.ReadAll(file)
		w.Write([]byte(`{"media_id":710511363345354753,"media_id_string":"710511363345354753"}`))
	})
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		tweets = append(tweets, body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1445880548472328192","text":"hello"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	twitter := NewTwitter("twitter", server.URL, server.URL, testTwitterCredentials, server.Client(), "test")

	protocol := publish.NewProtocol(twitter, stubDownloader{}, publish.Options{
		Reply: true,
		Sleep: func(context.Context, time.Duration) error { return nil },
	})

	req := publish.Request{ItemID: "1", Link: "https://example.com/1"}
	req.Post.Text = "hello"
	req.Post.ImageURL = "https://example.com/a.png"

	attempt, err := protocol.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, publish.StateReplied, attempt.State)
	assert.Equal(t, "1445880548472328192", attempt.PostID)

	assert.Equal(t, []byte("png-bytes"), uploaded)
	require.Len(t, tweets, 2)

	assert.Equal(t, "hello", tweets[0]["text"])
	media := tweets[0]["media"].(map[string]any)
	assert.Equal(t, []any{"710511363345354753"}, media["media_ids"])
	assert.NotContains(t, tweets[0], "reply")

	assert.Equal(t, "Sync from: https://example.com/1", tweets[1]["text"])
	reply := tweets[1]["reply"].(map[string]any)
	assert.Equal(t, "1445880548472328192", reply["in_reply_to_tweet_id"])

	for _, header := range authHeaders {
		assert.True(t, strings.HasPrefix(header, "OAuth "), "request must be OAuth1 signed, got %q", header)
		assert.Contains(t, header, `oauth_consumer_key="ck"`)
	}
}

func TestTwitterRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-limit", "17")
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", "1700000000")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	twitter := NewTwitter("twitter", server.URL, server.URL, testTwitterCredentials, server.Client(), "test")
	_, err := twitter.Publish(context.Background(), publish.Container{Draft: publish.Draft{Text: "hello"}})

	var rateErr *publish.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "twitter", rateErr.Destination)
	assert.Equal(t, "0", rateErr.Remaining)
	assert.Equal(t, int64(1700000000), rateErr.Reset.Unix())
}

func TestTwitterRequiresCreated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"1"}}`))
	}))
	defer server.Close()

	twitter := NewTwitter("twitter", server.URL, server.URL, testTwitterCredentials, server.Client(), "test")
	_, err := twitter.Publish(context.Background(), publish.Container{Draft: publish.Draft{Text: "hello"}})

	var httpErr *publish.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusOK, httpErr.StatusCode)
}

type stubDownloader struct{}

func (stubDownloader) Download(_ context.Context, url string) (*feed.Image, error) {
	return &feed.Image{URL: url, MIMEType: "image/png", Data: []byte("png-bytes")}, nil
}
