package destinations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/feed2social/app/publish"
)

var testPlurkCredentials = PlurkCredentials{
	AppKey:            "ak",
	AppSecret:         "as",
	AccessToken:       "tk",
	AccessTokenSecret: "ts",
}

func TestPlurkPostWithPictureAndResponse(t *testing.T) {
	rec := &recorder{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /APP/Timeline/uploadPicture", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "image.png", header.Filename)
		w.Write([]byte(`{"full":"https://images.plurk.com/abc.png","thumbnail":"https://images.plurk.com/mx_abc.png"}`))
	})
	mux.HandleFunc("POST /APP/Timeline/plurkAdd", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Write([]byte(`{"plurk_id":1234,"content":"hello"}`))
	})
	mux.HandleFunc("POST /APP/Responses/responseAdd", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Write([]byte(`{"id":99,"plurk_id":1234}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	plurk := NewPlurk("plurk", server.URL, testPlurkCredentials, server.Client(), "test")
	protocol := publish.NewProtocol(plurk, stubDownloader{}, publish.Options{
		Reply: true,
		Sleep: func(context.Context, time.Duration) error { return nil },
	})

	req := publish.Request{ItemID: "1", Link: "https://example.com/1"}
	req.Post.Text = "hello"
	req.Post.ImageURL = "https://example.com/a.png"

	attempt, err := protocol.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, publish.StateReplied, attempt.State)
	assert.Equal(t, "1234", attempt.PostID)

	require.Len(t, rec.requests, 2)
	assert.Equal(t, "hello\nhttps://images.plurk.com/abc.png", rec.requests[0].Form["content"])
	assert.Equal(t, ":", rec.requests[0].Form["qualifier"])
	assert.True(t, strings.HasPrefix(rec.requests[0].Header.Get("Authorization"), "OAuth "))

	assert.Equal(t, "Sync from: https://example.com/1", rec.requests[1].Form["content"])
	assert.Equal(t, "1234", rec.requests[1].Form["plurk_id"])
}

func TestPlurkRejectsMissingPlurkID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plurk_id":0}`))
	}))
	defer server.Close()

	plurk := NewPlurk("plurk", server.URL, testPlurkCredentials, server.Client(), "test")
	_, err := plurk.Publish(context.Background(), publish.Container{Draft: publish.Draft{Text: "hello"}})
	assert.ErrorIs(t, err, publish.ErrPublishFailed)
}

func TestPlurkImageOnlyPost(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Write([]byte(`{"plurk_id":5}`))
	}))
	defer server.Close()

	plurk := NewPlurk("plurk", server.URL, testPlurkCredentials, server.Client(), "test")
	_, err := plurk.Publish(context.Background(), publish.Container{Draft: publish.Draft{MediaRef: "https://images.plurk.com/x.png"}})
	require.NoError(t, err)
	assert.Equal(t, "https://images.plurk.com/x.png", rec.requests[0].Form["content"])
}
