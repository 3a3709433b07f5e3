package destinations

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/publish"
)

const testBlobCID = "bafkreihkqazugy7o2fc573xfd25opxb7dtl5br4ht6f72idqybq5hqz7ky"

type blueskyServer struct {
	records []map[string]any
	blobs   [][]byte
	auth    []string
}

func (s *blueskyServer) start(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["identifier"] != "me.bsky.social" || body["password"] != "app-pass" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"AuthenticationRequired"}`))
			return
		}
		w.Write([]byte(`{"accessJwt":"jwt","refreshJwt":"refresh","did":"did:plc:abc","handle":"me.bsky.social"}`))
	})
	mux.HandleFunc("POST /xrpc/com.atproto.repo.uploadBlob", func(w http.ResponseWriter, r *http.Request) {
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		s.blobs = append(s.blobs, data)
		w.Write([]byte(`{"blob":{"$type":"blob","ref":{"$link":"` + testBlobCID + `"},"mimeType":"image/png","size":9}}`))
	})
	mux.HandleFunc("POST /xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		s.records = append(s.records, body)
		w.Write([]byte(`{"uri":"at://did:plc:abc/app.bsky.feed.post/` + string(rune('a'+len(s.records))) + `","cid":"cid-` + string(rune('a'+len(s.records))) + `"}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestBlueskyLoginFailure(t *testing.T) {
	server := (&blueskyServer{}).start(t)

	bluesky := NewBluesky("bluesky", server.URL, "me.bsky.social", "wrong", server.Client(), "test")
	err := bluesky.Login(context.Background())
	var httpErr *publish.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestBlueskyPostWithFacetsImageAndReply(t *testing.T) {
	fake := &blueskyServer{}
	server := fake.start(t)

	bluesky := NewBluesky("bluesky", server.URL, "me.bsky.social", "app-pass", server.Client(), "test")
	bluesky.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	require.NoError(t, bluesky.Login(context.Background()))

	protocol := publish.NewProtocol(bluesky, stubDownloader{}, publish.Options{
		Reply: true,
		Sleep: func(context.Context, time.Duration) error { return nil },
	})

	text := "看 https://example.com/x now"
	segments, links := feed.Tokenize(text)
	req := publish.Request{
		ItemID: "1",
		Link:   "https://example.com/1",
		Post:   feed.SanitizedPost{Text: text, Segments: segments, Links: links, ImageURL: "https://example.com/a.png"},
	}

	attempt, err := protocol.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, publish.StateReplied, attempt.State)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/b", attempt.PostID)

	require.Len(t, fake.blobs, 1)
	assert.NotEmpty(t, fake.blobs[0])
	for _, header := range fake.auth {
		assert.Equal(t, "Bearer jwt", header)
	}

	require.Len(t, fake.records, 2)
	assert.Equal(t, "did:plc:abc", fake.records[0]["repo"])
	assert.Equal(t, "app.bsky.feed.post", fake.records[0]["collection"])

	post := fake.records[0]["record"].(map[string]any)
	assert.Equal(t, text, post["text"])
	assert.Equal(t, "2024-01-02T03:04:05Z", post["createdAt"])

	facets := post["facets"].([]any)
	require.Len(t, facets, 1)
	index := facets[0].(map[string]any)["index"].(map[string]any)
	// "看 " is four bytes in UTF-8
	assert.Equal(t, float64(4), index["byteStart"])
	assert.Equal(t, float64(4+len("https://example.com/x")), index["byteEnd"])

	embed := post["embed"].(map[string]any)
	assert.Equal(t, "app.bsky.embed.images", embed["$type"])
	images := embed["images"].([]any)
	blob := images[0].(map[string]any)["image"].(map[string]any)
	assert.Equal(t, "blob", blob["$type"])
	assert.Equal(t, testBlobCID, blob["ref"].(map[string]any)["$link"])

	replyRecord := fake.records[1]["record"].(map[string]any)
	assert.Equal(t, "Sync from: https://example.com/1", replyRecord["text"])
	reply := replyRecord["reply"].(map[string]any)
	parent := reply["parent"].(map[string]any)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/b", parent["uri"])
	assert.Equal(t, "cid-b", parent["cid"])
	assert.Equal(t, parent, reply["root"])
}

func TestBlueskyRateLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accessJwt":"jwt","refreshJwt":"refresh","did":"did:plc:abc","handle":"me.bsky.social"}`))
	})
	mux.HandleFunc("POST /xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ratelimit-limit", "5000")
		w.Header().Set("ratelimit-remaining", "0")
		w.Header().Set("ratelimit-reset", "1700000000")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"RateLimitExceeded"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	bluesky := NewBluesky("bluesky", server.URL, "me.bsky.social", "app-pass", server.Client(), "test")
	require.NoError(t, bluesky.Login(context.Background()))

	_, err := bluesky.Publish(context.Background(), publish.Container{Draft: publish.Draft{Text: "hi"}})
	require.ErrorIs(t, err, publish.ErrRateLimited)

	var limited *publish.RateLimitError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, "bluesky", limited.Destination)
}

func TestLinkFacetsEmpty(t *testing.T) {
	assert.Empty(t, linkFacets(nil))
}
