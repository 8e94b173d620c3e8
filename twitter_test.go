package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestTwitter(t *testing.T, handler http.Handler) *TwitterClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &TwitterClient{
		apiBase:    srv.URL,
		uploadBase: srv.URL,
		http:       srv.Client(),
		log:        testLogger(),
	}
}

func TestTwitterVerifyCredentials(t *testing.T) {
	c := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/verify_credentials.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"id_str": "1001", "screen_name": "alice"})
	}))

	acct, err := c.VerifyCredentials(context.Background())
	if err != nil {
		t.Fatalf("VerifyCredentials error: %v", err)
	}
	if acct.ID != "1001" || acct.Username != "alice" {
		t.Errorf("account = %+v, want id 1001, username alice", acct)
	}
}

func TestTwitterListRecentItems(t *testing.T) {
	c := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/statuses/user_timeline.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("user_id") != "1001" || q.Get("since_id") != "500" {
			t.Errorf("query = %v", q)
		}
		if q.Get("tweet_mode") != "extended" {
			t.Error("tweet_mode=extended missing, full_text will be truncated")
		}
		w.Write([]byte(`[
			{"id_str":"502","full_text":"RT @bob: orig","user":{"id_str":"1001"},
			 "retweeted_status":{"id_str":"400","full_text":"orig","user":{"id_str":"2002"}}},
			{"id_str":"501","full_text":"a long tweet","user":{"id_str":"1001"},
			 "extended_entities":{"media":[{"media_url_https":"https://pbs.example/a.jpg","type":"photo"}]}}
		]`))
	}))

	items, err := c.ListRecentItems(context.Background(), "1001", "500")
	if err != nil {
		t.Fatalf("ListRecentItems error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if !items[0].IsReshare() || items[0].ReshareOf.ID != "400" {
		t.Errorf("items[0] = %+v, want retweet of 400", items[0])
	}
	if items[1].Body != "a long tweet" {
		t.Errorf("items[1].Body = %q", items[1].Body)
	}
	if len(items[1].Attachments) != 1 || items[1].Attachments[0].URL != "https://pbs.example/a.jpg" {
		t.Errorf("items[1].Attachments = %+v", items[1].Attachments)
	}
}

func TestTwitterStatusFallsBackToText(t *testing.T) {
	// старые ответы без tweet_mode=extended несут поле text
	s := twitterStatus{IDStr: "1", Text: "short", User: twitterUser{IDStr: "u"}}
	if got := s.toItem().Body; got != "short" {
		t.Errorf("Body = %q, want %q", got, "short")
	}
}

func TestTwitterPost(t *testing.T) {
	c := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/statuses/update.json" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("status"); got != "hello" {
			t.Errorf("status = %q, want %q", got, "hello")
		}
		if got := r.PostForm.Get("in_reply_to_status_id"); got != "500" {
			t.Errorf("in_reply_to_status_id = %q, want %q", got, "500")
		}
		if got := r.PostForm.Get("auto_populate_reply_metadata"); got != "true" {
			t.Errorf("auto_populate_reply_metadata = %q, want true", got)
		}
		if got := r.PostForm.Get("media_ids"); got != "m1,m2" {
			t.Errorf("media_ids = %q, want %q", got, "m1,m2")
		}
		json.NewEncoder(w).Encode(map[string]any{"id_str": "503", "user": map[string]string{"id_str": "1001"}})
	}))

	item, err := c.Post(context.Background(), "hello", "500", []string{"m1", "m2"})
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if item.ID != "503" {
		t.Errorf("item.ID = %q, want %q", item.ID, "503")
	}
}

func TestTwitterTopLevelPostOmitsReplyFields(t *testing.T) {
	c := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if _, ok := r.PostForm["in_reply_to_status_id"]; ok {
			t.Error("in_reply_to_status_id sent for top-level post")
		}
		json.NewEncoder(w).Encode(map[string]any{"id_str": "504"})
	}))

	if _, err := c.Post(context.Background(), "hello", "", nil); err != nil {
		t.Fatalf("Post error: %v", err)
	}
}

func TestTwitterReshare(t *testing.T) {
	c := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/statuses/retweet/400.json" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"id_str": "505"})
	}))

	item, err := c.Reshare(context.Background(), "400")
	if err != nil {
		t.Fatalf("Reshare error: %v", err)
	}
	if item.ID != "505" {
		t.Errorf("item.ID = %q, want %q", item.ID, "505")
	}
}

func TestTwitterUploadMedia(t *testing.T) {
	c := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media/upload.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		file, _, err := r.FormFile("media")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		file.Close()
		json.NewEncoder(w).Encode(map[string]string{"media_id_string": "media-7"})
	}))

	id, err := c.UploadMedia(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("UploadMedia error: %v", err)
	}
	if id != "media-7" {
		t.Errorf("id = %q, want %q", id, "media-7")
	}
}

func TestTwitterAPIErrorSurfaced(t *testing.T) {
	c := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"code":187,"message":"Status is a duplicate."}]}`))
	}))

	if _, err := c.Post(context.Background(), "dup", "", nil); err == nil {
		t.Error("Post() = nil error on 403")
	}
}
