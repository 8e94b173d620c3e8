package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

// TwitterClient — клиент Twitter API v1.1 (платформа B).
// Подпись запросов — OAuth1 через транспорт dghubble/oauth1.
type TwitterClient struct {
	apiBase    string
	uploadBase string
	http       *http.Client
	log        *slog.Logger
}

func NewTwitterClient(cfg TwitterConfig, timeout time.Duration, log *slog.Logger) *TwitterClient {
	oaConfig := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)
	httpClient := oaConfig.Client(oauth1.NoContext, token)
	httpClient.Timeout = timeout

	return &TwitterClient{
		apiBase:    "https://api.twitter.com/1.1",
		uploadBase: "https://upload.twitter.com/1.1",
		http:       httpClient,
		log:        log,
	}
}

func (c *TwitterClient) Platform() string { return platformTwitter }

// --- wire-структуры ответов API ---

type twitterUser struct {
	IDStr      string `json:"id_str"`
	ScreenName string `json:"screen_name"`
}

type twitterMedia struct {
	MediaURLHTTPS string `json:"media_url_https"`
	Type          string `json:"type"`
}

type twitterEntities struct {
	Media []twitterMedia `json:"media"`
}

type twitterStatus struct {
	IDStr                string           `json:"id_str"`
	FullText             string           `json:"full_text"`
	Text                 string           `json:"text"`
	User                 twitterUser      `json:"user"`
	InReplyToStatusIDStr string           `json:"in_reply_to_status_id_str"`
	InReplyToUserIDStr   string           `json:"in_reply_to_user_id_str"`
	RetweetedStatus      *twitterStatus   `json:"retweeted_status"`
	ExtendedEntities     *twitterEntities `json:"extended_entities"`
}

func (s *twitterStatus) toItem() Item {
	body := s.FullText
	if body == "" {
		body = s.Text
	}
	it := Item{
		ID:                s.IDStr,
		AuthorID:          s.User.IDStr,
		Body:              body,
		InReplyToItemID:   s.InReplyToStatusIDStr,
		InReplyToAuthorID: s.InReplyToUserIDStr,
	}
	if s.RetweetedStatus != nil {
		orig := s.RetweetedStatus.toItem()
		it.ReshareOf = &orig
	}
	if s.ExtendedEntities != nil {
		for _, m := range s.ExtendedEntities.Media {
			it.Attachments = append(it.Attachments, Media{URL: m.MediaURLHTTPS, Kind: m.Type})
		}
	}
	return it
}

func (c *TwitterClient) do(ctx context.Context, method, rawURL string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("twitter API %d: %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *TwitterClient) VerifyCredentials(ctx context.Context) (Account, error) {
	var user twitterUser
	if err := c.do(ctx, http.MethodGet, c.apiBase+"/account/verify_credentials.json", nil, &user); err != nil {
		return Account{}, fmt.Errorf("twitter verify_credentials: %w", err)
	}
	return Account{ID: user.IDStr, Username: user.ScreenName}, nil
}

func (c *TwitterClient) ListRecentItems(ctx context.Context, authorID, sinceID string) ([]Item, error) {
	q := url.Values{}
	q.Set("user_id", authorID)
	q.Set("count", "50")
	q.Set("tweet_mode", "extended") // иначе full_text обрезается
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}
	var statuses []twitterStatus
	if err := c.do(ctx, http.MethodGet, c.apiBase+"/statuses/user_timeline.json?"+q.Encode(), nil, &statuses); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(statuses))
	for i := range statuses {
		items = append(items, statuses[i].toItem())
	}
	return items, nil
}

func (c *TwitterClient) Post(ctx context.Context, text, inReplyToID string, mediaIDs []string) (Item, error) {
	form := url.Values{}
	form.Set("status", text)
	if inReplyToID != "" {
		form.Set("in_reply_to_status_id", inReplyToID)
		form.Set("auto_populate_reply_metadata", "true")
	}
	if len(mediaIDs) > 0 {
		form.Set("media_ids", strings.Join(mediaIDs, ","))
	}
	var status twitterStatus
	if err := c.do(ctx, http.MethodPost, c.apiBase+"/statuses/update.json", form, &status); err != nil {
		return Item{}, err
	}
	return status.toItem(), nil
}

func (c *TwitterClient) Reshare(ctx context.Context, targetID string) (Item, error) {
	var status twitterStatus
	rawURL := c.apiBase + "/statuses/retweet/" + url.PathEscape(targetID) + ".json"
	if err := c.do(ctx, http.MethodPost, rawURL, url.Values{}, &status); err != nil {
		return Item{}, err
	}
	return status.toItem(), nil
}

// UploadMedia заливает картинку на upload-хост и возвращает media_id.
func (c *TwitterClient) UploadMedia(ctx context.Context, data []byte, contentType string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", mediaFileName(contentType))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("copy to form: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadBase+"/media/upload.json", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("twitter media upload %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.MediaIDString == "" {
		return "", fmt.Errorf("twitter media upload: empty media_id")
	}
	return result.MediaIDString, nil
}
