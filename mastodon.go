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
)

// MastodonClient — клиент Mastodon REST API (платформа A).
type MastodonClient struct {
	base  string // https://instance, без завершающего слэша
	token string
	http  *http.Client
	log   *slog.Logger
}

func NewMastodonClient(cfg MastodonConfig, httpClient *http.Client, log *slog.Logger) *MastodonClient {
	return &MastodonClient{
		base:  strings.TrimRight(cfg.Instance, "/"),
		token: cfg.AccessToken,
		http:  httpClient,
		log:   log,
	}
}

func (c *MastodonClient) Platform() string { return platformMastodon }

// --- wire-структуры ответов API ---

type mastodonAccount struct {
	ID   string `json:"id"`
	Acct string `json:"acct"`
}

type mastodonAttachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type mastodonStatus struct {
	ID                 string               `json:"id"`
	Account            mastodonAccount      `json:"account"`
	Content            string               `json:"content"`
	InReplyToID        string               `json:"in_reply_to_id"`
	InReplyToAccountID string               `json:"in_reply_to_account_id"`
	Reblog             *mastodonStatus      `json:"reblog"`
	MediaAttachments   []mastodonAttachment `json:"media_attachments"`
}

// toItem переводит статус в платформо-независимый Item.
// Engine дальше работает только с ним.
func (s *mastodonStatus) toItem() Item {
	it := Item{
		ID:                s.ID,
		AuthorID:          s.Account.ID,
		Body:              s.Content,
		InReplyToItemID:   s.InReplyToID,
		InReplyToAuthorID: s.InReplyToAccountID,
	}
	if s.Reblog != nil {
		orig := s.Reblog.toItem()
		it.ReshareOf = &orig
	}
	for _, a := range s.MediaAttachments {
		it.Attachments = append(it.Attachments, Media{URL: a.URL, Kind: a.Type})
	}
	return it
}

func (c *MastodonClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
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
		return fmt.Errorf("mastodon API %d: %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *MastodonClient) VerifyCredentials(ctx context.Context) (Account, error) {
	var acct mastodonAccount
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts/verify_credentials", nil, &acct); err != nil {
		return Account{}, fmt.Errorf("mastodon verify_credentials: %w", err)
	}
	return Account{ID: acct.ID, Username: acct.Acct}, nil
}

func (c *MastodonClient) ListRecentItems(ctx context.Context, authorID, sinceID string) ([]Item, error) {
	path := "/api/v1/accounts/" + url.PathEscape(authorID) + "/statuses?limit=40"
	if sinceID != "" {
		path += "&since_id=" + url.QueryEscape(sinceID)
	}
	var statuses []mastodonStatus
	if err := c.do(ctx, http.MethodGet, path, nil, &statuses); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(statuses))
	for i := range statuses {
		items = append(items, statuses[i].toItem())
	}
	return items, nil
}

func (c *MastodonClient) Post(ctx context.Context, text, inReplyToID string, mediaIDs []string) (Item, error) {
	form := url.Values{}
	form.Set("status", text)
	if inReplyToID != "" {
		form.Set("in_reply_to_id", inReplyToID)
	}
	for _, id := range mediaIDs {
		form.Add("media_ids[]", id)
	}
	var status mastodonStatus
	if err := c.do(ctx, http.MethodPost, "/api/v1/statuses", form, &status); err != nil {
		return Item{}, err
	}
	return status.toItem(), nil
}

func (c *MastodonClient) Reshare(ctx context.Context, targetID string) (Item, error) {
	var status mastodonStatus
	path := "/api/v1/statuses/" + url.PathEscape(targetID) + "/reblog"
	if err := c.do(ctx, http.MethodPost, path, url.Values{}, &status); err != nil {
		return Item{}, err
	}
	return status.toItem(), nil
}

// UploadMedia загружает картинку multipart'ом и возвращает media id.
func (c *MastodonClient) UploadMedia(ctx context.Context, data []byte, contentType string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", mediaFileName(contentType))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("copy to form: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v2/media", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	// 202 — медиа ещё обрабатывается, но id уже выдан
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("mastodon media upload %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("mastodon media upload: empty id")
	}
	return result.ID, nil
}

// mediaFileName подбирает имя файла по MIME-типу (инстансы требуют расширение).
func mediaFileName(contentType string) string {
	switch contentType {
	case "image/png":
		return "media.png"
	case "image/gif":
		return "media.gif"
	case "image/webp":
		return "media.webp"
	default:
		return "media.jpg"
	}
}

// --- setup mode ---

// RegisterApp регистрирует OAuth-приложение на инстансе.
func (c *MastodonClient) RegisterApp(ctx context.Context, appName string) (clientID, clientSecret string, err error) {
	form := url.Values{}
	form.Set("client_name", appName)
	form.Set("redirect_uris", "urn:ietf:wg:oauth:2.0:oob")
	form.Set("scopes", "read write")

	var app struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/apps", form, &app); err != nil {
		return "", "", fmt.Errorf("register app: %w", err)
	}
	return app.ClientID, app.ClientSecret, nil
}

// ObtainToken получает access token по password grant (как делал twoot).
// Логин и пароль нигде не сохраняются.
func (c *MastodonClient) ObtainToken(ctx context.Context, clientID, clientSecret, email, password string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("username", email)
	form.Set("password", password)
	form.Set("scope", "read write")

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/oauth/token", form, &tok); err != nil {
		return "", fmt.Errorf("obtain token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("obtain token: empty access_token")
	}
	return tok.AccessToken, nil
}
