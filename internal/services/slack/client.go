package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"meetscribe/internal/config"
	"meetscribe/internal/services"
)

// File is the subset of a Slack file object ingestion relies on.
type File struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Title              string `json:"title"`
	Mimetype           string `json:"mimetype"`
	Filetype           string `json:"filetype"`
	Size               int64  `json:"size"`
	URLPrivate         string `json:"url_private"`
	URLPrivateDownload string `json:"url_private_download"`
	InitialComment     struct {
		Comment string `json:"comment"`
	} `json:"initial_comment"`
}

// DownloadURL prefers the forced-download URL.
func (f File) DownloadURL() string {
	if f.URLPrivateDownload != "" {
		return f.URLPrivateDownload
	}
	return f.URLPrivate
}

// Comment returns the text shared with the file, falling back to the title.
func (f File) Comment() string {
	if text := strings.TrimSpace(f.InitialComment.Comment); text != "" {
		return text
	}
	return strings.TrimSpace(f.Title)
}

// Client talks to the Slack Web API with a bot token.
type Client struct {
	api      *resty.Client
	download *resty.Client
	token    string
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// NewClient builds a client from the [slack] config section.
func NewClient(cfg config.Slack) *Client {
	token := strings.TrimSpace(cfg.BotToken)
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	api := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIBaseURL, "/")).
		SetAuthToken(token).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})
	// Downloads stream arbitrarily large bodies, so only the caller's context bounds them.
	download := resty.New().SetAuthToken(token)
	return &Client{api: api, download: download, token: token}
}

// Configured reports whether a bot token is available.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// FileInfo resolves a file id through files.info.
func (c *Client) FileInfo(ctx context.Context, fileID string) (*File, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, services.Wrap(services.ErrValidation, "slack", "files.info", "file id is required", nil)
	}
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("file", fileID).
		Get("/files.info")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "slack", "files.info", "request failed", err)
	}
	var payload struct {
		apiResponse
		File File `json:"file"`
	}
	if err := decode(resp, "files.info", &payload.apiResponse, &payload); err != nil {
		return nil, err
	}
	return &payload.File, nil
}

// Download opens the private file URL. The caller must close the returned body.
func (c *Client) Download(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	if strings.TrimSpace(url) == "" {
		return nil, 0, services.Wrap(services.ErrValidation, "slack", "download", "download url is required", nil)
	}
	resp, err := c.download.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrTransient, "slack", "download", "request failed", err)
	}
	body := resp.RawBody()
	if !resp.IsSuccess() {
		if body != nil {
			_ = body.Close()
		}
		marker := services.ErrExternalTool
		switch resp.StatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			marker = services.ErrUnauthorized
		case http.StatusNotFound:
			marker = services.ErrNotFound
		}
		return nil, 0, services.Wrap(marker, "slack", "download", fmt.Sprintf("origin returned %d", resp.StatusCode()), nil)
	}
	if body == nil || body == http.NoBody {
		return nil, 0, services.Wrap(services.ErrExternalTool, "slack", "download", "origin returned no body", nil)
	}
	return body, resp.RawResponse.ContentLength, nil
}

// PostMessage sends text to a channel through chat.postMessage.
func (c *Client) PostMessage(ctx context.Context, channel, text string) error {
	if strings.TrimSpace(channel) == "" {
		return services.Wrap(services.ErrConfiguration, "slack", "chat.postMessage", "channel is required", nil)
	}
	resp, err := c.api.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(map[string]any{
			"channel":      channel,
			"text":         text,
			"unfurl_links": false,
		}).
		Post("/chat.postMessage")
	if err != nil {
		return services.Wrap(services.ErrTransient, "slack", "chat.postMessage", "request failed", err)
	}
	var payload apiResponse
	return decode(resp, "chat.postMessage", &payload, &payload)
}

func decode(resp *resty.Response, operation string, status *apiResponse, target any) error {
	if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500 {
		return services.Wrap(services.ErrTransient, "slack", operation, fmt.Sprintf("status %d", resp.StatusCode()), nil)
	}
	if !resp.IsSuccess() {
		return services.Wrap(services.ErrExternalTool, "slack", operation, fmt.Sprintf("status %d", resp.StatusCode()), nil)
	}
	if err := json.Unmarshal(resp.Body(), target); err != nil {
		return services.Wrap(services.ErrExternalTool, "slack", operation, "decode response", err)
	}
	if status.OK {
		return nil
	}
	marker := services.ErrExternalTool
	switch status.Error {
	case "invalid_auth", "not_authed", "account_inactive", "token_revoked", "missing_scope":
		marker = services.ErrUnauthorized
	case "file_not_found", "file_deleted", "channel_not_found":
		marker = services.ErrNotFound
	case "ratelimited":
		marker = services.ErrTransient
	}
	return services.Wrap(marker, "slack", operation, status.Error, nil)
}
