package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"meetscribe/internal/config"
	"meetscribe/internal/logging"
	"meetscribe/internal/services"
	"meetscribe/internal/summary"
)

// Notion rejects requests with more than 100 children blocks.
const maxChildrenPerRequest = 100

// Input is the content published for one task.
type Input struct {
	TaskID         string
	Summary        summary.Summary
	MeetingDate    string
	ConsultantName string
	ClientName     string
}

// Page is a created destination record. Partial pages were created but lost
// some of their body blocks.
type Page struct {
	Destination string
	ID          string
	URL         string
	Partial     bool
}

// Failure records a destination that could not be written.
type Failure struct {
	Destination string
	// PageID is set when the page exists but is incomplete.
	PageID      string
	Err         error
}

func (f Failure) String() string {
	message := f.Destination + ": " + services.Details(f.Err).Message
	if f.PageID != "" {
		message += " (page " + f.PageID + " incomplete)"
	}
	return message
}

// Outcome aggregates the result of publishing to every destination.
type Outcome struct {
	Pages    []Page
	Failures []Failure
}

// PageIDs returns created page ids in destination order.
func (o Outcome) PageIDs() []string {
	ids := make([]string, 0, len(o.Pages))
	for _, page := range o.Pages {
		ids = append(ids, page.ID)
	}
	return ids
}

// FirstURL returns the first created page URL.
func (o Outcome) FirstURL() string {
	for _, page := range o.Pages {
		if page.URL != "" {
			return page.URL
		}
	}
	return ""
}

// FailureMessages renders each failure as "destination: detail".
func (o Outcome) FailureMessages() []string {
	messages := make([]string, 0, len(o.Failures))
	for _, failure := range o.Failures {
		messages = append(messages, failure.String())
	}
	return messages
}

// Publisher writes summary pages to the configured databases.
type Publisher struct {
	cfg       config.Notion
	http      *resty.Client
	logger    *slog.Logger
	batchSize int
}

// NewPublisher builds a publisher from the [notion] config section.
func NewPublisher(cfg config.Notion, logger *slog.Logger) *Publisher {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(strings.TrimSpace(cfg.APIKey)).
		SetHeader("Notion-Version", cfg.Version).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		// Page creation is not idempotent, so only throttled requests are replayed.
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		})
	return &Publisher{
		cfg:       cfg,
		http:      client,
		logger:    logging.NewComponentLogger(logger, "notion"),
		batchSize: maxChildrenPerRequest,
	}
}

// Enabled reports whether publishing is configured.
func (p *Publisher) Enabled() bool {
	return p != nil && p.cfg.Enabled && strings.TrimSpace(p.cfg.APIKey) != "" && len(p.cfg.Destinations) > 0
}

// Publish creates one page per destination, sequentially. Individual failures are
// logged and collected; they never stop the remaining destinations. A page that
// was created before a later request failed is reported both as a page and as a
// failure.
func (p *Publisher) Publish(ctx context.Context, input Input) Outcome {
	var outcome Outcome
	if !p.Enabled() {
		return outcome
	}
	logger := logging.WithContext(ctx, p.logger)
	for _, dest := range p.cfg.Destinations {
		page, err := p.createPage(ctx, dest, input)
		if page.ID != "" {
			outcome.Pages = append(outcome.Pages, page)
		}
		if err != nil {
			logging.WarnWithContext(logger, "notion publish failed", "publish_failure",
				logging.String("destination", dest.Name),
				logging.ErrorKind(err),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the database id and that the integration is shared with it"),
				logging.String("page_id", page.ID),
			)
			outcome.Failures = append(outcome.Failures, Failure{Destination: dest.Name, PageID: page.ID, Err: err})
			continue
		}
		logger.Info("notion page created",
			logging.String("destination", dest.Name),
			logging.String("page_id", page.ID),
		)
	}
	return outcome
}

type createPageRequest struct {
	Parent     map[string]string `json:"parent"`
	Properties map[string]any    `json:"properties"`
	Children   []block           `json:"children"`
}

type appendChildrenRequest struct {
	Children []block `json:"children"`
}

type pageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p *Publisher) properties(dest config.NotionDestination, input Input) map[string]any {
	title := strings.TrimSpace(input.Summary.Title)
	if title == "" {
		title = "Meeting " + input.TaskID
	}
	props := map[string]any{
		p.cfg.TitleProperty: map[string]any{"title": richTextItems(title)},
	}
	if input.MeetingDate != "" && p.cfg.DateProperty != "" {
		props[p.cfg.DateProperty] = map[string]any{"date": map[string]string{"start": input.MeetingDate}}
	}
	if dest.IncludeConsultant && input.ConsultantName != "" && p.cfg.ConsultantProperty != "" {
		props[p.cfg.ConsultantProperty] = map[string]any{"rich_text": richTextItems(input.ConsultantName)}
	}
	if dest.IncludeClient && input.ClientName != "" && p.cfg.ClientProperty != "" {
		props[p.cfg.ClientProperty] = map[string]any{"rich_text": richTextItems(input.ClientName)}
	}
	return props
}

func (p *Publisher) createPage(ctx context.Context, dest config.NotionDestination, input Input) (Page, error) {
	children := summaryBlocks(input.Summary)
	first := children[:min(len(children), p.batchSize)]
	body := createPageRequest{
		Parent:     map[string]string{"database_id": dest.DatabaseID},
		Properties: p.properties(dest, input),
		Children:   first,
	}
	resp, err := p.http.R().SetContext(ctx).SetBody(body).Post("/pages")
	if err != nil {
		return Page{}, services.Wrap(services.ErrTransient, "publish", dest.Name, "create page request failed", err)
	}
	if err := classifyResponse(resp, dest.Name, "create page"); err != nil {
		return Page{}, err
	}
	var created pageResponse
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return Page{}, services.Wrap(services.ErrExternalTool, "publish", dest.Name, "decode page response", err)
	}
	page := Page{Destination: dest.Name, ID: created.ID, URL: created.URL}
	for start := len(first); start < len(children); start += p.batchSize {
		end := min(start+p.batchSize, len(children))
		resp, err := p.http.R().
			SetContext(ctx).
			SetBody(appendChildrenRequest{Children: children[start:end]}).
			Patch("/blocks/" + created.ID + "/children")
		if err != nil {
			page.Partial = true
			return page, services.Wrap(services.ErrTransient, "publish", dest.Name, "append blocks request failed", err)
		}
		if err := classifyResponse(resp, dest.Name, "append blocks"); err != nil {
			page.Partial = true
			return page, err
		}
	}
	return page, nil
}

func classifyResponse(resp *resty.Response, destination, operation string) error {
	if resp.IsSuccess() {
		return nil
	}
	var apiErr errorResponse
	_ = json.Unmarshal(resp.Body(), &apiErr)
	message := fmt.Sprintf("%s returned %d", operation, resp.StatusCode())
	if apiErr.Code != "" {
		message = fmt.Sprintf("%s returned %d %s: %s", operation, resp.StatusCode(), apiErr.Code, apiErr.Message)
	}
	marker := services.ErrExternalTool
	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		marker = services.ErrUnauthorized
	case resp.StatusCode() == http.StatusNotFound:
		marker = services.ErrNotFound
	case resp.StatusCode() == http.StatusBadRequest:
		marker = services.ErrValidation
	case resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500:
		marker = services.ErrTransient
	}
	return services.Wrap(marker, "publish", destination, message, nil)
}
