package mailer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/stockledger/internal/config"
	"github.com/mamadbah2/stockledger/internal/domain/models"
)

// APIClient posts alert e-mails to an HTTP mail delivery API.
type APIClient struct {
	httpClient *resty.Client
	from       string
	to         string
}

// NewClient builds a mail API client. to is the single alert recipient.
func NewClient(cfg config.MailConfig, to string) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.APIURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	if cfg.APIToken != "" {
		restyClient.SetAuthToken(cfg.APIToken)
	}

	return &APIClient{
		httpClient: restyClient,
		from:       cfg.From,
		to:         to,
	}
}

// SendEmailRequest is the JSON body accepted by the mail API.
type SendEmailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// SendEmailResponse mirrors a successful API response.
type SendEmailResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Send delivers n as a plain-text e-mail.
func (c *APIClient) Send(ctx context.Context, n models.Notification) error {
	_, err := c.SendEmail(ctx, SendEmailRequest{
		From:    c.from,
		To:      c.to,
		Subject: n.Subject,
		Text:    n.Body,
	})
	return err
}

// SendEmail posts one message.
func (c *APIClient) SendEmail(ctx context.Context, req SendEmailRequest) (*SendEmailResponse, error) {
	result := new(SendEmailResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		SetError(apiErr).
		Post("/messages")
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		code := resp.StatusCode()
		if apiErr.Code != 0 {
			code = apiErr.Code
		}
		return nil, fmt.Errorf("mail api error: code=%d, message=%s", code, apiErr.Message)
	}

	return result, nil
}
