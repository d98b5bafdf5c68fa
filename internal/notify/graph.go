package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	graphScope  = "https://graph.microsoft.com/.default"
	mailTimeout = 15 * time.Second
)

// GraphConfig configures a GraphMailer.
type GraphConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string // e.g. https://graph.microsoft.com/v1.0
	FromUser     string
}

// GraphMailer sends mail through the Microsoft Graph sendMail API. The
// service credential is obtained with the OAuth2 client credentials grant;
// the token source caches it until expiry.
type GraphMailer struct {
	cfg    GraphConfig
	client *http.Client
	logger *zap.Logger
}

// NewGraphMailer constructs a GraphMailer. base is the transport used for
// both token and mail calls; nil uses a client with a fixed timeout.
func NewGraphMailer(cfg GraphConfig, base *http.Client, logger *zap.Logger) *GraphMailer {
	if base == nil {
		base = &http.Client{Timeout: mailTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{graphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, cc.TokenSource(ctx))
	client.Timeout = mailTimeout
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GraphMailer{cfg: cfg, client: client, logger: logger}
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphSendMail struct {
	Message struct {
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		ToRecipients []graphAddress `json:"toRecipients"`
	} `json:"message"`
	SaveToSentItems bool `json:"saveToSentItems"`
}

// Send implements Notifier.
func (m *GraphMailer) Send(ctx context.Context, msg Message) error {
	var payload graphSendMail
	payload.Message.Subject = msg.Subject
	payload.Message.Body.ContentType = "Text"
	payload.Message.Body.Content = msg.Body
	for _, to := range msg.To {
		var a graphAddress
		a.EmailAddress.Address = to
		payload.Message.ToRecipients = append(payload.Message.ToRecipients, a)
	}
	payload.SaveToSentItems = true

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", m.cfg.BaseURL, url.PathEscape(m.cfg.FromUser))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("send mail: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	m.logger.Debug("graph sendMail accepted", zap.String("booking_id", msg.BookingID), zap.Int("status", resp.StatusCode))
	return nil
}
