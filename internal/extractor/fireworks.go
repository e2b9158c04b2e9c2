package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docex/internal/config"
	"docex/internal/model"
)

// maxErrorBody caps how much of a failed response body ends up in job errors.
const maxErrorBody = 2048

// FireworksClient implements Extractor against an OpenAI-compatible
// chat/completions endpoint (Fireworks AI by default).
// It is safe for concurrent use by multiple goroutines.
type FireworksClient struct {
	cfg        config.FireworksConfig
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewFireworksClient builds a client whose transport is instrumented with OpenTelemetry.
func NewFireworksClient(cfg config.FireworksConfig, log logrus.FieldLogger) *FireworksClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &FireworksClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log.WithField("component", "fireworks_client"),
	}
}

var _ Extractor = (*FireworksClient)(nil)

type chatRequest struct {
	Model            string        `json:"model"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	TopK             int           `json:"top_k"`
	PresencePenalty  float64       `json:"presence_penalty"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	Temperature      float64       `json:"temperature"`
	Messages         []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends the image as a base64 data URL and parses the model's answer.
func (c *FireworksClient) Extract(ctx context.Context, image []byte, filename string) (*model.ExtractionResult, error) {
	start := time.Now()
	mimeType := MimeType(filename)
	log := c.log.WithFields(logrus.Fields{"filename": filename, "model": c.cfg.Model})
	log.WithFields(logrus.Fields{"image_bytes": len(image), "mime_type": mimeType}).Info("extract_start")

	body := chatRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		TopP:        1,
		TopK:        40,
		Temperature: c.cfg.Temperature,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: extractionPrompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", body)
	if err != nil {
		log.WithError(err).WithField("elapsed_ms", time.Since(start).Milliseconds()).Error("extract_http_error")
		return nil, err
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, &Error{Kind: KindResponse, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == nil {
		return nil, &Error{Kind: KindResponse, Err: errors.New("response has no message content")}
	}

	res := buildResult(*cr.Choices[0].Message.Content)
	log.WithFields(logrus.Fields{
		"fields":        len(res.Fields),
		"document_type": derefOr(res.DocumentType, ""),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	}).Info("extract_ok")
	return res, nil
}

func (c *FireworksClient) post(ctx context.Context, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, &Error{Kind: KindRequest, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &Error{Kind: KindStatus, StatusCode: resp.StatusCode, Body: msg}
	}
	return data, nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
