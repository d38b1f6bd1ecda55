// Package translate translates article titles through a pluggable backend,
// one title at a time, keeping every failure in place so results stay
// aligned with their input.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"google.golang.org/api/option"
	translatev2 "google.golang.org/api/translate/v2"
)

// Backend translates a single text.
type Backend interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, text, source, target string) (string, error)

func (f BackendFunc) Translate(ctx context.Context, text, source, target string) (string, error) {
	return f(ctx, text, source, target)
}

// Backend names accepted by NewBackend.
const (
	BackendGoogle = "google"
	BackendCloud  = "cloud"
)

// DefaultGoogleURL is the public endpoint used by Google's web widgets.
const DefaultGoogleURL = "https://translate.googleapis.com"

var (
	ErrUnknownBackend = errors.New("unknown translation backend")
	ErrMissingAPIKey  = errors.New("translation API key is required")
	ErrEmptyResponse  = errors.New("empty translation")
)

// NewBackend builds the named backend. The cloud backend needs an API key.
// A non-empty endpoint replaces the backend's default base URL.
func NewBackend(ctx context.Context, name, apiKey, endpoint string) (Backend, error) {
	switch strings.ToLower(name) {
	case "", BackendGoogle:
		if endpoint == "" {
			endpoint = DefaultGoogleURL
		}
		return NewGoogleBackend(endpoint), nil
	case BackendCloud:
		if apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		opts := []option.ClientOption{option.WithAPIKey(apiKey)}
		if endpoint != "" {
			opts = append(opts, option.WithEndpoint(endpoint))
		}
		return NewCloudBackend(ctx, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// GoogleBackend calls the keyless translate_a/single endpoint.
type GoogleBackend struct {
	client *resty.Client
}

// NewGoogleBackend creates a backend talking to baseURL.
func NewGoogleBackend(baseURL string) *GoogleBackend {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	return &GoogleBackend{client: client}
}

// Translate sends one text and joins the translated segments.
func (b *GoogleBackend) Translate(ctx context.Context, text, source, target string) (string, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     source,
			"tl":     target,
			"dt":     "t",
			"q":      text,
		}).
		Get("/translate_a/single")
	if err != nil {
		return "", fmt.Errorf("failed to call translation endpoint: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("HTTP error: %s", resp.Status())
	}

	return parseGoogleResponse(resp.Body())
}

// parseGoogleResponse reads the nested array response. The first element is
// a list of segments whose first entry is the translated text.
func parseGoogleResponse(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode translation: %w", err)
	}
	if len(payload) == 0 {
		return "", ErrEmptyResponse
	}

	var segments [][]any
	if err := json.Unmarshal(payload[0], &segments); err != nil {
		return "", fmt.Errorf("failed to decode translation segments: %w", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// CloudBackend uses the Cloud Translation v2 API.
type CloudBackend struct {
	service *translatev2.Service
}

// NewCloudBackend creates a Cloud Translation client.
func NewCloudBackend(ctx context.Context, opts ...option.ClientOption) (*CloudBackend, error) {
	service, err := translatev2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation service: %w", err)
	}
	return &CloudBackend{service: service}, nil
}

func (b *CloudBackend) Translate(ctx context.Context, text, source, target string) (string, error) {
	call := b.service.Translations.List([]string{text}, target).Format("text").Context(ctx)
	if source != "" {
		call = call.Source(source)
	}

	resp, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("failed to call translation API: %w", err)
	}
	if len(resp.Translations) == 0 {
		return "", ErrEmptyResponse
	}

	out := strings.TrimSpace(html.UnescapeString(resp.Translations[0].TranslatedText))
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
