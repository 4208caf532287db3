// Package generation talks to the media providers behind the image and
// video endpoints. Neither provider touches account data.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultImageCount is how many images are produced when the caller does not ask for a number.
const DefaultImageCount = 4

// MaxImageCount caps a single request.
const MaxImageCount = 8

// ErrEmptyPrompt is returned when the prompt is blank.
var ErrEmptyPrompt = errors.New("prompt is required")

// ImageProvider turns a text prompt into image locators (URLs or data URIs).
type ImageProvider interface {
	Generate(ctx context.Context, prompt string, count int) ([]string, error)
	// Demo reports whether results are placeholders rather than generated images.
	Demo() bool
}

// PlaceholderImages returns deterministic stock images seeded by the prompt.
// It is used when no provider key is configured.
type PlaceholderImages struct{}

func (PlaceholderImages) Generate(ctx context.Context, prompt string, count int) ([]string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	count = clampCount(count)

	seed := escapeSeed(prompt)
	images := make([]string, count)
	for i := range images {
		images[i] = fmt.Sprintf("https://picsum.photos/seed/%s%d/800/1200", seed, i+1)
	}
	return images, nil
}

func (PlaceholderImages) Demo() bool { return true }

// GeminiImages calls the Gemini generateContent API and returns inline image
// parts as data URIs.
type GeminiImages struct {
	Endpoint string
	Model    string
	APIKey   string
	Client   *http.Client
}

const (
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel    = "gemini-1.5-pro"
)

func NewGeminiImages(endpoint, model, apiKey string) *GeminiImages {
	if endpoint == "" {
		endpoint = DefaultGeminiEndpoint
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiImages{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Model:    model,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string `json:"responseMimeType"`
		CandidateCount   int    `json:"candidateCount,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiImages) Generate(ctx context.Context, prompt string, count int) ([]string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	var reqBody geminiRequest
	reqBody.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	reqBody.GenerationConfig.ResponseMimeType = "image/png"
	reqBody.GenerationConfig.CandidateCount = clampCount(count)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode gemini request: %w", err)
	}

	// the key travels in a header so it never shows up in URLs or wrapped errors
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.Endpoint, url.PathEscape(g.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.APIKey)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	var images []string
	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			images = append(images, fmt.Sprintf("data:%s;base64,%s", mime, part.InlineData.Data))
		}
	}
	return images, nil
}

func (g *GeminiImages) Demo() bool { return false }

var seedUnescaper = strings.NewReplacer("+", "%20", "%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

// escapeSeed escapes like JavaScript's encodeURIComponent so seeds stay
// stable for links handed out before.
func escapeSeed(s string) string {
	return seedUnescaper.Replace(url.QueryEscape(s))
}

func clampCount(count int) int {
	if count <= 0 {
		return DefaultImageCount
	}
	if count > MaxImageCount {
		return MaxImageCount
	}
	return count
}
