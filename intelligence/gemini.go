package intelligence

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"video-incident-service/models"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiAnalyzer talks to the Gemini generateContent API with the video
// attached inline.
type GeminiAnalyzer struct {
	apiKey     string
	model      string
	maxBytes   int64
	baseURL    string
	httpClient *http.Client
}

func NewGeminiAnalyzer(apiKey, model string, maxBytes int64) *GeminiAnalyzer {
	return &GeminiAnalyzer{
		apiKey:   strings.TrimSpace(apiKey),
		model:    strings.TrimSpace(model),
		maxBytes: maxBytes,
		baseURL:  geminiBaseURL,
		httpClient: &http.Client{
			// Inference on a full video upload can run long.
			Timeout: 3 * time.Minute,
		},
	}
}

func (g *GeminiAnalyzer) Enabled() bool {
	return g != nil && g.apiKey != ""
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze submits the video in a single generateContent call and decodes
// the structured reply. One attempt, no retry.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, video *models.VideoFile) (*models.AnalysisResult, error) {
	if err := validateVideo(video, g.maxBytes); err != nil {
		return nil, err
	}
	if !g.Enabled() {
		return nil, models.NewAnalysisError(models.ErrKindMissingCredentials,
			"analysis API key is not configured")
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{Text: analysisInstruction},
					{InlineData: &geminiInlineData{
						MIMEType: video.MIME,
						Data:     base64.StdEncoding.EncodeToString(video.Data),
					}},
				},
			},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.25,
			MaxOutputTokens:  4096,
			ResponseMIMEType: "application/json",
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, models.WrapAnalysisError(models.ErrKindGeneric, "failed to encode analysis request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, models.WrapAnalysisError(models.ErrKindGeneric, "failed to build analysis request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, models.WrapAnalysisError(models.ErrKindGeneric, "analysis request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, models.WrapAnalysisError(models.ErrKindGeneric, "failed to read analysis response", err)
	}

	var parsed geminiResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := fmt.Sprintf("analysis service returned HTTP %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, models.NewAnalysisError(models.ErrKindInvalidCredentials, message)
		case http.StatusTooManyRequests:
			return nil, models.NewAnalysisError(models.ErrKindQuotaExceeded, message)
		default:
			return nil, models.NewAnalysisError(models.ErrKindGeneric, message)
		}
	}

	if len(parsed.Candidates) == 0 {
		return nil, models.NewAnalysisError(models.ErrKindMalformedResponse,
			"analysis service returned no candidates")
	}

	var b strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return nil, models.NewAnalysisError(models.ErrKindMalformedResponse,
			"analysis service returned an empty reply")
	}

	return decodeResult(b.String())
}
