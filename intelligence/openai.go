package intelligence

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"video-incident-service/models"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAnalyzer is the alternate provider behind ANALYSIS_PROVIDER=openai.
// The video travels as a base64 data URL part of a multimodal message.
type OpenAIAnalyzer struct {
	cli      *openai.Client
	apiKey   string
	model    string
	maxBytes int64
}

func NewOpenAIAnalyzer(apiKey, model string, maxBytes int64) *OpenAIAnalyzer {
	var cli *openai.Client
	if apiKey != "" {
		cli = openai.NewClient(apiKey)
	}
	return &OpenAIAnalyzer{
		cli:      cli,
		apiKey:   apiKey,
		model:    model,
		maxBytes: maxBytes,
	}
}

func (o *OpenAIAnalyzer) Analyze(ctx context.Context, video *models.VideoFile) (*models.AnalysisResult, error) {
	if err := validateVideo(video, o.maxBytes); err != nil {
		return nil, err
	}
	if o.cli == nil {
		return nil, models.NewAnalysisError(models.ErrKindMissingCredentials,
			"analysis API key is not configured")
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", video.MIME,
		base64.StdEncoding.EncodeToString(video.Data))

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: analysisInstruction},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		MaxTokens:   4096,
		Temperature: 0.25,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, models.NewAnalysisError(models.ErrKindMalformedResponse,
			"analysis service returned no choices")
	}

	return decodeResult(resp.Choices[0].Message.Content)
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return models.WrapAnalysisError(models.ErrKindInvalidCredentials, apiErr.Message, err)
		case http.StatusTooManyRequests:
			return models.WrapAnalysisError(models.ErrKindQuotaExceeded, apiErr.Message, err)
		default:
			return models.WrapAnalysisError(models.ErrKindGeneric, apiErr.Message, err)
		}
	}
	return models.WrapAnalysisError(models.ErrKindGeneric, "analysis request failed", err)
}
