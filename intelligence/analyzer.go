package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"video-incident-service/config"
	"video-incident-service/models"

	"github.com/google/uuid"
)

// analysisInstruction is the fixed instruction sent with every request.
// It names the severity taxonomy and the exact output schema the
// service must produce.
const analysisInstruction = `You are a security analyst reviewing surveillance footage. Analyze the attached video for violent or threatening incidents.

Severity definitions:
- "Low": verbal aggression, shouting, threats
- "Medium": physical altercation, pushing, shoving
- "High": weapons, severe assault, mob violence

Respond with a single JSON object and nothing else, using exactly this schema:
{
  "summary": "one paragraph describing the overall footage",
  "incidents": [
    {
      "timestamp": "MM:SS",
      "seconds": 0,
      "severity": "Low" | "Medium" | "High",
      "description": "what happens at this moment"
    }
  ]
}

Every incident must include all four fields. "seconds" is the offset from the start of the video as a non-negative integer. If the footage contains no incidents, return an empty incidents array.`

// Analyzer submits one video to the hosted inference service and
// decodes the structured result. Exactly one attempt is made per call;
// retry and cancellation policy belong to the caller.
type Analyzer interface {
	Analyze(ctx context.Context, video *models.VideoFile) (*models.AnalysisResult, error)
}

// NewAnalyzer selects the provider from configuration. Gemini is the
// default; OpenAI is available behind ANALYSIS_PROVIDER=openai.
func NewAnalyzer(cfg *config.Config) Analyzer {
	switch strings.ToLower(strings.TrimSpace(cfg.AnalysisProvider)) {
	case "openai":
		return NewOpenAIAnalyzer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.MaxAnalysisBytes)
	default:
		return NewGeminiAnalyzer(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxAnalysisBytes)
	}
}

// validateVideo enforces the analysis-call preconditions. Failures are
// raised before any network activity.
func validateVideo(video *models.VideoFile, maxBytes int64) error {
	if video == nil || len(video.Data) == 0 {
		return models.NewAnalysisError(models.ErrKindFileRead, "video file could not be read")
	}
	if !strings.HasPrefix(video.MIME, "video/") {
		return models.NewAnalysisError(models.ErrKindInvalidFileType,
			fmt.Sprintf("file type %q is not a video", video.MIME))
	}
	if int64(len(video.Data)) > maxBytes {
		return models.NewAnalysisError(models.ErrKindFileTooLarge,
			fmt.Sprintf("video is %d bytes, above the %d byte analysis limit", len(video.Data), maxBytes))
	}
	return nil
}

// jsonFenceRegex matches a ```json fenced block in a model reply.
var jsonFenceRegex = regexp.MustCompile("```(?:json|JSON)?\\s*\\n?([\\s\\S]*?)\\n?```")

// extractJSON pulls the JSON document out of a model reply that may be
// wrapped in markdown code fences or surrounding prose.
func extractJSON(content string) string {
	if matches := jsonFenceRegex.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end > start {
		return content[start : end+1]
	}
	return strings.TrimSpace(content)
}

type wireIncident struct {
	Timestamp   string `json:"timestamp"`
	Seconds     *int   `json:"seconds"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type wireResult struct {
	Summary   *string        `json:"summary"`
	Incidents []wireIncident `json:"incidents"`
}

// decodeResult parses and validates the service reply, synthesizing a
// locally-unique ID for each incident. The service does not supply IDs.
func decodeResult(content string) (*models.AnalysisResult, error) {
	raw := extractJSON(content)

	var parsed wireResult
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, models.WrapAnalysisError(models.ErrKindMalformedResponse,
			"analysis service did not return valid JSON", err)
	}
	if parsed.Summary == nil {
		return nil, models.NewAnalysisError(models.ErrKindMalformedResponse,
			"analysis response is missing the summary field")
	}
	if parsed.Incidents == nil {
		return nil, models.NewAnalysisError(models.ErrKindMalformedResponse,
			"analysis response is missing the incidents array")
	}

	incidents := make([]models.Incident, 0, len(parsed.Incidents))
	for i, inc := range parsed.Incidents {
		severity, err := models.ParseSeverity(inc.Severity)
		if err != nil {
			return nil, models.WrapAnalysisError(models.ErrKindMalformedResponse,
				fmt.Sprintf("incident %d has an invalid severity", i), err)
		}
		if inc.Seconds == nil || *inc.Seconds < 0 {
			return nil, models.NewAnalysisError(models.ErrKindMalformedResponse,
				fmt.Sprintf("incident %d has a missing or negative seconds value", i))
		}
		if strings.TrimSpace(inc.Timestamp) == "" || strings.TrimSpace(inc.Description) == "" {
			return nil, models.NewAnalysisError(models.ErrKindMalformedResponse,
				fmt.Sprintf("incident %d is missing required fields", i))
		}
		incidents = append(incidents, models.Incident{
			ID:          uuid.NewString(),
			Timestamp:   strings.TrimSpace(inc.Timestamp),
			Seconds:     *inc.Seconds,
			Severity:    severity,
			Description: inc.Description,
		})
	}

	return &models.AnalysisResult{
		Summary:   *parsed.Summary,
		Incidents: incidents,
	}, nil
}
