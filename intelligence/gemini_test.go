package intelligence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"video-incident-service/models"
)

func geminiReply(text string) string {
	return `{"candidates": [{"content": {"parts": [{"text": ` + jsonString(text) + `}]}}]}`
}

func jsonString(s string) string {
	out := `"`
	for _, r := range s {
		switch r {
		case '"':
			out += `\"`
		case '\\':
			out += `\\`
		case '\n':
			out += `\n`
		case '\t':
			out += `\t`
		default:
			out += string(r)
		}
	}
	return out + `"`
}

func testVideo() *models.VideoFile {
	return &models.VideoFile{Name: "clip.mp4", MIME: "video/mp4", Size: 3, Data: []byte{1, 2, 3}}
}

func newTestAnalyzer(t *testing.T, handler http.HandlerFunc) (*GeminiAnalyzer, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g := NewGeminiAnalyzer("test-key", "test-model", 50*1024*1024)
	g.baseURL = server.URL
	return g, server
}

func TestGeminiAnalyzeSuccess(t *testing.T) {
	g, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method %s", r.Method)
		}
		w.Write([]byte(geminiReply(validReply)))
	})

	result, err := g.Analyze(context.Background(), testVideo())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Summary == "" || len(result.Incidents) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestGeminiAnalyzeFencedReply(t *testing.T) {
	g, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply("```json\n" + validReply + "\n```")))
	})

	result, err := g.Analyze(context.Background(), testVideo())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(result.Incidents) != 2 {
		t.Fatalf("got %d incidents", len(result.Incidents))
	}
}

func TestGeminiAnalyzeMalformedReply(t *testing.T) {
	g, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply("no incidents to speak of")))
	})

	_, err := g.Analyze(context.Background(), testVideo())
	if kind := models.AnalysisKindOf(err); kind != models.ErrKindMalformedResponse {
		t.Fatalf("got kind %s, want malformed-response", kind)
	}
}

func TestGeminiAnalyzeStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   models.AnalysisErrorKind
	}{
		{http.StatusUnauthorized, models.ErrKindInvalidCredentials},
		{http.StatusForbidden, models.ErrKindInvalidCredentials},
		{http.StatusTooManyRequests, models.ErrKindQuotaExceeded},
		{http.StatusInternalServerError, models.ErrKindGeneric},
	}

	for _, tc := range cases {
		g, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"error": {"message": "upstream says no"}}`))
		})

		_, err := g.Analyze(context.Background(), testVideo())
		if kind := models.AnalysisKindOf(err); kind != tc.want {
			t.Errorf("status %d: got kind %s, want %s", tc.status, kind, tc.want)
		}
		if err == nil || err.Error() != "upstream says no" {
			t.Errorf("status %d: service message not surfaced: %v", tc.status, err)
		}
	}
}

func TestGeminiValidationFailsBeforeNetwork(t *testing.T) {
	calls := 0
	g, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(geminiReply(validReply)))
	})

	_, err := g.Analyze(context.Background(), &models.VideoFile{MIME: "text/plain", Data: []byte("x")})
	if kind := models.AnalysisKindOf(err); kind != models.ErrKindInvalidFileType {
		t.Fatalf("got kind %s", kind)
	}
	if calls != 0 {
		t.Fatal("validation failure must not reach the network")
	}
}

func TestGeminiMissingCredentials(t *testing.T) {
	g := NewGeminiAnalyzer("", "test-model", 50*1024*1024)

	_, err := g.Analyze(context.Background(), testVideo())
	if kind := models.AnalysisKindOf(err); kind != models.ErrKindMissingCredentials {
		t.Fatalf("got kind %s, want missing-credentials", kind)
	}
}
