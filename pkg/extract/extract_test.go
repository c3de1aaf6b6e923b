package extract

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const resumeText = `Jane Doe
jane.doe@example.com +1 (555) 010-0199
Summary
Seasoned backend engineer shipping Go services.
Experience
2019 - 2022 Senior Engineer at Initech
March 2016 - Present Platform Lead at Globex
Education
B.Sc in Computer Science, State University, 2015
Skills
Python, Go, PostgreSQL, Docker`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chatReply wraps a model reply in the chat-completions response envelope.
func chatReply(t *testing.T, content string) []byte {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal chat reply: %v", err)
	}
	return b
}

const aiContent = `{
	"contact": {"name": "Jane A. Doe", "email": "jane@corp.example", "phone": "+1 555 010 0199"},
	"headline": "Staff Engineer",
	"summary": "Backend systems.",
	"experience": [{"title": "Staff Engineer", "company": "Initech", "duration": "2019 - 2022", "description": "Built the billing pipeline."}],
	"education": [{"institution": "State University", "degree": "B.Sc", "field": "Computer Science", "year": "2015"}],
	"skills": ["Go", "Kubernetes"],
	"certifications": [{"name": "CKA", "issuer": "CNCF", "date": "2021", "link": ""}]
}`

func TestChainPrefersAI(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatReply(t, aiContent))
	}))
	defer srv.Close()

	chain := NewChain(
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithModel("test-model"),
		WithHTTPClient(srv.Client()),
		WithLogger(discardLogger()),
	)

	rec := chain.Extract(context.Background(), resumeText)

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
	// The AI record names a different person than the raw text, proving the
	// heuristic never ran.
	if rec.Name != "Jane A. Doe" {
		t.Errorf("Name = %q, want %q", rec.Name, "Jane A. Doe")
	}
	if rec.Headline != "Staff Engineer" {
		t.Errorf("Headline = %q, want %q", rec.Headline, "Staff Engineer")
	}
	if diff := cmp.Diff([]string{"Go", "Kubernetes"}, rec.Skills); diff != "" {
		t.Errorf("Skills mismatch (-want +got):\n%s", diff)
	}
	if len(rec.Certificates) != 1 || rec.Certificates[0].Name != "CKA" {
		t.Errorf("Certificates = %+v, want one CKA entry", rec.Certificates)
	}
}

func TestChainFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	chain := NewChain(
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithLogger(discardLogger()),
	)

	rec := chain.Extract(context.Background(), resumeText)

	if rec.Name != "Jane Doe" {
		t.Errorf("Name = %q, want heuristic %q", rec.Name, "Jane Doe")
	}
	if rec.Contact.Email != "jane.doe@example.com" {
		t.Errorf("Email = %q, want %q", rec.Contact.Email, "jane.doe@example.com")
	}
}

func TestChainFallsBackOnUnparseableReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatReply(t, "Sorry, I cannot help with that request."))
	}))
	defer srv.Close()

	chain := NewChain(
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithLogger(discardLogger()),
	)

	rec := chain.Extract(context.Background(), resumeText)

	if rec.Contact.Email != "jane.doe@example.com" {
		t.Errorf("Email = %q, want heuristic fallback", rec.Contact.Email)
	}
	if diff := cmp.Diff([]string{"Python", "Go", "PostgreSQL", "Docker"}, rec.Skills); diff != "" {
		t.Errorf("Skills mismatch (-want +got):\n%s", diff)
	}
}

func TestChainWithoutKeyIsHeuristicOnly(t *testing.T) {
	chain := NewChain(WithLogger(discardLogger()))
	if len(chain.strategies) != 1 {
		t.Fatalf("strategies = %d, want 1", len(chain.strategies))
	}
	if got := chain.strategies[0].Name(); got != "heuristic" {
		t.Errorf("strategy = %q, want heuristic", got)
	}
}

func TestAIFencedReplyRescued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatReply(t, "```json\n"+aiContent+"\n```"))
	}))
	defer srv.Close()

	ai := NewAI("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithLogger(discardLogger()))
	rec, err := ai.Extract(context.Background(), resumeText)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if rec.Name != "Jane A. Doe" {
		t.Errorf("Name = %q, want %q", rec.Name, "Jane A. Doe")
	}
}

func TestAIFailsClosedOnEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatReply(t, `{"contact": {"name": ""}, "skills": []}`))
	}))
	defer srv.Close()

	ai := NewAI("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithLogger(discardLogger()))
	if _, err := ai.Extract(context.Background(), resumeText); err == nil {
		t.Fatal("Extract() = nil error, want fail-closed error for empty payload")
	}
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
		head    string
	}{
		{"plain", `{"headline": "Engineer"}`, false, "Engineer"},
		{"fenced", "```json\n{\"headline\": \"Engineer\"}\n```", false, "Engineer"},
		{"bare fence", "```\n{\"headline\": \"Engineer\"}\n```", false, "Engineer"},
		{"prose wrapped", `Here is the data: {"headline": "Engineer"} hope this helps!`, false, "Engineer"},
		{"no json", "I could not parse the resume.", true, ""},
		{"broken json", `{"headline": "Engineer`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parsePayload(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.Headline != tt.head {
				t.Errorf("Headline = %q, want %q", p.Headline, tt.head)
			}
		})
	}
}

func TestHeuristicExtract(t *testing.T) {
	h := NewHeuristic(WithLogger(discardLogger()))
	rec, err := h.Extract(context.Background(), resumeText)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if rec.Name != "Jane Doe" {
		t.Errorf("Name = %q, want %q", rec.Name, "Jane Doe")
	}
	if rec.Contact.Email != "jane.doe@example.com" {
		t.Errorf("Email = %q, want %q", rec.Contact.Email, "jane.doe@example.com")
	}
	if rec.Contact.Phone != "+1 (555) 010-0199" {
		t.Errorf("Phone = %q, want %q", rec.Contact.Phone, "+1 (555) 010-0199")
	}
	if rec.Summary != "Seasoned backend engineer shipping Go services." {
		t.Errorf("Summary = %q", rec.Summary)
	}
	if diff := cmp.Diff([]string{"Python", "Go", "PostgreSQL", "Docker"}, rec.Skills); diff != "" {
		t.Errorf("Skills mismatch (-want +got):\n%s", diff)
	}

	if len(rec.Experience) != 2 {
		t.Fatalf("Experience = %d entries, want 2", len(rec.Experience))
	}
	first := rec.Experience[0]
	if first.Duration != "2019 - 2022" {
		t.Errorf("Duration = %q, want %q", first.Duration, "2019 - 2022")
	}
	if first.Title != "Senior Engineer" || first.Organization != "Initech" {
		t.Errorf("Title/Organization = %q/%q, want Senior Engineer/Initech", first.Title, first.Organization)
	}
	second := rec.Experience[1]
	if second.Duration != "March 2016 - Present" {
		t.Errorf("Duration = %q, want %q", second.Duration, "March 2016 - Present")
	}

	if len(rec.Education) != 1 {
		t.Fatalf("Education = %d entries, want 1", len(rec.Education))
	}
	edu := rec.Education[0]
	if edu.Degree != "B.Sc" {
		t.Errorf("Degree = %q, want B.Sc", edu.Degree)
	}
	if edu.Year != "2015" {
		t.Errorf("Year = %q, want 2015", edu.Year)
	}
	if !strings.Contains(edu.Institution, "State University") {
		t.Errorf("Institution = %q, want it to name State University", edu.Institution)
	}
}

func TestHeuristicEmptyText(t *testing.T) {
	h := NewHeuristic(WithLogger(discardLogger()))
	rec, err := h.Extract(context.Background(), "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !rec.Empty() {
		t.Errorf("record = %+v, want empty", rec)
	}
}

func TestChainAllStrategiesEmptyStillReturnsRecord(t *testing.T) {
	chain := NewChain(WithLogger(discardLogger()))
	rec := chain.Extract(context.Background(), "∅")
	if rec == nil {
		t.Fatal("Extract() = nil, want non-nil record")
	}
	if !rec.Empty() {
		t.Errorf("record = %+v, want empty", rec)
	}
}
