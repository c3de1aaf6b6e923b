package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// systemPrompt pins the model to one exact JSON object. Anything outside the
// schema is discarded by the typed unmarshal; an object carrying no
// recognized data fails validation and the heuristic strategy takes over.
const systemPrompt = `You are a resume parser. Extract structured data from the resume text you are given.
Respond with exactly one JSON object and nothing else, using this schema:
{
  "contact": {"name": "", "email": "", "phone": ""},
  "headline": "",
  "summary": "",
  "experience": [{"title": "", "company": "", "duration": "", "description": ""}],
  "education": [{"institution": "", "degree": "", "field": "", "year": ""}],
  "skills": [""],
  "certifications": [{"name": "", "issuer": "", "date": "", "link": ""}]
}
Use empty strings and empty arrays for anything the resume does not state. Never invent data.`

// AI extracts fields by sending resume text to an OpenAI-compatible
// chat-completions service and parsing the JSON reply.
type AI struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	baseURL    string
	model      string
}

// NewAI creates the AI strategy. The base URL defaults to OpenRouter; any
// OpenAI-compatible endpoint works.
func NewAI(apiKey string, opts ...Option) *AI {
	cfg := newConfig(opts)
	cfg.apiKey = apiKey
	return newAI(cfg)
}

func newAI(cfg *config) *AI {
	baseURL := cfg.baseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &AI{
		httpClient: cfg.httpClient,
		logger:     cfg.logger,
		apiKey:     cfg.apiKey,
		baseURL:    baseURL,
		model:      cfg.model,
	}
}

// Name identifies the strategy in logs.
func (*AI) Name() string { return "ai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float32         `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// aiPayload mirrors the schema demanded by systemPrompt.
type aiPayload struct {
	Contact struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"contact"`
	Headline   string `json:"headline"`
	Summary    string `json:"summary"`
	Experience []struct {
		Title       string `json:"title"`
		Company     string `json:"company"`
		Duration    string `json:"duration"`
		Description string `json:"description"`
	} `json:"experience"`
	Education []struct {
		Institution string `json:"institution"`
		Degree      string `json:"degree"`
		Field       string `json:"field"`
		Year        string `json:"year"`
	} `json:"education"`
	Skills         []string `json:"skills"`
	Certifications []struct {
		Name   string `json:"name"`
		Issuer string `json:"issuer"`
		Date   string `json:"date"`
		Link   string `json:"link"`
	} `json:"certifications"`
}

// Extract sends the text to the model and maps the validated reply. Any
// transport failure, malformed JSON, or empty extraction is an error — this
// strategy fails closed rather than fabricate.
func (a *AI) Extract(ctx context.Context, text string) (*portfolio.PartialRecord, error) {
	if a.apiKey == "" {
		return nil, errors.New("no api key configured")
	}

	reply, err := a.ask(ctx, text)
	if err != nil {
		return nil, err
	}

	payload, err := parsePayload(reply)
	if err != nil {
		return nil, err
	}

	rec := payloadToRecord(payload)
	if rec.Empty() {
		return nil, errors.New("model reply carried no recognized fields")
	}
	a.logger.DebugContext(ctx, "ai extraction complete",
		"skills", len(rec.Skills), "experience", len(rec.Experience), "education", len(rec.Education))
	return rec, nil
}

func (a *AI) ask(ctx context.Context, text string) (string, error) {
	model := a.model
	if model == "" {
		model = "qwen/qwen2.5-32b-instruct"
	}
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    0.2,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // intentional

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completions HTTP %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices in chat response")
	}
	return out.Choices[0].Message.Content, nil
}

// parsePayload unmarshals the model reply, tolerating markdown fences and
// prose around the object by rescuing the outermost brace window.
func parsePayload(reply string) (*aiPayload, error) {
	raw := strings.TrimSpace(reply)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var payload aiPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("model reply is not JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
			return nil, fmt.Errorf("model reply is not JSON: %w", err)
		}
	}
	return &payload, nil
}

func payloadToRecord(p *aiPayload) *portfolio.PartialRecord {
	rec := &portfolio.PartialRecord{
		Source:   portfolio.SourceDocument,
		Name:     strings.TrimSpace(p.Contact.Name),
		Headline: strings.TrimSpace(p.Headline),
		Summary:  strings.TrimSpace(p.Summary),
		Contact: portfolio.Contact{
			Email: strings.TrimSpace(p.Contact.Email),
			Phone: strings.TrimSpace(p.Contact.Phone),
		},
	}

	for _, s := range p.Skills {
		if s = strings.TrimSpace(s); s != "" {
			rec.Skills = append(rec.Skills, s)
		}
	}
	for _, e := range p.Experience {
		if e.Title == "" && e.Company == "" {
			continue
		}
		rec.Experience = append(rec.Experience, portfolio.Experience{
			Title:        strings.TrimSpace(e.Title),
			Organization: strings.TrimSpace(e.Company),
			Duration:     strings.TrimSpace(e.Duration),
			Description:  strings.TrimSpace(e.Description),
		})
	}
	for _, e := range p.Education {
		if e.Institution == "" && e.Degree == "" {
			continue
		}
		rec.Education = append(rec.Education, portfolio.Education{
			Institution: strings.TrimSpace(e.Institution),
			Degree:      strings.TrimSpace(e.Degree),
			Field:       strings.TrimSpace(e.Field),
			Year:        strings.TrimSpace(e.Year),
		})
	}
	for _, c := range p.Certifications {
		if c.Name == "" {
			continue
		}
		rec.Certificates = append(rec.Certificates, portfolio.Certificate{
			Name:   strings.TrimSpace(c.Name),
			Issuer: strings.TrimSpace(c.Issuer),
			Date:   strings.TrimSpace(c.Date),
			Link:   strings.TrimSpace(c.Link),
		})
	}
	return rec
}
