package extract

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
)

// skillKeywords holds the canonical display form of every skill the heuristic
// recognizes. Matching is case-insensitive on whole tokens.
var skillKeywords = []string{
	// Languages
	"Python", "JavaScript", "Java", "C++", "C#", "PHP", "Ruby", "Go", "Rust", "Swift",
	"Kotlin", "TypeScript", "Scala", "R", "MATLAB", "SQL", "HTML", "CSS",
	// Frameworks
	"React", "Angular", "Vue", "Node.js", "Express", "Django", "Flask", "Spring",
	"Laravel", "Rails", "ASP.NET", "jQuery", "Bootstrap", "Tailwind",
	// Databases
	"MySQL", "PostgreSQL", "MongoDB", "Redis", "SQLite", "Oracle", "Cassandra",
	"Elasticsearch", "DynamoDB",
	// Cloud and ops
	"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Jenkins", "Git", "GitHub",
	"GitLab", "Bitbucket", "Terraform", "Ansible", "Nginx", "Apache",
	// Tooling
	"Linux", "Windows", "macOS", "Bash", "PowerShell", "Vim", "VSCode",
	"IntelliJ", "Eclipse", "Postman", "Jira", "Confluence", "Slack",
	// Data and ML
	"Pandas", "NumPy", "scikit-learn", "TensorFlow", "PyTorch", "Keras",
	"OpenCV", "Matplotlib", "Seaborn", "Jupyter", "Tableau", "PowerBI",
}

var educationKeywords = []string{
	"university", "college", "institute", "school", "bachelor", "master",
	"phd", "degree", "diploma", "b.s.", "m.s.", "b.sc", "m.sc",
}

// degreeNames is ordered so the first match wins deterministically.
var degreeNames = []struct{ keyword, name string }{
	{"bachelor", "Bachelor"},
	{"master", "Master"},
	{"phd", "PhD"},
	{"b.sc", "B.Sc"},
	{"m.sc", "M.Sc"},
	{"b.s.", "B.S."},
	{"m.s.", "M.S."},
	{"diploma", "Diploma"},
}

var summaryHeaders = map[string]bool{
	"summary":              true,
	"about":                true,
	"about me":             true,
	"profile":              true,
	"objective":            true,
	"professional summary": true,
}

var sectionHeaders = map[string]bool{
	"experience":      true,
	"work experience": true,
	"employment":      true,
	"education":       true,
	"skills":          true,
	"projects":        true,
	"certifications":  true,
	"contact":         true,
	"languages":       true,
}

var (
	emailRe     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe     = regexp.MustCompile(`\+?\(?\d[\d\s().-]{5,17}\d`)
	dateRangeRe = regexp.MustCompile(`(?i)((?:[A-Za-z]+\s+)?\d{4})\s*[-–—]\s*((?:[A-Za-z]+\s+)?\d{4}|present|current|now)`)
	yearRe      = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	nameRe      = regexp.MustCompile(`^[A-Z][a-zA-Z'.-]*(?:\s+[A-Z][a-zA-Z'.-]*){1,3}$`)
)

const (
	maxExperience  = 5
	maxEducation   = 3
	maxDescription = 200
	maxSummary     = 600
)

// Heuristic extracts fields with line and keyword patterns. It needs no
// network and no credentials, and it never returns an error: when nothing
// matches, the record comes back empty.
type Heuristic struct {
	logger *slog.Logger
}

// NewHeuristic creates the pattern-matching strategy.
func NewHeuristic(opts ...Option) *Heuristic {
	return newHeuristic(newConfig(opts))
}

func newHeuristic(cfg *config) *Heuristic {
	return &Heuristic{logger: cfg.logger}
}

// Name identifies the strategy in logs.
func (*Heuristic) Name() string { return "heuristic" }

// Extract scans the text for contact details, skills, date-anchored
// experience lines, and degree-anchored education lines.
func (h *Heuristic) Extract(ctx context.Context, text string) (*portfolio.PartialRecord, error) {
	rec := &portfolio.PartialRecord{Source: portfolio.SourceDocument}
	lines := splitLines(text)

	rec.Name = findName(lines)
	rec.Contact.Email = emailRe.FindString(text)
	rec.Contact.Phone = findPhone(text, rec.Contact.Email)
	rec.Summary = findSummary(lines)
	rec.Skills = findSkills(text)
	rec.Experience = findExperience(lines)
	rec.Education = findEducation(lines)

	h.logger.DebugContext(ctx, "heuristic extraction complete",
		"skills", len(rec.Skills), "experience", len(rec.Experience), "education", len(rec.Education))
	return rec, nil
}

func splitLines(text string) []string {
	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return lines
}

// findName takes the first short capitalized line near the top, skipping
// anything that carries digits or an email.
func findName(lines []string) string {
	seen := 0
	for _, line := range lines {
		if line == "" {
			continue
		}
		seen++
		if seen > 5 {
			return ""
		}
		if len(line) > 60 || strings.ContainsAny(line, "@0123456789") {
			continue
		}
		if sectionHeaders[strings.ToLower(line)] || summaryHeaders[strings.ToLower(line)] {
			continue
		}
		if nameRe.MatchString(line) {
			return line
		}
	}
	return ""
}

// findPhone ignores digit runs that are part of the already-matched email.
func findPhone(text, email string) string {
	for _, m := range phoneRe.FindAllString(text, -1) {
		digits := 0
		for _, r := range m {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if digits < 7 || digits > 15 {
			continue
		}
		if email != "" && strings.Contains(email, strings.TrimSpace(m)) {
			continue
		}
		return strings.TrimSpace(m)
	}
	return ""
}

func findSummary(lines []string) string {
	var b strings.Builder
	collecting := false
	for _, line := range lines {
		header := strings.ToLower(strings.TrimSuffix(line, ":"))
		switch {
		case summaryHeaders[header]:
			collecting = true
		case collecting && line == "" && b.Len() == 0:
			// blank directly under the header
		case collecting && (line == "" || sectionHeaders[header]):
			return strings.TrimSpace(b.String())
		case collecting:
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(line)
			if b.Len() >= maxSummary {
				return strings.TrimSpace(b.String()[:maxSummary])
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func findSkills(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, skill := range skillKeywords {
		if containsToken(lower, strings.ToLower(skill)) {
			found = append(found, skill)
		}
	}
	return found
}

// containsToken reports whether needle occurs in haystack bounded by
// non-alphanumeric runes. A regexp \b misfires on tokens like "c++" and
// "node.js", so boundaries are checked by hand.
func containsToken(haystack, needle string) bool {
	for start := 0; ; {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(needle)
		beforeOK := i == 0 || !isWordRune(rune(haystack[i-1]))
		afterOK := end == len(haystack) || !isWordRune(rune(haystack[end]))
		if beforeOK && afterOK {
			return true
		}
		start = end
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// findExperience anchors entries on date-range lines. The remainder of the
// line becomes the description; a "Title at Organization" shape is split
// when present.
func findExperience(lines []string) []portfolio.Experience {
	var out []portfolio.Experience
	for _, line := range lines {
		if len(out) >= maxExperience {
			break
		}
		loc := dateRangeRe.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		duration := strings.TrimSpace(line[loc[2]:loc[3]]) + " - " + strings.TrimSpace(line[loc[4]:loc[5]])
		rest := strings.TrimSpace(line[:loc[0]] + " " + line[loc[1]:])
		rest = strings.Trim(rest, " \t:-–—|,;")
		if len(rest) < 10 {
			continue
		}
		if len(rest) > maxDescription {
			rest = rest[:maxDescription]
		}
		exp := portfolio.Experience{Duration: duration, Description: rest}
		if title, org, ok := splitTitleOrg(rest); ok {
			exp.Title = title
			exp.Organization = org
		}
		out = append(out, exp)
	}
	return out
}

func splitTitleOrg(s string) (title, org string, ok bool) {
	for _, sep := range []string{" at ", " @ "} {
		if i := strings.Index(s, sep); i > 0 {
			title = strings.TrimSpace(s[:i])
			org = strings.TrimSpace(s[i+len(sep):])
			if title != "" && org != "" && len(title) <= 80 && len(org) <= 80 {
				return title, org, true
			}
		}
	}
	return "", "", false
}

// findEducation keeps lines that carry a degree or institution keyword,
// pulling out a canonical degree name and a year when present.
func findEducation(lines []string) []portfolio.Education {
	var out []portfolio.Education
	for _, line := range lines {
		if len(out) >= maxEducation {
			break
		}
		if len(line) < 10 {
			continue
		}
		lower := strings.ToLower(line)
		matched := false
		for _, kw := range educationKeywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		edu := portfolio.Education{Institution: line}
		if len(edu.Institution) > 100 {
			edu.Institution = edu.Institution[:100]
		}
		for _, d := range degreeNames {
			if strings.Contains(lower, d.keyword) {
				edu.Degree = d.name
				break
			}
		}
		edu.Year = yearRe.FindString(line)
		out = append(out, edu)
	}
	return out
}
