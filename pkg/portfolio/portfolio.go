// Package portfolio defines the common types for multi-source profile aggregation.
package portfolio

import (
	"errors"
)

// Common errors returned by acquisition packages.
var (
	ErrNoInput           = errors.New("no input provided")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrCorruptFile       = errors.New("corrupt document")
	ErrNoEligibleAccount = errors.New("no eligible account")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrLoginFailed       = errors.New("login failed")
	ErrChallengeBlocked  = errors.New("blocked by security challenge")
	ErrManualAction      = errors.New("manual action required")
	ErrTimeout           = errors.New("timed out")
	ErrNoCookies         = errors.New("no cookies available")
)

// Source identifies which acquisition path produced a record.
type Source string

// Source constants in fixed priority order: document > social > api.
const (
	SourceDocument Source = "document"
	SourceSocial   Source = "social"
	SourceAPI      Source = "api"
)

// Experience is one position held: title at an organization over a duration.
type Experience struct {
	Title        string `json:"title,omitempty"`
	Organization string `json:"organization,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Education is one degree or program attended.
type Education struct {
	Institution string `json:"institution,omitempty"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Year        string `json:"year,omitempty"`
}

// Certificate is one professional certification.
type Certificate struct {
	Name   string `json:"name,omitempty"`
	Issuer string `json:"issuer,omitempty"`
	Date   string `json:"date,omitempty"`
	Link   string `json:"link,omitempty"`
}

// Project is one repository or portfolio project. Only the API path
// produces these; resumes and social profiles carry no repository metadata.
type Project struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Link        string   `json:"link,omitempty"`
	Repo        string   `json:"repo,omitempty"`
	Stars       int      `json:"stars"`
	Tags        []string `json:"tags,omitempty"`
}

// Contact holds optional contact details.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PartialRecord is one source's possibly-incomplete extraction result,
// prior to reconciliation. Empty fields mean "this source had nothing",
// never "confirmed absent".
type PartialRecord struct {
	Source       Source        `json:"source,omitempty"`
	Name         string        `json:"name,omitempty"`
	Headline     string        `json:"headline,omitempty"`
	Summary      string        `json:"summary,omitempty"`
	Experience   []Experience  `json:"experience,omitempty"`
	Skills       []string      `json:"skills,omitempty"`
	Education    []Education   `json:"education,omitempty"`
	Certificates []Certificate `json:"certificates,omitempty"`
	Projects     []Project     `json:"projects,omitempty"`
	Contact      Contact       `json:"contact,omitzero"`
}

// SourceStatus reports one acquisition path's outcome to the rendering layer,
// so the UI can prompt for gaps instead of presenting a silently empty field.
type SourceStatus struct {
	Source Source `json:"source"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Record is the canonical merged output. List fields are always non-nil so
// they marshal as [] rather than null. Constructed fresh per request by the
// reconciliation engine; acquisition components never mutate it.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Record struct {
	Name     string `json:"name,omitempty"`
	Headline string `json:"headline,omitempty"`
	Summary  string `json:"summary,omitempty"`

	Experience   []Experience  `json:"experience"`
	Skills       []string      `json:"skills"`
	Projects     []Project     `json:"projects"`
	Education    []Education   `json:"education"`
	Certificates []Certificate `json:"certificates"`

	Contact Contact `json:"contact,omitzero"`

	// Per-source acquisition outcomes, in document/social/api order.
	Sources []SourceStatus `json:"sources,omitempty"`
}

// NewRecord returns an empty Record with all list fields initialized.
func NewRecord() *Record {
	return &Record{
		Experience:   []Experience{},
		Skills:       []string{},
		Projects:     []Project{},
		Education:    []Education{},
		Certificates: []Certificate{},
	}
}

// Empty reports whether the partial record carries no extracted data at all.
func (p *PartialRecord) Empty() bool {
	if p == nil {
		return true
	}
	return p.Name == "" && p.Headline == "" && p.Summary == "" &&
		len(p.Experience) == 0 && len(p.Skills) == 0 && len(p.Education) == 0 &&
		len(p.Certificates) == 0 && len(p.Projects) == 0 &&
		p.Contact.Email == "" && p.Contact.Phone == ""
}
