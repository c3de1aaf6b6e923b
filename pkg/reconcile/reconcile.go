// Package reconcile merges the per-source partial records into one canonical
// profile. Scalar fields resolve by fixed source priority, list entries union
// across the document and social sources with near-duplicate collapsing, and
// projects come from the API path alone.
package reconcile

import (
	"cmp"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
)

// DefaultSimilarityThreshold is the Jaccard score at which two entries from
// different sources count as the same position or degree.
const DefaultSimilarityThreshold = 0.5

// Option configures an Engine.
type Option func(*Engine)

// WithSimilarityThreshold overrides the Jaccard cutoff for collapsing
// near-duplicate entries. Values outside (0, 1] keep the default.
func WithSimilarityThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t <= 1 {
			e.threshold = t
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source used to place ongoing entries when
// ordering by recency.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine merges partial records. It is stateless between calls and safe for
// concurrent use.
type Engine struct {
	logger    *slog.Logger
	now       func() time.Time
	threshold float64
}

// New builds an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:    slog.Default(),
		now:       time.Now,
		threshold: DefaultSimilarityThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Merge combines up to three partial records into one Record. Nil inputs are
// treated as empty, Merge never fails, and identical inputs always produce
// identical output. All-empty inputs yield a minimal Record with empty lists.
func (e *Engine) Merge(doc, social, api *portfolio.PartialRecord) *portfolio.Record {
	d, s, a := orEmpty(doc), orEmpty(social), orEmpty(api)

	rec := portfolio.NewRecord()
	rec.Name = firstNonEmpty(d.Name, s.Name, a.Name)
	rec.Headline = firstNonEmpty(d.Headline, s.Headline, a.Headline)
	rec.Summary = firstNonEmpty(d.Summary, s.Summary, a.Summary)
	rec.Contact.Email = firstNonEmpty(d.Contact.Email, s.Contact.Email, a.Contact.Email)
	rec.Contact.Phone = firstNonEmpty(d.Contact.Phone, s.Contact.Phone, a.Contact.Phone)

	rec.Skills = mergeSkills(d.Skills, s.Skills)
	rec.Experience = e.mergeExperience(d.Experience, s.Experience)
	rec.Education = e.mergeEducation(d.Education, s.Education)
	rec.Certificates = e.mergeCertificates(d.Certificates, s.Certificates)

	// Projects come from the API alone; resumes and social profiles carry no
	// repository metadata to merge against.
	rec.Projects = append(rec.Projects, a.Projects...)

	e.sortExperience(rec.Experience)
	e.sortEducation(rec.Education)
	return rec
}

func orEmpty(p *portfolio.PartialRecord) *portfolio.PartialRecord {
	if p == nil {
		return &portfolio.PartialRecord{}
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// mergeSkills unions the document and social skill lists, dropping
// case-insensitive duplicates while keeping the first-seen casing.
func mergeSkills(doc, social []string) []string {
	out := make([]string, 0, len(doc)+len(social))
	seen := make(map[string]bool, len(doc)+len(social))
	for _, skill := range slices.Concat(doc, social) {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
	}
	return out
}

func (e *Engine) mergeExperience(doc, social []portfolio.Experience) []portfolio.Experience {
	out := make([]portfolio.Experience, 0, len(doc)+len(social))
	for _, cand := range slices.Concat(doc, social) {
		if cand == (portfolio.Experience{}) {
			continue
		}
		merged := false
		for i := range out {
			if !e.sameExperience(out[i], cand) {
				continue
			}
			e.logger.Debug("collapsed duplicate experience",
				"title", cand.Title, "organization", cand.Organization)
			out[i] = richerExperience(out[i], cand)
			merged = true
			break
		}
		if !merged {
			out = append(out, cand)
		}
	}
	return out
}

// sameExperience reports whether two entries describe the same position.
// Entries carrying neither organization nor title compare by description.
func (e *Engine) sameExperience(a, b portfolio.Experience) bool {
	ak := tokens(a.Organization + " " + a.Title)
	bk := tokens(b.Organization + " " + b.Title)
	if len(ak) == 0 && len(bk) == 0 {
		return jaccard(tokens(a.Description), tokens(b.Description)) >= e.threshold
	}
	return jaccard(ak, bk) >= e.threshold
}

// richerExperience collapses two entries for the same position: the longer
// description wins and gaps fill from the other entry.
func richerExperience(a, b portfolio.Experience) portfolio.Experience {
	keep, spare := a, b
	if len(spare.Description) > len(keep.Description) ||
		(len(spare.Description) == len(keep.Description) &&
			filled(spare.Title, spare.Organization, spare.Duration) > filled(keep.Title, keep.Organization, keep.Duration)) {
		keep, spare = spare, keep
	}
	if keep.Title == "" {
		keep.Title = spare.Title
	}
	if keep.Organization == "" {
		keep.Organization = spare.Organization
	}
	if keep.Duration == "" {
		keep.Duration = spare.Duration
	}
	return keep
}

func (e *Engine) mergeEducation(doc, social []portfolio.Education) []portfolio.Education {
	out := make([]portfolio.Education, 0, len(doc)+len(social))
	for _, cand := range slices.Concat(doc, social) {
		if cand == (portfolio.Education{}) {
			continue
		}
		merged := false
		for i := range out {
			if !e.sameEducation(out[i], cand) {
				continue
			}
			e.logger.Debug("collapsed duplicate education",
				"institution", cand.Institution, "degree", cand.Degree)
			out[i] = richerEducation(out[i], cand)
			merged = true
			break
		}
		if !merged {
			out = append(out, cand)
		}
	}
	return out
}

func (e *Engine) sameEducation(a, b portfolio.Education) bool {
	ak := tokens(a.Institution + " " + a.Degree)
	bk := tokens(b.Institution + " " + b.Degree)
	if len(ak) == 0 && len(bk) == 0 {
		return jaccard(tokens(a.Field), tokens(b.Field)) >= e.threshold
	}
	return jaccard(ak, bk) >= e.threshold
}

func richerEducation(a, b portfolio.Education) portfolio.Education {
	keep, spare := a, b
	if filled(spare.Institution, spare.Degree, spare.Field, spare.Year) >
		filled(keep.Institution, keep.Degree, keep.Field, keep.Year) {
		keep, spare = spare, keep
	}
	if keep.Institution == "" {
		keep.Institution = spare.Institution
	}
	if keep.Degree == "" {
		keep.Degree = spare.Degree
	}
	if keep.Field == "" {
		keep.Field = spare.Field
	}
	if keep.Year == "" {
		keep.Year = spare.Year
	}
	return keep
}

func (e *Engine) mergeCertificates(doc, social []portfolio.Certificate) []portfolio.Certificate {
	out := make([]portfolio.Certificate, 0, len(doc)+len(social))
	for _, cand := range slices.Concat(doc, social) {
		if cand == (portfolio.Certificate{}) {
			continue
		}
		merged := false
		for i := range out {
			if !e.sameCertificate(out[i], cand) {
				continue
			}
			e.logger.Debug("collapsed duplicate certificate",
				"name", cand.Name, "issuer", cand.Issuer)
			out[i] = richerCertificate(out[i], cand)
			merged = true
			break
		}
		if !merged {
			out = append(out, cand)
		}
	}
	return out
}

func (e *Engine) sameCertificate(a, b portfolio.Certificate) bool {
	return jaccard(tokens(a.Name+" "+a.Issuer), tokens(b.Name+" "+b.Issuer)) >= e.threshold
}

func richerCertificate(a, b portfolio.Certificate) portfolio.Certificate {
	keep, spare := a, b
	if filled(spare.Name, spare.Issuer, spare.Date, spare.Link) >
		filled(keep.Name, keep.Issuer, keep.Date, keep.Link) {
		keep, spare = spare, keep
	}
	if keep.Name == "" {
		keep.Name = spare.Name
	}
	if keep.Issuer == "" {
		keep.Issuer = spare.Issuer
	}
	if keep.Date == "" {
		keep.Date = spare.Date
	}
	if keep.Link == "" {
		keep.Link = spare.Link
	}
	return keep
}

// sortExperience orders entries most-recent-first when an end year is
// parseable from the duration, placing undated entries after dated ones in
// their original order.
func (e *Engine) sortExperience(entries []portfolio.Experience) {
	slices.SortStableFunc(entries, func(a, b portfolio.Experience) int {
		ay, aok := e.endYear(a.Duration)
		by, bok := e.endYear(b.Duration)
		switch {
		case aok && bok:
			return cmp.Compare(by, ay)
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	})
}

func (e *Engine) sortEducation(entries []portfolio.Education) {
	slices.SortStableFunc(entries, func(a, b portfolio.Education) int {
		ay, aok := e.endYear(a.Year)
		by, bok := e.endYear(b.Year)
		switch {
		case aok && bok:
			return cmp.Compare(by, ay)
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	})
}

var yearRe = regexp.MustCompile(`(19|20)\d{2}`)

// endYear reads the year an entry ended from its duration or year text,
// taking the last year mentioned. Ongoing entries read as the current year.
func (e *Engine) endYear(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "present") || strings.Contains(lower, "current") {
		return e.now().UTC().Year(), true
	}
	years := yearRe.FindAllString(s, -1)
	if len(years) == 0 {
		return 0, false
	}
	y, err := strconv.Atoi(years[len(years)-1])
	if err != nil {
		return 0, false
	}
	return y, true
}

// tokens lowercases text into a set of punctuation-trimmed words.
func tokens(s string) map[string]bool {
	set := make(map[string]bool)
	for w := range strings.FieldsSeq(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:()[]&")
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// jaccard is intersection over union; an empty set matches nothing.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter int
	for t := range a {
		if b[t] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// filled counts non-empty values.
func filled(values ...string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
