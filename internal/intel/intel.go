// Package intel turns triage search terms into policy excerpts for the judge.
package intel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/tracing"
	"github.com/OFF-rtk/sentinel-auditor/internal/policystore"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/strings"
)

//go:generate mockgen -source=intel.go -destination=mocks/mocks.go -package=mocks

// PolicyStore ranks policy documents against a search term.
type PolicyStore interface {
	SimilaritySearch(ctx context.Context, term string, k int, minScore float64) ([]policystore.Match, error)
}

// Excerpt is a policy passage as shown to the judge.
type Excerpt struct {
	Text     string
	PolicyID string
}

// DefaultPolicyID identifies the default-deny excerpt returned when nothing matched.
const DefaultPolicyID = "STD-00"

const defaultPolicyText = "Policy STD-00: Standard Security Protocol. If behavior is suspicious and no specific exemption exists, BLOCK the request."

const (
	defaultMatchCount = 1
	defaultMinScore   = 0.3
	maxConcurrent     = 5
)

// DefaultExcerpt is the explicit default-deny policy.
func DefaultExcerpt() Excerpt {
	return Excerpt{Text: defaultPolicyText, PolicyID: DefaultPolicyID}
}

type Stage struct {
	store    PolicyStore
	k        int
	minScore float64
	logger   *slog.Logger
}

type Option func(*Stage)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		s.logger = logger
	}
}

// WithMatch sets how many documents are taken per term and the minimum
// similarity they need.
func WithMatch(k int, minScore float64) Option {
	return func(s *Stage) {
		if k > 0 {
			s.k = k
		}
		if minScore >= 0 {
			s.minScore = minScore
		}
	}
}

func New(store PolicyStore, opts ...Option) (*Stage, error) {
	if store == nil {
		return nil, errors.New("intel policy store is required")
	}
	s := &Stage{store: store, k: defaultMatchCount, minScore: defaultMinScore, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Retrieve searches every term and returns the distinct excerpts found. A term
// whose search fails contributes nothing. Excerpts are grouped by term in term
// order, so a strong match for a later term may follow a weak match for an
// earlier one. When nothing is found the result is the single default-deny
// excerpt.
func (s *Stage) Retrieve(ctx context.Context, terms []string) []Excerpt {
	results := make([][]policystore.Match, len(terms))

	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for i, term := range terms {
		g.Go(func() error {
			spanCtx, end := tracing.StartSpan(ctx, "intel.similarity_search")
			matches, err := s.store.SimilaritySearch(spanCtx, term, s.k, s.minScore)
			end(err)
			if err != nil {
				s.logger.WarnContext(ctx, "policy search failed", "term", term, "error", err)
				return nil
			}
			results[i] = matches
			return nil
		})
	}
	_ = g.Wait()

	var (
		texts []string
		ids   = make(map[string]string)
	)
	for _, matches := range results {
		for _, m := range matches {
			text := fmt.Sprintf("%s (Source: %s)", m.Content, m.PolicyID)
			if _, ok := ids[text]; !ok {
				ids[text] = m.PolicyID
			}
			texts = append(texts, text)
		}
	}
	texts = strings.DedupeExact(texts)
	if len(texts) == 0 {
		return []Excerpt{DefaultExcerpt()}
	}

	out := make([]Excerpt, len(texts))
	for i, t := range texts {
		out[i] = Excerpt{Text: t, PolicyID: ids[t]}
	}
	return out
}

// Texts returns the excerpt texts in order.
func Texts(excerpts []Excerpt) []string {
	out := make([]string, len(excerpts))
	for i, e := range excerpts {
		out[i] = e.Text
	}
	return out
}

// IsDefault reports whether excerpts is the default-deny fallback.
func IsDefault(excerpts []Excerpt) bool {
	return len(excerpts) == 1 && excerpts[0].PolicyID == DefaultPolicyID && excerpts[0].Text == defaultPolicyText
}
