package scanner

import (
	"context"

	"github.com/mokurokubooks/mokuroku/pkg/ratelimit"
	"github.com/pkg/errors"
)

// Scan modes recommended to callers based on current source availability.
const (
	ModeFull    = "full"
	ModePartial = "partial"
	ModeWait    = "wait"
)

// Recommendations tells an orchestration layer what a scan right now could
// accomplish.
type Recommendations struct {
	AvailableSources   []string `json:"available_sources"`
	UnavailableSources []string `json:"unavailable_sources"`
	RecommendedMode    string   `json:"recommended_mode"`
	RetryEligibleBooks int      `json:"retry_eligible_books"`
}

// ScanningRecommendations reports which sources are currently usable, the
// recommended scan mode, and how many failed pairs are eligible for retry.
func (s *Scanner) ScanningRecommendations(ctx context.Context) (*Recommendations, error) {
	rec := &Recommendations{
		AvailableSources:   []string{},
		UnavailableSources: []string{},
	}

	for _, binding := range s.bindings {
		available, err := binding.Client.Available(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if available {
			rec.AvailableSources = append(rec.AvailableSources, binding.Source.Name)
		} else {
			rec.UnavailableSources = append(rec.UnavailableSources, binding.Source.Name)
		}
	}

	switch {
	case len(rec.UnavailableSources) == 0:
		rec.RecommendedMode = ModeFull
	case len(rec.AvailableSources) > 0:
		rec.RecommendedMode = ModePartial
	default:
		rec.RecommendedMode = ModeWait
	}

	eligible, err := s.ledgerService.RetryEligibleCount(ctx, s.clock.Now())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rec.RetryEligibleBooks = eligible

	return rec, nil
}

// SourceStatus is the operational snapshot for one source.
type SourceStatus struct {
	Source    string                  `json:"source"`
	Available bool                    `json:"available"`
	Breaker   ratelimit.BreakerStatus `json:"breaker"`
	Limits    ratelimit.Limits        `json:"limits"`
	Decision  *ratelimit.Decision     `json:"decision,omitempty"`
}

// APIStatus returns a read-only snapshot of every configured source's rate
// and breaker state, for dashboards. It touches no counters.
func (s *Scanner) APIStatus(ctx context.Context) ([]SourceStatus, error) {
	statuses := make([]SourceStatus, 0, len(s.bindings))

	for _, binding := range s.bindings {
		status, err := binding.Client.Status(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		statuses = append(statuses, SourceStatus{
			Source:    binding.Source.Name,
			Available: status.Available,
			Breaker:   status.Breaker,
			Limits:    status.Limits,
			Decision:  status.Decision,
		})
	}

	return statuses, nil
}

// CheckAPIHealth reports, per source, whether a call would currently be
// admitted.
func (s *Scanner) CheckAPIHealth(ctx context.Context) (map[string]bool, error) {
	health := map[string]bool{}
	for _, binding := range s.bindings {
		available, err := binding.Client.Available(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		health[binding.Source.Name] = available
	}
	return health, nil
}
