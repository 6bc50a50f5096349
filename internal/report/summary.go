// Package report aggregates stored analyses into portfolio-level figures.
package report

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"adcompliance/domain/compliance"
)

// ScoreDistribution summarizes overall scores.
type ScoreDistribution struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// RuleCount is how often a rule was violated across the window.
type RuleCount struct {
	RuleType compliance.RuleType `json:"rule_type"`
	Count    int                 `json:"count"`
}

// Summary is computed over every analysis in the window.
type Summary struct {
	Since          time.Time         `json:"since"`
	Count          int               `json:"count"`
	Compliant      int               `json:"compliant"`
	ComplianceRate float64           `json:"compliance_rate"`
	ManualReview   int               `json:"manual_review"`
	ParseFailures  int               `json:"parse_failures"`
	NoLandingPage  int               `json:"no_landing_page"`
	Scores         ScoreDistribution `json:"scores"`
	BySeverity     map[string]int    `json:"violations_by_severity"`
	TopRules       []RuleCount       `json:"top_rules"`
}

// Summarize never fails on an empty input; the distribution is then zero.
func Summarize(since time.Time, analyses []*compliance.AdComplianceAnalysis) (*Summary, error) {
	s := &Summary{Since: since, BySeverity: map[string]int{}}
	rules := map[compliance.RuleType]int{}
	scores := make([]float64, 0, len(analyses))

	for _, a := range analyses {
		s.Count++
		scores = append(scores, a.OverallScore)
		if a.OverallCompliant {
			s.Compliant++
		}
		if a.ManualReviewRequired {
			s.ManualReview++
		}
		if !a.LandingPageEvaluated {
			s.NoLandingPage++
		}
		verdicts := []compliance.Verdict{a.CreativeVerdict}
		if a.LandingPageEvaluated {
			verdicts = append(verdicts, a.LandingPageVerdict)
		}
		for _, v := range verdicts {
			if v.ParseFailed {
				s.ParseFailures++
			}
			for _, vi := range v.Violations {
				s.BySeverity[vi.Severity.String()]++
				rules[vi.RuleType]++
			}
		}
	}

	s.TopRules = rankRules(rules)
	if s.Count == 0 {
		return s, nil
	}
	s.ComplianceRate = float64(s.Compliant) / float64(s.Count)

	dist, err := distribution(scores)
	if err != nil {
		return nil, err
	}
	s.Scores = dist
	return s, nil
}

func distribution(data []float64) (ScoreDistribution, error) {
	var d ScoreDistribution
	var err error

	if d.Mean, err = stats.Mean(data); err != nil {
		return d, err
	}
	if d.Median, err = stats.Median(data); err != nil {
		return d, err
	}
	if d.StdDev, err = stats.StandardDeviation(data); err != nil {
		return d, err
	}
	if d.Min, err = stats.Min(data); err != nil {
		return d, err
	}
	if d.Max, err = stats.Max(data); err != nil {
		return d, err
	}
	if d.Q25, err = stats.Percentile(data, 25); err != nil {
		return d, err
	}
	if d.Q75, err = stats.Percentile(data, 75); err != nil {
		return d, err
	}
	return d, nil
}

// rankRules orders by count, then by rule name for stable output.
func rankRules(counts map[compliance.RuleType]int) []RuleCount {
	out := make([]RuleCount, 0, len(counts))
	for r, n := range counts {
		out = append(out, RuleCount{RuleType: r, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].RuleType < out[j].RuleType
	})
	return out
}
