// Package reporting turns a scoring run summary into the files published
// next to the leaderboard: scores.txt, summary.json, the HTML report and a
// JUnit view of the episodes.
package reporting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cdmetadl/cdscore/internal/metrics"
	"github.com/cdmetadl/cdscore/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer formats counts and scores in report text.
var printer = message.NewPrinter(language.English)

// InterpretScore returns a plain-language label for a numeric score (0–1).
func InterpretScore(score float64) string {
	pct := score * 100
	switch {
	case pct > 90:
		return "Excellent (>90%)"
	case pct >= 70:
		return "Good (70-90%)"
	case pct >= 50:
		return "Needs Work (50-70%)"
	default:
		return "Poor (<50%)"
	}
}

// FormatStatistic renders a statistic as "mean ± half width", or "n/a" when
// it has no mean.
func FormatStatistic(s models.AggregateStatistic) string {
	if !s.Defined() {
		return "n/a"
	}
	return printer.Sprintf("%.4f ± %.4f", *s.Mean, *s.HalfWidth)
}

// FormatConfidence renders a confidence level as a percentage, e.g. "95%".
func FormatConfidence(c float64) string {
	return strconv.FormatFloat(math.Round(c*1e4)/1e2, 'f', -1, 64) + "%"
}

// MetricOrder returns the labels of s.Overall with the official score first
// and the rest in report order.
func MetricOrder(s *models.RunSummary) []string {
	var order []string
	if _, ok := s.Overall[s.OfficialScore]; ok {
		order = append(order, s.OfficialScore)
	}
	for _, m := range metrics.All {
		label := m.Label()
		if label == s.OfficialScore {
			continue
		}
		if _, ok := s.Overall[label]; ok {
			order = append(order, label)
		}
	}
	return order
}

// FormatSummaryReport produces a plain-language report of a run for the
// terminal.
func FormatSummaryReport(s *models.RunSummary) string {
	var b strings.Builder

	b.WriteString("=== Interpretation ===\n\n")

	official := s.Official()
	if official.Defined() {
		b.WriteString(fmt.Sprintf("Official Score: %s = %s (%s CI) — %s\n",
			s.OfficialScore, FormatStatistic(official), FormatConfidence(official.Confidence), InterpretScore(*official.Mean)))
	} else {
		b.WriteString(fmt.Sprintf("Official Score: %s = n/a\n", s.OfficialScore))
	}
	b.WriteString(printer.Sprintf("Episodes:       %d scored, %d failed\n", s.Scored(), len(s.Failed)))
	b.WriteString(fmt.Sprintf("Duration:       %v\n", time.Duration(s.DurationMs)*time.Millisecond))

	if len(s.Groups) > 1 {
		b.WriteString("\nPer-Dataset Interpretation:\n")
		for _, g := range s.Groups {
			st := g.Stats[s.OfficialScore]
			if !st.Defined() {
				b.WriteString(fmt.Sprintf("  ✗ %s: n/a\n", g.Name))
				continue
			}
			b.WriteString(fmt.Sprintf("  ✓ %s: %s — %s\n", g.Name, FormatStatistic(st), InterpretScore(*st.Mean)))
		}
	}

	if len(s.Failed) > 0 {
		b.WriteString("\nFailed Episodes:\n")
		for _, f := range s.Failed {
			b.WriteString(fmt.Sprintf("  ✗ %s: %s\n", episodeID(f.Group, f.Episode), f.Error))
		}
	}

	return b.String()
}

func episodeID(group, episode string) string {
	if group == "" {
		return episode
	}
	return group + "/" + episode
}
