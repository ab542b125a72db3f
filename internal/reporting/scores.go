package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/cdmetadl/cdscore/internal/models"
)

// Output file names inside the output directory.
const (
	ScoresFile  = "scores.txt"
	SummaryFile = "summary.json"
	HTMLFile    = "detailed_results.html"
	JUnitFile   = "junit.xml"
)

// FormatScores renders the leaderboard file: one "<label>: <mean>" line per
// metric with a defined mean, official score first.
func FormatScores(s *models.RunSummary) []byte {
	var buf bytes.Buffer
	for _, label := range MetricOrder(s) {
		st := s.Overall[label]
		if !st.Defined() {
			continue
		}
		fmt.Fprintf(&buf, "%s: %s\n", label, strconv.FormatFloat(*st.Mean, 'g', -1, 64))
	}
	return buf.Bytes()
}

// WriteScores writes FormatScores(s) to path.
func WriteScores(s *models.RunSummary, path string) error {
	if err := os.WriteFile(path, FormatScores(s), 0o644); err != nil {
		return &models.ResourceError{Op: "write scores", Path: path, Err: err}
	}
	return nil
}

// WriteSummaryJSON writes s as indented JSON to path. Image data is left out;
// artifacts refer to their files by path.
func WriteSummaryJSON(s *models.RunSummary, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return &models.ResourceError{Op: "write summary", Path: path, Err: err}
	}
	return nil
}
