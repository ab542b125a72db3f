package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/cdmetadl/cdscore/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one dataset (group) of episodes.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one episode.
type JUnitTestCase struct {
	XMLName    xml.Name        `xml:"testcase"`
	Name       string          `xml:"name,attr"`
	Classname  string          `xml:"classname,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	Error      *JUnitError     `xml:"error,omitempty"`
}

// JUnitError represents an episode whose scores could not be computed.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit maps a run to JUnit XML: one suite per group and one test
// case per episode. Episodes that failed to score are reported as errors;
// scored episodes carry their metric values as properties.
func ConvertToJUnit(s *models.RunSummary) *JUnitTestSuites {
	suites := &JUnitTestSuites{
		Name: s.OfficialScore,
		Time: float64(s.DurationMs) / 1000.0,
	}

	index := make(map[string]int)
	for _, r := range s.Results {
		group := r.Group
		if group == "" {
			group = models.OverallGroup
		}
		i, ok := index[group]
		if !ok {
			i = len(suites.TestSuites)
			index[group] = i
			suites.TestSuites = append(suites.TestSuites, JUnitTestSuite{
				Name:       group,
				Timestamp:  s.Timestamp.Format(time.RFC3339),
				Properties: groupProperties(s, group),
			})
		}
		suite := &suites.TestSuites[i]

		tc := JUnitTestCase{Name: r.Episode, Classname: group}
		if r.Error != "" {
			tc.Error = &JUnitError{Message: r.Error, Type: "ComputationError"}
			suite.Errors++
		} else {
			tc.Properties = scoreProperties(r.Scores)
		}
		suite.TestCases = append(suite.TestCases, tc)
		suite.Tests++
	}

	for _, suite := range suites.TestSuites {
		suites.Tests += suite.Tests
		suites.Errors += suite.Errors
	}
	return suites
}

func groupProperties(s *models.RunSummary, group string) []JUnitProperty {
	for _, g := range s.Groups {
		if g.Name != group {
			continue
		}
		st := g.Stats[s.OfficialScore]
		if !st.Defined() {
			return nil
		}
		lower, upper := st.Bounds()
		return []JUnitProperty{
			{Name: "metric", Value: s.OfficialScore},
			{Name: "mean", Value: fmt.Sprintf("%.4f", *st.Mean)},
			{Name: "half_width", Value: fmt.Sprintf("%.4f", *st.HalfWidth)},
			{Name: "lower", Value: fmt.Sprintf("%.4f", lower)},
			{Name: "upper", Value: fmt.Sprintf("%.4f", upper)},
		}
	}
	return nil
}

func scoreProperties(scores models.ScoreResult) []JUnitProperty {
	// Sort for deterministic output
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]JUnitProperty, 0, len(names))
	for _, name := range names {
		props = append(props, JUnitProperty{Name: name, Value: strconv.FormatFloat(scores[name], 'f', 6, 64)})
	}
	return props
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(s *models.RunSummary, path string) error {
	suites := ConvertToJUnit(s)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, output, 0o644); err != nil {
		return &models.ResourceError{Op: "write junit", Path: path, Err: err}
	}
	return nil
}
