package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cdmetadl/cdscore/internal/models"
)

// Result file suffixes. A ".csv" extension may follow either one.
const (
	LabelsSuffix      = ".labels"
	PredictionsSuffix = ".predictions"
)

// Source locates the two result files of one episode.
type Source struct {
	Name            string
	Group           string
	LabelsPath      string
	PredictionsPath string
}

// Load reads both result files of the episode.
func (s Source) Load() (models.Episode, error) {
	labels, err := ReadLabels(s.LabelsPath)
	if err != nil {
		return models.Episode{}, err
	}
	preds, err := ReadPredictions(s.PredictionsPath)
	if err != nil {
		return models.Episode{}, err
	}
	return models.Episode{Name: s.Name, Group: s.Group, Labels: labels, Predictions: preds}, nil
}

// Discover pairs every labels file under referenceDir with the predictions
// file of the same name and relative directory under predictionDir. Files at
// the top level belong to no group; files inside a first-level subdirectory
// belong to the group named after it. Deeper directories are ignored.
//
// Sources are returned sorted naturally by group, then by name. A missing
// predictions file is not an error here; it surfaces when the source is
// loaded.
func Discover(referenceDir, predictionDir string) ([]Source, error) {
	info, err := os.Stat(referenceDir)
	if err != nil {
		return nil, &models.ResourceError{Op: "discover episodes", Path: referenceDir, Err: err}
	}
	if !info.IsDir() {
		return nil, &models.ResourceError{Op: "discover episodes", Path: referenceDir, Err: errors.New("not a directory")}
	}

	var sources []Source
	err = filepath.WalkDir(referenceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(referenceDir, path)
		if err != nil {
			return err
		}
		depth := strings.Count(filepath.ToSlash(rel), "/")
		if d.IsDir() {
			if rel != "." && depth > 0 {
				return filepath.SkipDir
			}
			return nil
		}
		name, ext, ok := splitLabels(d.Name())
		if !ok {
			return nil
		}
		group := ""
		if depth == 1 {
			group = filepath.Dir(rel)
		}
		sources = append(sources, Source{
			Name:            name,
			Group:           group,
			LabelsPath:      path,
			PredictionsPath: filepath.Join(predictionDir, filepath.Dir(rel), name+PredictionsSuffix+ext),
		})
		return nil
	})
	if err != nil {
		return nil, &models.ResourceError{Op: "discover episodes", Path: referenceDir, Err: err}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].Group != sources[j].Group {
			return NaturalLess(sources[i].Group, sources[j].Group)
		}
		return NaturalLess(sources[i].Name, sources[j].Name)
	})
	return sources, nil
}

// splitLabels returns the episode name and the optional ".csv" extension of
// a labels file name.
func splitLabels(file string) (name, ext string, ok bool) {
	if strings.HasSuffix(strings.ToLower(file), ".csv") {
		ext = file[len(file)-4:]
		file = file[:len(file)-4]
	}
	if !strings.HasSuffix(file, LabelsSuffix) {
		return "", "", false
	}
	name = strings.TrimSuffix(file, LabelsSuffix)
	if name == "" {
		return "", "", false
	}
	return name, ext, true
}

// Groups returns the distinct non-empty groups of sources in order of first
// appearance.
func Groups(sources []Source) []string {
	seen := make(map[string]bool)
	var groups []string
	for _, s := range sources {
		if s.Group == "" || seen[s.Group] {
			continue
		}
		seen[s.Group] = true
		groups = append(groups, s.Group)
	}
	return groups
}

func (s Source) String() string {
	if s.Group == "" {
		return s.Name
	}
	return fmt.Sprintf("%s/%s", s.Group, s.Name)
}
