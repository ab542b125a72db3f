package orchestration

import (
	"fmt"
	"path"

	"github.com/cdmetadl/cdscore/internal/dataset"
)

// FilterSources returns the subset of sources whose name, group, or
// "group/name" matches at least one of the given glob patterns. An empty
// patterns slice returns all sources unchanged.
func FilterSources(sources []dataset.Source, patterns []string) ([]dataset.Source, error) {
	if len(patterns) == 0 {
		return sources, nil
	}

	var matched []dataset.Source
	for _, src := range sources {
		ok, err := matchesAny(src, patterns)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, src)
		}
	}
	return matched, nil
}

// matchesAny reports whether a source matches any pattern.
func matchesAny(src dataset.Source, patterns []string) (bool, error) {
	candidates := []string{src.Name, src.String()}
	if src.Group != "" {
		candidates = append(candidates, src.Group)
	}
	for _, p := range patterns {
		for _, c := range candidates {
			ok, err := path.Match(p, c)
			if err != nil {
				return false, fmt.Errorf("invalid episode filter pattern %q: %w", p, err)
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}
