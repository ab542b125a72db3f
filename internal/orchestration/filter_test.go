package orchestration

import (
	"testing"

	"github.com/cdmetadl/cdscore/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSources() []dataset.Source {
	return []dataset.Source{
		{Name: "task_1"},
		{Name: "task_1", Group: "omniglot"},
		{Name: "task_2", Group: "omniglot"},
		{Name: "task_1", Group: "flowers"},
	}
}

func names(sources []dataset.Source) []string {
	var out []string
	for _, s := range sources {
		out = append(out, s.String())
	}
	return out
}

func TestFilterSources_NoPatterns(t *testing.T) {
	result, err := FilterSources(sampleSources(), nil)
	require.NoError(t, err)
	assert.Len(t, result, 4, "empty patterns should return all sources")
}

func TestFilterSources_Group(t *testing.T) {
	result, err := FilterSources(sampleSources(), []string{"omniglot"})
	require.NoError(t, err)
	assert.Equal(t, []string{"omniglot/task_1", "omniglot/task_2"}, names(result))
}

func TestFilterSources_QualifiedName(t *testing.T) {
	result, err := FilterSources(sampleSources(), []string{"flowers/task_*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"flowers/task_1"}, names(result))
}

func TestFilterSources_BareName(t *testing.T) {
	result, err := FilterSources(sampleSources(), []string{"task_1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"task_1", "omniglot/task_1", "flowers/task_1"}, names(result))
}

func TestFilterSources_MultiplePatterns(t *testing.T) {
	result, err := FilterSources(sampleSources(), []string{"task_2", "flowers"})
	require.NoError(t, err)
	assert.Equal(t, []string{"omniglot/task_2", "flowers/task_1"}, names(result))
}

func TestFilterSources_NoMatch(t *testing.T) {
	result, err := FilterSources(sampleSources(), []string{"mini_imagenet"})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestFilterSources_InvalidPattern(t *testing.T) {
	_, err := FilterSources(sampleSources(), []string{"[invalid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid episode filter pattern")
}
