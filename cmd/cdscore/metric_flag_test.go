package main

import (
	"errors"
	"testing"

	"github.com/cdmetadl/cdscore/internal/metrics"
	"github.com/cdmetadl/cdscore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricValue(t *testing.T) {
	v := newMetricValue(metrics.NewRegistry(metrics.Scorer{}))
	assert.Equal(t, "", v.String())
	assert.Equal(t, "metric", v.Type())

	require.NoError(t, v.Set(" macro_recall "))
	assert.Equal(t, "macro_recall", v.String())

	err := v.Set("Macro Recall")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotImplemented))
	// A rejected value leaves the previous one in place.
	assert.Equal(t, "macro_recall", v.String())
}
