package main

import (
	"github.com/cdmetadl/cdscore/internal/metrics"
	"github.com/spf13/pflag"
)

// metricValue is a pflag.Value that only accepts implemented metric names.
type metricValue struct {
	reg  metrics.Registry
	name string
}

var _ pflag.Value = (*metricValue)(nil)

func newMetricValue(reg metrics.Registry) *metricValue {
	return &metricValue{reg: reg}
}

func (v *metricValue) String() string {
	return v.name
}

func (v *metricValue) Set(s string) error {
	m, err := v.reg.Resolve(s)
	if err != nil {
		return err
	}
	v.name = m.Name()
	return nil
}

func (v *metricValue) Type() string {
	return "metric"
}
