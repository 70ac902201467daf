// Package config loads the programmatic options pipeline.Manager runs
// with: which passes execute, the loop-unroll trip limit, and the
// inliner's size ceiling (spec §5.1). This is a config object for an
// embedder to construct or load, not a CLI surface.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"yatcc/src/diag"
)

// PipelineConfig selects which stages of spec §4.11's pass ordering run
// and bounds two of them. Every RunX field defaults to true via Default;
// a config loaded from YAML that omits a field keeps Default's value for
// it only if the caller starts from Default and unmarshals on top of it.
type PipelineConfig struct {
	RunMem2Reg        bool `yaml:"mem2reg"`
	RunConstProp      bool `yaml:"constant_propagation"`
	RunCFGSimplify    bool `yaml:"cfg_simplify"`
	RunInline         bool `yaml:"inline"`
	RunScalar         bool `yaml:"scalar"`
	RunLICM           bool `yaml:"licm"`
	RunUnroll         bool `yaml:"loop_unroll"`
	RunStrengthReduce bool `yaml:"strength_reduction"`
	RunConstArray     bool `yaml:"const_array_promotion"`

	// UnrollTripLimit bounds how many copies the loop unroller will
	// produce for one loop (spec §4.9's trip-count ceiling).
	UnrollTripLimit int `yaml:"unroll_trip_limit"`
	// InlineSizeCeiling bounds a callee's instruction count for it to be
	// considered inlineable; non-positive means unlimited.
	InlineSizeCeiling int `yaml:"inline_size_ceiling"`
}

// Default returns the pipeline's out-of-the-box configuration: every pass
// enabled, with the distilled spec's 80-iteration unroll ceiling and no
// inline size limit.
func Default() *PipelineConfig {
	return &PipelineConfig{
		RunMem2Reg:        true,
		RunConstProp:      true,
		RunCFGSimplify:    true,
		RunInline:         true,
		RunScalar:         true,
		RunLICM:           true,
		RunUnroll:         true,
		RunStrengthReduce: true,
		RunConstArray:     true,
		UnrollTripLimit:   80,
		InlineSizeCeiling: 0,
	}
}

// Load reads a YAML pipeline configuration from path, starting from
// Default so an omitted field keeps its default rather than zeroing out. A
// read or parse failure is a malformed-input condition (spec §7's
// InputInvalid category), so it is reported through a *diag.Fatal like any
// other invalid-input error, rather than a bare wrapped error.
func Load(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Wrap(diag.InputInvalid, err, fmt.Sprintf("reading pipeline config %q", path))
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, diag.Wrap(diag.InputInvalid, err, fmt.Sprintf("parsing pipeline config %q", path))
	}
	return cfg, nil
}
