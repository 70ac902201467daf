// Package pipeline sequences the middle-end passes of spec §4.11 over one
// module: Emit-IR, mem2reg, constant propagation, control-flow
// simplification, the function inliner, the scalar cleanup loop, LICM,
// the loop unroller, a second scalar cleanup, strength reduction, a final
// control-flow simplification, and local constant-array promotion.
package pipeline

import (
	"github.com/tliron/commonlog"

	"yatcc/src/asg"
	"yatcc/src/diag"
	"yatcc/src/emitir"
	"yatcc/src/ir"
	"yatcc/src/pipeline/config"
	"yatcc/src/transform"
)

// PreservedAnalyses records which pure analyses of package analysis a pass
// leaves valid, following original_source/task/4/TransformPass.hpp's
// PassInfoMixin idiom (spec §9). Every transform recomputes its own
// analyses on entry, since they are pure and cheap enough over the
// function sizes Emit-IR produces. No pass returns a PreservedAnalyses
// value and the Manager keeps no analysis cache: passes report only
// whether they changed the module, which is what gets logged — see
// DESIGN.md's Open Question decisions.
type PreservedAnalyses int

const (
	PreservesNone PreservedAnalyses = 0
	PreservesCFG  PreservedAnalyses = 1 << iota
	PreservesDominators
	PreservesLoopInfo
	PreservesAll = PreservesCFG | PreservesDominators | PreservesLoopInfo
)

// Manager owns the configuration and logger the pipeline runs with.
type Manager struct {
	cfg *config.PipelineConfig
	log commonlog.Logger
}

// NewManager builds a Manager. A nil cfg falls back to config.Default.
func NewManager(cfg *config.PipelineConfig) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Manager{cfg: cfg, log: commonlog.GetLogger("yatcc.pipeline")}
}

// Run lowers tu to an IR module and drives it through every configured
// pass in spec §4.11's order. A *diag.Fatal panicking out of any stage
// (Emit-IR or a transform) is recovered here and returned as an error, per
// spec §5: "panics are recovered at the pipeline entry point."
func (m *Manager) Run(name string, tu *asg.TranslationUnit) (mod *ir.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(*diag.Fatal); ok {
				m.log.Errorf("%s", diag.Report(f))
				err = f
				return
			}
			panic(r)
		}
	}()

	mod, lowerErr := emitir.Lower(name, tu)
	if lowerErr != nil {
		if f, ok := lowerErr.(*diag.Fatal); ok {
			m.log.Errorf("%s", diag.Report(f))
		}
		return nil, lowerErr
	}
	m.log.Infof("emit-ir: lowered module %q (%d functions, %d globals)", mod.Name, len(mod.Functions), len(mod.Globals))

	m.runPasses(mod)
	return mod, nil
}

// runPasses drives mod through spec §4.11's configured pass sequence.
// Split out of Run so a caller that already owns an *ir.Module built some
// other way than Emit-IR (a hand-assembled IR test fixture) can still run
// the real pipeline over it, rather than Run's Emit-IR step being the only
// door in.
func (m *Manager) runPasses(mod *ir.Module) {
	m.runFunctionPass("mem2reg", m.cfg.RunMem2Reg, mod, transform.Mem2Reg)

	if m.cfg.RunConstProp {
		changed := transform.ConstantPropagateGlobals(mod)
		m.log.Debugf("constant-propagation: changed=%v", changed)
	}

	m.runFunctionPass("cfg-simplify", m.cfg.RunCFGSimplify, mod, transform.SimplifyCFG)

	if m.cfg.RunInline {
		changed := transform.Inline(mod, m.cfg.InlineSizeCeiling)
		m.log.Debugf("inline: changed=%v", changed)
	}

	if m.cfg.RunScalar {
		m.scalarCleanup("scalar-cleanup-1", mod, true)
	}

	m.runFunctionPass("licm", m.cfg.RunLICM, mod, transform.LICM)

	if m.cfg.RunUnroll {
		limit := m.cfg.UnrollTripLimit
		changed := false
		for _, fn := range mod.Functions {
			if transform.UnrollLoops(fn, limit) {
				changed = true
			}
		}
		m.log.Debugf("loop-unroll: changed=%v", changed)
	}

	if m.cfg.RunScalar {
		m.scalarCleanup("scalar-cleanup-2", mod, false)
	}

	m.runFunctionPass("strength-reduction", m.cfg.RunStrengthReduce, mod, transform.StrengthReduction)
	m.runFunctionPass("cfg-simplify-final", m.cfg.RunCFGSimplify, mod, transform.SimplifyCFG)
	m.runFunctionPass("const-array-promotion", m.cfg.RunConstArray, mod, transform.PromoteConstantArrays)
}

func (m *Manager) runFunctionPass(label string, enabled bool, mod *ir.Module, pass func(*ir.Function) bool) {
	if !enabled {
		return
	}
	changed := false
	for _, fn := range mod.Functions {
		if pass(fn) {
			changed = true
		}
	}
	m.log.Debugf("%s: changed=%v", label, changed)
}

// scalarCleanup runs algebraic identities, CSE and DCE over every
// function. When toFixedPoint is set it repeats until nothing changes
// (spec §4.11's first scalar-cleanup stage); otherwise it runs once (the
// second stage, which spec §4.11 does not mark "to fixed point").
func (m *Manager) scalarCleanup(label string, mod *ir.Module, toFixedPoint bool) {
	for iter := 0; ; iter++ {
		changed := false
		for _, fn := range mod.Functions {
			if transform.AlgebraicIdentities(fn) {
				changed = true
			}
			if transform.CSE(fn) {
				changed = true
			}
			if transform.DCE(fn) {
				changed = true
			}
		}
		m.log.Debugf("%s: iteration %d changed=%v", label, iter, changed)
		if !toFixedPoint || !changed {
			return
		}
	}
}
