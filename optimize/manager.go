// Package optimize transforms llir modules through a pipeline of semantics-preserving
// passes selected by an optimization level.
package optimize

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-set/v3"
	"github.com/llir/llvm/ir"
	"github.com/quill-lang/quill/internal/log"
	"github.com/quill-lang/quill/irutil"
	"github.com/samber/lo"
)

// DefaultInlineThreshold is the largest weighted instruction count of an inlined callee
const DefaultInlineThreshold = 20

type config struct {
	inlineThreshold int
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.Logger = logger }
}

func WithInlineThreshold(threshold int) Option {
	return func(m *Manager) { m.cfg.inlineThreshold = threshold }
}

// Manager runs the passes of a Level over modules, collecting Stats
type Manager struct {
	Logger *slog.Logger

	level    Level
	cfg      config
	enabled  *set.Set[string]
	disabled *set.Set[string]

	modulePasses   []ModulePass
	functionPasses []FunctionPass
	stats          Stats
}

func NewManager(level Level, opts ...Option) *Manager {
	m := &Manager{
		Logger:   log.DefaultLogger.With("section", "optimize"),
		level:    level,
		cfg:      config{inlineThreshold: DefaultInlineThreshold},
		enabled:  set.New[string](0),
		disabled: set.New[string](0),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.setup()
	return m
}

func (m *Manager) Level() Level { return m.level }

// SetLevel switches to a different level, keeping the enabled and disabled pass filters
func (m *Manager) SetLevel(level Level) {
	m.level = level
	m.setup()
}

// EnablePass adds a pass to the pipeline even when the level would not select it
func (m *Manager) EnablePass(name string) error {
	if !isKnownPass(name) {
		return fmt.Errorf("unknown pass %q (known: %v)", name, PassNames())
	}
	m.disabled.Remove(name)
	m.enabled.Insert(name)
	m.setup()
	return nil
}

// DisablePass removes a pass from the pipeline
func (m *Manager) DisablePass(name string) error {
	if !isKnownPass(name) {
		return fmt.Errorf("unknown pass %q (known: %v)", name, PassNames())
	}
	m.enabled.Remove(name)
	m.disabled.Insert(name)
	m.setup()
	return nil
}

// PassNames lists every known pass in pipeline order
func PassNames() []string {
	return lo.Map(registry, func(p passInfo, _ int) string { return p.name })
}

func isKnownPass(name string) bool {
	return lo.ContainsBy(registry, func(p passInfo) bool { return p.name == name })
}

// Passes lists the configured pipeline: module passes first, then function passes
func (m *Manager) Passes() []string {
	names := lo.Map(m.modulePasses, func(p ModulePass, _ int) string { return p.Name() })
	return append(names, lo.Map(m.functionPasses, func(p FunctionPass, _ int) string { return p.Name() })...)
}

func (m *Manager) setup() {
	selected := lo.Filter(registry, func(p passInfo, _ int) bool {
		if m.disabled.Contains(p.name) {
			return false
		}
		return p.level <= m.level || m.enabled.Contains(p.name)
	})
	m.modulePasses = m.modulePasses[:0]
	m.functionPasses = m.functionPasses[:0]
	for _, p := range selected {
		logger := m.Logger.With("section", "optimize."+p.name)
		if p.module != nil {
			m.modulePasses = append(m.modulePasses, p.module(logger, &m.cfg))
		} else {
			m.functionPasses = append(m.functionPasses, p.function(logger, &m.cfg))
		}
	}
}

// RunOptimizations resets the statistics, runs the module passes and then every function
// pass over each function with a body. The module is rewritten in place.
func (m *Manager) RunOptimizations(mod *ir.Module) Stats {
	m.stats = Stats{}
	start := time.Now()
	for _, pass := range m.modulePasses {
		changed := pass.RunOnModule(mod, &m.stats)
		m.Logger.Debug("ran module pass", "pass", pass.Name(), "changed", changed)
	}
	for _, f := range mod.Funcs {
		if irutil.IsDeclaration(f) {
			continue
		}
		for _, pass := range m.functionPasses {
			changed := pass.RunOnFunction(f, &m.stats)
			m.Logger.Debug("ran function pass", "pass", pass.Name(), "func", f.Name(), "changed", changed)
		}
	}
	m.stats.Duration = time.Since(start)
	m.Logger.Info("optimized module", "level", m.level, "stats", m.stats)
	return m.stats
}

// Stats returns the statistics of the last RunOptimizations call
func (m *Manager) Stats() Stats { return m.stats }

// Report writes the statistics of the last run
func (m *Manager) Report(w io.Writer) error {
	return m.stats.WriteReport(w, m.level)
}
