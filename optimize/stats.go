package optimize

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Stats aggregates what the passes of one RunOptimizations call did
type Stats struct {
	InstructionsEliminated int
	ConstantsFolded        int
	FunctionsInlined       int
	// LoopsOptimized is reported for completeness; no pass transforms loops yet
	LoopsOptimized int
	Duration       time.Duration

	NumericOpsOptimized int
	MulsToShifts        int
	DivsToShifts        int
	CastsEliminated     int
	Specializations     int
}

// Add accumulates the counters of other into s
func (s *Stats) Add(other Stats) {
	s.InstructionsEliminated += other.InstructionsEliminated
	s.ConstantsFolded += other.ConstantsFolded
	s.FunctionsInlined += other.FunctionsInlined
	s.LoopsOptimized += other.LoopsOptimized
	s.Duration += other.Duration
	s.NumericOpsOptimized += other.NumericOpsOptimized
	s.MulsToShifts += other.MulsToShifts
	s.DivsToShifts += other.DivsToShifts
	s.CastsEliminated += other.CastsEliminated
	s.Specializations += other.Specializations
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("eliminated", s.InstructionsEliminated),
		slog.Int("folded", s.ConstantsFolded),
		slog.Int("inlined", s.FunctionsInlined),
		slog.Int("numeric", s.NumericOpsOptimized),
		slog.Int("mulShifts", s.MulsToShifts),
		slog.Int("divShifts", s.DivsToShifts),
		slog.Int("castsEliminated", s.CastsEliminated),
		slog.Int("specializations", s.Specializations),
		slog.Duration("duration", s.Duration),
	)
}

// WriteReport writes the human-readable statistics block for a run at level
func (s Stats) WriteReport(w io.Writer, level Level) error {
	ms := float64(s.Duration.Microseconds()) / 1000
	lines := []string{
		"=== Quill Optimization Report ===",
		fmt.Sprintf("Optimization Level: %v", level),
		fmt.Sprintf("Optimization Time: %.3f ms", ms),
		fmt.Sprintf("Instructions Eliminated: %d", s.InstructionsEliminated),
		fmt.Sprintf("Constants Folded: %d", s.ConstantsFolded),
		fmt.Sprintf("Functions Inlined: %d", s.FunctionsInlined),
		fmt.Sprintf("Loops Optimized: %d", s.LoopsOptimized),
	}
	if level >= O3 {
		lines = append(lines,
			"",
			"--- Type-Directed Optimizations ---",
			fmt.Sprintf("Numeric Operations Optimized: %d", s.NumericOpsOptimized),
			fmt.Sprintf("Multiplications -> Bit Shifts: %d", s.MulsToShifts),
			fmt.Sprintf("Divisions -> Bit Shifts: %d", s.DivsToShifts),
			fmt.Sprintf("Type Casts Eliminated: %d", s.CastsEliminated),
			fmt.Sprintf("Type Specializations Applied: %d", s.Specializations),
		)
	}
	lines = append(lines, "==================================")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
