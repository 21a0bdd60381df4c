package plife

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// maxGridCells bounds the number of cells a configuration may produce.
const maxGridCells = 1 << 24

// ValidationError collects multiple validation issues
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid input: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) Addf(format string, v ...any) {
	e.Add(fmt.Sprintf(format, v...))
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

func (e *ValidationError) orNil() error {
	if e.HasIssues() {
		return e
	}
	return nil
}

// ValidateConfig performs comprehensive validation of a Config
func ValidateConfig(cfg Config) error {
	err := &ValidationError{}

	validateWorld(cfg.World, err)

	p := cfg.Physics
	checkFinite(err, "physics", map[string]float64{
		"min_step_rate":     p.MinStepRate,
		"speed_multiplier":  p.SpeedMultiplier,
		"speed_multiplier2": p.SpeedMultiplier2,
		"max_speed":         p.MaxSpeed,
		"friction":          p.Friction,
		"friction_time":     p.FrictionTime,
		"strength":          p.Strength,
		"smoothing_radius":  p.SmoothingRadius,
		"radius":            p.Radius,
	})
	if p.SpeedMultiplier < 0 || p.SpeedMultiplier2 < 0 {
		err.Add("physics: speed multipliers must be >= 0")
	}
	if p.MaxSpeed < 0 {
		err.Add("physics: max_speed must be >= 0")
	}
	if p.Friction < 0 || p.Friction > 1 {
		err.Addf("physics: friction must be in [0, 1], got %g", p.Friction)
	}
	if p.FrictionTime < 0 {
		err.Add("physics: friction_time must be >= 0")
	}
	if p.SmoothingRadius < 0 {
		err.Add("physics: smoothing_radius must be >= 0")
	}
	if p.Radius < 0 {
		err.Add("physics: radius must be >= 0")
	}

	g := cfg.Gravity
	checkFinite(err, "gravity", map[string]float64{
		"target.x":     g.Target.X,
		"target.y":     g.Target.Y,
		"target.z":     g.Target.Z,
		"target_range": g.TargetRange,
		"strength":     g.Strength,
		"max_gravity":  g.MaxGravity,
	})

	ty := cfg.Types
	if ty.NumTypes < 1 {
		err.Addf("types: num_types must be >= 1, got %d", ty.NumTypes)
	}
	checkFinite(err, "types", map[string]float64{
		"attract_mean":    ty.AttractMean,
		"attract_std":     ty.AttractStd,
		"range_min_lower": ty.RangeMinLower,
		"range_min_upper": ty.RangeMinUpper,
		"range_max_lower": ty.RangeMaxLower,
		"range_max_upper": ty.RangeMaxUpper,
	})
	if ty.AttractStd < 0 {
		err.Add("types: attract_std must be >= 0")
	}
	if ty.RangeMinLower < 0 || ty.RangeMinLower > ty.RangeMinUpper {
		err.Add("types: range_min bounds must satisfy 0 <= lower <= upper")
	}
	if ty.RangeMaxLower < 0 || ty.RangeMaxLower > ty.RangeMaxUpper {
		err.Add("types: range_max bounds must satisfy 0 <= lower <= upper")
	}

	validateSpawn(cfg.Spawn, err)

	if cfg.Workers < 0 {
		err.Add("workers must be >= 0")
	}

	return err.orNil()
}

func validateWorld(w WorldConfig, err *ValidationError) {
	checkFinite(err, "world", map[string]float64{
		"lower.x":   w.Lower.X,
		"lower.y":   w.Lower.Y,
		"lower.z":   w.Lower.Z,
		"upper.x":   w.Upper.X,
		"upper.y":   w.Upper.Y,
		"upper.z":   w.Upper.Z,
		"bounce":    w.Bounce,
		"cell_size": w.CellSize,
	})
	ext := w.Extent()
	if ext.X < 0 || ext.Y < 0 || ext.Z < 0 {
		err.Add("world: upper bound must be >= lower bound on every axis")
	}
	if !(w.CellSize > 0) {
		err.Addf("world: cell_size must be > 0, got %g", w.CellSize)
		return
	}
	cells := 1.0
	for _, e := range [3]float64{ext.X, ext.Y, ext.Z} {
		cells *= math.Max(1, math.Floor(e/w.CellSize))
	}
	if cells > maxGridCells {
		err.Addf("world: grid would have %.0f cells, limit is %d; increase cell_size", cells, maxGridCells)
	}
}

func validateSpawn(s SpawnConfig, err *ValidationError) {
	if s.Count < 0 {
		err.Add("spawn: count must be >= 0")
	}
	checkFinite(err, "spawn", map[string]float64{
		"center.x":      s.Center.X,
		"center.y":      s.Center.Y,
		"center.z":      s.Center.Z,
		"size.x":        s.Size.X,
		"size.y":        s.Size.Y,
		"size.z":        s.Size.Z,
		"initial_speed": s.InitialSpeed,
		"type_noise":    s.TypeNoise,
	})
	if s.Size.X < 0 || s.Size.Y < 0 || s.Size.Z < 0 {
		err.Add("spawn: size must be >= 0 on every axis")
	}
	if s.InitialSpeed < 0 {
		err.Add("spawn: initial_speed must be >= 0")
	}
	if s.TypeNoise < 0 {
		err.Add("spawn: type_noise must be >= 0")
	}
}

// ValidateState checks that the three state arrays line up and that every
// value is usable by a world with numTypes types.
func ValidateState(s State, numTypes int) error {
	err := &ValidationError{}
	n := len(s.Positions)
	if len(s.Velocities) != n || len(s.Types) != n {
		err.Addf("state arrays have mismatched lengths: positions=%d velocities=%d types=%d",
			len(s.Positions), len(s.Velocities), len(s.Types))
		return err
	}
	for i := 0; i < n; i++ {
		if !finiteVec(s.Positions[i]) || !finiteVec(s.Velocities[i]) {
			err.Addf("particle %d has a non-finite position or velocity", i)
		}
		if t := s.Types[i]; t < 0 || t >= numTypes {
			err.Addf("particle %d has type %d, want [0, %d)", i, t, numTypes)
		}
		if len(err.Issues) >= 10 {
			err.Add("further issues omitted")
			break
		}
	}
	return err.orNil()
}

// ValidateMatrix checks array sizes and range ordering of a type matrix.
func ValidateMatrix(m *TypeMatrix) error {
	err := &ValidationError{}
	if m == nil {
		err.Add("type matrix is nil")
		return err
	}
	if m.NumTypes < 1 {
		err.Addf("type matrix: num_types must be >= 1, got %d", m.NumTypes)
		return err
	}
	n2 := m.NumTypes * m.NumTypes
	if len(m.Attract) != n2 || len(m.RangeMin) != n2 || len(m.RangeMax) != n2 {
		err.Addf("type matrix: arrays must have %d entries, got attract=%d range_min=%d range_max=%d",
			n2, len(m.Attract), len(m.RangeMin), len(m.RangeMax))
		return err
	}
	for k := 0; k < n2; k++ {
		a, lo, hi := m.Attract[k], m.RangeMin[k], m.RangeMax[k]
		if !isFinite(a) || !isFinite(lo) || !isFinite(hi) {
			err.Addf("type matrix: entry %d is not finite", k)
		} else if lo < 0 || lo > hi {
			err.Addf("type matrix: entry %d must satisfy 0 <= range_min <= range_max, got [%g, %g]", k, lo, hi)
		}
		if len(err.Issues) >= 10 {
			err.Add("further issues omitted")
			break
		}
	}
	return err.orNil()
}

func checkFinite(err *ValidationError, prefix string, fields map[string]float64) {
	for name, v := range fields {
		if !isFinite(v) {
			err.Addf("%s: %s must be finite", prefix, name)
		}
	}
}

func finiteVec(v r3.Vec) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}
