package plife

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// integrator advances a single particle by one timestep. All fields are
// derived from the step snapshot, so one value is shared by every worker.
type integrator struct {
	lower, upper r3.Vec
	ext          [3]float64
	wrap         [3]bool
	bounce       float64

	gravityTarget   r3.Vec
	gravityRange    float64
	gravityStrength float64
	maxGravity      float64
	gravityLinear   bool

	frictionMode   frictionMode
	frictionFactor float64
	maxSpeed       float64
	dt             float64
}

type frictionMode int

const (
	frictionNone frictionMode = iota
	frictionStop
	frictionDecay
)

func newIntegrator(cfg Config, dt float64) *integrator {
	w := cfg.World
	ext := w.Extent()
	in := &integrator{
		lower:           w.Lower,
		upper:           w.Upper,
		ext:             [3]float64{ext.X, ext.Y, ext.Z},
		wrap:            w.Wrap,
		bounce:          w.Bounce,
		gravityTarget:   gravityTarget(w, cfg.Gravity.Target),
		gravityRange:    cfg.Gravity.TargetRange,
		gravityStrength: cfg.Gravity.Strength,
		maxGravity:      math.Abs(cfg.Gravity.MaxGravity),
		gravityLinear:   cfg.Gravity.Linear,
		maxSpeed:        cfg.Physics.MaxSpeed,
		dt:              dt,
	}
	in.frictionMode, in.frictionFactor = frictionFactor(cfg.Physics.Friction, cfg.Physics.FrictionTime, dt)
	return in
}

// gravityTarget converts a target relative to the world box into world
// coordinates.
func gravityTarget(w WorldConfig, rel r3.Vec) r3.Vec {
	ext := w.Extent()
	return r3.Vec{
		X: w.Lower.X + rel.X*ext.X,
		Y: w.Lower.Y + rel.Y*ext.Y,
		Z: w.Lower.Z + rel.Z*ext.Z,
	}
}

// frictionFactor converts "velocity decays to friction after frictionTime
// seconds" into the per-step multiplier for a step of length dt.
func frictionFactor(friction, frictionTime, dt float64) (frictionMode, float64) {
	if friction == 1 || dt == 0 {
		return frictionNone, 1
	}
	if friction == 0 {
		return frictionStop, 0
	}
	gain1s := 1 - friction
	denom := frictionTime*(1-gain1s)/gain1s + dt
	if !(math.Abs(denom) > epsilon) || !isFinite(denom) {
		return frictionNone, 1
	}
	gainDt := dt / denom
	return frictionDecay, 1 - gainDt
}

// advance applies the accumulated pairwise velocity change dv, gravity,
// movement, friction, the boundary policy and the speed clamp.
func (in *integrator) advance(p, v, dv r3.Vec) (r3.Vec, r3.Vec) {
	v = r3.Add(v, dv)
	v = r3.Add(v, in.gravity(p))

	p = r3.Add(p, r3.Scale(in.dt, v))

	switch in.frictionMode {
	case frictionStop:
		v = r3.Vec{}
	case frictionDecay:
		v = r3.Scale(in.frictionFactor, v)
	}

	p.X, v.X = in.boundAxis(0, p.X, v.X, in.lower.X, in.upper.X)
	p.Y, v.Y = in.boundAxis(1, p.Y, v.Y, in.lower.Y, in.upper.Y)
	p.Z, v.Z = in.boundAxis(2, p.Z, v.Z, in.lower.Z, in.upper.Z)

	if speed := r3.Norm(v); speed > in.maxSpeed {
		if in.maxSpeed > 0 && speed > 0 {
			v = r3.Scale(in.maxSpeed/speed, v)
		} else {
			v = r3.Vec{}
		}
	}
	return p, v
}

// gravity returns the velocity change from the gravity well for a particle
// at p. Inside the target range the quadratic law pushes outwards.
func (in *integrator) gravity(p r3.Vec) r3.Vec {
	diff := r3.Sub(in.gravityTarget, p)
	dist := r3.Norm(diff)
	if dist <= epsilon {
		return r3.Vec{}
	}
	rangeDiff := in.gravityRange - dist
	if math.Abs(rangeDiff) <= epsilon {
		return r3.Vec{}
	}
	var g float64
	if in.gravityLinear {
		g = in.gravityStrength / -rangeDiff
	} else {
		g = in.gravityStrength / (rangeDiff * rangeDiff)
		if rangeDiff > 0 {
			g = -g
		}
	}
	g = math.Max(-in.maxGravity, math.Min(in.maxGravity, g))
	return r3.Scale(g*in.dt/dist, diff)
}

func (in *integrator) boundAxis(a int, p, v, lower, upper float64) (float64, float64) {
	if in.wrap[a] && in.ext[a] > 0 {
		return foldPeriodic(p, lower, upper, in.ext[a]), v
	}
	if p < lower {
		return lower, -in.bounce * v
	}
	if p > upper {
		return upper, -in.bounce * v
	}
	return p, v
}

// foldPeriodic maps p into [lower, upper) by whole multiples of extent.
func foldPeriodic(p, lower, upper, extent float64) float64 {
	for k := 0; k < maxFoldIterations; k++ {
		switch {
		case p < lower:
			p += extent
		case p >= upper:
			p -= extent
		default:
			return p
		}
	}
	p = lower + math.Mod(p-lower, extent)
	if p < lower {
		p += extent
	}
	if p >= upper || p < lower {
		p = lower
	}
	return p
}

// effectiveDt caps the frame time at 1/MinStepRate and applies both speed
// multipliers. Negative or non-finite frame times yield 0.
func effectiveDt(frameDt float64, p PhysicsConfig) float64 {
	if !(frameDt > 0) || !isFinite(frameDt) {
		return 0
	}
	dt := frameDt
	if rate := math.Abs(p.MinStepRate); rate > epsilon {
		dt = math.Min(1/rate, frameDt)
	}
	return dt * p.SpeedMultiplier * p.SpeedMultiplier2
}
