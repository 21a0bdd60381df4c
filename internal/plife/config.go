package plife

import "gonum.org/v1/gonum/spatial/r3"

// WorldConfig describes the simulated domain and the uniform grid laid over it.
type WorldConfig struct {
	Lower    r3.Vec  `json:"lower"`
	Upper    r3.Vec  `json:"upper"`
	Wrap     [3]bool `json:"wrap"`
	Bounce   float64 `json:"bounce"`
	CellSize float64 `json:"cell_size"`
}

// Extent returns Upper - Lower.
func (w WorldConfig) Extent() r3.Vec {
	return r3.Sub(w.Upper, w.Lower)
}

// PhysicsConfig holds the integrator and force law parameters.
type PhysicsConfig struct {
	// MinStepRate caps the timestep at 1/MinStepRate seconds. Zero disables the cap.
	MinStepRate      float64 `json:"min_step_rate"`
	SpeedMultiplier  float64 `json:"speed_multiplier"`
	SpeedMultiplier2 float64 `json:"speed_multiplier2"`
	MaxSpeed         float64 `json:"max_speed"`

	// Friction is the fraction of velocity left after FrictionTime seconds.
	Friction     float64 `json:"friction"`
	FrictionTime float64 `json:"friction_time"`

	Strength        float64 `json:"strength"`
	FlatForce       bool    `json:"flat_force"`
	SmoothingRadius float64 `json:"smoothing_radius"`

	// Radius is the display radius of a particle. Twice the radius is the
	// minimum interaction separation used when randomizing the type matrix.
	Radius float64 `json:"radius"`
}

// GravityConfig describes the global gravity well.
type GravityConfig struct {
	// Target is relative to the world box: (0,0,0) is Lower, (1,1,1) is Upper.
	Target      r3.Vec  `json:"target"`
	TargetRange float64 `json:"target_range"`
	Linear      bool    `json:"linear"`
	Strength    float64 `json:"strength"`
	MaxGravity  float64 `json:"max_gravity"`
}

// TypesConfig holds the type count and the distribution used to randomize
// the type matrix.
type TypesConfig struct {
	NumTypes      int     `json:"num_types"`
	AttractMean   float64 `json:"attract_mean"`
	AttractStd    float64 `json:"attract_std"`
	RangeMinLower float64 `json:"range_min_lower"`
	RangeMinUpper float64 `json:"range_min_upper"`
	RangeMaxLower float64 `json:"range_max_lower"`
	RangeMaxUpper float64 `json:"range_max_upper"`
}

// SpawnConfig holds the default spawn parameters.
type SpawnConfig struct {
	Count        int     `json:"count"`
	Center       r3.Vec  `json:"center"`
	Size         r3.Vec  `json:"size"`
	InitialSpeed float64 `json:"initial_speed"`
	TypeNoise    float64 `json:"type_noise,omitempty"`
}

// Config is the complete set of parameters a World runs with.
type Config struct {
	World   WorldConfig   `json:"world"`
	Physics PhysicsConfig `json:"physics"`
	Gravity GravityConfig `json:"gravity"`
	Types   TypesConfig   `json:"types"`
	Spawn   SpawnConfig   `json:"spawn"`

	// Workers bounds the goroutines used by the force pass. Zero means GOMAXPROCS.
	Workers int `json:"workers,omitempty"`
	// Seed for the world RNG. Zero seeds from the clock.
	Seed uint64 `json:"seed,omitempty"`
}

// DefaultConfig returns the stock configuration: a 2000 unit periodic cube,
// ten particle types and 500 particles spawned in the central quarter.
func DefaultConfig() Config {
	return Config{
		World: WorldConfig{
			Lower:    r3.Vec{X: -1000, Y: -1000, Z: -1000},
			Upper:    r3.Vec{X: 1000, Y: 1000, Z: 1000},
			Wrap:     [3]bool{true, true, true},
			Bounce:   1.0,
			CellSize: 50.0,
		},
		Physics: PhysicsConfig{
			MinStepRate:      60.0,
			SpeedMultiplier:  1.0,
			SpeedMultiplier2: 2.0,
			MaxSpeed:         100.0,
			Friction:         0.995,
			FrictionTime:     0.1,
			Strength:         100.0,
			FlatForce:        false,
			SmoothingRadius:  2.0,
			Radius:           4.0,
		},
		Gravity: GravityConfig{
			Target:      r3.Vec{X: 0.5, Y: 0.5, Z: 0.5},
			TargetRange: 0.0,
			Linear:      false,
			Strength:    1e8,
			MaxGravity:  7.0,
		},
		Types: TypesConfig{
			NumTypes:      10,
			AttractMean:   0,
			AttractStd:    4.0,
			RangeMinLower: 0.0,
			RangeMinUpper: 20.0,
			RangeMaxLower: 10.0,
			RangeMaxUpper: 50.0,
		},
		Spawn: SpawnConfig{
			Count:        500,
			Center:       r3.Vec{X: 0.5, Y: 0.5, Z: 0.5},
			Size:         r3.Vec{X: 0.25, Y: 0.25, Z: 0.25},
			InitialSpeed: 2.0,
		},
	}
}

// RandomizeParams derives the matrix randomization parameters from the
// type settings and the particle radius.
func (c Config) RandomizeParams() RandomizeParams {
	return RandomizeParams{
		AttractMean:   c.Types.AttractMean,
		AttractStd:    c.Types.AttractStd,
		RangeMin:      [2]float64{c.Types.RangeMinLower, c.Types.RangeMinUpper},
		RangeMax:      [2]float64{c.Types.RangeMaxLower, c.Types.RangeMaxUpper},
		MinSeparation: 2 * c.Physics.Radius,
	}
}

// SpawnRegion returns the default spawn region.
func (c Config) SpawnRegion() SpawnRegion {
	return SpawnRegion{
		Center:       c.Spawn.Center,
		Size:         c.Spawn.Size,
		InitialSpeed: c.Spawn.InitialSpeed,
		TypeNoise:    c.Spawn.TypeNoise,
	}
}
