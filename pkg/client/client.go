package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/daniacca/particlelife/internal/plife"
	"gonum.org/v1/gonum/spatial/r3"
)

// ConfigBuilder provides a fluent API for building world configurations.
// It starts from plife.DefaultConfig so only the settings that differ need
// to be named.
type ConfigBuilder struct {
	cfg plife.Config
}

// NewConfig creates a builder seeded with the default configuration.
func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{cfg: plife.DefaultConfig()}
}

// Bounds sets the world box.
func (cb *ConfigBuilder) Bounds(lower, upper r3.Vec) *ConfigBuilder {
	cb.cfg.World.Lower = lower
	cb.cfg.World.Upper = upper
	return cb
}

// Wrap selects which axes are periodic.
func (cb *ConfigBuilder) Wrap(x, y, z bool) *ConfigBuilder {
	cb.cfg.World.Wrap = [3]bool{x, y, z}
	return cb
}

// Bounce sets the restitution applied on non-periodic walls.
func (cb *ConfigBuilder) Bounce(bounce float64) *ConfigBuilder {
	cb.cfg.World.Bounce = bounce
	return cb
}

// CellSize sets the grid cell edge. It should not be smaller than the largest
// interaction range.
func (cb *ConfigBuilder) CellSize(size float64) *ConfigBuilder {
	cb.cfg.World.CellSize = size
	return cb
}

// Types sets the number of particle types.
func (cb *ConfigBuilder) Types(n int) *ConfigBuilder {
	cb.cfg.Types.NumTypes = n
	return cb
}

// Attraction sets the normal distribution attraction values are drawn from.
func (cb *ConfigBuilder) Attraction(mean, std float64) *ConfigBuilder {
	cb.cfg.Types.AttractMean = mean
	cb.cfg.Types.AttractStd = std
	return cb
}

// RangeMin sets the interval minimum ranges are drawn from.
func (cb *ConfigBuilder) RangeMin(lower, upper float64) *ConfigBuilder {
	cb.cfg.Types.RangeMinLower = lower
	cb.cfg.Types.RangeMinUpper = upper
	return cb
}

// RangeMax sets the interval maximum ranges are drawn from.
func (cb *ConfigBuilder) RangeMax(lower, upper float64) *ConfigBuilder {
	cb.cfg.Types.RangeMaxLower = lower
	cb.cfg.Types.RangeMaxUpper = upper
	return cb
}

// Friction sets the fraction of velocity kept after frictionTime seconds.
func (cb *ConfigBuilder) Friction(friction, frictionTime float64) *ConfigBuilder {
	cb.cfg.Physics.Friction = friction
	cb.cfg.Physics.FrictionTime = frictionTime
	return cb
}

// Strength scales every pair force.
func (cb *ConfigBuilder) Strength(strength float64) *ConfigBuilder {
	cb.cfg.Physics.Strength = strength
	return cb
}

// FlatForce switches between the flat and the tent-shaped force law.
func (cb *ConfigBuilder) FlatForce(flat bool) *ConfigBuilder {
	cb.cfg.Physics.FlatForce = flat
	return cb
}

// SmoothingRadius sets the softening distance of the repulsive core.
func (cb *ConfigBuilder) SmoothingRadius(r float64) *ConfigBuilder {
	cb.cfg.Physics.SmoothingRadius = r
	return cb
}

// Radius sets the particle radius.
func (cb *ConfigBuilder) Radius(r float64) *ConfigBuilder {
	cb.cfg.Physics.Radius = r
	return cb
}

// Speed sets both speed multipliers and the speed cap.
func (cb *ConfigBuilder) Speed(multiplier, multiplier2, maxSpeed float64) *ConfigBuilder {
	cb.cfg.Physics.SpeedMultiplier = multiplier
	cb.cfg.Physics.SpeedMultiplier2 = multiplier2
	cb.cfg.Physics.MaxSpeed = maxSpeed
	return cb
}

// MinStepRate caps the timestep at 1/rate seconds. Zero disables the cap.
func (cb *ConfigBuilder) MinStepRate(rate float64) *ConfigBuilder {
	cb.cfg.Physics.MinStepRate = rate
	return cb
}

// Gravity sets the gravity well. target is relative to the world box.
func (cb *ConfigBuilder) Gravity(target r3.Vec, strength, maxGravity float64) *ConfigBuilder {
	cb.cfg.Gravity.Target = target
	cb.cfg.Gravity.Strength = strength
	cb.cfg.Gravity.MaxGravity = maxGravity
	return cb
}

// LinearGravity switches the well to a linear falloff with the given range.
func (cb *ConfigBuilder) LinearGravity(targetRange float64) *ConfigBuilder {
	cb.cfg.Gravity.Linear = true
	cb.cfg.Gravity.TargetRange = targetRange
	return cb
}

// NoGravity disables the gravity well.
func (cb *ConfigBuilder) NoGravity() *ConfigBuilder {
	cb.cfg.Gravity.Strength = 0
	return cb
}

// Spawn sets the initial particle count.
func (cb *ConfigBuilder) Spawn(count int) *ConfigBuilder {
	cb.cfg.Spawn.Count = count
	return cb
}

// SpawnRegion sets the default spawn box, relative to the world box.
func (cb *ConfigBuilder) SpawnRegion(center, size r3.Vec) *ConfigBuilder {
	cb.cfg.Spawn.Center = center
	cb.cfg.Spawn.Size = size
	return cb
}

// InitialSpeed bounds the per-axis speed of spawned particles.
func (cb *ConfigBuilder) InitialSpeed(speed float64) *ConfigBuilder {
	cb.cfg.Spawn.InitialSpeed = speed
	return cb
}

// TypeNoise assigns spawned types from Perlin noise of the given frequency
// instead of uniformly at random. Zero disables it.
func (cb *ConfigBuilder) TypeNoise(freq float64) *ConfigBuilder {
	cb.cfg.Spawn.TypeNoise = freq
	return cb
}

// Workers bounds the force pass goroutines.
func (cb *ConfigBuilder) Workers(n int) *ConfigBuilder {
	cb.cfg.Workers = n
	return cb
}

// Seed fixes the world RNG seed.
func (cb *ConfigBuilder) Seed(seed uint64) *ConfigBuilder {
	cb.cfg.Seed = seed
	return cb
}

// Build returns the configuration.
func (cb *ConfigBuilder) Build() plife.Config {
	return cb.cfg
}

// Validate reports whether the built configuration would be accepted by a world.
func (cb *ConfigBuilder) Validate() error {
	return plife.ValidateConfig(cb.cfg)
}

// worldURL joins baseURL with /world/{worldID}/{route}.
func worldURL(baseURL, worldID, route string) (string, error) {
	u, err := url.JoinPath(baseURL, "world", worldID, route)
	if err != nil {
		return "", fmt.Errorf("failed to build URL: %w", err)
	}
	return u, nil
}

// doJSON sends in as a JSON body (when not nil) and decodes the response into
// out (when not nil). Any status other than 200 or 201 is an error.
func doJSON(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ApplyConfig creates the world with the built configuration, or replaces the
// configuration of an existing world.
func ApplyConfig(ctx context.Context, baseURL, worldID string, cfg *ConfigBuilder) error {
	u, err := worldURL(baseURL, worldID, "config")
	if err != nil {
		return err
	}
	return doJSON(ctx, http.MethodPost, u, cfg.Build(), nil)
}

// Spawn adds count particles in the world's default spawn region and returns
// the new particle count.
func Spawn(ctx context.Context, baseURL, worldID string, count int) (int, error) {
	u, err := worldURL(baseURL, worldID, "spawn")
	if err != nil {
		return 0, err
	}
	var resp struct {
		Particles int `json:"particles"`
	}
	if err := doJSON(ctx, http.MethodPost, u, map[string]int{"count": count}, &resp); err != nil {
		return 0, err
	}
	return resp.Particles, nil
}

// Step advances the world by one frame of dt seconds.
func Step(ctx context.Context, baseURL, worldID string, dt float64) (plife.StepStats, error) {
	u, err := worldURL(baseURL, worldID, "step")
	if err != nil {
		return plife.StepStats{}, err
	}
	u += "?dt=" + strconv.FormatFloat(dt, 'g', -1, 64)

	var stats plife.StepStats
	if err := doJSON(ctx, http.MethodPost, u, nil, &stats); err != nil {
		return plife.StepStats{}, err
	}
	return stats, nil
}

// FetchState returns the world's particle state.
func FetchState(ctx context.Context, baseURL, worldID string) (plife.State, error) {
	u, err := worldURL(baseURL, worldID, "state")
	if err != nil {
		return plife.State{}, err
	}
	var st plife.State
	if err := doJSON(ctx, http.MethodGet, u, nil, &st); err != nil {
		return plife.State{}, err
	}
	return st, nil
}

// PushState replaces the world's particle state.
func PushState(ctx context.Context, baseURL, worldID string, st plife.State) error {
	u, err := worldURL(baseURL, worldID, "state")
	if err != nil {
		return err
	}
	return doJSON(ctx, http.MethodPut, u, st, nil)
}

// FetchMatrix returns the active type matrix and its version.
func FetchMatrix(ctx context.Context, baseURL, worldID string) (*plife.TypeMatrix, uint64, error) {
	u, err := worldURL(baseURL, worldID, "matrix")
	if err != nil {
		return nil, 0, err
	}
	var resp struct {
		Version uint64            `json:"version"`
		Matrix  *plife.TypeMatrix `json:"matrix"`
	}
	if err := doJSON(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Matrix, resp.Version, nil
}

// PushMatrix publishes m and returns its version. With immediate set the
// world switches right away, otherwise at its next step.
func PushMatrix(ctx context.Context, baseURL, worldID string, m *plife.TypeMatrix, immediate bool) (uint64, error) {
	u, err := worldURL(baseURL, worldID, "matrix")
	if err != nil {
		return 0, err
	}
	if immediate {
		u += "?immediate=true"
	}
	var resp struct {
		Version uint64 `json:"version"`
	}
	if err := doJSON(ctx, http.MethodPut, u, m, &resp); err != nil {
		return 0, err
	}
	return resp.Version, nil
}

// FetchStats returns the world's stats report.
func FetchStats(ctx context.Context, baseURL, worldID string) (plife.StatsReport, error) {
	u, err := worldURL(baseURL, worldID, "stats")
	if err != nil {
		return plife.StatsReport{}, err
	}
	var report plife.StatsReport
	if err := doJSON(ctx, http.MethodGet, u, nil, &report); err != nil {
		return plife.StatsReport{}, err
	}
	return report, nil
}
