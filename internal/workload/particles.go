// Package workload provides synthetic task payloads for benchmarks and demos.
package workload

import (
	"context"
	"fmt"

	"github.com/fyh275905/sofa-sub006/core"
)

// ParticleSystem is a chain of unit particles joined by damped springs, with
// both ends pinned. It implements animation.Animatable; Step splits the force
// and integration passes across the scheduler that runs it.
type ParticleSystem struct {
	name string

	Stiffness  float64
	Damping    float64
	RestLength float64
	Mass       float64
	// Grain is the chunk size handed to ForEachRange; 0 lets it choose.
	Grain int

	pos   []float64
	vel   []float64
	force []float64
}

// NewParticleSystem returns n particles at rest spacing with a sine
// displacement so the chain starts oscillating. n is raised to 2.
func NewParticleSystem(name string, n int) *ParticleSystem {
	n = max(n, 2)
	p := &ParticleSystem{
		name:       name,
		Stiffness:  100,
		Damping:    0.5,
		RestLength: 1,
		Mass:       1,
		pos:        make([]float64, n),
		vel:        make([]float64, n),
		force:      make([]float64, n),
	}
	for i := range p.pos {
		p.pos[i] = float64(i) * p.RestLength
		if i > 0 && i < n-1 {
			p.pos[i] += 0.1 * sinApprox(float64(i))
		}
	}
	return p
}

func (p *ParticleSystem) Name() string { return p.name }

// Len returns the number of particles.
func (p *ParticleSystem) Len() int { return len(p.pos) }

// Positions returns a copy of the particle positions.
func (p *ParticleSystem) Positions() []float64 {
	return append([]float64(nil), p.pos...)
}

// Step integrates one semi-implicit Euler step. When ctx is bound to a
// scheduler worker both passes run through core.ForEachRange, otherwise inline.
func (p *ParticleSystem) Step(ctx context.Context, dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("workload: %s: dt must be positive, got %v", p.name, dt)
	}
	if err := p.each(ctx, p.accumulate); err != nil {
		return err
	}
	return p.each(ctx, func(ctx context.Context, lo, hi int) error {
		p.integrate(lo, hi, dt)
		return nil
	})
}

func (p *ParticleSystem) each(ctx context.Context, fn core.RangeFunc) error {
	s := core.SchedulerFromContext(ctx)
	if s == nil {
		return fn(ctx, 0, len(p.pos))
	}
	return core.ForEachRange(ctx, s, 0, len(p.pos), p.Grain, fn)
}

func (p *ParticleSystem) accumulate(_ context.Context, lo, hi int) error {
	last := len(p.pos) - 1
	for i := lo; i < hi; i++ {
		if i == 0 || i == last {
			p.force[i] = 0
			continue
		}
		left := p.pos[i] - p.pos[i-1] - p.RestLength
		right := p.pos[i+1] - p.pos[i] - p.RestLength
		p.force[i] = p.Stiffness*(right-left) - p.Damping*p.vel[i]
	}
	return nil
}

func (p *ParticleSystem) integrate(lo, hi int, dt float64) {
	for i := lo; i < hi; i++ {
		p.vel[i] += p.force[i] / p.Mass * dt
		p.pos[i] += p.vel[i] * dt
	}
}

// Energy returns the kinetic plus spring potential energy of the chain.
func (p *ParticleSystem) Energy() float64 {
	var e float64
	for i := range p.pos {
		e += 0.5 * p.Mass * p.vel[i] * p.vel[i]
		if i > 0 {
			d := p.pos[i] - p.pos[i-1] - p.RestLength
			e += 0.5 * p.Stiffness * d * d
		}
	}
	return e
}

// sinApprox is a Bhaskara-style approximation, enough for a deterministic
// initial displacement.
func sinApprox(x float64) float64 {
	const pi = 3.141592653589793
	for x > pi {
		x -= 2 * pi
	}
	sign := 1.0
	if x < 0 {
		x, sign = -x, -1
	}
	return sign * 16 * x * (pi - x) / (5*pi*pi - 4*x*(pi-x))
}
