/*
Copyright © 2021 the RTM authors.
This file is part of RTM.

RTM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RTM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RTM.  If not, see <http://www.gnu.org/licenses/>.
*/

package rtm

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

// EquationOrder is the time order of the wave equation being solved.
type EquationOrder int

// Supported equation orders.
const (
	// SecondOrder solves the scalar second-order acoustic equation for
	// pressure alone.
	SecondOrder EquationOrder = iota + 1
	// FirstOrder solves the coupled pressure / particle-velocity system on
	// a staggered grid.
	FirstOrder
)

func (o EquationOrder) String() string {
	switch o {
	case SecondOrder:
		return "second"
	case FirstOrder:
		return "first"
	}
	return "unknown"
}

// ParseEquationOrder parses "first" or "second".
func ParseEquationOrder(s string) (EquationOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "second", "2":
		return SecondOrder, nil
	case "first", "1":
		return FirstOrder, nil
	}
	return 0, errorf(ConfigurationError, "ParseEquationOrder", "unknown equation order %q", s)
}

// Approximation is the physics of the medium.
type Approximation int

// Isotropic is the only supported approximation.
const Isotropic Approximation = 1

// ParseApproximation parses a physics tag.
func ParseApproximation(s string) (Approximation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "isotropic", "":
		return Isotropic, nil
	}
	return 0, errorf(ConfigurationError, "ParseApproximation", "unsupported approximation %q", s)
}

// BoundaryPolicy names how the edges of the domain treat outgoing waves.
type BoundaryPolicy string

// Boundary policies.
const (
	NoBoundary     BoundaryPolicy = "none"
	SpongeBoundary BoundaryPolicy = "sponge"
	RandomBoundary BoundaryPolicy = "random"
	CPMLBoundary   BoundaryPolicy = "cpml"
)

// ParseBoundaryPolicy parses a boundary policy name. "absorbing-layer"
// is accepted as a synonym for "cpml".
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch p := BoundaryPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case NoBoundary, SpongeBoundary, RandomBoundary, CPMLBoundary:
		return p, nil
	case "absorbing-layer":
		return CPMLBoundary, nil
	}
	return "", errorf(ConfigurationError, "ParseBoundaryPolicy", "unknown boundary policy %q", s)
}

// Compensation selects illumination compensation of the image.
type Compensation int

// Compensation types.
const (
	NoCompensation Compensation = iota + 1
	CombinedCompensation
)

// ParseCompensation parses "none" or "combined".
func ParseCompensation(s string) (Compensation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return NoCompensation, nil
	case "combined":
		return CombinedCompensation, nil
	}
	return 0, errorf(ConfigurationError, "ParseCompensation", "unknown illumination compensation %q", s)
}

// CollectorKind selects how the source wavefield is made available to
// the backward pass.
type CollectorKind string

// Forward collectors.
const (
	// BoundarySaving stores the boundary ring of every step and
	// reconstructs the wavefield with the inverse kernel.
	BoundarySaving CollectorKind = "boundary-saving"
	// TwoPropagation stores the pressure of every step.
	TwoPropagation CollectorKind = "two-propagation"
	// ReversePropagation stores nothing and runs the inverse kernel from
	// the last state. It requires the none or random boundary.
	ReversePropagation CollectorKind = "reverse-propagation"
)

// ParseCollector parses a forward collector name.
func ParseCollector(s string) (CollectorKind, error) {
	switch c := CollectorKind(strings.ToLower(strings.TrimSpace(s))); c {
	case BoundarySaving, TwoPropagation, ReversePropagation:
		return c, nil
	case "":
		return BoundarySaving, nil
	}
	return "", errorf(ConfigurationError, "ParseCollector", "unknown forward collector %q", s)
}

// Compression is the encoding of stored snapshots.
type Compression string

// Snapshot compressions.
const (
	NoSnapshotCompression Compression = "none"
	ZstdCompression       Compression = "zstd"
)

// ParseCompression parses "none" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case NoSnapshotCompression, ZstdCompression:
		return c, nil
	case "":
		return NoSnapshotCompression, nil
	}
	return "", errorf(ConfigurationError, "ParseCompression", "unknown snapshot compression %q", s)
}

// WindowConfig describes a source-centered computation window, in
// physical cells.
type WindowConfig struct {
	Enabled bool

	LeftX, RightX int // cells on each side of the source along x
	LeftY, RightY int // cells on each side of the source along y
	Depth         int // cells along z; 0 uses the full depth
}

// CPMLConfig holds the tuning of the convolutional PML.
type CPMLConfig struct {
	ReflectCoefficient float64
	ShiftRatio         float64
	RelaxCoefficient   float64
}

// RandomConfig holds the tuning of the random boundary.
type RandomConfig struct {
	GrainSize int   // edge length in cells of the randomized blocks
	Seed      int64 // seed of the random stream
}

// ComputationParameters is the configuration of a run. It is built once,
// validated with Validate, and then only read.
type ComputationParameters struct {
	Order           int // spatial order of the stencil, twice the half length
	HalfLength      int
	BoundaryLength  int
	SourceFrequency float64 // peak frequency of the source wavelet [Hz]
	DTRelax         float64 // fraction of the stable time step to use

	BlockX, BlockY, BlockZ int

	Window        WindowConfig
	EquationOrder EquationOrder
	Approximation Approximation
	Boundary      BoundaryPolicy
	Compensation  Compensation
	UseTopLayer   bool
	CPML          CPMLConfig
	Random        RandomConfig

	// Collector and Compression select how the source wavefield reaches
	// the backward pass.
	Collector   CollectorKind
	Compression Compression

	// Alignment rounds the allocated x size up to a multiple of this
	// many cells. Values < 2 disable it.
	Alignment int

	// MaxCells caps the number of cells of any single allocation.
	MaxCells int

	// Finite difference coefficients for half lengths 0..HalfLength.
	SecondDerivative    []float64
	FirstDerivative     []float64
	StaggeredDerivative []float64
}

// Defaults of the optional parameters.
const (
	DefaultSourceFrequency = 200
	DefaultBoundaryLength  = 20
	DefaultDTRelax         = 0.4
	DefaultBlock           = 16
	DefaultMaxCells        = 1 << 30
)

// NewComputationParameters returns parameters for a stencil of the given
// spatial order with default values for everything else.
func NewComputationParameters(order int) (*ComputationParameters, error) {
	p := &ComputationParameters{
		Order:           order,
		BoundaryLength:  DefaultBoundaryLength,
		SourceFrequency: DefaultSourceFrequency,
		DTRelax:         DefaultDTRelax,
		BlockX:          DefaultBlock,
		BlockY:          DefaultBlock,
		BlockZ:          DefaultBlock,
		EquationOrder:   SecondOrder,
		Approximation:   Isotropic,
		Boundary:        SpongeBoundary,
		Compensation:    NoCompensation,
		UseTopLayer:     true,
		CPML: CPMLConfig{
			ReflectCoefficient: 0.1,
			ShiftRatio:         0.1,
			RelaxCoefficient:   0.1,
		},
		Random:      RandomConfig{GrainSize: 4, Seed: 1},
		Collector:   BoundarySaving,
		Compression: NoSnapshotCompression,
		MaxCells:    DefaultMaxCells,
	}
	if err := p.setCoefficients(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the parameters. Optional values that are out of range
// are replaced by their defaults and a warning is logged; anything else
// that is invalid is a ConfigurationError.
func (p *ComputationParameters) Validate(log logrus.FieldLogger) error {
	const op = "ComputationParameters.Validate"
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := p.setCoefficients(); err != nil {
		return err
	}
	if p.BoundaryLength < 0 {
		return errorf(ConfigurationError, op, "boundary-length must be >= 0, got %d", p.BoundaryLength)
	}
	if !(p.SourceFrequency > 0) {
		return errorf(ConfigurationError, op, "source-frequency must be > 0, got %g", p.SourceFrequency)
	}
	if !(p.DTRelax > 0 && p.DTRelax <= 1) {
		log.WithField("dt-relax", p.DTRelax).Warnf("dt-relax outside of (0,1]; using %g", DefaultDTRelax)
		p.DTRelax = DefaultDTRelax
	}
	for _, b := range []struct {
		name string
		v    *int
	}{{"block-x", &p.BlockX}, {"block-y", &p.BlockY}, {"block-z", &p.BlockZ}} {
		if *b.v <= 0 {
			log.WithField(b.name, *b.v).Warnf("%s must be > 0; using %d", b.name, DefaultBlock)
			*b.v = DefaultBlock
		}
	}
	w := p.Window
	if w.LeftX < 0 || w.RightX < 0 || w.LeftY < 0 || w.RightY < 0 || w.Depth < 0 {
		return errorf(ConfigurationError, op, "invalid window margins %+v", w)
	}
	switch p.EquationOrder {
	case SecondOrder, FirstOrder:
	default:
		return errorf(ConfigurationError, op, "unsupported equation order %d", int(p.EquationOrder))
	}
	if p.Approximation != Isotropic {
		return errorf(ConfigurationError, op, "unsupported approximation %d", int(p.Approximation))
	}
	b, err := ParseBoundaryPolicy(string(p.Boundary))
	if err != nil {
		return err
	}
	p.Boundary = b
	c, err := ParseCollector(string(p.Collector))
	if err != nil {
		return err
	}
	p.Collector = c
	if p.Compression, err = ParseCompression(string(p.Compression)); err != nil {
		return err
	}
	if c == ReversePropagation && p.Boundary != NoBoundary && p.Boundary != RandomBoundary {
		return errorf(ConfigurationError, op, "the %s collector requires the %s or %s boundary, got %s",
			c, NoBoundary, RandomBoundary, p.Boundary)
	}
	switch p.Compensation {
	case NoCompensation, CombinedCompensation:
	default:
		return errorf(ConfigurationError, op, "unsupported compensation %d", int(p.Compensation))
	}
	if p.Random.GrainSize <= 0 {
		log.WithField("grain-size", p.Random.GrainSize).Warn("random grain size must be > 0; using 1")
		p.Random.GrainSize = 1
	}
	if p.MaxCells <= 0 {
		p.MaxCells = DefaultMaxCells
	}
	return nil
}

// setCoefficients fills the finite difference tables for p.Order.
func (p *ComputationParameters) setCoefficients() error {
	c, ok := fdCoefficients[p.Order]
	if !ok {
		return errorf(ConfigurationError, "ComputationParameters", "unsupported stencil order %d: "+
			"must be one of 2, 4, 8, 12 or 16", p.Order)
	}
	p.HalfLength = p.Order / 2
	p.SecondDerivative = append([]float64(nil), c.second...)
	p.FirstDerivative = append([]float64(nil), c.first...)
	p.StaggeredDerivative = append([]float64(nil), c.staggered...)
	return nil
}

type fdTable struct {
	second, first, staggered []float64
}

// fdCoefficients holds the zero and positive offset coefficients of each
// supported spatial order.
var fdCoefficients = map[int]fdTable{
	2: {
		second:    []float64{-2, 1},
		first:     []float64{0, 0.5},
		staggered: []float64{0, 1},
	},
	4: {
		second:    []float64{-2.5, 1.33333333333, -0.08333333333},
		first:     []float64{0, 2. / 3., -1. / 12.},
		staggered: []float64{0, 1.125, -0.041666666666666664},
	},
	8: {
		second:    []float64{-2.847222222, 1.6, -0.2, 2.53968e-2, -1.785714e-3},
		first:     []float64{0, 0.8, -0.2, 0.03809523809, -0.00357142857},
		staggered: []float64{0, 1.1962890625, -0.07975260416666667, 0.0095703125, -0.0006975446428571429},
	},
	12: {
		second: []float64{-2.98277777778, 1.71428571429, -0.26785714285, 0.05291005291,
			-0.00892857142, 0.00103896103, -0.00006012506},
		first: []float64{0, 0.857142857143, -0.267857142857, 0.0793650793651,
			-0.0178571428571, 0.0025974025974, -0.000180375180375},
		staggered: []float64{0, 1.2213363647460938, -0.09693145751953125, 0.017447662353515626,
			-0.002967289515904018, 0.0003590053982204861, -2.184781161221591e-05},
	},
	16: {
		second: []float64{-3.05484410431, 1.77777777778, -0.311111111111, 0.0754208754209,
			-0.0176767676768, 0.00348096348096, -0.000518000518001, 5.07429078858e-05,
			-2.42812742813e-06},
		first: []float64{0, 0.888888888889, -0.311111111111, 0.113131313131,
			-0.0353535353535, 0.00870240870241, -0.001554001554, 0.0001776001776,
			-9.71250971251e-06},
		staggered: []float64{0, 1.2340910732746122, -0.10664984583854668, 0.023036366701126076,
			-0.005342385598591385, 0.0010772711700863268, -0.00016641887751492495,
			1.7021711056048922e-05, -8.523464202880773e-07},
	},
}

// SuitableDT returns the time step that keeps the explicit scheme stable
// on the given axes for a maximum velocity vmax, scaled by DTRelax.
func (p *ComputationParameters) SuitableDT(axes Axis3, vmax float64) float64 {
	inv := 1/(axes.X.CellSize*axes.X.CellSize) + 1/(axes.Z.CellSize*axes.Z.CellSize)
	if !axes.Is2D() {
		inv += 1 / (axes.Y.CellSize * axes.Y.CellSize)
	}
	if p.EquationOrder == FirstOrder {
		var s float64
		for _, c := range p.StaggeredDerivative[1:] {
			s += math.Abs(c)
		}
		return p.DTRelax / (vmax * math.Sqrt(inv) * s)
	}
	a2 := math.Abs(p.SecondDerivative[0])
	for _, c := range p.SecondDerivative[1:] {
		a2 += 2 * math.Abs(c)
	}
	const a1 = 4.
	return p.DTRelax * math.Sqrt(a1/a2) / math.Sqrt(inv) / vmax
}
