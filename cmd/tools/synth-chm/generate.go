package main

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/treecrown/internal/features"
	"github.com/banshee-data/treecrown/internal/forest"
	"github.com/banshee-data/treecrown/internal/raster"
)

type options struct {
	Rows, Cols           int
	Crowns               int
	Reference            int
	MinHeight, MaxHeight float64
	Seed                 uint64
}

func defaultOptions() options {
	return options{
		Rows:      200,
		Cols:      200,
		Crowns:    60,
		Reference: 80,
		MinHeight: 4,
		MaxHeight: 30,
		Seed:      1,
	}
}

func (o options) validate() error {
	switch {
	case o.Rows < 8 || o.Cols < 8:
		return errors.New("raster must be at least 8x8")
	case o.Crowns < 0:
		return errors.New("crown count must not be negative")
	case o.Reference < 2:
		return errors.New("need at least two reference trees")
	case o.MinHeight <= 0 || o.MaxHeight < o.MinHeight:
		return errors.New("heights must satisfy 0 < min <= max")
	}
	return nil
}

// crown is a rounded canopy with apex height Height and ground radius Radius.
type crown struct {
	Row, Col float64
	Height   float64
	Radius   float64
}

// radiusFor gives taller trees wider crowns, roughly as in open oak
// woodland.
func radiusFor(height float64) float64 {
	return 1.5 + 0.18*height
}

// at returns the canopy height of c at cell (r, col), zero outside the crown.
func (c crown) at(r, col int) float64 {
	dr, dc := float64(r)-c.Row, float64(col)-c.Col
	d2 := dr*dr + dc*dc
	if d2 > c.Radius*c.Radius {
		return 0
	}
	s := c.Radius / 2
	return c.Height * math.Exp(-d2/(2*s*s))
}

// allometricBiomass is a synthetic dry-mass model in kilograms.
func allometricBiomass(height, radius float64) float64 {
	diameter := 2 * radius
	return 0.0673 * math.Pow(diameter*diameter*height*25, 0.976)
}

func (o options) randomCrown(rng *rand.Rand) crown {
	h := o.MinHeight + rng.Float64()*(o.MaxHeight-o.MinHeight)
	return crown{Height: h, Radius: radiusFor(h) * (0.85 + 0.3*rng.Float64())}
}

// render draws crowns onto a grid, keeping the taller canopy where
// crowns overlap.
func render(rows, cols int, crowns []crown) *raster.Grid {
	g := raster.NewGrid(rows, cols)
	for _, c := range crowns {
		r0, r1 := int(c.Row-c.Radius), int(c.Row+c.Radius)+1
		c0, c1 := int(c.Col-c.Radius), int(c.Col+c.Radius)+1
		for r := max(r0, 0); r <= min(r1, rows-1); r++ {
			for col := max(c0, 0); col <= min(c1, cols-1); col++ {
				if v := c.at(r, col); v > g.At(r, col) {
					g.Set(r, col, v)
				}
			}
		}
	}
	return g
}

// referenceRow renders c alone and measures it with the production
// feature extractor, so training vectors match what the pipeline sees.
func referenceRow(c crown, percentiles [3]float64) ([]float64, error) {
	size := int(2*c.Radius) + 5
	c.Row, c.Col = float64(size/2), float64(size/2)
	g := render(size, size, []crown{c})
	labels := raster.NewLabelGrid(size, size)
	for i, v := range g.Data {
		if v > 0 {
			labels.Data[i] = 1
		}
	}
	trees, err := features.Extract(g, labels, percentiles)
	if err != nil {
		return nil, err
	}
	if len(trees) != 1 {
		return nil, errors.New("reference crown did not render")
	}
	return trees[0].Vector(), nil
}

// generate builds the CHM and a training table of independently drawn
// reference crowns.
func generate(o options) (*raster.Grid, *forest.TrainingTable, error) {
	if err := o.validate(); err != nil {
		return nil, nil, err
	}
	rng := rand.New(rand.NewPCG(o.Seed, o.Seed^0x5851f42d4c957f2d))

	crowns := make([]crown, 0, o.Crowns)
	for i := 0; i < o.Crowns; i++ {
		c := o.randomCrown(rng)
		c.Row = c.Radius + rng.Float64()*(float64(o.Rows)-2*c.Radius)
		c.Col = c.Radius + rng.Float64()*(float64(o.Cols)-2*c.Radius)
		crowns = append(crowns, c)
	}
	chm := render(o.Rows, o.Cols, crowns)

	table := &forest.TrainingTable{}
	for i := 0; i < o.Reference; i++ {
		c := o.randomCrown(rng)
		row, err := referenceRow(c, features.DefaultPercentiles)
		if err != nil {
			return nil, nil, err
		}
		noise := 1 + 0.1*rng.NormFloat64()
		table.Features = append(table.Features, row)
		table.Biomass = append(table.Biomass, math.Max(allometricBiomass(c.Height, c.Radius)*noise, 1))
	}
	return chm, table, nil
}
