package assign

import (
	"github.com/metrograph/demandgen/internal/geo"
	"github.com/metrograph/demandgen/internal/model"
)

// Assigner resolves a building to a neighborhood index, or reports that the
// building falls outside every neighborhood's reach.
type Assigner interface {
	Assign(b model.SimplifiedBuilding) (int, bool)
}

// Aggregation is the per-neighborhood rollup of building occupancy.
type Aggregation struct {
	// Neighborhoods carries the input set with Population, Jobs and the
	// city-wide shares filled in.
	Neighborhoods []model.Neighborhood
	// BuildingHood is the neighborhood index per input building, -1 for
	// buildings that could not be assigned.
	BuildingHood []int32
	Assigned     int
	Dropped      int
}

// Aggregate assigns every building and accumulates population and job
// totals per neighborhood. Floor area is bbox area times above-ground
// levels; the class lookup decides whether it counts as residents or jobs.
// Unassigned buildings are dropped from the totals, never fatal.
func Aggregate(buildings []model.SimplifiedBuilding, hoods []model.Neighborhood, a Assigner) Aggregation {
	out := Aggregation{
		Neighborhoods: make([]model.Neighborhood, len(hoods)),
		BuildingHood:  make([]int32, len(buildings)),
	}
	copy(out.Neighborhoods, hoods)
	for i := range out.Neighborhoods {
		out.Neighborhoods[i].Population = 0
		out.Neighborhoods[i].Jobs = 0
	}

	for i, b := range buildings {
		idx, ok := a.Assign(b)
		if !ok {
			out.BuildingHood[i] = -1
			out.Dropped++
			continue
		}
		out.BuildingHood[i] = int32(idx)
		out.Assigned++

		levels := b.Levels
		if levels < 1 {
			levels = 1
		}
		floorArea := geo.AreaM2(b.Bounds) * float64(levels)

		c := Classify(b.Tags)
		switch c.Class {
		case ClassResidential:
			out.Neighborhoods[idx].Population += c.Occupants(floorArea)
		case ClassCommercial:
			out.Neighborhoods[idx].Jobs += c.Occupants(floorArea)
		}
	}

	ComputeShares(out.Neighborhoods)
	return out
}

// ComputeShares fills PopulationShare and JobShare in place. When the city
// total for a column is nonzero its shares sum to 1.0 within floating
// tolerance; a zero total leaves that column's shares at zero.
func ComputeShares(hoods []model.Neighborhood) {
	totalPop, totalJobs := 0, 0
	for _, h := range hoods {
		totalPop += h.Population
		totalJobs += h.Jobs
	}
	for i := range hoods {
		if totalPop > 0 {
			hoods[i].PopulationShare = float64(hoods[i].Population) / float64(totalPop)
		} else {
			hoods[i].PopulationShare = 0
		}
		if totalJobs > 0 {
			hoods[i].JobShare = float64(hoods[i].Jobs) / float64(totalJobs)
		} else {
			hoods[i].JobShare = 0
		}
	}
}
