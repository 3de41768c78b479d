package model

import "github.com/paulmach/orb"

// SimplifiedBuilding is the bbox-only reduction of a building way. Area,
// population and jobs are all derived from the box, never from the full
// footprint polygon.
type SimplifiedBuilding struct {
	ID          int64             `json:"id"`
	Bounds      Bounds            `json:"bounds"`
	Levels      int               `json:"levels"`
	Underground int               `json:"underground,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Neighborhood is one named spatial partition: a place feature or an
// airport terminal. Population and job totals are aggregated from the
// buildings assigned to it.
type Neighborhood struct {
	PlaceID    int64     `json:"place_id"`
	Name       string    `json:"name"`
	Center     orb.Point `json:"center"`
	Population int       `json:"population"`
	Jobs       int       `json:"jobs"`
	// Shares of the city-wide totals. Across all neighborhoods each column
	// sums to 1.0 within floating tolerance when the city total is nonzero.
	PopulationShare float64 `json:"population_share"`
	JobShare        float64 `json:"job_share"`
}

// Connection is one origin-destination demand edge. Size never exceeds the
// configured per-connection cap; larger flows are split.
type Connection struct {
	ID             int64   `json:"id"`
	ResidenceID    int64   `json:"residence_id"`
	JobID          int64   `json:"job_id"`
	Size           int     `json:"size"`
	DrivingMeters  float64 `json:"driving_meters"`
	DrivingSeconds float64 `json:"driving_seconds"`
}

// GridCell is one occupied cell of the building index: its integer grid
// coordinate and the positions of the buildings whose centers fall in it.
type GridCell struct {
	Col       int     `json:"col"`
	Row       int     `json:"row"`
	Buildings []int32 `json:"buildings"`
}

// BuildingIndex is the packaged spatial output: a uniform grid over the
// city bounding box, the occupied cells, and the building rectangles keyed
// implicitly by position. Immutable after write.
type BuildingIndex struct {
	Bounds     Bounds     `json:"bounds"`
	Cols       int        `json:"cols"`
	Rows       int        `json:"rows"`
	CellMeters float64    `json:"cell_meters"`
	Cells      []GridCell `json:"cells"`
	Rectangles []Bounds   `json:"rectangles"`
}

// SummaryStats captures run-level aggregates written next to the demand set.
type SummaryStats struct {
	TotalPopulation   int `json:"total_population"`
	TotalJobs         int `json:"total_jobs"`
	Neighborhoods     int `json:"neighborhoods"`
	Connections       int `json:"connections"`
	AssignedBuildings int `json:"assigned_buildings"`
	DroppedBuildings  int `json:"dropped_buildings"`
}

// DemandDataset is the processed demand output for one city.
type DemandDataset struct {
	Neighborhoods []Neighborhood `json:"neighborhoods"`
	Connections   []Connection   `json:"connections"`
	Stats         SummaryStats   `json:"stats"`
}
