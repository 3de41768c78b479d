package model

import "time"

// RunStatus is the lifecycle state of one city run in the catalog.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunCounts holds the per-stage output sizes recorded for a city run.
type RunCounts struct {
	Features      int `json:"features"`
	Buildings     int `json:"buildings"`
	Neighborhoods int `json:"neighborhoods"`
	Connections   int `json:"connections"`
}

// CityRun is one catalog record of a fetch/process run for a city.
type CityRun struct {
	ID        string    `json:"id"`
	City      string    `json:"city"`
	Status    RunStatus `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Counts    RunCounts `json:"counts"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
