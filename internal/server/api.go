package server

import "github.com/ChuLiYu/fleetstore/pkg/types"

// GetJobRequest carries the raw listing parameters. Dates are "YYYY-MM-DD"
// or RFC3339; the to-date covers its whole day.
type GetJobRequest struct {
	LocationID  int64  `json:"location_id"`
	SectorID    int64  `json:"sector_id"`
	RobotID     int64  `json:"robot_id,omitempty"`
	JobID       int64  `json:"job_id,omitempty"`
	JobStatus   int    `json:"job_status,omitempty"`
	JobFromDate string `json:"job_from_date,omitempty"`
	JobToDate   string `json:"job_to_date,omitempty"`
	FetchOffset int64  `json:"fetch_offset,omitempty"`
	FetchLimit  int64  `json:"fetch_limit,omitempty"`
	FilterType  int    `json:"filter_type,omitempty"`
	SortType    int    `json:"sort_type,omitempty"`
	OrderType   int    `json:"order_type,omitempty"`
}

type GetJobResponse struct {
	Jobs []types.Job `json:"jobs"`
}

type AddJobRequest struct {
	Job types.Job `json:"job"`
}

type AddJobResponse struct {
	JobID int64 `json:"job_id"`
}

// UpdateJobRequest replaces the stored job with the same job_id.
type UpdateJobRequest struct {
	Job types.Job `json:"job"`
}

type UpdateJobResponse struct {
	UpdateCount int `json:"update_count"`
}

type DeleteJobRequest struct {
	JobID int64 `json:"job_id"`
}

type DeleteJobResponse struct{}

// NextSequenceRequest names a counter scope ("job", "user", "map", ...) and
// the parent ids scoped counters need.
type NextSequenceRequest struct {
	Scope string  `json:"scope"`
	IDs   []int64 `json:"ids,omitempty"`
}

type NextSequenceResponse struct {
	Value int64 `json:"value"`
}
