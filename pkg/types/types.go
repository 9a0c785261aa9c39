// Package types defines the job/task tree served by fleetstore.
//
// A Job document owns its whole task tree by value: tasks, sub-tasks,
// switch branches, alternative job options and grab descriptors are nested
// copies, never shared references. Goal/Tag/Pipe/Area values embedded in a
// task are snapshots taken at write time and are not kept in sync with the
// referenced entity.
package types

import "time"

// ============================================================================
// Job
// ============================================================================

// Job is a unit of work assigned to one robot in one location/sector.
//
// JobStatus is an opaque integer. The only semantics the store relies on are
// the comparisons in IsActiveStatus and IsFinishedStatus.
type Job struct {
	JobID      int64     `bson:"job_id" json:"job_id"`
	JobName    string    `bson:"job_name" json:"job_name"`
	JobOrder   int       `bson:"job_order" json:"job_order"`
	JobStatus  int       `bson:"job_status" json:"job_status"`
	JobMessage string    `bson:"job_message" json:"job_message"`
	LocationID int64     `bson:"location_id" json:"location_id"`
	SectorID   int64     `bson:"sector_id" json:"sector_id"`
	RobotID    int64     `bson:"robot_id" json:"robot_id"`
	JobTasks   []JobTask `bson:"job_tasks,omitempty" json:"job_tasks,omitempty"`

	JobStarted  int64 `bson:"job_started" json:"job_started"`   // epoch seconds
	JobFinished int64 `bson:"job_finished" json:"job_finished"` // epoch seconds

	CreateUser  string `bson:"create_user" json:"create_user"`
	CreateDate  int64  `bson:"create_date" json:"create_date"`
	UpdateUser  string `bson:"update_user" json:"update_user"`
	UpdateDate  int64  `bson:"update_date" json:"update_date"`
	UpdateCount int    `bson:"update_count" json:"update_count"`

	// Independent gates read by automated actors before mutating the job.
	JobLock   bool `bson:"job_lock" json:"job_lock"`
	JobUnlock bool `bson:"job_unlock" json:"job_unlock"`
}

// IsActiveStatus reports whether a status counts as "active" (-3 < s < 3).
func IsActiveStatus(s int) bool {
	return s > -3 && s < 3
}

// IsFinishedStatus reports whether a status falls outside the in-progress
// band [0, 2].
func IsFinishedStatus(s int) bool {
	return s < 0 || s > 2
}

// ============================================================================
// Task tree
// ============================================================================

// JobTask is a node of the task tree. Besides its static definition it
// carries execution flags that the robot controller reads and writes through
// the regular update path.
type JobTask struct {
	ID          int64     `bson:"id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Text        string    `bson:"text" json:"text"`
	Explanation string    `bson:"explanation" json:"explanation"`
	Label       string    `bson:"label" json:"label"`
	Placeholder string    `bson:"placeholder" json:"placeholder"`
	Show        int       `bson:"show" json:"show"`
	Number      float64   `bson:"number" json:"number"`
	Array       []float64 `bson:"array,omitempty" json:"array,omitempty"`

	GoalID  *int64    `bson:"goal_id,omitempty" json:"goal_id,omitempty"`
	Goal    *Goal     `bson:"goal,omitempty" json:"goal,omitempty"`
	PipeID  *int64    `bson:"pipe_id,omitempty" json:"pipe_id,omitempty"`
	Pipe    *Pipe     `bson:"pipe,omitempty" json:"pipe,omitempty"`
	Range   []float64 `bson:"range,omitempty" json:"range,omitempty"`
	TagID   *int64    `bson:"tag_id,omitempty" json:"tag_id,omitempty"`
	Tag     *Tag      `bson:"tag,omitempty" json:"tag,omitempty"`
	Boolean *bool     `bson:"boolean,omitempty" json:"boolean,omitempty"`
	AreaID  *int64    `bson:"area_id,omitempty" json:"area_id,omitempty"`
	Area    *Area     `bson:"area,omitempty" json:"area,omitempty"`
	Grab    *Grab     `bson:"grab,omitempty" json:"grab,omitempty"`

	SubTasks []SubTask    `bson:"sub_tasks,omitempty" json:"sub_tasks,omitempty"`
	Options  []Job        `bson:"options,omitempty" json:"options,omitempty"`
	Switch   []SwitchTask `bson:"switch,omitempty" json:"switch,omitempty"`

	ExecState `bson:",inline"`
}

// SubTask is a leaf of the task tree: a JobTask without the recursive
// sub_tasks/options/switch fields.
type SubTask struct {
	SubID       int64     `bson:"sub_id" json:"sub_id"`
	Name        string    `bson:"name" json:"name"`
	Text        string    `bson:"text" json:"text"`
	Explanation string    `bson:"explanation" json:"explanation"`
	Label       string    `bson:"label" json:"label"`
	Placeholder string    `bson:"placeholder" json:"placeholder"`
	Show        int       `bson:"show" json:"show"`
	Number      float64   `bson:"number" json:"number"`
	Array       []float64 `bson:"array,omitempty" json:"array,omitempty"`

	GoalID  *int64    `bson:"goal_id,omitempty" json:"goal_id,omitempty"`
	Goal    *Goal     `bson:"goal,omitempty" json:"goal,omitempty"`
	PipeID  *int64    `bson:"pipe_id,omitempty" json:"pipe_id,omitempty"`
	Pipe    *Pipe     `bson:"pipe,omitempty" json:"pipe,omitempty"`
	Range   []float64 `bson:"range,omitempty" json:"range,omitempty"`
	TagID   *int64    `bson:"tag_id,omitempty" json:"tag_id,omitempty"`
	Tag     *Tag      `bson:"tag,omitempty" json:"tag,omitempty"`
	Boolean *bool     `bson:"boolean,omitempty" json:"boolean,omitempty"`
	AreaID  *int64    `bson:"area_id,omitempty" json:"area_id,omitempty"`
	Area    *Area     `bson:"area,omitempty" json:"area,omitempty"`
	Grab    *Grab     `bson:"grab,omitempty" json:"grab,omitempty"`

	ExecState `bson:",inline"`
}

// ExecState is the runtime part of a task node. Break and Skip are advisory
// flags and only exist on task nodes, never on the Job itself.
type ExecState struct {
	Status   int    `bson:"status" json:"status"`
	Message  string `bson:"message" json:"message"`
	Started  int64  `bson:"started" json:"started"`
	Finished int64  `bson:"finished" json:"finished"`
	Break    bool   `bson:"break" json:"break"`
	Skip     bool   `bson:"skip" json:"skip"`
}

// SwitchTask is one mutually-selectable branch of a task.
type SwitchTask struct {
	Name     string    `bson:"name" json:"name"`
	Selected bool      `bson:"selected" json:"selected"`
	Status   int       `bson:"status" json:"status"`
	Tasks    []SubTask `bson:"tasks,omitempty" json:"tasks,omitempty"`
}

// Grab describes a manipulation: which tags map to which goals, which goals
// open which areas, and the join path between them.
type Grab struct {
	Range    []float64  `bson:"range,omitempty" json:"range,omitempty"`
	Goals    []GrabGoal `bson:"goals,omitempty" json:"goals,omitempty"`
	Areas    []GrabArea `bson:"areas,omitempty" json:"areas,omitempty"`
	JoinPath []GrabJoin `bson:"join_path,omitempty" json:"join_path,omitempty"`
}

type GrabGoal struct {
	Tag    int64 `bson:"tag" json:"tag"`
	GoalID int64 `bson:"goal_id" json:"goal_id"`
	Goal   *Goal `bson:"goal,omitempty" json:"goal,omitempty"`
}

type GrabArea struct {
	GoalID int64 `bson:"goal_id" json:"goal_id"`
	AreaID int64 `bson:"area_id" json:"area_id"`
	Area   *Area `bson:"area,omitempty" json:"area,omitempty"`
}

type GrabJoin struct {
	AreaID int64 `bson:"area_id" json:"area_id"`
	GoalID int64 `bson:"goal_id" json:"goal_id"`
	Goal   *Goal `bson:"goal,omitempty" json:"goal,omitempty"`
}

// ============================================================================
// Denormalized snapshots
// ============================================================================

type Goal struct {
	GoalID   int64  `bson:"goal_id" json:"goal_id"`
	GoalName string `bson:"goal_name" json:"goal_name"`
	Pose     *Pose  `bson:"pose,omitempty" json:"pose,omitempty"`
}

type Tag struct {
	TagID      int64      `bson:"tag_id" json:"tag_id"`
	LocationID int64      `bson:"location_id" json:"location_id"`
	SectorID   int64      `bson:"sector_id" json:"sector_id"`
	TagName    string     `bson:"tag_name" json:"tag_name"`
	TagGroup   string     `bson:"tag_group" json:"tag_group"`
	TagNo      int        `bson:"tag_no" json:"tag_no"`
	TurnDir    int        `bson:"turn_dir" json:"turn_dir"`
	TurnAngle  float64    `bson:"turn_angle" json:"turn_angle"`
	TurnDist   float64    `bson:"turn_dist" json:"turn_dist"`
	TurnInit   float64    `bson:"turn_init" json:"turn_init"`
	Radius     float64    `bson:"radius" json:"radius"`
	UserID     int64      `bson:"user_id" json:"user_id"`
	UpdatedAt  *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	CreatedAt  *time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
}

type Pipe struct {
	ID         int64         `bson:"id" json:"id"`
	SectorID   int64         `bson:"sector_id" json:"sector_id"`
	LocationID int64         `bson:"location_id" json:"location_id"`
	Name       string        `bson:"name" json:"name"`
	Closed     bool          `bson:"closed" json:"closed"`
	Path       []PathSegment `bson:"path,omitempty" json:"path,omitempty"`
}

type PathSegment struct {
	ID              int64   `bson:"id" json:"id"`
	Name            string  `bson:"name" json:"name"`
	Point           Point   `bson:"point" json:"point"`
	Radius          float64 `bson:"radius" json:"radius"`
	ShiftFromCentre float64 `bson:"shift_from_centre" json:"shift_from_centre"`
	CanOvertake     int     `bson:"can_overtake" json:"can_overtake"`
}

type Area struct {
	ID       int64   `bson:"id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Location int64   `bson:"location" json:"location"`
	Sector   int64   `bson:"sector" json:"sector"`
	Polygon  []Point `bson:"polygon,omitempty" json:"polygon,omitempty"`
}

type Pose struct {
	Position    Point      `bson:"position" json:"position"`
	Orientation Quaternion `bson:"orientation" json:"orientation"`
}

type Point struct {
	X float64 `bson:"x" json:"x"`
	Y float64 `bson:"y" json:"y"`
	Z float64 `bson:"z" json:"z"`
}

type Quaternion struct {
	X float64 `bson:"x" json:"x"`
	Y float64 `bson:"y" json:"y"`
	Z float64 `bson:"z" json:"z"`
	W float64 `bson:"w" json:"w"`
}
