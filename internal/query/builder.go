package query

import "time"

// Kind selects the entity whose fields and discriminant tables Build uses.
type Kind int

const (
	KindJob Kind = iota + 1
	KindNotification
	KindLocalization
	KindRobotStatus
	KindCustomLog
	KindUser
)

// Filter types for jobs.
const (
	JobFilterActive    = 1
	JobFilterByStatus  = 2
	JobFilterByID      = 3
	JobFilterByRobot   = 4
	JobFilterDateRange = 5
)

// Sort types for jobs.
const (
	JobSortRobot   = 1
	JobSortID      = 2
	JobSortCreator = 3
	JobSortStarted = 4
	JobSortMessage = 5
)

// Filter and sort types shared by notifications and the log-like kinds.
const (
	EventFilterDateRange = 1
	EventFilterUnread    = 2 // notifications only

	EventSortRobot = 1
	EventSortDate  = 2
)

// Filter and sort types for users.
const (
	UserFilterByID   = 1
	UserFilterByName = 2

	UserSortID   = 1
	UserSortName = 2
)

// OrderDesc is the only order type that flips direction; every other value
// sorts ascending.
const OrderDesc = 2

// Params carries the raw request fields. Only the ones relevant to the chosen
// Kind and filter type are read.
type Params struct {
	LocationID int64
	SectorID   int64
	RobotID    int64
	ID         int64 // primary id for by-id filters
	Status     int
	Name       string // user name

	// From and To are epoch seconds. To is normalised to the end of its day
	// in Location before it is compared; zero means unbounded.
	From     int64
	To       int64
	Location *time.Location

	FilterType int
	SortType   int
	OrderType  int

	Offset int64
	Limit  int64
}

func (p Params) loc() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// entity describes the per-kind field names.
type entity struct {
	primary string
	date    string
	scoped  bool
}

var entities = map[Kind]entity{
	KindJob:          {primary: "job_id", date: "job_started", scoped: true},
	KindNotification: {primary: "notification_id", date: "notification_date", scoped: true},
	KindLocalization: {primary: "localization_id", date: "localization_date", scoped: true},
	KindRobotStatus:  {primary: "robot_status_id", date: "robot_status_date", scoped: true},
	KindCustomLog:    {primary: "custom_log_id", date: "custom_log_date", scoped: true},
	KindUser:         {primary: "user_id"},
}

// Collection returns the collection holding documents of kind k.
func (k Kind) Collection() string {
	switch k {
	case KindJob:
		return "t_job"
	case KindNotification:
		return "t_notification"
	case KindLocalization:
		return "t_localization"
	case KindRobotStatus:
		return "t_robot_status"
	case KindCustomLog:
		return "t_custom_log"
	case KindUser:
		return "t_user"
	default:
		return ""
	}
}

// PrimaryField returns the primary id field of kind k.
func (k Kind) PrimaryField() string {
	return entities[k].primary
}

// Build returns the read spec for kind k.
//
// Unrecognised filter types fall back to the default predicate and
// unrecognised sort types fall back to the ordering the filter forced, or
// ascending primary id when it forced none. Neither is an error.
func Build(k Kind, p Params) Spec {
	e, ok := entities[k]
	if !ok {
		return Spec{Skip: positive(p.Offset), Limit: positive(p.Limit)}
	}

	var (
		filter Cond
		forced []SortField
		sortBy []SortField
	)
	switch k {
	case KindJob:
		filter, forced = jobFilter(p)
		sortBy = jobSort(p)
	case KindNotification:
		filter, forced = notificationFilter(p)
		sortBy = eventSort(e, p)
	case KindLocalization, KindRobotStatus, KindCustomLog:
		filter = logFilter(e, p)
		sortBy = eventSort(e, p)
	case KindUser:
		filter, forced = userFilter(p)
		sortBy = userSort(p)
	}

	order := sortBy
	if order == nil {
		order = forced
	}
	if order == nil {
		order = asc(e.primary)
	}

	return Spec{
		Filter: filter,
		Sort:   order,
		Skip:   positive(p.Offset),
		Limit:  positive(p.Limit),
	}
}

func scope(p Params) []Cond {
	return []Cond{Eq("location_id", p.LocationID), Eq("sector_id", p.SectorID)}
}

func jobFilter(p Params) (Cond, []SortField) {
	switch p.FilterType {
	case JobFilterActive:
		return And(append(scope(p),
			Gt("job_status", -3),
			Lt("job_status", 3),
		)...), asc("job_id")
	case JobFilterByStatus:
		return And(append(scope(p), Eq("job_status", p.Status))...), asc("job_order")
	case JobFilterByID:
		return And(Eq("job_id", p.ID)), asc("job_id")
	case JobFilterByRobot:
		return And(append(scope(p),
			Eq("robot_id", p.RobotID),
			Eq("job_status", p.Status),
		)...), asc("job_id")
	case JobFilterDateRange:
		conds := append(scope(p),
			Or(Lt("job_status", 0), Gt("job_status", 2)),
			Gte("job_started", p.From),
		)
		if p.To > 0 {
			conds = append(conds, Lte("job_finished", EndOfDayUnix(p.To, p.loc())))
		}
		return And(conds...), nil
	default:
		return And(scope(p)...), asc("job_id")
	}
}

func jobSort(p Params) []SortField {
	var field string
	switch p.SortType {
	case JobSortRobot:
		field = "robot_id"
	case JobSortID:
		field = "job_id"
	case JobSortCreator:
		field = "create_user"
	case JobSortStarted:
		field = "job_started"
	case JobSortMessage:
		field = "job_message"
	default:
		return nil
	}
	return []SortField{{Field: field, Desc: p.OrderType == OrderDesc}}
}

func notificationFilter(p Params) (Cond, []SortField) {
	switch p.FilterType {
	case EventFilterDateRange:
		conds := append(scope(p), Gte("notification_date", p.From))
		if p.To > 0 {
			conds = append(conds, Lte("notification_date", EndOfDayUnix(p.To, p.loc())))
		}
		return And(conds...), nil
	case EventFilterUnread:
		return And(append(scope(p), Eq("confirm_date", int64(0)))...), nil
	default:
		return And(scope(p)...), asc("notification_id")
	}
}

// logFilter covers localization, robot status and custom log entries: a
// date range is applied only when a from-date was supplied.
func logFilter(e entity, p Params) Cond {
	conds := scope(p)
	if p.FilterType == EventFilterDateRange && p.From > 0 {
		conds = append(conds, Gte(e.date, p.From))
		if p.To > 0 {
			conds = append(conds, Lte(e.date, EndOfDayUnix(p.To, p.loc())))
		}
	}
	return And(conds...)
}

func eventSort(e entity, p Params) []SortField {
	desc := p.OrderType == OrderDesc
	switch p.SortType {
	case EventSortRobot:
		return []SortField{{Field: "robot_id", Desc: desc}}
	case EventSortDate:
		return []SortField{{Field: e.date, Desc: desc}}
	default:
		return nil
	}
}

func userFilter(p Params) (Cond, []SortField) {
	switch p.FilterType {
	case UserFilterByID:
		return And(Eq("user_id", p.ID)), asc("user_id")
	case UserFilterByName:
		return And(Eq("user_name", p.Name)), asc("user_name")
	default:
		return And(), nil
	}
}

func userSort(p Params) []SortField {
	desc := p.OrderType == OrderDesc
	switch p.SortType {
	case UserSortID:
		return []SortField{{Field: "user_id", Desc: desc}}
	case UserSortName:
		return []SortField{{Field: "user_name", Desc: desc}}
	default:
		return nil
	}
}

func positive(n int64) int64 {
	if n > 0 {
		return n
	}
	return 0
}
