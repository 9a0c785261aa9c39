package sequence

import (
	"strconv"
	"strings"

	"github.com/ChuLiYu/fleetstore/internal/query"
)

// Global scope names. Each is also the name of the collection holding its
// counter document.
const (
	ScopeJob          = "seq_job_id"
	ScopeLocation     = "seq_location_id"
	ScopeUser         = "seq_user_id"
	ScopeNotification = "seq_notification_id"
	ScopeLocalization = "seq_localization_id"
	ScopeRobotStatus  = "seq_robot_status_id"
	ScopeCustomLog    = "seq_custom_log_id"

	ScopeSector = "seq_sector_id"
	ScopeMap    = "seq_map_id"
	ScopeMJob   = "seq_mjob_id"
)

// Counter document fields. Global counters are keyed {SeqID: 1} and keep
// their value in SeqNo; scoped counters are keyed by their parent ids and
// keep their value in seq.
const (
	globalKeyField   = "SeqID"
	globalValueField = "SeqNo"
	scopedValueField = "seq"
)

// UserIDOffset is added to every value drawn from the global user scope.
const UserIDOffset = 10000

// Key is one component of a scope key.
type Key struct {
	Field string
	Value int64
}

// Scope names an independent counter: the global counter of an entity kind,
// or a counter under a parent key such as location or location+sector.
// Two scopes with different keys never share values.
type Scope struct {
	Name string
	Keys []Key
}

// Global returns the global scope of name.
func Global(name string) Scope {
	return Scope{Name: name, Keys: []Key{{Field: globalKeyField, Value: 1}}}
}

func JobScope() Scope          { return Global(ScopeJob) }
func LocationScope() Scope     { return Global(ScopeLocation) }
func UserScope() Scope         { return Global(ScopeUser) }
func NotificationScope() Scope { return Global(ScopeNotification) }
func LocalizationScope() Scope { return Global(ScopeLocalization) }
func RobotStatusScope() Scope  { return Global(ScopeRobotStatus) }
func CustomLogScope() Scope    { return Global(ScopeCustomLog) }

// SectorScope numbers sectors within a location.
func SectorScope(locationID int64) Scope {
	return Scope{Name: ScopeSector, Keys: []Key{{Field: "locationId", Value: locationID}}}
}

// MapScope numbers maps within a location and sector.
func MapScope(locationID, sectorID int64) Scope {
	return Scope{Name: ScopeMap, Keys: []Key{
		{Field: "location_id", Value: locationID},
		{Field: "sector_id", Value: sectorID},
	}}
}

// MJobScope numbers map jobs within a location and sector.
func MJobScope(locationID, sectorID int64) Scope {
	return Scope{Name: ScopeMJob, Keys: []Key{
		{Field: "location_id", Value: locationID},
		{Field: "sector_id", Value: sectorID},
	}}
}

// IsGlobal reports whether s is keyed by the fixed global key.
func (s Scope) IsGlobal() bool {
	return len(s.Keys) == 1 && s.Keys[0].Field == globalKeyField
}

// Collection is the collection holding the scope's counter documents.
func (s Scope) Collection() string {
	return s.Name
}

// ValueField is the counter field inside the scope document.
func (s Scope) ValueField() string {
	if s.IsGlobal() {
		return globalValueField
	}
	return scopedValueField
}

// Filter selects the scope's counter document.
func (s Scope) Filter() query.Cond {
	conds := make([]query.Cond, len(s.Keys))
	for i, k := range s.Keys {
		if k.Field == globalKeyField {
			// Existing counter documents store SeqID as a 32-bit integer.
			conds[i] = query.Eq(k.Field, int32(k.Value))
			continue
		}
		conds[i] = query.Eq(k.Field, k.Value)
	}
	return query.And(conds...)
}

// String renders the scope for logs and metric labels, e.g.
// "seq_map_id:{3,7}". Global scopes render as their bare name.
func (s Scope) String() string {
	if s.IsGlobal() || len(s.Keys) == 0 {
		return s.Name
	}
	vals := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		vals[i] = strconv.FormatInt(k.Value, 10)
	}
	return s.Name + ":{" + strings.Join(vals, ",") + "}"
}

// Layout describes how one scope family is persisted.
type Layout struct {
	Collection string
	KeyFields  []string
	ValueField string
}

// Layouts lists every scope family the allocator knows about. Stores use it
// to create unique indexes on the scope keys.
func Layouts() []Layout {
	globals := []string{
		ScopeJob, ScopeLocation, ScopeUser, ScopeNotification,
		ScopeLocalization, ScopeRobotStatus, ScopeCustomLog,
	}
	out := make([]Layout, 0, len(globals)+3)
	for _, name := range globals {
		out = append(out, Layout{Collection: name, KeyFields: []string{globalKeyField}, ValueField: globalValueField})
	}
	out = append(out,
		Layout{Collection: ScopeSector, KeyFields: []string{"locationId"}, ValueField: scopedValueField},
		Layout{Collection: ScopeMap, KeyFields: []string{"location_id", "sector_id"}, ValueField: scopedValueField},
		Layout{Collection: ScopeMJob, KeyFields: []string{"location_id", "sector_id"}, ValueField: scopedValueField},
	)
	return out
}

// ParseScope resolves a CLI-style scope name such as "job", "user",
// "sector" or "map" together with its parent ids.
func ParseScope(name string, ids ...int64) (Scope, bool) {
	need := func(n int) bool { return len(ids) >= n }
	switch strings.TrimPrefix(strings.TrimSuffix(name, "_id"), "seq_") {
	case "job":
		return JobScope(), true
	case "location":
		return LocationScope(), true
	case "user":
		return UserScope(), true
	case "notification":
		return NotificationScope(), true
	case "localization":
		return LocalizationScope(), true
	case "robot_status":
		return RobotStatusScope(), true
	case "custom_log":
		return CustomLogScope(), true
	case "sector":
		if need(1) {
			return SectorScope(ids[0]), true
		}
	case "map":
		if need(2) {
			return MapScope(ids[0], ids[1]), true
		}
	case "mjob":
		if need(2) {
			return MJobScope(ids[0], ids[1]), true
		}
	}
	return Scope{}, false
}
