package mongo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ChuLiYu/fleetstore/internal/errs"
	"github.com/ChuLiYu/fleetstore/internal/query"
	"github.com/ChuLiYu/fleetstore/internal/sequence"
)

func TestToFilter(t *testing.T) {
	tests := []struct {
		name string
		in   query.Cond
		want bson.D
	}{
		{"match all", query.And(), bson.D{}},
		{"zero value", query.Cond{}, bson.D{}},
		{"leaf eq", query.Eq("job_id", int64(4)), bson.D{{Key: "job_id", Value: int64(4)}}},
		{
			"active jobs",
			query.Build(query.KindJob, query.Params{LocationID: 3, SectorID: 7, FilterType: query.JobFilterActive}).Filter,
			bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "location_id", Value: int64(3)}},
				bson.D{{Key: "sector_id", Value: int64(7)}},
				bson.D{{Key: "job_status", Value: bson.D{{Key: "$gt", Value: -3}}}},
				bson.D{{Key: "job_status", Value: bson.D{{Key: "$lt", Value: 3}}}},
			}}},
		},
		{
			"finished or",
			query.Or(query.Lt("job_status", 0), query.Gt("job_status", 2)),
			bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "job_status", Value: bson.D{{Key: "$lt", Value: 0}}}},
				bson.D{{Key: "job_status", Value: bson.D{{Key: "$gt", Value: 2}}}},
			}}},
		},
		{
			"range",
			query.And(query.Gte("d", int64(1)), query.Lte("d", int64(2)), query.And()),
			bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "d", Value: bson.D{{Key: "$gte", Value: int64(1)}}}},
				bson.D{{Key: "d", Value: bson.D{{Key: "$lte", Value: int64(2)}}}},
			}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toFilter(tt.in))
		})
	}
}

func TestToSort(t *testing.T) {
	got := toSort([]query.SortField{{Field: "robot_id"}, {Field: "job_id", Desc: true}})
	assert.Equal(t, bson.D{{Key: "robot_id", Value: 1}, {Key: "job_id", Value: -1}}, got)
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()

	assert.Contains(t, idx, "t_job")
	for _, coll := range []string{"t_notification", "t_localization", "t_robot_status", "t_custom_log", "t_user"} {
		assert.NotEmpty(t, idx[coll], "%s listings need their primary key index", coll)
	}
	for _, l := range sequence.Layouts() {
		models := idx[l.Collection]
		if assert.Len(t, models, 1, l.Collection) {
			assert.NotNil(t, models[0].Options, "%s counter key must be unique", l.Collection)
		}
	}
	mapKeys := idx[sequence.ScopeMap][0].Keys.(bson.D)
	assert.Equal(t, bson.D{{Key: "location_id", Value: 1}, {Key: "sector_id", Value: 1}}, mapKeys)
}

func TestIntValue(t *testing.T) {
	raw, err := bson.Marshal(bson.D{
		{Key: "i32", Value: int32(7)},
		{Key: "i64", Value: int64(1) << 40},
		{Key: "dbl", Value: 42.0},
		{Key: "str", Value: "42"},
	})
	if err != nil {
		t.Fatal(err)
	}
	doc := bson.Raw(raw)

	tests := []struct {
		field  string
		want   int64
		wantOK bool
	}{
		{"i32", 7, true},
		{"i64", 1 << 40, true},
		{"dbl", 42, true},
		{"str", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, ok := intValue(doc.Lookup(tt.field))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectDefaults(t *testing.T) {
	cfg := ConnectConfig{URI: "mongodb://localhost"}.withDefaults()
	assert.Equal(t, 5, cfg.Attempts)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.Equal(t, uint64(100), cfg.MaxPoolSize)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))

	plain := errors.New("bad value")
	assert.Equal(t, plain, classify(plain))

	sel := fmt.Errorf("server selection error: context deadline exceeded")
	assert.ErrorIs(t, classify(sel), errs.ErrStoreUnavailable)

	assert.True(t, isDuplicateKey(errors.New("E11000 duplicate key error collection: seq_map_id")))
	assert.False(t, isDuplicateKey(plain))
}
