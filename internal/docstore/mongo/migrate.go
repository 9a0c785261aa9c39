package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ChuLiYu/fleetstore/internal/query"
	"github.com/ChuLiYu/fleetstore/internal/sequence"
)

// Migrate creates the indexes every collection relies on. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: migrate %s indexes: %w", col, classify(err))
		}
		s.logger.Debug("mongo indexes ensured", "collection", col, "count", len(models))
	}
	return nil
}

// migrationIndexes returns the index definitions for entity and counter
// collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	unique := func(fields ...string) mongod.IndexModel {
		keys := make(bson.D, 0, len(fields))
		for _, f := range fields {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		return mongod.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	scoped := func(extra ...string) mongod.IndexModel {
		keys := bson.D{{Key: "location_id", Value: 1}, {Key: "sector_id", Value: 1}}
		for _, f := range extra {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		return mongod.IndexModel{Keys: keys}
	}

	out := map[string][]mongod.IndexModel{
		query.KindJob.Collection(): {
			unique("job_id"),
			// Active / by-status / by-robot listings.
			scoped("job_status", "job_order"),
			scoped("robot_id", "job_status"),
			// Date-range listings.
			scoped("job_started"),
		},
		// The remaining entity collections are written by the other backend
		// services sharing this database; the builder serves their listings.
		query.KindNotification.Collection(): {
			unique("notification_id"),
			scoped("notification_date"),
			scoped("confirm_date"),
		},
		query.KindLocalization.Collection(): {unique("localization_id"), scoped("localization_date")},
		query.KindRobotStatus.Collection():  {unique("robot_status_id"), scoped("robot_status_date")},
		query.KindCustomLog.Collection():    {unique("custom_log_id"), scoped("custom_log_date")},
		query.KindUser.Collection():         {unique("user_id"), {Keys: bson.D{{Key: "user_name", Value: 1}}}},
	}

	// Counter documents: one per scope key, so concurrent first-time upserts
	// collapse onto one document.
	for _, l := range sequence.Layouts() {
		out[l.Collection] = append(out[l.Collection], unique(l.KeyFields...))
	}
	return out
}
