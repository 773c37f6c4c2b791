// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/sharedcart/internal/app/store/collabevents"
	"github.com/dalemusser/sharedcart/internal/app/store/collabsessions"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

retention > 0 adds TTL indexes so idle sessions and old activity expire;
retention == 0 drops them again.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, retention time.Duration) error {
	var problems []string

	if err := ensureCollabSessions(ctx, db, retention); err != nil {
		problems = append(problems, collabsessions.CollectionName+": "+err.Error())
	}
	if err := ensureCollabEvents(ctx, db, retention); err != nil {
		problems = append(problems, collabevents.CollectionName+": "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name               string `bson:"name"`
	Key                bson.D `bson:"key"`
	Unique             *bool  `bson:"unique,omitempty"`
	ExpireAfterSeconds *int32 `bson:"expireAfterSeconds,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

func sameTTL(a, b *int32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	existing := map[string]existingIndex{} // name -> index
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[idx.Name] = idx
	}
	return existing, cur.Err()
}

// ensureIndexSet makes coll carry exactly the desired indexes among those
// it manages. An index with the same key pattern but different options
// (unique, TTL, name) is dropped and recreated. Names listed in retired are
// dropped if present.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel, retired ...string) error {
	var errs []string

	existing, err := listIndexes(ctx, coll)
	if err != nil {
		// A collection that does not exist yet has no indexes to reconcile.
		existing = map[string]existingIndex{}
	}
	bySig := make(map[string]existingIndex, len(existing))
	for _, idx := range existing {
		bySig[keySig(idx.Key)] = idx
	}

	for _, name := range retired {
		if _, ok := existing[name]; !ok {
			continue
		}
		if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
			errs = append(errs, fmt.Sprintf("%s(%s): drop retired index failed: %v", coll.Name(), name, err))
			continue
		}
		delete(bySig, keySig(existing[name].Key))
		zap.L().Info("retired index dropped",
			zap.String("collection", coll.Name()),
			zap.String("name", name))
	}

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		var desiredTTL *int32
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
			desiredTTL = m.Options.ExpireAfterSeconds
		}
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := bySig[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) && sameTTL(desiredTTL, ex.ExpireAfterSeconds) &&
				(desiredName == "" || ex.Name == desiredName) {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig))
				continue
			}

			// Options or name mismatch. Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				zap.L().Warn("drop existing index failed",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Error(err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", created),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.Bool("ttl", desiredTTL != nil),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func ttlSeconds(retention time.Duration) int32 {
	secs := retention / time.Second
	if secs < 1 {
		secs = 1
	}
	return int32(secs)
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

const (
	idxSessionID       = "uniq_collab_session_id"
	idxParticipants    = "idx_collab_participants_updated"
	idxSessionTTL      = "ttl_collab_updated_at"
	idxEventsBySession = "idx_collab_events_session_at"
	idxEventsTTL       = "ttl_collab_events_at"
)

func ensureCollabSessions(ctx context.Context, db *mongo.Database, retention time.Duration) error {
	c := db.Collection(collabsessions.CollectionName)
	models := []mongo.IndexModel{
		// Public token lookups; also the collision check for generated ids.
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(idxSessionID),
		},
		// "My sessions" listings, most recently touched first.
		{
			Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName(idxParticipants),
		},
	}
	if retention <= 0 {
		return ensureIndexSet(ctx, c, models, idxSessionTTL)
	}
	models = append(models, mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetName(idxSessionTTL).SetExpireAfterSeconds(ttlSeconds(retention)),
	})
	return ensureIndexSet(ctx, c, models)
}

func ensureCollabEvents(ctx context.Context, db *mongo.Database, retention time.Duration) error {
	c := db.Collection(collabevents.CollectionName)
	models := []mongo.IndexModel{
		// Per-session activity feed (latest-first)
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "at", Value: -1}},
			Options: options.Index().SetName(idxEventsBySession),
		},
	}
	if retention <= 0 {
		return ensureIndexSet(ctx, c, models, idxEventsTTL)
	}
	models = append(models, mongo.IndexModel{
		Keys:    bson.D{{Key: "at", Value: 1}},
		Options: options.Index().SetName(idxEventsTTL).SetExpireAfterSeconds(ttlSeconds(retention)),
	})
	return ensureIndexSet(ctx, c, models)
}
