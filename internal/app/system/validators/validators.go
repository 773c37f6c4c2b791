// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/sharedcart/internal/app/collab"
	"github.com/dalemusser/sharedcart/internal/app/store/collabevents"
	"github.com/dalemusser/sharedcart/internal/app/store/collabsessions"
	"github.com/dalemusser/sharedcart/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
//
// The schemas are a backstop for writes that bypass the service; the
// service validates every field before it reaches Mongo.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure(collabsessions.CollectionName, collabSessionsSchema())
	ensure(collabevents.CollectionName, collabEventsSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

// Go ints encode as int32 when they fit, int64 otherwise.
var integer = bson.A{"int", "long"}

func collabSessionsSchema() bson.M {
	vote := bson.M{
		"bsonType": "object",
		"required": bson.A{"user_id", "value"},
		"properties": bson.M{
			"user_id": bson.M{"bsonType": "string", "minLength": 1},
			"value":   bson.M{"enum": bson.A{models.VoteUpValue, models.VoteDownValue}},
		},
	}
	comment := bson.M{
		"bsonType": "object",
		"required": bson.A{"id", "user_id", "text", "created_at"},
		"properties": bson.M{
			"id":         bson.M{"bsonType": "string", "minLength": 1},
			"user_id":    bson.M{"bsonType": "string", "minLength": 1},
			"user_name":  bson.M{"bsonType": "string"},
			"text":       bson.M{"bsonType": "string", "minLength": 1, "maxLength": collab.MaxCommentLength},
			"created_at": bson.M{"bsonType": "date"},
		},
	}
	item := bson.M{
		"bsonType": "object",
		"required": bson.A{"product_id", "name", "price", "quantity"},
		"properties": bson.M{
			"product_id": bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
			"name":       bson.M{"bsonType": "string", "minLength": 1},
			"price":      bson.M{"bsonType": "number", "minimum": 0},
			"quantity":   bson.M{"bsonType": integer, "minimum": 1},
			"votes":      bson.M{"bsonType": "array", "items": vote},
			"comments":   bson.M{"bsonType": "array", "items": comment},
		},
	}

	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"session_id", "participants", "items", "revision", "created_at", "updated_at"},
			"properties": bson.M{
				"session_id": bson.M{"bsonType": "string", "minLength": 1},
				"participants": bson.M{
					"bsonType":    "array",
					"minItems":    1,
					"uniqueItems": true,
					"items":       bson.M{"bsonType": "string", "minLength": 1},
				},
				"items":      bson.M{"bsonType": "array", "items": item},
				"revision":   bson.M{"bsonType": integer, "minimum": 1},
				"created_at": bson.M{"bsonType": "date"},
				"updated_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func collabEventsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"event_id", "session_id", "type", "user_id", "at"},
			"properties": bson.M{
				"event_id":   bson.M{"bsonType": "string", "minLength": 1},
				"session_id": bson.M{"bsonType": "string", "minLength": 1},
				"type": bson.M{"enum": bson.A{
					models.EventSessionCreated,
					models.EventParticipantJoined,
					models.EventItemAdded,
					models.EventQuantityUpdated,
					models.EventItemRemoved,
					models.EventVoteCast,
					models.EventVoteCleared,
					models.EventCommentAdded,
				}},
				"user_id": bson.M{"bsonType": "string"},
				"at":      bson.M{"bsonType": "date"},
			},
		},
	}
}
