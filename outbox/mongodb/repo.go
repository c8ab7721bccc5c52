// Copyright (c) 2021 - The Pulse authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mongodb provides an outbox repository backed by MongoDB. Claims
// use findAndModify, which MongoDB executes atomically per document, so
// concurrent processors never claim the same message.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/outbox"
	"github.com/dailydevops/pulse/uuid"
)

// Repo implements an outbox.Repository for MongoDB.
type Repo struct {
	client          *mongo.Client
	clientOwnership clientOwnership
	messages        *mongo.Collection
	clock           pulse.Clock
}

type clientOwnership int

const (
	internalClient clientOwnership = iota
	externalClient
)

// NewRepo creates a new Repo with a MongoDB URI: `mongodb://hostname`.
func NewRepo(uri, dbName string, opts ...Option) (*Repo, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Majority()).
		SetReadPreference(readpref.Primary())

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("could not connect to DB: %w", err)
	}

	return newRepoWithClient(client, internalClient, dbName, opts...)
}

// NewRepoWithClient creates a new Repo with a client.
func NewRepoWithClient(client *mongo.Client, dbName string, opts ...Option) (*Repo, error) {
	return newRepoWithClient(client, externalClient, dbName, opts...)
}

func newRepoWithClient(client *mongo.Client, clientOwnership clientOwnership, dbName string, opts ...Option) (*Repo, error) {
	if client == nil {
		return nil, fmt.Errorf("missing DB client")
	}

	r := &Repo{
		client:          client,
		clientOwnership: clientOwnership,
		messages:        client.Database(dbName).Collection("outbox"),
		clock:           pulse.SystemClock{},
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	if err := r.client.Ping(context.Background(), readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not connect to MongoDB: %w", err)
	}

	return r, nil
}

// Option is an option setter used to configure creation.
type Option func(*Repo) error

// WithCollectionName uses a different collection name than the default
// "outbox".
func WithCollectionName(name string) Option {
	return func(r *Repo) error {
		if name == "" {
			return errors.New("missing collection name")
		}

		r.messages = r.messages.Database().Collection(name)

		return nil
	}
}

// WithClock uses a clock other than the system clock for transition
// timestamps.
func WithClock(c pulse.Clock) Option {
	return func(r *Repo) error {
		r.clock = c

		return nil
	}
}

// Client returns the MongoDB client used by the repository. To enlist the
// outbox write in a business transaction the repository needs to be created
// with the same client.
func (r *Repo) Client() *mongo.Client {
	return r.client
}

// msgDoc is the outbox message database representation.
type msgDoc struct {
	ID            string     `bson:"_id"`
	EventType     string     `bson:"event_type"`
	Payload       []byte     `bson:"payload"`
	CorrelationID string     `bson:"correlation_id"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
	ProcessedAt   *time.Time `bson:"processed_at,omitempty"`
	RetryCount    int        `bson:"retry_count"`
	LastError     string     `bson:"last_error,omitempty"`
	Status        int        `bson:"status"`
}

func toDoc(msg *outbox.Message) *msgDoc {
	return &msgDoc{
		ID:            msg.ID.String(),
		EventType:     msg.EventType.String(),
		Payload:       msg.Payload,
		CorrelationID: msg.CorrelationID.String(),
		CreatedAt:     msg.CreatedAt,
		UpdatedAt:     msg.UpdatedAt,
		ProcessedAt:   msg.ProcessedAt,
		RetryCount:    msg.RetryCount,
		LastError:     msg.LastError,
		Status:        int(msg.Status),
	}
}

func fromDoc(doc *msgDoc) (*outbox.Message, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("could not parse message ID: %w", err)
	}

	correlationID, err := uuid.Parse(doc.CorrelationID)
	if err != nil {
		correlationID = uuid.Nil
	}

	return &outbox.Message{
		ID:            id,
		EventType:     pulse.EventType(doc.EventType),
		Payload:       doc.Payload,
		CorrelationID: correlationID,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		ProcessedAt:   doc.ProcessedAt,
		RetryCount:    doc.RetryCount,
		LastError:     doc.LastError,
		Status:        outbox.Status(doc.Status),
	}, nil
}

// Add implements the Add method of the outbox.Repository interface.
func (r *Repo) Add(ctx context.Context, msg *outbox.Message) error {
	if msg == nil {
		return outbox.ErrMissingMessage
	}

	doc := toDoc(msg)
	if doc.ID == uuid.Nil.String() {
		doc.ID = uuid.New().String()
	}

	now := r.clock.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	doc.Status = int(outbox.StatusPending)

	if _, err := r.messages.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}

	return nil
}

// ClaimPending implements the ClaimPending method of the outbox.Repository
// interface.
func (r *Repo) ClaimPending(ctx context.Context, batchSize int) ([]*outbox.Message, error) {
	return r.claim(ctx, batchSize, bson.M{
		"status": int(outbox.StatusPending),
	})
}

// ClaimFailedForRetry implements the ClaimFailedForRetry method of the
// outbox.Repository interface.
func (r *Repo) ClaimFailedForRetry(ctx context.Context, maxRetry, batchSize int) ([]*outbox.Message, error) {
	return r.claim(ctx, batchSize, bson.M{
		"status":      int(outbox.StatusFailed),
		"retry_count": bson.M{"$lte": maxRetry},
	})
}

// ReclaimStale implements the ReclaimStale method of the outbox.Repository
// interface.
func (r *Repo) ReclaimStale(ctx context.Context, olderThan time.Time, batchSize int) ([]*outbox.Message, error) {
	return r.claim(ctx, batchSize, bson.M{
		"status":     int(outbox.StatusProcessing),
		"updated_at": bson.M{"$lt": olderThan},
	})
}

// Claims matching messages one at a time with findAndModify, oldest first,
// until the batch is full or no match is left.
func (r *Repo) claim(ctx context.Context, batchSize int, filter bson.M) ([]*outbox.Message, error) {
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetReturnDocument(options.After)

	var msgs []*outbox.Message

	for len(msgs) < batchSize {
		update := bson.M{"$set": bson.M{
			"status":     int(outbox.StatusProcessing),
			"updated_at": r.clock.Now(),
		}}

		var doc msgDoc
		if err := r.messages.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				break
			}

			return nil, fmt.Errorf("could not claim message: %w", err)
		}

		msg, err := fromDoc(&doc)
		if err != nil {
			return nil, err
		}

		msgs = append(msgs, msg)
	}

	return msgs, nil
}

// MarkCompleted implements the MarkCompleted method of the outbox.Repository
// interface.
func (r *Repo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := r.clock.Now()

	return r.transition(ctx, id, bson.M{"$set": bson.M{
		"status":       int(outbox.StatusCompleted),
		"updated_at":   now,
		"processed_at": now,
	}})
}

// MarkFailed implements the MarkFailed method of the outbox.Repository
// interface.
func (r *Repo) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	update := bson.M{
		"$set": bson.M{
			"status":     int(outbox.StatusFailed),
			"updated_at": r.clock.Now(),
			"last_error": errorText(cause),
		},
		"$inc": bson.M{"retry_count": 1},
	}

	return r.transition(ctx, id, update)
}

// MarkDeadLetter implements the MarkDeadLetter method of the
// outbox.Repository interface.
func (r *Repo) MarkDeadLetter(ctx context.Context, id uuid.UUID, cause error) error {
	return r.transition(ctx, id, bson.M{"$set": bson.M{
		"status":     int(outbox.StatusDeadLetter),
		"updated_at": r.clock.Now(),
		"last_error": errorText(cause),
	}})
}

// Transitions a Processing message. Guarding on the current status keeps the
// state machine honest even if two processors race on the same message.
func (r *Repo) transition(ctx context.Context, id uuid.UUID, update bson.M) error {
	res, err := r.messages.UpdateOne(ctx, bson.M{
		"_id":    id.String(),
		"status": int(outbox.StatusProcessing),
	}, update)
	if err != nil {
		return fmt.Errorf("could not update message: %w", err)
	}

	if res.MatchedCount == 0 {
		return outbox.ErrMessageNotFound
	}

	return nil
}

// DeleteCompleted implements the DeleteCompleted method of the
// outbox.Repository interface.
func (r *Repo) DeleteCompleted(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.messages.DeleteMany(ctx, bson.M{
		"status":       int(outbox.StatusCompleted),
		"processed_at": bson.M{"$lt": olderThan},
	})
	if err != nil {
		return 0, fmt.Errorf("could not delete messages: %w", err)
	}

	return res.DeletedCount, nil
}

// Clear clears the message collection.
func (r *Repo) Clear(ctx context.Context) error {
	if err := r.messages.Drop(ctx); err != nil {
		return fmt.Errorf("could not clear collection: %w", err)
	}

	return nil
}

// Close closes the database client if it is owned by the repository.
func (r *Repo) Close() error {
	if r.clientOwnership == externalClient {
		return nil
	}

	return r.client.Disconnect(context.Background())
}

func errorText(cause error) string {
	if cause == nil {
		return ""
	}

	return cause.Error()
}
