package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsDuplicateKeyError is a function that checks if an error is a duplicate key error.
type IsDuplicateKeyError func(err error) bool

const DefaultMaxRetries = 3

// Document is anything stored with a generated SixID primary key.
type Document interface {
	GenID()
}

// Try executes an operation, retrying it while it fails on a primary key collision.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsDuplicateIDError)
}

// InsertOne inserts doc, regenerating its ID on _id collisions.
// Violations of any other unique index are returned immediately.
func InsertOne[T Document](ctx context.Context, coll *mongo.Collection, doc T) (T, error) {
	err := Try(func() error {
		doc.GenID()
		_, err := coll.InsertOne(ctx, doc)
		return err
	})
	return doc, err
}

// WithRetries executes an operation with a retry mechanism for duplicate key errors.
// It attempts the operation up to maxRetries+1 times.
func WithRetries(op Operation, maxRetries int, isDuplicateKey IsDuplicateKeyError) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		if attempt == maxRetries {
			break
		}

		if !isDuplicateKey(err) {
			return err
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond) // incremental backoff
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, writeError := range bwe.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// IsDuplicateIDError reports whether err is a duplicate key error on the _id index.
func IsDuplicateIDError(err error) bool {
	var e mongo.WriteException
	if !errors.As(err, &e) {
		return false
	}
	for _, we := range e.WriteErrors {
		if we.Code != 11000 {
			continue
		}
		if pattern, lerr := we.Raw.LookupErr("keyPattern"); lerr == nil {
			if doc, ok := pattern.DocumentOK(); ok {
				if _, lerr := doc.LookupErr("_id"); lerr == nil {
					return true
				}
				continue
			}
		}
		if strings.Contains(we.Message, "index: _id_ ") {
			return true
		}
	}
	return false
}
