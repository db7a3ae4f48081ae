package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type Transaction = func(sessCtx mongo.SessionContext) (interface{}, error)

func WithTransaction(ctx context.Context, dbClient *mongo.Client, txn Transaction) (interface{}, error) {
	session, err := dbClient.StartSession()
	if err != nil {
		return nil, fmt.Errorf("unable to start sessions %w", err)
	}
	defer session.EndSession(ctx)

	wc := writeconcern.Majority()
	rc := readconcern.Snapshot()
	txnOpts := options.Transaction().SetWriteConcern(wc).SetReadConcern(rc)
	return session.WithTransaction(ctx, txn, txnOpts)
}

// RunInTransaction runs fn inside a transaction on dbClient. Without a client fn runs
// directly against ctx.
func RunInTransaction[T any](ctx context.Context, dbClient *mongo.Client, fn func(ctx context.Context) (T, error)) (T, error) {
	if dbClient == nil {
		return fn(ctx)
	}

	var zero T
	result, err := WithTransaction(ctx, dbClient, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return fn(sessCtx)
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}
