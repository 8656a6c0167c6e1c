package session

import (
	"context"
	"errors"

	"PNotify/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// oneFinder is the part of *mongo.Collection the store needs.
type oneFinder interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
}

type sessionDoc struct {
	SID      string `bson:"_id"`
	Username string `bson:"username"`
}

// MongoStore reads {_id: sid, username} documents.
type MongoStore struct {
	coll oneFinder
}

func NewMongoStore(coll oneFinder) *MongoStore {
	return &MongoStore{coll: coll}
}

func (s *MongoStore) Resolve(ctx context.Context, credential string) (string, error) {
	var doc sessionDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": credential}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", errs.ErrNoSession.Wrap()
	}
	if err != nil {
		return "", errs.WrapMsg(err, "find session")
	}
	if doc.Username == "" {
		return "", errs.ErrNoSession.WrapMsg("empty username")
	}
	return doc.Username, nil
}
