package session

import (
	"context"
	"errors"
	"testing"

	"PNotify/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeColl struct {
	docs   map[string]bson.M
	err    error
	filter any
}

func (f *fakeColl) FindOne(_ context.Context, filter any, _ ...*options.FindOneOptions) *mongo.SingleResult {
	f.filter = filter
	if f.err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, f.err, nil)
	}
	sid := filter.(bson.M)["_id"].(string)
	if d, ok := f.docs[sid]; ok {
		return mongo.NewSingleResultFromDocument(d, nil, nil)
	}
	return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
}

func TestMongoStore_Resolve(t *testing.T) {
	coll := &fakeColl{docs: map[string]bson.M{
		"s1":    {"_id": "s1", "username": "alice"},
		"blank": {"_id": "blank", "username": ""},
	}}
	s := NewMongoStore(coll)

	id, err := s.Resolve(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", id)
	assert.Equal(t, bson.M{"_id": "s1"}, coll.filter)

	_, err = s.Resolve(context.Background(), "missing")
	assert.True(t, IsNoSession(err))

	_, err = s.Resolve(context.Background(), "blank")
	assert.True(t, IsNoSession(err))
}

func TestMongoStore_LookupFailure(t *testing.T) {
	s := NewMongoStore(&fakeColl{err: errors.New("server selection timeout")})
	_, err := s.Resolve(context.Background(), "s1")
	require.Error(t, err)
	assert.False(t, IsNoSession(err))
	assert.NotEqual(t, errs.NoSessionError, errs.Code(err))
}
