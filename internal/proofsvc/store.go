package proofsvc

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "social_proofs"

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(Collection)}
}

func (s *MongoStore) Upsert(ctx context.Context, p SocialProof) error {
	filter, update, err := upsertDoc(p)
	if err != nil {
		return err
	}
	_, err = s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func upsertDoc(p SocialProof) (bson.D, bson.D, error) {
	amount, err := primitive.ParseDecimal128(p.WonAmount.StringFixed(2))
	if err != nil {
		return nil, nil, err
	}
	filter := bson.D{{Key: "user_id", Value: p.UserID}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "play_count", Value: p.PlayCount},
			{Key: "won_amount", Value: amount},
			{Key: "updated_at", Value: p.UpdatedAt},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "currency", Value: p.Currency},
			{Key: "comment", Value: nil},
			{Key: "visible", Value: false},
			{Key: "created_at", Value: p.UpdatedAt},
		}},
	}
	return filter, update, nil
}
