package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Users is the Mongo-backed user collection.
type Users struct {
	coll *mongo.Collection
}

// Organizations is the Mongo-backed organization collection.
type Organizations struct {
	coll *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{coll: db.Collection("users")}
}

func NewOrganizations(db *mongo.Database) *Organizations {
	return &Organizations{coll: db.Collection("organizations")}
}

// EnsureIndexes creates the unique indexes both stores rely on. The unique
// email index is the final arbiter for concurrent duplicate signups.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("users email index: %w", err)
	}

	_, err = db.Collection("organizations").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("organizations name index: %w", err)
	}
	return nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *Users) Create(ctx context.Context, user *User) error {
	user.ID = primitive.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// SetRefreshToken unconditionally overwrites the stored refresh token
// (login and non-strict rotation).
func (s *Users) SetRefreshToken(ctx context.Context, email, token string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"refresh_token": token}},
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SwapRefreshToken replaces the stored refresh token only if it still holds
// the expected old value. A zero match means another rotation won the race
// and the caller's token is superseded.
func (s *Users) SwapRefreshToken(ctx context.Context, email, old, new string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"email": email, "refresh_token": old},
		bson.M{"$set": bson.M{"refresh_token": new}},
	)
	if err != nil {
		return fmt.Errorf("swap refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Organizations) Create(ctx context.Context, org *Organization) error {
	org.ID = primitive.NewObjectID()
	if org.Members == nil {
		org.Members = []Member{}
	}
	if _, err := s.coll.InsertOne(ctx, org); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *Organizations) GetByID(ctx context.Context, id string) (*Organization, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var org Organization
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&org); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	return &org, nil
}

func (s *Organizations) List(ctx context.Context) ([]Organization, error) {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer cursor.Close(ctx)

	orgs := []Organization{}
	if err := cursor.All(ctx, &orgs); err != nil {
		return nil, fmt.Errorf("decode organizations: %w", err)
	}
	return orgs, nil
}

// UpdateFields applies an allow-listed partial update. Only name and
// description are client-mutable; anything else in the map is ignored
// by construction since callers build it from typed request fields.
func (s *Organizations) UpdateFields(ctx context.Context, id string, fields map[string]string) (*Organization, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{}
	for k, v := range fields {
		if k == "name" || k == "description" {
			set[k] = v
		}
	}
	if len(set) > 0 {
		res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
		if err != nil {
			return nil, fmt.Errorf("update organization: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, ErrNotFound
		}
	}

	return s.GetByID(ctx, id)
}

func (s *Organizations) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Organizations) AddMember(ctx context.Context, id string, member Member) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$push": bson.M{"members": member}},
	)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
