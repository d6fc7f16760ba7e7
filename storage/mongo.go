package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"emlak-ingest/models"
)

// MongoStore is the DocumentStore backed by MongoDB. IDs are ObjectID hex
// strings stored as plain string _id values.
type MongoStore struct {
	client        *mongo.Client
	users         *mongo.Collection
	customers     *mongo.Collection
	properties    *mongo.Collection
	rules         *mongo.Collection
	notifications *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	db := client.Database(database)
	return &MongoStore{
		client:        client,
		users:         db.Collection("users"),
		customers:     db.Collection("customers"),
		properties:    db.Collection("properties"),
		rules:         db.Collection("monitor_rules"),
		notifications: db.Collection("notifications"),
	}, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := findAll(ctx, s.users, bson.M{}, &users); err != nil {
		return nil, fmt.Errorf("mongo: list users: %w", err)
	}
	return users, nil
}

func (s *MongoStore) ListCustomers(ctx context.Context, userID string) ([]models.Customer, error) {
	var customers []models.Customer
	if err := findAll(ctx, s.customers, bson.M{"user_id": userID}, &customers); err != nil {
		return nil, fmt.Errorf("mongo: list customers: %w", err)
	}
	return customers, nil
}

func (s *MongoStore) ListProperties(ctx context.Context, userID string) ([]models.Property, error) {
	var props []models.Property
	if err := findAll(ctx, s.properties, bson.M{"user_id": userID}, &props); err != nil {
		return nil, fmt.Errorf("mongo: list properties: %w", err)
	}
	return props, nil
}

func (s *MongoStore) ListEnabledRules(ctx context.Context, userID string) ([]models.MonitorRule, error) {
	var rules []models.MonitorRule
	if err := findAll(ctx, s.rules, bson.M{"user_id": userID, "enabled": true}, &rules); err != nil {
		return nil, fmt.Errorf("mongo: list rules: %w", err)
	}
	return rules, nil
}

func (s *MongoStore) CreateProperty(ctx context.Context, p *models.Property) error {
	p.ID = primitive.NewObjectID().Hex()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	if p.Photos == nil {
		p.Photos = []string{}
	}
	if _, err := s.properties.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("mongo: insert property: %w", err)
	}
	return nil
}

func (s *MongoStore) UpdatePropertyPhotos(ctx context.Context, propertyID string, photos []string) error {
	res, err := s.properties.UpdateByID(ctx, propertyID, bson.M{"$set": bson.M{
		"photos":     photos,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("mongo: update photos: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("property %s: %w", propertyID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.ID = primitive.NewObjectID().Hex()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := s.notifications.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("mongo: insert notification: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func findAll(ctx context.Context, coll *mongo.Collection, filter bson.M, out interface{}) error {
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	}
	return cursor.All(ctx, out)
}
