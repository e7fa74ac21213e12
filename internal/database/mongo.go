package database

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"meetpin/entity"
	"meetpin/internal/config"
	"meetpin/internal/pin"
	"meetpin/lib/apperr"
)

const (
	collectionUsers          = "users"
	collectionPins           = "pins"
	collectionPinAliases     = "pin_aliases"
	collectionAccessRequests = "access_requests"
	collectionWaitingRooms   = "waiting_rooms"
	collectionConferences    = "conferences"
	collectionFeatureFlags   = "feature_flags"
)

// waitingRoomPartitions is the fixed partition space access requests are
// spread over.
const waitingRoomPartitions = 16

type pinAlias struct {
	Alias string `bson:"alias"`
	Code  string `bson:"code"`
}

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
	return client
}

func (m *MongoDB) connect() (*mongo.Client, error) {
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(m.ctx)
}

func (m *MongoDB) collection(connection *mongo.Client, name string) *mongo.Collection {
	return connection.Database(m.database).Collection(name)
}

// --- users ---

func (m *MongoDB) GetUser(token string) (*entity.User, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "token", Value: token}}
	var user entity.User
	err = m.collection(connection, collectionUsers).FindOne(m.ctx, filter).Decode(&user)
	return &user, err
}

// --- pins ---

func (m *MongoDB) GetPin(ctx context.Context, code string) (*entity.Pin, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "code", Value: code}}
	var p entity.Pin
	err = m.collection(connection, collectionPins).FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find pin: %w", err)
	}
	return &p, nil
}

func (m *MongoDB) InsertPin(ctx context.Context, p *entity.Pin) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	_, err = m.collection(connection, collectionPins).InsertOne(ctx, p)
	return err
}

func (m *MongoDB) UpdatePin(ctx context.Context, p *entity.Pin) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "code", Value: p.Code}}
	_, err = m.collection(connection, collectionPins).ReplaceOne(ctx, filter, p)
	return err
}

func (m *MongoDB) PersonalPinByOwner(ctx context.Context, profileId string) (*entity.Pin, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{
		{Key: "owner_entity_id", Value: profileId},
		{Key: "pin_type", Value: entity.PinTypePersonal},
		{Key: "expired", Value: false},
	}
	var p entity.Pin
	err = m.collection(connection, collectionPins).FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find personal pin: %w", err)
	}
	return &p, nil
}

// ClaimPin assigns ownership of an unowned, unexpired pin. A filtered
// update keeps the claim conditional: no match means the pin was
// concurrently owned, expired or removed.
func (m *MongoDB) ClaimPin(ctx context.Context, code, ownerProfileId string) (*entity.Pin, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{
		{Key: "code", Value: code},
		{Key: "expired", Value: false},
		{Key: "owner_entity_id", Value: ""},
	}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "owner_entity_id", Value: ownerProfileId}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p entity.Pin
	err = m.collection(connection, collectionPins).FindOneAndUpdate(ctx, filter, update, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, pin.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb claim pin: %w", err)
	}
	return &p, nil
}

// ConditionalExpirePin expires a pin only while ownerProfileId still owns
// it.
func (m *MongoDB) ConditionalExpirePin(ctx context.Context, code, ownerProfileId string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	filter := bson.D{
		{Key: "code", Value: code},
		{Key: "owner_entity_id", Value: ownerProfileId},
		{Key: "expired", Value: false},
	}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "expired", Value: true}}}}
	result, err := m.collection(connection, collectionPins).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongodb expire pin: %w", err)
	}
	if result.MatchedCount == 0 {
		return pin.ErrConflict
	}
	return nil
}

func (m *MongoDB) ExpirePin(ctx context.Context, code string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "code", Value: code}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "expired", Value: true}}}}
	_, err = m.collection(connection, collectionPins).UpdateOne(ctx, filter, update)
	return err
}

// --- pin aliases ---

func (m *MongoDB) AliasCode(ctx context.Context, alias string) (string, error) {
	connection, err := m.connect()
	if err != nil {
		return "", err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "alias", Value: alias}}
	var record pinAlias
	err = m.collection(connection, collectionPinAliases).FindOne(ctx, filter).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("mongodb find alias: %w", err)
	}
	return record.Code, nil
}

func (m *MongoDB) UpdateAlias(ctx context.Context, alias, newCode string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "alias", Value: alias}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "code", Value: newCode}}}}
	_, err = m.collection(connection, collectionPinAliases).UpdateOne(ctx, filter, update)
	return err
}

// --- conferences ---

func (m *MongoDB) Conference(ctx context.Context, id string) (*entity.Conference, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "id", Value: id}}
	var c entity.Conference
	err = m.collection(connection, collectionConferences).FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find conference: %w", err)
	}
	return &c, nil
}

// --- waiting rooms ---

// GetOrCreateWaitingRoom returns the waiting room for the (pin, conference)
// pair, creating it on first use. A locked conference is a precondition
// failure.
func (m *MongoDB) GetOrCreateWaitingRoom(ctx context.Context, p *entity.Pin, conference *entity.Conference) (*entity.WaitingRoom, error) {
	if conference.Locked {
		return nil, apperr.Unprocessable("", "conference is locked")
	}

	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{
		{Key: "pin_code", Value: p.Code},
		{Key: "conference_id", Value: conference.Id},
	}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{
		{Key: "id", Value: uuid.NewString()},
		{Key: "partition_num", Value: partitionFor(p.Code)},
		{Key: "revision", Value: int64(0)},
		{Key: "pin_code", Value: p.Code},
		{Key: "conference_id", Value: conference.Id},
		{Key: "created_at", Value: time.Now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var room entity.WaitingRoom
	err = m.collection(connection, collectionWaitingRooms).FindOneAndUpdate(ctx, filter, update, opts).Decode(&room)
	if err != nil {
		return nil, fmt.Errorf("mongodb get or create waiting room: %w", err)
	}
	return &room, nil
}

func partitionFor(pinCode string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pinCode))
	return int(h.Sum32() % waitingRoomPartitions)
}

// --- access requests ---

func (m *MongoDB) InsertAccessRequest(ctx context.Context, req *entity.AccessRequest) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	_, err = m.collection(connection, collectionAccessRequests).InsertOne(ctx, req)
	return err
}

func (m *MongoDB) AccessRequest(ctx context.Context, id string) (*entity.AccessRequest, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "access_request_id", Value: id}}
	var req entity.AccessRequest
	err = m.collection(connection, collectionAccessRequests).FindOne(ctx, filter).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find access request: %w", err)
	}
	return &req, nil
}

func (m *MongoDB) AccessRequestByDialInCode(ctx context.Context, code, waitingRoomId string) (*entity.AccessRequest, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{
		{Key: "dial_in_code", Value: code},
		{Key: "waiting_room_id", Value: waitingRoomId},
	}
	var req entity.AccessRequest
	err = m.collection(connection, collectionAccessRequests).FindOne(ctx, filter).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find access request by dial-in code: %w", err)
	}
	return &req, nil
}

// --- feature flags ---

func (m *MongoDB) FeatureFlag(ctx context.Context, key string) (*entity.FeatureFlag, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "key", Value: key}}
	var flag entity.FeatureFlag
	err = m.collection(connection, collectionFeatureFlags).FindOne(ctx, filter).Decode(&flag)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find feature flag: %w", err)
	}
	return &flag, nil
}
