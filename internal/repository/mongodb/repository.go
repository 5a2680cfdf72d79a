package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/repository/localstate"
)

const (
	stateCollection     = "client_state"
	snapshotsCollection = "daily_snapshots"
	snapshotDayLayout   = "2006-01-02"
)

// Repository archives daily closes.
type Repository interface {
	SaveDailySnapshot(ctx context.Context, snapshot models.DailySnapshot) error
	RecentSnapshots(ctx context.Context, limit int64) ([]models.DailySnapshot, error)
}

// MongoDBRepository stores desk state and daily snapshots in MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	dbName string
}

var (
	_ Repository       = (*MongoDBRepository)(nil)
	_ localstate.Store = (*StateStore)(nil)
)

// NewMongoDBRepository connects and pings the deployment.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{client: client, dbName: dbName}, nil
}

func (r *MongoDBRepository) collection(name string) *mongo.Collection {
	return r.client.Database(r.dbName).Collection(name)
}

// snapshotDocument is the stored form of a DailySnapshot. Money is kept as
// Decimal128 so it round-trips exactly.
type snapshotDocument struct {
	Day            string               `bson:"_id"`
	Date           time.Time            `bson:"date"`
	TotalSales     int                  `bson:"total_sales"`
	Revenue        primitive.Decimal128 `bson:"revenue"`
	PaidSales      int                  `bson:"paid_sales"`
	UnpaidSales    int                  `bson:"unpaid_sales"`
	UnpaidBalance  primitive.Decimal128 `bson:"unpaid_balance"`
	LowStockAlerts int                  `bson:"low_stock_alerts"`
	StockUnits     int                  `bson:"stock_units"`
	CreatedAt      time.Time            `bson:"created_at"`
}

func toSnapshotDocument(s models.DailySnapshot) (snapshotDocument, error) {
	revenue, err := toDecimal128(s.Revenue)
	if err != nil {
		return snapshotDocument{}, fmt.Errorf("revenue: %w", err)
	}
	unpaid, err := toDecimal128(s.UnpaidBalance)
	if err != nil {
		return snapshotDocument{}, fmt.Errorf("unpaid balance: %w", err)
	}
	return snapshotDocument{
		Day:            s.Date.Format(snapshotDayLayout),
		Date:           s.Date,
		TotalSales:     s.TotalSales,
		Revenue:        revenue,
		PaidSales:      s.PaidSales,
		UnpaidSales:    s.UnpaidSales,
		UnpaidBalance:  unpaid,
		LowStockAlerts: s.LowStockAlerts,
		StockUnits:     s.StockUnits,
		CreatedAt:      s.CreatedAt,
	}, nil
}

func (d snapshotDocument) toModel() (models.DailySnapshot, error) {
	revenue, err := decimal.NewFromString(d.Revenue.String())
	if err != nil {
		return models.DailySnapshot{}, fmt.Errorf("revenue: %w", err)
	}
	unpaid, err := decimal.NewFromString(d.UnpaidBalance.String())
	if err != nil {
		return models.DailySnapshot{}, fmt.Errorf("unpaid balance: %w", err)
	}
	return models.DailySnapshot{
		Date:           d.Date,
		TotalSales:     d.TotalSales,
		Revenue:        revenue,
		PaidSales:      d.PaidSales,
		UnpaidSales:    d.UnpaidSales,
		UnpaidBalance:  unpaid,
		LowStockAlerts: d.LowStockAlerts,
		StockUnits:     d.StockUnits,
		CreatedAt:      d.CreatedAt,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

// SaveDailySnapshot upserts the snapshot keyed by its calendar day, so a
// rerun of the close replaces the earlier one.
func (r *MongoDBRepository) SaveDailySnapshot(ctx context.Context, snapshot models.DailySnapshot) error {
	doc, err := toSnapshotDocument(snapshot)
	if err != nil {
		return fmt.Errorf("encode daily snapshot: %w", err)
	}

	_, err = r.collection(snapshotsCollection).ReplaceOne(ctx,
		bson.M{"_id": doc.Day},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily snapshot %s: %w", doc.Day, err)
	}
	return nil
}

// RecentSnapshots returns the latest snapshots, newest first.
func (r *MongoDBRepository) RecentSnapshots(ctx context.Context, limit int64) ([]models.DailySnapshot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}}).SetLimit(limit)
	cur, err := r.collection(snapshotsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find daily snapshots: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.DailySnapshot
	for cur.Next(ctx) {
		var doc snapshotDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode daily snapshot: %w", err)
		}
		snap, err := doc.toModel()
		if err != nil {
			return nil, fmt.Errorf("decode daily snapshot %s: %w", doc.Day, err)
		}
		out = append(out, snap)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily snapshots: %w", err)
	}
	return out, nil
}

// StateStore returns a credential store sharing this connection.
func (r *MongoDBRepository) StateStore(deskID string) *StateStore {
	return &StateStore{coll: r.collection(stateCollection), deskID: deskID}
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// StateStore keeps a desk's key/value state in one document per key.
type StateStore struct {
	coll   *mongo.Collection
	deskID string
}

type stateDocument struct {
	ID        string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *StateStore) id(key string) string {
	return s.deskID + ":" + key
}

func (s *StateStore) Get(ctx context.Context, key string) (string, error) {
	var doc stateDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": s.id(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", localstate.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load state %s: %w", key, err)
	}
	return doc.Value, nil
}

func (s *StateStore) Set(ctx context.Context, key, value string) error {
	doc := stateDocument{ID: s.id(key), Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store state %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, s.id(k))
	}
	if _, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}
