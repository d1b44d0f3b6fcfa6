package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/researchflow/config"
	"github.com/mohammad-safakhou/researchflow/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SessionsCollection = "research_sessions"
	ReportsCollection  = "reports"
)

// Mongo keeps sessions and reports as documents keyed by their public ids.
type Mongo struct {
	client   *mongo.Client
	sessions *mongo.Collection
	reports  *mongo.Collection
}

// NewMongo connects to cfg.URL and ensures the unique id indexes exist.
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*Mongo, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URL).SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	m := NewMongoFromDB(client.Database(cfg.Database))
	m.client = client
	if err := m.EnsureIndexes(cctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

// NewMongoFromDB wraps an existing database handle. The caller owns the
// client.
func NewMongoFromDB(db *mongo.Database) *Mongo {
	return &Mongo{
		sessions: db.Collection(SessionsCollection),
		reports:  db.Collection(ReportsCollection),
	}
}

func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	if _, err := m.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create session index: %w", err)
	}
	if _, err := m.reports.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "report_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create report index: %w", err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func (m *Mongo) CreateSession(ctx context.Context, s models.Session) error {
	if _, err := m.sessions.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("create session %s: %w", s.SessionID, err)
	}
	return nil
}

func (m *Mongo) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var s models.Session
	err := m.sessions.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return s, nil
}

// SaveSession replaces the whole document, inserting it when missing.
func (m *Mongo) SaveSession(ctx context.Context, s models.Session) error {
	_, err := m.sessions.ReplaceOne(ctx, bson.M{"session_id": s.SessionID}, s, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.SessionID, err)
	}
	return nil
}

func (m *Mongo) InsertReport(ctx context.Context, r models.Report) error {
	r.Sources = nonNilSources(r.Sources)
	if _, err := m.reports.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert report %s: %w", r.ReportID, err)
	}
	return nil
}

func (m *Mongo) GetReport(ctx context.Context, reportID string) (models.Report, error) {
	var r models.Report
	err := m.reports.FindOne(ctx, bson.M{"report_id": reportID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Report{}, ErrNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("get report %s: %w", reportID, err)
	}
	r.Sources = nonNilSources(r.Sources)
	return r, nil
}
