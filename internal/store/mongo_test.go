package store

import (
	"context"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researchflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	now := time.Now().UTC().Truncate(time.Millisecond)

	mt.Run("create session", func(mt *mtest.T) {
		st := NewMongoFromDB(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := st.CreateSession(context.Background(), models.Session{SessionID: "s-1", Topic: "t", Status: models.StatusPending})
		require.NoError(mt, err)
	})

	mt.Run("create duplicate session", func(mt *mtest.T) {
		st := NewMongoFromDB(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))

		err := st.CreateSession(context.Background(), models.Session{SessionID: "s-1"})
		require.Error(mt, err)
		assert.True(mt, mongo.IsDuplicateKeyError(err))
	})

	mt.Run("get session", func(mt *mtest.T) {
		st := NewMongoFromDB(mt.DB)
		ns := mt.DB.Name() + "." + SessionsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "session_id", Value: "s-1"},
			{Key: "topic", Value: "quantum computing"},
			{Key: "depth", Value: "medium"},
			{Key: "status", Value: models.StatusWriterRunning},
			{Key: "progress", Value: 50},
			{Key: "current_agent", Value: "editor"},
			{Key: "report_id", Value: nil},
			{Key: "error_message", Value: nil},
			{Key: "created_at", Value: primitive.NewDateTimeFromTime(now)},
		}))

		got, err := st.GetSession(context.Background(), "s-1")
		require.NoError(mt, err)
		assert.Equal(mt, "quantum computing", got.Topic)
		assert.Equal(mt, 50, got.Progress)
		require.NotNil(mt, got.CurrentAgent)
		assert.Equal(mt, "editor", *got.CurrentAgent)
		assert.Nil(mt, got.ReportID)
		assert.True(mt, now.Equal(got.CreatedAt))
	})

	mt.Run("get missing session", func(mt *mtest.T) {
		st := NewMongoFromDB(mt.DB)
		ns := mt.DB.Name() + "." + SessionsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := st.GetSession(context.Background(), "missing")
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("save session upserts", func(mt *mtest.T) {
		st := NewMongoFromDB(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := st.SaveSession(context.Background(), models.Session{SessionID: "s-1", Status: models.StatusComplete, Progress: 100})
		require.NoError(mt, err)
	})

	mt.Run("get report", func(mt *mtest.T) {
		st := NewMongoFromDB(mt.DB)
		ns := mt.DB.Name() + "." + ReportsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "report_id", Value: "r-1"},
			{Key: "session_id", Value: "s-1"},
			{Key: "topic", Value: "t"},
			{Key: "content", Value: "# Title"},
			{Key: "sources", Value: bson.A{
				bson.D{{Key: "url", Value: "https://a"}, {Key: "title", Value: "A"}, {Key: "snippet", Value: "sa"}},
			}},
			{Key: "word_count", Value: 2},
			{Key: "created_at", Value: primitive.NewDateTimeFromTime(now)},
		}))

		got, err := st.GetReport(context.Background(), "r-1")
		require.NoError(mt, err)
		assert.Equal(mt, []models.Source{{URL: "https://a", Title: "A", Snippet: "sa"}}, got.Sources)
		assert.Equal(mt, 2, got.WordCount)
	})

	mt.Run("get missing report", func(mt *mtest.T) {
		st := NewMongoFromDB(mt.DB)
		ns := mt.DB.Name() + "." + ReportsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := st.GetReport(context.Background(), "missing")
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("insert report", func(mt *mtest.T) {
		st := NewMongoFromDB(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := st.InsertReport(context.Background(), models.Report{ReportID: "r-1", SessionID: "s-1"})
		require.NoError(mt, err)
	})
}
