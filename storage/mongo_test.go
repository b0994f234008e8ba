package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinizap/diary/server/domain"
)

func TestMongoGateway(t *testing.T) {
	uri := os.Getenv("DIARY_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("DIARY_TEST_MONGODB_URI not set")
	}

	runGatewaySuite(t, gatewayHarness{
		open: func(t *testing.T, clock *fakeClock) Gateway {
			t.Helper()
			ctx := context.Background()
			g, err := OpenMongo(ctx, uri, WithClock(clock.Now))
			if err != nil {
				t.Fatalf("OpenMongo: %v", err)
			}
			if _, err := g.coll.DeleteMany(ctx, bson.D{}); err != nil {
				t.Fatalf("clear collection: %v", err)
			}
			t.Cleanup(func() { g.Close(ctx) })
			return g
		},
		absentID:    func() string { return primitive.NewObjectID().Hex() },
		malformedID: "6650f0c2-not-hex",
	})
}

func TestParseObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	got, err := parseObjectID(oid.Hex())
	if err != nil {
		t.Fatalf("parseObjectID: %v", err)
	}
	if got != oid {
		t.Fatalf("expected %s, got %s", oid.Hex(), got.Hex())
	}

	for _, bad := range []string{"", "xyz", "6650f0c2e4b0a1b2c3d4e5f", "6650f0c2e4b0a1b2c3d4e5fz"} {
		_, err := parseObjectID(bad)
		var idErr *domain.InvalidIDError
		if !errors.As(err, &idErr) {
			t.Fatalf("parseObjectID(%q): expected *InvalidIDError, got %v", bad, err)
		}
	}
}

func TestMemoryDocumentToMemory(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := memoryDocument{ID: oid, Title: "Trip", Content: "Beach day"}

	m := doc.toMemory()
	if m.ID != oid.Hex() || m.Title != "Trip" || m.Content != "Beach day" {
		t.Fatalf("unexpected conversion %+v", m)
	}
}

func TestUpdatePipeline(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pipeline := updatePipeline("$title", "{$set: 1}", now)

	if len(pipeline) != 1 || len(pipeline[0]) != 1 || pipeline[0][0].Key != "$set" {
		t.Fatalf("expected a single $set stage, got %v", pipeline)
	}

	data, err := bson.MarshalExtJSON(bson.D{{Key: "pipeline", Value: pipeline}}, false, false)
	if err != nil {
		t.Fatalf("MarshalExtJSON: %v", err)
	}
	got := string(data)

	for _, want := range []string{
		`"title":{"$literal":"$title"}`,
		`"content":{"$literal":"{$set: 1}"}`,
		`"updatedAt":{"$max":[{"$date":"2024-06-01T12:00:00Z"},{"$add":["$updatedAt",1]}]}`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %s in update pipeline, got %s", want, got)
		}
	}
}
