package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// MongoSink writes records to a MongoDB collection with one InsertMany
// per Flush.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	target     string
	timeout    time.Duration
	pending    []any
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoSink connects and pings the server.
func NewMongoSink(cfg config.MongoConfig, logger *slog.Logger) (*MongoSink, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "articles"
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(cfg.Database).Collection(collection),
		target:     "mongodb:" + cfg.Database + "." + collection,
		timeout:    timeout,
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) Append(rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, rec)
	return nil
}

func (s *MongoSink) Flush() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return s.target, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*s.timeout)
	defer cancel()

	if _, err := s.collection.InsertMany(ctx, s.pending); err != nil {
		return "", &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("insert: %w", err)}
	}

	s.count += len(s.pending)
	s.logger.Info("records stored in mongodb", "count", len(s.pending), "total", s.count, "target", s.target)
	s.pending = s.pending[:0]
	return s.target, nil
}

func (s *MongoSink) Close() error {
	s.logger.Debug("mongodb sink closing", "total_records", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Multi-Sink Fan-Out ---

// MultiSink writes records to several sinks.
type MultiSink struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMultiSink creates a sink that fans out to every backend.
func NewMultiSink(sinks []Sink, logger *slog.Logger) *MultiSink {
	return &MultiSink{
		sinks:  sinks,
		logger: logger.With("component", "multi_sink"),
	}
}

func (s *MultiSink) Name() string { return "multi" }

func (s *MultiSink) Append(rec types.Record) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Append(rec); err != nil {
			s.logger.Error("sink append failed", "sink", sink.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Flush flushes every sink and joins their locations with ", ".
func (s *MultiSink) Flush() (string, error) {
	var paths []string
	var errs []error
	for _, sink := range s.sinks {
		path, err := sink.Flush()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		paths = append(paths, path)
	}
	return strings.Join(paths, ", "), errors.Join(errs...)
}

func (s *MultiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
