package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoStore 基于MongoDB的输出存储
// 说明：迭代统计写入<experiment>_iterations集合，episode写入<experiment>_episodes集合
type mongoStore struct {
	client     *mongo.Client
	iterations *mongo.Collection
	episodes   *mongo.Collection
}

func newMongoStore(ctx context.Context, uri, db, experiment string) (*mongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect err: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping err: %w", err)
	}
	d := client.Database(db)
	log.Infof("output to mongo %s.%s_*", db, experiment)
	return &mongoStore{
		client:     client,
		iterations: d.Collection(experiment + "_iterations"),
		episodes:   d.Collection(experiment + "_episodes"),
	}, nil
}

func (s *mongoStore) SaveIteration(ctx context.Context, r IterationRecord) error {
	_, err := s.iterations.InsertOne(ctx, r)
	return err
}

func (s *mongoStore) SaveEpisode(ctx context.Context, r EpisodeRecord) error {
	_, err := s.episodes.InsertOne(ctx, r)
	return err
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
