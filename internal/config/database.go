package config

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/redisclient"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

var (
	// MongoDB is the global database handle for the remote document store
	MongoDB *mongo.Database
	// MongoClient is kept for connectivity probing
	MongoClient *mongo.Client
	// Redis is the global traced Redis client backing the durable queue
	Redis *redisclient.Client
)

// InitMongoDB initializes the MongoDB connection
func InitMongoDB() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(AppConfig.MongoURI).
		SetMonitor(otelmongo.NewMonitor()).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true).
		SetRetryReads(true)

	// Connect only fails on invalid client options; reachability is checked
	// by the ping below.
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		log.Fatal(err)
	}

	MongoClient = client
	MongoDB = client.Database(AppConfig.MongoDatabase)

	// An unreachable store is not fatal: the queue keeps accepting work and
	// the connectivity monitor drains it once the store comes back.
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logging.Logger.Warn("MongoDB unreachable at startup, queue starts offline",
			zap.String("uri", MaskMongoURI(AppConfig.MongoURI)),
			zap.String("database", AppConfig.MongoDatabase),
			zap.Error(err))
		return
	}

	logging.Logger.Info("connected to MongoDB",
		zap.String("uri", MaskMongoURI(AppConfig.MongoURI)),
		zap.String("database", AppConfig.MongoDatabase),
	)
}

// InitRedis initializes the Redis connection
func InitRedis() {
	redisClient := redis.NewClient(&redis.Options{
		Addr:         AppConfig.RedisURI,
		Password:     AppConfig.RedisPassword,
		DB:           AppConfig.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Wrap with traced client
	Redis = redisclient.NewClient(redisClient)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Redis.Ping(ctx).Err(); err != nil {
		logging.Logger.Error("failed to connect to Redis",
			zap.String("uri", AppConfig.RedisURI),
			zap.Error(err))
		return
	}

	logging.Logger.Info("connected to Redis",
		zap.String("uri", AppConfig.RedisURI))
}

// MaskMongoURI masks credentials in a MongoDB URI for logging
func MaskMongoURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	if at == -1 {
		return uri
	}
	return "mongodb://****:****@" + uri[at+1:]
}
