package commands

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/voxloom/voxloom/pkg/config"
	"github.com/voxloom/voxloom/pkg/episode"
	"github.com/voxloom/voxloom/pkg/queue"
	"github.com/voxloom/voxloom/pkg/storage"
)

// loadConfig loads configuration and validates the settings one worker
// role needs.
func loadConfig(role string) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if role != "" {
		if err := cfg.ValidateFor(role); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openStore connects the episode store. The returned pool must be closed
// by the caller.
func openStore(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, *episode.PostgresStore, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, episode.NewPostgres(pool), nil
}

// openArtifacts selects the artifact backend: S3 when a bucket is
// configured, the local filesystem otherwise.
func openArtifacts(ctx context.Context, cfg *config.Config) (*storage.Artifacts, error) {
	if cfg.Storage.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return storage.NewArtifacts(storage.NewS3(s3.NewFromConfig(awsCfg), cfg.Storage.Bucket, "")), nil
	}
	local, err := storage.NewLocal(cfg.Storage.LocalDir)
	if err != nil {
		return nil, err
	}
	return storage.NewArtifacts(local), nil
}

// Local queues are cached per name. A stage queue is both one worker's
// input and another's output, and badger allows only one open handle per
// directory.
var (
	localMu     sync.Mutex
	localQueues = map[string]*queue.LocalQueue{}
)

// closeLocalQueues closes every local queue this process opened.
func closeLocalQueues() {
	localMu.Lock()
	defer localMu.Unlock()
	for name, q := range localQueues {
		q.Close()
		delete(localQueues, name)
	}
}

// openQueue opens one named stage queue. SQS when a URL is configured,
// the embedded local queue otherwise. The cleanup func is never nil;
// local queues are closed by closeLocalQueues instead.
func openQueue(ctx context.Context, cfg *config.Config, url, name string) (queue.Queue, func(), error) {
	if cfg.Queues.LocalDir != "" {
		localMu.Lock()
		defer localMu.Unlock()
		if q, ok := localQueues[name]; ok {
			return q, func() {}, nil
		}
		q, err := queue.NewLocal(queue.LocalOptions{
			Dir:  filepath.Join(cfg.Queues.LocalDir, name),
			Name: name,
		})
		if err != nil {
			return nil, nil, err
		}
		localQueues[name] = q
		return q, func() {}, nil
	}
	if url == "" {
		return nil, nil, fmt.Errorf("no queue URL configured for %s and queues.local_dir is unset", name)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load AWS config: %w", err)
	}
	return queue.NewSQS(sqs.NewFromConfig(awsCfg), url), func() {}, nil
}

// newGenAI creates the Gemini API client shared by text and speech use.
func newGenAI(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.Gemini.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return client, nil
}

// httpClient is the default client for the gateway-style integrations
// (Telegram gateway, diacritics service, completion webhook).
func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
