package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CrawlSummary is persisted at the end of a run so downstream consumers can
// tell which store/locale an output document was produced for.
type CrawlSummary struct {
	StoreCode  string    `json:"store_code"`
	SourceSite string    `json:"source_site"`
	Categories int       `json:"categories"`
	Pages      int       `json:"pages"`
	Records    int       `json:"records"`
	Errors     int       `json:"errors"`
	FinishedAt time.Time `json:"finished_at"`
}

type StateManager interface {
	GetLastProcessedPage(ctx context.Context, categoryUID string) (int, error)
	SetLastProcessedPage(ctx context.Context, categoryUID string, pageNumber int) error
	SaveCrawlSummary(ctx context.Context, summary CrawlSummary) error
}

type redisStateManager struct {
	redisClient *redis.Client
	keyPrefix   string
	summaryKey  string
}

func NewRedisStateManager(redisClient *redis.Client) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   "electrichouse:progress:page:",
		summaryKey:  "electrichouse:crawl:last",
	}
}

func (s *redisStateManager) GetLastProcessedPage(ctx context.Context, categoryUID string) (int, error) {
	key := s.keyPrefix + categoryUID
	val, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil // No progress saved yet
		}
		return 0, fmt.Errorf("failed to get last processed page for category %s: %w", categoryUID, err)
	}

	page, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("failed to parse page number for category %s: %w", categoryUID, err)
	}

	return page, nil
}

func (s *redisStateManager) SetLastProcessedPage(ctx context.Context, categoryUID string, pageNumber int) error {
	key := s.keyPrefix + categoryUID
	err := s.redisClient.Set(ctx, key, pageNumber, 0).Err() // No expiration
	if err != nil {
		return fmt.Errorf("failed to set last processed page for category %s: %w", categoryUID, err)
	}
	return nil
}

func (s *redisStateManager) SaveCrawlSummary(ctx context.Context, summary CrawlSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize crawl summary: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.summaryKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save crawl summary: %w", err)
	}
	return nil
}
