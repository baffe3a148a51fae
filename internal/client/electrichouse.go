package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"electrichouse/crawler/internal/config"
	"electrichouse/crawler/internal/domain"
	"electrichouse/crawler/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// ErrGraphQL marks a well-formed 200 response whose payload carries a
// top-level errors array. Such failures are deterministic and must not be
// retried.
var ErrGraphQL = errors.New("graphql error")

type ElectricHouseClient interface {
	GetCategoryTree(ctx context.Context) ([]domain.Category, error)
	GetProductPage(ctx context.Context, categoryUID string, page int) (*domain.ProductPage, error)
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type electricHouseClient struct {
	rl            ratelimit.Limiter
	config        config.StoreConfig
	endpoint      string
	proxySupplier proxy.Supplier

	// Proxy rotation swaps the whole client; requests already in flight
	// keep the transport they started with.
	clientMutex sync.RWMutex
	httpClient  *resty.Client

	// Cooldown after repeated throttling by the store
	breakerMutex sync.RWMutex
	pausedUntil  time.Time
	breakerDelay time.Duration
}

func newHTTPClient(cfg config.StoreConfig, proxyURL string) *resty.Client {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Store", cfg.StoreCode).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})

	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}

	return client
}

func NewElectricHouseClient(cfg config.StoreConfig, proxySupplier proxy.Supplier) ElectricHouseClient {
	initialProxy := ""
	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			initialProxy = proxyURL
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	rps := cfg.MaxRequestsPerSecond
	if rps < 1 {
		rps = 1
	}

	return &electricHouseClient{
		rl:            ratelimit.New(rps),
		config:        cfg,
		endpoint:      cfg.GraphQLEndpoint,
		httpClient:    newHTTPClient(cfg, initialProxy),
		proxySupplier: proxySupplier,
		breakerDelay:  30 * time.Minute,
	}
}

func (c *electricHouseClient) client() *resty.Client {
	c.clientMutex.RLock()
	defer c.clientMutex.RUnlock()
	return c.httpClient
}

// rotateProxy builds a fresh client on the new proxy and makes it the
// current one. The previous client is never mutated, so concurrent
// requests running through it stay safe.
func (c *electricHouseClient) rotateProxy(proxyURL string) *resty.Client {
	c.clientMutex.Lock()
	defer c.clientMutex.Unlock()
	c.httpClient = newHTTPClient(c.config, proxyURL)
	return c.httpClient
}

func (c *electricHouseClient) GetCategoryTree(ctx context.Context) ([]domain.Category, error) {
	resp, err := c.execute(ctx, categoryListQuery, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch category tree: %w", err)
	}

	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: category tree query failed: %s", ErrGraphQL, resp.Errors[0].Message)
	}

	var data struct {
		CategoryList []domain.Category `json:"categoryList"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode category tree: %w", err)
	}

	log.Infof("🔄 Found %d root categories", len(data.CategoryList))
	return data.CategoryList, nil
}

func (c *electricHouseClient) GetProductPage(ctx context.Context, categoryUID string, page int) (*domain.ProductPage, error) {
	resp, err := c.execute(ctx, productsQuery, map[string]any{
		"uid":  categoryUID,
		"page": page,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d for category %s: %w", page, categoryUID, err)
	}

	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: category %s page %d: %s", ErrGraphQL, categoryUID, page, resp.Errors[0].Message)
	}

	var data struct {
		Products struct {
			TotalCount int `json:"total_count"`
			PageInfo   struct {
				CurrentPage int `json:"current_page"`
				TotalPages  int `json:"total_pages"`
			} `json:"page_info"`
			Items []domain.ProductNode `json:"items"`
		} `json:"products"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode products page %d for category %s: %w", page, categoryUID, err)
	}

	result := &domain.ProductPage{
		CategoryUID: categoryUID,
		PageNumber:  page,
		TotalPages:  data.Products.PageInfo.TotalPages,
		TotalCount:  data.Products.TotalCount,
		Items:       data.Products.Items,
	}

	log.Debugf("Fetched page %d/%d for category %s with %d items",
		result.PageNumber, result.TotalPages, categoryUID, len(result.Items))
	return result, nil
}

func (c *electricHouseClient) isPaused() bool {
	c.breakerMutex.RLock()
	now := time.Now()
	wasPaused := now.Before(c.pausedUntil)
	wasTriggered := !c.pausedUntil.IsZero()
	c.breakerMutex.RUnlock()

	if !wasPaused && wasTriggered {
		c.breakerMutex.Lock()
		if !c.pausedUntil.IsZero() && now.After(c.pausedUntil) {
			c.pausedUntil = time.Time{}
			log.Infof("✅ Throttling cooldown expired - requests are allowed again")
		}
		c.breakerMutex.Unlock()
	}

	return wasPaused
}

func (c *electricHouseClient) pauseRequests() {
	c.breakerMutex.Lock()
	defer c.breakerMutex.Unlock()

	c.pausedUntil = time.Now().Add(c.breakerDelay)
	log.Warnf("🚫 Store is throttling us, all requests disabled until %v",
		c.pausedUntil.Format("15:04:05"))
}

func (c *electricHouseClient) remainingPause() time.Duration {
	c.breakerMutex.RLock()
	defer c.breakerMutex.RUnlock()

	remaining := time.Until(c.pausedUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// execute posts one query+variables payload to the GraphQL endpoint and
// parses the envelope. A response with a top-level errors array is returned
// without error; callers decide what a payload error means for them.
func (c *electricHouseClient) execute(ctx context.Context, query string, variables map[string]any) (*graphQLResponse, error) {
	if c.isPaused() {
		remaining := c.remainingPause()
		log.Debugf("🚫 Request blocked by throttling cooldown. Remaining time: %v", remaining.Round(time.Second))
		return nil, fmt.Errorf("requests paused for %v more after throttling", remaining.Round(time.Second))
	}

	c.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	payload := graphQLRequest{Query: query, Variables: variables}

	resp, err := c.client().R().
		SetContext(reqCtx).
		SetBody(payload).
		Post(c.endpoint)

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to reach GraphQL endpoint: %w", err)
	}

	if resp.StatusCode() == 429 {
		log.Warnf("🚫 Rate limited by store (429)")

		if c.proxySupplier != nil {
			if newProxy := c.proxySupplier.Get(); newProxy != "" {
				log.Infof("🔄 Switching to new proxy: %s", newProxy)
				retryClient := c.rotateProxy(newProxy)

				retryResp, retryErr := retryClient.R().
					SetContext(reqCtx).
					SetBody(payload).
					Post(c.endpoint)

				if retryErr == nil && !retryResp.IsError() {
					log.Infof("✅ Retry successful with new proxy")
					return parseEnvelope(retryResp.String())
				}
			}
		}

		c.pauseRequests()
		return nil, fmt.Errorf("rate limited - requests paused for %v", c.breakerDelay)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	return parseEnvelope(resp.String())
}

func parseEnvelope(body string) (*graphQLResponse, error) {
	var envelope graphQLResponse
	if err := json.NewDecoder(strings.NewReader(body)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode GraphQL response: %w", err)
	}
	return &envelope, nil
}
