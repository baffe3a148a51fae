package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"electrichouse/crawler/internal/client"
	"electrichouse/crawler/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
	Header    http.Header    `json:"-"`
}

// fakeGraphQL answers the two query shapes the crawler issues and records
// every request it sees.
type fakeGraphQL struct {
	mu            sync.Mutex
	requests      []capturedRequest
	treeBody      string
	productsBody  func(uid string, page int) (int, string)
	treeStatus    int
	server        *httptest.Server
}

func newFakeGraphQL(t *testing.T) *fakeGraphQL {
	t.Helper()
	f := &fakeGraphQL{treeStatus: http.StatusOK}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		req.Header = r.Header.Clone()

		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(req.Query, "categoryList") {
			w.WriteHeader(f.treeStatus)
			w.Write([]byte(f.treeBody))
			return
		}

		uid, _ := req.Variables["uid"].(string)
		page := int(req.Variables["page"].(float64))
		status, body := f.productsBody(uid, page)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGraphQL) captured() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]capturedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func newTestClient(endpoint string) client.ElectricHouseClient {
	return client.NewElectricHouseClient(config.StoreConfig{
		GraphQLEndpoint:      endpoint,
		StoreCode:            "en",
		SourceSite:           "electric-house",
		UserAgent:            "test-agent",
		Timeout:              5,
		MaxRetries:           0,
		MaxRequestsPerSecond: 1000,
	}, nil)
}

func TestGetCategoryTree(t *testing.T) {
	f := newFakeGraphQL(t)
	f.treeBody = `{"data":{"categoryList":[
		{"id":1,"uid":"root-a","name":"Appliances","url_path":"appliances","children":[
			{"id":2,"uid":"leaf-a","name":"Kettles","url_path":"appliances/kettles","children":[]}
		]},
		{"id":3,"uid":"leaf-b","name":"Clearance","url_path":"clearance","children":[]}
	]}}`

	c := newTestClient(f.server.URL)
	tree, err := c.GetCategoryTree(context.Background())
	require.NoError(t, err)

	require.Len(t, tree, 2)
	assert.Equal(t, "root-a", tree[0].UID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "leaf-a", tree[0].Children[0].UID)
	assert.True(t, tree[1].IsLeaf())

	reqs := f.captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "en", reqs[0].Header.Get("Store"))
	assert.Contains(t, reqs[0].Header.Get("Content-Type"), "application/json")
	assert.Equal(t, "test-agent", reqs[0].Header.Get("User-Agent"))
}

func TestGetCategoryTreeGraphQLError(t *testing.T) {
	f := newFakeGraphQL(t)
	f.treeBody = `{"errors":[{"message":"internal server error"}]}`

	c := newTestClient(f.server.URL)
	_, err := c.GetCategoryTree(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrGraphQL)
}

func TestGetCategoryTreeHTTPError(t *testing.T) {
	f := newFakeGraphQL(t)
	f.treeStatus = http.StatusNotFound
	f.treeBody = `not found`

	c := newTestClient(f.server.URL)
	_, err := c.GetCategoryTree(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, client.ErrGraphQL)
}

func TestGetCategoryTreeMalformedBody(t *testing.T) {
	f := newFakeGraphQL(t)
	f.treeBody = `<html>definitely not json</html>`

	c := newTestClient(f.server.URL)
	_, err := c.GetCategoryTree(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, client.ErrGraphQL)
}

func TestGetProductPage(t *testing.T) {
	f := newFakeGraphQL(t)
	f.productsBody = func(uid string, page int) (int, string) {
		return http.StatusOK, `{"data":{"products":{
			"total_count":21,
			"page_info":{"current_page":1,"total_pages":2},
			"items":[
				{"id":10,"uid":"p1","sku":"SKU-1","name":"Kettle","stock_status":"IN_STOCK","url_key":"kettle",
				 "price_range":{"maximum_price":{
					"final_price":{"value":100,"currency":"SAR"},
					"regular_price":{"value":150,"currency":"SAR"},
					"discount":{"amount_off":50,"percent_off":33}}},
				 "small_image":{"url":"https://cdn/img.jpg"},
				 "description":{"html":"<p>boils water</p>"}},
				{"id":11,"uid":"p2","sku":"SKU-2","name":"Bare item","stock_status":"OUT_OF_STOCK","url_key":"bare"}
			]}}}`
	}

	c := newTestClient(f.server.URL)
	result, err := c.GetProductPage(context.Background(), "leaf-a", 1)
	require.NoError(t, err)

	assert.Equal(t, "leaf-a", result.CategoryUID)
	assert.Equal(t, 1, result.PageNumber)
	assert.Equal(t, 2, result.TotalPages)
	assert.Equal(t, 21, result.TotalCount)
	require.Len(t, result.Items, 2)

	full := result.Items[0]
	require.NotNil(t, full.PriceRange)
	require.NotNil(t, full.PriceRange.MaximumPrice)
	require.NotNil(t, full.PriceRange.MaximumPrice.FinalPrice)
	assert.Equal(t, float64(100), *full.PriceRange.MaximumPrice.FinalPrice.Value)

	bare := result.Items[1]
	assert.Nil(t, bare.PriceRange)
	assert.Nil(t, bare.SmallImage)

	reqs := f.captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "leaf-a", reqs[0].Variables["uid"])
	assert.Equal(t, float64(1), reqs[0].Variables["page"])
}

func TestGetProductPageHTTPError(t *testing.T) {
	f := newFakeGraphQL(t)
	f.productsBody = func(uid string, page int) (int, string) {
		return http.StatusInternalServerError, `boom`
	}

	c := newTestClient(f.server.URL)
	_, err := c.GetProductPage(context.Background(), "leaf-a", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, client.ErrGraphQL)
}

type stubSupplier struct {
	mu      sync.Mutex
	proxies []string
	next    int
}

func (s *stubSupplier) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.proxies) == 0 {
		return ""
	}
	p := s.proxies[s.next%len(s.proxies)]
	s.next++
	return p
}

// Every category's first request is throttled, so rotations happen while
// other goroutines still have requests in flight through the old client.
func TestRateLimitedRequestsRetryThroughRotatedProxy(t *testing.T) {
	f := newFakeGraphQL(t)

	var mu sync.Mutex
	calls := map[string]int{}
	f.productsBody = func(uid string, page int) (int, string) {
		mu.Lock()
		calls[uid]++
		first := calls[uid] == 1
		mu.Unlock()

		if first {
			return http.StatusTooManyRequests, `too many requests`
		}
		return http.StatusOK, fmt.Sprintf(`{"data":{"products":{
			"total_count":1,
			"page_info":{"current_page":1,"total_pages":1},
			"items":[{"uid":"p-%s","sku":"SKU-%s","name":"Item"}]}}}`, uid, uid)
	}

	// The fake server doubles as the proxy; any HTTP proxy target works
	// because the handler only looks at the request body.
	c := client.NewElectricHouseClient(config.StoreConfig{
		GraphQLEndpoint:      f.server.URL,
		StoreCode:            "en",
		UserAgent:            "test-agent",
		Timeout:              5,
		MaxRequestsPerSecond: 1000,
	}, &stubSupplier{proxies: []string{f.server.URL}})

	uids := []string{"cat-a", "cat-b", "cat-c", "cat-d"}
	skus := make([]string, len(uids))
	errs := make([]error, len(uids))

	var wg sync.WaitGroup
	for i, uid := range uids {
		wg.Add(1)
		go func(i int, uid string) {
			defer wg.Done()
			result, err := c.GetProductPage(context.Background(), uid, 1)
			errs[i] = err
			if err == nil && len(result.Items) == 1 {
				skus[i] = result.Items[0].SKU
			}
		}(i, uid)
	}
	wg.Wait()

	for i, uid := range uids {
		require.NoError(t, errs[i], "category %s", uid)
		assert.Equal(t, "SKU-"+uid, skus[i])
	}
}

func TestGetProductPageGraphQLError(t *testing.T) {
	f := newFakeGraphQL(t)
	f.productsBody = func(uid string, page int) (int, string) {
		return http.StatusOK, `{"errors":[{"message":"category not found"}]}`
	}

	c := newTestClient(f.server.URL)
	_, err := c.GetProductPage(context.Background(), "gone", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrGraphQL)
}
