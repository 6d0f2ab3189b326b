package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	merchantmodels "storegate/internal/merchant/models"
	"storegate/internal/platform/config"
	"storegate/internal/platform/redis"
	"storegate/internal/proxy"
	"storegate/internal/search/index"
	"storegate/internal/search/query"
	"storegate/internal/stores/models"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/circuit"
	"storegate/pkg/testutil"
)

// stubIndex serves documents by id and a fixed scroll result
type stubIndex struct {
	mu         sync.Mutex
	docs       map[string]string
	all        []string
	searchBody string
	getErr     error
	lastGet    index.GetRequest
	lastScroll index.SearchRequest
	lastSearch index.SearchRequest
}

func (i *stubIndex) Get(_ context.Context, req index.GetRequest) (json.RawMessage, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastGet = req
	if i.getErr != nil {
		return nil, i.getErr
	}
	doc, ok := i.docs[req.ID]
	if !ok {
		return nil, dErrors.Wrap(dErrors.NewUpstream(http.StatusNotFound, "document "+req.ID, nil), dErrors.CodeNotFound, "not found")
	}
	return json.RawMessage(doc), nil
}

func (i *stubIndex) Search(_ context.Context, req index.SearchRequest) (json.RawMessage, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastSearch = req
	return json.RawMessage(i.searchBody), nil
}

func (i *stubIndex) Scroll(_ context.Context, req index.SearchRequest) ([]json.RawMessage, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastScroll = req
	out := make([]json.RawMessage, 0, len(i.all))
	for _, doc := range i.all {
		out = append(out, json.RawMessage(doc))
	}
	return out, nil
}

type stubMerchants struct {
	byGLN   map[string]merchantmodels.Merchant
	getErr  error
	listErr error
}

func (m *stubMerchants) GetMerchant(_ context.Context, gln string) (*merchantmodels.Merchant, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	merchant, ok := m.byGLN[gln]
	if !ok {
		return nil, dErrors.NewUpstream(http.StatusNotFound, "retrieve merchant "+gln, nil)
	}
	return &merchant, nil
}

func (m *stubMerchants) GetMerchantsForChain(_ context.Context, chainID string) ([]merchantmodels.Merchant, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []merchantmodels.Merchant
	for _, merchant := range m.byGLN {
		if merchant.ChainID == chainID {
			out = append(out, merchant)
		}
	}
	return merchantmodels.FilterPaymentValid(out), nil
}

// stubForwarder answers every request with a fixed body or error
type stubForwarder struct {
	mu    sync.Mutex
	body  string
	err   error
	calls int
	last  proxy.Request
}

func (f *stubForwarder) Do(_ context.Context, req proxy.Request, _ http.ResponseWriter) (*proxy.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &proxy.Result{StatusCode: http.StatusOK, Body: []byte(f.body)}, nil
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	mr        *miniredis.Miniredis
	cache     *redis.Client
	index     *stubIndex
	merchants *stubMerchants
	forwarder *stubForwarder
	cfg       *query.Config
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.mr = miniredis.RunT(s.T())
	s.cache = redis.New(config.RedisConfig{URL: "redis://" + s.mr.Addr()})
	s.Require().NoError(s.cache.Connect(s.ctx))
	s.T().Cleanup(func() { _ = s.cache.Close() })

	s.cfg = &query.Config{
		ChainAliases: map[string]string{"1300": "meny-stores"},
		ReturnFields: []string{"storeId", "name"},
		ScrollSize:   50,
		Facets: query.FacetMapper{
			{Key: "region", Field: "region", DisplayName: "Region", Display: true, BucketName: "name", CountName: "count"},
		},
	}
	s.index = &stubIndex{
		docs: map[string]string{
			"7080001150488": `{"storeId":"7080001150488","chain":"1300","name":"Meny Ullevål","whitelist":false,"specialGoods":{"bags":[{"ean":"7035620000003","price":3.5,"title":"Bærepose"}]}}`,
			"7080001150495": `{"storeId":"7080001150495","chain":"1300","whitelist":true,"whitelistedMembers":["member-1"],"specialGoods":{}}`,
			"7080001150501": `{"storeId":"7080001150501","chain":"1300","whitelist":false}`,
		},
		all: []string{
			`{"storeId":"7080001150488","chain":"1300"}`,
			`{"storeId":"7080001150495","chain":"1300"}`,
			`{"storeId":"7080001150501","chain":"1300"}`,
		},
	}
	s.merchants = &stubMerchants{byGLN: map[string]merchantmodels.Merchant{
		"7080001150488": {GLN: "7080001150488", ChainID: "1300", AccountNumber: "acc", EncryptionKey: "key"},
		"7080001150495": {GLN: "7080001150495", ChainID: "1300", AeraStoreCode: "AERA-7"},
		"7080001150501": {GLN: "7080001150501", ChainID: "1300"},
	}}
	s.forwarder = &stubForwarder{body: `[{"gln":"7080001150488","sorteringsNummer":1,"avstandIMeter":350}]`}
	s.service = New(s.cfg, s.index, s.merchants, s.cache, s.forwarder, WithClickAndCollectAuthorization("Basic c2VjcmV0"))
}

func (s *ServiceSuite) TestGetSingleStore() {
	s.Run("uses the configured projection by default", func() {
		doc, err := s.service.GetSingleStore(s.ctx, LookupOptions{ChainID: "1300", StoreID: "7080001150488"})
		s.Require().NoError(err)
		s.Contains(string(doc), "Meny Ullevål")
		s.Equal("meny-stores", s.index.lastGet.Index)
		s.Equal([]string{"storeId", "name"}, s.index.lastGet.Fields)
	})

	s.Run("explicit fields replace the projection", func() {
		_, err := s.service.GetSingleStore(s.ctx, LookupOptions{ChainID: "1300", StoreID: "7080001150488", Fields: []string{"city"}})
		s.Require().NoError(err)
		s.Equal([]string{"city"}, s.index.lastGet.Fields)
	})

	s.Run("unknown chain is rejected", func() {
		_, err := s.service.GetSingleStore(s.ctx, LookupOptions{ChainID: "9999", StoreID: "7080001150488"})
		s.ErrorIs(err, dErrors.ErrUnknownChain)
	})
}

func (s *ServiceSuite) TestGetAllStores() {
	s.Run("scrolls with the whitelist query", func() {
		docs, err := s.service.GetAllStores(s.ctx, LookupOptions{ChainID: "1300", MemberID: "member-1", ValidHomeDeliveryOnly: true})
		s.Require().NoError(err)
		s.Len(docs, 3)
		s.Equal(50, s.index.lastScroll.Size)

		body, err := json.Marshal(s.index.lastScroll.Body)
		s.Require().NoError(err)
		s.Contains(string(body), `"whitelistedMembers":["member-1"]`)
		s.Contains(string(body), `"hasValidHomeDeliveryData":true`)
	})

	s.Run("unknown chain is rejected", func() {
		_, err := s.service.GetAllStores(s.ctx, LookupOptions{ChainID: "9999"})
		s.ErrorIs(err, dErrors.ErrUnknownChain)
	})
}

func (s *ServiceSuite) TestFullRecords() {
	s.Run("single store is mapped", func() {
		store, err := s.service.GetSingleStoreFull(s.ctx, LookupOptions{ChainID: "1300", StoreID: "7080001150488"})
		s.Require().NoError(err)
		s.Equal("7080001150488", store.GLN)
		s.Equal("1300", store.ChainID)
		s.NotNil(store.PickupSlots)
	})

	s.Run("explicit fields are unsupported", func() {
		_, err := s.service.GetSingleStoreFull(s.ctx, LookupOptions{ChainID: "1300", StoreID: "7080001150488", Fields: []string{"name"}})
		s.ErrorIs(err, dErrors.ErrUnsupportedOption)

		_, err = s.service.GetAllStoresFull(s.ctx, LookupOptions{ChainID: "1300", Fields: []string{"name"}})
		s.ErrorIs(err, dErrors.ErrUnsupportedOption)
	})

	s.Run("one unmappable store fails the batch and names it", func() {
		s.index.all = append(s.index.all, `{"storeId":"7080001150518","pickupSlots":[{"capacity":"many"}]}`)
		_, err := s.service.GetAllStoresFull(s.ctx, LookupOptions{ChainID: "1300"})
		s.Require().Error(err)
		s.Contains(err.Error(), "7080001150518")
	})
}

func (s *ServiceSuite) TestGetStoresWithValidPaymentSettings() {
	s.Run("keeps stores with a payment-valid merchant", func() {
		stores, err := s.service.GetStoresWithValidPaymentSettings(s.ctx, LookupOptions{ChainID: "1300"})
		s.Require().NoError(err)

		glns := make([]string, 0, len(stores))
		for _, st := range stores {
			glns = append(glns, st.GLN)
		}
		s.ElementsMatch([]string{"7080001150488", "7080001150495"}, glns)
	})

	s.Run("merchant failure fails the call", func() {
		s.merchants.listErr = errors.New("table unavailable")
		defer func() { s.merchants.listErr = nil }()

		_, err := s.service.GetStoresWithValidPaymentSettings(s.ctx, LookupOptions{ChainID: "1300"})
		s.Error(err)
	})

	s.Run("unknown chain is rejected", func() {
		_, err := s.service.GetStoresWithValidPaymentSettings(s.ctx, LookupOptions{ChainID: "9999"})
		s.ErrorIs(err, dErrors.ErrUnknownChain)
	})
}

func (s *ServiceSuite) TestGetStoreStatus() {
	tests := []struct {
		name     string
		gln      string
		memberID string
		setup    func()
		want     models.Status
	}{
		{name: "open store with valid merchant is active", gln: "7080001150488", want: models.Active()},
		{name: "whitelisted member is allowed", gln: "7080001150495", memberID: "member-1", want: models.Active()},
		{name: "whitelisted store without member", gln: "7080001150495", want: models.Inactive(models.StatusWhitelistViolation)},
		{name: "whitelisted store with other member", gln: "7080001150495", memberID: "member-2", want: models.Inactive(models.StatusWhitelistViolation)},
		{name: "merchant without payment settings", gln: "7080001150501", want: models.Inactive(models.StatusInvalidPayment)},
		{name: "missing store", gln: "0000000000000", want: models.Inactive(models.StatusStoreNotFound)},
		{
			name: "index failure",
			gln:  "7080001150488",
			setup: func() {
				s.index.getErr = dErrors.NewUpstream(http.StatusInternalServerError, "search", nil)
			},
			want: models.Inactive(models.StatusUnexpectedFailure),
		},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			s.index.getErr = nil
			if tc.setup != nil {
				tc.setup()
			}
			s.Equal(tc.want, s.service.GetStoreStatus(s.ctx, tc.gln, "1300", tc.memberID))
		})
	}

	s.Run("status lookup projects the whitelist fields", func() {
		s.index.getErr = nil
		s.service.GetStoreStatus(s.ctx, "7080001150488", "1300", "")
		s.Equal([]string{"whitelist", "whitelistedMembers"}, s.index.lastGet.Fields)
	})

	s.Run("merchant table failure is unexpected", func() {
		s.merchants.getErr = dErrors.NewUpstream(http.StatusServiceUnavailable, "table down", nil)
		defer func() { s.merchants.getErr = nil }()
		s.Equal(models.Inactive(models.StatusUnexpectedFailure), s.service.GetStoreStatus(s.ctx, "7080001150488", "1300", ""))
	})

	s.Run("merchant missing from the table counts as not found", func() {
		delete(s.merchants.byGLN, "7080001150488")
		s.Equal(models.Inactive(models.StatusStoreNotFound), s.service.GetStoreStatus(s.ctx, "7080001150488", "1300", ""))
	})
}

func (s *ServiceSuite) TestGetClosestInPostalCode() {
	s.Run("miss calls the click and collect backend and caches the result", func() {
		points := s.service.GetClosestInPostalCode(s.ctx, "1300", "0450", true)
		s.Require().Len(points, 1)
		s.Equal("7080001150488", points[0].GLN)
		s.Equal(1, s.forwarder.calls)

		s.Equal("/tjenester/kjeder/1300/butikker/avstand/postnummer/0450", s.forwarder.last.URL)
		s.Equal(http.MethodGet, s.forwarder.last.Method)
		s.Equal("click & collect", s.forwarder.last.Header.Get(proxy.TargetHeader))
		s.Equal("Basic c2VjcmV0", s.forwarder.last.Header.Get("Authorization"))

		s.True(s.mr.Exists("butikker0450"))
		s.Equal(30*time.Minute, s.mr.TTL("butikker0450"))
	})

	s.Run("hit skips the backend", func() {
		points := s.service.GetClosestInPostalCode(s.ctx, "1300", "0450", true)
		s.Len(points, 1)
		s.Equal(1, s.forwarder.calls)
	})

	s.Run("pickup points use their own key and path", func() {
		s.service.GetClosestInPostalCode(s.ctx, "1300", "0450", false)
		s.Equal("/tjenester/kjeder/1300/hentepunkter/avstand/postnummer/0450", s.forwarder.last.URL)
		s.True(s.mr.Exists("hentepunkter0450"))
	})

	s.Run("backend failure yields an empty list", func() {
		s.forwarder.err = &dErrors.ProxyError{StatusCode: http.StatusBadGateway, URI: "x"}
		defer func() { s.forwarder.err = nil }()

		points := s.service.GetClosestInPostalCode(s.ctx, "1300", "5003", true)
		s.NotNil(points)
		s.Empty(points)
		s.False(s.mr.Exists("butikker5003"))
	})

	s.Run("cache outage still answers from the backend", func() {
		s.mr.SetError("LOADING server is loading")
		defer s.mr.SetError("")

		points := s.service.GetClosestInPostalCode(s.ctx, "1300", "7010", true)
		s.Len(points, 1)
	})
}

func (s *ServiceSuite) TestClosestCircuitBreaker() {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	breaker := circuit.New("click & collect",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	svc := New(s.cfg, s.index, s.merchants, s.cache, s.forwarder, WithBreaker(breaker))

	s.forwarder.err = &dErrors.ProxyError{StatusCode: http.StatusBadGateway, URI: "x"}
	s.Empty(svc.GetClosestInPostalCode(s.ctx, "1300", "0150", true))
	s.Empty(svc.GetClosestInPostalCode(s.ctx, "1300", "0151", true))
	s.Equal(2, s.forwarder.calls)
	s.True(breaker.IsOpen())

	s.Run("open circuit skips the backend", func() {
		points := svc.GetClosestInPostalCode(s.ctx, "1300", "0152", true)
		s.NotNil(points)
		s.Empty(points)
		s.Equal(2, s.forwarder.calls)
	})

	s.Run("probe after cooldown reaches the backend again", func() {
		s.forwarder.err = nil
		now = now.Add(time.Minute)
		points := svc.GetClosestInPostalCode(s.ctx, "1300", "0152", true)
		s.Len(points, 1)
		s.Equal(3, s.forwarder.calls)
	})
}

func (s *ServiceSuite) TestClosestCoalescesConcurrentMisses() {
	release := make(chan struct{})
	fwd := &gatedForwarder{stubForwarder: s.forwarder, release: release}
	svc := New(s.cfg, s.index, s.merchants, s.cache, fwd)

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()
	res := testutil.RunConcurrent(8, func(int) error {
		if points := svc.GetClosestInPostalCode(s.ctx, "1300", "0160", true); len(points) != 1 {
			return errors.New("unexpected closest result")
		}
		return nil
	})

	s.Equal(int32(8), res.Total())
	s.Equal(int32(8), res.Successes)
	s.Less(s.forwarder.calls, 8)
}

func (s *ServiceSuite) TestClosestOutlivesCanceledCaller() {
	fwd := &ctxForwarder{stubForwarder: s.forwarder}
	svc := New(s.cfg, s.index, s.merchants, s.cache, fwd, WithClosestTimeout(time.Second))

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	points := svc.GetClosestInPostalCode(ctx, "1300", "0170", true)
	s.Len(points, 1)
	s.Require().NotNil(fwd.deadline)
	s.WithinDuration(time.Now().Add(time.Second), *fwd.deadline, time.Second)
}

// ctxForwarder fails like a real client when its context is done
type ctxForwarder struct {
	*stubForwarder
	deadline *time.Time
}

func (f *ctxForwarder) Do(ctx context.Context, req proxy.Request, sink http.ResponseWriter) (*proxy.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d, ok := ctx.Deadline(); ok {
		f.deadline = &d
	}
	return f.stubForwarder.Do(ctx, req, sink)
}

// gatedForwarder holds every call until release is closed
type gatedForwarder struct {
	*stubForwarder
	release chan struct{}
}

func (f *gatedForwarder) Do(ctx context.Context, req proxy.Request, sink http.ResponseWriter) (*proxy.Result, error) {
	<-f.release
	return f.stubForwarder.Do(ctx, req, sink)
}

func (s *ServiceSuite) TestGetStoreBagFees() {
	s.Run("happy path returns the bags", func() {
		bags, err := s.service.GetStoreBagFees(s.ctx, "1300", "7080001150488")
		s.Require().NoError(err)
		s.Require().Len(bags, 1)
		s.Equal(3.5, bags[0].Price)
		s.Equal([]string{"specialGoods"}, s.index.lastGet.Fields)
	})

	s.Run("store without bags is not found", func() {
		_, err := s.service.GetStoreBagFees(s.ctx, "1300", "7080001150495")
		s.ErrorIs(err, dErrors.ErrNotFound)
	})

	s.Run("missing store is not found", func() {
		_, err := s.service.GetStoreBagFees(s.ctx, "1300", "0000000000000")
		s.ErrorIs(err, dErrors.ErrNotFound)
	})
}

func (s *ServiceSuite) TestSearchStores() {
	s.index.searchBody = `{
		"hits": {"total": {"value": 42}, "hits": [{"_id": "1", "_source": {"storeId": "1"}}, {"_id": "2"}]},
		"aggregations": {
			"region": {"buckets": [{"key": "east", "doc_count": 30}, {"key": "west", "doc_count": 12}]},
			"unknown": {"buckets": [{"key": "x", "doc_count": 1}]}
		}
	}`

	res, err := s.service.SearchStores(s.ctx, SearchOptions{ChainID: "1300", Facets: "region:east|!west", Size: 10, Page: 3})
	s.Require().NoError(err)
	s.EqualValues(42, res.Total)
	s.Len(res.Stores, 1)
	s.Require().Contains(res.Facets, "Region")
	s.Equal([]map[string]any{
		{"name": "east", "count": float64(30)},
		{"name": "west", "count": float64(12)},
	}, res.Facets["Region"])
	s.NotContains(res.Facets, "unknown")

	s.True(s.index.lastSearch.FullResponse)
	s.Equal(10, s.index.lastSearch.Size)
	s.Equal(20, s.index.lastSearch.From)

	body, err := json.Marshal(s.index.lastSearch.Body)
	s.Require().NoError(err)
	s.Contains(string(body), `"must_not":[{"term":{"region":"west"}}]`)
	s.Contains(string(body), `{"term":{"region":"east"}}`)
	s.Contains(string(body), `"aggs":{"region":{"terms":{"field":"region"}}}`)

	s.Run("missing filters exclude documents that carry the field", func() {
		s.cfg.Missing = []query.ExistsFilter{{Name: "withoutFees", Field: "homeDeliveryFees", Default: true}}
		defer func() { s.cfg.Missing = nil }()

		_, err := s.service.SearchStores(s.ctx, SearchOptions{ChainID: "1300"})
		s.Require().NoError(err)

		raw, err := json.Marshal(s.index.lastSearch.Body)
		s.Require().NoError(err)
		var body struct {
			Query struct {
				Bool struct {
					Must    []map[string]any `json:"must"`
					MustNot []map[string]any `json:"must_not"`
				} `json:"bool"`
			} `json:"query"`
		}
		s.Require().NoError(json.Unmarshal(raw, &body))
		exists := map[string]any{"exists": map[string]any{"field": "homeDeliveryFees"}}
		s.Contains(body.Query.Bool.MustNot, exists)
		s.NotContains(body.Query.Bool.Must, exists)

		_, err = s.service.SearchStores(s.ctx, SearchOptions{ChainID: "1300", Filters: map[string]query.Value{"withoutFees": query.Removed}})
		s.Require().NoError(err)
		raw, err = json.Marshal(s.index.lastSearch.Body)
		s.Require().NoError(err)
		s.NotContains(string(raw), "homeDeliveryFees")
	})

	s.Run("unknown chain is rejected", func() {
		_, err := s.service.SearchStores(s.ctx, SearchOptions{ChainID: "9999"})
		s.ErrorIs(err, dErrors.ErrUnknownChain)
	})
}
