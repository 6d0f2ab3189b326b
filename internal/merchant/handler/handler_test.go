package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"storegate/internal/merchant/handler/mocks"
	"storegate/internal/merchant/models"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/middleware/admin"
)

type HandlerSuite struct {
	suite.Suite
	router      http.Handler
	ctrl        *gomock.Controller
	mockService *mocks.MockService
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(s.mockService, logger)

	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) serve(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func (s *HandlerSuite) TestGetMerchant() {
	s.Run("returns the merchant without secrets", func() {
		s.mockService.EXPECT().GetMerchant(gomock.Any(), "7080001150488").Return(&models.Merchant{
			GLN:           "7080001150488",
			ChainID:       "1300",
			Name:          "Meny Ullevål",
			AccountNumber: "acc-1",
			EncryptionKey: "secret",
		}, nil)

		rec := s.serve(http.MethodGet, "/merchants/7080001150488")
		s.Equal(http.StatusOK, rec.Code)
		s.NotContains(rec.Body.String(), "secret")

		var resp MerchantResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.True(resp.PaymentValid)
		s.True(resp.HasPayexCredentials)
	})

	s.Run("malformed gln is rejected before the service", func() {
		rec := s.serve(http.MethodGet, "/merchants/123")
		assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	})

	s.Run("upstream status is surfaced", func() {
		s.mockService.EXPECT().GetMerchant(gomock.Any(), "7080001150488").
			Return(nil, dErrors.NewUpstream(http.StatusNotFound, "retrieve merchant", nil))

		rec := s.serve(http.MethodGet, "/merchants/7080001150488")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestChainMerchants() {
	s.mockService.EXPECT().GetMerchantsForChain(gomock.Any(), "1300").Return([]models.Merchant{
		{GLN: "7080001150488", ChainID: "1300", AccountNumber: "a", EncryptionKey: "k"},
		{GLN: "7080001150495", ChainID: "1300", AeraStoreCode: "AERA-7"},
	}, nil)

	rec := s.serve(http.MethodGet, "/chains/1300/merchants")
	s.Equal(http.StatusOK, rec.Code)

	var resp MerchantListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(2, resp.Count)
	s.Equal("AERA-7", resp.Merchants[1].AeraStoreCode)
}

func (s *HandlerSuite) TestListMerchants() {
	s.mockService.EXPECT().GetAllMerchants(gomock.Any()).Return([]models.Merchant{}, nil)

	rec := s.serve(http.MethodGet, "/merchants")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"merchants":[],"count":0}`, rec.Body.String())
}

func (s *HandlerSuite) TestInvalidate() {
	s.Run("reports success", func() {
		s.mockService.EXPECT().InvalidateCache(gomock.Any(), "1300").Return(true, nil)

		rec := s.serve(http.MethodPost, "/chains/1300/merchants/invalidate")
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"chainId":"1300","invalidated":true}`, rec.Body.String())
	})

	s.Run("cache failure maps to 503", func() {
		s.mockService.EXPECT().InvalidateCache(gomock.Any(), "1300").
			Return(false, dErrors.New(dErrors.CodeCacheUnavailable, "invalidate merchant-1300"))

		rec := s.serve(http.MethodPost, "/chains/1300/merchants/invalidate")
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})

	s.Run("non numeric chain is rejected", func() {
		rec := s.serve(http.MethodPost, "/chains/meny/merchants/invalidate")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("guarded route requires the admin token", func() {
		logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
		h := New(s.mockService, logger, WithInvalidateMiddleware(admin.RequireAdminToken("s3cret", logger)))
		r := chi.NewRouter()
		h.Register(r)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chains/1300/merchants/invalidate", nil))
		s.Equal(http.StatusUnauthorized, rec.Code)

		s.mockService.EXPECT().InvalidateCache(gomock.Any(), "1300").Return(true, nil)
		req := httptest.NewRequest(http.MethodPost, "/chains/1300/merchants/invalidate", nil)
		req.Header.Set("X-Admin-Token", "s3cret")
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		s.Equal(http.StatusOK, rec.Code)
	})
}
