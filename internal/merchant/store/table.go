package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"storegate/internal/merchant/models"
	"storegate/internal/platform/config"
	dErrors "storegate/pkg/domain-errors"
)

// tableAPI is the subset of the aztables client used by TableStore.
type tableAPI interface {
	GetEntity(ctx context.Context, partitionKey string, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	NewListEntitiesPager(listOptions *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
}

// TableStore reads merchant rows from the durable table. Rows use the GLN as both
// partition key and row key.
type TableStore struct {
	table  tableAPI
	name   string
	logger *slog.Logger
}

// NewTableStore connects to the merchant table with a shared key and creates it if missing.
func NewTableStore(ctx context.Context, cfg config.TableConfig, logger *slog.Logger) (*TableStore, error) {
	if cfg.Account == "" || cfg.Key == "" {
		return nil, fmt.Errorf("table storage account and key are required")
	}
	cred, err := aztables.NewSharedKeyCredential(cfg.Account, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("table storage credential: %w", err)
	}
	svc, err := aztables.NewServiceClientWithSharedKey(cfg.EndpointURL(), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("table storage client: %w", err)
	}
	client := svc.NewClient(cfg.Name)

	if _, err := client.CreateTable(ctx, nil); err != nil && !isTableExists(err) {
		logger.ErrorContext(ctx, "failed to establish connection to merchant table",
			"table", cfg.Name,
			"status", statusOf(err),
			"error", err,
		)
		return nil, dErrors.NewUpstream(statusOf(err), cfg.Name+" table storage", err)
	}
	return newTableStore(client, cfg.Name, logger), nil
}

func newTableStore(table tableAPI, name string, logger *slog.Logger) *TableStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TableStore{table: table, name: name, logger: logger}
}

// Get retrieves the row for a single GLN.
func (s *TableStore) Get(ctx context.Context, gln string) (models.Entity, error) {
	resp, err := s.table.GetEntity(ctx, gln, gln, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to retrieve merchant", "gln", gln, "error", err)
		return nil, dErrors.NewUpstream(statusOf(err), fmt.Sprintf("retrieve merchant %s", gln), err)
	}
	entity, err := models.ParseEntity(resp.Value)
	if err != nil {
		return nil, dErrors.NewUpstream(http.StatusBadGateway, fmt.Sprintf("retrieve merchant %s", gln), err)
	}
	return entity, nil
}

// QueryByChain returns every row whose ChainId equals chainID.
func (s *TableStore) QueryByChain(ctx context.Context, chainID string) ([]models.Entity, error) {
	filter := fmt.Sprintf("%s eq '%s'", models.PropChainID, escapeODataString(chainID))
	entities, err := s.list(ctx, &aztables.ListEntitiesOptions{Filter: &filter})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query merchant entities", "chain_id", chainID, "error", err)
		return nil, err
	}
	return entities, nil
}

// List returns every row in the table.
func (s *TableStore) List(ctx context.Context) ([]models.Entity, error) {
	entities, err := s.list(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query merchant entities", "error", err)
		return nil, err
	}
	return entities, nil
}

func (s *TableStore) list(ctx context.Context, opts *aztables.ListEntitiesOptions) ([]models.Entity, error) {
	pager := s.table.NewListEntitiesPager(opts)
	var entities []models.Entity
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, dErrors.NewUpstream(statusOf(err), "query "+s.name, err)
		}
		for _, raw := range page.Entities {
			e, err := models.ParseEntity(raw)
			if err != nil {
				return nil, dErrors.NewUpstream(http.StatusBadGateway, "query "+s.name, err)
			}
			entities = append(entities, e)
		}
	}
	return entities, nil
}

func escapeODataString(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

func statusOf(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return http.StatusInternalServerError
}

func isTableExists(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusConflict || respErr.ErrorCode == string(aztables.TableAlreadyExists)
	}
	return false
}
