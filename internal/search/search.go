// Package search mirrors domain entities into Meilisearch and serves
// free-text queries over them. Index writes happen through background
// tasks so domain mutations never block on the search backend.
package search

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/meilisearch/meilisearch-go"

	apperrors "machtms/internal/errors"
	"machtms/internal/tms"
	"machtms/pkg/logger"
)

// Index identifies one Meilisearch index. The configured prefix (for
// debug deployments) is applied when the index is addressed.
type Index string

const (
	IndexLoads     Index = "TMS_LOAD"
	IndexAddresses Index = "TMS_ADDRESSES"
	IndexCustomers Index = "TMS_CUSTOMERS"
	IndexCarriers  Index = "TMS_CARRIERS"
)

// indexForEntity maps the task payload entity names onto indexes.
func indexForEntity(entity string) (Index, bool) {
	switch entity {
	case "load":
		return IndexLoads, true
	case "address":
		return IndexAddresses, true
	case "customer":
		return IndexCustomers, true
	case "carrier":
		return IndexCarriers, true
	}
	return "", false
}

// Config connects the service to a Meilisearch deployment.
type Config struct {
	Host        string
	APIKey      string
	IndexPrefix string
}

// Service owns the Meilisearch client and the entity transformers.
type Service struct {
	client *meilisearch.Client
	prefix string
	tms    *tms.Service
	log    *slog.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

// NewService builds the search service on top of the domain service,
// which it queries to flatten entities before indexing.
func NewService(cfg Config, domain *tms.Service) *Service {
	return &Service{
		client: meilisearch.NewClient(meilisearch.ClientConfig{
			Host:   cfg.Host,
			APIKey: cfg.APIKey,
		}),
		prefix:  cfg.IndexPrefix,
		tms:     domain,
		log:     logger.Named("search"),
		ensured: make(map[string]bool),
	}
}

func (s *Service) uid(index Index) string {
	return s.prefix + string(index)
}

// ensureIndex creates the index with the id primary key and the
// organization filter attribute on first use.
func (s *Service) ensureIndex(index Index) (*meilisearch.Index, error) {
	uid := s.uid(index)

	s.mu.Lock()
	ensured := s.ensured[uid]
	s.mu.Unlock()

	if !ensured {
		if _, err := s.client.GetIndex(uid); err != nil {
			if _, err := s.client.CreateIndex(&meilisearch.IndexConfig{
				Uid:        uid,
				PrimaryKey: "id",
			}); err != nil {
				return nil, apperrors.Wrap(apperrors.CodeExternalService, err,
					"create search index "+uid)
			}
		}
		if _, err := s.client.Index(uid).UpdateFilterableAttributes(&[]string{"organization_id"}); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeExternalService, err,
				"configure search index "+uid)
		}
		s.mu.Lock()
		s.ensured[uid] = true
		s.mu.Unlock()
	}
	return s.client.Index(uid), nil
}

// IndexEntity flattens the entity and upserts it into its index.
func (s *Service) IndexEntity(ctx context.Context, orgID, entity, id string) error {
	index, ok := indexForEntity(entity)
	if !ok {
		return apperrors.New(apperrors.CodeInvalidArgument, "unknown search entity "+entity)
	}

	doc, err := s.document(ctx, orgID, index, id)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			// Deleted between enqueue and execution.
			return s.DeleteEntity(ctx, orgID, entity, id)
		}
		return err
	}

	idx, err := s.ensureIndex(index)
	if err != nil {
		return err
	}
	if _, err := idx.AddDocuments([]any{doc}); err != nil {
		return apperrors.Wrap(apperrors.CodeExternalService, err,
			"index document into "+s.uid(index))
	}
	s.log.Debug("document indexed", "index", s.uid(index), "id", id)
	return nil
}

// DeleteEntity removes the entity from its index.
func (s *Service) DeleteEntity(_ context.Context, _, entity, id string) error {
	index, ok := indexForEntity(entity)
	if !ok {
		return apperrors.New(apperrors.CodeInvalidArgument, "unknown search entity "+entity)
	}
	idx, err := s.ensureIndex(index)
	if err != nil {
		return err
	}
	if _, err := idx.DeleteDocument(id); err != nil {
		return apperrors.Wrap(apperrors.CodeExternalService, err,
			"delete document from "+s.uid(index))
	}
	return nil
}

// Query runs an organization-filtered search against one index and
// returns the raw hits.
func (s *Service) Query(_ context.Context, orgID string, index Index, query string, limit int) ([]any, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "search query cannot be empty")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	idx, err := s.ensureIndex(index)
	if err != nil {
		return nil, err
	}
	resp, err := idx.Search(query, &meilisearch.SearchRequest{
		Filter: "organization_id = " + strconv.Quote(orgID),
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeExternalService, err,
			"search "+s.uid(index))
	}
	return resp.Hits, nil
}

func (s *Service) document(ctx context.Context, orgID string, index Index, id string) (any, error) {
	switch index {
	case IndexLoads:
		load, err := s.tms.GetLoad(ctx, orgID, id)
		if err != nil {
			return nil, err
		}
		return s.transformLoad(ctx, load)
	case IndexAddresses:
		address, err := s.tms.GetAddress(ctx, orgID, id)
		if err != nil {
			return nil, err
		}
		return transformAddress(address), nil
	case IndexCustomers:
		customer, err := s.tms.GetCustomer(ctx, orgID, id)
		if err != nil {
			return nil, err
		}
		return transformCustomer(customer), nil
	case IndexCarriers:
		carrier, err := s.tms.GetCarrier(ctx, orgID, id)
		if err != nil {
			return nil, err
		}
		return transformCarrier(carrier), nil
	}
	return nil, apperrors.New(apperrors.CodeInvalidArgument, "unknown index "+string(index))
}
