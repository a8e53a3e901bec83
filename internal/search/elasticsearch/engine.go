// Package elasticsearch serves catalog search from an Elasticsearch index.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/internal/repository"
)

// Engine implements repository.ServiceIndex on Elasticsearch.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

var _ repository.ServiceIndex = (*Engine)(nil)

type providerDocument struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Role  string `json:"role"`
}

// serviceDocument is the indexed form of domain.Service.
type serviceDocument struct {
	ID            int64            `json:"id"`
	CategoryID    int64            `json:"category_id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Price         float64          `json:"price"`
	OriginalPrice float64          `json:"original_price"`
	Rating        int              `json:"rating"`
	ReviewCount   int              `json:"review_count"`
	Provider      providerDocument `json:"provider"`
	Image         string           `json:"image"`
}

func toDocument(s *domain.Service) serviceDocument {
	return serviceDocument{
		ID:            s.ID,
		CategoryID:    s.CategoryID,
		Title:         s.Title,
		Description:   s.Description,
		Price:         s.Price,
		OriginalPrice: s.OriginalPrice,
		Rating:        s.Rating,
		ReviewCount:   s.ReviewCount,
		Provider:      providerDocument(s.Provider),
		Image:         s.Image,
	}
}

func (d *serviceDocument) service() domain.Service {
	return domain.Service{
		ID:            d.ID,
		CategoryID:    d.CategoryID,
		Title:         d.Title,
		Description:   d.Description,
		Price:         d.Price,
		OriginalPrice: d.OriginalPrice,
		Rating:        d.Rating,
		ReviewCount:   d.ReviewCount,
		Provider:      domain.ServiceProviderInfo(d.Provider),
		Image:         d.Image,
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source serviceDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID    string `json:"_id"`
			Error struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// New connects to the cluster at url and creates the index if it is
// missing. An empty indexName means DefaultIndexName.
func New(ctx context.Context, url, indexName string, logger *slog.Logger) (*Engine, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	e := &Engine{
		client:    client,
		indexName: indexName,
		logger:    logger,
	}
	if err := e.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch: ensure index: %w", err)
	}
	return e, nil
}

// Ping checks that the cluster answers.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

func (e *Engine) ensureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.indexName}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return responseError("create index", res)
	}

	e.logger.InfoContext(ctx, "elasticsearch index created", slog.String("index", e.indexName))
	return nil
}

// IndexServices writes services with one bulk request. Documents are keyed
// by service id, so indexing the same service again replaces it.
func (e *Engine) IndexServices(ctx context.Context, services []domain.Service) error {
	if len(services) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range services {
		action := map[string]any{
			"index": map[string]any{"_id": strconv.FormatInt(services[i].ID, 10)},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode action: %w", err)
		}
		if err := enc.Encode(toDocument(&services[i])); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(
		&buf,
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh("true"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return responseError("elasticsearch bulk", res)
	}

	var bulk bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}
	if bulk.Errors {
		var failed []string
		for _, item := range bulk.Items {
			if item.Index.Error.Type != "" {
				failed = append(failed, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk: partial errors: %s", strings.Join(failed, "; "))
	}

	e.logger.InfoContext(ctx, "indexed services", slog.Int("count", len(services)))
	return nil
}

// SearchServices returns one page of services whose title or description
// contains query, case-insensitively, ordered by id.
func (e *Engine) SearchServices(ctx context.Context, query string, limit, offset int) ([]domain.Service, int, error) {
	body, err := json.Marshal(buildSearchQuery(query, limit, offset))
	if err != nil {
		return nil, 0, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, 0, responseError("elasticsearch search", res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, 0, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	services := make([]domain.Service, 0, len(sr.Hits.Hits))
	for i := range sr.Hits.Hits {
		services = append(services, sr.Hits.Hits[i].Source.service())
	}
	return services, sr.Hits.Total.Value, nil
}

func buildSearchQuery(query string, limit, offset int) map[string]any {
	pattern := "*" + escapeWildcard(query) + "*"
	match := func(field string) map[string]any {
		return map[string]any{
			"wildcard": map[string]any{
				field: map[string]any{"value": pattern, "case_insensitive": true},
			},
		}
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"should":               []any{match("title"), match("description")},
				"minimum_should_match": 1,
			},
		},
		"from":             offset,
		"size":             limit,
		"sort":             []any{map[string]any{"id": "asc"}},
		"track_total_hits": true,
	}
}

// escapeWildcard makes * and ? in user input match literally.
func escapeWildcard(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(s)
}

func responseError(op string, res *esapi.Response) error {
	data, _ := io.ReadAll(res.Body)
	var er errorResponse
	if json.Unmarshal(data, &er) == nil && er.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, er.Error.Type, er.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, res.Status())
}
