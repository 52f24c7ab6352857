package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/config"
	"example.com/backstage/services/saga/domain"
)

const (
	EventsIndex        = "events"
	SagaInstancesIndex = "saga-instances"
)

// Indexer mirrors view models into a search index
type Indexer interface {
	IndexEvent(ctx context.Context, view domain.EventView) error
	DeleteEvent(ctx context.Context, id string) error
	IndexSagaInstance(ctx context.Context, view domain.SagaInstanceView) error
	DeleteSagaInstance(ctx context.Context, id string) error
}

// NoopIndexer is used when Elasticsearch is disabled
type NoopIndexer struct{}

func (NoopIndexer) IndexEvent(context.Context, domain.EventView) error               { return nil }
func (NoopIndexer) DeleteEvent(context.Context, string) error                        { return nil }
func (NoopIndexer) IndexSagaInstance(context.Context, domain.SagaInstanceView) error { return nil }
func (NoopIndexer) DeleteSagaInstance(context.Context, string) error                 { return nil }

// ElasticClient implements Indexer on Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.Config
}

// NewElasticClient creates a client and checks the connection
func NewElasticClient(cfg config.Config) (*ElasticClient, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Elastic.URL},
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	res, err := client.Info()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Elasticsearch")
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.Errorf("Elasticsearch returned error: %s", res.String())
	}

	log.Info().Msg("Successfully connected to Elasticsearch")
	return &ElasticClient{client: client, config: cfg}, nil
}

// NewIndexer returns an Elasticsearch indexer when enabled and a no-op otherwise
func NewIndexer(cfg config.Config) (Indexer, error) {
	if !cfg.Elastic.Enabled {
		return NoopIndexer{}, nil
	}
	client, err := NewElasticClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureIndices(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

// EnsureIndices creates missing indices
func (c *ElasticClient) EnsureIndices(ctx context.Context) error {
	for _, index := range []string{EventsIndex, SagaInstancesIndex} {
		name := config.FormatIndex(c.config, index)

		res, err := c.client.Indices.Exists([]string{name}, c.client.Indices.Exists.WithContext(ctx))
		if err != nil {
			return errors.Wrapf(err, "failed to check index %s", name)
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			continue
		}

		log.Info().Str("index", name).Msg("Creating index")
		res, err = c.client.Indices.Create(name, c.client.Indices.Create.WithContext(ctx))
		if err != nil {
			return errors.Wrapf(err, "failed to create index %s", name)
		}
		if res.IsError() {
			body := res.String()
			res.Body.Close()
			return errors.Errorf("failed to create index %s: %s", name, body)
		}
		res.Body.Close()
	}
	return nil
}

func (c *ElasticClient) IndexEvent(ctx context.Context, view domain.EventView) error {
	doc := map[string]interface{}{
		"id":             view.ID,
		"aggregate_id":   view.AggregateID,
		"aggregate_type": view.AggregateType,
		"event_type":     view.EventType,
		"payload":        json.RawMessage(nonEmpty(view.Payload)),
		"timestamp":      view.Timestamp,
	}
	return c.index(ctx, EventsIndex, view.ID, doc)
}

func (c *ElasticClient) DeleteEvent(ctx context.Context, id string) error {
	return c.delete(ctx, EventsIndex, id)
}

func (c *ElasticClient) IndexSagaInstance(ctx context.Context, view domain.SagaInstanceView) error {
	doc := map[string]interface{}{
		"id":         view.ID,
		"name":       view.Name,
		"status":     view.Status,
		"start_date": view.StartDate,
		"end_date":   view.EndDate,
		"updated_at": view.UpdatedAt,
	}
	return c.index(ctx, SagaInstancesIndex, view.ID, doc)
}

func (c *ElasticClient) DeleteSagaInstance(ctx context.Context, id string) error {
	return c.delete(ctx, SagaInstancesIndex, id)
}

// SearchEvents runs a free-text query over the events index
func (c *ElasticClient) SearchEvents(ctx context.Context, text string, size int) ([]map[string]interface{}, error) {
	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"event_type", "aggregate_id", "aggregate_type"},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{config.FormatIndex(c.config, EventsIndex)},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.Errorf("Elasticsearch search error: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]map[string]interface{}, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

func (c *ElasticClient) index(ctx context.Context, index, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal document")
	}

	req := esapi.IndexRequest{
		Index:      config.FormatIndex(c.config, index),
		DocumentID: id,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Errorf("Elasticsearch index error: %s", res.String())
	}
	return nil
}

// delete ignores documents that are already gone
func (c *ElasticClient) delete(ctx context.Context, index, id string) error {
	req := esapi.DeleteRequest{
		Index:      config.FormatIndex(c.config, index),
		DocumentID: id,
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete request")
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return errors.Errorf("Elasticsearch delete error: %s", res.String())
	}
	return nil
}

func nonEmpty(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
