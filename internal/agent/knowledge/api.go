package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultAPITimeout = 3 * time.Second
	maxAPIResponse    = 1 << 20
)

// APISource posts the structured query as JSON and expects either an array
// of items or an object with an "items" array.
type APISource struct {
	id       string
	endpoint string
	headers  map[string]string
	client   *http.Client
}

func NewAPISource(id, endpoint string, headers map[string]string, timeout time.Duration) *APISource {
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}
	return &APISource{
		id:       id,
		endpoint: endpoint,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *APISource) ID() string   { return s.id }
func (s *APISource) Type() string { return SourceAPI }

func (s *APISource) Search(ctx context.Context, q StructuredQuery) ([]Item, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("knowledge api %s: status %d", s.id, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponse))
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			Items []Item `json:"items"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode knowledge api response: %w", err)
		}
		items = wrapped.Items
	}
	for i := range items {
		items[i].Source = s.id
		items[i].Relevance = clamp01(items[i].Relevance)
		if items[i].Type == "" {
			items[i].Type = SourceAPI
		}
	}
	return items, nil
}

var _ Source = (*APISource)(nil)
