// Package pharmvar fetches star-allele definitions from the PharmVar
// API and converts them into the nomenclature table consumed by the
// normalization engine.
package pharmvar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Config represents PharmVar API client configuration.
type Config struct {
	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	RetryCount int           `json:"retry_count"`
}

// Gene is one pharmacogene as reported by the PharmVar gene listing.
type Gene struct {
	Symbol        string `json:"geneSymbol"`
	PharmVarCount int    `json:"alleleCount,omitempty"`
}

// Allele is one star-allele definition from the PharmVar allele listing.
type Allele struct {
	AlleleName  string   `json:"alleleName"`
	PharmVarID  string   `json:"pvId,omitempty"`
	GeneSymbol  string   `json:"geneSymbol"`
	Function    string   `json:"function,omitempty"`
	LegacyNames []string `json:"legacyNames,omitempty"`
}

// Client calls the PharmVar REST API behind a circuit breaker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	retryCount int
	cache      *Cache
	logger     *logrus.Logger
}

// NewClient creates a new PharmVar API client. The cache is optional.
func NewClient(config Config, cache *Cache, logger *logrus.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://www.pharmvar.org/api-service/"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PharmVar",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    breaker,
		retryCount: config.RetryCount,
		cache:      cache,
		logger:     logger,
	}
}

// GetGenes returns all pharmacogenes known to PharmVar.
func (c *Client) GetGenes(ctx context.Context) ([]Gene, error) {
	var genes []Gene
	if err := c.getJSON(ctx, "/genes/list", &genes); err != nil {
		return nil, fmt.Errorf("fetching gene list: %w", err)
	}
	return genes, nil
}

// GetGeneAlleles returns all star-allele definitions for a gene.
func (c *Client) GetGeneAlleles(ctx context.Context, gene string) ([]Allele, error) {
	gene = strings.TrimSpace(strings.ToUpper(gene))
	if gene == "" {
		return nil, fmt.Errorf("gene symbol cannot be empty")
	}

	var alleles []Allele
	path := "/alleles/gene/" + url.PathEscape(gene)
	if err := c.getJSON(ctx, path, &alleles); err != nil {
		return nil, fmt.Errorf("fetching alleles for %s: %w", gene, err)
	}
	return alleles, nil
}

// getJSON performs a cached, breaker-protected GET and decodes the
// response body into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	if c.cache != nil {
		if body, found, err := c.cache.Get(ctx, path); err == nil && found {
			return json.Unmarshal(body, out)
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, path)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return fmt.Errorf("PharmVar service unavailable (circuit breaker open)")
		}
		return err
	}

	body := result.([]byte)
	if c.cache != nil {
		if cacheErr := c.cache.Set(ctx, path, body, 0); cacheErr != nil {
			c.logger.WithError(cacheErr).Warn("Failed to cache PharmVar response")
		}
	}

	return json.Unmarshal(body, out)
}

// fetch performs the GET with retries on transient failures.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.retryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		body, err := c.doRequest(ctx, path)
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.logger.WithError(err).WithFields(logrus.Fields{
			"path":    path,
			"attempt": attempt + 1,
		}).Debug("PharmVar request failed")
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retryCount, lastErr)
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// BreakerState returns the current circuit breaker state, for health
// reporting.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}
