package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/logger"
)

// Source describes a JSON endpoint that publishes one rate. Field is a dotted
// path to the rate inside the response body.
type Source struct {
	Name  string
	URL   string
	Field string
}

// Default public sources.
const (
	DefaultVESURL = "https://ve.dolarapi.com/v1/dolares/oficial"
	DefaultEURURL = "https://api.frankfurter.app/latest?from=EUR&to=USD"
	DefaultCOPURL = "https://open.er-api.com/v6/latest/COP"
)

// DefaultSources returns the built-in source per pair.
func DefaultSources() map[domain.Pair]Source {
	return map[domain.Pair]Source{
		domain.PairVESUSD: {Name: "DolarAPI", URL: DefaultVESURL, Field: "promedio"},
		domain.PairEURUSD: {Name: "Frankfurter", URL: DefaultEURURL, Field: "rates.USD"},
		domain.PairCOPUSD: {Name: "ExchangeRate-API", URL: DefaultCOPURL, Field: "rates.USD"},
	}
}

// HTTPProvider reads rates from public JSON APIs.
type HTTPProvider struct {
	client  *http.Client
	sources map[domain.Pair]Source
	now     func() time.Time
}

// NewHTTPProvider creates a provider. A nil client uses http.DefaultClient;
// missing sources are filled from DefaultSources.
func NewHTTPProvider(client *http.Client, sources map[domain.Pair]Source) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	merged := DefaultSources()
	for pair, src := range sources {
		def := merged[pair]
		if src.Name == "" {
			src.Name = def.Name
		}
		if src.URL == "" {
			src.URL = def.URL
		}
		if src.Field == "" {
			src.Field = def.Field
		}
		merged[pair] = src
	}
	return &HTTPProvider{client: client, sources: merged, now: time.Now}
}

// Quote implements Provider.
func (p *HTTPProvider) Quote(ctx context.Context, pair domain.Pair) domain.RateQuote {
	log := logger.FromContext(ctx)
	q := domain.RateQuote{Pair: pair, FetchedAt: p.now()}

	src, ok := p.sources[pair]
	if !ok {
		q.Source = "unconfigured"
		return q
	}
	q.Source = src.Name

	rate, err := p.fetch(ctx, src)
	if err != nil {
		log.Warn().Err(err).Str("pair", string(pair)).Str("source", src.Name).Msg("Rate source failed")
		return q
	}
	q.Rate = rate
	q.Success = rate > 0
	return q
}

func (p *HTTPProvider) fetch(ctx context.Context, src Source) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("fetch: read body: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("fetch: decode body: %w", err)
	}
	return lookupRate(doc, src.Field)
}

func lookupRate(doc map[string]any, path string) (float64, error) {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("lookupRate: %q is not an object", key)
		}
		if cur, ok = obj[key]; !ok {
			return 0, fmt.Errorf("lookupRate: field %q missing", path)
		}
	}
	switch v := cur.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("lookupRate: field %q: %w", path, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("lookupRate: field %q has unexpected type %T", path, cur)
}
