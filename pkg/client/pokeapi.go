package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
	"github.com/Sternrassler/pokeapi-client/pkg/pagination"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	pokeapiPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_pages_total",
		Help: "Total hydrated list pages by outcome",
	}, []string{"outcome"})

	pokeapiPageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pokeapi_page_duration_seconds",
		Help:    "Time to fetch and hydrate one list page",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

// Wire types. Only the fields the browser needs are decoded.

type namedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type pokemonList struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []namedResource `json:"results"`
}

type pokemonDetail struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Sprites struct {
		FrontDefault *string `json:"front_default"`
	} `json:"sprites"`
	Types []struct {
		Slot int           `json:"slot"`
		Type namedResource `json:"type"`
	} `json:"types"`
}

type pokemonSpecies struct {
	FlavorTextEntries []struct {
		FlavorText string        `json:"flavor_text"`
		Language   namedResource `json:"language"`
		Version    namedResource `json:"version"`
	} `json:"flavor_text_entries"`
}

var blurbReplacer = strings.NewReplacer("\n", " ", "\f", " ")

// FetchPage fetches one list page and hydrates every entry with its detail
// and species data. Records come back sorted by ID. Any failure fails the
// whole page with a *catalog.Error.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) (catalog.Page, error) {
	if offset < 0 || limit < 1 || limit > c.config.MaxPageLimit {
		return catalog.Page{}, catalog.NewError(catalog.KindInvalidURL,
			fmt.Errorf("offset %d and limit %d out of range (limit 1..%d)", offset, limit, c.config.MaxPageLimit))
	}

	logger := c.logger.With().
		Str("fetch_id", uuid.NewString()).
		Int("offset", offset).
		Int("limit", limit).
		Logger()

	start := time.Now()
	defer func() {
		pokeapiPageDuration.Observe(time.Since(start).Seconds())
	}()

	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	var list pokemonList
	if err := c.getJSON(ctx, c.endpointURL("pokemon", query), &list); err != nil {
		logger.Error().Err(err).Msg("List fetch failed")
		pokeapiPagesTotal.WithLabelValues("error").Inc()
		return catalog.Page{}, err
	}

	logger.Debug().
		Int("entries", len(list.Results)).
		Int("count", list.Count).
		Msg("List fetched, hydrating entries")

	records, err := pagination.FetchAll(ctx, pagination.Config{
		MaxConcurrency: c.config.MaxConcurrency,
		Timeout:        c.config.ItemTimeout,
	}, list.Results, c.fetchRecord)
	if err != nil {
		err = toCatalogError(err)
		logger.Error().Err(err).Msg("Entry hydration failed")
		pokeapiPagesTotal.WithLabelValues("error").Inc()
		return catalog.Page{}, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	page := catalog.Page{
		Records:    records,
		NextOffset: parseNextOffset(list.Next),
		TotalCount: list.Count,
	}

	logger.Info().
		Int("records", len(records)).
		Int("total_count", page.TotalCount).
		Bool("has_next", page.HasNext()).
		Dur("duration", time.Since(start)).
		Msg("Page fetched")
	pokeapiPagesTotal.WithLabelValues("ok").Inc()

	return page, nil
}

// fetchRecord hydrates one list entry: detail first, then species by the detail's ID.
func (c *Client) fetchRecord(ctx context.Context, entry namedResource) (catalog.Record, error) {
	var detail pokemonDetail
	if err := c.getJSON(ctx, entry.URL, &detail); err != nil {
		return catalog.Record{}, err
	}

	var species pokemonSpecies
	if err := c.getJSON(ctx, c.endpointURL(fmt.Sprintf("pokemon-species/%d", detail.ID), nil), &species); err != nil {
		return catalog.Record{}, err
	}

	record := catalog.Record{
		ID:    detail.ID,
		Name:  titleCase(detail.Name),
		Types: make([]string, 0, len(detail.Types)),
	}

	sort.SliceStable(detail.Types, func(i, j int) bool { return detail.Types[i].Slot < detail.Types[j].Slot })
	for _, t := range detail.Types {
		record.Types = append(record.Types, titleCase(t.Type.Name))
	}

	if detail.Sprites.FrontDefault != nil {
		record.ImageURL = *detail.Sprites.FrontDefault
	}

	for _, flavor := range species.FlavorTextEntries {
		if flavor.Language.Name == "en" {
			record.Blurb = normalizeBlurb(flavor.FlavorText)
			break
		}
	}

	return record, nil
}

// titleCase capitalizes a name like "mr-mime" into "Mr-Mime".
// Casers are stateful, so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// normalizeBlurb replaces line and form feeds with spaces and trims.
func normalizeBlurb(s string) string {
	return strings.TrimSpace(blurbReplacer.Replace(s))
}

// parseNextOffset reads the offset query parameter of a "next" URL.
func parseNextOffset(next *string) *int {
	if next == nil || *next == "" {
		return nil
	}
	u, err := url.Parse(*next)
	if err != nil {
		return nil
	}
	n, err := strconv.Atoi(u.Query().Get("offset"))
	if err != nil {
		return nil
	}
	return catalog.Offset(n)
}

// endpointURL joins a resource path onto the base URL.
func (c *Client) endpointURL(resource string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Trim(resource, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

// getJSON fetches rawURL through Do and decodes the body into dst,
// translating every failure into a *catalog.Error.
func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("not an absolute URL: %q", rawURL)
		}
		return catalog.NewError(catalog.KindInvalidURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return catalog.NewError(catalog.KindInvalidURL, err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return toCatalogError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return catalog.StatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return toCatalogError(err)
	}
	if len(body) == 0 {
		return catalog.NewError(catalog.KindNoData, nil)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return catalog.NewError(catalog.KindDecodingFailed, err)
	}

	return nil
}

var _ catalog.Fetcher = (*Client)(nil)
