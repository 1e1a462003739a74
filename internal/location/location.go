package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	lookupURL     = "http://ip-api.com/json/?fields=status,lat,lon,city,regionName,country,timezone"
	lookupTimeout = 5 * time.Second
)

// Context is a resolved approximate location
type Context struct {
	Latitude  float64
	Longitude float64
	Region    string
	Timezone  string
}

// Resolver looks up the machine's approximate coordinates from its public
// IP. Every failure path returns nil; callers fall back to persisted or
// manual coordinates.
type Resolver struct {
	client *http.Client
	logger *slog.Logger
}

// NewResolver creates an IP-based location resolver
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		client: &http.Client{Timeout: lookupTimeout},
		logger: logger,
	}
}

type lookupResponse struct {
	Status     string  `json:"status"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	City       string  `json:"city"`
	RegionName string  `json:"regionName"`
	Country    string  `json:"country"`
	Timezone   string  `json:"timezone"`
}

// Resolve performs one lookup. nil means the location could not be
// determined; this is an expected condition, not an error.
func (r *Resolver) Resolve(ctx context.Context) *Context {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("Location lookup failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("Location lookup rejected", "status", resp.StatusCode)
		return nil
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		r.logger.Debug("Location response unreadable", "error", err)
		return nil
	}
	if payload.Status != "success" {
		return nil
	}

	return &Context{
		Latitude:  payload.Lat,
		Longitude: payload.Lon,
		Region:    buildRegionLabel(payload.City, payload.RegionName, payload.Country),
		Timezone:  payload.Timezone,
	}
}

// buildRegionLabel joins city/region/country, skipping blanks and repeats
func buildRegionLabel(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		text := strings.TrimSpace(part)
		if text == "" {
			continue
		}
		duplicate := false
		for _, existing := range kept {
			if existing == text {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, text)
		}
	}
	if len(kept) == 0 {
		return "Location unavailable"
	}
	return strings.Join(kept, ", ")
}

// String formats the context for status display
func (c *Context) String() string {
	if c == nil {
		return "unresolved"
	}
	return fmt.Sprintf("%s (%.4f, %.4f)", c.Region, c.Latitude, c.Longitude)
}
