package handlers

import (
	"net/http"
	"strings"
)

const maxDomainsPerCheck = 5

type domainAvailabilityResponse struct {
	Domain     string `json:"domain"`
	Available  bool   `json:"available"`
	PriceCents int64  `json:"price_cents"`
}

// CheckDomains answers availability and resale pricing for up to five
// candidate domains in one registrar round trip.
func (a *App) CheckDomains(w http.ResponseWriter, r *http.Request) {
	if a.Domains == nil {
		a.jsonError(w, http.StatusServiceUnavailable, "registrar not configured")
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("domains"))
	if raw == "" {
		a.jsonError(w, http.StatusBadRequest, "domains query parameter is required")
		return
	}

	var names []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if !strings.Contains(name, ".") {
			a.jsonError(w, http.StatusBadRequest, "invalid domain: "+name)
			return
		}
		names = append(names, name)
	}
	if len(names) == 0 || len(names) > maxDomainsPerCheck {
		a.jsonError(w, http.StatusBadRequest, "provide between 1 and 5 domains")
		return
	}

	results, err := a.Domains.CheckAvailability(r.Context(), names)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: domain availability check failed")
		a.jsonError(w, http.StatusBadGateway, "registrar unavailable")
		return
	}

	out := make([]domainAvailabilityResponse, 0, len(results))
	for _, result := range results {
		out = append(out, domainAvailabilityResponse{
			Domain:     result.Domain,
			Available:  result.Available,
			PriceCents: result.PriceCents,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"results": out})
}
