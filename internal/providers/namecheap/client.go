package namecheap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hostforge/internal/infra"
)

// ErrMissingCredentials indicates the client was configured without an API
// user or key.
var ErrMissingCredentials = errors.New("namecheap: api user and key are required")

// hostingNameservers is where purchased domains are pointed so the hosting
// platform can verify and serve them.
const hostingNameservers = "ns1.vercel-dns.com,ns2.vercel-dns.com"

// Options configures the Namecheap registrar client.
type Options struct {
	APIUser        string
	APIKey         string
	ClientIP       string
	BaseURL        string
	BillingContact Contact
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Contact is the registrant/billing identity attached to purchases. The
// registrar requires a full postal contact on every domain.
type Contact struct {
	FirstName string
	LastName  string
	Address1  string
	City      string
	State     string
	Zip       string
	Country   string
	Phone     string
	Email     string
}

func defaultContact() Contact {
	return Contact{
		FirstName: "Hostforge",
		LastName:  "Platform",
		Address1:  "123 Main St",
		City:      "San Francisco",
		State:     "CA",
		Zip:       "94105",
		Country:   "US",
		Phone:     "+1.4155551234",
		Email:     "billing@hostforge.app",
	}
}

// Client performs calls to the Namecheap XML API. It satisfies the engine's
// registrar contract. Resale prices carry a 1.3x markup with a $10 floor.
type Client struct {
	apiUser    string
	apiKey     string
	clientIP   string
	baseURL    string
	contact    Contact
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIUser) == "" || strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingCredentials
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.namecheap.com/xml.response"
	}
	contact := opts.BillingContact
	if contact.Email == "" {
		contact = defaultContact()
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		apiUser:    strings.TrimSpace(opts.APIUser),
		apiKey:     strings.TrimSpace(opts.APIKey),
		clientIP:   strings.TrimSpace(opts.ClientIP),
		baseURL:    baseURL,
		contact:    contact,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type apiResponse struct {
	Status string `xml:"Status,attr"`
	Errors struct {
		Error []struct {
			Number  string `xml:"Number,attr"`
			Message string `xml:",chardata"`
		} `xml:"Error"`
	} `xml:"Errors"`
	CommandResponse struct {
		DomainCheckResults []domainCheckResult `xml:"DomainCheckResult"`
		DomainGetInfo      struct {
			Status string `xml:"Status,attr"`
		} `xml:"DomainGetInfoResult"`
	} `xml:"CommandResponse"`
}

type domainCheckResult struct {
	Domain                   string `xml:"Domain,attr"`
	Available                bool   `xml:"Available,attr"`
	IsPremiumName            bool   `xml:"IsPremiumName,attr"`
	PremiumRegistrationPrice string `xml:"PremiumRegistrationPrice,attr"`
	RegularRegistrationPrice string `xml:"RegularRegistrationPrice,attr"`
}

// call issues one API command and decodes the XML envelope, surfacing
// registrar-reported errors.
func (c *Client) call(ctx context.Context, method, command string, params url.Values) (*apiResponse, error) {
	query := url.Values{
		"ApiUser":  {c.apiUser},
		"ApiKey":   {c.apiKey},
		"UserName": {c.apiUser},
		"ClientIp": {c.clientIP},
		"Command":  {command},
	}
	for key, values := range params {
		query[key] = values
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("namecheap: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("namecheap: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("namecheap: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("namecheap: %s status %d", command, resp.StatusCode)
	}

	var decoded apiResponse
	if err := xml.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("namecheap: decode response: %w", err)
	}
	if !strings.EqualFold(decoded.Status, "OK") {
		if len(decoded.Errors.Error) > 0 {
			first := decoded.Errors.Error[0]
			return nil, fmt.Errorf("namecheap: %s (%s)", strings.TrimSpace(first.Message), first.Number)
		}
		return nil, fmt.Errorf("namecheap: %s returned status %s", command, decoded.Status)
	}
	return &decoded, nil
}

// splitDomain separates the second-level and top-level labels the API wants
// as distinct parameters.
func splitDomain(domainName string) (sld, tld string) {
	parts := strings.SplitN(domainName, ".", 2)
	if len(parts) != 2 {
		return domainName, ""
	}
	return parts[0], parts[1]
}

// applyMarkup converts a registrar price into the resale price: 1.3x,
// rounded up, never below 1000 cents.
func applyMarkup(registrarCents int64) int64 {
	marked := int64(math.Ceil(float64(registrarCents) * 1.3))
	if marked < 1000 {
		return 1000
	}
	return marked
}

// parsePriceCents parses a registrar dollar amount ("12.98") into cents,
// falling back to 1000 when the attribute is absent or malformed.
func parsePriceCents(price string) int64 {
	dollars, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
	if err != nil || dollars <= 0 {
		return 1000
	}
	return int64(math.Round(dollars * 100))
}

// Availability is one availability check result at resale price.
type Availability struct {
	Domain     string
	Available  bool
	PriceCents int64
}

// CheckAvailability queries the registrar for availability and resale
// pricing of each domain.
func (c *Client) CheckAvailability(ctx context.Context, domainNames []string) ([]Availability, error) {
	resp, err := c.call(ctx, http.MethodGet, "namecheap.domains.check", url.Values{
		"DomainList": {strings.Join(domainNames, ",")},
	})
	if err != nil {
		return nil, err
	}

	byName := make(map[string]domainCheckResult, len(resp.CommandResponse.DomainCheckResults))
	for _, result := range resp.CommandResponse.DomainCheckResults {
		byName[strings.ToLower(result.Domain)] = result
	}

	results := make([]Availability, 0, len(domainNames))
	for _, name := range domainNames {
		result := byName[strings.ToLower(name)]
		price := result.RegularRegistrationPrice
		if result.IsPremiumName {
			price = result.PremiumRegistrationPrice
		}
		results = append(results, Availability{
			Domain:     name,
			Available:  result.Available,
			PriceCents: applyMarkup(parsePriceCents(price)),
		})
	}
	return results, nil
}

// PriceCents returns the resale registration price for one domain.
func (c *Client) PriceCents(ctx context.Context, domainName string) (int64, error) {
	results, err := c.CheckAvailability(ctx, []string{domainName})
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return applyMarkup(1000), nil
	}
	return results[0].PriceCents, nil
}

// Purchase registers a domain for the given number of years under the
// platform's billing contact.
func (c *Client) Purchase(ctx context.Context, domainName string, years int) error {
	params := url.Values{
		"DomainName": {domainName},
		"Years":      {strconv.Itoa(years)},
	}
	for _, role := range []string{"Registrant", "Tech", "Admin", "AuxBilling"} {
		params.Set(role+"FirstName", c.contact.FirstName)
		params.Set(role+"LastName", c.contact.LastName)
		params.Set(role+"Address1", c.contact.Address1)
		params.Set(role+"City", c.contact.City)
		params.Set(role+"StateProvince", c.contact.State)
		params.Set(role+"PostalCode", c.contact.Zip)
		params.Set(role+"Country", c.contact.Country)
		params.Set(role+"Phone", c.contact.Phone)
		params.Set(role+"EmailAddress", c.contact.Email)
	}
	if _, err := c.call(ctx, http.MethodPost, "namecheap.domains.create", params); err != nil {
		return err
	}
	c.logger.Info().Str("domain", domainName).Int("years", years).Msg("namecheap: domain purchased")
	return nil
}

// PointDNSToHosting switches the domain's nameservers to the hosting
// platform's DNS.
func (c *Client) PointDNSToHosting(ctx context.Context, domainName string) error {
	sld, tld := splitDomain(domainName)
	_, err := c.call(ctx, http.MethodPost, "namecheap.domains.dns.setCustom", url.Values{
		"SLD":         {sld},
		"TLD":         {tld},
		"Nameservers": {hostingNameservers},
	})
	return err
}

// Status returns the registrar's status string for a domain.
func (c *Client) Status(ctx context.Context, domainName string) (string, error) {
	sld, tld := splitDomain(domainName)
	resp, err := c.call(ctx, http.MethodGet, "namecheap.domains.getInfo", url.Values{
		"DomainName": {domainName},
		"SLD":        {sld},
		"TLD":        {tld},
	})
	if err != nil {
		return "", err
	}
	status := resp.CommandResponse.DomainGetInfo.Status
	if status == "" {
		status = "unknown"
	}
	return status, nil
}

// Renew extends a registration by one year.
func (c *Client) Renew(ctx context.Context, domainName string) error {
	sld, tld := splitDomain(domainName)
	if _, err := c.call(ctx, http.MethodPost, "namecheap.domains.renew", url.Values{
		"DomainName": {domainName},
		"Years":      {"1"},
		"SLD":        {sld},
		"TLD":        {tld},
	}); err != nil {
		return err
	}
	c.logger.Info().Str("domain", domainName).Msg("namecheap: domain renewed")
	return nil
}
