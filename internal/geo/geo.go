package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog"
	"smile-preview-backend/internal/session"
)

// Fallback used whenever the country cannot be determined or is not mapped.
const (
	DefaultCountry  = "US"
	DefaultDialCode = "+1"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geo: resolver unavailable")

var callingCodes = map[string]string{
	"US": "+1", "GB": "+44", "TR": "+90", "DE": "+49", "FR": "+33",
	"CA": "+1", "AU": "+61", "IT": "+39", "ES": "+34", "NL": "+31",
	"BE": "+32", "CH": "+41", "AT": "+43", "SE": "+46", "NO": "+47",
	"DK": "+45", "FI": "+358", "PL": "+48", "CZ": "+420", "GR": "+30",
	"PT": "+351", "IE": "+353", "NZ": "+64", "ZA": "+27", "BR": "+55",
	"MX": "+52", "AR": "+54", "CL": "+56", "CO": "+57", "PE": "+51",
	"IN": "+91", "CN": "+86", "JP": "+81", "KR": "+82", "SG": "+65",
	"MY": "+60", "TH": "+66", "ID": "+62", "PH": "+63", "VN": "+84",
	"AE": "+971", "SA": "+966", "IL": "+972", "EG": "+20", "RU": "+7",
}

// CallingCode maps an ISO country code to its phone prefix.
func CallingCode(iso string) (string, bool) {
	code, ok := callingCodes[strings.ToUpper(strings.TrimSpace(iso))]
	return code, ok
}

// CountryResolver resolves ISO country codes from IP addresses.
type CountryResolver interface {
	CountryCode(ctx context.Context, ip string) (string, error)
}

// Resolver provides country lookups backed by a MaxMind GeoIP2 database.
type Resolver struct {
	reader *geoip2.Reader
}

// NewResolver opens the GeoIP database at path. An empty path yields nil.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

func (r *Resolver) CountryCode(ctx context.Context, ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("geo: invalid ip %q", ip)
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geo: lookup country: %w", err)
	}
	if record == nil {
		return "", nil
	}
	return record.Country.IsoCode, nil
}

func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

// HTTPResolver asks an ipapi.co compatible service.
type HTTPResolver struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type ipapiResponse struct {
	CountryCode string `json:"country_code"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

func (r *HTTPResolver) CountryCode(ctx context.Context, ip string) (string, error) {
	url := r.baseURL + "/json/"
	if ip != "" {
		url = r.baseURL + "/" + ip + "/json/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("country lookup failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result ipapiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	if result.Error {
		return "", fmt.Errorf("country lookup failed: %s", result.Reason)
	}
	return result.CountryCode, nil
}

// Chain tries each resolver in order and returns the first non-empty answer.
type Chain []CountryResolver

func (c Chain) CountryCode(ctx context.Context, ip string) (string, error) {
	var errs []error
	for _, r := range c {
		code, err := r.CountryCode(ctx, ip)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if code != "" {
			return code, nil
		}
	}
	return "", errors.Join(errs...)
}

type Info struct {
	CountryCode string `json:"country_code"`
	DialCode    string `json:"dial_code"`
}

// Locator answers the visitor's dial code, caching it in visitor state.
type Locator struct {
	resolver CountryResolver
	store    session.Store
	logger   zerolog.Logger
}

func NewLocator(resolver CountryResolver, store session.Store, logger zerolog.Logger) *Locator {
	return &Locator{
		resolver: resolver,
		store:    store,
		logger:   logger.With().Str("component", "geo").Logger(),
	}
}

// Locate never fails; any lookup problem yields the default country.
func (l *Locator) Locate(ctx context.Context, visitorID, ip string) Info {
	if l.store != nil && visitorID != "" {
		if st, err := l.store.Load(ctx, visitorID); err == nil && st.CountryCode != "" && st.DialCode != "" {
			return Info{CountryCode: st.CountryCode, DialCode: st.DialCode}
		}
	}

	info := Info{CountryCode: DefaultCountry, DialCode: DefaultDialCode}
	if l.resolver == nil {
		return info
	}

	iso, err := l.resolver.CountryCode(ctx, ip)
	if err != nil {
		l.logger.Warn().Err(err).Str("ip", ip).Msg("country lookup failed, using default")
		return info
	}
	code, ok := CallingCode(iso)
	if !ok {
		return info
	}
	info = Info{CountryCode: strings.ToUpper(iso), DialCode: code}

	if l.store != nil && visitorID != "" {
		st, err := l.store.Load(ctx, visitorID)
		if err == nil {
			st.CountryCode = info.CountryCode
			st.DialCode = info.DialCode
			if err := l.store.Save(ctx, visitorID, st); err != nil {
				l.logger.Warn().Err(err).Msg("failed to cache visitor country")
			}
		}
	}
	return info
}
