// Package ghostfolio provides a client for the Ghostfolio API
package ghostfolio

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/interfaces"
	"github.com/bobmcallan/ghostwatch/internal/models"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client implements the GhostfolioClient interface
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *common.Logger
	limiter     *rate.Limiter

	mu        sync.Mutex
	authToken string
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithVerifySSL disables certificate verification when verify is false,
// for self-hosted instances with self-signed certificates.
func WithVerifySSL(verify bool) ClientOption {
	return func(c *Client) {
		if verify {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		c.httpClient.Transport = transport
	}
}

// NewClient creates a new Ghostfolio client for the instance at baseURL
func NewClient(baseURL, accessToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-success response from the API
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Ghostfolio API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// AuthError is returned when the access token is rejected
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("Ghostfolio authentication failed (status: %d)", e.StatusCode)
}

// Authenticate exchanges the access token for a session token
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"accessToken": c.accessToken})
	if err != nil {
		return fmt.Errorf("failed to encode auth payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/anonymous", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Ghostfolio authentication failed")
		return &AuthError{StatusCode: resp.StatusCode}
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	if auth.AuthToken == "" {
		return &AuthError{StatusCode: resp.StatusCode}
	}

	c.authToken = auth.AuthToken
	c.logger.Debug().Msg("Ghostfolio session token acquired")
	return nil
}

type authResponse struct {
	AuthToken string `json:"authToken"`
}

// token returns the current session token, authenticating first if there is none.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authToken == "" {
		if err := c.authenticateLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.authToken, nil
}

// reauthenticate replaces a rejected token. If another request already
// refreshed it, the newer token is reused without a second login.
func (c *Client) reauthenticate(ctx context.Context, rejected string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authToken != "" && c.authToken != rejected {
		return c.authToken, nil
	}
	c.authToken = ""
	if err := c.authenticateLocked(ctx); err != nil {
		return "", err
	}
	return c.authToken, nil
}

// get performs a rate-limited, authenticated GET. A 401 triggers exactly one
// re-authentication and one retry.
func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	status, body, err := c.do(ctx, path, query, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		c.logger.Info().Str("url", path).Msg("Ghostfolio token expired, re-authenticating")
		token, err = c.reauthenticate(ctx, token)
		if err != nil {
			return err
		}
		status, body, err = c.do(ctx, path, query, token)
		if err != nil {
			return err
		}
	}

	if status != http.StatusOK {
		return &APIError{
			StatusCode: status,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values, token string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", path).Msg("Ghostfolio API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// GetAccounts retrieves all accounts and the user's base currency
func (c *Client) GetAccounts(ctx context.Context) (*models.AccountList, error) {
	var resp accountsResponse
	if err := c.get(ctx, "/api/v1/account", nil, &resp); err != nil {
		return nil, err
	}

	list := &models.AccountList{Accounts: make([]models.Account, 0, len(resp.Accounts))}
	for _, a := range resp.Accounts {
		if a.ID == "" {
			continue
		}
		list.Accounts = append(list.Accounts, models.Account{
			ID:         a.ID,
			Name:       a.Name,
			Currency:   a.Currency,
			IsExcluded: a.IsExcluded,
		})
	}

	if resp.User != nil {
		list.BaseCurrency = resp.User.BaseCurrency
		if list.BaseCurrency == "" && resp.User.Settings != nil {
			list.BaseCurrency = resp.User.Settings.BaseCurrency
		}
	}

	return list, nil
}

type accountsResponse struct {
	Accounts []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Currency   string `json:"currency"`
		IsExcluded bool   `json:"isExcluded"`
	} `json:"accounts"`
	User *struct {
		BaseCurrency string `json:"baseCurrency"`
		Settings     *struct {
			BaseCurrency string `json:"baseCurrency"`
		} `json:"settings"`
	} `json:"user"`
}

// GetPortfolioPerformance retrieves all-time performance, for one account
// when accountID is set or the whole portfolio otherwise
func (c *Client) GetPortfolioPerformance(ctx context.Context, accountID string) (*models.Performance, error) {
	query := url.Values{"range": {"max"}}
	if accountID != "" {
		query.Set("accounts", accountID)
	}

	var resp performanceResponse
	if err := c.get(ctx, "/api/v2/portfolio/performance", query, &resp); err != nil {
		return nil, err
	}
	return &resp.Performance, nil
}

type performanceResponse struct {
	Performance models.Performance `json:"performance"`
}

// GetHoldings retrieves holdings for one account
func (c *Client) GetHoldings(ctx context.Context, accountID string) ([]models.Holding, error) {
	query := url.Values{}
	if accountID != "" {
		query.Set("accounts", accountID)
	}

	var resp holdingsResponse
	if err := c.get(ctx, "/api/v1/portfolio/holdings", query, &resp); err != nil {
		return nil, err
	}
	if resp.Holdings == nil {
		return []models.Holding{}, nil
	}
	return resp.Holdings, nil
}

type holdingsResponse struct {
	Holdings []models.Holding `json:"holdings"`
}

// GetWatchlist retrieves the watchlist. Depending on the server version the
// body is a bare list or an object with a "watchlist" or "items" list.
func (c *Client) GetWatchlist(ctx context.Context) ([]models.WatchlistItem, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/api/v1/watchlist", nil, &raw); err != nil {
		return nil, err
	}

	entries, err := decodeWatchlist(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode watchlist: %w", err)
	}

	items := make([]models.WatchlistItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, models.WatchlistItem{
			Symbol:                 e.Symbol,
			DataSource:             e.DataSource,
			Name:                   e.Name,
			MarketPrice:            e.MarketPrice,
			MarketDate:             e.MarketDate,
			MarketChange:           e.MarketChange,
			MarketChangePercentage: e.MarketChangePercentage,
			Currency:               e.Currency,
			AssetClass:             e.AssetClass,
			Trend50d:               e.Trend50d,
			Trend200d:              e.Trend200d,
		})
	}
	return items, nil
}

// watchlistEntry is one watchlist item as sent upstream. Price fields are
// optional and may later be replaced from market data.
type watchlistEntry struct {
	Symbol                 string   `json:"symbol"`
	DataSource             string   `json:"dataSource"`
	Name                   string   `json:"name"`
	MarketPrice            *float64 `json:"marketPrice"`
	MarketDate             string   `json:"marketDate"`
	MarketChange           *float64 `json:"marketChange"`
	MarketChangePercentage *float64 `json:"marketChangePercentage"`
	Currency               string   `json:"currency"`
	AssetClass             string   `json:"assetClass"`
	Trend50d               string   `json:"trend50d"`
	Trend200d              string   `json:"trend200d"`
}

func decodeWatchlist(raw json.RawMessage) ([]watchlistEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []watchlistEntry
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var wrapped struct {
		Watchlist []watchlistEntry `json:"watchlist"`
		Items     []watchlistEntry `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	if len(wrapped.Watchlist) > 0 {
		return wrapped.Watchlist, nil
	}
	return wrapped.Items, nil
}

// GetMarketData retrieves price history (oldest first) and profile for a symbol
func (c *Client) GetMarketData(ctx context.Context, dataSource, symbol string) (*models.MarketDataDetail, error) {
	path := fmt.Sprintf("/api/v1/market-data/%s/%s", url.PathEscape(dataSource), url.PathEscape(symbol))

	var resp marketDataResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	detail := &models.MarketDataDetail{
		MarketData: make([]models.MarketDataPoint, 0, len(resp.MarketData)),
	}
	for _, p := range resp.MarketData {
		point := models.MarketDataPoint{Date: p.Date}
		if p.MarketPrice != nil {
			point.MarketPrice = *p.MarketPrice
		}
		detail.MarketData = append(detail.MarketData, point)
	}
	if resp.AssetProfile != nil {
		detail.AssetProfile = *resp.AssetProfile
	}
	return detail, nil
}

type marketDataResponse struct {
	MarketData []struct {
		Date        string   `json:"date"`
		MarketPrice *float64 `json:"marketPrice"`
	} `json:"marketData"`
	AssetProfile *models.AssetProfile `json:"assetProfile"`
}

// Ensure Client implements GhostfolioClient
var _ interfaces.GhostfolioClient = (*Client)(nil)
