package emby

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	showhttp "github.com/kasuboski/showsync/pkg/http"
	"github.com/kasuboski/showsync/pkg/pagination"
)

const (
	DefaultClientName = "showsync"
	DefaultDevice     = "showsync-cli"
	Version           = "1.0.0"

	TypeSeries = "Series"
	TypeMovie  = "Movie"
)

var (
	ErrUnauthorized     = errors.New("emby rejected the credentials")
	ErrNotAuthenticated = errors.New("emby client has no access token")
)

// Credentials identify an authenticated emby user
type Credentials struct {
	Token  string
	UserID string
}

// Item is a series or movie in the library
type Item struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Path string `json:"Path"`
	Type string `json:"Type"`
}

type Season struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	IndexNumber int    `json:"IndexNumber"`
}

type Episode struct {
	ID                string   `json:"Id"`
	Name              string   `json:"Name"`
	IndexNumber       int      `json:"IndexNumber"`
	ParentIndexNumber int      `json:"ParentIndexNumber"`
	UserData          UserData `json:"UserData"`
}

type UserData struct {
	Played bool `json:"Played"`
}

// Watched reports whether the current user has played the episode
func (e Episode) Watched() bool {
	return e.UserData.Played
}

type itemsResponse[T any] struct {
	Items            []T `json:"Items"`
	TotalRecordCount int `json:"TotalRecordCount"`
}

type authRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type authResponse struct {
	AccessToken string `json:"AccessToken"`
	User        struct {
		ID string `json:"Id"`
	} `json:"User"`
}

// Client talks to the emby REST api
type Client struct {
	baseURL    string
	client     showhttp.HTTPClient
	creds      Credentials
	clientName string
	device     string
	deviceID   string
	pageSize   int
}

// Option is a function that can be used to configure a Client
type Option func(*Client)

// WithHTTPClient sets the http client used for requests
func WithHTTPClient(client showhttp.HTTPClient) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithCredentials reuses a token from an earlier login
func WithCredentials(creds Credentials) Option {
	return func(c *Client) {
		c.creds = creds
	}
}

// WithDevice sets how this client identifies itself to the server
func WithDevice(clientName, device string) Option {
	return func(c *Client) {
		if clientName != "" {
			c.clientName = clientName
		}
		if device != "" {
			c.device = device
		}
	}
}

// WithPageSize sets how many items are fetched per request
func WithPageSize(size int) Option {
	return func(c *Client) {
		c.pageSize = size
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid emby url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid emby url %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		client:     showhttp.NewRetryClient(),
		clientName: DefaultClientName,
		device:     DefaultDevice,
		deviceID:   uuid.NewString(),
		pageSize:   pagination.DefaultPageSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Credentials returns the token and user in use
func (c *Client) Credentials() Credentials {
	return c.creds
}

// Authenticate logs in by name and keeps the returned token for later calls
func (c *Client) Authenticate(ctx context.Context, username, password string) (Credentials, error) {
	body, err := json.Marshal(authRequest{Username: username, Pw: password})
	if err != nil {
		return Credentials{}, err
	}

	var resp authResponse
	err = c.do(ctx, http.MethodPost, "/Users/AuthenticateByName", nil, body, &resp)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to authenticate %s: %w", username, err)
	}
	if resp.AccessToken == "" || resp.User.ID == "" {
		return Credentials{}, fmt.Errorf("%w: empty token in login response", ErrUnauthorized)
	}

	c.creds = Credentials{Token: resp.AccessToken, UserID: resp.User.ID}
	return c.creds, nil
}

// Items lists every series and movie visible to the user
func (c *Client) Items(ctx context.Context) ([]Item, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	var items []Item
	page := pagination.First(c.pageSize)
	for {
		offset, limit := page.CalculateOffsetLimit()
		q := url.Values{}
		q.Set("Recursive", "true")
		q.Set("IncludeItemTypes", TypeSeries+","+TypeMovie)
		q.Set("Fields", "Path")
		q.Set("StartIndex", strconv.Itoa(offset))
		q.Set("Limit", strconv.Itoa(limit))

		var resp itemsResponse[Item]
		if err := c.do(ctx, http.MethodGet, "/Users/"+url.PathEscape(c.creds.UserID)+"/Items", q, nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to list items: %w", err)
		}
		items = append(items, resp.Items...)

		meta := page.BuildMeta(resp.TotalRecordCount)
		if !meta.HasNext() || len(resp.Items) == 0 {
			break
		}
		page = page.Next()
	}

	return items, nil
}

// Seasons lists the seasons of a series
func (c *Client) Seasons(ctx context.Context, seriesID string) ([]Season, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("UserId", c.creds.UserID)

	var resp itemsResponse[Season]
	if err := c.do(ctx, http.MethodGet, "/Shows/"+url.PathEscape(seriesID)+"/Seasons", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list seasons of %s: %w", seriesID, err)
	}
	return resp.Items, nil
}

// Episodes lists the episodes of one season of a series
func (c *Client) Episodes(ctx context.Context, seriesID, seasonID string) ([]Episode, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("UserId", c.creds.UserID)
	q.Set("SeasonId", seasonID)
	q.Set("Fields", "UserData")

	var resp itemsResponse[Episode]
	if err := c.do(ctx, http.MethodGet, "/Shows/"+url.PathEscape(seriesID)+"/Episodes", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list episodes of %s: %w", seriesID, err)
	}
	return resp.Items, nil
}

// MarkPlayed marks an episode, season or whole series as watched
func (c *Client) MarkPlayed(ctx context.Context, itemID string) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	p := "/Users/" + url.PathEscape(c.creds.UserID) + "/PlayedItems/" + url.PathEscape(itemID)
	if err := c.do(ctx, http.MethodPost, p, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to mark %s played: %w", itemID, err)
	}
	return nil
}

func (c *Client) requireAuth() error {
	if c.creds.Token == "" || c.creds.UserID == "" {
		return ErrNotAuthenticated
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, p string, q url.Values, body []byte, out any) error {
	u := c.baseURL + p
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Emby-Authorization", c.authorization())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds.Token != "" {
		req.Header.Set("X-Emby-Token", c.creds.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorization() string {
	return fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		c.clientName, c.device, c.deviceID, Version)
}
