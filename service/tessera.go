// Package service wraps HTTP access to the Tessera ticketing API.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tessera-tui/config"
	"tessera-tui/model"
)

// Client issues requests against the configured base URL, attaching bearer
// auth where an endpoint requires it. Every failure is terminal for that
// attempt: there are no automatic retries, because reserve and purchase are
// not idempotent and the server is the sole arbiter of seat races.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

// APIError is returned when the API responds with a non-2xx status. Message
// carries the server's own error text verbatim when the payload is the
// usual {"error": "..."} shape.
type APIError struct {
	StatusCode int
	Status     string
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return "tessera api error"
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("tessera api error: %s", e.Status)
}

// IsNotFound reports whether the error represents a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsUnauthorized reports whether the error represents a 401 from the API.
// Callers clear the session and return to login when this holds.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// NewClient creates an API client for the configured base URL. A nil
// logger disables request logging.
func NewClient(cfg config.Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		log:        log,
	}
}

// ListEvents fetches events on or after the given date.
func (c *Client) ListEvents(ctx context.Context, afterDate time.Time) ([]model.Event, error) {
	endpoint := fmt.Sprintf("%s/events?afterDate=%s", c.baseURL, afterDate.Format(time.DateOnly))

	var events []model.Event
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetSeatMap fetches the seat layout with prices for one event. An event
// without seats surfaces as a not-found error.
func (c *Client) GetSeatMap(ctx context.Context, eventID int) (model.SeatMap, error) {
	endpoint := fmt.Sprintf("%s/events/%d/seats-with-prices", c.baseURL, eventID)

	var seats model.SeatMap
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "", nil, &seats); err != nil {
		return nil, err
	}
	if seats.IsEmpty() {
		return nil, &APIError{
			StatusCode: http.StatusNotFound,
			Status:     "404 Not Found",
			Endpoint:   endpoint,
			Message:    "no seats found for this event",
		}
	}
	return seats, nil
}

type seatsRequest struct {
	EventID int             `json:"event_id"`
	Seats   []model.SeatRef `json:"seats"`
}

// ReserveSeats requests a temporary server-side hold on the given seats.
func (c *Client) ReserveSeats(ctx context.Context, token string, eventID int, seats []model.SeatRef) error {
	if len(seats) == 0 {
		return errors.New("no seats to reserve")
	}
	endpoint := c.baseURL + "/reserve_seats"
	body := seatsRequest{EventID: eventID, Seats: seats}
	return c.doJSON(ctx, http.MethodPost, endpoint, token, body, nil)
}

// PurchaseSeats finalizes the purchase of the given seats.
func (c *Client) PurchaseSeats(ctx context.Context, token string, eventID int, seats []model.SeatRef) error {
	if len(seats) == 0 {
		return errors.New("no seats to purchase")
	}
	endpoint := c.baseURL + "/purchase_seats"
	body := seatsRequest{EventID: eventID, Seats: seats}
	return c.doJSON(ctx, http.MethodPost, endpoint, token, body, nil)
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.LoginResponse, error) {
	endpoint := c.baseURL + "/login"

	var resp model.LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, "", creds, &resp); err != nil {
		return model.LoginResponse{}, err
	}
	if resp.AccessToken == "" {
		return model.LoginResponse{}, fmt.Errorf("decode response from %s: missing access_token", endpoint)
	}
	return resp, nil
}

// CreateUser registers a new account.
func (c *Client) CreateUser(ctx context.Context, form model.SignupForm) error {
	endpoint := c.baseURL + "/users"
	return c.doJSON(ctx, http.MethodPost, endpoint, "", form, nil)
}

// GetProfile fetches the purchased tickets of the token's user.
func (c *Client) GetProfile(ctx context.Context, token string) ([]model.Ticket, error) {
	endpoint := c.baseURL + "/profile"

	var tickets []model.Ticket
	if err := c.doJSON(ctx, http.MethodGet, endpoint, token, nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *Client) doJSON(ctx context.Context, method string, endpoint string, token string, in any, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "endpoint", endpoint, "err", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	c.log.Debug("request done",
		"method", method, "endpoint", endpoint,
		"status", res.StatusCode, "duration", time.Since(start))

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return c.apiError(res, endpoint)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}

// apiError reads the error payload, preferring the server's own message.
func (c *Client) apiError(res *http.Response, endpoint string) *APIError {
	snippet, _ := io.ReadAll(io.LimitReader(res.Body, 8<<10))

	message := ""
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(snippet, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	} else {
		message = strings.TrimSpace(string(snippet))
	}

	return &APIError{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Endpoint:   endpoint,
		Message:    message,
	}
}
