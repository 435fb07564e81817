// Package machtms is a typed HTTP client for the machtms REST API. It
// mirrors the wire types rather than importing the server's internals
// so it can be vendored into other services unchanged.
package machtms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client calls the REST API. It is safe for concurrent use once the
// token is set.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets a bearer token obtained elsewhere, skipping Login.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New builds a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is the decoded error body of a failed request.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("machtms: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("machtms: request failed with status %d", e.StatusCode)
}

// TokenPair is the login response.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
	TokenType        string `json:"token_type"`
}

// Login exchanges credentials for a token pair and keeps the access
// token for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/token", map[string]string{
		"email":    email,
		"password": password,
	}, &pair)
	if err != nil {
		return nil, err
	}
	c.token = pair.AccessToken
	return &pair, nil
}

// Refresh trades a refresh token for a new pair and adopts the new
// access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	}, &pair)
	if err != nil {
		return nil, err
	}
	c.token = pair.AccessToken
	return &pair, nil
}

// Stop is one location a driver visits within a leg.
type Stop struct {
	ID          string `json:"id,omitempty"`
	StopNumber  int    `json:"stop_number"`
	AddressID   string `json:"address_id,omitempty"`
	Action      string `json:"action"`
	StartRange  string `json:"start_range"`
	EndRange    string `json:"end_range,omitempty"`
	PONumbers   string `json:"po_numbers,omitempty"`
	DriverNotes string `json:"driver_notes,omitempty"`
}

// Assignment binds a carrier and driver to a leg.
type Assignment struct {
	ID        string `json:"id,omitempty"`
	CarrierID string `json:"carrier_id"`
	DriverID  string `json:"driver_id"`
}

// Leg is one carrier-hauled segment of a load.
type Leg struct {
	ID          string       `json:"id,omitempty"`
	Stops       []Stop       `json:"stops"`
	Assignments []Assignment `json:"shipment_assignments,omitempty"`
}

// Customer is a directory entry on a load.
type Customer struct {
	ID          string `json:"id"`
	Name        string `json:"customer_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Load is a shipment with its nested structure.
type Load struct {
	ID              string    `json:"id"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	BOLNumber       string    `json:"bol_number,omitempty"`
	Status          string    `json:"status"`
	BillingStatus   string    `json:"billing_status"`
	TrailerType     string    `json:"trailer_type,omitempty"`
	Customer        *Customer `json:"customer,omitempty"`
	Legs            []Leg     `json:"legs"`
}

// StopRequest is one stop in a load creation request.
type StopRequest struct {
	StopNumber  int    `json:"stop_number"`
	AddressID   string `json:"address"`
	Action      string `json:"action"`
	StartRange  string `json:"start_range"`
	EndRange    string `json:"end_range,omitempty"`
	PONumbers   string `json:"po_numbers,omitempty"`
	DriverNotes string `json:"driver_notes,omitempty"`
}

// AssignmentRequest names the carrier and driver for a leg.
type AssignmentRequest struct {
	CarrierID string `json:"carrier"`
	DriverID  string `json:"driver"`
}

// LegRequest is one leg in a load creation request.
type LegRequest struct {
	Stops      []StopRequest      `json:"stops"`
	Assignment *AssignmentRequest `json:"shipment_assignment,omitempty"`
}

// LoadRequest creates a load with its nested legs and stops.
type LoadRequest struct {
	CustomerID      string       `json:"customer,omitempty"`
	ReferenceNumber string       `json:"reference_number,omitempty"`
	BOLNumber       string       `json:"bol_number,omitempty"`
	TrailerType     string       `json:"trailer_type,omitempty"`
	Legs            []LegRequest `json:"legs"`
}

// CreateLoad creates a load.
func (c *Client) CreateLoad(ctx context.Context, req LoadRequest) (*Load, error) {
	var load Load
	if err := c.do(ctx, http.MethodPost, "/api/v1/loads", req, &load); err != nil {
		return nil, err
	}
	return &load, nil
}

// GetLoad fetches one load with its legs and stops.
func (c *Client) GetLoad(ctx context.Context, id string) (*Load, error) {
	var load Load
	if err := c.do(ctx, http.MethodGet, "/api/v1/loads/"+url.PathEscape(id), nil, &load); err != nil {
		return nil, err
	}
	return &load, nil
}

// DeleteLoad removes a load and everything under it.
func (c *Client) DeleteLoad(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/loads/"+url.PathEscape(id), nil, nil)
}

// LoadPatch updates load header fields. Nil fields are left untouched.
type LoadPatch struct {
	ReferenceNumber *string `json:"reference_number,omitempty"`
	BOLNumber       *string `json:"bol_number,omitempty"`
	CustomerID      *string `json:"customer,omitempty"`
	Status          *string `json:"status,omitempty"`
	BillingStatus   *string `json:"billing_status,omitempty"`
	TrailerType     *string `json:"trailer_type,omitempty"`
}

// UpdateLoad applies a partial update to the load header.
func (c *Client) UpdateLoad(ctx context.Context, id string, patch LoadPatch) (*Load, error) {
	var load Load
	if err := c.do(ctx, http.MethodPatch, "/api/v1/loads/"+url.PathEscape(id), patch, &load); err != nil {
		return nil, err
	}
	return &load, nil
}

// ListLoadsOptions filters a load listing.
type ListLoadsOptions struct {
	Page            int
	PageSize        int
	ReferenceNumber string
	BOLNumber       string
	CustomerID      string
	TrailerType     string
	Statuses        []string
	BillingStatuses []string
}

// LoadPage is one page of a load listing.
type LoadPage struct {
	Results          []Load `json:"results"`
	Count            int    `json:"count"`
	CurrentPage      int    `json:"current_page"`
	PageSize         int    `json:"page_size"`
	CurrentPageRange []int  `json:"current_page_range"`
	HasNext          bool   `json:"has_next"`
}

// ListLoads returns one page of loads matching the filter.
func (c *Client) ListLoads(ctx context.Context, opts ListLoadsOptions) (*LoadPage, error) {
	query := url.Values{}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if opts.ReferenceNumber != "" {
		query.Set("reference_number", opts.ReferenceNumber)
	}
	if opts.BOLNumber != "" {
		query.Set("bol_number", opts.BOLNumber)
	}
	if opts.CustomerID != "" {
		query.Set("customer", opts.CustomerID)
	}
	if opts.TrailerType != "" {
		query.Set("trailer_type", opts.TrailerType)
	}
	for _, status := range opts.Statuses {
		query.Add("status", status)
	}
	for _, status := range opts.BillingStatuses {
		query.Add("billing_status", status)
	}

	path := "/api/v1/loads"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var page LoadPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// InvoiceLog tracks one invoice email through delivery.
type InvoiceLog struct {
	ID        string `json:"id"`
	LoadID    string `json:"load_id"`
	InvoiceID string `json:"invoice_id"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

// SendInvoice creates an invoice for the load and queues its delivery.
// The returned log can be polled with GetInvoiceLog.
func (c *Client) SendInvoice(ctx context.Context, loadID, amount string) (*InvoiceLog, error) {
	var log InvoiceLog
	err := c.do(ctx, http.MethodPost, "/api/v1/loads/"+url.PathEscape(loadID)+"/invoice",
		map[string]string{"amount": amount}, &log)
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// GetInvoiceLog returns the delivery state of one invoice email.
func (c *Client) GetInvoiceLog(ctx context.Context, id string) (*InvoiceLog, error) {
	var log InvoiceLog
	if err := c.do(ctx, http.MethodGet, "/api/v1/billing/invoice-logs/"+url.PathEscape(id), nil, &log); err != nil {
		return nil, err
	}
	return &log, nil
}

// Search runs a free-text query against one of the search indexes:
// loads, addresses, customers, or carriers.
func (c *Client) Search(ctx context.Context, index, q string, limit int) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set("q", q)
	if index != "" {
		query.Set("index", index)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Hits []json.RawMessage `json:"hits"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/search?"+query.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

// AgentChat sends one message to the dispatch assistant and returns
// its reply.
func (c *Client) AgentChat(ctx context.Context, message string) (string, error) {
	var out struct {
		Reply string `json:"reply"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/agent/chat",
		map[string]string{"message": message}, &out)
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

// Task is the state of one queued background job.
type Task struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Result    string `json:"result,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// GetTask returns the state of a background task.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("machtms: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("machtms: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("machtms: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("machtms: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error APIError `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("machtms: decode response: %w", err)
	}
	return nil
}
