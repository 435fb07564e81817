package agent

import (
	"context"
	"encoding/json"
	"time"

	"machtms/internal/llm"
	"machtms/internal/tms"
)

// defaultRecencyWindow bounds recent-address suggestions when the
// model does not ask for a specific range.
const defaultRecencyWindow = 30 * 24 * time.Hour

// AddressTools exposes address search, dedupe, and recency suggestions.
func AddressTools(svc *tms.Service) Toolkit {
	return Toolkit{
		Name: "addresses",
		Tools: []Tool{
			{
				Def: llm.Tool{
					Name:        "search_addresses",
					Description: "Search addresses by street prefix.",
					Parameters: json.RawMessage(`{
						"type": "object",
						"properties": {
							"query": {"type": "string", "description": "Street prefix to match."},
							"limit": {"type": "integer"}
						},
						"required": ["query"]
					}`),
				},
				Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
					org, err := orgFrom(ctx)
					if err != nil {
						return "", err
					}
					var params struct {
						Query string `json:"query"`
						Limit int    `json:"limit"`
					}
					if err := decodeArgs(args, &params); err != nil {
						return "", err
					}
					addresses, err := svc.ListAddresses(ctx, org, params.Query, params.Limit)
					if err != nil {
						return "", err
					}
					return toolResult(addresses)
				},
			},
			{
				Def: llm.Tool{
					Name:        "ensure_address",
					Description: "Find the address matching street, city, state, and zip exactly, creating it when absent. Returns the address with its id.",
					Parameters: json.RawMessage(`{
						"type": "object",
						"properties": {
							"street": {"type": "string"},
							"city": {"type": "string"},
							"state": {"type": "string"},
							"zip_code": {"type": "string"}
						},
						"required": ["street"]
					}`),
				},
				Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
					org, err := orgFrom(ctx)
					if err != nil {
						return "", err
					}
					var params struct {
						Street  string `json:"street"`
						City    string `json:"city"`
						State   string `json:"state"`
						ZipCode string `json:"zip_code"`
					}
					if err := decodeArgs(args, &params); err != nil {
						return "", err
					}
					address, err := svc.EnsureAddress(ctx, org, tms.Address{
						Street:  params.Street,
						City:    params.City,
						State:   params.State,
						ZipCode: params.ZipCode,
					})
					if err != nil {
						return "", err
					}
					return toolResult(address)
				},
			},
			{
				Def: llm.Tool{
					Name:        "recent_addresses",
					Description: "Addresses used recently on stops, most recent first. Pass customer_id to restrict to one customer's loads.",
					Parameters: json.RawMessage(`{
						"type": "object",
						"properties": {
							"customer_id": {"type": "string"},
							"days": {"type": "integer", "description": "Lookback window in days. Defaults to 30."},
							"limit": {"type": "integer"}
						}
					}`),
				},
				Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
					org, err := orgFrom(ctx)
					if err != nil {
						return "", err
					}
					var params struct {
						CustomerID string `json:"customer_id"`
						Days       int    `json:"days"`
						Limit      int    `json:"limit"`
					}
					if err := decodeArgs(args, &params); err != nil {
						return "", err
					}
					window := defaultRecencyWindow
					if params.Days > 0 {
						window = time.Duration(params.Days) * 24 * time.Hour
					}
					addresses, err := svc.RecentAddresses(ctx, org, params.CustomerID, window, params.Limit)
					if err != nil {
						return "", err
					}
					return toolResult(addresses)
				},
			},
		},
	}
}

// CustomerTools exposes customer lookups.
func CustomerTools(svc *tms.Service) Toolkit {
	return Toolkit{
		Name: "customers",
		Tools: []Tool{
			{
				Def: llm.Tool{
					Name:        "search_customers",
					Description: "Search customers by name prefix.",
					Parameters: json.RawMessage(`{
						"type": "object",
						"properties": {
							"query": {"type": "string"},
							"limit": {"type": "integer"}
						}
					}`),
				},
				Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
					org, err := orgFrom(ctx)
					if err != nil {
						return "", err
					}
					var params struct {
						Query string `json:"query"`
						Limit int    `json:"limit"`
					}
					if err := decodeArgs(args, &params); err != nil {
						return "", err
					}
					customers, err := svc.ListCustomers(ctx, org, params.Query, params.Limit)
					if err != nil {
						return "", err
					}
					return toolResult(customers)
				},
			},
		},
	}
}

// CarrierTools exposes carrier and driver lookups.
func CarrierTools(svc *tms.Service) Toolkit {
	return Toolkit{
		Name: "carriers",
		Tools: []Tool{
			{
				Def: llm.Tool{
					Name:        "search_carriers",
					Description: "Search carriers by name prefix.",
					Parameters: json.RawMessage(`{
						"type": "object",
						"properties": {
							"query": {"type": "string"},
							"limit": {"type": "integer"}
						}
					}`),
				},
				Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
					org, err := orgFrom(ctx)
					if err != nil {
						return "", err
					}
					var params struct {
						Query string `json:"query"`
						Limit int    `json:"limit"`
					}
					if err := decodeArgs(args, &params); err != nil {
						return "", err
					}
					carriers, err := svc.ListCarriers(ctx, org, params.Query, params.Limit)
					if err != nil {
						return "", err
					}
					return toolResult(carriers)
				},
			},
			{
				Def: llm.Tool{
					Name:        "list_drivers_for_carrier",
					Description: "List the drivers employed by a carrier.",
					Parameters: json.RawMessage(`{
						"type": "object",
						"properties": {
							"carrier_id": {"type": "string"},
							"limit": {"type": "integer"}
						},
						"required": ["carrier_id"]
					}`),
				},
				Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
					org, err := orgFrom(ctx)
					if err != nil {
						return "", err
					}
					var params struct {
						CarrierID string `json:"carrier_id"`
						Limit     int    `json:"limit"`
					}
					if err := decodeArgs(args, &params); err != nil {
						return "", err
					}
					drivers, err := svc.ListDrivers(ctx, org, params.CarrierID, params.Limit)
					if err != nil {
						return "", err
					}
					return toolResult(drivers)
				},
			},
			{
				Def: llm.Tool{
					Name:        "recent_loads_for_driver",
					Description: "The driver's most recent loads, newest first.",
					Parameters: json.RawMessage(`{
						"type": "object",
						"properties": {
							"driver_id": {"type": "string"},
							"limit": {"type": "integer"}
						},
						"required": ["driver_id"]
					}`),
				},
				Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
					org, err := orgFrom(ctx)
					if err != nil {
						return "", err
					}
					var params struct {
						DriverID string `json:"driver_id"`
						Limit    int    `json:"limit"`
					}
					if err := decodeArgs(args, &params); err != nil {
						return "", err
					}
					loads, err := svc.RecentLoadsForDriver(ctx, org, params.DriverID, params.Limit)
					if err != nil {
						return "", err
					}
					return toolResult(loads)
				},
			},
		},
	}
}

// StopHistoryTools exposes past stop activity at an address, used to
// suggest actions and time windows for new stops.
func StopHistoryTools(svc *tms.Service) Toolkit {
	return Toolkit{
		Name: "stop_history",
		Tools: []Tool{
			{
				Def: llm.Tool{
					Name:        "similar_stops",
					Description: "Recent stops at an address, newest first. Useful for inferring the usual action and appointment window there.",
					Parameters: json.RawMessage(`{
						"type": "object",
						"properties": {
							"address_id": {"type": "string"},
							"limit": {"type": "integer"}
						},
						"required": ["address_id"]
					}`),
				},
				Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
					org, err := orgFrom(ctx)
					if err != nil {
						return "", err
					}
					var params struct {
						AddressID string `json:"address_id"`
						Limit     int    `json:"limit"`
					}
					if err := decodeArgs(args, &params); err != nil {
						return "", err
					}
					stops, err := svc.SimilarStops(ctx, org, params.AddressID, params.Limit)
					if err != nil {
						return "", err
					}
					return toolResult(stops)
				},
			},
		},
	}
}
