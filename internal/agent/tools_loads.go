package agent

import (
	"context"
	"encoding/json"
	"time"

	apperrors "machtms/internal/errors"
	"machtms/internal/llm"
	"machtms/internal/tms"
)

// LoadTools exposes load querying and creation.
func LoadTools(svc *tms.Service) Toolkit {
	return Toolkit{
		Name: "loads",
		Tools: []Tool{
			getTodaysLoadsTool(svc),
			searchLoadsTool(svc),
			createLoadTool(svc),
		},
	}
}

func getTodaysLoadsTool(svc *tms.Service) Tool {
	return Tool{
		Def: llm.Tool{
			Name:        "get_todays_loads",
			Description: "List the loads picking up on a calendar day, unassigned legs first. Defaults to today.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"date": {"type": "string", "description": "Calendar day as YYYY-MM-DD. Omit for today."}
				}
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			org, err := orgFrom(ctx)
			if err != nil {
				return "", err
			}
			var params struct {
				Date string `json:"date"`
			}
			if err := decodeArgs(args, &params); err != nil {
				return "", err
			}
			day := time.Now().UTC()
			if params.Date != "" {
				day, err = time.Parse("2006-01-02", params.Date)
				if err != nil {
					return "", apperrors.New(apperrors.CodeInvalidArgument,
						"date must be YYYY-MM-DD")
				}
			}
			entries, err := svc.LoadsForDay(ctx, org, day)
			if err != nil {
				return "", err
			}
			return toolResult(entries)
		},
	}
}

func searchLoadsTool(svc *tms.Service) Tool {
	return Tool{
		Def: llm.Tool{
			Name:        "search_loads",
			Description: "Search loads by customer, carrier, or driver name, stop street, or status. All filters are partial and case-insensitive.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"customer_name": {"type": "string"},
					"carrier_name": {"type": "string"},
					"driver_name": {"type": "string"},
					"stop_street": {"type": "string"},
					"statuses": {"type": "array", "items": {"type": "string"}},
					"billing_statuses": {"type": "array", "items": {"type": "string"}}
				}
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			org, err := orgFrom(ctx)
			if err != nil {
				return "", err
			}
			var params struct {
				CustomerName    string   `json:"customer_name"`
				CarrierName     string   `json:"carrier_name"`
				DriverName      string   `json:"driver_name"`
				StopStreet      string   `json:"stop_street"`
				Statuses        []string `json:"statuses"`
				BillingStatuses []string `json:"billing_statuses"`
			}
			if err := decodeArgs(args, &params); err != nil {
				return "", err
			}
			query := tms.TextSearch{
				CustomerName: params.CustomerName,
				CarrierName:  params.CarrierName,
				DriverName:   params.DriverName,
				StopStreet:   params.StopStreet,
			}
			for _, status := range params.Statuses {
				query.Statuses = append(query.Statuses, tms.LoadStatus(status))
			}
			for _, status := range params.BillingStatuses {
				query.BillingStatuses = append(query.BillingStatuses, tms.BillingStatus(status))
			}
			loads, err := svc.SearchLoadsByText(ctx, org, query)
			if err != nil {
				return "", err
			}
			return toolResult(loads)
		},
	}
}

func createLoadTool(svc *tms.Service) Tool {
	return Tool{
		Def: llm.Tool{
			Name:        "create_load",
			Description: "Create a load with its legs, stops, and optional per-leg carrier and driver assignment. Stop times are RFC 3339. Stop actions: LL, LU, HL, LD, EMPP, EMPD, HUBP, HUBD.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"customer": {"type": "string", "description": "Customer id."},
					"reference_number": {"type": "string"},
					"bol_number": {"type": "string"},
					"trailer_type": {"type": "string", "enum": ["SMALL_20", "SMALL_28", "MEDIUM_40", "MEDIUM_45", "LARGE_48", "LARGE_53"]},
					"legs": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"stops": {
									"type": "array",
									"items": {
										"type": "object",
										"properties": {
											"stop_number": {"type": "integer"},
											"address": {"type": "string", "description": "Address id."},
											"action": {"type": "string"},
											"start_range": {"type": "string"},
											"end_range": {"type": "string"},
											"po_numbers": {"type": "string"},
											"driver_notes": {"type": "string"}
										},
										"required": ["stop_number", "address", "action", "start_range"]
									}
								},
								"shipment_assignment": {
									"type": "object",
									"properties": {
										"carrier": {"type": "string", "description": "Carrier id."},
										"driver": {"type": "string", "description": "Driver id."}
									},
									"required": ["carrier", "driver"]
								}
							},
							"required": ["stops"]
						}
					}
				},
				"required": ["legs"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			org, err := orgFrom(ctx)
			if err != nil {
				return "", err
			}
			var payload tms.LoadCreationPayload
			if err := decodeArgs(args, &payload); err != nil {
				return "", err
			}
			detail, err := svc.CreateLoad(ctx, org, payload)
			if err != nil {
				return "", err
			}
			return toolResult(detail)
		},
	}
}
