package agent

import (
	"context"
	"encoding/json"

	"machtms/internal/llm"
	"machtms/internal/tms"
)

// SwapTools exposes assignment inspection and driver swaps.
func SwapTools(svc *tms.Service) Toolkit {
	return Toolkit{
		Name: "swap",
		Tools: []Tool{
			getLoadAssignmentInfoTool(svc),
			swapDriversTool(svc),
		},
	}
}

// assignmentInfo is the per-leg view returned to the model, with
// carrier and driver names already resolved so the model does not
// need extra lookups before proposing a swap.
type assignmentInfo struct {
	LegID       string `json:"leg_id"`
	CarrierID   string `json:"carrier_id,omitempty"`
	CarrierName string `json:"carrier_name,omitempty"`
	DriverID    string `json:"driver_id,omitempty"`
	DriverName  string `json:"driver_name,omitempty"`
	Stops       int    `json:"stop_count"`
	FirstStop   string `json:"first_stop_start,omitempty"`
	Assigned    bool   `json:"assigned"`
}

func getLoadAssignmentInfoTool(svc *tms.Service) Tool {
	return Tool{
		Def: llm.Tool{
			Name:        "get_load_assignment_info",
			Description: "Show each leg of a load with its assigned carrier and driver, if any.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"load_id": {"type": "string"}
				},
				"required": ["load_id"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			org, err := orgFrom(ctx)
			if err != nil {
				return "", err
			}
			var params struct {
				LoadID string `json:"load_id"`
			}
			if err := decodeArgs(args, &params); err != nil {
				return "", err
			}
			detail, err := svc.GetLoad(ctx, org, params.LoadID)
			if err != nil {
				return "", err
			}

			infos := make([]assignmentInfo, 0, len(detail.Legs))
			for _, leg := range detail.Legs {
				info := assignmentInfo{LegID: leg.ID, Stops: len(leg.Stops)}
				if len(leg.Stops) > 0 {
					info.FirstStop = leg.Stops[0].StartRange.Format("2006-01-02 15:04")
				}
				if len(leg.Assignments) > 0 {
					assignment := leg.Assignments[0]
					info.Assigned = true
					info.CarrierID = assignment.CarrierID
					info.DriverID = assignment.DriverID
					if carrier, err := svc.GetCarrier(ctx, org, assignment.CarrierID); err == nil {
						info.CarrierName = carrier.Name
					}
					if driver, err := svc.GetDriver(ctx, org, assignment.DriverID); err == nil {
						info.DriverName = driver.FullName()
					}
				}
				infos = append(infos, info)
			}
			return toolResult(infos)
		},
	}
}

func swapDriversTool(svc *tms.Service) Tool {
	return Tool{
		Def: llm.Tool{
			Name:        "swap_drivers_between_loads",
			Description: "Reassign exactly two legs: each pair names a leg and the driver that should end up on it. Existing assignments on both legs are replaced.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"swaps": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"leg_id": {"type": "string"},
								"driver_id": {"type": "string"}
							},
							"required": ["leg_id", "driver_id"]
						},
						"minItems": 2,
						"maxItems": 2
					}
				},
				"required": ["swaps"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			org, err := orgFrom(ctx)
			if err != nil {
				return "", err
			}
			var params struct {
				Swaps []tms.SwapPair `json:"swaps"`
			}
			if err := decodeArgs(args, &params); err != nil {
				return "", err
			}
			if err := svc.ApplySwap(ctx, org, params.Swaps); err != nil {
				return "", err
			}
			return "drivers swapped", nil
		},
	}
}
