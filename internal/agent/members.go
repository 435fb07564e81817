package agent

import (
	"machtms/internal/llm"
	"machtms/internal/tms"
)

// Dependencies carries everything the roster needs. Overrides may be
// zero; the built-in instructions apply then.
type Dependencies struct {
	TMS       *tms.Service
	Client    llm.Client
	MaxTurns  int
	Overrides Overrides
}

// NewLeadTeam assembles the full dispatch assistant: the lead routes
// between the Dispatcher, the Swap Planner, the Lookup Agent, and the
// Load Creation Team.
func NewLeadTeam(deps Dependencies) *Team {
	const name = "Lead Team"
	return NewTeam(TeamConfig{
		Name: name,
		Role: deps.Overrides.role(name, "You coordinate a dispatch desk for a trucking operation."),
		Instructions: deps.Overrides.instructions(name, []string{
			"Route every request to exactly one member and relay its answer.",
			"Questions about today's schedule or finding existing loads go to the Dispatcher.",
			"Requests to exchange drivers between loads go to the Swap Planner.",
			"Lookups of customers, carriers, drivers, or addresses go to the Lookup Agent.",
			"Requests to create a new load go to the Load Creation Team with the full original text.",
			"Answer in plain language a dispatcher can act on. Include ids the user may need for a follow-up.",
		}),
		Members: []Runner{
			NewDispatcher(deps),
			NewSwapPlanner(deps),
			NewLookupAgent(deps),
			NewLoadCreationTeam(deps),
		},
		Client:   deps.Client,
		MaxTurns: deps.MaxTurns,
	})
}

// NewDispatcher answers schedule and load-search questions.
func NewDispatcher(deps Dependencies) *Agent {
	const name = "Dispatcher"
	return New(Config{
		Name: name,
		Role: deps.Overrides.role(name, "You answer questions about the load schedule."),
		Instructions: deps.Overrides.instructions(name, []string{
			"Use get_todays_loads for calendar questions and search_loads for everything else.",
			"Summarize each load as reference number, customer, status, first pickup time, and whether any leg still needs a driver.",
			"When nothing matches, say so rather than guessing.",
		}),
		Toolkits: []Toolkit{LoadTools(deps.TMS)},
		Client:   deps.Client,
		MaxTurns: deps.MaxTurns,
	})
}

// NewSwapPlanner exchanges drivers between two loads.
func NewSwapPlanner(deps Dependencies) *Agent {
	const name = "Swap Planner"
	return New(Config{
		Name: name,
		Role: deps.Overrides.role(name, "You exchange the drivers assigned to two loads."),
		Instructions: deps.Overrides.instructions(name, []string{
			"Find the two loads with search_loads when the user gives names or reference numbers instead of ids.",
			"Inspect both with get_load_assignment_info before changing anything.",
			"A swap needs exactly two legs, each currently assigned. Refuse and explain if either leg has no driver.",
			"Call swap_drivers_between_loads with each leg paired to the driver it should end up with.",
			"Confirm the result by naming both drivers and both loads.",
		}),
		Toolkits: []Toolkit{SwapTools(deps.TMS), LoadTools(deps.TMS)},
		Client:   deps.Client,
		MaxTurns: deps.MaxTurns,
	})
}

// NewLookupAgent answers directory questions.
func NewLookupAgent(deps Dependencies) *Agent {
	const name = "Lookup Agent"
	return New(Config{
		Name: name,
		Role: deps.Overrides.role(name, "You look up customers, carriers, drivers, and addresses."),
		Instructions: deps.Overrides.instructions(name, []string{
			"Search with the shortest distinctive prefix; retry with a shorter one before reporting no match.",
			"Return ids alongside names so other agents can use them.",
			"Use recent_loads_for_driver and recent_addresses when asked what someone or somewhere has been doing lately.",
		}),
		Toolkits: []Toolkit{
			CustomerTools(deps.TMS),
			CarrierTools(deps.TMS),
			AddressTools(deps.TMS),
		},
		Client:   deps.Client,
		MaxTurns: deps.MaxTurns,
	})
}

// NewLoadCreationTeam turns a free-text load description into a
// created load. The lead sequences its specialists and finishes by
// calling create_load itself.
func NewLoadCreationTeam(deps Dependencies) *Team {
	const name = "Load Creation Team"
	return NewTeam(TeamConfig{
		Name: name,
		Role: deps.Overrides.role(name, "You turn a dispatcher's free-text load description into a created load."),
		Instructions: deps.Overrides.instructions(name, []string{
			"First have the Load Parser break the text into customer, reference numbers, trailer, stops, and any carrier or driver mention.",
			"Have the Load Data Agent resolve the customer and the Stop Builder resolve every stop into an address id, action, and time window.",
			"If a carrier or driver is mentioned, have the Carrier Assignment Agent resolve them; otherwise leave the leg unassigned.",
			"Assemble the payload and call create_load once everything is resolved. Never invent ids.",
			"Report the created load's id and reference number, or the exact field you could not resolve.",
		}),
		Members: []Runner{
			NewLoadParser(deps),
			NewLoadDataAgent(deps),
			NewStopBuilder(deps),
			NewCarrierAssignmentAgent(deps),
		},
		Toolkits: []Toolkit{LoadTools(deps.TMS)},
		Client:   deps.Client,
		MaxTurns: deps.MaxTurns,
	})
}

// NewLoadParser extracts structure from free text. It carries no
// tools; it only reads.
func NewLoadParser(deps Dependencies) *Agent {
	const name = "Load Parser"
	return New(Config{
		Name: name,
		Role: deps.Overrides.role(name, "You extract the structured facts from a free-text load description."),
		Instructions: deps.Overrides.instructions(name, []string{
			"List the customer name, reference number, BOL number, trailer type, and each stop in order with its raw address text, action, date, and time window.",
			"Actions are LL, LU, HL, LD, EMPP, EMPD, HUBP, or HUBD. Pick the closest; a plain pickup is LL and a plain delivery is LU.",
			"Quote the original wording for anything ambiguous instead of resolving it yourself.",
		}),
		Client:   deps.Client,
		MaxTurns: deps.MaxTurns,
	})
}

// NewStopBuilder resolves stop descriptions into address ids and
// defaults from stop history.
func NewStopBuilder(deps Dependencies) *Agent {
	const name = "Stop Builder"
	return New(Config{
		Name: name,
		Role: deps.Overrides.role(name, "You resolve stop descriptions into address ids with actions and time windows."),
		Instructions: deps.Overrides.instructions(name, []string{
			"Search for each address before creating one; use ensure_address so repeats map to the same id.",
			"When the action or window is unstated, check similar_stops at that address and use what that location usually gets.",
			"Return each stop as stop_number, address id, action, and RFC 3339 start and end times.",
		}),
		Toolkits: []Toolkit{AddressTools(deps.TMS), StopHistoryTools(deps.TMS)},
		Client:   deps.Client,
		MaxTurns: deps.MaxTurns,
	})
}

// NewLoadDataAgent resolves the customer and header fields.
func NewLoadDataAgent(deps Dependencies) *Agent {
	const name = "Load Data Agent"
	return New(Config{
		Name: name,
		Role: deps.Overrides.role(name, "You resolve a load's customer and header fields."),
		Instructions: deps.Overrides.instructions(name, []string{
			"Match the customer by name with search_customers and return its id.",
			"When several customers match, list them and ask which one rather than picking.",
		}),
		Toolkits: []Toolkit{CustomerTools(deps.TMS)},
		Client:   deps.Client,
		MaxTurns: deps.MaxTurns,
	})
}

// NewCarrierAssignmentAgent resolves a mentioned carrier and driver.
func NewCarrierAssignmentAgent(deps Dependencies) *Agent {
	const name = "Carrier Assignment Agent"
	return New(Config{
		Name: name,
		Role: deps.Overrides.role(name, "You resolve carrier and driver mentions into an assignment."),
		Instructions: deps.Overrides.instructions(name, []string{
			"Find the carrier with search_carriers, then the driver with list_drivers_for_carrier. The driver must belong to the carrier.",
			"When only a driver is named, find them by checking the drivers of the carriers that match, and return the employing carrier too.",
			"Return carrier id and driver id, or state plainly that no assignment was mentioned.",
		}),
		Toolkits: []Toolkit{CarrierTools(deps.TMS)},
		Client:   deps.Client,
		MaxTurns: deps.MaxTurns,
	})
}
