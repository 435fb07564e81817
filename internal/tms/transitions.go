package tms

import (
	"fmt"
	"strings"

	apperrors "machtms/internal/errors"
)

// invalidNext maps a stop action to the set of actions that may not
// directly follow it within the same leg. The rules encode physical
// trailer state: a driver who just hooked a loaded trailer cannot
// immediately load again, an empty drop must be preceded by something
// that left the driver with an empty trailer, and so on.
var invalidNext = map[StopAction]map[StopAction]bool{
	ActionLiveLoad: {
		ActionLiveLoad: true, ActionHookLoaded: true, ActionEmptyPickup: true,
		ActionEmptyDrop: true, ActionHubPickup: true,
	},
	ActionHookLoaded: {
		ActionLiveLoad: true, ActionHookLoaded: true, ActionEmptyPickup: true,
		ActionEmptyDrop: true, ActionHubPickup: true,
	},
	ActionLiveUnload: {
		ActionLiveUnload: true, ActionDropLoaded: true, ActionHookLoaded: true,
		ActionHubPickup: true,
	},
	ActionEmptyPickup: {
		ActionEmptyPickup: true, ActionLiveUnload: true, ActionDropLoaded: true,
		ActionHookLoaded: true, ActionHubPickup: true,
	},
	ActionDropLoaded: {
		ActionLiveLoad: true, ActionLiveUnload: true, ActionDropLoaded: true,
		ActionEmptyDrop: true, ActionHubDropoff: true,
	},
	ActionEmptyDrop: {
		ActionLiveLoad: true, ActionLiveUnload: true, ActionDropLoaded: true,
		ActionEmptyDrop: true, ActionHubDropoff: true,
	},
	ActionHubDropoff: {
		ActionLiveLoad: true, ActionLiveUnload: true, ActionDropLoaded: true,
		ActionEmptyDrop: true, ActionHubDropoff: true,
	},
	ActionHubPickup: {
		ActionHubPickup: true, ActionEmptyPickup: true, ActionHookLoaded: true,
	},
}

// pickupActions are the actions that begin a haul. Calendar views key
// off these when deciding which day a load appears on.
var pickupActions = map[StopAction]bool{
	ActionLiveLoad:    true,
	ActionHookLoaded:  true,
	ActionEmptyPickup: true,
	ActionHubPickup:   true,
}

// Pickup reports whether the action starts a haul.
func (a StopAction) Pickup() bool {
	return pickupActions[a]
}

// CanFollow reports whether next may directly follow prev within a leg.
func CanFollow(prev, next StopAction) bool {
	return !invalidNext[prev][next]
}

// ValidateActionSequence checks every adjacent pair of stop actions in
// order. It returns a validation error naming the first offending pair.
func ValidateActionSequence(actions []StopAction) error {
	for i, action := range actions {
		if !action.Valid() {
			return apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("unknown stop action %q at index %d", action, i))
		}
		if i == 0 {
			continue
		}
		prev := actions[i-1]
		if !CanFollow(prev, action) {
			return apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("action %s cannot follow %s at index %d", action, prev, i))
		}
	}
	return nil
}

// ValidateStopSequence checks stop numbering and action ordering for a
// leg. Stops must already be sorted by stop number.
func ValidateStopSequence(stops []Stop) error {
	seen := make(map[int]bool, len(stops))
	actions := make([]StopAction, 0, len(stops))
	for _, stop := range stops {
		if seen[stop.StopNumber] {
			return apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("duplicate stop number %d", stop.StopNumber))
		}
		seen[stop.StopNumber] = true
		actions = append(actions, stop.Action)
	}
	return ValidateActionSequence(actions)
}

// trailerAliases maps the spoken and written forms that show up in
// rate confirmations and chat to canonical trailer types.
var trailerAliases = map[string]TrailerType{
	"20 foot": TrailerSmall20,
	"20ft":    TrailerSmall20,
	"20'":     TrailerSmall20,
	"28 foot": TrailerSmall28,
	"28ft":    TrailerSmall28,
	"28'":     TrailerSmall28,
	"40 foot": TrailerMedium40,
	"40ft":    TrailerMedium40,
	"40'":     TrailerMedium40,
	"45 foot": TrailerMedium45,
	"45ft":    TrailerMedium45,
	"45'":     TrailerMedium45,
	"48 foot": TrailerLarge48,
	"48ft":    TrailerLarge48,
	"48'":     TrailerLarge48,
	"53 foot": TrailerLarge53,
	"53ft":    TrailerLarge53,
	"53'":     TrailerLarge53,
}

// ParseTrailerType resolves free-form trailer descriptions to a
// canonical type. Canonical names pass through unchanged.
func ParseTrailerType(raw string) (TrailerType, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	canonical := TrailerType(strings.ToUpper(trimmed))
	if canonical.Valid() {
		return canonical, nil
	}
	if mapped, ok := trailerAliases[strings.ToLower(trimmed)]; ok {
		return mapped, nil
	}
	return "", apperrors.New(apperrors.CodeValidation,
		fmt.Sprintf("unrecognized trailer type %q", raw))
}
