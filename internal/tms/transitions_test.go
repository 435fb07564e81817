package tms

import "testing"

func TestValidateActionSequence(t *testing.T) {
	cases := []struct {
		name    string
		actions []StopAction
		wantErr bool
	}{
		{"live load then live unload", []StopAction{ActionLiveLoad, ActionLiveUnload}, false},
		{"live load then drop loaded", []StopAction{ActionLiveLoad, ActionDropLoaded}, false},
		{"double live load", []StopAction{ActionLiveLoad, ActionLiveLoad}, true},
		{"hook after live load", []StopAction{ActionLiveLoad, ActionHookLoaded}, true},
		{"empty drop after live load", []StopAction{ActionLiveLoad, ActionEmptyDrop}, true},
		{"hook then hub dropoff", []StopAction{ActionHookLoaded, ActionHubDropoff}, false},
		{"unload then unload", []StopAction{ActionLiveUnload, ActionLiveUnload}, true},
		{"empty pickup then drop loaded", []StopAction{ActionEmptyPickup, ActionDropLoaded}, true},
		{"empty pickup then live load", []StopAction{ActionEmptyPickup, ActionLiveLoad}, false},
		{"drop then empty pickup", []StopAction{ActionDropLoaded, ActionEmptyPickup}, false},
		{"drop then live load", []StopAction{ActionDropLoaded, ActionLiveLoad}, true},
		{"hub pickup then hub pickup", []StopAction{ActionHubPickup, ActionHubPickup}, true},
		{"hub pickup then live unload", []StopAction{ActionHubPickup, ActionLiveUnload}, false},
		{"hub dropoff then hub pickup", []StopAction{ActionHubDropoff, ActionHubPickup}, false},
		{"three stop relay", []StopAction{ActionHookLoaded, ActionDropLoaded, ActionEmptyPickup}, false},
		{"unknown action", []StopAction{"XX"}, true},
		{"single stop", []StopAction{ActionLiveLoad}, false},
		{"empty sequence", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateActionSequence(tc.actions)
			if tc.wantErr && err == nil {
				t.Fatalf("expected sequence %v to be rejected", tc.actions)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected sequence %v to be accepted, got %v", tc.actions, err)
			}
		})
	}
}

func TestPickupActions(t *testing.T) {
	pickups := []StopAction{ActionLiveLoad, ActionHookLoaded, ActionEmptyPickup, ActionHubPickup}
	for _, action := range pickups {
		if !action.Pickup() {
			t.Fatalf("%s should be a pickup action", action)
		}
	}
	drops := []StopAction{ActionLiveUnload, ActionDropLoaded, ActionEmptyDrop, ActionHubDropoff}
	for _, action := range drops {
		if action.Pickup() {
			t.Fatalf("%s should not be a pickup action", action)
		}
	}
}

func TestParseTrailerType(t *testing.T) {
	cases := []struct {
		in      string
		want    TrailerType
		wantErr bool
	}{
		{"", "", false},
		{"SMALL_20", TrailerSmall20, false},
		{"small_20", TrailerSmall20, false},
		{"20 foot", TrailerSmall20, false},
		{"20ft", TrailerSmall20, false},
		{"28ft", TrailerSmall28, false},
		{"40 foot", TrailerMedium40, false},
		{"45'", TrailerMedium45, false},
		{"48ft", TrailerLarge48, false},
		{"53 foot", TrailerLarge53, false},
		{"  53ft  ", TrailerLarge53, false},
		{"double decker", "", true},
	}

	for _, tc := range cases {
		got, err := ParseTrailerType(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseTrailerType(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTrailerType(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseTrailerType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateStopSequenceDuplicateNumbers(t *testing.T) {
	stops := []Stop{
		{StopNumber: 1, Action: ActionLiveLoad},
		{StopNumber: 1, Action: ActionLiveUnload},
	}
	if err := ValidateStopSequence(stops); err == nil {
		t.Fatal("expected duplicate stop numbers to be rejected")
	}
}
