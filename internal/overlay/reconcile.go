package overlay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gpsd-agent/internal/balena"
)

// ErrInvalidControl signals a Control value outside the two defined
// variants. This is a programming error, never recovered at runtime.
var ErrInvalidControl = errors.New("overlay: invalid control value")

// Control selects the desired state of the UART overlay token.
type Control int

const (
	Enable Control = iota + 1
	Disable
)

func (c Control) String() string {
	switch c {
	case Enable:
		return "enable"
	case Disable:
		return "disable"
	default:
		return fmt.Sprintf("control(%d)", int(c))
	}
}

// VariableName is the key written when creating a device-level override.
const VariableName = "BALENA_HOST_CONFIG_dtoverlay"

// Both the current and the legacy key are recognized when scanning.
var variableNames = []string{VariableName, "RESIN_HOST_CONFIG_dtoverlay"}

// Action is the remote write a plan calls for.
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
)

// Plan is the minimal remote change needed to satisfy a control request.
type Plan struct {
	Action     Action
	VariableID int64  // update target, set when Action == ActionUpdate
	Value      string // encoded desired set, set unless Action == ActionNone
}

// findVariable scans vars for a dt-overlay entry under either recognized
// key. Later entries overwrite earlier matches; both the decoded set and
// the id come from the last match.
func findVariable(vars []balena.ConfigVariable) (Set, int64, bool) {
	var set Set
	var id int64
	found := false
	for _, v := range vars {
		for _, name := range variableNames {
			if v.Name == name {
				set = DecodeSet(v.Value)
				id = v.ID
				found = true
			}
		}
	}
	return set, id, found
}

// ComputePlan decides whether a remote write is needed to make the
// presence of target in the dt-overlay set match control.
//
// The device-level set, when present, is the effective current set and
// its variable is the update target. Otherwise the fleet-level set is
// current but any write is a create: fleet config is never mutated.
// When neither exists there is no current set; that state is distinct
// from an explicit empty set, so the first reconciliation always writes
// a device variable, even a disable of a token that was never present.
func ComputePlan(control Control, deviceVars, appVars []balena.ConfigVariable, target string) (Plan, error) {
	deviceSet, deviceID, deviceFound := findVariable(deviceVars)
	appSet, _, appFound := findVariable(appVars)

	var current Set
	currentExists := false
	switch {
	case deviceFound:
		current, currentExists = deviceSet, true
	case appFound:
		current, currentExists = appSet, true
	}

	var desired Set
	switch control {
	case Enable:
		desired = current.with(target)
	case Disable:
		desired = current.without(target)
	default:
		return Plan{}, fmt.Errorf("%w: %d", ErrInvalidControl, int(control))
	}

	if currentExists && desired.Equal(current) {
		return Plan{Action: ActionNone}, nil
	}

	encoded := Encode(desired)
	if deviceFound {
		return Plan{Action: ActionUpdate, VariableID: deviceID, Value: encoded}, nil
	}
	return Plan{Action: ActionCreate, Value: encoded}, nil
}

// Store is the remote configuration boundary; *balena.Client satisfies it.
type Store interface {
	ListDeviceVariables(ctx context.Context, deviceUUID string) ([]balena.ConfigVariable, error)
	ListApplicationVariables(ctx context.Context, appID string) ([]balena.ConfigVariable, error)
	CreateDeviceVariable(ctx context.Context, deviceUUID, name, value string) error
	UpdateDeviceVariable(ctx context.Context, id int64, value string) error
}

// Outcome reports what a reconciliation did.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeUpdated   Outcome = "updated"
	OutcomeCreated   Outcome = "created"
)

type Result struct {
	Outcome Outcome
	Value   string // final encoded value, empty when unchanged
}

// Reconciler reads both configuration scopes fresh on every Apply and
// issues at most one write. Remote failures propagate unretried.
type Reconciler struct {
	store      Store
	deviceUUID string
	appID      string
	target     string
}

func NewReconciler(store Store, deviceUUID, appID, target string) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("overlay: store is nil")
	}
	if strings.TrimSpace(deviceUUID) == "" {
		return nil, fmt.Errorf("overlay: device uuid is required")
	}
	if strings.TrimSpace(appID) == "" {
		return nil, fmt.Errorf("overlay: app id is required")
	}
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("overlay: target overlay token is required")
	}
	return &Reconciler{store: store, deviceUUID: deviceUUID, appID: appID, target: target}, nil
}

func (r *Reconciler) Apply(ctx context.Context, control Control) (Result, error) {
	deviceVars, err := r.store.ListDeviceVariables(ctx, r.deviceUUID)
	if err != nil {
		return Result{}, err
	}
	appVars, err := r.store.ListApplicationVariables(ctx, r.appID)
	if err != nil {
		return Result{}, err
	}

	deviceSet, _, deviceFound := findVariable(deviceVars)
	appSet, _, appFound := findVariable(appVars)
	log.Printf("overlay current device=%s app=%s", describeSet(deviceSet, deviceFound), describeSet(appSet, appFound))

	plan, err := ComputePlan(control, deviceVars, appVars, r.target)
	if err != nil {
		return Result{}, err
	}

	switch plan.Action {
	case ActionNone:
		log.Printf("overlay config already %sd, no update needed", control)
		return Result{Outcome: OutcomeUnchanged}, nil
	case ActionUpdate:
		if err := r.store.UpdateDeviceVariable(ctx, plan.VariableID, plan.Value); err != nil {
			return Result{}, err
		}
		log.Printf("overlay updated device variable id=%d value=%s", plan.VariableID, plan.Value)
		return Result{Outcome: OutcomeUpdated, Value: plan.Value}, nil
	default:
		if err := r.store.CreateDeviceVariable(ctx, r.deviceUUID, VariableName, plan.Value); err != nil {
			return Result{}, err
		}
		log.Printf("overlay created %s=%s", VariableName, plan.Value)
		return Result{Outcome: OutcomeCreated, Value: plan.Value}, nil
	}
}

func describeSet(s Set, found bool) string {
	if !found {
		return "<unset>"
	}
	v := Encode(s)
	if v == "" {
		return "<empty>"
	}
	return v
}
