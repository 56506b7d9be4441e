package domain

import "fmt"

// Action identifies one of the two punch operations, or the simulation
// marker used when no real action is authorized.
type Action string

const (
	ActionEnter    Action = "enter"
	ActionExit     Action = "exit"
	ActionSimulate Action = "simulate"
)

// Label returns the human-readable name used in logs and notifications.
func (a Action) Label() string {
	switch a {
	case ActionEnter:
		return "clock-in"
	case ActionExit:
		return "clock-out"
	default:
		return "simulation"
	}
}

// Opposite returns the counterpart punch action.
func (a Action) Opposite() Action {
	if a == ActionEnter {
		return ActionExit
	}
	return ActionEnter
}

// ParseAction converts a CLI/config string into an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "enter", "in", "clock-in":
		return ActionEnter, nil
	case "exit", "out", "clock-out":
		return ActionExit, nil
	case "simulate":
		return ActionSimulate, nil
	default:
		return "", fmt.Errorf("unknown action %q (want enter or exit)", s)
	}
}
