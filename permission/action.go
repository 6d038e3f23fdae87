package permission

// Action is an operation a caller attempts on a record.
type Action string

const (
	ActionRead     Action = "read"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionModerate Action = "moderate"
)

// Actions returns every known action in registration order.
func Actions() []Action {
	return []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionModerate}
}

// ParseAction maps a raw name to an Action.
func ParseAction(raw string) (Action, bool) {
	for _, a := range Actions() {
		if string(a) == raw {
			return a, true
		}
	}
	return "", false
}
