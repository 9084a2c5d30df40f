package models

// TodoState selects which todos a list query returns.
type TodoState string

const (
	StateAll        TodoState = "all"
	StateCompleted  TodoState = "completed"
	StateIncomplete TodoState = "incomplete"
	StateDelayed    TodoState = "delayed"
)

// ParseTodoState maps a query value to a state. Unknown values mean all.
func ParseTodoState(s string) TodoState {
	switch TodoState(s) {
	case StateCompleted, StateIncomplete, StateDelayed:
		return TodoState(s)
	}
	return StateAll
}
