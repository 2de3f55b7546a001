package internal

import "fmt"

type Priority int

const (
	PriorityImmediate Priority = iota + 1
	PriorityUserBlocking
	PriorityNormal
	PriorityLow
	PriorityIdle
)

func (p Priority) String() string {
	switch p {
	case PriorityImmediate:
		return "immediate"
	case PriorityUserBlocking:
		return "user-blocking"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityIdle:
		return "idle"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

func (p Priority) valid() bool {
	return p >= PriorityImmediate && p <= PriorityIdle
}
