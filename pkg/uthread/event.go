package uthread

// Kind represents the type of event
type Kind uint8

const (
	KindDispatch Kind = iota + 1
	KindPreempt
	KindSpawn
	KindBlock
	KindResume
	KindSleep
	KindWake
	KindTerminate
)

func (k Kind) String() string {
	switch k {
	case KindDispatch:
		return "dispatch"
	case KindPreempt:
		return "preempt"
	case KindSpawn:
		return "spawn"
	case KindBlock:
		return "block"
	case KindResume:
		return "resume"
	case KindSleep:
		return "sleep"
	case KindWake:
		return "wake"
	case KindTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Event represents a single scheduling event
type Event struct {
	Quantum int  `json:"quantum"` // Global quantum count when the event happened
	Tid     int  `json:"tid"`
	Kind    Kind `json:"kind"`
}
