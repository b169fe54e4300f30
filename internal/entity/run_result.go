package entity

// RunResult is the outcome of one attempt of a scheduled unit of work.
type RunResult int

const (
	Failed RunResult = iota
	Success
	Unavailable
)

func (r RunResult) String() string {
	switch r {
	case Success:
		return "success"
	case Unavailable:
		return "unavailable"
	default:
		return "failed"
	}
}
