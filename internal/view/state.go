package view

// State is the lifecycle position of a View.
type State int

const (
	// StateUnmounted is a view that has not completed a render.
	StateUnmounted State = iota
	// StateRendering is a view inside a render pass.
	StateRendering
	// StateMounted is a view whose markup is attached to its mount point.
	StateMounted
	// StateClosed is a released view. It never renders again.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnmounted:
		return "unmounted"
	case StateRendering:
		return "rendering"
	case StateMounted:
		return "mounted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
