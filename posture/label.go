package posture

import "fmt"

type Label int

const (
	Unknown Label = iota
	Standing
	Sitting
	Undetected
)

// String returns the text sent to status clients.
func (l Label) String() string {
	switch l {
	case Standing:
		return "De pie"
	case Sitting:
		return "Sentado"
	case Undetected:
		return "No detectada"
	case Unknown:
		return "desconocida"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Name is the ASCII identifier used in logs, metrics and JSON.
func (l Label) Name() string {
	switch l {
	case Standing:
		return "standing"
	case Sitting:
		return "sitting"
	case Undetected:
		return "undetected"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Labels lists every label in declaration order.
func Labels() []Label {
	return []Label{Unknown, Standing, Sitting, Undetected}
}
