package models

const (
	StatusReceived  = "recebido"
	StatusPreparing = "em_preparo"
	StatusReady     = "pronto"
	StatusDelivered = "entregue"
	StatusCancelled = "cancelado"
)

var statusFlow = map[string]string{
	StatusReceived:  StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusDelivered,
}

func ValidStatus(status string) bool {
	switch status {
	case StatusReceived, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// NextStatus returns the following lifecycle step, or false for terminal statuses.
func NextStatus(status string) (string, bool) {
	next, ok := statusFlow[status]
	return next, ok
}

func IsTerminal(status string) bool {
	return status == StatusDelivered || status == StatusCancelled
}
