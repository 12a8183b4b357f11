package model

// PaymentStatus is the lifecycle state of a Payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusCanceled   PaymentStatus = "CANCELLED"
	PaymentStatusOnHold     PaymentStatus = "ON_HOLD"
	PaymentStatusChargeback PaymentStatus = "CHARGEBACK"
)

// forward edges of the payment state machine. Nothing leads back to PENDING.
var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {
		PaymentStatusCompleted,
		PaymentStatusFailed,
		PaymentStatusCanceled,
	},
	PaymentStatusCompleted: {
		PaymentStatusCanceled,
		PaymentStatusRefunded,
		PaymentStatusOnHold,
		PaymentStatusChargeback,
	},
}

// IsValid reports whether s is a known status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed,
		PaymentStatusRefunded, PaymentStatusCanceled, PaymentStatusOnHold,
		PaymentStatusChargeback:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s PaymentStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether next is a forward edge from s.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Predecessors returns the statuses from which target can be reached.
func Predecessors(target PaymentStatus) []PaymentStatus {
	var out []PaymentStatus
	for from, nexts := range transitions {
		for _, next := range nexts {
			if next == target {
				out = append(out, from)
			}
		}
	}
	return out
}
