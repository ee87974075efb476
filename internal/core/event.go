package core

import "time"

const (
	EventIncomeRecorded     EventKind = "income.recorded"
	EventExpenseRecorded    EventKind = "expense.recorded"
	EventTransferRecorded   EventKind = "transfer.recorded"
	EventTransactionLogged  EventKind = "transaction.recorded"
	EventTransactionDeleted EventKind = "transaction.deleted"
	EventPeriodReset        EventKind = "period.reset"
)

type (
	EventKind string

	// LedgerEvent is written to the outbox in the same atomic write as the
	// change it describes.
	LedgerEvent struct {
		ID          string     `json:"id"`
		UserID      string     `json:"userId"`
		Kind        EventKind  `json:"kind"`
		AggregateID string     `json:"aggregateId,omitempty"`
		JarCode     JarCode    `json:"jarCode,omitempty"`
		ToJarCode   JarCode    `json:"toJarCode,omitempty"`
		Amount      Money      `json:"amount"`
		Description string     `json:"description,omitempty"`
		Allocation  Allocation `json:"allocation,omitempty"`
		OccurredAt  time.Time  `json:"occurredAt"`
	}
)

// EventKindFor maps a transaction type to the event recorded with it.
func EventKindFor(t TxType) EventKind {
	switch t {
	case TxExpense:
		return EventExpenseRecorded
	case TxTransfer:
		return EventTransferRecorded
	}
	return EventTransactionLogged
}
