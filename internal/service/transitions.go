package service

import (
	"ticketflow/internal/model"
	"ticketflow/internal/payment"
)

type outcome int

const (
	outcomeIgnored outcome = iota
	outcomeSucceeded
	outcomeExpired
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeSucceeded:
		return "succeeded"
	case outcomeExpired:
		return "expired"
	case outcomeFailed:
		return "failed"
	}
	return "ignored"
}

func classify(eventType string) outcome {
	switch eventType {
	case payment.EventSessionCompleted, payment.EventSessionAsyncSucceeded, payment.EventPaymentIntentSucceeded:
		return outcomeSucceeded
	case payment.EventSessionExpired:
		return outcomeExpired
	case payment.EventPaymentIntentFailed, payment.EventSessionAsyncFailed:
		return outcomeFailed
	}
	return outcomeIgnored
}

// nextState returns the state a reservation moves to for an outcome, and
// false when the event must not change anything. confirmed/paid is final.
func nextState(status model.RegistrationStatus, paid model.PaymentStatus, o outcome) (model.StatusUpdate, bool) {
	if status == model.StatusConfirmed && paid == model.PaymentPaid {
		return model.StatusUpdate{}, false
	}

	switch o {
	case outcomeSucceeded:
		if paid == model.PaymentPaid {
			return model.StatusUpdate{}, false
		}
		return model.StatusUpdate{Status: model.StatusConfirmed, PaymentStatus: model.PaymentPaid}, true
	case outcomeExpired:
		if paid == model.PaymentPaid || (status == model.StatusCancelled && paid == model.PaymentFailed) {
			return model.StatusUpdate{}, false
		}
		return model.StatusUpdate{Status: model.StatusCancelled, PaymentStatus: model.PaymentFailed}, true
	case outcomeFailed:
		if status != model.StatusPending || paid == model.PaymentFailed {
			return model.StatusUpdate{}, false
		}
		return model.StatusUpdate{Status: model.StatusPending, PaymentStatus: model.PaymentFailed}, true
	}
	return model.StatusUpdate{}, false
}
