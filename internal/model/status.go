package model

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a lifecycle change is not allowed
var ErrInvalidTransition = errors.New("invalid status transition")

// PayoutStatus is a state of the payout lifecycle
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutRejected   PayoutStatus = "rejected"
)

var payoutGraph = map[PayoutStatus][]PayoutStatus{
	PayoutPending:    {PayoutProcessing, PayoutRejected},
	PayoutProcessing: {PayoutCompleted, PayoutFailed},
}

// CanTransition reports whether a payout may move from s to next
func (s PayoutStatus) CanTransition(next PayoutStatus) bool {
	return contains(payoutGraph[s], next)
}

// Open reports whether the payout still reserves balance
func (s PayoutStatus) Open() bool {
	return s == PayoutPending || s == PayoutProcessing
}

// Valid reports whether s is a known payout status
func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutPending, PayoutProcessing, PayoutCompleted, PayoutFailed, PayoutRejected:
		return true
	}
	return false
}

// RequestStatus is a state of the number request lifecycle
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestRejected  RequestStatus = "rejected"
)

var requestGraph = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestApproved, RequestRejected},
	RequestApproved: {RequestFulfilled},
}

// CanTransition reports whether a request may move from s to next
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	return contains(requestGraph[s], next)
}

// Valid reports whether s is a known request status
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestFulfilled, RequestRejected:
		return true
	}
	return false
}

// MessageStatus is a state of an inbox message
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageResponded MessageStatus = "responded"
	MessageArchived  MessageStatus = "archived"
)

var messageGraph = map[MessageStatus][]MessageStatus{
	MessagePending: {MessageResponded, MessageArchived},
}

// CanTransition reports whether a message may move from s to next.
// Going back to pending is a reset and is not part of the graph.
func (s MessageStatus) CanTransition(next MessageStatus) bool {
	return contains(messageGraph[s], next)
}

// Valid reports whether s is a known message status
func (s MessageStatus) Valid() bool {
	switch s {
	case MessagePending, MessageResponded, MessageArchived:
		return true
	}
	return false
}

// TransitionError wraps ErrInvalidTransition with the attempted edge
func TransitionError[S ~string](from, to S) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func contains[S comparable](list []S, v S) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
