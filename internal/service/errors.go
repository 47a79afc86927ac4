package service

import "errors"

var (
	// ErrUnauthenticated is returned for calls without a user identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrItemNotFound is returned when the item is not in the caller's list.
	ErrItemNotFound = errors.New("shopping item not found")
	// ErrUnknownField is returned by EditField for fields that cannot be
	// edited in place.
	ErrUnknownField = errors.New("field cannot be edited")
	// ErrAlreadyPurchased is returned when a purchase is started on an
	// item that is already purchased.
	ErrAlreadyPurchased = errors.New("shopping item already purchased")
	// ErrNoPendingConfirmation is returned when confirming a purchase that
	// was never started, was cancelled or has expired.
	ErrNoPendingConfirmation = errors.New("no purchase awaiting confirmation")
	// ErrPurchaseInProgress is returned while a confirmed purchase is
	// being written.
	ErrPurchaseInProgress = errors.New("purchase is being committed")
)
