package service

import (
	"errors"
	"fmt"
)

// ErrValidation marks malformed client input that is not covered by a more
// specific order rule, such as unparsable price or quantity fields
var ErrValidation = errors.New("validation failed")

// Order placement rules, checked in this order
var (
	ErrMissingField          = errors.New("missing required field")
	ErrInvalidQuantity       = fmt.Errorf("%w: item quantity must be positive", ErrValidation)
	ErrInvalidDeliveryMethod = errors.New(`invalid delivery method, use "pickup" or "delivery"`)
	ErrMissingAddress        = errors.New("address is required for delivery")
	ErrInvalidDateTime       = errors.New("invalid desired_datetime, use YYYY-MM-DD HH:MM:SS")
	ErrOutOfServiceArea      = errors.New("address is outside the delivery area")
	ErrLeadTime              = errors.New("desired time is too soon")
	ErrClosedDay             = errors.New("no deliveries on this day")
	ErrOutOfHours            = errors.New("desired time is outside delivery hours")
)
