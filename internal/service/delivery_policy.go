package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/Lixing-Zhang/storefront/internal/config"
	"github.com/Lixing-Zhang/storefront/internal/models"
)

// DeliveryPolicy holds the business-hour rules applied to delivery orders
type DeliveryPolicy struct {
	ServiceAreaPrefix string
	LeadTime          time.Duration
	ClosedWeekday     time.Weekday
	WindowStart       config.TimeOfDay
	WindowEnd         config.TimeOfDay
	Location          *time.Location
}

// NewDeliveryPolicy builds the policy from configuration
func NewDeliveryPolicy(cfg config.DeliveryConfig) DeliveryPolicy {
	return DeliveryPolicy{
		ServiceAreaPrefix: cfg.ServiceAreaPrefix,
		LeadTime:          cfg.LeadTime,
		ClosedWeekday:     cfg.ClosedWeekday,
		WindowStart:       cfg.WindowStart,
		WindowEnd:         cfg.WindowEnd,
		Location:          cfg.Location,
	}
}

func (p DeliveryPolicy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// ParseDesired parses a desired_datetime value as wall-clock time in the shop's zone
func (p DeliveryPolicy) ParseDesired(value string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DateTimeLayout, value, p.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, value)
	}
	return t, nil
}

// Check applies the delivery rules in order: service area, lead time, closed
// day, then the delivery window. The window compares hours and minutes only
// and includes both bounds.
func (p DeliveryPolicy) Check(address string, desired, now time.Time) error {
	prefix := strings.ToLower(strings.TrimSpace(p.ServiceAreaPrefix))
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(address)), prefix) {
		return fmt.Errorf("%w: delivery is available only within %s", ErrOutOfServiceArea, p.ServiceAreaPrefix)
	}

	// Desired times have whole seconds, so round the earliest one up to match.
	earliest := now.In(p.location()).Add(p.LeadTime)
	if whole := earliest.Truncate(time.Second); whole.Before(earliest) {
		earliest = whole.Add(time.Second)
	}
	if desired.Before(earliest) {
		return fmt.Errorf("%w: delivery is possible no earlier than %s", ErrLeadTime, earliest.Format(models.DateTimeLayout))
	}

	if desired.Weekday() == p.ClosedWeekday {
		return fmt.Errorf("%w: no deliveries on %s", ErrClosedDay, p.ClosedWeekday)
	}

	minutes := desired.Hour()*60 + desired.Minute()
	if minutes < p.WindowStart.Minutes() || minutes > p.WindowEnd.Minutes() {
		return fmt.Errorf("%w: deliveries run from %s to %s", ErrOutOfHours, p.WindowStart, p.WindowEnd)
	}

	return nil
}
