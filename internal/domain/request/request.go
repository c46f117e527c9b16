// Package request defines citizen service requests and their handling workflow.
package request

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/Strob0t/sitecms/internal/domain"
)

// Status is the handling state of a service request.
type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "InProgress"
	StatusDone       Status = "Done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Next returns the single forward step from s. Done has none.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusNew:
		return StatusInProgress, true
	case StatusInProgress:
		return StatusDone, true
	default:
		return "", false
	}
}

// CheckTransition reports whether moving from current to target is allowed.
// A forward step is always allowed. Re-applying a non-New status is allowed
// too: two admins racing on the same action both succeed and the later
// write re-stamps the handler.
func CheckTransition(current, target Status) error {
	if next, ok := current.Next(); ok && next == target {
		return nil
	}
	if target == current && current != StatusNew {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, target)
}

// AllowedFrom returns the prior statuses from which target may be written.
func AllowedFrom(target Status) []Status {
	switch target {
	case StatusInProgress:
		return []Status{StatusNew, StatusInProgress}
	case StatusDone:
		return []Status{StatusInProgress, StatusDone}
	default:
		return nil
	}
}

// ActionName is the forward action an admin can trigger on a request.
type ActionName string

const (
	ActionTake     ActionName = "take"
	ActionComplete ActionName = "complete"
)

// Action returns the action offered for a request in status s, if any.
func Action(s Status) (ActionName, bool) {
	switch s {
	case StatusNew:
		return ActionTake, true
	case StatusInProgress:
		return ActionComplete, true
	default:
		return "", false
	}
}

// Target returns the status an action moves a request to.
func (a ActionName) Target() (Status, error) {
	switch a {
	case ActionTake:
		return StatusInProgress, nil
	case ActionComplete:
		return StatusDone, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", domain.ErrValidation, a)
	}
}

// ServiceType is the category a citizen picks on the request form.
type ServiceType string

const (
	ServiceAppointment ServiceType = "appointment"
	ServiceReport      ServiceType = "report"
)

// ServiceTypes lists the selectable service types in form order.
var ServiceTypes = []ServiceType{ServiceAppointment, ServiceReport}

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	return slices.Contains(ServiceTypes, t)
}

// Request is a citizen-submitted service request.
type Request struct {
	ID             string      `json:"id"`
	SiteID         string      `json:"site_id"`
	RequesterName  string      `json:"requester_name"`
	RequesterEmail string      `json:"requester_email"`
	ServiceType    ServiceType `json:"service_type"`
	Description    string      `json:"description"`
	Status         Status      `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	CreatedBy      string      `json:"created_by"`
	HandledBy      string      `json:"handled_by,omitempty"`
	HandledAt      *time.Time  `json:"handled_at,omitempty"`
}

// MarshalJSON adds the action currently offered on the request, omitted
// once it is Done.
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	action, _ := Action(r.Status)
	return json.Marshal(struct {
		plain
		Action ActionName `json:"action,omitempty"`
	}{plain(r), action})
}

// CreateRequest is the input of the public service request form.
type CreateRequest struct {
	RequesterName  string      `json:"requester_name"`
	RequesterEmail string      `json:"requester_email"`
	ServiceType    ServiceType `json:"service_type"`
	Description    string      `json:"description"`
}

// Validate checks that every field is present and the email address parses.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.RequesterName) == "" {
		return fmt.Errorf("%w: requester_name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(r.RequesterEmail) == "" {
		return fmt.Errorf("%w: requester_email is required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(r.RequesterEmail); err != nil {
		return fmt.Errorf("%w: invalid email format", domain.ErrValidation)
	}
	if r.ServiceType == "" {
		return fmt.Errorf("%w: service_type is required", domain.ErrValidation)
	}
	if !r.ServiceType.Valid() {
		return fmt.Errorf("%w: unknown service_type %q", domain.ErrValidation, r.ServiceType)
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	return nil
}
