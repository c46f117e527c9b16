package service

import (
	"fmt"

	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/user"
)

// Action is an operation checked by the access policy.
type Action string

const (
	ActionReadPublic     Action = "read_public"
	ActionSubmitRequest  Action = "submit_request"
	ActionWriteContent   Action = "write_content"
	ActionReadRequests   Action = "read_requests"
	ActionManageRequests Action = "manage_requests"
	ActionEnterAdmin     Action = "enter_admin"
)

// openActions are allowed for anyone, identified or not.
var openActions = map[Action]bool{
	ActionReadPublic:    true,
	ActionSubmitRequest: true,
}

// Authorize checks whether id may perform action on siteID. Every other
// action than the open ones requires an admin scoped to the site.
func Authorize(id *user.Identity, action Action, siteID string) error {
	if openActions[action] {
		return nil
	}
	if id == nil || id.Anonymous {
		return fmt.Errorf("%w: %s needs a signed-in admin", domain.ErrUnauthenticated, action)
	}
	if !id.CanAdminister(siteID) {
		return fmt.Errorf("%w: %s on site %q", domain.ErrForbidden, action, siteID)
	}
	return nil
}
