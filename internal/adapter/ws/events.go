package ws

import (
	"github.com/Strob0t/sitecms/internal/domain/user"
	"github.com/Strob0t/sitecms/internal/domain/view"
)

// Event type constants for WebSocket messages.
const (
	EventIdentity = "identity"
	EventView     = "view"
	EventSnapshot = "snapshot"
	EventError    = "error"

	// EventNavigate is the only message a client sends.
	EventNavigate = "navigate"
)

// IdentityEvent is sent once the session identity is resolved. No snapshot
// is sent before it.
type IdentityEvent struct {
	UserID      string    `json:"user_id"`
	Role        user.Role `json:"role"`
	Anonymous   bool      `json:"anonymous"`
	Ready       bool      `json:"ready"`
	AccessToken string    `json:"access_token,omitempty"` //nolint:gosec // issued token, not a hardcoded secret
}

// ViewEvent is sent after every successful navigation.
type ViewEvent struct {
	State    view.State `json:"state"`
	Location string     `json:"location"`
}

// SnapshotEvent carries the full current result set of one stream.
type SnapshotEvent struct {
	Stream string     `json:"stream"`
	SiteID string     `json:"site_id"`
	Order  view.Order `json:"order"`
	Items  any        `json:"items"`
	Count  int        `json:"count"`
}

// ErrorEvent reports a failed navigation or snapshot load.
type ErrorEvent struct {
	Message string `json:"message"`
	Stream  string `json:"stream,omitempty"`
}

// NavigateCommand asks the session to move to another view.
type NavigateCommand struct {
	SiteID string    `json:"site_id"`
	View   view.Mode `json:"view"`
	Tab    view.Tab  `json:"tab,omitempty"`
}

// State returns the requested router state.
func (c NavigateCommand) State() view.State {
	return view.State{SiteID: c.SiteID, Mode: c.View, Tab: c.Tab}
}
