// Package view models the two top-level screens of a site and the live
// streams each one displays.
package view

import (
	"net/url"
	"slices"

	"github.com/Strob0t/sitecms/internal/domain/event"
	"github.com/Strob0t/sitecms/internal/domain/site"
)

// Mode is the top-level screen.
type Mode string

const (
	ModePublic Mode = "public"
	ModeAdmin  Mode = "admin"
)

// Tab is the admin panel section.
type Tab string

const (
	TabNews     Tab = "news"
	TabProjects Tab = "projects"
	TabPages    Tab = "pages"
	TabRequests Tab = "requests"
)

// DefaultTab is the admin section shown when none is requested.
const DefaultTab = TabNews

// Tabs lists the admin sections in display order.
var Tabs = []Tab{TabNews, TabProjects, TabPages, TabRequests}

// Valid reports whether t is a known tab.
func (t Tab) Valid() bool {
	return slices.Contains(Tabs, t)
}

// Collection returns the collection listed under the tab.
func (t Tab) Collection() event.Collection {
	switch t {
	case TabProjects:
		return event.CollectionProjects
	case TabPages:
		return event.CollectionPages
	case TabRequests:
		return event.CollectionRequests
	default:
		return event.CollectionNews
	}
}

// Order is the ordering a stream is delivered in.
type Order string

const (
	OrderNewest   Order = "newest"
	OrderProgress Order = "progress"
)

// Stream is one live list shown by a view.
type Stream struct {
	Collection event.Collection `json:"collection"`
	SiteID     string           `json:"site_id"`
	Order      Order            `json:"order"`
}

// Name identifies the stream in snapshot messages.
func (s Stream) Name() string {
	return string(s.Collection)
}

// State is the router state: which site, which screen and which admin tab.
type State struct {
	SiteID string `json:"site_id"`
	Mode   Mode   `json:"view"`
	Tab    Tab    `json:"tab,omitempty"`
}

// Query parameter names carried in the location.
const (
	ParamSite = "siteId"
	ParamView = "view"
	ParamTab  = "tab"
)

// FromQuery reads the initial state from location parameters. A missing
// or unknown view opens the public screen.
func FromQuery(q url.Values, defaultSite string) State {
	s := State{
		SiteID: q.Get(ParamSite),
		Mode:   Mode(q.Get(ParamView)),
		Tab:    Tab(q.Get(ParamTab)),
	}
	return s.Normalize(defaultSite)
}

// Normalize sanitizes the site id and fills defaults for mode and tab.
// The public screen carries no tab.
func (s State) Normalize(defaultSite string) State {
	s.SiteID = site.Resolve(s.SiteID, defaultSite)
	if s.Mode != ModeAdmin {
		s.Mode = ModePublic
	}
	switch {
	case s.Mode == ModePublic:
		s.Tab = ""
	case !s.Tab.Valid():
		s.Tab = DefaultTab
	}
	return s
}

// Query renders the canonical location parameters for s.
func (s State) Query() url.Values {
	q := url.Values{}
	q.Set(ParamSite, s.SiteID)
	q.Set(ParamView, string(s.Mode))
	if s.Mode == ModeAdmin && s.Tab != "" {
		q.Set(ParamTab, string(s.Tab))
	}
	return q
}

// Streams returns the live lists the state displays. The public screen
// shows pages, news and project cards ordered by progress; an admin tab
// shows its single collection newest first.
func (s State) Streams() []Stream {
	if s.Mode == ModeAdmin {
		return []Stream{{Collection: s.Tab.Collection(), SiteID: s.SiteID, Order: OrderNewest}}
	}
	return []Stream{
		{Collection: event.CollectionPages, SiteID: s.SiteID, Order: OrderNewest},
		{Collection: event.CollectionNews, SiteID: s.SiteID, Order: OrderNewest},
		{Collection: event.CollectionProjects, SiteID: s.SiteID, Order: OrderProgress},
	}
}
