// Package event defines the change notifications that drive live queries.
package event

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Collection is a logical document collection.
type Collection string

const (
	CollectionPages    Collection = "pages"
	CollectionNews     Collection = "news"
	CollectionProjects Collection = "projects"
	CollectionRequests Collection = "requests"
)

// Collections lists every logical collection.
var Collections = []Collection{CollectionPages, CollectionNews, CollectionProjects, CollectionRequests}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	return slices.Contains(Collections, c)
}

// Op identifies the kind of write that produced a Change.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change is published after every successful document write. Subscribers
// only need (Namespace, Collection, SiteID) to decide whether to reload.
type Change struct {
	Namespace  string     `json:"namespace"`
	Collection Collection `json:"collection"`
	SiteID     string     `json:"site_id"`
	Op         Op         `json:"op"`
	DocID      string     `json:"doc_id"`
	At         time.Time  `json:"at"`
}

// Key identifies the live query a change invalidates.
type Key struct {
	Namespace  string
	Collection Collection
	SiteID     string
}

// Key returns the live query key touched by c.
func (c Change) Key() Key {
	return Key{Namespace: c.Namespace, Collection: c.Collection, SiteID: c.SiteID}
}

// String renders the key as a cache/subject-safe path.
func (k Key) String() string {
	return k.Namespace + "." + string(k.Collection) + "." + k.SiteID
}

// Subject returns the message subject a change is published on under prefix.
func (c Change) Subject(prefix string) string {
	return prefix + "." + c.Key().String()
}

// ParseSubject recovers the key from a subject produced by Subject.
// Namespaces and site IDs never contain dots.
func ParseSubject(prefix, subject string) (Key, error) {
	rest, ok := strings.CutPrefix(subject, prefix+".")
	if !ok {
		return Key{}, fmt.Errorf("subject %q outside prefix %q", subject, prefix)
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("subject %q: want namespace.collection.site", subject)
	}
	k := Key{Namespace: parts[0], Collection: Collection(parts[1]), SiteID: parts[2]}
	if !k.Collection.Valid() {
		return Key{}, fmt.Errorf("subject %q: unknown collection %q", subject, parts[1])
	}
	return k, nil
}
