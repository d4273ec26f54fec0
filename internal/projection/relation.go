// Package projection holds the typed relationship views embedded in response
// projections. A relationship is either populated or was not requested by the
// caller; it never holds a partial result.
package projection

import (
	"encoding/json"
	"fmt"
)

const (
	statePopulated    = "populated"
	stateNotRequested = "not_requested"
)

// Relation is a to-many relationship view.
type Relation[T any] struct {
	populated bool
	items     []T
}

func Populated[T any](items []T) Relation[T] {
	if items == nil {
		items = []T{}
	}
	return Relation[T]{populated: true, items: items}
}

func NotRequested[T any]() Relation[T] { return Relation[T]{} }

// Items returns the related items and whether they were populated.
func (r Relation[T]) Items() ([]T, bool) { return r.items, r.populated }

type relationJSON[T any] struct {
	State string `json:"state"`
	Items []T    `json:"items,omitempty"`
}

func (r Relation[T]) MarshalJSON() ([]byte, error) {
	if !r.populated {
		return json.Marshal(relationJSON[T]{State: stateNotRequested})
	}
	// keep an empty list visible
	return json.Marshal(struct {
		State string `json:"state"`
		Items []T    `json:"items"`
	}{statePopulated, r.items})
}

func (r *Relation[T]) UnmarshalJSON(b []byte) error {
	var v relationJSON[T]
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.State {
	case statePopulated:
		*r = Populated(v.Items)
	case stateNotRequested:
		*r = NotRequested[T]()
	default:
		return fmt.Errorf("unknown relation state %q", v.State)
	}
	return nil
}

// Link is a to-one relationship view. A populated link may still be empty,
// e.g. a task without an executor.
type Link[T any] struct {
	populated bool
	item      *T
}

func PopulatedLink[T any](item *T) Link[T] { return Link[T]{populated: true, item: item} }

func LinkNotRequested[T any]() Link[T] { return Link[T]{} }

// Item returns the linked item, nil when empty, and whether it was populated.
func (l Link[T]) Item() (*T, bool) { return l.item, l.populated }

type linkJSON[T any] struct {
	State string `json:"state"`
	Item  *T     `json:"item,omitempty"`
}

func (l Link[T]) MarshalJSON() ([]byte, error) {
	if !l.populated {
		return json.Marshal(linkJSON[T]{State: stateNotRequested})
	}
	// an empty link marshals as "item": null
	return json.Marshal(struct {
		State string `json:"state"`
		Item  *T     `json:"item"`
	}{statePopulated, l.item})
}

func (l *Link[T]) UnmarshalJSON(b []byte) error {
	var v linkJSON[T]
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.State {
	case statePopulated:
		*l = PopulatedLink(v.Item)
	case stateNotRequested:
		*l = LinkNotRequested[T]()
	default:
		return fmt.Errorf("unknown relation state %q", v.State)
	}
	return nil
}
