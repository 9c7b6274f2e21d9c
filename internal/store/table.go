package store

import (
	"fmt"

	"marketReplay/internal/ports"
)

// EventKind is the kind of mutation reported to table observers.
type EventKind string

const (
	EventCreate EventKind = "create"
	EventUpdate EventKind = "update"
	EventRemove EventKind = "remove"
	EventImport EventKind = "import"
)

// Event is delivered to observers after a mutation has been applied.
type Event[T any] struct {
	Kind   EventKind
	Entity *T
}

// Observer is a synchronous mutation callback.
type Observer[T any] func(Event[T])

// Table is a generic entity table with auto-increment ids starting at 1.
// Secondary indices are owned by the wrapping store and registered with
// SetIndexer; the table unsets and resets them around every mutation, before
// observers run.
type Table[T any] struct {
	name      string
	idOf      func(*T) int64
	setID     func(*T, int64)
	entities  map[int64]*T
	ids       *IDSet
	nextID    int64
	observers []Observer[T]

	index   func(*T)
	unindex func(*T)
}

// NewTable creates an empty table. idOf and setID access the entity id field.
func NewTable[T any](name string, idOf func(*T) int64, setID func(*T, int64)) *Table[T] {
	return &Table[T]{
		name:     name,
		idOf:     idOf,
		setID:    setID,
		entities: make(map[int64]*T),
		ids:      NewIDSet(),
		nextID:   1,
	}
}

// SetIndexer registers the secondary index hooks of the wrapping store.
func (t *Table[T]) SetIndexer(index, unindex func(*T)) {
	t.index = index
	t.unindex = unindex
}

func (t *Table[T]) set(e *T) {
	if t.index != nil {
		t.index(e)
	}
}

func (t *Table[T]) unset(e *T) {
	if t.unindex != nil {
		t.unindex(e)
	}
}

// Observe registers fn. Observers run in registration order after each mutation.
func (t *Table[T]) Observe(fn Observer[T]) {
	t.observers = append(t.observers, fn)
}

func (t *Table[T]) notify(kind EventKind, entity *T) {
	for _, fn := range t.observers {
		fn(Event[T]{Kind: kind, Entity: entity})
	}
}

// Create assigns the next id to entity, stores it and returns it.
func (t *Table[T]) Create(entity *T) *T {
	id := t.nextID
	t.nextID++
	t.setID(entity, id)
	t.entities[id] = entity
	t.ids.Add(id)
	t.set(entity)
	t.notify(EventCreate, entity)
	return entity
}

// Get returns the entity with id.
func (t *Table[T]) Get(id int64) (*T, bool) {
	e, ok := t.entities[id]
	return e, ok
}

// MustGet returns the entity with id or an ErrNotFound error.
func (t *Table[T]) MustGet(id int64) (*T, error) {
	e, ok := t.entities[id]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", t.name, id, ports.ErrNotFound)
	}
	return e, nil
}

// Update applies mutate to the stored entity. The id cannot be changed.
func (t *Table[T]) Update(id int64, mutate func(*T)) (*T, error) {
	e, err := t.MustGet(id)
	if err != nil {
		return nil, err
	}
	t.unset(e)
	mutate(e)
	t.setID(e, id)
	t.set(e)
	t.notify(EventUpdate, e)
	return e, nil
}

// Remove deletes the entity with id and returns it.
func (t *Table[T]) Remove(id int64) (*T, bool) {
	e, ok := t.entities[id]
	if !ok {
		return nil, false
	}
	t.unset(e)
	delete(t.entities, id)
	t.ids.Remove(id)
	t.notify(EventRemove, e)
	return e, true
}

// Import stores entities keeping their ids. Later creates continue after the
// highest imported id.
func (t *Table[T]) Import(entities []*T) error {
	for _, e := range entities {
		id := t.idOf(e)
		if id <= 0 {
			return fmt.Errorf("import %s with id %d: %w", t.name, id, ports.ErrInvalidRequest)
		}
		if _, exists := t.entities[id]; exists {
			return fmt.Errorf("import %s %d: %w", t.name, id, ports.ErrDuplicateEntry)
		}
		t.entities[id] = e
		t.ids.Add(id)
		if id >= t.nextID {
			t.nextID = id + 1
		}
		t.set(e)
		t.notify(EventImport, e)
	}
	return nil
}

// All returns every entity in id order.
func (t *Table[T]) All() []*T {
	ids := t.ids.IDs()
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.entities[id])
	}
	return out
}

// Len returns the number of stored entities.
func (t *Table[T]) Len() int {
	return len(t.entities)
}
