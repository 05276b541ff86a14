package pointer

// Handler receives dispatched events
type Handler func(Event)

// Document is the document-level listener registry. Crop widgets subscribe to
// it only while a gesture is active so they keep tracking the pointer after it
// leaves the widget bounds.
//
// A Document is not safe for concurrent use; events are dispatched from a
// single UI loop.
type Document struct {
	handlers map[int]Handler
	order    []int
	next     int
}

// NewDocument creates an empty registry
func NewDocument() *Document {
	return &Document{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns the function that removes it. Calling the
// returned function more than once is harmless.
func (d *Document) Subscribe(h Handler) func() {
	id := d.next
	d.next++
	d.handlers[id] = h
	d.order = append(d.order, id)

	return func() {
		if _, ok := d.handlers[id]; !ok {
			return
		}
		delete(d.handlers, id)
		for i, v := range d.order {
			if v == id {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
}

// Dispatch delivers e to every subscriber registered when dispatch started.
// Handlers may unsubscribe themselves or others while being called.
func (d *Document) Dispatch(e Event) {
	ids := make([]int, len(d.order))
	copy(ids, d.order)

	for _, id := range ids {
		if h, ok := d.handlers[id]; ok {
			h(e)
		}
	}
}

// Len returns the number of live subscriptions
func (d *Document) Len() int {
	return len(d.handlers)
}
