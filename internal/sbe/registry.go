package sbe

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Message is one decoded payload tagged with its template id.
type Message struct {
	TemplateID uint16
	Name       string
	Record     *Record
}

// Template is a registry entry.
type Template struct {
	ID uint16
	// BlockLength is the block length the feed declares for this template.
	// It is advisory: decode trusts the schema's block alignment.
	BlockLength uint16
	Schema      Schema
}

// Registry maps template ids to schemas. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	items map[uint16]Template
}

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[uint16]Template)}
}

// Register adds a schema under templateID.
func (r *Registry) Register(templateID uint16, schema Schema, blockLength uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[templateID]; ok {
		return fmt.Errorf("%w: template_id=%d", ErrTemplateExists, templateID)
	}
	r.items[templateID] = Template{ID: templateID, BlockLength: blockLength, Schema: schema}
	return nil
}

// Lookup returns the schema for templateID.
func (r *Registry) Lookup(templateID uint16) (Schema, error) {
	t, err := r.template(templateID)
	if err != nil {
		return Schema{}, err
	}
	return t.Schema, nil
}

// BlockLength returns the declared block length for templateID.
func (r *Registry) BlockLength(templateID uint16) (uint16, error) {
	t, err := r.template(templateID)
	if err != nil {
		return 0, err
	}
	return t.BlockLength, nil
}

func (r *Registry) template(templateID uint16) (Template, error) {
	r.mu.RLock()
	t, ok := r.items[templateID]
	r.mu.RUnlock()
	if !ok {
		return Template{}, &UnknownTemplateError{TemplateID: templateID}
	}
	return t, nil
}

// Templates returns every entry ordered by template id.
func (r *Registry) Templates() []Template {
	r.mu.RLock()
	list := make([]Template, 0, len(r.items))
	for _, t := range r.items {
		list = append(list, t)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

// Verify reports templates whose declared block length disagrees with the
// schema block alignment. Decode never performs this check.
func (r *Registry) Verify() []error {
	var errs []error
	for _, t := range r.Templates() {
		if int(t.BlockLength) != t.Schema.Block.Align {
			errs = append(errs, fmt.Errorf(
				"sbe: template_id=%d (%s) declares block_length=%d, schema block aligns to %d",
				t.ID, t.Schema.label(), t.BlockLength, t.Schema.Block.Align,
			))
		}
	}
	return errs
}

// Decode dispatches payload to the schema registered for templateID.
// Trailing bytes after the last group are ignored.
func (r *Registry) Decode(templateID uint16, payload []byte) (*Message, error) {
	schema, err := r.Lookup(templateID)
	if err != nil {
		return nil, err
	}
	rec, rest, err := schema.DecodeRecord(payload)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		log.Debug().
			Uint16("template_id", templateID).
			Int("trailing", len(rest)).
			Msg("sbe: payload has bytes past the last group")
	}
	return &Message{TemplateID: templateID, Name: schema.Name, Record: rec}, nil
}

// Encode serializes msg with the schema registered for its template id.
func (r *Registry) Encode(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrValueType)
	}
	schema, err := r.Lookup(msg.TemplateID)
	if err != nil {
		return nil, err
	}
	return schema.EncodeRecord(msg.Record)
}
