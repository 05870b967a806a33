package sbe

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTemplate  = errors.New("sbe: unknown template")
	ErrShortBuffer      = errors.New("sbe: short buffer")
	ErrMalformedElement = errors.New("sbe: malformed group element")
	ErrOversize         = errors.New("sbe: encoded value exceeds declared length")
	ErrTemplateExists   = errors.New("sbe: template already registered")
	ErrCountOverflow    = errors.New("sbe: element count does not fit count field")
	ErrMissingField     = errors.New("sbe: missing field value")
	ErrValueType        = errors.New("sbe: unexpected value type")
	ErrGroupOrder       = errors.New("sbe: group order mismatch")
)

// UnknownTemplateError is returned by a registry miss.
type UnknownTemplateError struct {
	TemplateID uint16
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("sbe: unknown template_id=%d", e.TemplateID)
}

func (e *UnknownTemplateError) Is(target error) bool { return target == ErrUnknownTemplate }

// ShortBufferError reports a structural read that ran out of bytes.
// These reads are never recovered from.
type ShortBufferError struct {
	Context string
	Need    int
	Have    int
}

func (e *ShortBufferError) Error() string {
	if e.Need < 0 {
		return fmt.Sprintf("sbe: short buffer reading %s: have %d bytes", e.Context, e.Have)
	}
	return fmt.Sprintf("sbe: short buffer reading %s: need %d bytes, have %d", e.Context, e.Need, e.Have)
}

func (e *ShortBufferError) Is(target error) bool { return target == ErrShortBuffer }

// MalformedElementError reports a group element whose own decode failed.
// Lenient groups absorb it into a Raw element.
type MalformedElementError struct {
	Group string
	Index int
	Err   error
}

func (e *MalformedElementError) Error() string {
	return fmt.Sprintf("sbe: group %q element %d malformed: %v", e.Group, e.Index, e.Err)
}

func (e *MalformedElementError) Unwrap() error { return e.Err }

func (e *MalformedElementError) Is(target error) bool { return target == ErrMalformedElement }
