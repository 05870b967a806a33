package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/mdpwire/internal/field"
	"github.com/danmuck/mdpwire/internal/sbe"
	gotoml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// SchemaFile is a TOML catalogue of message templates.
type SchemaFile struct {
	SchemaID  uint16        `toml:"schema_id"`
	Version   uint16        `toml:"version"`
	Templates []TemplateDef `toml:"templates"`
}

type TemplateDef struct {
	ID          uint16     `toml:"id"`
	Name        string     `toml:"name"`
	BlockLength int        `toml:"block_length"`
	Fields      []FieldDef `toml:"fields,omitempty"`
	Groups      []GroupDef `toml:"groups,omitempty"`
}

// GroupDef describes one repeating group. A group with nested groups, or
// with self_describing set, decodes each element through its own schema;
// any other group has fixed elements of block_length bytes.
type GroupDef struct {
	Name           string     `toml:"name"`
	BlockLength    int        `toml:"block_length"`
	SelfDescribing bool       `toml:"self_describing,omitempty"`
	CountField     string     `toml:"count_field,omitempty"`
	Fields         []FieldDef `toml:"fields,omitempty"`
	Groups         []GroupDef `toml:"groups,omitempty"`
}

type FieldDef struct {
	Name   string `toml:"name"`
	Type   string `toml:"type"`
	Length int    `toml:"length,omitempty"`
}

func LoadSchemaFile(path string) (SchemaFile, error) {
	var sf SchemaFile
	meta, err := toml.DecodeFile(path, &sf)
	if err != nil {
		return SchemaFile{}, fmt.Errorf("schema load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return SchemaFile{}, fmt.Errorf("schema parse failed (%s): unknown key %q", path, undecoded[0].String())
	}
	if err := ValidateSchemaFile(sf); err != nil {
		return SchemaFile{}, fmt.Errorf("schema invalid (%s): %w", path, err)
	}
	return sf, nil
}

// ParseSchema decodes and validates schema definitions held in memory.
// Unknown keys are rejected.
func ParseSchema(data string) (SchemaFile, error) {
	var sf SchemaFile
	dec := gotoml.NewDecoder(strings.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&sf); err != nil {
		return SchemaFile{}, fmt.Errorf("schema parse failed: %w", err)
	}
	if err := ValidateSchemaFile(sf); err != nil {
		return SchemaFile{}, fmt.Errorf("schema invalid: %w", err)
	}
	return sf, nil
}

// MarshalSchema renders sf as TOML with empty optional keys left out.
func MarshalSchema(sf SchemaFile) ([]byte, error) {
	if err := ValidateSchemaFile(sf); err != nil {
		return nil, fmt.Errorf("schema invalid: %w", err)
	}
	out, err := gotoml.Marshal(sf)
	if err != nil {
		return nil, fmt.Errorf("schema marshal failed: %w", err)
	}
	return out, nil
}

func ValidateSchemaFile(sf SchemaFile) error {
	seen := make(map[uint16]string, len(sf.Templates))
	for i, t := range sf.Templates {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("template[%d] missing name", i)
		}
		if prev, ok := seen[t.ID]; ok {
			return fmt.Errorf("template %s reuses id %d of %s", t.Name, t.ID, prev)
		}
		seen[t.ID] = t.Name
		if err := validateBlock(t.Name, t.BlockLength, t.Fields); err != nil {
			return err
		}
		if err := validateGroups(t.Name, t.Groups, t.Fields); err != nil {
			return err
		}
	}
	return nil
}

func validateGroups(owner string, groups []GroupDef, siblings []FieldDef) error {
	names := make(map[string]struct{}, len(groups))
	for i, g := range groups {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("%s group[%d] missing name", owner, i)
		}
		if _, ok := names[g.Name]; ok {
			return fmt.Errorf("%s repeats group %s", owner, g.Name)
		}
		names[g.Name] = struct{}{}
		path := owner + "." + g.Name
		if g.BlockLength <= 0 || g.BlockLength > 0xffff {
			return fmt.Errorf("%s block_length must be between 1 and 65535, got %d", path, g.BlockLength)
		}
		if err := validateBlock(path, g.BlockLength, g.Fields); err != nil {
			return err
		}
		if g.CountField != "" && !hasField(siblings, g.CountField) {
			return fmt.Errorf("%s count_field %q is not a field of %s", path, g.CountField, owner)
		}
		if err := validateGroups(path, g.Groups, g.Fields); err != nil {
			return err
		}
	}
	return nil
}

func validateBlock(path string, blockLength int, defs []FieldDef) error {
	if blockLength < 0 || blockLength > 0xffff {
		return fmt.Errorf("%s block_length must be between 0 and 65535, got %d", path, blockLength)
	}
	fields, err := buildFields(defs)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if width := sbe.Fields(fields).Size(); width > blockLength {
		return fmt.Errorf("%s fields need %d bytes, block_length is %d", path, width, blockLength)
	}
	return nil
}

func hasField(defs []FieldDef, name string) bool {
	for _, d := range defs {
		if d.Name == name {
			return true
		}
	}
	return false
}

// BuildRegistry turns validated definitions into a template registry. With
// strict set, malformed group elements fail the whole message.
func BuildRegistry(sf SchemaFile, strict bool) (*sbe.Registry, error) {
	reg := sbe.NewRegistry()
	for _, t := range sf.Templates {
		schema, err := buildSchema(t.Name, t.BlockLength, t.Fields, t.Groups)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", t.Name, err)
		}
		if strict {
			schema = schema.Strict()
		}
		if err := reg.Register(t.ID, schema, uint16(t.BlockLength)); err != nil {
			return nil, err
		}
	}
	for _, err := range reg.Verify() {
		log.Warn().Err(err).Msg("config: block length mismatch")
	}
	log.Debug().
		Uint16("schema_id", sf.SchemaID).
		Uint16("version", sf.Version).
		Int("templates", len(sf.Templates)).
		Bool("strict", strict).
		Msg("config: registry built")
	return reg, nil
}

func buildSchema(name string, blockLength int, defs []FieldDef, groups []GroupDef) (sbe.Schema, error) {
	fields, err := buildFields(defs)
	if err != nil {
		return sbe.Schema{}, err
	}
	s := sbe.Schema{
		Name:   name,
		Block:  sbe.Block(blockLength, fields...),
		Groups: make([]sbe.GroupMember, 0, len(groups)),
	}
	for _, g := range groups {
		member, err := buildGroup(g)
		if err != nil {
			return sbe.Schema{}, fmt.Errorf("group %s: %w", g.Name, err)
		}
		s.Groups = append(s.Groups, member)
	}
	return s, nil
}

func buildGroup(g GroupDef) (sbe.GroupMember, error) {
	var rg sbe.RepeatingGroup
	if g.SelfDescribing || len(g.Groups) > 0 {
		element, err := buildSchema(g.Name, g.BlockLength, g.Fields, g.Groups)
		if err != nil {
			return sbe.GroupMember{}, err
		}
		rg = sbe.NestedGroup(g.Name, element)
	} else {
		fields, err := buildFields(g.Fields)
		if err != nil {
			return sbe.GroupMember{}, err
		}
		rg = sbe.FixedGroup(g.Name, g.BlockLength, sbe.Block(g.BlockLength, fields...))
	}
	if g.CountField != "" {
		rg.CountFrom = countFromField(g.CountField)
	}
	return sbe.Member(g.Name, uint16(g.BlockLength), rg), nil
}

// countFromField reads the declared count from a block field instead of the
// group's own count field.
func countFromField(name string) sbe.CountFunc {
	return func(ctx sbe.GroupContext) int {
		v, ok := ctx.Block.Get(name)
		if !ok {
			return ctx.NumInGroup
		}
		n, err := field.Int(v)
		if err != nil || n < 0 {
			return ctx.NumInGroup
		}
		return int(n)
	}
}

func buildFields(defs []FieldDef) ([]field.Named, error) {
	out := make([]field.Named, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("field missing name")
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("field %s declared twice", name)
		}
		seen[name] = struct{}{}
		c, err := field.Parse(d.Type, d.Length)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out = append(out, field.Named{Name: name, Codec: c})
	}
	return out, nil
}
