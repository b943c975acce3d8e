// Package generator builds sample records for a schema in the raw shapes
// producers send before normalization: aliased keys, integer flags, numbers
// as strings and omitted optional fields.
package generator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jaswdr/faker"

	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/internal/transform"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Config controls the shape of generated records. Ratios are between 0 and 1.
type Config struct {
	// AliasRatio is the chance a field is keyed by one of its aliases.
	AliasRatio float64
	// OmitRatio is the chance a field with a default is left out.
	OmitRatio float64
	// NullRatio is the chance a nullable field is null.
	NullRatio float64
	// StringNumberRatio is the chance a number is sent as a string.
	StringNumberRatio float64
	// InvalidRatio is the share of records Next makes unnormalizable.
	InvalidRatio float64
}

// DefaultConfig returns ratios that exercise every stage.
func DefaultConfig() Config {
	return Config{
		AliasRatio:        0.5,
		OmitRatio:         0.3,
		NullRatio:         0.1,
		StringNumberRatio: 0.2,
	}
}

type field struct {
	schema.Field
	expr *transform.Expr
}

// Generator generates records for one schema. It is not safe for
// concurrent use.
type Generator struct {
	fields []field
	config Config
	faker  faker.Faker
	now    func() time.Time
}

// New creates a generator for s.
func New(s *schema.Schema, config Config) (*Generator, error) {
	fields := make([]field, 0, len(s.Fields))
	for _, f := range s.Fields {
		gf := field{Field: f}
		if f.Transform != "" {
			expr, err := transform.ParseExpr(f.Name, f.Transform)
			if err != nil {
				return nil, err
			}
			gf.expr = &expr
		}
		fields = append(fields, gf)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema %q has no fields", s.Name)
	}

	return &Generator{
		fields: fields,
		config: config,
		faker:  faker.New(),
		now:    time.Now,
	}, nil
}

// Next returns a record and whether it is expected to normalize.
func (g *Generator) Next() (record.Record, bool) {
	if g.chance(g.config.InvalidRatio) {
		if rec, ok := g.Invalid(); ok {
			return rec, false
		}
	}
	return g.Record(), true
}

// Record returns a record the schema normalizes.
func (g *Generator) Record() record.Record {
	rec := make(record.Record, len(g.fields))
	for _, f := range g.fields {
		if f.Default.Present() && g.chance(g.config.OmitRatio) {
			continue
		}
		if f.expr != nil && f.expr.Kind == transform.CopyFrom {
			// The transform overwrites the value; the key only has to be present.
			rec[g.key(f)] = nil
			continue
		}
		rec[g.key(f)] = g.value(f)
	}

	// A copyFrom field needs its source present once renamed.
	for _, f := range g.fields {
		if f.expr == nil || f.expr.Kind != transform.CopyFrom {
			continue
		}
		if !g.isSet(rec, f.expr.Source) {
			if src, found := g.field(f.expr.Source); found {
				rec[src.Name] = g.value(src)
			} else {
				delete(rec, g.present(rec, f))
			}
		}
	}
	return rec
}

// Invalid returns a record that fails normalization: a numeric field holding
// text, or a required field left out. ok is false when the schema has
// neither.
func (g *Generator) Invalid() (record.Record, bool) {
	rec := g.Record()
	for _, f := range g.fields {
		if f.expr != nil {
			continue
		}
		switch f.Type.Primary() {
		case schema.TypeInt, schema.TypeLong, schema.TypeFloat, schema.TypeDouble:
			if f.Type.Nullable() || hasTag(f.Type, schema.TypeString) {
				continue
			}
			delete(rec, g.present(rec, f))
			rec[f.Name] = "not-a-" + string(f.Type.Primary())
			return rec, true
		}
	}
	for _, f := range g.fields {
		if !f.Default.Present() && f.expr == nil {
			delete(rec, g.present(rec, f))
			return rec, true
		}
	}
	return nil, false
}

func (g *Generator) value(f field) any {
	if f.Type.Nullable() && g.chance(g.config.NullRatio) {
		return nil
	}
	if f.expr != nil && f.expr.Kind == transform.Int2Boolean {
		return g.number(int64(g.faker.IntBetween(0, 1)))
	}

	name := strings.ToLower(f.Name)
	switch f.Type.Primary() {
	case schema.TypeNull:
		return nil
	case schema.TypeString:
		switch {
		case strings.Contains(name, "url"):
			return g.faker.Internet().URL()
		case strings.Contains(name, "email"):
			return g.faker.Internet().Email()
		case strings.Contains(name, "date"):
			days := g.faker.IntBetween(0, 30)
			return g.now().AddDate(0, 0, -days).UTC().Format(time.DateOnly)
		case strings.Contains(name, "name"):
			return g.faker.Person().Name()
		default:
			return g.faker.Lorem().Word()
		}
	case schema.TypeInt:
		return g.number(int64(g.faker.IntBetween(0, 100000)))
	case schema.TypeLong:
		if strings.Contains(name, "time") || name == "ts" {
			return g.number(g.now().UnixMilli())
		}
		return g.number(int64(g.faker.IntBetween(0, 1000000)))
	case schema.TypeFloat, schema.TypeDouble:
		return float64(g.faker.IntBetween(0, 1000000)) / 100
	case schema.TypeBoolean:
		return g.faker.Boolean().Bool()
	default:
		return g.faker.Lorem().Word()
	}
}

func (g *Generator) number(n int64) any {
	if g.chance(g.config.StringNumberRatio) {
		return strconv.FormatInt(n, 10)
	}
	return n
}

// key returns the name or one of the aliases of f.
func (g *Generator) key(f field) string {
	if len(f.Aliases) == 0 || !g.chance(g.config.AliasRatio) {
		return f.Name
	}
	return f.Aliases[g.faker.IntBetween(0, len(f.Aliases)-1)]
}

// present returns the key under which f is set in rec, or its name.
func (g *Generator) present(rec record.Record, f field) string {
	if _, ok := rec[f.Name]; ok {
		return f.Name
	}
	for _, alias := range f.Aliases {
		if _, ok := rec[alias]; ok {
			return alias
		}
	}
	return f.Name
}

// isSet reports whether the field named name is set under any of its keys.
func (g *Generator) isSet(rec record.Record, name string) bool {
	f, ok := g.field(name)
	if !ok {
		_, set := rec[name]
		return set
	}
	_, set := rec[g.present(rec, f)]
	return set
}

func (g *Generator) field(name string) (field, bool) {
	for _, f := range g.fields {
		if f.Name == name {
			return f, true
		}
	}
	return field{}, false
}

func hasTag(types schema.TypeList, tag schema.TypeTag) bool {
	for _, t := range types {
		if t == tag {
			return true
		}
	}
	return false
}

func (g *Generator) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return g.faker.IntBetween(1, 1000) <= int(p*1000)
}
