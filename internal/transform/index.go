package transform

import (
	"github.com/jittakal/kafrecordstore/internal/schema"
)

// renameTarget is the canonical name a key maps to. rank orders competing
// keys for the same field: 0 for the canonical name, i+1 for the i-th alias.
type renameTarget struct {
	canonical string
	rank      int
}

// Index holds the lookup tables derived from a schema. It has no mutating
// methods and every accessor returns copies, so it is safe for concurrent use.
type Index struct {
	fields     []string
	rename     map[string]renameTarget
	defaults   map[string]schema.Default
	transforms map[string]Expr
	casts      map[string]schema.TypeList
}

// BuildIndex builds the rename, default, transform and cast tables. When two
// fields claim the same name or alias the first declaration wins. The only
// failure is a transform expression that matches no registered transform.
func BuildIndex(s *schema.Schema) (*Index, error) {
	idx := &Index{
		fields:     make([]string, 0, len(s.Fields)),
		rename:     make(map[string]renameTarget),
		defaults:   make(map[string]schema.Default, len(s.Fields)),
		transforms: make(map[string]Expr),
		casts:      make(map[string]schema.TypeList, len(s.Fields)),
	}

	for _, f := range s.Fields {
		if _, ok := idx.rename[f.Name]; !ok {
			idx.rename[f.Name] = renameTarget{canonical: f.Name}
		}
		for i, alias := range f.Aliases {
			if _, ok := idx.rename[alias]; !ok {
				idx.rename[alias] = renameTarget{canonical: f.Name, rank: i + 1}
			}
		}
	}

	for _, f := range s.Fields {
		if _, ok := idx.defaults[f.Name]; ok {
			continue
		}
		idx.fields = append(idx.fields, f.Name)
		idx.defaults[f.Name] = f.Default.Copy()
	}

	for _, f := range s.Fields {
		if _, ok := idx.casts[f.Name]; !ok {
			idx.casts[f.Name] = append(schema.TypeList(nil), f.Type...)
		}
	}

	for _, f := range s.Fields {
		if f.Transform == "" {
			continue
		}
		if _, ok := idx.transforms[f.Name]; ok {
			continue
		}
		expr, err := ParseExpr(f.Name, f.Transform)
		if err != nil {
			return nil, err
		}
		idx.transforms[f.Name] = expr
	}

	return idx, nil
}

// Fields returns the canonical field names in declaration order.
func (idx *Index) Fields() []string {
	return append([]string(nil), idx.fields...)
}

// Canonical returns the canonical name for a field name or alias.
func (idx *Index) Canonical(name string) (string, bool) {
	t, ok := idx.rename[name]
	return t.canonical, ok
}

// Names returns every known name and alias with its canonical name.
func (idx *Index) Names() map[string]string {
	out := make(map[string]string, len(idx.rename))
	for name, t := range idx.rename {
		out[name] = t.canonical
	}
	return out
}

// Default returns a copy of the declared default of a field.
func (idx *Index) Default(field string) (schema.Default, bool) {
	d, ok := idx.defaults[field]
	return d.Copy(), ok
}

// Transform returns the parsed transform of a field.
func (idx *Index) Transform(field string) (Expr, bool) {
	e, ok := idx.transforms[field]
	return e, ok
}

// Types returns the declared type tags of a field.
func (idx *Index) Types(field string) (schema.TypeList, bool) {
	t, ok := idx.casts[field]
	if !ok {
		return nil, false
	}
	return append(schema.TypeList(nil), t...), true
}
