package metrics

import (
	"sort"
	"strconv"
	"strings"
)

// LabelKind is the closed set of label value types a metric's schema may declare.
type LabelKind int

const (
	LabelString LabelKind = iota
	LabelInt64
	LabelBool
	LabelFloat64
)

func (k LabelKind) String() string {
	switch k {
	case LabelString:
		return "string"
	case LabelInt64:
		return "int64"
	case LabelBool:
		return "bool"
	case LabelFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// LabelValue is a tagged union over the four label value types the library supports.
// Zero value is the empty string, matching LabelString's zero value.
type LabelValue struct {
	kind LabelKind
	s    string
	i    int64
	b    bool
	f    float64
}

// Kind reports which variant this LabelValue holds.
func (v LabelValue) Kind() LabelKind { return v.kind }

// String renders the value as text for scrape output and statsd tags.
// It does not escape the result; callers that need escaping (scrape output) do so themselves.
func (v LabelValue) String() string {
	switch v.kind {
	case LabelString:
		return v.s
	case LabelInt64:
		return strconv.FormatInt(v.i, 10)
	case LabelBool:
		return strconv.FormatBool(v.b)
	case LabelFloat64:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return ""
	}
}

// StringValue constructs a string-typed LabelValue.
func StringValue(s string) LabelValue { return LabelValue{kind: LabelString, s: s} }

// Int64Value constructs a signed 64-bit integer LabelValue.
func Int64Value(i int64) LabelValue { return LabelValue{kind: LabelInt64, i: i} }

// BoolValue constructs a boolean LabelValue.
func BoolValue(b bool) LabelValue { return LabelValue{kind: LabelBool, b: b} }

// Float64Value constructs a float64 LabelValue.
func Float64Value(f float64) LabelValue { return LabelValue{kind: LabelFloat64, f: f} }

// Label is a single name/value pair supplied at a metric call site.
type Label struct {
	Name  string
	Value LabelValue
}

// StringLabel is a convenience constructor for a string-valued Label.
// Mirrors the pack's L(key, value) convenience-builder idiom, generalized to typed values.
func StringLabel(name, value string) Label { return Label{Name: name, Value: StringValue(value)} }

// Int64Label is a convenience constructor for an int64-valued Label.
func Int64Label(name string, value int64) Label { return Label{Name: name, Value: Int64Value(value)} }

// BoolLabel is a convenience constructor for a bool-valued Label.
func BoolLabel(name string, value bool) Label { return Label{Name: name, Value: BoolValue(value)} }

// Float64Label is a convenience constructor for a float64-valued Label.
func Float64Label(name string, value float64) Label {
	return Label{Name: name, Value: Float64Value(value)}
}

// LabelSchema declares the required label names and their value types for a grouped metric.
// It is immutable once passed to a metric constructor.
type LabelSchema map[string]LabelKind

// matches reports whether labels exactly satisfy the schema: same set of names, no
// extras, no omissions, and each value's runtime kind matches the declared kind.
func (s LabelSchema) matches(labels []Label) bool {
	if len(labels) != len(s) {
		return false
	}
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		wantKind, ok := s[l.Name]
		if !ok {
			return false
		}
		if l.Value.Kind() != wantKind {
			return false
		}
		if _, dup := seen[l.Name]; dup {
			return false
		}
		seen[l.Name] = struct{}{}
	}
	return len(seen) == len(s)
}

// LabelSet is the canonical, ordered (by name) representation of a resolved label
// assignment. Equality is structural. Once attached to a cell it never changes.
type LabelSet struct {
	labels []Label
}

// NewLabelSet canonicalizes labels into an ordered LabelSet.
func NewLabelSet(labels []Label) LabelSet {
	out := make([]Label, len(labels))
	copy(out, labels)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return LabelSet{labels: out}
}

// Empty reports whether the label set carries no labels (a scalar cell).
func (ls LabelSet) Empty() bool { return len(ls.labels) == 0 }

// Labels returns the canonical, ordered labels. Callers must not mutate the result.
func (ls LabelSet) Labels() []Label { return ls.labels }

// key returns a stable string key suitable for map lookups. Labels are already
// canonically ordered, so the encoding need not re-sort.
func (ls LabelSet) key() string {
	if len(ls.labels) == 0 {
		return ""
	}
	var b strings.Builder
	for i, l := range ls.labels {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(l.Name)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(int(l.Value.Kind())))
		b.WriteByte(':')
		b.WriteString(l.Value.String())
	}
	return b.String()
}

// scrapeClause renders the "{k1=\"v1\",k2=\"v2\"}" clause used in text scrape output,
// including the braces. Returns "" for an empty label set.
func (ls LabelSet) scrapeClause() string {
	if len(ls.labels) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, l := range ls.labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.Name)
		b.WriteString(`="`)
		b.WriteString(escapeLabelValue(l.Value.String()))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// statsdTags renders the "|#k1:v1,k2:v2" tag clause used in UDP push messages.
// Returns "" for an empty label set. Values are not escaped (statsd convention):
// callers must ensure values contain no ',', ':', '|', or '#'.
func (ls LabelSet) statsdTags() string {
	if len(ls.labels) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("|#")
	for i, l := range ls.labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.Name)
		b.WriteByte(':')
		b.WriteString(l.Value.String())
	}
	return b.String()
}

// escapeLabelValue escapes a label value for inclusion in scrape text output.
func escapeLabelValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
