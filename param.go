package plano

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Kind says how a parameter is addressed on the command line.
type Kind int

const (
	// PositionalKind parameters bind bare tokens in declaration order.
	PositionalKind Kind = iota
	// OptionKind parameters take one value: --name value or --name=value.
	OptionKind
	// FlagKind parameters take no value: --name sets true.
	FlagKind
)

func (k Kind) String() string {
	switch k {
	case PositionalKind:
		return "positional"
	case OptionKind:
		return "option"
	case FlagKind:
		return "flag"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ValueType is the type a bound value is coerced to.
type ValueType int

const (
	String ValueType = iota
	Int
	Float
	Bool
	List
)

func (t ValueType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case List:
		return "list"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// GoType returns the Go type a target function receives for t.
func (t ValueType) GoType() reflect.Type {
	switch t {
	case Int:
		return reflect.TypeOf(int(0))
	case Float:
		return reflect.TypeOf(float64(0))
	case Bool:
		return reflect.TypeOf(false)
	case List:
		return reflect.TypeOf([]string(nil))
	default:
		return reflect.TypeOf("")
	}
}

// ParameterSpec describes one parameter of a command. Build specs with
// Arg, Opt, Flag and Rest rather than by hand so that Required stays
// consistent with Default and Kind.
type ParameterSpec struct {
	Name      string
	Kind      Kind
	Type      ValueType
	Default   any
	Required  bool
	Variadic  bool
	Help      string
	Shorthand string
	Metavar   string
	Delimiter string
}

// Arg declares a required positional string parameter.
func Arg(name, help string) ParameterSpec {
	return ParameterSpec{
		Name:     name,
		Kind:     PositionalKind,
		Type:     String,
		Required: true,
		Help:     help,
	}
}

// Rest declares a trailing positional that absorbs every remaining token.
// It must be the last positional of a command.
func Rest(name, help string) ParameterSpec {
	return ParameterSpec{
		Name:     name,
		Kind:     PositionalKind,
		Type:     List,
		Default:  []string{},
		Variadic: true,
		Help:     help,
	}
}

// Opt declares a named option. The value type follows the Go type of def:
// string, int, float64 or []string. A bool default declares a flag.
func Opt(name string, def any, help string) ParameterSpec {
	spec := ParameterSpec{Name: name, Kind: OptionKind, Default: def, Help: help}
	switch v := def.(type) {
	case bool:
		spec.Kind = FlagKind
		spec.Type = Bool
	case int:
		spec.Type = Int
	case float64:
		spec.Type = Float
	case []string:
		spec.Type = List
		spec.Default = append([]string{}, v...)
	case string:
		spec.Type = String
	default:
		panic(fmt.Sprintf("plano.Opt(%q): unsupported default type %T", name, def))
	}
	return spec
}

// Flag declares a boolean flag defaulting to false.
func Flag(name, help string) ParameterSpec {
	return Opt(name, false, help)
}

// As overrides the value type of a positional parameter. Options take
// their type from their default and flags are always bool, so As panics
// on either.
func (p ParameterSpec) As(t ValueType) ParameterSpec {
	if p.Variadic {
		panic(fmt.Sprintf("plano: variadic parameter %q is always a list", p.Name))
	}
	if p.Kind != PositionalKind {
		panic(fmt.Sprintf("plano: %s %q takes its type from its default", p.Kind, p.Name))
	}
	p.Type = t
	return p
}

// Optional gives a positional parameter a default, so it may be omitted.
// def must have the Go type of the parameter's value type.
func (p ParameterSpec) Optional(def any) ParameterSpec {
	p.Default = def
	p.Required = false
	return p
}

// Short adds a single-dash alias, e.g. Short("m") accepts -m.
func (p ParameterSpec) Short(s string) ParameterSpec {
	p.Shorthand = s
	return p
}

// Meta sets the placeholder shown for the value in usage text.
func (p ParameterSpec) Meta(m string) ParameterSpec {
	p.Metavar = m
	return p
}

// Delim makes a list option also split each value on d.
func (p ParameterSpec) Delim(d string) ParameterSpec {
	p.Delimiter = d
	return p
}

// DisplayName is the name as typed on the command line.
func (p ParameterSpec) DisplayName() string {
	return strings.ReplaceAll(p.Name, "_", "-")
}

func (p ParameterSpec) metavar() string {
	if p.Metavar != "" {
		return p.Metavar
	}
	return strings.ToUpper(p.DisplayName())
}

// coerce converts a raw token into a value of the parameter's type.
// List values are returned as single-element slices, ready to append.
func (p ParameterSpec) coerce(raw string) (any, error) {
	switch p.Type {
	case Int:
		return strconv.Atoi(strings.TrimSpace(raw))
	case Float:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case Bool:
		return parseBool(raw)
	case List:
		if p.Delimiter != "" {
			return strings.Split(raw, p.Delimiter), nil
		}
		return []string{raw}, nil
	default:
		return raw, nil
	}
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected one of true/false/yes/no/1/0")
}

// formatValue renders v the way it is shown in usage text and trace lines.
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case []string:
		quoted := make([]string, len(x))
		for i, s := range x {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}
