package plano

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Values maps parameter names to bound values. Each value has the Go type
// of its parameter: string, int, float64, bool or []string.
type Values map[string]any

// Bind resolves raw tokens against the command's parameters. On success
// every parameter has a value. It never calls the command's target.
//
// Options and flags are parsed by a pflag.FlagSet built from the
// parameter specs; the tokens pflag leaves over bind to the positionals
// in order.
func Bind(cmd *Command, tokens []string) (Values, error) {
	for _, tok := range tokens {
		if tok == "--" || cmd.Passthrough {
			break
		}
		if tok == "-h" || tok == "--help" {
			return nil, ErrHelpRequested
		}
	}

	values := make(Values, len(cmd.Params))
	for _, p := range cmd.Params {
		if !p.Required {
			values[p.Name] = cloneValue(p.Default)
		}
	}

	rest := tokens
	if !cmd.Passthrough {
		fs := commandFlags(cmd, values)
		if err := fs.Parse(shieldNumbers(fs, tokens)); err != nil {
			return nil, translateFlagError(cmd, fs, err)
		}
		rest = unshield(fs.Args())
	}
	if err := bindPositionals(cmd, values, rest); err != nil {
		return nil, err
	}
	for _, p := range cmd.Params {
		if _, ok := values[p.Name]; !ok {
			return nil, &UsageError{Kind: MissingRequiredArgument, Command: cmd.FullPath(), Name: p.metavar()}
		}
	}
	return values, nil
}

// commandFlags builds the flag set of cmd's options and flags. Parsed
// values are written into values under the parameter name.
func commandFlags(cmd *Command, values Values) *pflag.FlagSet {
	fs := pflag.NewFlagSet(cmd.FullPath(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	for _, p := range cmd.Params {
		if p.Kind == PositionalKind {
			continue
		}
		f := fs.VarPF(&specValue{spec: p, values: values}, p.DisplayName(), p.Shorthand, p.Help)
		if p.Kind == FlagKind {
			f.NoOptDefVal = "true"
		}
	}
	return fs
}

// specValue is the pflag.Value of one parameter. Bools accept
// true/false/yes/no/1/0, and list values split on the parameter's delimiter.
// The first value given for a list replaces its default; later ones
// append.
type specValue struct {
	spec   ParameterSpec
	values Values
	set    bool
}

func (v *specValue) Set(raw string) error {
	x, err := v.spec.coerce(raw)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			return numErr.Err
		}
		return err
	}
	if items, ok := x.([]string); ok && v.set {
		prev, _ := v.values[v.spec.Name].([]string)
		x = append(prev, items...)
	}
	v.set = true
	v.values[v.spec.Name] = x
	return nil
}

func (v *specValue) String() string {
	x, ok := v.values[v.spec.Name]
	if !ok {
		x = v.spec.Default
	}
	switch t := x.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(t, ",")
	}
	return fmt.Sprint(x)
}

func (v *specValue) Type() string {
	switch v.spec.Type {
	case Int:
		return "int"
	case Float:
		return "float64"
	case Bool:
		return "bool"
	case List:
		return "stringSlice"
	default:
		return "string"
	}
}

// translateFlagError turns a pflag parse error into a UsageError.
func translateFlagError(cmd *Command, fs *pflag.FlagSet, err error) error {
	var (
		notExist *pflag.NotExistError
		required *pflag.ValueRequiredError
		invalid  *pflag.InvalidValueError
		syntax   *pflag.InvalidSyntaxError
		path     = cmd.FullPath()
	)
	switch {
	case errors.Is(err, pflag.ErrHelp):
		return ErrHelpRequested
	case errors.As(err, &notExist):
		name := notExist.GetSpecifiedName()
		if notExist.GetSpecifiedShortnames() != "" {
			return &UsageError{Kind: UnknownOption, Command: path, Name: "-" + name}
		}
		return &UsageError{Kind: UnknownOption, Command: path, Name: "--" + name, Suggestion: suggestOption(fs, name)}
	case errors.As(err, &required):
		name := "--" + required.GetFlag().Name
		if required.GetSpecifiedShortnames() != "" {
			name = "-" + required.GetSpecifiedName()
		}
		return &UsageError{Kind: MissingValue, Command: path, Name: name}
	case errors.As(err, &invalid):
		return &UsageError{
			Kind:    InvalidValue,
			Command: path,
			Name:    "--" + invalid.GetFlag().Name,
			Value:   invalid.GetValue(),
			Err:     errors.Unwrap(invalid),
		}
	case errors.As(err, &syntax):
		return &UsageError{Kind: UnknownOption, Command: path, Name: syntax.GetSpecifiedFlag()}
	}
	return &UsageError{Kind: InvalidValue, Command: path, Err: err}
}

func suggestOption(fs *pflag.FlagSet, name string) string {
	var names []string
	fs.VisitAll(func(f *pflag.Flag) { names = append(names, f.Name) })
	if s := suggest(name, names); s != "" {
		return "--" + s
	}
	return ""
}

func bindPositionals(cmd *Command, values Values, rest []string) error {
	for _, p := range cmd.Params {
		if p.Kind != PositionalKind {
			continue
		}
		if p.Variadic {
			values[p.Name] = append([]string{}, rest...)
			rest = nil
			break
		}
		if len(rest) == 0 {
			break
		}
		v := &specValue{spec: p, values: values}
		if err := v.Set(rest[0]); err != nil {
			return &UsageError{Kind: InvalidValue, Command: cmd.FullPath(), Name: p.metavar(), Value: rest[0], Err: err}
		}
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return &UsageError{Kind: TooManyArguments, Command: cmd.FullPath(), Value: rest[0]}
	}
	return nil
}

// numberMark prefixes negative numbers standing as positionals so that
// pflag does not read them as shorthand options.
const numberMark = "\x00"

func shieldNumbers(fs *pflag.FlagSet, tokens []string) []string {
	out := append([]string{}, tokens...)
	for i := 0; i < len(out); i++ {
		tok := out[i]
		switch {
		case tok == "--":
			return out
		case isNegativeNumber(tok):
			out[i] = numberMark + tok
		case takesValue(fs, tok):
			i++
		}
	}
	return out
}

func unshield(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.TrimPrefix(a, numberMark)
	}
	return out
}

// takesValue reports whether tok is an option that consumes the next
// token as its value.
func takesValue(fs *pflag.FlagSet, tok string) bool {
	if len(tok) < 2 || tok[0] != '-' || strings.Contains(tok, "=") {
		return false
	}
	if strings.HasPrefix(tok, "--") {
		f := fs.Lookup(tok[2:])
		return f != nil && f.NoOptDefVal == ""
	}
	for j := 1; j < len(tok); j++ {
		f := fs.ShorthandLookup(tok[j : j+1])
		if f == nil {
			return false
		}
		if f.NoOptDefVal == "" {
			return j == len(tok)-1
		}
	}
	return false
}

func isNegativeNumber(tok string) bool {
	if len(tok) < 2 || tok[0] != '-' {
		return false
	}
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

// looksLikeOption reports whether tok is an option reference rather than
// a value. A lone "-" and negative numbers are values.
func looksLikeOption(tok string) bool {
	return len(tok) >= 2 && tok[0] == '-' && !isNegativeNumber(tok)
}

func cloneValue(v any) any {
	if list, ok := v.([]string); ok {
		return append([]string{}, list...)
	}
	return v
}
