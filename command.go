package plano

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Command is a registered, invokable function with its parameter specs.
type Command struct {
	Name        string
	Path        []string
	Params      []ParameterSpec
	Help        string
	Description string
	Hidden      bool
	// Passthrough commands receive every token positionally, without
	// option parsing or help handling.
	Passthrough bool

	target reflect.Value
}

// FullPath returns the dotted path of the command.
func (c *Command) FullPath() string {
	return strings.Join(c.Path, ".")
}

// Param returns the spec named name.
func (c *Command) Param(name string) (ParameterSpec, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// CommandOption configures a command at registration.
type CommandOption func(*Command)

// Help sets the one-line summary shown in listings.
func Help(text string) CommandOption {
	return func(c *Command) { c.Help = text }
}

// Description sets the longer text shown in the command's own usage.
func Description(text string) CommandOption {
	return func(c *Command) { c.Description = text }
}

// Params declares the command's parameters in the order the target
// function receives them.
func Params(specs ...ParameterSpec) CommandOption {
	return func(c *Command) { c.Params = append(c.Params, specs...) }
}

// Hidden keeps the command out of listings. It can still be invoked.
func Hidden() CommandOption {
	return func(c *Command) { c.Hidden = true }
}

// Passthrough hands all tokens to the command's positionals verbatim. The
// command must end with a Rest parameter.
func Passthrough() CommandOption {
	return func(c *Command) { c.Passthrough = true }
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// analyzeTarget checks that fn has the shape
// func(context.Context, <one param per spec>) error.
func analyzeTarget(path string, fn any, params []ParameterSpec, passthrough bool) (reflect.Value, error) {
	val := reflect.ValueOf(fn)
	if !val.IsValid() || val.Kind() != reflect.Func {
		return reflect.Value{}, &SignatureError{Path: path, Reason: fmt.Sprintf("target must be a function, got %T", fn)}
	}
	typ := val.Type()

	if typ.NumIn() == 0 || typ.In(0) != contextType {
		return reflect.Value{}, &SignatureError{Path: path, Reason: "first argument must be context.Context"}
	}
	if typ.NumOut() != 1 || typ.Out(0) != errorType {
		return reflect.Value{}, &SignatureError{Path: path, Reason: "target must return exactly one error"}
	}
	if typ.NumIn()-1 != len(params) {
		return reflect.Value{}, &SignatureError{
			Path:   path,
			Reason: fmt.Sprintf("target takes %d arguments after the context, %d parameters declared", typ.NumIn()-1, len(params)),
		}
	}

	seen := make(map[string]bool, len(params))
	shorts := make(map[string]bool)
	for i, p := range params {
		if p.Name == "" {
			return reflect.Value{}, &SignatureError{Path: path, Reason: fmt.Sprintf("parameter %d has no name", i+1)}
		}
		if seen[p.DisplayName()] {
			return reflect.Value{}, &SignatureError{Path: path, Reason: fmt.Sprintf("parameter %q declared twice", p.Name)}
		}
		seen[p.DisplayName()] = true
		if p.Shorthand != "" {
			if !isShorthand(p.Shorthand) || p.Shorthand == "h" || shorts[p.Shorthand] {
				return reflect.Value{}, &SignatureError{Path: path, Reason: fmt.Sprintf("invalid shorthand %q for %q", p.Shorthand, p.Name)}
			}
			shorts[p.Shorthand] = true
		}
		if p.DisplayName() == "help" {
			return reflect.Value{}, &SignatureError{Path: path, Reason: "parameter name \"help\" is reserved"}
		}

		in := typ.In(i + 1)
		if p.Variadic {
			if i != len(params)-1 || !typ.IsVariadic() {
				return reflect.Value{}, &SignatureError{Path: path, Reason: fmt.Sprintf("variadic parameter %q must be the final ...string argument", p.Name)}
			}
			if in != reflect.TypeOf([]string(nil)) {
				return reflect.Value{}, &SignatureError{Path: path, Reason: fmt.Sprintf("parameter %q must be ...string, got %s", p.Name, in)}
			}
			continue
		}
		want := p.Type.GoType()
		if in != want {
			return reflect.Value{}, &SignatureError{Path: path, Reason: fmt.Sprintf("parameter %q is %s, target argument %d is %s", p.Name, want, i+1, in)}
		}
		if p.Default != nil && reflect.TypeOf(p.Default) != want {
			return reflect.Value{}, &SignatureError{Path: path, Reason: fmt.Sprintf("parameter %q default is %T, want %s", p.Name, p.Default, want)}
		}
	}
	if passthrough && (len(params) == 0 || !params[len(params)-1].Variadic) {
		return reflect.Value{}, &SignatureError{Path: path, Reason: "passthrough command needs a final Rest parameter"}
	}
	if typ.IsVariadic() && (len(params) == 0 || !params[len(params)-1].Variadic) {
		return reflect.Value{}, &SignatureError{Path: path, Reason: "variadic target needs a Rest parameter"}
	}
	return val, nil
}

// isShorthand reports whether s is a single ASCII letter.
func isShorthand(s string) bool {
	return len(s) == 1 && (s[0] >= 'a' && s[0] <= 'z' || s[0] >= 'A' && s[0] <= 'Z')
}

// call invokes the target with bound values. A panic in the target is
// returned as an UnexpectedError by the dispatcher, not here.
func (c *Command) call(ctx context.Context, values Values) error {
	in := make([]reflect.Value, 0, len(c.Params)+1)
	in = append(in, reflect.ValueOf(ctx))
	for _, p := range c.Params {
		v, ok := values[p.Name]
		if !ok || v == nil {
			in = append(in, reflect.Zero(p.Type.GoType()))
			continue
		}
		in = append(in, reflect.ValueOf(v))
	}

	var out []reflect.Value
	if c.target.Type().IsVariadic() {
		out = c.target.CallSlice(in)
	} else {
		out = c.target.Call(in)
	}
	if errVal := out[0]; !errVal.IsNil() {
		return errVal.Interface().(error)
	}
	return nil
}
