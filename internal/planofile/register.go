package planofile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"mvdan.cc/sh/v3/interp"

	"github.com/axsh/plano"
	"github.com/axsh/plano/files"
	"github.com/axsh/plano/procs"
)

// NestedCommand is the word that, at the start of a body line, runs
// another command through the same dispatcher.
const NestedCommand = "plano"

// Register adds the file's commands and group help to reg. Bodies run
// in the workspace's current directory with the env file's variables.
func Register(reg *plano.Registry, f *File, w *files.Workspace) error {
	env, err := loadEnv(f, w)
	if err != nil {
		return err
	}
	for _, def := range f.Commands {
		if err := register(reg, def, env, w.Cwd()); err != nil {
			return err
		}
	}
	for _, path := range slices.Sorted(maps.Keys(f.Groups)) {
		reg.Group(path, f.Groups[path])
	}
	return nil
}

func loadEnv(f *File, w *files.Workspace) ([]string, error) {
	if f.EnvFile == "" {
		return nil, nil
	}
	in, err := w.Fs().Open(w.Path(f.EnvFile))
	if err != nil {
		return nil, fmt.Errorf("env_file: %w", err)
	}
	defer in.Close()
	vars, err := godotenv.Parse(in)
	if err != nil {
		return nil, fmt.Errorf("env_file %s: %w", f.EnvFile, err)
	}
	env := make([]string, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}

func register(reg *plano.Registry, def CommandDef, env []string, dir string) error {
	specs := make([]plano.ParameterSpec, 0, len(def.Params))
	for _, p := range def.Params {
		spec, err := p.Spec()
		if err != nil {
			return fmt.Errorf("command %q: %w", def.Name, err)
		}
		specs = append(specs, spec)
	}

	b := &body{def: def, specs: specs, env: env, dir: dir}
	opts := []plano.CommandOption{
		plano.Help(def.Help),
		plano.Description(def.Description),
		plano.Params(specs...),
	}
	if def.Hidden {
		opts = append(opts, plano.Hidden())
	}
	_, err := reg.Register(def.Name, b.target(), opts...)
	return err
}

// Spec converts the definition into a parameter spec.
func (p ParamDef) Spec() (plano.ParameterSpec, error) {
	if p.Variadic {
		return plano.Rest(p.Name, p.Help), nil
	}

	typ, err := p.valueType()
	if err != nil {
		return plano.ParameterSpec{}, err
	}
	if p.Positional && typ == plano.List {
		return plano.ParameterSpec{}, fmt.Errorf("parameter %q: use variadic for list positionals", p.Name)
	}
	if p.Default == nil {
		return plano.Arg(p.Name, p.Help).As(typ), nil
	}

	def, err := convert(p.Default, typ)
	if err != nil {
		return plano.ParameterSpec{}, fmt.Errorf("parameter %q: %w", p.Name, err)
	}
	if p.Positional {
		return plano.Arg(p.Name, p.Help).As(typ).Optional(def), nil
	}
	return plano.Opt(p.Name, def, p.Help).Short(p.Short), nil
}

func (p ParamDef) valueType() (plano.ValueType, error) {
	switch strings.ToLower(p.Type) {
	case "string", "str":
		return plano.String, nil
	case "int", "integer":
		return plano.Int, nil
	case "float", "number":
		return plano.Float, nil
	case "bool", "boolean":
		return plano.Bool, nil
	case "list":
		return plano.List, nil
	case "":
	default:
		return 0, fmt.Errorf("parameter %q: unknown type %q", p.Name, p.Type)
	}

	switch v := p.Default.(type) {
	case bool:
		return plano.Bool, nil
	case int, int64:
		return plano.Int, nil
	case float64:
		return plano.Float, nil
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return plano.Int, nil
		}
		return plano.Float, nil
	case []any:
		return plano.List, nil
	}
	return plano.String, nil
}

// convert turns a decoded default into the Go type Opt expects for typ.
func convert(v any, typ plano.ValueType) (any, error) {
	if typ == plano.List {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("default %v is not a list", v)
		}
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = fmt.Sprint(item)
		}
		return out, nil
	}

	raw := fmt.Sprint(v)
	switch typ {
	case plano.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("default %q is not an int", raw)
		}
		return n, nil
	case plano.Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("default %q is not a number", raw)
		}
		return f, nil
	case plano.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("default %q is not a bool", raw)
		}
		return b, nil
	}
	return raw, nil
}

// body runs a command definition.
type body struct {
	def   CommandDef
	specs []plano.ParameterSpec
	env   []string
	dir   string
}

// target builds a function of the shape the registry expects,
// func(context.Context, <one argument per spec>) error, around run.
func (b *body) target() any {
	in := []reflect.Type{reflect.TypeFor[context.Context]()}
	variadic := false
	for _, s := range b.specs {
		in = append(in, s.Type.GoType())
		variadic = s.Variadic
	}
	typ := reflect.FuncOf(in, []reflect.Type{reflect.TypeFor[error]()}, variadic)

	fn := reflect.MakeFunc(typ, func(args []reflect.Value) []reflect.Value {
		ctx := args[0].Interface().(context.Context)
		values := make(plano.Values, len(b.specs))
		for i, s := range b.specs {
			values[s.Name] = args[i+1].Interface()
		}
		err := b.run(ctx, values)
		out := reflect.New(reflect.TypeFor[error]()).Elem()
		if err != nil {
			out.Set(reflect.ValueOf(err))
		}
		return []reflect.Value{out}
	})
	return fn.Interface()
}

func (b *body) run(ctx context.Context, values plano.Values) error {
	for _, req := range b.def.Requires {
		if err := plano.Call(ctx, req); err != nil {
			return err
		}
	}
	if strings.TrimSpace(b.def.Run) == "" {
		return nil
	}

	var nestedErr error
	nested := func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if args[0] != NestedCommand || len(args) < 2 {
				return next(ctx, args)
			}
			err := plano.Call(ctx, args[1], args[2:]...)
			if err == nil {
				return nil
			}
			nestedErr = err
			return interp.NewExitStatus(uint8(plano.ExitCodeOf(err)))
		}
	}

	opts := []procs.Option{
		procs.Dir(b.dir),
		procs.Env(append(append([]string{}, b.env...), b.paramEnv(values)...)...),
		procs.Stdout(plano.Stdout(ctx)),
		procs.Stderr(plano.Stderr(ctx)),
		procs.ExecHandler(nested),
	}
	if !plano.SettingsFrom(ctx).Verbose {
		opts = append(opts, procs.Quiet())
	}

	res := procs.Shell(ctx, b.def.Run, opts...)
	if res.Ok() {
		return nil
	}
	if nestedErr != nil {
		return nestedErr
	}
	var status interp.ExitStatus
	if errors.As(res.Err, &status) {
		return plano.Fail("exit status %d", res.Code)
	}
	return plano.Fail("%w", res.Err)
}

// paramEnv exports bound values as PLANO_<NAME>. Lists are joined with
// spaces.
func (b *body) paramEnv(values plano.Values) []string {
	env := make([]string, 0, len(b.specs))
	for _, s := range b.specs {
		name := "PLANO_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(s.Name))
		var text string
		switch v := values[s.Name].(type) {
		case []string:
			text = strings.Join(v, " ")
		default:
			text = fmt.Sprint(v)
		}
		env = append(env, name+"="+text)
	}
	return env
}
