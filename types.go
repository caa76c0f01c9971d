package plano

// Config holds the program metadata shown in the top-level usage text.
type Config struct {
	// Name is the program name. It defaults to the base name of os.Args[0].
	Name string
	// Version is the program version, printed with the framework version.
	Version string
	// Description is printed under the usage line.
	Description string
}

// Option configures the App during initialization.
type Option func(*App)

// WithName sets the program name.
func WithName(name string) Option {
	return func(a *App) {
		a.config.Name = name
	}
}
