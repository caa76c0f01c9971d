package plano

// WithDefault names the command run when argv does not start with a
// command path. tokens are prepended to the remaining arguments.
func WithDefault(path string, tokens ...string) Option {
	return func(a *App) {
		a.dispatch = append(a.dispatch, WithDefaultCommand(path, tokens...))
	}
}

// WithDispatcherOptions passes options through to the dispatcher, for
// example WithOutput or WithClock in tests.
func WithDispatcherOptions(opts ...DispatcherOption) Option {
	return func(a *App) {
		a.dispatch = append(a.dispatch, opts...)
	}
}

// WithoutCompletion skips registering the completion commands.
func WithoutCompletion() Option {
	return func(a *App) {
		a.noCompletion = true
	}
}
