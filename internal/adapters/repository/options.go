package repository

// Option applies a configuration option to the History.
type Option func(*History)

// WithCapacity sets the initial bound. Values below one are ignored.
func WithCapacity(n int) Option {
	return func(h *History) {
		if n >= 1 {
			h.capacity = n
		}
	}
}
