package acis

type viewOptions struct {
	requireNonEmpty bool
}

// ViewOption configures a record view.
type ViewOption func(*viewOptions)

// RequireNonEmpty makes a view fail with ErrEmptyCollection instead of
// returning an empty slice.
func RequireNonEmpty() ViewOption {
	return func(o *viewOptions) {
		o.requireNonEmpty = true
	}
}

// StationIDs returns the first identifier of every station in order.
func (c *StationCollection) StationIDs(opts ...ViewOption) ([]string, error) {
	return c.project(opts, Station.ID)
}

// StationLabels returns "name, state (elev: elevation)" for every station.
func (c *StationCollection) StationLabels(opts ...ViewOption) ([]string, error) {
	return c.project(opts, Station.Label)
}

func (c *StationCollection) project(opts []ViewOption, fn func(Station) string) ([]string, error) {
	var o viewOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(c.stations) == 0 && o.requireNonEmpty {
		return nil, ErrEmptyCollection
	}

	out := make([]string, 0, len(c.stations))
	for _, s := range c.stations {
		out = append(out, fn(s))
	}
	return out, nil
}
