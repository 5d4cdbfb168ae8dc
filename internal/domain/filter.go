package domain

// Filter is the All/Active/Completed partition selected by the route.
type Filter int

const (
	FilterAll Filter = iota
	FilterActive
	FilterCompleted
)

// Token returns the route word that selects the filter.
func (f Filter) Token() string {
	switch f {
	case FilterActive:
		return "active"
	case FilterCompleted:
		return "completed"
	default:
		return ""
	}
}

func (f Filter) String() string {
	switch f {
	case FilterActive:
		return "Active"
	case FilterCompleted:
		return "Completed"
	default:
		return "All"
	}
}

// Query returns the read criteria for the filter.
func (f Filter) Query() Query {
	switch f {
	case FilterActive:
		return ByCompleted(false)
	case FilterCompleted:
		return ByCompleted(true)
	default:
		return Query{}
	}
}
