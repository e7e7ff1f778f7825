package pm

// projectTransitions defines the allowed forward moves of the project
// workflow. Cancellation is allowed from any non-terminal state and is
// handled separately in CanTransition.
var projectTransitions = map[ProjectStatus][]ProjectStatus{
	StatusPendingQuote:   {StatusQuoting},
	StatusQuoting:        {StatusDesigning, StatusPendingQuote},
	StatusDesigning:      {StatusInProduction, StatusQuoting},
	StatusInProduction:   {StatusPendingPayment},
	StatusPendingPayment: {StatusCompleted},
	StatusCompleted:      {StatusArchived},
	StatusArchived:       {},
	StatusCancelled:      {},
}

// ValidProjectStatus reports whether s belongs to the enumeration.
func ValidProjectStatus(s ProjectStatus) bool {
	_, ok := projectTransitions[s]
	return ok
}

// ValidTaskStatus reports whether s belongs to the enumeration.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled, TaskOverdue:
		return true
	}
	return false
}

// CanTransition reports whether a project may move from one status to the other.
func CanTransition(from, to ProjectStatus) bool {
	if !ValidProjectStatus(from) || !ValidProjectStatus(to) {
		return false
	}
	if from == to {
		return false
	}
	if to == StatusCancelled {
		return from != StatusArchived && from != StatusCompleted
	}
	for _, next := range projectTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
