package pipeline

// RunStats tracks aggregate counters for one batch run. It lives only
// for the duration of the invocation.
type RunStats struct {
	Total     int
	Succeeded int
	Failed    int
}

// ExitCode maps the run outcome to the process exit status: zero only
// when every archive succeeded (or none were found).
func (s RunStats) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}
