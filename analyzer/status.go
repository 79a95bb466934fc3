package analyzer

// DetermineStatus reduces findings to a single status. An error or invalid
// finding always wins, then any warning; an empty list is info.
func DetermineStatus(findings []Finding) Status {
	var warning bool
	for _, f := range findings {
		switch f.Kind {
		case KindError, KindInvalid:
			return StatusInvalid
		case KindWarning:
			warning = true
		}
	}
	if warning {
		return StatusWarning
	}
	if len(findings) > 0 {
		return StatusValid
	}
	return StatusInfo
}
