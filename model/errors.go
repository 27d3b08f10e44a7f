package model

// QueryParseError reports malformed field-selection or filter syntax. It is
// always a client-input problem, never retried.
type QueryParseError struct {
	Message string
}

func (e *QueryParseError) Error() string {
	return "query parse error: " + e.Message
}
