package completion

// Result is the typed outcome of one completion request.
type Result struct {
	Content string
	Err     error
}

// Failed reports whether the request did not produce a reply.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Text is the string a transcript records for this result: the reply, or
// the formatted error.
func (r Result) Text() string {
	if r.Err != nil {
		return FormatError(r.Err)
	}
	return r.Content
}
