package workflow

import "fmt"

// Outcome accumulates per-item results across one workflow run.
type Outcome struct {
	Processed int
	Errors    []string
}

func (o *Outcome) Success() {
	o.Processed++
}

func (o *Outcome) Failure(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	o.Errors = append(o.Errors, msg)
	return msg
}

func (o *Outcome) Failed() int {
	return len(o.Errors)
}
