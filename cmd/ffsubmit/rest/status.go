package rest

import (
	"fmt"
	"net/http"
)

// StatusClass is the first digit of an HTTP status code.
type StatusClass int

const (
	StatusUnknown StatusClass = iota
	Status1xx
	Status2xx
	Status3xx
	Status4xx
	Status5xx
)

func (c StatusClass) String() string {
	switch c {
	case Status1xx:
		return "informational"
	case Status2xx:
		return "success"
	case Status3xx:
		return "redirect"
	case Status4xx:
		return "client error"
	case Status5xx:
		return "server error"
	}
	return fmt.Sprintf("unknown (%d)", int(c))
}

// ClassOf classifies the status code of resp.
func ClassOf(resp *http.Response) StatusClass {
	c := StatusClass(resp.StatusCode / 100)
	if c < Status1xx || Status5xx < c {
		return StatusUnknown
	}
	return c
}
