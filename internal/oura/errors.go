package oura

import "fmt"

// FetchError names the request of a fan-out that failed.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("error getting %s data: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ShapeError is a provider response without a usable "data" list.
type ShapeError struct {
	Payload Payload
}

func (e *ShapeError) Error() string {
	return "unexpected provider payload: missing data list"
}
