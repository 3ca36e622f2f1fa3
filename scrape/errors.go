package scrape

import "errors"

// ErrInvalidURL is returned when a scheme URL fails domain validation.
var ErrInvalidURL = errors.New("scrape: url not from an allowed domain")

// ErrNoSchemes is returned when scheme discovery finds nothing to scrape.
var ErrNoSchemes = errors.New("scrape: no schemes discovered")

// ErrUnparseable is returned when a fetched page cannot be parsed as HTML.
var ErrUnparseable = errors.New("scrape: unparseable content")
