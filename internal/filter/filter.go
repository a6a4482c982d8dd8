// Package filter turns the command line selection flags into a Request
// describing which series and documents to fetch.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUsage is returned when the document, series and list inputs are
	// not supplied exactly once.
	ErrUsage = errors.New("exactly one of document, series or list must be given")
	// ErrMalformedDocument is returned for a document token without a
	// series separator.
	ErrMalformedDocument = errors.New("malformed document, expected <series>.<document>")
)

// Input is the raw selection as given on the command line.
type Input struct {
	Documents     string
	Series        string
	ListFile      string
	ListEncoding  string
	MajorVersions string
	Latest        bool
	Extract       bool
	PDF           bool
	Purge         bool
	OutputDir     string
}

// Request is the resolved selection. It is not modified once Resolve
// returns.
type Request struct {
	order         []string
	documents     map[string][]string
	MajorVersions []string
	Latest        bool
	Extract       bool
	PDF           bool
	Purge         bool
	OutputDir     string
}

// Series returns the requested series in the order they were first named.
func (r *Request) Series() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Documents returns the requested document numbers of a series. An empty
// result means every document of the series.
func (r *Request) Documents(series string) []string {
	docs := r.documents[series]
	out := make([]string, len(docs))
	copy(out, docs)
	return out
}

// AllDocuments reports whether every document of the series is requested.
func (r *Request) AllDocuments(series string) bool {
	return len(r.documents[series]) == 0
}

// Wants reports whether a document of a series is part of the request.
func (r *Request) Wants(series, document string) bool {
	docs, ok := r.documents[series]
	if !ok {
		return false
	}
	if len(docs) == 0 {
		return true
	}
	for _, d := range docs {
		if d == document {
			return true
		}
	}
	return false
}

// Resolve builds a Request from in. Exactly one of Documents, Series and
// ListFile must be set.
func Resolve(in Input) (*Request, error) {
	given := 0
	for _, v := range []string{in.Documents, in.Series, in.ListFile} {
		if strings.TrimSpace(v) != "" {
			given++
		}
	}
	if given != 1 {
		return nil, ErrUsage
	}

	req := &Request{
		documents: make(map[string][]string),
		Latest:    in.Latest,
		Extract:   in.Extract,
		PDF:       in.PDF,
		Purge:     in.Purge,
		OutputDir: in.OutputDir,
	}
	if req.OutputDir == "" {
		req.OutputDir = "."
	}

	switch {
	case strings.TrimSpace(in.Documents) != "":
		for _, token := range strings.Split(in.Documents, ",") {
			if err := req.addDocument(token); err != nil {
				return nil, err
			}
		}
	case strings.TrimSpace(in.Series) != "":
		for _, series := range strings.Split(in.Series, ",") {
			series = strings.TrimSpace(series)
			if series == "" {
				continue
			}
			req.addSeries(series)
			req.documents[series] = nil
		}
	default:
		lines, err := ReadList(in.ListFile, in.ListEncoding)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			if err := req.addDocument(line); err != nil {
				return nil, err
			}
		}
	}

	if strings.TrimSpace(in.MajorVersions) != "" {
		for _, v := range strings.Split(in.MajorVersions, ",") {
			req.MajorVersions = append(req.MajorVersions, strings.TrimSpace(v))
		}
	}

	return req, nil
}

func (r *Request) addSeries(series string) {
	if _, ok := r.documents[series]; !ok {
		r.order = append(r.order, series)
	}
}

func (r *Request) addDocument(token string) error {
	token = strings.TrimSpace(token)
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return fmt.Errorf("%w: %q", ErrMalformedDocument, token)
	}
	series, doc := parts[0], parts[1]
	r.addSeries(series)
	for _, d := range r.documents[series] {
		if d == doc {
			return nil
		}
	}
	r.documents[series] = append(r.documents[series], doc)
	return nil
}
