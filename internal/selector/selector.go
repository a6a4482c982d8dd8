// Package selector picks which versions of a document to fetch.
package selector

import "strings"

const zipSuffix = ".zip"

// Select returns the filenames to fetch from the sorted listing of one
// document directory.
//
// Without major versions every file is kept, or only the last one when
// latest is set. With major versions a file belongs to a token when the
// first character after its first '-' equals the token, so tokens longer
// than one character never match. Groups are emitted in token order.
// Only names ending in .zip are returned.
func Select(filenames []string, majorVersions []string, latest bool) []string {
	var picked []string

	switch {
	case len(majorVersions) == 0 && !latest:
		picked = filenames
	case len(majorVersions) == 0:
		if len(filenames) > 0 {
			picked = filenames[len(filenames)-1:]
		}
	default:
		groups := make(map[string][]string, len(majorVersions))
		for _, name := range filenames {
			marker, ok := majorMarker(name)
			if !ok {
				continue
			}
			for _, v := range majorVersions {
				if v == marker {
					groups[v] = append(groups[v], name)
				}
			}
		}
		for _, v := range majorVersions {
			group := groups[v]
			if len(group) == 0 {
				continue
			}
			if latest {
				picked = append(picked, group[len(group)-1])
			} else {
				picked = append(picked, group...)
			}
		}
	}

	out := make([]string, 0, len(picked))
	for _, name := range picked {
		if strings.HasSuffix(name, zipSuffix) {
			out = append(out, name)
		}
	}
	return out
}

// majorMarker returns the character following the first '-' of name.
func majorMarker(name string) (string, bool) {
	_, rest, found := strings.Cut(name, "-")
	if !found || rest == "" {
		return "", false
	}
	return rest[:1], true
}
