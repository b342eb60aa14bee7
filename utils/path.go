package utils

import "strings"

func NewPath(s ...string) Path {
	p := Path{}
	p = append(p, s...)
	return p
}

// Path is a dotted address: nested graph IDs, task.socket refs.
type Path []string

func (p Path) AddString(s ...string) Path {
	return append(p, s...)
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

func (p Path) First() (string, bool) {
	if len(p) == 0 {
		return "", false
	}
	return p[0], true
}
