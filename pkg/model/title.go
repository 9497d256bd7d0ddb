package model

import "strings"

// JointArea places the assembled joint parts before or after the base name.
type JointArea uint8

const (
	JointPrefix JointArea = iota
	JointSuffix
)

// JointPart is one named component of a joint title.
type JointPart struct {
	Name string `json:"name"`
}

// JointPartGroup is an ordered group of parts; only the last part of each
// group contributes to the displayed title.
type JointPartGroup struct {
	Parts []JointPart `json:"parts"`
}

// JointTitle describes a composite title assembled from part groups around
// the base name.
type JointTitle struct {
	Area   JointArea        `json:"area"`
	Groups []JointPartGroup `json:"groups"`
}

// Title is a card title: a plain name, or a joint title assembled from
// part groups placed before or after the name.
type Title struct {
	Name  string      `json:"name"`
	Joint *JointTitle `json:"joint,omitempty"`
}

// PlainTitle builds a non-joint title.
func PlainTitle(name string) Title { return Title{Name: name} }

// Display renders the title as shown to users. For joint titles the last
// part of every group is joined with "-" and placed per the area; empty
// parts are skipped.
func (t Title) Display() string {
	if t.Joint == nil {
		return t.Name
	}

	parts := make([]string, 0, len(t.Joint.Groups))
	for _, g := range t.Joint.Groups {
		if len(g.Parts) == 0 {
			continue
		}
		last := g.Parts[len(g.Parts)-1].Name
		if last != "" {
			parts = append(parts, last)
		}
	}
	joint := strings.Join(parts, "-")
	if joint == "" {
		return t.Name
	}

	if t.Joint.Area == JointPrefix {
		return joint + " " + t.Name
	}
	return t.Name + " " + joint
}
