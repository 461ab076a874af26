package drafting

import "strings"

// SectionKind identifies one of the fixed cover letter sections.
type SectionKind int

const (
	SectionOpening SectionKind = iota
	SectionMotivation
	SectionCompetency
	SectionGrowthPlan
	SectionClosing
)

func (k SectionKind) String() string {
	switch k {
	case SectionOpening:
		return "opening"
	case SectionMotivation:
		return "motivation"
	case SectionCompetency:
		return "competency"
	case SectionGrowthPlan:
		return "growth_plan"
	case SectionClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Section is a headed block of the draft. Opening and closing have no heading.
type Section struct {
	Kind    SectionKind
	Heading string
	Body    string
}

// Document is a generated draft. Sections are always in SectionKind order.
type Document struct {
	Title    string
	Sections []Section
}

// IsZero reports whether no draft has been generated.
func (d Document) IsZero() bool {
	return d.Title == "" && len(d.Sections) == 0
}

// Section returns the section of the given kind.
func (d Document) Section(kind SectionKind) (Section, bool) {
	for _, s := range d.Sections {
		if s.Kind == kind {
			return s, true
		}
	}
	return Section{}, false
}

// WithBody returns a copy of d with the body of the given section replaced.
func (d Document) WithBody(kind SectionKind, body string) Document {
	out := Document{Title: d.Title, Sections: make([]Section, len(d.Sections))}
	copy(out.Sections, d.Sections)
	for i := range out.Sections {
		if out.Sections[i].Kind == kind {
			out.Sections[i].Body = body
		}
	}
	return out
}

// Render produces the plain text form of the draft.
func (d Document) Render() string {
	if d.IsZero() {
		return ""
	}
	blocks := make([]string, 0, len(d.Sections)+1)
	if d.Title != "" {
		blocks = append(blocks, d.Title)
	}
	for _, s := range d.Sections {
		if s.Heading == "" {
			blocks = append(blocks, s.Body)
			continue
		}
		blocks = append(blocks, s.Heading+"\n"+s.Body)
	}
	return strings.Join(blocks, "\n\n")
}
