package vmsg

// Section identifies the kind of vMessage section being parsed.
type Section int

const (
	SectionNone Section = iota
	SectionContainer
	SectionAddress
	SectionEnvelope
	SectionBody
)

var sectionMarkers = map[string]Section{
	"VMSG":  SectionContainer,
	"VCARD": SectionAddress,
	"VENV":  SectionEnvelope,
	"VBODY": SectionBody,
}

// sectionForMarker maps the TYPE of a BEGIN:/END: line to a section kind.
func sectionForMarker(marker string) (Section, bool) {
	s, ok := sectionMarkers[marker]
	return s, ok
}

// Marker returns the TYPE literal used in BEGIN:/END: lines.
func (s Section) Marker() string {
	switch s {
	case SectionContainer:
		return "VMSG"
	case SectionAddress:
		return "VCARD"
	case SectionEnvelope:
		return "VENV"
	case SectionBody:
		return "VBODY"
	}
	return ""
}

func (s Section) String() string {
	switch s {
	case SectionNone:
		return "top"
	case SectionContainer:
		return "container"
	case SectionAddress:
		return "address"
	case SectionEnvelope:
		return "envelope"
	case SectionBody:
		return "body"
	}
	return "unknown"
}

// allows reports whether child may be nested directly inside s.
// Envelope is the only kind that may contain itself.
func (s Section) allows(child Section) bool {
	switch s {
	case SectionNone:
		return child == SectionContainer
	case SectionContainer:
		return child == SectionAddress || child == SectionEnvelope
	case SectionEnvelope:
		return child == SectionAddress || child == SectionEnvelope || child == SectionBody
	}
	return false
}
