package domain

// GateVerdict is the ingestion gate decision for one delivery
type GateVerdict int

const (
	GateAdmit GateVerdict = iota
	GateDuplicateDrop
	GateSpamDrop
)

func (v GateVerdict) String() string {
	switch v {
	case GateDuplicateDrop:
		return "duplicate"
	case GateSpamDrop:
		return "spam"
	default:
		return "admit"
	}
}
