package bracket

import "fmt"

const (
	SetsPerMatch      = 3
	SetsRequiredToWin = 2
)

// MatchKind is the small capability that differs between singles and doubles
// leagues. The bracket and advancement algorithms are shared.
type MatchKind interface {
	Type() MatchType
	SetCount() int
	SetsToWin() int
	CheckParticipant(p Participant) error
}

type singlesKind struct{}

func (singlesKind) Type() MatchType { return Singles }
func (singlesKind) SetCount() int   { return SetsPerMatch }
func (singlesKind) SetsToWin() int  { return SetsRequiredToWin }

func (singlesKind) CheckParticipant(p Participant) error {
	if p.PartnerName != nil {
		return fmt.Errorf("%w: singles entry %s has a partner", ErrInvalidParticipant, p.ID)
	}
	return nil
}

type doublesKind struct{}

func (doublesKind) Type() MatchType { return Doubles }
func (doublesKind) SetCount() int   { return SetsPerMatch }
func (doublesKind) SetsToWin() int  { return SetsRequiredToWin }

func (doublesKind) CheckParticipant(p Participant) error {
	if p.PartnerName == nil {
		return fmt.Errorf("%w: doubles entry %s has no partner", ErrInvalidParticipant, p.ID)
	}
	return nil
}

func KindOf(t MatchType) (MatchKind, error) {
	switch t {
	case Singles:
		return singlesKind{}, nil
	case Doubles:
		return doublesKind{}, nil
	default:
		return nil, fmt.Errorf("unsupported match type %q", t)
	}
}
