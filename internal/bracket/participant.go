package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Participant struct {
	ID          uuid.UUID `db:"id" json:"id"`
	LeagueID    uuid.UUID `db:"league_id" json:"leagueId"`
	MemberName  string    `db:"member_name" json:"memberName"`
	PartnerName *string   `db:"partner_name" json:"partnerName,omitempty"`
	Canceled    bool      `db:"canceled" json:"canceled"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

func (p Participant) DisplayName() string {
	if p.PartnerName != nil {
		return p.MemberName + " / " + *p.PartnerName
	}
	return p.MemberName
}
