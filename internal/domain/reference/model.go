package reference

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which reference collection an entity belongs to.
type Kind string

const (
	KindWorker  Kind = "WORKER"
	KindTeam    Kind = "TEAM"
	KindSite    Kind = "SITE"
	KindCompany Kind = "COMPANY"
)

// Kinds lists every reference entity kind that carries a counter.
var Kinds = []Kind{KindWorker, KindTeam, KindSite, KindCompany}

// Entity is a reference record (worker, team, site or company) carrying
// the denormalized cumulative work-unit counter. The counter is mutated
// only through signed deltas, never overwritten, except by the recompute
// maintenance operation.
type Entity struct {
	Kind                Kind            `json:"kind"`
	ID                  string          `json:"id"`
	Name                string          `json:"name,omitempty"`
	CompanyID           string          `json:"companyId,omitempty"` // owning company, teams only
	CumulativeWorkUnits decimal.Decimal `json:"cumulativeWorkUnits"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}
