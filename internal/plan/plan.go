package plan

// Plan is a named subscription tier.
type Plan string

const (
	Free    Plan = "free"
	Starter Plan = "starter"
	Team    Plan = "team"
	Agency  Plan = "agency"
)

// Unlimited marks a ceiling that is not enforced.
const Unlimited = -1

// Limits are the usage ceilings of a plan.
type Limits struct {
	Reports int `json:"reports"`
	Members int `json:"members"`
	Sites   int `json:"sites"`
}

// limitsTable is the single source of truth for plan enforcement.
var limitsTable = map[Plan]Limits{
	Free:    {Reports: 50, Members: 3, Sites: 3},
	Starter: {Reports: 1000, Members: 10, Sites: 5},
	Team:    {Reports: 5000, Members: 50, Sites: Unlimited},
	Agency:  {Reports: Unlimited, Members: Unlimited, Sites: Unlimited},
}

// LimitsFor returns the ceilings for a plan. Unknown plan labels fall back to
// free, the most restrictive tier.
func LimitsFor(p Plan) Limits {
	if l, ok := limitsTable[p]; ok {
		return l
	}
	return limitsTable[Free]
}

// Parse maps a wire string to a Plan, defaulting to free.
func Parse(s string) Plan {
	switch Plan(s) {
	case Starter:
		return Starter
	case Team:
		return Team
	case Agency:
		return Agency
	}
	return Free
}
