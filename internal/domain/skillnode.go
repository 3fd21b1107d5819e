package domain

// SkillTree is the hierarchical decomposition of one learning goal.
// At most one tree per goal is active; guided study selects against it.
type SkillTree struct {
	ID       string
	GoalID   string
	UserID   string
	IsActive bool
}

// SkillNode is one topic in a skill tree, addressed by materialized path
// (e.g. "001.003.002"). Depth and Path are validated against the parent at
// write time so the tree cannot contain cycles.
type SkillNode struct {
	ID                string
	TreeID            string
	ParentID          *string
	Depth             int
	Path              string
	SortOrder         int
	IsEnabled         bool
	MasteryPercentage float64
	CardCount         int
}
