// Package hints defines the mentor-guidance bundle produced by the LLM.
package hints

// Bundle is the strict-JSON payload the model must return. Every field maps
// to one of the fixed output sections of the mentor prompt.
type Bundle struct {
	HighLevelGoal string   `json:"high_level_goal"`
	WhereToWork   []string `json:"where_to_work"`
	WhatToChange  []string `json:"what_to_change"`
	HowToVerify   []string `json:"how_to_verify"`
	Gotchas       []string `json:"gotchas"`
}

// Empty reports whether the bundle carries no guidance at all.
func (b Bundle) Empty() bool {
	return b.HighLevelGoal == "" &&
		len(b.WhereToWork) == 0 &&
		len(b.WhatToChange) == 0 &&
		len(b.HowToVerify) == 0 &&
		len(b.Gotchas) == 0
}
