// Package skill classifies users by their solved-problem counts.
package skill

import "github.com/okian/kata/internal/domain/model"

// Thresholds. Advanced is checked first.
const (
	AdvancedTotal     = 500
	AdvancedHard      = 50
	IntermediateTotal = 100
	IntermediateMed   = 30
)

// Classify maps solved stats to a skill level.
func Classify(s model.SolvedStats) model.SkillLevel {
	switch {
	case s.TotalSolved >= AdvancedTotal || s.HardSolved >= AdvancedHard:
		return model.SkillAdvanced
	case s.TotalSolved >= IntermediateTotal || s.MediumSolved >= IntermediateMed:
		return model.SkillIntermediate
	default:
		return model.SkillBeginner
	}
}
