package service

import (
	"math"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/util"
	"strings"
)

const (
	minAssessmentScore = 0
	maxAssessmentScore = 10
)

// ScoreSummary 评分聚合结果
type ScoreSummary struct {
	TotalPoints     float64
	ProgressPercent int
}

// ComputeScores 只依赖当前评分列表，重复调用结果一致
func ComputeScores(assessments []model.Assessment) ScoreSummary {
	if len(assessments) == 0 {
		return ScoreSummary{}
	}

	var total float64
	for _, a := range assessments {
		total += a.Score
	}
	avg := total / float64(len(assessments))

	return ScoreSummary{
		TotalPoints:     total,
		ProgressPercent: int(math.Round(avg * 100 / maxAssessmentScore)),
	}
}

// ApplyScores 用评分列表重算报名的总分与进度
func ApplyScores(e *model.Enrollment) {
	summary := ComputeScores(e.Assessments)
	e.TotalPoints = summary.TotalPoints
	e.ProgressPercent = summary.ProgressPercent
}

func validateAssessment(title string, score float64) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", util.ErrTitleRequired
	}
	if math.IsNaN(score) || score < minAssessmentScore || score > maxAssessmentScore {
		return "", util.ErrInvalidScore
	}
	return title, nil
}

var gradeTable = []struct {
	min   float64
	grade string
}{
	{95, "A+"},
	{90, "A"},
	{85, "B+"},
	{80, "B"},
	{75, "C+"},
	{70, "C"},
	{65, "D+"},
	{60, "D"},
}

// GradeForScore 百分制分数换算等级
func GradeForScore(score float64) string {
	for _, g := range gradeTable {
		if score >= g.min {
			return g.grade
		}
	}
	return "F"
}
