package app

import (
	"math"
	"sort"

	"livequiz-service/internal/domain"
)

// buildReportLocked computes the final report from the frozen session state.
// It runs exactly once, inside the end-session transition; callers read the
// memoized copy afterwards so repeated results calls are identical.
func (s *Session) buildReportLocked() domain.Report {
	questions := s.config.Questions
	totalQuestions := len(questions)

	scoredMode := false
	for _, q := range questions {
		if q.Scored() {
			scoredMode = true
			break
		}
	}

	participants := make([]*domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].JoinOrder < participants[j].JoinOrder
	})

	type ranked struct {
		entry domain.LeaderboardEntry
		score int
		order int
	}

	rows := make([]ranked, 0, len(participants))
	attemptedAny := 0
	percentSum := 0
	for _, p := range participants {
		answered, correct := 0, 0
		for _, q := range questions {
			answer, ok := s.answers[q.ID][p.AnonID]
			if !ok {
				continue
			}
			answered++
			if q.Scored() && answer.Choice == q.Correct {
				correct++
			}
		}
		if answered > 0 {
			attemptedAny++
		}

		numerator := correct
		if !scoredMode {
			numerator = answered
		}
		percent := 0
		if totalQuestions > 0 {
			percent = int(math.Round(float64(numerator) / float64(totalQuestions) * 100))
		}
		percentSum += percent

		score := correct
		if !scoredMode {
			score = answered
		}
		rows = append(rows, ranked{
			entry: domain.LeaderboardEntry{
				Name:     s.displayName(p),
				Correct:  correct,
				Answered: answered,
				Percent:  percent,
			},
			score: score,
			order: p.JoinOrder,
		})
	}

	// Rank by score, tie-break by join order so repeated reads are stable
	// and never depend on racy answer arrival order.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].order < rows[j].order
	})

	leaderboard := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		leaderboard = append(leaderboard, row.entry)
	}
	top3 := leaderboard
	if len(top3) > 3 {
		top3 = top3[:3]
	}

	avgPercent := 0
	if len(participants) > 0 {
		avgPercent = int(math.Round(float64(percentSum) / float64(len(participants))))
	}

	stats, hardest := s.questionStatsLocked()

	return domain.Report{
		SessionCode: s.code,
		ClassID:     s.config.ClassID,
		Title:       s.config.Title,
		Anonymous:   s.config.Anonymous,
		State:       domain.StateEnded,
		CreatedAt:   s.createdAt,
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
		Summary: domain.Summary{
			Joined:          len(participants),
			AttemptedAny:    attemptedAny,
			TotalQuestions:  totalQuestions,
			AvgPercent:      avgPercent,
			HardestQuestion: hardest,
			ScoredMode:      scoredMode,
		},
		Top3:          top3,
		Leaderboard:   leaderboard,
		QuestionStats: stats,
	}
}

func (s *Session) questionStatsLocked() ([]domain.QuestionStat, *domain.HardestQuestion) {
	stats := make([]domain.QuestionStat, 0, len(s.config.Questions))
	var hardest *domain.HardestQuestion

	for _, q := range s.config.Questions {
		counts := make(map[string]int, len(domain.ChoiceKeys))
		for _, key := range domain.ChoiceKeys {
			counts[key] = 0
		}
		total := 0
		for _, answer := range s.answers[q.ID] {
			counts[answer.Choice]++
			total++
		}

		stat := domain.QuestionStat{
			QuestionID:   q.ID,
			Prompt:       q.Prompt,
			Correct:      q.Correct,
			Counts:       counts,
			TotalAnswers: total,
		}

		if q.Scored() && total > 0 {
			rate := float64(counts[q.Correct]) / float64(total)
			stat.CorrectRate = &rate
			stat.MostCommonWrong = mostCommonWrong(counts, q.Correct)
			if hardest == nil || rate < hardest.CorrectRate {
				hardest = &domain.HardestQuestion{
					QuestionID:  q.ID,
					Prompt:      q.Prompt,
					CorrectRate: rate,
				}
			}
		}
		stats = append(stats, stat)
	}
	return stats, hardest
}

func mostCommonWrong(counts map[string]int, correct string) string {
	best, bestCount := "", 0
	for _, key := range domain.ChoiceKeys {
		if key == correct {
			continue
		}
		if counts[key] > bestCount {
			best, bestCount = key, counts[key]
		}
	}
	return best
}

func (s *Session) displayName(p *domain.Participant) string {
	if s.config.Anonymous || p.Nickname == "" {
		return "Anonymous"
	}
	return p.Nickname
}
