package storage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"guildvault/internal/domain"
	"guildvault/internal/xp"
)

// recentTransitionLimit bounds the transition list in Statistics.
const recentTransitionLimit = 20

// PendingApplications returns the chat's pending applications ordered by
// creation time ascending, ties broken by user id.
func (s *Service) PendingApplications(chat string) []domain.Application {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Application, 0)
	for _, app := range s.state.Applications[chat] {
		if app.Status == domain.StatusPending {
			out = append(out, app.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Application returns the live record for (chat, user), if any.
func (s *Service) Application(chat string, user int64) (domain.Application, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.state.Applications[chat][user]
	if !ok {
		return domain.Application{}, false
	}
	return app.Clone(), true
}

// Leaderboard returns up to limit XP records sorted by score descending,
// ties broken by user id ascending for determinism.
func (s *Service) Leaderboard(chat string, limit int) ([]domain.XPRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: leaderboard limit must be positive, got %d", domain.ErrValidation, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.XPRecord, 0, len(s.state.XP[chat]))
	for _, rec := range s.state.XP[chat] {
		out = append(out, *rec)
	}
	sortXPRecords(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// XP returns the record for (chat, user), if any.
func (s *Service) XP(chat string, user int64) (domain.XPRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.state.XP[chat][user]
	if !ok {
		return domain.XPRecord{}, false
	}
	return *rec, true
}

// Cups returns the chat's most recent cups, newest first.
func (s *Service) Cups(chat string, limit int) ([]domain.Cup, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: cups limit must be positive, got %d", domain.ErrValidation, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cups := s.state.Cups[chat]
	out := make([]domain.Cup, 0, min(limit, len(cups)))
	// Stored in creation order; walk backwards for newest-first.
	for i := len(cups) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cups[i].Clone())
	}
	return out, nil
}

// Statistics summarizes the chat's application activity: counts per status,
// language distribution, the most recent transitions (newest first), and the
// average answer length across pending applications.
func (s *Service) Statistics(chat string) domain.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.Statistics{
		StatusCounts: make(map[domain.Status]int),
		Languages:    make(map[string]int),
	}

	var pendingLengths []int
	for _, app := range s.state.Applications[chat] {
		stats.Total++
		stats.StatusCounts[app.Status]++

		lang := app.Language
		if lang == "" {
			lang = "unknown"
		}
		stats.Languages[lang]++

		if app.Status == domain.StatusPending {
			stats.Pending++
			pendingLengths = append(pendingLengths, app.AnswerLength())
		}

		for _, entry := range app.History {
			stats.RecentTransitions = append(stats.RecentTransitions, domain.TransitionEvent{
				UserID: app.UserID,
				Status: entry.Status,
				At:     entry.At,
			})
		}
	}

	sort.Slice(stats.RecentTransitions, func(i, j int) bool {
		a, b := stats.RecentTransitions[i], stats.RecentTransitions[j]
		if !a.At.Equal(b.At) {
			return a.At.After(b.At)
		}
		return a.UserID < b.UserID
	})
	if len(stats.RecentTransitions) > recentTransitionLimit {
		stats.RecentTransitions = stats.RecentTransitions[:recentTransitionLimit]
	}

	if len(pendingLengths) > 0 {
		total := 0
		for _, n := range pendingLengths {
			total += n
		}
		stats.AveragePendingLength = float64(total) / float64(len(pendingLengths))
	}
	return stats
}

// Admins returns the chat's admin records sorted by user id.
func (s *Service) Admins(chat string) []domain.Admin {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Admin, 0, len(s.state.Admins[chat]))
	for _, adm := range s.state.Admins[chat] {
		out = append(out, *adm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// GetAdmin returns the admin record for (chat, user). Absence is an expected
// outcome for access gating, not an error.
func (s *Service) GetAdmin(chat string, user int64) (domain.Admin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adm, ok := s.state.Admins[chat][user]
	if !ok {
		return domain.Admin{}, false
	}
	return *adm, true
}

// GroupSnapshot summarizes a chat for the overview endpoint: member and XP
// totals, the top scorer with level, cup counts and the latest activity.
func (s *Service) GroupSnapshot(chat string) domain.GroupSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.GroupSnapshot{AdminsTracked: len(s.state.Admins[chat])}

	var top *domain.XPRecord
	for _, rec := range s.state.XP[chat] {
		snap.MembersTracked++
		snap.TotalXP += rec.Score
		if top == nil || rec.Score > top.Score || (rec.Score == top.Score && rec.UserID < top.UserID) {
			top = rec
		}
		if rec.UpdatedAt.After(snap.LastActivity) {
			snap.LastActivity = rec.UpdatedAt
		}
	}
	if top != nil {
		display := top.FullName
		if display == "" {
			display = top.Username
		}
		if display == "" {
			display = strconv.FormatInt(top.UserID, 10)
		}
		snap.TopMember = &domain.TopMember{
			UserID:  top.UserID,
			Display: display,
			XP:      top.Score,
			Level:   xp.Progress(top.Score).Level,
		}
	}

	cups := s.state.Cups[chat]
	snap.CupCount = len(cups)
	if len(cups) > 0 {
		latest := cups[len(cups)-1].Clone()
		snap.RecentCup = &latest
	}
	return snap
}

// GlobalXPTop aggregates XP across all chats and returns the top scorers.
func (s *Service) GlobalXPTop(limit int) ([]domain.XPRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrValidation, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	totals := make(map[int64]*domain.XPRecord)
	for _, records := range s.state.XP {
		for user, rec := range records {
			agg, ok := totals[user]
			if !ok {
				agg = &domain.XPRecord{UserID: user}
				totals[user] = agg
			}
			agg.Score += rec.Score
			if rec.UpdatedAt.After(agg.UpdatedAt) {
				agg.UpdatedAt = rec.UpdatedAt
				agg.Username = rec.Username
				agg.FullName = rec.FullName
			}
		}
	}

	out := make([]domain.XPRecord, 0, len(totals))
	for _, rec := range totals {
		out = append(out, *rec)
	}
	sortXPRecords(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CupWinsTop counts podium placements that carry a numeric user id across
// all chats and returns the most decorated users. Non-numeric entries are
// display strings and ignored.
func (s *Service) CupWinsTop(limit int) ([]domain.CupWins, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrValidation, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wins := make(map[int64]int)
	for _, cups := range s.state.Cups {
		for _, cup := range cups {
			for _, entry := range cup.Podium {
				user, err := strconv.ParseInt(strings.TrimSpace(entry), 10, 64)
				if err != nil {
					continue
				}
				wins[user]++
			}
		}
	}

	out := make([]domain.CupWins, 0, len(wins))
	for user, count := range wins {
		out = append(out, domain.CupWins{UserID: user, Wins: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortXPRecords(records []domain.XPRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].UserID < records[j].UserID
	})
}
