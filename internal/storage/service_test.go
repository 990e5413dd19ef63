package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"guildvault/internal/crypto"
	"guildvault/internal/domain"
	"guildvault/internal/storage"
)

func newTestService(t *testing.T) (*storage.Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.enc")
	svc := storage.New(path, crypto.NewCodec("test secret"), zerolog.Nop())
	require.NoError(t, svc.Load())
	return svc, path
}

func submit(t *testing.T, svc *storage.Service, chat string, user int64) domain.Application {
	t.Helper()
	app, err := svc.SubmitApplication(chat, user, "Some User", "someone",
		[]domain.ApplicationResponse{{Question: "role", Answer: "builder"}}, "", "en")
	require.NoError(t, err)
	return app
}

func TestLoad_BootstrapsMissingFile(t *testing.T) {
	_, path := newTestService(t)

	// Bootstrap persists immediately, and the file is not plaintext JSON state.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "applications")
}

func TestLoad_WrongSecretFails(t *testing.T) {
	svc, path := newTestService(t)
	submit(t, svc, "guildA", 42)

	other := storage.New(path, crypto.NewCodec("another secret"), zerolog.Nop())
	err := other.Load()
	require.ErrorIs(t, err, domain.ErrDecryption)
	require.ErrorContains(t, err, "secret")
}

func TestFailedPersistLeavesPreviousSnapshot(t *testing.T) {
	svc, path := newTestService(t)

	_, err := svc.AwardXP("guildA", 7, 10, "lucky", "Lucky Seven")
	require.NoError(t, err)
	lastGood, err := os.ReadFile(path)
	require.NoError(t, err)

	// A directory squatting on the state path makes the atomic replace fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	_, err = svc.AwardXP("guildA", 7, 5, "lucky", "Lucky Seven")
	require.ErrorIs(t, err, domain.ErrPersistence)

	// Memory stays at the previous snapshot.
	rec, ok := svc.XP("guildA", 7)
	require.True(t, ok)
	require.EqualValues(t, 10, rec.Score)

	// So does disk: the last written blob still decodes to the same snapshot.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.WriteFile(path, lastGood, 0o600))
	reloaded := storage.New(path, crypto.NewCodec("test secret"), zerolog.Nop())
	require.NoError(t, reloaded.Load())
	rec, ok = reloaded.XP("guildA", 7)
	require.True(t, ok)
	require.EqualValues(t, 10, rec.Score)

	// Once the path is writable again the service resumes from where it was.
	total, err := svc.AwardXP("guildA", 7, 5, "lucky", "Lucky Seven")
	require.NoError(t, err)
	require.EqualValues(t, 15, total)
}

func TestSubmitAndDecideFlow(t *testing.T) {
	svc, _ := newTestService(t)

	app, err := svc.SubmitApplication("guildA", 42, "Builder Bob", "@bob",
		[]domain.ApplicationResponse{{Question: "role", Answer: "builder"}}, "", "en")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, app.Status)
	require.Equal(t, "bob", app.Username)
	require.Len(t, app.History, 1)

	pending := svc.PendingApplications("guildA")
	require.Len(t, pending, 1)
	require.EqualValues(t, 42, pending[0].UserID)
	require.Equal(t, domain.StatusPending, pending[0].Status)

	decided, err := svc.DecideApplication("guildA", 42, domain.StatusApproved, 1, "welcome")
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, decided.Status)
	require.Len(t, decided.History, 2)
	require.EqualValues(t, 1, decided.History[1].Actor)
	require.Equal(t, "welcome", decided.Note)

	// Terminal: a second decision must violate the state machine.
	_, err = svc.DecideApplication("guildA", 42, domain.StatusDenied, 1, "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.Empty(t, svc.PendingApplications("guildA"))
}

func TestSubmit_DuplicateWhileLive(t *testing.T) {
	svc, _ := newTestService(t)
	submit(t, svc, "guildA", 42)

	_, err := svc.SubmitApplication("guildA", 42, "Again", "", nil, "hi", "en")
	require.ErrorIs(t, err, domain.ErrDuplicateApplication)

	// The same user in another chat scope is unaffected.
	_, err = svc.SubmitApplication("guildB", 42, "Again", "", nil, "hi", "en")
	require.NoError(t, err)
}

func TestSubmit_AfterTerminalSupersedes(t *testing.T) {
	svc, _ := newTestService(t)
	submit(t, svc, "guildA", 42)
	_, err := svc.WithdrawApplication("guildA", 42)
	require.NoError(t, err)

	app, err := svc.SubmitApplication("guildA", 42, "Second Try", "", nil, "again", "de")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, app.Status)
	require.Len(t, app.History, 1)
}

func TestDecide_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	submit(t, svc, "guildA", 42)

	_, err := svc.DecideApplication("guildA", 42, domain.StatusWithdrawn, 1, "")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.DecideApplication("guildA", 7, domain.StatusApproved, 1, "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWithdraw(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.WithdrawApplication("guildA", 42)
	require.ErrorIs(t, err, domain.ErrNotFound)

	submit(t, svc, "guildA", 42)
	app, err := svc.WithdrawApplication("guildA", 42)
	require.NoError(t, err)
	require.Equal(t, domain.StatusWithdrawn, app.Status)

	_, err = svc.WithdrawApplication("guildA", 42)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAwardXP(t *testing.T) {
	svc, _ := newTestService(t)

	total, err := svc.AwardXP("guildA", 7, 10, "lucky", "Lucky Seven")
	require.NoError(t, err)
	require.EqualValues(t, 10, total)

	total, err = svc.AwardXP("guildA", 7, 5, "", "")
	require.NoError(t, err)
	require.EqualValues(t, 15, total)

	rec, ok := svc.XP("guildA", 7)
	require.True(t, ok)
	require.EqualValues(t, 15, rec.Score)
	require.Equal(t, "lucky", rec.Username)
	require.Equal(t, "Lucky Seven", rec.FullName)
}

func TestAwardXP_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.AwardXP("guildA", 7, 10, "", "")
	require.NoError(t, err)

	for _, amount := range []int64{0, -3} {
		_, err := svc.AwardXP("guildA", 7, amount, "", "")
		require.ErrorIs(t, err, domain.ErrValidation)
	}

	rec, _ := svc.XP("guildA", 7)
	require.EqualValues(t, 10, rec.Score, "score unchanged after rejected awards")
}

func TestLeaderboard(t *testing.T) {
	svc, _ := newTestService(t)
	for user, amount := range map[int64]int64{1: 30, 2: 50, 3: 30, 4: 10} {
		_, err := svc.AwardXP("guildA", user, amount, "", "")
		require.NoError(t, err)
	}

	board, err := svc.Leaderboard("guildA", 3)
	require.NoError(t, err)
	require.Len(t, board, 3)
	require.EqualValues(t, 2, board[0].UserID)
	// Tie on 30 breaks by ascending user id.
	require.EqualValues(t, 1, board[1].UserID)
	require.EqualValues(t, 3, board[2].UserID)

	again, err := svc.Leaderboard("guildA", 3)
	require.NoError(t, err)
	require.Equal(t, board, again, "read is idempotent without mutation")

	_, err = svc.Leaderboard("guildA", 0)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCups(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateCup("guildA", "  ", "d", []string{"1"})
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.CreateCup("guildA", "t", "d", nil)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.CreateCup("guildA", "t", "d", []string{"1", "2", "3", "4"})
	require.ErrorIs(t, err, domain.ErrValidation)

	for _, title := range []string{"Spring Cup", "Summer Cup", "Autumn Cup"} {
		_, err := svc.CreateCup("guildA", title, "seasonal", []string{"7", "8"})
		require.NoError(t, err)
	}

	cups, err := svc.Cups("guildA", 2)
	require.NoError(t, err)
	require.Len(t, cups, 2)
	require.Equal(t, "Autumn Cup", cups[0].Title)
	require.Equal(t, "Summer Cup", cups[1].Title)
}

func TestAdmins(t *testing.T) {
	svc, _ := newTestService(t)

	outcome, err := svc.AddAdmin("guildA", 1, "owner", "The Owner", true)
	require.NoError(t, err)
	require.Equal(t, domain.AdminCreated, outcome)

	outcome, err = svc.AddAdmin("guildA", 2, "mod", "", false)
	require.NoError(t, err)
	require.Equal(t, domain.AdminCreated, outcome)

	// Updating an owner without the flag must not clear it.
	outcome, err = svc.AddAdmin("guildA", 1, "owner2", "", false)
	require.NoError(t, err)
	require.Equal(t, domain.AdminUpdated, outcome)

	adm, ok := svc.GetAdmin("guildA", 1)
	require.True(t, ok)
	require.True(t, adm.Owner)
	require.Equal(t, "owner2", adm.Username)

	_, ok = svc.GetAdmin("guildA", 99)
	require.False(t, ok)

	admins := svc.Admins("guildA")
	require.Len(t, admins, 2)
	require.EqualValues(t, 1, admins[0].UserID)
}

func TestRemoveAdmin_LastOwnerProtected(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.AddAdmin("guildA", 1, "", "", true)
	require.NoError(t, err)
	_, err = svc.AddAdmin("guildA", 2, "", "", false)
	require.NoError(t, err)

	err = svc.RemoveAdmin("guildA", 1)
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Len(t, svc.Admins("guildA"), 2, "admin list unchanged")

	require.NoError(t, svc.RemoveAdmin("guildA", 2))
	err = svc.RemoveAdmin("guildA", 2)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// A second owner unblocks removal of the first.
	_, err = svc.AddAdmin("guildA", 3, "", "", true)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveAdmin("guildA", 1))
}

func TestStatistics(t *testing.T) {
	svc, _ := newTestService(t)

	stats := svc.Statistics("guildA")
	require.Zero(t, stats.Total)
	require.Zero(t, stats.AveragePendingLength, "no pending applications means zero average")

	submit(t, svc, "guildA", 42) // answer "builder" (7 chars), language en
	_, err := svc.SubmitApplication("guildA", 43, "Legacy", "", nil, "short", "de")
	require.NoError(t, err)
	_, err = svc.SubmitApplication("guildA", 44, "Third", "", nil, "", "")
	require.NoError(t, err)
	_, err = svc.DecideApplication("guildA", 44, domain.StatusDenied, 1, "")
	require.NoError(t, err)

	stats = svc.Statistics("guildA")
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 2, stats.Pending)
	require.Equal(t, 2, stats.StatusCounts[domain.StatusPending])
	require.Equal(t, 1, stats.StatusCounts[domain.StatusDenied])
	require.Equal(t, 1, stats.Languages["en"])
	require.Equal(t, 1, stats.Languages["de"])
	require.Equal(t, 1, stats.Languages["unknown"])
	require.InDelta(t, 6.0, stats.AveragePendingLength, 0.001) // (7+5)/2

	require.NotEmpty(t, stats.RecentTransitions)
	require.Equal(t, domain.StatusDenied, stats.RecentTransitions[0].Status,
		"most recent transition first")
	for i := 1; i < len(stats.RecentTransitions); i++ {
		require.False(t, stats.RecentTransitions[i-1].At.Before(stats.RecentTransitions[i].At))
	}
}

func TestRoundTrip_ReloadMatches(t *testing.T) {
	svc, path := newTestService(t)

	submit(t, svc, "guildA", 42)
	_, err := svc.DecideApplication("guildA", 42, domain.StatusApproved, 1, "in")
	require.NoError(t, err)
	_, err = svc.AwardXP("guildA", 7, 15, "lucky", "Lucky Seven")
	require.NoError(t, err)
	_, err = svc.CreateCup("guildA", "Spring Cup", "first", []string{"7", "42"})
	require.NoError(t, err)
	_, err = svc.AddAdmin("guildA", 1, "owner", "The Owner", true)
	require.NoError(t, err)

	reloaded := storage.New(path, crypto.NewCodec("test secret"), zerolog.Nop())
	require.NoError(t, reloaded.Load())

	app, ok := reloaded.Application("guildA", 42)
	require.True(t, ok)
	require.Equal(t, domain.StatusApproved, app.Status)
	require.Len(t, app.History, 2)
	require.Equal(t, []domain.ApplicationResponse{{Question: "role", Answer: "builder"}}, app.Responses)

	rec, ok := reloaded.XP("guildA", 7)
	require.True(t, ok)
	require.EqualValues(t, 15, rec.Score)

	cups, err := reloaded.Cups("guildA", 10)
	require.NoError(t, err)
	require.Len(t, cups, 1)
	require.Equal(t, []string{"7", "42"}, cups[0].Podium)

	adm, ok := reloaded.GetAdmin("guildA", 1)
	require.True(t, ok)
	require.True(t, adm.Owner)
}

func TestReturnedCopiesAreDetached(t *testing.T) {
	svc, _ := newTestService(t)
	submit(t, svc, "guildA", 42)

	pending := svc.PendingApplications("guildA")
	pending[0].Responses[0].Answer = "mutated by caller"
	pending[0].Status = domain.StatusApproved

	fresh := svc.PendingApplications("guildA")
	require.Len(t, fresh, 1)
	require.Equal(t, "builder", fresh[0].Responses[0].Answer)
	require.Equal(t, domain.StatusPending, fresh[0].Status)
}

func TestGroupSnapshotAndGlobalTops(t *testing.T) {
	svc, _ := newTestService(t)

	snap := svc.GroupSnapshot("guildA")
	require.Zero(t, snap.MembersTracked)
	require.Nil(t, snap.TopMember)

	_, err := svc.AwardXP("guildA", 7, 30, "", "Lucky Seven")
	require.NoError(t, err)
	_, err = svc.AwardXP("guildA", 8, 12, "eight", "")
	require.NoError(t, err)
	_, err = svc.AwardXP("guildB", 7, 20, "", "")
	require.NoError(t, err)
	_, err = svc.CreateCup("guildA", "Spring Cup", "", []string{"7", "8"})
	require.NoError(t, err)
	_, err = svc.AddAdmin("guildA", 1, "", "", true)
	require.NoError(t, err)

	snap = svc.GroupSnapshot("guildA")
	require.Equal(t, 2, snap.MembersTracked)
	require.EqualValues(t, 42, snap.TotalXP)
	require.NotNil(t, snap.TopMember)
	require.EqualValues(t, 7, snap.TopMember.UserID)
	require.Equal(t, "Lucky Seven", snap.TopMember.Display)
	require.Equal(t, 2, snap.TopMember.Level) // 30 XP sits in level 2 (25..45)
	require.Equal(t, 1, snap.CupCount)
	require.Equal(t, "Spring Cup", snap.RecentCup.Title)
	require.Equal(t, 1, snap.AdminsTracked)
	require.False(t, snap.LastActivity.IsZero())

	top, err := svc.GlobalXPTop(10)
	require.NoError(t, err)
	require.EqualValues(t, 7, top[0].UserID)
	require.EqualValues(t, 50, top[0].Score, "xp summed across chats")

	wins, err := svc.CupWinsTop(10)
	require.NoError(t, err)
	require.Equal(t, []domain.CupWins{{UserID: 7, Wins: 1}, {UserID: 8, Wins: 1}}, wins)
}
