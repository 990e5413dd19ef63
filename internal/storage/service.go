package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"guildvault/internal/crypto"
	"guildvault/internal/domain"
)

// maxPodium bounds how many podium entries a cup may carry.
const maxPodium = 3

// Service owns the persisted state. Every operation runs under one exclusive
// guard; mutations stage their changes on a deep copy, persist it through the
// codec and the atomic writer, and only then swap it in as the live state, so
// memory and disk never diverge on a failed save.
type Service struct {
	path  string
	codec *crypto.Codec
	log   zerolog.Logger

	mu    sync.Mutex
	state *state
}

// New returns a service persisting to path through codec. Call Load before
// any other method.
func New(path string, codec *crypto.Codec, log zerolog.Logger) *Service {
	return &Service{path: path, codec: codec, log: log, state: newState()}
}

// Load reads the storage file. A missing file bootstraps an empty state and
// persists it immediately; an undecryptable file is a configuration error
// (likely a wrong secret) and must abort startup.
func (s *Service) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		st := newState()
		if err := s.persist(st); err != nil {
			return err
		}
		s.state = st
		s.log.Info().Str("path", s.path).Msg("storage_bootstrapped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read storage file: %w", err)
	}

	payload, err := s.codec.Open(raw)
	if err != nil {
		if errors.Is(err, domain.ErrDecryption) {
			return fmt.Errorf("decrypt %s (is the storage secret correct?): %w", s.path, err)
		}
		return err
	}
	st, err := decodeState(payload)
	if err != nil {
		return err
	}
	s.state = st
	s.log.Info().Str("path", s.path).Msg("storage_loaded")
	return nil
}

// persist serializes, encrypts and atomically writes st. Callers must hold
// the guard.
func (s *Service) persist(st *state) error {
	payload, err := encodeState(st)
	if err != nil {
		return fmt.Errorf("%w: encode state: %v", domain.ErrPersistence, err)
	}
	sealed, err := s.codec.Seal(payload)
	if err != nil {
		return fmt.Errorf("%w: seal state: %v", domain.ErrPersistence, err)
	}
	if err := writeFileAtomic(s.path, sealed, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersistence, s.path, err)
	}
	s.log.Debug().Str("path", s.path).Msg("storage_flushed")
	return nil
}

// commit persists staged and swaps it in as the live state. Callers must
// hold the guard.
func (s *Service) commit(staged *state) error {
	if err := s.persist(staged); err != nil {
		return err
	}
	s.state = staged
	return nil
}

// SubmitApplication records a new membership request in pending status. A
// live (pending) application for the same chat and user rejects the
// submission; a terminal one is superseded by the new record.
func (s *Service) SubmitApplication(chat string, user int64, fullName, username string,
	responses []domain.ApplicationResponse, legacyAnswer, language string) (domain.Application, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.state.Applications[chat][user]; ok && !existing.Status.Terminal() {
		return domain.Application{}, fmt.Errorf("chat %s user %d: %w", chat, user, domain.ErrDuplicateApplication)
	}

	now := time.Now().UTC()
	app := &domain.Application{
		UserID:    user,
		FullName:  strings.TrimSpace(fullName),
		Username:  normalizeUsername(username),
		Responses: append([]domain.ApplicationResponse(nil), responses...),
		Answer:    legacyAnswer,
		Status:    domain.StatusPending,
		Language:  strings.ToLower(strings.TrimSpace(language)),
		CreatedAt: now,
		UpdatedAt: now,
		History: []domain.ApplicationHistoryEntry{
			{Status: domain.StatusPending, At: now},
		},
	}

	staged := s.state.clone()
	if staged.Applications[chat] == nil {
		staged.Applications[chat] = make(map[int64]*domain.Application)
	}
	staged.Applications[chat][user] = app

	if err := s.commit(staged); err != nil {
		return domain.Application{}, err
	}
	s.log.Info().Str("chat", chat).Int64("user_id", user).Msg("application_added")
	return app.Clone(), nil
}

// DecideApplication moves a pending application to approved or denied.
func (s *Service) DecideApplication(chat string, user int64, decision domain.Status,
	actor int64, note string) (domain.Application, error) {

	if decision != domain.StatusApproved && decision != domain.StatusDenied {
		return domain.Application{}, fmt.Errorf("%w: decision must be approved or denied, got %q",
			domain.ErrValidation, decision)
	}
	return s.transition(chat, user, decision, actor, note, "application_decided")
}

// WithdrawApplication retracts a pending application on the applicant's
// behalf.
func (s *Service) WithdrawApplication(chat string, user int64) (domain.Application, error) {
	return s.transition(chat, user, domain.StatusWithdrawn, 0, "", "application_withdrawn")
}

func (s *Service) transition(chat string, user int64, to domain.Status,
	actor int64, note, event string) (domain.Application, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.state.Applications[chat][user]
	if !ok {
		return domain.Application{}, fmt.Errorf("application for chat %s user %d: %w",
			chat, user, domain.ErrNotFound)
	}
	if !domain.ValidTransition(current.Status, to) {
		return domain.Application{}, fmt.Errorf("%s -> %s for chat %s user %d: %w",
			current.Status, to, chat, user, domain.ErrInvalidTransition)
	}

	staged := s.state.clone()
	app := staged.Applications[chat][user]
	now := time.Now().UTC()
	app.Status = to
	app.UpdatedAt = now
	if note != "" {
		app.Note = note
	}
	app.History = append(app.History, domain.ApplicationHistoryEntry{
		Status: to, At: now, Actor: actor, Note: note,
	})

	if err := s.commit(staged); err != nil {
		return domain.Application{}, err
	}
	s.log.Info().Str("chat", chat).Int64("user_id", user).Str("status", string(to)).Msg(event)
	return app.Clone(), nil
}

// AwardXP increments the score of (chat, user) by amount, creating the record
// at zero first. Display fields, when provided, refresh the stored profile.
// Returns the new total.
func (s *Service) AwardXP(chat string, user int64, amount int64, username, fullName string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: xp amount must be positive, got %d", domain.ErrValidation, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if staged.XP[chat] == nil {
		staged.XP[chat] = make(map[int64]*domain.XPRecord)
	}
	rec, ok := staged.XP[chat][user]
	if !ok {
		rec = &domain.XPRecord{UserID: user}
		staged.XP[chat][user] = rec
	}
	rec.Score += amount
	if u := normalizeUsername(username); u != "" {
		rec.Username = u
	}
	if n := strings.TrimSpace(fullName); n != "" {
		rec.FullName = n
	}
	rec.UpdatedAt = time.Now().UTC()

	if err := s.commit(staged); err != nil {
		return 0, err
	}
	s.log.Debug().Str("chat", chat).Int64("user_id", user).Int64("amount", amount).Msg("xp_added")
	return rec.Score, nil
}

// CreateCup appends a competition record to the chat's cup list. Cups are
// stored in creation order and served newest-first by Cups.
func (s *Service) CreateCup(chat, title, description string, podium []string) (domain.Cup, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Cup{}, fmt.Errorf("%w: cup title is required", domain.ErrValidation)
	}
	if len(podium) == 0 || len(podium) > maxPodium {
		return domain.Cup{}, fmt.Errorf("%w: podium must have 1 to %d entries, got %d",
			domain.ErrValidation, maxPodium, len(podium))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cup := domain.Cup{
		Title:       title,
		Description: strings.TrimSpace(description),
		Podium:      append([]string(nil), podium...),
		CreatedAt:   time.Now().UTC(),
	}
	staged := s.state.clone()
	staged.Cups[chat] = append(staged.Cups[chat], cup)

	if err := s.commit(staged); err != nil {
		return domain.Cup{}, err
	}
	s.log.Info().Str("chat", chat).Str("title", title).Msg("cup_added")
	return cup.Clone(), nil
}

// AddAdmin inserts or refreshes an admin record. Display fields update only
// when non-empty, and the owner flag of an existing owner is never cleared.
func (s *Service) AddAdmin(chat string, user int64, username, fullName string, owner bool) (domain.AdminOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if staged.Admins[chat] == nil {
		staged.Admins[chat] = make(map[int64]*domain.Admin)
	}

	outcome := domain.AdminUpdated
	adm, ok := staged.Admins[chat][user]
	if !ok {
		adm = &domain.Admin{UserID: user}
		staged.Admins[chat][user] = adm
		outcome = domain.AdminCreated
	}
	if u := normalizeUsername(username); u != "" {
		adm.Username = u
	}
	if n := strings.TrimSpace(fullName); n != "" {
		adm.FullName = n
	}
	adm.Owner = adm.Owner || owner

	if err := s.commit(staged); err != nil {
		return "", err
	}
	s.log.Info().Str("chat", chat).Int64("user_id", user).Str("outcome", string(outcome)).Msg("admin_added")
	return outcome, nil
}

// RemoveAdmin deletes an admin record. The last remaining owner of a scope
// cannot be removed.
func (s *Service) RemoveAdmin(chat string, user int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.state.Admins[chat][user]
	if !ok {
		return fmt.Errorf("admin %d in chat %s: %w", user, chat, domain.ErrNotFound)
	}
	if target.Owner && countOwners(s.state.Admins[chat]) == 1 {
		return fmt.Errorf("%w: cannot remove the last owner of chat %s", domain.ErrValidation, chat)
	}

	staged := s.state.clone()
	delete(staged.Admins[chat], user)
	if len(staged.Admins[chat]) == 0 {
		delete(staged.Admins, chat)
	}

	if err := s.commit(staged); err != nil {
		return err
	}
	s.log.Info().Str("chat", chat).Int64("user_id", user).Msg("admin_removed")
	return nil
}

func countOwners(admins map[int64]*domain.Admin) int {
	n := 0
	for _, adm := range admins {
		if adm.Owner {
			n++
		}
	}
	return n
}

// normalizeUsername trims whitespace and a leading @.
func normalizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return strings.TrimSpace(username)
}
