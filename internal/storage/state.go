package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"guildvault/internal/domain"
)

// schemaVersion is the current persisted payload version. Older payloads are
// migrated on load; newer ones are rejected.
const schemaVersion = 1

// legacyChat is the scope key legacy single-guild payloads are lifted into.
const legacyChat = "legacy"

// state is the aggregate root: every persisted entity, partitioned by chat.
type state struct {
	Applications map[string]map[int64]*domain.Application `json:"applications"`
	XP           map[string]map[int64]*domain.XPRecord    `json:"xp"`
	Cups         map[string][]domain.Cup                  `json:"cups"`
	Admins       map[string]map[int64]*domain.Admin       `json:"admins"`
}

func newState() *state {
	return &state{
		Applications: make(map[string]map[int64]*domain.Application),
		XP:           make(map[string]map[int64]*domain.XPRecord),
		Cups:         make(map[string][]domain.Cup),
		Admins:       make(map[string]map[int64]*domain.Admin),
	}
}

// clone deep-copies the state so mutations can be staged and swapped in only
// after a successful persist.
func (s *state) clone() *state {
	out := newState()
	for chat, apps := range s.Applications {
		bucket := make(map[int64]*domain.Application, len(apps))
		for user, app := range apps {
			copied := app.Clone()
			bucket[user] = &copied
		}
		out.Applications[chat] = bucket
	}
	for chat, records := range s.XP {
		bucket := make(map[int64]*domain.XPRecord, len(records))
		for user, rec := range records {
			copied := *rec
			bucket[user] = &copied
		}
		out.XP[chat] = bucket
	}
	for chat, cups := range s.Cups {
		bucket := make([]domain.Cup, 0, len(cups))
		for i := range cups {
			bucket = append(bucket, cups[i].Clone())
		}
		out.Cups[chat] = bucket
	}
	for chat, admins := range s.Admins {
		bucket := make(map[int64]*domain.Admin, len(admins))
		for user, adm := range admins {
			copied := *adm
			bucket[user] = &copied
		}
		out.Admins[chat] = bucket
	}
	return out
}

// normalize rebuilds any nil inner maps after deserialization so lookups and
// staged mutations never touch a nil map.
func (s *state) normalize() {
	if s.Applications == nil {
		s.Applications = make(map[string]map[int64]*domain.Application)
	}
	if s.XP == nil {
		s.XP = make(map[string]map[int64]*domain.XPRecord)
	}
	if s.Cups == nil {
		s.Cups = make(map[string][]domain.Cup)
	}
	if s.Admins == nil {
		s.Admins = make(map[string]map[int64]*domain.Admin)
	}
}

// persistedState is the plaintext payload handed to the codec.
type persistedState struct {
	SchemaVersion int    `json:"schema_version"`
	State         *state `json:"state"`
}

func encodeState(s *state) ([]byte, error) {
	return json.Marshal(persistedState{SchemaVersion: schemaVersion, State: s})
}

// decodeState parses a decrypted payload, migrating legacy layouts forward.
func decodeState(raw []byte) (*state, error) {
	var header struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("parse storage payload: %w", err)
	}

	switch {
	case header.SchemaVersion > schemaVersion:
		return nil, fmt.Errorf("storage schema version %d is newer than supported %d",
			header.SchemaVersion, schemaVersion)
	case header.SchemaVersion == 0:
		// Version 0 predates the versioned envelope: the flat single-guild
		// layout written by the original bot.
		return migrateLegacy(raw)
	}

	var payload persistedState
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse storage payload: %w", err)
	}
	if payload.State == nil {
		payload.State = newState()
	}
	payload.State.normalize()
	return payload.State, nil
}

// Legacy (version 0) payload shapes. Applications and history were flat maps
// keyed by user id; XP and cups were already chat-partitioned; admins were a
// bare id list with display fields in a side map.
type legacyPayload struct {
	Admins        []int64                      `json:"admins"`
	AdminProfiles map[int64]legacyProfile      `json:"admin_profiles"`
	Applications  map[int64]legacyApplication  `json:"applications"`
	History       map[int64]legacyHistoryEntry `json:"application_history"`
	XP            map[string]map[int64]int64   `json:"xp"`
	XPProfiles    map[int64]legacyProfile      `json:"xp_profiles"`
	Cups          map[string][]legacyCup       `json:"cups"`
}

type legacyProfile struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type legacyApplication struct {
	UserID    int64                        `json:"user_id"`
	FullName  string                       `json:"full_name"`
	Username  string                       `json:"username"`
	Answer    string                       `json:"answer"`
	CreatedAt string                       `json:"created_at"`
	Language  string                       `json:"language_code"`
	Responses []domain.ApplicationResponse `json:"responses"`
}

type legacyHistoryEntry struct {
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
	Note      string `json:"note"`
	Language  string `json:"language_code"`
}

type legacyCup struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Podium      []string `json:"podium"`
	CreatedAt   string   `json:"created_at"`
}

func migrateLegacy(raw []byte) (*state, error) {
	var legacy legacyPayload
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("parse legacy storage payload: %w", err)
	}

	out := newState()

	apps := make(map[int64]*domain.Application)
	for user, la := range legacy.Applications {
		app := &domain.Application{
			UserID:    user,
			FullName:  la.FullName,
			Username:  la.Username,
			Answer:    la.Answer,
			Responses: la.Responses,
			Status:    domain.StatusPending,
			Language:  la.Language,
			CreatedAt: parseLegacyTime(la.CreatedAt),
		}
		app.UpdatedAt = app.CreatedAt
		app.History = []domain.ApplicationHistoryEntry{
			{Status: domain.StatusPending, At: app.CreatedAt},
		}
		apps[user] = app
	}
	// Decided applications lived only in the history map; reconstruct a
	// terminal record so statistics keep counting them.
	for user, entry := range legacy.History {
		status := domain.Status(entry.Status)
		if !status.Valid() {
			continue
		}
		at := parseLegacyTime(entry.UpdatedAt)
		if app, ok := apps[user]; ok {
			if status != domain.StatusPending {
				app.Status = status
				app.Note = entry.Note
				app.UpdatedAt = at
				app.History = append(app.History, domain.ApplicationHistoryEntry{
					Status: status, At: at, Note: entry.Note,
				})
			}
			continue
		}
		apps[user] = &domain.Application{
			UserID:    user,
			Status:    status,
			Language:  entry.Language,
			Note:      entry.Note,
			CreatedAt: at,
			UpdatedAt: at,
			History: []domain.ApplicationHistoryEntry{
				{Status: status, At: at, Note: entry.Note},
			},
		}
	}
	if len(apps) > 0 {
		out.Applications[legacyChat] = apps
	}

	for chat, scores := range legacy.XP {
		bucket := make(map[int64]*domain.XPRecord, len(scores))
		for user, score := range scores {
			rec := &domain.XPRecord{UserID: user, Score: score}
			if profile, ok := legacy.XPProfiles[user]; ok {
				rec.Username = profile.Username
				rec.FullName = profile.FullName
			}
			bucket[user] = rec
		}
		out.XP[chat] = bucket
	}

	for chat, cups := range legacy.Cups {
		bucket := make([]domain.Cup, 0, len(cups))
		for _, lc := range cups {
			bucket = append(bucket, domain.Cup{
				Title:       lc.Title,
				Description: lc.Description,
				Podium:      append([]string(nil), lc.Podium...),
				CreatedAt:   parseLegacyTime(lc.CreatedAt),
			})
		}
		out.Cups[chat] = bucket
	}

	if len(legacy.Admins) > 0 {
		bucket := make(map[int64]*domain.Admin, len(legacy.Admins))
		for _, user := range legacy.Admins {
			adm := &domain.Admin{UserID: user}
			if profile, ok := legacy.AdminProfiles[user]; ok {
				adm.Username = profile.Username
				adm.FullName = profile.FullName
			}
			bucket[user] = adm
		}
		out.Admins[legacyChat] = bucket
	}

	return out, nil
}

// parseLegacyTime accepts the RFC 3339 stamps some legacy files carried;
// display-formatted stamps are unrecoverable and map to the zero time.
func parseLegacyTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
