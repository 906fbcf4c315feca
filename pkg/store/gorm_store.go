package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"dropjournal/internal/util"
	"dropjournal/pkg/domain"
)

const migrateLockID int64 = 48151623

type gormStoreOptions struct {
	logLevel     gormlogger.LogLevel
	maxOpenConns int
	skipMigrate  bool
}

type GormStoreOption func(*gormStoreOptions)

// WithLogLevel sets the GORM log level (default Warn).
func WithLogLevel(level gormlogger.LogLevel) GormStoreOption {
	return func(opts *gormStoreOptions) {
		opts.logLevel = level
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) GormStoreOption {
	return func(opts *gormStoreOptions) {
		opts.maxOpenConns = n
	}
}

// WithoutMigrate skips schema migration on open.
func WithoutMigrate() GormStoreOption {
	return func(opts *gormStoreOptions) {
		opts.skipMigrate = true
	}
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a Postgres database and runs migrations.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	return OpenGormStore(postgres.Open(dsn), options...)
}

// OpenGormStore opens any GORM dialector. Postgres-only migration steps
// (advisory lock, foreign keys) are skipped for other dialects.
func OpenGormStore(dialector gorm.Dialector, options ...GormStoreOption) (*GormStore, error) {
	opts := gormStoreOptions{logLevel: gormlogger.Warn}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	gormLog := gormlogger.New(slogWriter{}, gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  opts.logLevel,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if opts.maxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(opts.maxOpenConns)
	}
	s := &GormStore{db: db}
	if !opts.skipMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// slogWriter routes GORM's logger through slog.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Warn("gorm", "detail", strings.TrimSpace(fmt.Sprintf(format, args...)))
}

type foreignKey struct {
	table, column, refTable, onDelete string
}

var foreignKeys = []foreignKey{
	{"journal_entries", "user_id", "users", "CASCADE"},
	{"journal_entries", "prompt_id", "prompts", "SET NULL"},
	{"conversations", "journal_entry_id", "journal_entries", "CASCADE"},
	{"messages", "conversation_id", "conversations", "CASCADE"},
	{"entry_tags", "journal_entry_id", "journal_entries", "CASCADE"},
	{"entry_tags", "tag_id", "tags", "CASCADE"},
}

// Migrate creates or updates the schema.
func (s *GormStore) Migrate(ctx context.Context) error {
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&PromptModel{},
			&JournalEntryModel{},
			&ConversationModel{},
			&MessageModel{},
			&TagModel{},
			&EntryTagModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if !s.isPostgres() {
			return nil
		}
		for _, fk := range foreignKeys {
			name := fmt.Sprintf("%s_%s_fkey", fk.table, fk.column)
			if err := tx.Exec(fmt.Sprintf(`
				DO $$
				BEGIN
					IF NOT EXISTS (
						SELECT 1 FROM information_schema.table_constraints
						WHERE table_schema = current_schema()
						AND table_name = '%[1]s'
						AND constraint_name = '%[2]s'
					) THEN
						ALTER TABLE %[1]s
						ADD CONSTRAINT %[2]s
						FOREIGN KEY (%[3]s) REFERENCES %[4]s(id) ON DELETE %[5]s;
					END IF;
				END $$;
			`, fk.table, name, fk.column, fk.refTable, fk.onDelete)).Error; err != nil {
				return fmt.Errorf("ensure foreign key %s: %w", name, err)
			}
		}
		return nil
	}
	db := s.db.WithContext(ctx)
	if !s.isPostgres() {
		return migrate(db)
	}
	return withMigrationLock(ctx, db, migrate)
}

func (s *GormStore) isPostgres() bool {
	return s.db.Dialector.Name() == "postgres"
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withMigrationLock(ctx context.Context, db *gorm.DB, fn func(*gorm.DB) error) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(context.Background(), conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// isUniqueViolation matches translated GORM errors and raw driver errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func translateWriteErr(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// first loads one row into dest, mapping "no rows" to ok=false.
func first(q *gorm.DB, dest any, conds ...any) (bool, error) {
	if err := q.First(dest, conds...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateUser inserts a user. Duplicate emails return ErrDuplicate.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return translateWriteErr(s.db.WithContext(ctx).Create(&model).Error)
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", id)
	if !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	ok, err := first(s.db.WithContext(ctx).Where("email = ?", email), &model)
	if !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateUser persists preference and login changes.
func (s *GormStore) UpdateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	res := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", u.ID).Updates(map[string]any{
		"password_hash":            model.PasswordHash,
		"preferred_theme":          model.PreferredTheme,
		"notification_preferences": model.NotificationPreferences,
		"last_login_at":            model.LastLoginAt,
		"updated_at":               time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SavePrompt inserts or replaces a prompt.
func (s *GormStore) SavePrompt(ctx context.Context, p domain.Prompt) error {
	model, err := promptToModel(p)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"prompt_text", "category", "active_date", "is_active"}),
	}).Create(&model).Error
}

// GetPrompt returns a prompt by ID.
func (s *GormStore) GetPrompt(ctx context.Context, id string) (domain.Prompt, bool, error) {
	var model PromptModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", id)
	if !ok || err != nil {
		return domain.Prompt{}, false, err
	}
	return promptFromModel(model), true, nil
}

// GetPromptForDate returns the active prompt bound to date.
func (s *GormStore) GetPromptForDate(ctx context.Context, date string) (domain.Prompt, bool, error) {
	day, err := domain.ParseDate(date)
	if err != nil {
		return domain.Prompt{}, false, err
	}
	var model PromptModel
	ok, err := first(s.db.WithContext(ctx).
		Where("active_date = ? AND is_active = ?", day, true).
		Order("created_at DESC"), &model)
	if !ok || err != nil {
		return domain.Prompt{}, false, err
	}
	return promptFromModel(model), true, nil
}

// LatestActivePrompt returns the most recent active prompt up to onOrBefore.
func (s *GormStore) LatestActivePrompt(ctx context.Context, onOrBefore string) (domain.Prompt, bool, error) {
	day, err := domain.ParseDate(onOrBefore)
	if err != nil {
		return domain.Prompt{}, false, err
	}
	var model PromptModel
	ok, err := first(s.db.WithContext(ctx).
		Where("is_active = ? AND active_date <= ?", true, day).
		Order("active_date DESC").
		Order("created_at DESC"), &model)
	if !ok || err != nil {
		return domain.Prompt{}, false, err
	}
	return promptFromModel(model), true, nil
}

// ListPrompts returns all prompts ordered by active date.
func (s *GormStore) ListPrompts(ctx context.Context) ([]domain.Prompt, error) {
	var models []PromptModel
	if err := s.db.WithContext(ctx).Order("active_date ASC").Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Prompt, 0, len(models))
	for _, m := range models {
		out = append(out, promptFromModel(m))
	}
	return out, nil
}

// CreateEntry inserts an entry. A second entry for the same user and date
// returns ErrDuplicate.
func (s *GormStore) CreateEntry(ctx context.Context, e domain.JournalEntry) error {
	model, err := entryToModel(e)
	if err != nil {
		return err
	}
	return translateWriteErr(s.db.WithContext(ctx).Create(&model).Error)
}

// GetEntry returns an entry by ID.
func (s *GormStore) GetEntry(ctx context.Context, id string) (domain.JournalEntry, bool, error) {
	var model JournalEntryModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", id)
	if !ok || err != nil {
		return domain.JournalEntry{}, false, err
	}
	return entryFromModel(model), true, nil
}

// GetEntryByUserAndDate returns the user's entry for a calendar date.
func (s *GormStore) GetEntryByUserAndDate(ctx context.Context, userID, date string) (domain.JournalEntry, bool, error) {
	day, err := domain.ParseDate(date)
	if err != nil {
		return domain.JournalEntry{}, false, err
	}
	var model JournalEntryModel
	ok, err := first(s.db.WithContext(ctx).Where("user_id = ? AND entry_date = ?", userID, day), &model)
	if !ok || err != nil {
		return domain.JournalEntry{}, false, err
	}
	return entryFromModel(model), true, nil
}

// ListEntriesByUser returns a user's entries, newest date first.
func (s *GormStore) ListEntriesByUser(ctx context.Context, userID string) ([]domain.JournalEntry, error) {
	var models []JournalEntryModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("entry_date DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return entriesFromModels(models), nil
}

// UpdateEntry persists the mutable entry fields.
func (s *GormStore) UpdateEntry(ctx context.Context, e domain.JournalEntry) error {
	res := s.db.WithContext(ctx).Model(&JournalEntryModel{}).Where("id = ?", e.ID).Updates(map[string]any{
		"initial_response": e.InitialResponse,
		"mood_score":       e.MoodScore,
		"is_favorite":      e.IsFavorite,
		"updated_at":       time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateConversation inserts a conversation with its opening messages.
func (s *GormStore) CreateConversation(ctx context.Context, c domain.Conversation, opening []domain.Message) ([]domain.Message, error) {
	conv := conversationToModel(c)
	now := time.Now().UTC()
	models := make([]MessageModel, 0, len(opening))
	for i, msg := range opening {
		model := messageToModel(msg)
		if model.ID == "" {
			model.ID = util.NewID()
		}
		model.ConversationID = conv.ID
		model.SequenceOrder = i + 1
		if model.CreatedAt.IsZero() {
			model.CreatedAt = now
		}
		models = append(models, model)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.Create(&models).Error
	})
	if err != nil {
		return nil, translateWriteErr(err)
	}
	out := make([]domain.Message, 0, len(models))
	for _, m := range models {
		out = append(out, messageFromModel(m))
	}
	return out, nil
}

// GetConversationByEntry returns the conversation attached to an entry.
func (s *GormStore) GetConversationByEntry(ctx context.Context, entryID string) (domain.Conversation, bool, error) {
	var model ConversationModel
	ok, err := first(s.db.WithContext(ctx).Where("journal_entry_id = ?", entryID), &model)
	if !ok || err != nil {
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// SetConversationSummary replaces the rolling summary.
func (s *GormStore) SetConversationSummary(ctx context.Context, conversationID, summary string) error {
	res := s.db.WithContext(ctx).Model(&ConversationModel{}).Where("id = ?", conversationID).Updates(map[string]any{
		"summary":    summary,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage stores a message at max(sequence_order)+1.
func (s *GormStore) AppendMessage(ctx context.Context, conversationID string, role domain.MessageRole, content string) (domain.Message, error) {
	now := time.Now().UTC()
	model := MessageModel{
		ID:             util.NewID(),
		ConversationID: conversationID,
		Role:           string(role),
		Content:        content,
		CreatedAt:      now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Touching the conversation row takes its write lock, so the
		// max+1 read below cannot interleave with another append.
		res := tx.Model(&ConversationModel{}).Where("id = ?", conversationID).Update("updated_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		var maxSeq int
		if err := tx.Model(&MessageModel{}).
			Where("conversation_id = ?", conversationID).
			Select("COALESCE(MAX(sequence_order), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		model.SequenceOrder = maxSeq + 1
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.Message{}, translateWriteErr(err)
	}
	return messageFromModel(model), nil
}

// ListMessages returns a conversation's messages in sequence order.
func (s *GormStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sequence_order ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(models))
	for _, m := range models {
		out = append(out, messageFromModel(m))
	}
	return out, nil
}

// CountMessages returns the number of messages in a conversation.
func (s *GormStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&MessageModel{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// EnsureTag returns the tag named t.Name, creating it when absent.
// Concurrent callers converge on one row.
func (s *GormStore) EnsureTag(ctx context.Context, t domain.Tag) (domain.Tag, error) {
	t.Name = domain.NormalizeTagName(t.Name)
	if t.Name == "" {
		return domain.Tag{}, errors.New("tag name is required")
	}
	if t.ID == "" {
		t.ID = util.NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	model := tagToModel(t)
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&model).Error; err != nil {
		return domain.Tag{}, err
	}
	var stored TagModel
	if err := db.Where("name = ?", t.Name).First(&stored).Error; err != nil {
		return domain.Tag{}, err
	}
	return tagFromModel(stored), nil
}

// GetTag returns a tag by ID.
func (s *GormStore) GetTag(ctx context.Context, id string) (domain.Tag, bool, error) {
	var model TagModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", id)
	if !ok || err != nil {
		return domain.Tag{}, false, err
	}
	return tagFromModel(model), true, nil
}

// ListTags returns all tags by name.
func (s *GormStore) ListTags(ctx context.Context) ([]domain.Tag, error) {
	var models []TagModel
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Tag, 0, len(models))
	for _, m := range models {
		out = append(out, tagFromModel(m))
	}
	return out, nil
}

// UpsertEntryTag inserts or updates one (entry, tag) link in a single
// statement. Rows with source 'user' only change when the incoming source
// is also 'user'.
func (s *GormStore) UpsertEntryTag(ctx context.Context, et domain.EntryTag) (bool, error) {
	now := time.Now().UTC()
	model := entryTagToModel(et)
	model.CreatedAt = now
	model.UpdatedAt = now
	userSource := string(domain.TagSourceUser)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "journal_entry_id"}, {Name: "tag_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"source", "confidence_score", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "entry_tags.source <> ? OR excluded.source = ?", Vars: []any{userSource, userSource}},
		}},
	}).Create(&model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListEntryTags returns an entry's tags, most confident first.
// User tags carry no score and sort as certain.
func (s *GormStore) ListEntryTags(ctx context.Context, entryID string) ([]domain.EntryTagView, error) {
	var rows []entryTagRow
	if err := s.db.WithContext(ctx).Table("entry_tags").
		Select("tags.id, tags.name, tags.description, tags.is_system, tags.created_at, entry_tags.source, entry_tags.confidence_score").
		Joins("JOIN tags ON tags.id = entry_tags.tag_id").
		Where("entry_tags.journal_entry_id = ?", entryID).
		Order("COALESCE(entry_tags.confidence_score, 1.0) DESC").
		Order("tags.name ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.EntryTagView, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.EntryTagView{
			Tag:             tagFromModel(row.TagModel),
			Source:          domain.TagSource(row.Source),
			ConfidenceScore: row.ConfidenceScore,
		})
	}
	return out, nil
}

// RemoveEntryTag deletes one link and reports whether it existed.
func (s *GormStore) RemoveEntryTag(ctx context.Context, entryID, tagID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("journal_entry_id = ? AND tag_id = ?", entryID, tagID).
		Delete(&EntryTagModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListEntriesByTag returns the user's entries carrying the tag, newest first.
func (s *GormStore) ListEntriesByTag(ctx context.Context, tagID, userID string) ([]domain.JournalEntry, error) {
	var models []JournalEntryModel
	if err := s.db.WithContext(ctx).
		Joins("JOIN entry_tags ON entry_tags.journal_entry_id = journal_entries.id").
		Where("entry_tags.tag_id = ? AND journal_entries.user_id = ?", tagID, userID).
		Order("journal_entries.entry_date DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return entriesFromModels(models), nil
}

func userToModel(u domain.User) UserModel {
	prefs := u.NotificationPreferences
	if prefs == nil {
		prefs = map[string]bool{}
	}
	raw, _ := json.Marshal(prefs)
	return UserModel{
		ID:                      u.ID,
		Email:                   u.Email,
		PasswordHash:            u.PasswordHash,
		PreferredTheme:          string(u.PreferredTheme),
		NotificationPreferences: raw,
		LastLoginAt:             u.LastLoginAt,
		CreatedAt:               u.CreatedAt,
		UpdatedAt:               u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	prefs := map[string]bool{}
	if len(m.NotificationPreferences) > 0 {
		_ = json.Unmarshal(m.NotificationPreferences, &prefs)
	}
	theme := domain.Theme(m.PreferredTheme)
	if theme == "" {
		theme = domain.ThemeCozy
	}
	return domain.User{
		ID:                      m.ID,
		Email:                   m.Email,
		PasswordHash:            m.PasswordHash,
		PreferredTheme:          theme,
		NotificationPreferences: prefs,
		LastLoginAt:             m.LastLoginAt,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}

func promptToModel(p domain.Prompt) (PromptModel, error) {
	day, err := domain.ParseDate(p.ActiveDate)
	if err != nil {
		return PromptModel{}, err
	}
	return PromptModel{
		ID:         p.ID,
		PromptText: p.PromptText,
		Category:   p.Category,
		ActiveDate: day,
		IsActive:   p.IsActive,
		CreatedAt:  p.CreatedAt,
	}, nil
}

func promptFromModel(m PromptModel) domain.Prompt {
	return domain.Prompt{
		ID:         m.ID,
		PromptText: m.PromptText,
		Category:   m.Category,
		ActiveDate: domain.FormatDate(m.ActiveDate.UTC()),
		IsActive:   m.IsActive,
		CreatedAt:  m.CreatedAt,
	}
}

func entryToModel(e domain.JournalEntry) (JournalEntryModel, error) {
	day, err := domain.ParseDate(e.EntryDate)
	if err != nil {
		return JournalEntryModel{}, err
	}
	return JournalEntryModel{
		ID:              e.ID,
		UserID:          e.UserID,
		PromptID:        e.PromptID,
		EntryDate:       day,
		InitialResponse: e.InitialResponse,
		MoodScore:       e.MoodScore,
		IsFavorite:      e.IsFavorite,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}, nil
}

func entryFromModel(m JournalEntryModel) domain.JournalEntry {
	return domain.JournalEntry{
		ID:              m.ID,
		UserID:          m.UserID,
		PromptID:        m.PromptID,
		EntryDate:       domain.FormatDate(m.EntryDate.UTC()),
		InitialResponse: m.InitialResponse,
		MoodScore:       m.MoodScore,
		IsFavorite:      m.IsFavorite,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func entriesFromModels(models []JournalEntryModel) []domain.JournalEntry {
	out := make([]domain.JournalEntry, 0, len(models))
	for _, m := range models {
		out = append(out, entryFromModel(m))
	}
	return out
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:             c.ID,
		JournalEntryID: c.JournalEntryID,
		Summary:        c.Summary,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:             m.ID,
		JournalEntryID: m.JournalEntryID,
		Summary:        m.Summary,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		SequenceOrder:  msg.SequenceOrder,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           domain.MessageRole(m.Role),
		Content:        m.Content,
		SequenceOrder:  m.SequenceOrder,
		CreatedAt:      m.CreatedAt,
	}
}

func tagToModel(t domain.Tag) TagModel {
	return TagModel{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		IsSystem:    t.IsSystem,
		CreatedAt:   t.CreatedAt,
	}
}

func tagFromModel(m TagModel) domain.Tag {
	return domain.Tag{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		IsSystem:    m.IsSystem,
		CreatedAt:   m.CreatedAt,
	}
}

func entryTagToModel(et domain.EntryTag) EntryTagModel {
	return EntryTagModel{
		JournalEntryID:  et.JournalEntryID,
		TagID:           et.TagID,
		Source:          string(et.Source),
		ConfidenceScore: et.ConfidenceScore,
		CreatedAt:       et.CreatedAt,
		UpdatedAt:       et.UpdatedAt,
	}
}
