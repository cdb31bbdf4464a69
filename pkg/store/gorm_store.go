package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"goaljournal/pkg/domain"
)

const migrateLockID int64 = 48120731

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&GoalModel{},
			&JournalEntryModel{},
			&CollectModel{},
			&LetterModel{},
			&ScheduledTaskModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		// Deleted goals cascade-remove their journals, collects, letters,
		// and scheduler bookkeeping.
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM journal_entry_models j
				WHERE NOT EXISTS (SELECT 1 FROM goal_models g WHERE g.id = j.goal_id);
				DELETE FROM collect_models c
				WHERE NOT EXISTS (SELECT 1 FROM goal_models g WHERE g.id = c.goal_id);
				DELETE FROM letter_models l
				WHERE NOT EXISTS (SELECT 1 FROM goal_models g WHERE g.id = l.goal_id);
				DELETE FROM scheduled_task_models s
				WHERE NOT EXISTS (SELECT 1 FROM goal_models g WHERE g.id = s.goal_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'journal_entry_models'
					AND constraint_name = 'journal_entry_models_goal_id_fkey'
				) THEN
					ALTER TABLE journal_entry_models
					ADD CONSTRAINT journal_entry_models_goal_id_fkey
					FOREIGN KEY (goal_id) REFERENCES goal_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'collect_models'
					AND constraint_name = 'collect_models_goal_id_fkey'
				) THEN
					ALTER TABLE collect_models
					ADD CONSTRAINT collect_models_goal_id_fkey
					FOREIGN KEY (goal_id) REFERENCES goal_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'letter_models'
					AND constraint_name = 'letter_models_goal_id_fkey'
				) THEN
					ALTER TABLE letter_models
					ADD CONSTRAINT letter_models_goal_id_fkey
					FOREIGN KEY (goal_id) REFERENCES goal_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'scheduled_task_models'
					AND constraint_name = 'scheduled_task_models_goal_id_fkey'
				) THEN
					ALTER TABLE scheduled_task_models
					ADD CONSTRAINT scheduled_task_models_goal_id_fkey
					FOREIGN KEY (goal_id) REFERENCES goal_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure goal foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

// users

func (s *GormStore) SaveUser(u domain.User) error {
	model := UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.Where("email = ?", email).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// goals

func (s *GormStore) SaveGoal(g domain.Goal) error {
	model := GoalModel{
		ID:        g.ID,
		Title:     g.Title,
		Image:     g.Image,
		UserID:    g.UserID,
		CreatedAt: g.CreatedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func (s *GormStore) GetGoal(id string) (domain.Goal, bool, error) {
	var model GoalModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Goal{}, false, nil
	}
	if err != nil {
		return domain.Goal{}, false, err
	}
	return goalFromModel(model), true, nil
}

func (s *GormStore) ListGoalsByUser(userID string) ([]domain.Goal, error) {
	var models []GoalModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	goals := make([]domain.Goal, 0, len(models))
	for _, m := range models {
		goals = append(goals, goalFromModel(m))
	}
	return goals, nil
}

func (s *GormStore) DeleteGoal(id string) error {
	return s.db.Delete(&GoalModel{}, "id = ?", id).Error
}

func goalFromModel(m GoalModel) domain.Goal {
	return domain.Goal{
		ID:        m.ID,
		Title:     m.Title,
		Image:     m.Image,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}

// journal entries

func (s *GormStore) SaveJournalEntry(e domain.JournalEntry) error {
	model, err := journalModelFromDomain(e)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func (s *GormStore) GetJournalEntry(id string) (domain.JournalEntry, bool, error) {
	var model JournalEntryModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.JournalEntry{}, false, nil
	}
	if err != nil {
		return domain.JournalEntry{}, false, err
	}
	entry, err := journalFromModel(model)
	if err != nil {
		return domain.JournalEntry{}, false, err
	}
	return entry, true, nil
}

func (s *GormStore) ListJournalEntries(goalID string) ([]domain.JournalEntry, error) {
	return s.listJournalEntries(goalID, 0)
}

func (s *GormStore) ListRecentJournalEntries(goalID string, limit int) ([]domain.JournalEntry, error) {
	return s.listJournalEntries(goalID, limit)
}

func (s *GormStore) listJournalEntries(goalID string, limit int) ([]domain.JournalEntry, error) {
	query := s.db.Where("goal_id = ?", goalID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []JournalEntryModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.JournalEntry, 0, len(models))
	for _, m := range models {
		entry, err := journalFromModel(m)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *GormStore) CountJournalEntries(goalID, userID string) (int, error) {
	var count int64
	err := s.db.Model(&JournalEntryModel{}).
		Where("goal_id = ? AND user_id = ?", goalID, userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *GormStore) DeleteJournalEntry(id string) error {
	return s.db.Delete(&JournalEntryModel{}, "id = ?", id).Error
}

func journalModelFromDomain(e domain.JournalEntry) (JournalEntryModel, error) {
	mediaURLs, err := marshalJSON(e.MediaURLs)
	if err != nil {
		return JournalEntryModel{}, fmt.Errorf("encode media urls: %w", err)
	}
	textCollects, err := marshalJSON(e.TextCollects)
	if err != nil {
		return JournalEntryModel{}, fmt.Errorf("encode text collects: %w", err)
	}
	return JournalEntryModel{
		ID:           e.ID,
		Title:        e.Title,
		Content:      e.Content,
		MediaURLs:    mediaURLs,
		TextCollects: textCollects,
		GoalID:       e.GoalID,
		UserID:       e.UserID,
		LetterID:     e.LetterID,
		CollectID:    e.CollectID,
		CreatedAt:    e.CreatedAt,
	}, nil
}

func journalFromModel(m JournalEntryModel) (domain.JournalEntry, error) {
	entry := domain.JournalEntry{
		ID:        m.ID,
		Title:     m.Title,
		Content:   m.Content,
		GoalID:    m.GoalID,
		UserID:    m.UserID,
		LetterID:  m.LetterID,
		CollectID: m.CollectID,
		CreatedAt: m.CreatedAt,
	}
	if err := unmarshalJSON(m.MediaURLs, &entry.MediaURLs); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("decode media urls: %w", err)
	}
	if err := unmarshalJSON(m.TextCollects, &entry.TextCollects); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("decode text collects: %w", err)
	}
	return entry, nil
}

// collects

func (s *GormStore) SaveCollect(c domain.Collect) error {
	model := CollectModel{
		ID:           c.ID,
		Type:         string(c.Type),
		Content:      c.Content,
		Caption:      c.Caption,
		Title:        c.Title,
		PreviewImage: c.PreviewImage,
		Color:        c.Color,
		GoalID:       c.GoalID,
		UserID:       c.UserID,
		CreatedAt:    c.CreatedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func (s *GormStore) GetCollect(id string) (domain.Collect, bool, error) {
	var model CollectModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Collect{}, false, nil
	}
	if err != nil {
		return domain.Collect{}, false, err
	}
	return domain.Collect{
		ID:           model.ID,
		Type:         domain.CollectType(model.Type),
		Content:      model.Content,
		Caption:      model.Caption,
		Title:        model.Title,
		PreviewImage: model.PreviewImage,
		Color:        model.Color,
		GoalID:       model.GoalID,
		UserID:       model.UserID,
		CreatedAt:    model.CreatedAt,
	}, true, nil
}

func (s *GormStore) ListCollectsByGoal(goalID string) ([]domain.Collect, error) {
	return s.listCollects(goalID, 0)
}

func (s *GormStore) ListRecentCollects(goalID string, limit int) ([]domain.Collect, error) {
	return s.listCollects(goalID, limit)
}

func (s *GormStore) listCollects(goalID string, limit int) ([]domain.Collect, error) {
	query := s.db.Where("goal_id = ?", goalID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []CollectModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	collects := make([]domain.Collect, 0, len(models))
	for _, m := range models {
		collects = append(collects, domain.Collect{
			ID:           m.ID,
			Type:         domain.CollectType(m.Type),
			Content:      m.Content,
			Caption:      m.Caption,
			Title:        m.Title,
			PreviewImage: m.PreviewImage,
			Color:        m.Color,
			GoalID:       m.GoalID,
			UserID:       m.UserID,
			CreatedAt:    m.CreatedAt,
		})
	}
	return collects, nil
}

func (s *GormStore) DeleteCollect(id string) error {
	return s.db.Delete(&CollectModel{}, "id = ?", id).Error
}

// letters

func (s *GormStore) SaveLetter(l domain.Letter) error {
	relatedJournals, err := marshalJSON(l.RelatedJournals)
	if err != nil {
		return fmt.Errorf("encode related journals: %w", err)
	}
	relatedCollects, err := marshalJSON(l.RelatedCollects)
	if err != nil {
		return fmt.Errorf("encode related collects: %w", err)
	}
	model := LetterModel{
		ID:                 l.ID,
		Type:               string(l.Type),
		Title:              l.Title,
		Greeting:           l.Greeting,
		Content:            l.Content,
		ReflectionQuestion: l.ReflectionQuestion,
		Signature:          l.Signature,
		FrontImage:         l.FrontImage,
		GoalID:             l.GoalID,
		UserID:             l.UserID,
		ReadAt:             l.ReadAt,
		RelatedJournals:    relatedJournals,
		RelatedCollects:    relatedCollects,
		CreatedAt:          l.CreatedAt,
	}
	return s.db.Create(&model).Error
}

func (s *GormStore) GetLetter(id string) (domain.Letter, bool, error) {
	var model LetterModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Letter{}, false, nil
	}
	if err != nil {
		return domain.Letter{}, false, err
	}
	letter, err := letterFromModel(model)
	if err != nil {
		return domain.Letter{}, false, err
	}
	return letter, true, nil
}

func (s *GormStore) ListLettersByGoal(goalID string) ([]domain.Letter, error) {
	var models []LetterModel
	if err := s.db.Where("goal_id = ?", goalID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	letters := make([]domain.Letter, 0, len(models))
	for _, m := range models {
		letter, err := letterFromModel(m)
		if err != nil {
			return nil, err
		}
		letters = append(letters, letter)
	}
	return letters, nil
}

func (s *GormStore) MarkLetterRead(id string, at time.Time) error {
	return s.db.Model(&LetterModel{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at).Error
}

func letterFromModel(m LetterModel) (domain.Letter, error) {
	letter := domain.Letter{
		ID:                 m.ID,
		Type:               domain.LetterType(m.Type),
		Title:              m.Title,
		Greeting:           m.Greeting,
		Content:            m.Content,
		ReflectionQuestion: m.ReflectionQuestion,
		Signature:          m.Signature,
		FrontImage:         m.FrontImage,
		GoalID:             m.GoalID,
		UserID:             m.UserID,
		ReadAt:             m.ReadAt,
		CreatedAt:          m.CreatedAt,
	}
	if err := unmarshalJSON(m.RelatedJournals, &letter.RelatedJournals); err != nil {
		return domain.Letter{}, fmt.Errorf("decode related journals: %w", err)
	}
	if err := unmarshalJSON(m.RelatedCollects, &letter.RelatedCollects); err != nil {
		return domain.Letter{}, fmt.Errorf("decode related collects: %w", err)
	}
	return letter, nil
}

// scheduled tasks

func (s *GormStore) UpsertScheduledTask(t domain.ScheduledTask) error {
	model := ScheduledTaskModel{
		GoalID:       t.GoalID,
		UserID:       t.UserID,
		LastLetterAt: t.LastLetterAt,
		NextLetterAt: t.NextLetterAt,
		UpdatedAt:    t.UpdatedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "goal_id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func (s *GormStore) GetScheduledTask(goalID string) (domain.ScheduledTask, bool, error) {
	var model ScheduledTaskModel
	err := s.db.First(&model, "goal_id = ?", goalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ScheduledTask{}, false, nil
	}
	if err != nil {
		return domain.ScheduledTask{}, false, err
	}
	return domain.ScheduledTask{
		GoalID:       model.GoalID,
		UserID:       model.UserID,
		LastLetterAt: model.LastLetterAt,
		NextLetterAt: model.NextLetterAt,
		UpdatedAt:    model.UpdatedAt,
	}, true, nil
}

func marshalJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return datatypes.JSON("[]"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func unmarshalJSON(data datatypes.JSON, out any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
