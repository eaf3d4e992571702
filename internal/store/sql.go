package store

import (
	"context"
	"fmt"
	"time"

	"example.com/tinyfeed/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type userRow struct {
	Name    string   `gorm:"primaryKey;type:varchar(255)"`
	Follows []string `gorm:"type:text;serializer:json"`
}

func (userRow) TableName() string { return "users" }

type postRow struct {
	ID      string    `gorm:"primaryKey;type:varchar(36)"`
	Author  string    `gorm:"type:varchar(255);not null;index:idx_posts_author_created,priority:1"`
	Content string    `gorm:"type:text;not null"`
	Created time.Time `gorm:"not null;index:idx_posts_author_created,priority:2"`
}

func (postRow) TableName() string { return "posts" }

// SQLStore serves Postgres and SQLite through gorm.
type SQLStore struct {
	db *gorm.DB
}

// NewSQL opens the dialector and migrates the schema.
func NewSQL(dialector gorm.Dialector) (*SQLStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQL database: %w", err)
	}
	return NewSQLFromDB(db)
}

// NewSQLFromDB migrates the schema on an already opened connection.
func NewSQLFromDB(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&userRow{}, &postRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate SQL schema: %w", err)
	}
	logg.Info("store", "SQL schema migrated ("+db.Dialector.Name()+")")
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) GetUser(ctx context.Context, name string) (*models.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&rows).Error; err != nil {
		logg.Error("store", "Failed to query user", err)
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &models.User{Name: rows[0].Name, Follows: rows[0].Follows}, nil
}

func (s *SQLStore) PutUser(ctx context.Context, user *models.User) error {
	follows := user.Follows
	if follows == nil {
		follows = []string{}
	}
	row := userRow{Name: user.Name, Follows: follows}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		logg.Error("store", "Failed to write user", err)
		return err
	}
	return nil
}

func (s *SQLStore) PutPost(ctx context.Context, post *models.Post) error {
	row := postRow{ID: post.ID, Author: post.Author, Content: post.Content, Created: post.Created}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		logg.Error("store", "Failed to add post", err)
		return err
	}
	return nil
}

func (s *SQLStore) PostsByAuthor(ctx context.Context, author string, limit int) ([]models.Post, error) {
	return s.findPosts(s.db.WithContext(ctx).Where("author = ?", author), limit)
}

func (s *SQLStore) PostsByAuthors(ctx context.Context, authors []string, limit int) ([]models.Post, error) {
	return s.findPosts(s.db.WithContext(ctx).Where("author IN ?", authors), limit)
}

func (s *SQLStore) findPosts(q *gorm.DB, limit int) ([]models.Post, error) {
	var rows []postRow
	if err := q.Order("created DESC").Limit(limit).Find(&rows).Error; err != nil {
		logg.Error("store", "Failed to query posts", err)
		return nil, err
	}
	res := make([]models.Post, len(rows))
	for i, r := range rows {
		res[i] = models.Post{ID: r.ID, Author: r.Author, Content: r.Content, Created: r.Created.UTC()}
	}
	return res, nil
}
