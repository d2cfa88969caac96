// Package management implements the admin software catalog: filtered,
// paginated listing and create/update/delete of software entries.
package management

import (
	"context"
	"strings"
	"time"

	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/resolve"
	"github.com/mikepea/linkshelf/pkg/linkshelf/store"
	"gorm.io/gorm"
)

// SoftwareRequest is the writable part of a software entry. TagIDs name
// existing tags.
type SoftwareRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Website     string `json:"website" binding:"required,http_url"`
	Description string `json:"description"`
	CategoryID  uint   `json:"category_id" binding:"required"`
	TagIDs      []uint `json:"tag_ids"`
}

// Filter narrows a listing. Zero values disable a filter; every tag in
// TagIDs must be present on a matching entry.
type Filter struct {
	CategoryID uint
	TagIDs     []uint
}

// TagRef is a tag as embedded in a software entry.
type TagRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// SoftwareView is a software entry with its category and tag names
// resolved.
type SoftwareView struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Website      string    `json:"website"`
	Description  string    `json:"description"`
	CategoryID   uint      `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Tags         []TagRef  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toView(s models.Software) SoftwareView {
	tags := make([]TagRef, len(s.Tags))
	for i, t := range s.Tags {
		tags[i] = TagRef{ID: t.ID, Name: t.Name}
	}
	return SoftwareView{
		ID:           s.ID,
		Name:         s.Name,
		Website:      s.Website,
		Description:  s.Description,
		CategoryID:   s.CategoryID,
		CategoryName: s.Category.Name,
		Tags:         tags,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Service reads and writes the software catalog.
type Service struct {
	db         *gorm.DB
	software   *store.Store[models.Software]
	categories *store.Store[models.Category]
}

// NewService creates a management service
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:         db,
		software:   store.New[models.Software](db, "Software"),
		categories: store.New[models.Category](db, "Category"),
	}
}

var preloads = []string{"Category", "Tags"}

// InCategory restricts a listing to one category. Zero matches everything.
func InCategory(id uint) store.Scope {
	return func(db *gorm.DB) *gorm.DB {
		if id == 0 {
			return db
		}
		return db.Where("category_id = ?", id)
	}
}

// WithAllTags restricts a listing to entries carrying every tag in ids.
func WithAllTags(ids []uint) store.Scope {
	unique := dedupe(ids)
	return func(db *gorm.DB) *gorm.DB {
		if len(unique) == 0 {
			return db
		}
		sub := db.Session(&gorm.Session{NewDB: true}).
			Table("software_tags").
			Select("software_id").
			Where("tag_id IN ?", unique).
			Group("software_id").
			Having("COUNT(DISTINCT tag_id) = ?", len(unique))
		return db.Where("id IN (?)", sub)
	}
}

func dedupe(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// List returns one page of software matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter, page store.Page) ([]SoftwareView, int64, error) {
	rows, total, err := s.software.List(ctx, store.ListOptions{
		Scopes:   []store.Scope{InCategory(f.CategoryID), WithAllTags(f.TagIDs)},
		Preloads: preloads,
		Order:    "created_at DESC, id DESC",
		Page:     page,
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]SoftwareView, len(rows))
	for i, r := range rows {
		out[i] = toView(r)
	}
	return out, total, nil
}

// Get returns one software entry.
func (s *Service) Get(ctx context.Context, id uint) (*SoftwareView, error) {
	row, err := s.software.Get(ctx, id, preloads...)
	if err != nil {
		return nil, err
	}
	view := toView(*row)
	return &view, nil
}

// references checks the category and loads the tags named by req.
func (s *Service) references(ctx context.Context, tx *gorm.DB, req SoftwareRequest) ([]models.Tag, error) {
	const op = "management.references"

	if _, err := s.categories.WithTx(tx).Get(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	ids := dedupe(req.TagIDs)
	tags := []models.Tag{}
	if len(ids) == 0 {
		return tags, nil
	}
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, store.Translate(op, "Tag", err)
	}
	if len(tags) != len(ids) {
		return nil, errx.Errorf(op, errx.NotFound, "Tag not found")
	}
	return tags, nil
}

func (r *SoftwareRequest) normalize() error {
	const op = "management.validate"

	r.Name = strings.TrimSpace(r.Name)
	r.Website = strings.TrimSpace(r.Website)
	r.Description = strings.TrimSpace(r.Description)
	if r.Name == "" {
		return httpx.FieldError(op, "name", "is required")
	}
	if _, err := resolve.ParseURL(r.Website); err != nil {
		return httpx.FieldError(op, "website", "must be a valid URL")
	}
	return nil
}

// Create adds a software entry.
func (s *Service) Create(ctx context.Context, req SoftwareRequest) (*SoftwareView, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	var id uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := s.references(ctx, tx, req)
		if err != nil {
			return err
		}

		row := models.Software{
			Name:        req.Name,
			Website:     req.Website,
			Description: req.Description,
			CategoryID:  req.CategoryID,
			Tags:        tags,
		}
		if err := s.software.WithTx(tx).Create(ctx, &row); err != nil {
			return err
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return nil, store.Translate("management.Create", "Software", err)
	}
	return s.Get(ctx, id)
}

// Update replaces the writable fields and the tag set of a software entry.
func (s *Service) Update(ctx context.Context, id uint, req SoftwareRequest) (*SoftwareView, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		software := s.software.WithTx(tx)
		if _, err := software.Get(ctx, id); err != nil {
			return err
		}
		tags, err := s.references(ctx, tx, req)
		if err != nil {
			return err
		}

		row, err := software.Update(ctx, id, map[string]any{
			"name":        req.Name,
			"website":     req.Website,
			"description": req.Description,
			"category_id": req.CategoryID,
		})
		if err != nil {
			return err
		}

		assoc := tx.Model(row).Association("Tags")
		if len(tags) == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(tags)
	})
	if err != nil {
		return nil, store.Translate("management.Update", "Software", err)
	}
	return s.Get(ctx, id)
}

// Delete removes a software entry and its tag links.
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM software_tags WHERE software_id = ?", id).Error; err != nil {
			return err
		}
		return s.software.WithTx(tx).Delete(ctx, id)
	})
	return store.Translate("management.Delete", "Software", err)
}
