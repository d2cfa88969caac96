// Package topics owns topics and the ordered bookmarks inside them. Saving a
// topic reconciles the submitted bookmark list against what is stored.
package topics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/resolve"
	"github.com/mikepea/linkshelf/pkg/linkshelf/store"
	"gorm.io/gorm"
)

// URLDraft is one bookmark as submitted by a client. ID is set for
// bookmarks that already exist; Key is an opaque per-row token chosen by the
// client and echoed back with the id the row ended up with.
type URLDraft struct {
	Key         string   `json:"key,omitempty" yaml:"key,omitempty"`
	ID          *uint    `json:"id,omitempty" yaml:"id,omitempty"`
	URL         string   `json:"url" yaml:"url" binding:"omitempty,http_url"`
	Title       string   `json:"title" yaml:"title" binding:"required"`
	Icon        string   `json:"icon" yaml:"icon,omitempty" binding:"omitempty,http_url"`
	Description string   `json:"description" yaml:"description,omitempty"`
	Tags        []string `json:"tags" yaml:"tags,omitempty"`
}

// TopicRequest is the desired state of a topic. An empty ID creates a new
// topic.
type TopicRequest struct {
	ID          string     `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string     `json:"name" yaml:"name" binding:"required"`
	Description string     `json:"description" yaml:"description,omitempty"`
	URLs        []URLDraft `json:"urls" yaml:"urls" binding:"dive"`
}

// UpsertResult identifies the saved topic and maps draft keys to URL ids.
type UpsertResult struct {
	ID   string          `json:"id"`
	Keys map[string]uint `json:"keys,omitempty"`
}

// URLView is a stored bookmark.
type URLView struct {
	ID          uint     `json:"id"`
	Position    int      `json:"position"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Icon        string   `json:"icon"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// TopicView is a topic with its bookmarks in order.
type TopicView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	URLs        []URLView `json:"urls"`
}

// TopicSummary is a topic as shown in listings.
type TopicSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	URLCount    int       `json:"url_count"`
	URLs        []URLView `json:"urls"`
}

// MetadataResolver looks up titles and icons for batch-created bookmarks.
type MetadataResolver interface {
	ResolveAll(ctx context.Context, urls []string) []resolve.Result
}

// Service implements topic persistence on top of the entity stores.
type Service struct {
	db       *gorm.DB
	topics   *store.Store[models.Topic]
	urls     *store.Store[models.URL]
	resolver MetadataResolver
}

// NewService creates a topic service. resolver may be nil, in which case
// batch creation never fetches page metadata.
func NewService(db *gorm.DB, resolver MetadataResolver) *Service {
	return &Service{
		db:       db,
		topics:   store.New[models.Topic](db, "Topic"),
		urls:     store.New[models.URL](db, "URL"),
		resolver: resolver,
	}
}

func ownedBy(userID uint) store.Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Where("user_id = ?", userID) }
}

func withID(id string) store.Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Where("id = ?", id) }
}

// normalize trims the request and checks what binding tags cannot express.
func (r *TopicRequest) normalize() error {
	const op = "topics.validate"

	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if r.Name == "" {
		return httpx.FieldError(op, "name", "is required")
	}

	seen := make(map[uint]bool, len(r.URLs))
	keys := make(map[string]bool, len(r.URLs))
	for i := range r.URLs {
		d := &r.URLs[i]
		d.URL = strings.TrimSpace(d.URL)
		d.Title = strings.TrimSpace(d.Title)
		d.Icon = strings.TrimSpace(d.Icon)
		d.Description = strings.TrimSpace(d.Description)
		if d.Title == "" {
			return httpx.FieldError(op, fmt.Sprintf("urls[%d].title", i), "is required")
		}
		if d.URL != "" {
			if _, err := resolve.ParseURL(d.URL); err != nil {
				return httpx.FieldError(op, fmt.Sprintf("urls[%d].url", i), "must be a valid URL")
			}
		}
		if d.Icon != "" {
			if _, err := resolve.ParseURL(d.Icon); err != nil {
				return httpx.FieldError(op, fmt.Sprintf("urls[%d].icon", i), "must be a valid URL")
			}
		}
		if d.Key != "" {
			if keys[d.Key] {
				return httpx.FieldError(op, fmt.Sprintf("urls[%d].key", i), "is duplicated")
			}
			keys[d.Key] = true
		}
		if d.ID == nil {
			continue
		}
		if seen[*d.ID] {
			return httpx.FieldError(op, fmt.Sprintf("urls[%d].id", i), "is duplicated")
		}
		seen[*d.ID] = true
	}
	return nil
}

// Upsert saves req for userID. Without an ID the topic and all drafts are
// created. With an ID, drafts without an id are created, drafts with an id
// are updated in place and stored bookmarks missing from req are deleted.
// Either everything is applied or nothing is.
func (s *Service) Upsert(ctx context.Context, userID uint, req TopicRequest) (*UpsertResult, error) {
	const op = "topics.Upsert"

	if err := req.normalize(); err != nil {
		return nil, err
	}

	result := &UpsertResult{Keys: map[string]uint{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		topics := s.topics.WithTx(tx)
		urls := s.urls.WithTx(tx)

		var topic *models.Topic
		stored := map[uint]bool{}
		if req.ID == "" {
			topic = &models.Topic{UserID: userID, Name: req.Name, Description: req.Description}
			if err := topics.Create(ctx, topic); err != nil {
				return err
			}
		} else {
			existing, err := topics.Find(ctx, withID(req.ID), ownedBy(userID))
			if err != nil {
				return err
			}
			topic, err = topics.Update(ctx, existing.ID, map[string]any{
				"name":        req.Name,
				"description": req.Description,
			})
			if err != nil {
				return err
			}

			var ids []uint
			if err := tx.Model(&models.URL{}).Where("topic_id = ?", topic.ID).Pluck("id", &ids).Error; err != nil {
				return store.Translate(op, "URL", err)
			}
			for _, id := range ids {
				stored[id] = true
			}
		}

		kept := map[uint]bool{}
		for i, d := range req.URLs {
			var row *models.URL
			if d.ID == nil {
				row = &models.URL{
					TopicID:     topic.ID,
					Position:    i,
					URL:         d.URL,
					Title:       d.Title,
					Icon:        d.Icon,
					Description: d.Description,
				}
				if err := urls.Create(ctx, row); err != nil {
					return err
				}
			} else {
				if !stored[*d.ID] {
					return errx.Errorf(op, errx.NotFound, "URL %d not found in topic", *d.ID)
				}
				kept[*d.ID] = true

				var err error
				row, err = urls.Update(ctx, *d.ID, map[string]any{
					"position":    i,
					"url":         d.URL,
					"title":       d.Title,
					"icon":        d.Icon,
					"description": d.Description,
				})
				if err != nil {
					return err
				}
			}

			if err := replaceTags(tx, row, d.Tags, d.ID != nil); err != nil {
				return err
			}
			if d.Key != "" {
				result.Keys[d.Key] = row.ID
			}
		}

		var removed []uint
		for id := range stored {
			if !kept[id] {
				removed = append(removed, id)
			}
		}
		if err := deleteURLs(tx, removed); err != nil {
			return err
		}

		result.ID = topic.ID
		return nil
	})
	if err != nil {
		return nil, store.Translate(op, "Topic", err)
	}
	return result, nil
}

// NormalizeTags lowercases, trims and de-duplicates tag labels, keeping
// their first-seen order.
func NormalizeTags(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// FindOrCreateTags returns the tags named by labels, creating missing ones.
func FindOrCreateTags(tx *gorm.DB, labels []string) ([]models.Tag, error) {
	names := NormalizeTags(labels)
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		var tag models.Tag
		if err := tx.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, store.Translate("topics.FindOrCreateTags", "Tag", err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func replaceTags(tx *gorm.DB, row *models.URL, labels []string, existing bool) error {
	tags, err := FindOrCreateTags(tx, labels)
	if err != nil {
		return err
	}

	assoc := tx.Model(row).Association("Tags")
	switch {
	case len(tags) > 0:
		err = assoc.Replace(tags)
	case existing:
		err = assoc.Clear()
	}
	return store.Translate("topics.replaceTags", "Tag", err)
}

func deleteURLs(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Exec("DELETE FROM url_tags WHERE url_id IN ?", ids).Error; err != nil {
		return store.Translate("topics.deleteURLs", "URL", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.URL{}).Error; err != nil {
		return store.Translate("topics.deleteURLs", "URL", err)
	}
	return nil
}

func toURLView(u models.URL) URLView {
	return URLView{
		ID:          u.ID,
		Position:    u.Position,
		URL:         u.URL,
		Title:       u.Title,
		Icon:        u.Icon,
		Description: u.Description,
		Tags:        u.TagNames(),
	}
}

func sortURLs(urls []models.URL) {
	sort.SliceStable(urls, func(i, j int) bool {
		if urls[i].Position != urls[j].Position {
			return urls[i].Position < urls[j].Position
		}
		return urls[i].ID < urls[j].ID
	})
}

// Get returns one of userID's topics with its bookmarks in order.
func (s *Service) Get(ctx context.Context, userID uint, id string) (*TopicView, error) {
	topic, err := s.load(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}

	view := &TopicView{
		ID:          topic.ID,
		Name:        topic.Name,
		Description: topic.Description,
		CreatedAt:   topic.CreatedAt,
		UpdatedAt:   topic.UpdatedAt,
		URLs:        make([]URLView, len(topic.URLs)),
	}
	for i, u := range topic.URLs {
		view.URLs[i] = toURLView(u)
	}
	return view, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, userID uint, id string) (*models.Topic, error) {
	var topic models.Topic
	err := db.WithContext(ctx).
		Scopes(ownedBy(userID), withID(id)).
		Preload("URLs", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("URLs.Tags", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		First(&topic).Error
	if err != nil {
		return nil, store.Translate("topics.Get", "Topic", err)
	}
	return &topic, nil
}

// List returns one page of userID's topics, newest first.
func (s *Service) List(ctx context.Context, userID uint, page store.Page) ([]TopicSummary, int64, error) {
	rows, total, err := s.topics.List(ctx, store.ListOptions{
		Scopes:   []store.Scope{ownedBy(userID)},
		Preloads: []string{"URLs", "URLs.Tags"},
		Order:    "created_at DESC, id DESC",
		Page:     page,
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]TopicSummary, len(rows))
	for i, t := range rows {
		sortURLs(t.URLs)
		urls := make([]URLView, len(t.URLs))
		for j, u := range t.URLs {
			urls[j] = toURLView(u)
		}
		out[i] = TopicSummary{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
			URLCount:    len(t.URLs),
			URLs:        urls,
		}
	}
	return out, total, nil
}

// Delete removes one of userID's topics together with its bookmarks.
func (s *Service) Delete(ctx context.Context, userID uint, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		topic, err := s.topics.WithTx(tx).Find(ctx, withID(id), ownedBy(userID))
		if err != nil {
			return err
		}

		var ids []uint
		if err := tx.Model(&models.URL{}).Where("topic_id = ?", topic.ID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if err := deleteURLs(tx, ids); err != nil {
			return err
		}
		return s.topics.WithTx(tx).Delete(ctx, topic.ID)
	})
	return store.Translate("topics.Delete", "Topic", err)
}

// DeleteAllOwnedBy removes every topic of userID and their bookmarks. It is
// meant to run inside the caller's transaction.
func DeleteAllOwnedBy(tx *gorm.DB, userID uint) error {
	var ids []uint
	err := tx.Model(&models.URL{}).
		Where("topic_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).Model(&models.Topic{}).Select("id").Where("user_id = ?", userID)).
		Pluck("id", &ids).Error
	if err != nil {
		return store.Translate("topics.DeleteAllOwnedBy", "Topic", err)
	}
	if err := deleteURLs(tx, ids); err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.Topic{}).Error; err != nil {
		return store.Translate("topics.DeleteAllOwnedBy", "Topic", err)
	}
	return nil
}
