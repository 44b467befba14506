package groups

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/shelfsync/internal/database/batch"
	"github.com/mrlokans/shelfsync/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(name, description string) (*entities.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, entities.NewValidationError("name", "is required")
	}
	g := entities.Group{Name: name, Description: description}
	if err := r.db.Create(&g).Error; err != nil {
		return nil, fmt.Errorf("create group %q: %w", name, err)
	}
	return &g, nil
}

func (r *Repository) Get(id int64) (*entities.Group, error) {
	var g entities.Group
	if err := r.db.First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("group %d: %w", id, entities.ErrNotFound)
		}
		return nil, err
	}
	return &g, nil
}

func (r *Repository) List() ([]entities.Group, error) {
	var rows []entities.Group
	if err := r.db.Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return rows, nil
}

// Delete removes the group; memberships go with it through the foreign key.
func (r *Repository) Delete(id int64) error {
	res := r.db.Delete(&entities.Group{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("group %d: %w", id, entities.ErrNotFound)
	}
	return nil
}

// AddBook links a book to a group. Adding twice is a no-op.
func (r *Repository) AddBook(bookID, groupID int64) error {
	m := entities.BookGroupMembership{BookID: bookID, GroupID: groupID}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("add book %d to group %d: %w", bookID, groupID, err)
	}
	return nil
}

func (r *Repository) RemoveBook(bookID, groupID int64) error {
	return r.db.Where("book_id = ? AND group_id = ?", bookID, groupID).
		Delete(&entities.BookGroupMembership{}).Error
}

// SetBookGroups replaces the book's memberships with groupIDs.
func (r *Repository) SetBookGroups(bookID int64, groupIDs []int64) error {
	if err := r.db.Where("book_id = ?", bookID).Delete(&entities.BookGroupMembership{}).Error; err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}
	for _, gid := range groupIDs {
		if err := r.AddBook(bookID, gid); err != nil {
			return err
		}
	}
	return nil
}

// GroupsForBooks returns each book's groups keyed by book id.
func (r *Repository) GroupsForBooks(bookIDs []int64) (map[int64][]entities.Group, error) {
	out := make(map[int64][]entities.Group, len(bookIDs))
	if len(bookIDs) == 0 {
		return out, nil
	}
	err := batch.Each(bookIDs, batch.Size, func(chunk []int64) error {
		var rows []struct {
			BookID int64
			entities.Group
		}
		err := r.db.Table("book_group_memberships AS m").
			Select("m.book_id AS book_id, g.id AS id, g.name AS name, g.description AS description, g.created_at AS created_at").
			Joins("JOIN `groups` g ON g.id = m.group_id").
			Where("m.book_id IN ?", chunk).
			Order("g.name").
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("groups for books: %w", err)
		}
		for _, row := range rows {
			out[row.BookID] = append(out[row.BookID], row.Group)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) BookIDs(groupID int64) ([]int64, error) {
	var ids []int64
	err := r.db.Model(&entities.BookGroupMembership{}).Where("group_id = ?", groupID).Order("book_id").Pluck("book_id", &ids).Error
	return ids, err
}
