package equipment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/fmea-api/internal/database"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Repository handles equipment persistence
type Repository struct {
	conn database.Connector
}

func NewRepository(conn database.Connector) *Repository {
	return &Repository{conn: conn}
}

// List returns equipment ordered by tag
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Equipment, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	var rows []database.Equipment
	q := db.NewSelect().Model(&rows)

	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("tag ILIKE ?", pattern).WhereOr("name ILIKE ?", pattern)
		})
	}
	if class := strings.TrimSpace(f.EquipmentClass); class != "" {
		q = q.Where("equipment_class = ?", class)
	}

	err = q.Order("tag ASC").
		Limit(limit).
		Offset(max(f.Offset, 0)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}

	items := make([]Equipment, 0, len(rows))
	for i := range rows {
		items = append(items, *mapDBToModel(&rows[i]))
	}
	return items, nil
}

// Get retrieves one equipment item by ID
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Equipment, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	row := new(database.Equipment)
	err = db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}

	return mapDBToModel(row), nil
}

// Create inserts validated input on behalf of createdBy
func (r *Repository) Create(ctx context.Context, in Input, createdBy uuid.UUID) (*Equipment, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := &database.Equipment{
		ID:             uuid.New(),
		Tag:            in.Tag,
		Name:           in.Name,
		EquipmentClass: in.EquipmentClass,
		EquipmentType:  in.EquipmentType,
		Location:       in.Location,
		Criticality:    in.Criticality,
		CreatedBy:      &createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = db.NewInsert().
		Model(row).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateTag
		}
		return nil, fmt.Errorf("failed to create equipment: %w", err)
	}

	return mapDBToModel(row), nil
}

// Update replaces the editable fields of an existing item
func (r *Repository) Update(ctx context.Context, id uuid.UUID, in Input) (*Equipment, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	result, err := db.NewUpdate().
		Model((*database.Equipment)(nil)).
		Set("tag = ?", in.Tag).
		Set("name = ?", in.Name).
		Set("equipment_class = ?", in.EquipmentClass).
		Set("equipment_type = ?", in.EquipmentType).
		Set("location = ?", in.Location).
		Set("criticality = ?", in.Criticality).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateTag
		}
		return nil, fmt.Errorf("failed to update equipment: %w", err)
	}

	if err := checkAffected(result); err != nil {
		return nil, err
	}

	return r.Get(ctx, id)
}

// Delete removes an item
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return err
	}

	result, err := db.NewDelete().
		Model((*database.Equipment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete equipment: %w", err)
	}

	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func mapDBToModel(row *database.Equipment) *Equipment {
	return &Equipment{
		ID:             row.ID,
		Tag:            row.Tag,
		Name:           row.Name,
		EquipmentClass: row.EquipmentClass,
		EquipmentType:  row.EquipmentType,
		Location:       row.Location,
		Criticality:    row.Criticality,
		CreatedBy:      row.CreatedBy,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}
