package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"triaright-platform/errors"
	"triaright-platform/models"
)

const courseColumns = `id, name, COALESCE(description, ''), COALESCE(stream, ''), COALESCE(instructor, ''),
	type, price, curriculum, is_active, created_at, updated_at`

func scanCourse(row scanner) (*models.Course, error) {
	var c models.Course
	var curriculum []byte
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Stream, &c.Instructor,
		&c.Type, &c.Price, &curriculum, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "course")
	}
	if err := json.Unmarshal(curriculum, &c.Curriculum); err != nil {
		return nil, errors.E(errors.Internal, fmt.Sprintf("course %d has a malformed curriculum", c.ID), err)
	}
	return &c, nil
}

func (s *Store) CreateCourse(ctx context.Context, c *models.Course) error {
	curriculum, err := json.Marshal(c.Curriculum)
	if err != nil {
		return errors.E(errors.Invalid, "invalid curriculum", err)
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO courses (name, description, stream, instructor, type, price, curriculum, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		c.Name, c.Description, c.Stream, c.Instructor, c.Type, c.Price, curriculum, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapErr(err, "course")
}

func (s *Store) UpdateCourse(ctx context.Context, c *models.Course) error {
	curriculum, err := json.Marshal(c.Curriculum)
	if err != nil {
		return errors.E(errors.Invalid, "invalid curriculum", err)
	}
	err = s.db.QueryRowContext(ctx,
		`UPDATE courses SET name = $1, description = $2, stream = $3, instructor = $4, type = $5,
		        price = $6, curriculum = $7, is_active = $8, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $9
		 RETURNING created_at, updated_at`,
		c.Name, c.Description, c.Stream, c.Instructor, c.Type, c.Price, curriculum, c.IsActive, c.ID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapErr(err, "course")
}

func (s *Store) GetCourse(ctx context.Context, id int) (*models.Course, error) {
	return scanCourse(s.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
}

func (s *Store) ListCourses(ctx context.Context, f models.CourseFilter) ([]models.Course, error) {
	where := []string{"is_active = TRUE"}
	var args []interface{}
	if f.Stream != "" {
		args = append(args, f.Stream)
		where = append(where, fmt.Sprintf("stream = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	return s.queryCourses(ctx, `SELECT `+courseColumns+` FROM courses WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
}

func (s *Store) ListCoursesByStream(ctx context.Context, stream string) ([]models.Course, error) {
	return s.ListCourses(ctx, models.CourseFilter{Stream: stream})
}

func (s *Store) queryCourses(ctx context.Context, query string, args ...interface{}) ([]models.Course, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "course")
	}
	defer rows.Close()
	out := []models.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, mapErr(rows.Err(), "course")
}

func (s *Store) CreatePack(ctx context.Context, p *models.Pack365) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO packs (stream, name, price, validity_days) VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		p.Stream, p.Name, p.Price, p.ValidityDays).Scan(&p.ID, &p.CreatedAt)
	return mapErr(err, "pack")
}

func (s *Store) GetPack(ctx context.Context, id int) (*models.Pack365, error) {
	var p models.Pack365
	err := s.db.QueryRowContext(ctx,
		`SELECT id, stream, name, price, validity_days, created_at FROM packs WHERE id = $1`, id,
	).Scan(&p.ID, &p.Stream, &p.Name, &p.Price, &p.ValidityDays, &p.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "pack")
	}
	return &p, nil
}

func (s *Store) ListPacks(ctx context.Context) ([]models.Pack365, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, stream, name, price, validity_days, created_at FROM packs ORDER BY stream, id`)
	if err != nil {
		return nil, mapErr(err, "pack")
	}
	defer rows.Close()
	out := []models.Pack365{}
	for rows.Next() {
		var p models.Pack365
		if err := rows.Scan(&p.ID, &p.Stream, &p.Name, &p.Price, &p.ValidityDays, &p.CreatedAt); err != nil {
			return nil, mapErr(err, "pack")
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err(), "pack")
}

func (s *Store) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO coupons (code, discount_type, discount_value, min_price, max_discount, usage_limit, expires_at, course_id, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		c.Code, c.DiscountType, c.DiscountValue, c.MinPrice, c.MaxDiscount, c.UsageLimit, c.ExpiresAt, c.CourseID, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt)
	return mapErr(err, "coupon")
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, discount_type, discount_value, min_price, max_discount, usage_limit, used_count,
		        expires_at, course_id, is_active, created_at
		 FROM coupons WHERE code = $1`, code,
	).Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinPrice, &c.MaxDiscount, &c.UsageLimit, &c.UsedCount,
		&c.ExpiresAt, &c.CourseID, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "coupon")
	}
	return &c, nil
}
