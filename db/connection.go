package db

import (
	"database/sql"
	"fmt"
	"time"

	"triaright-platform/config"
	"triaright-platform/logger"

	_ "github.com/lib/pq"
)

// InitDB opens the Postgres pool, checks it and creates the schema.
func InitDB(cfg config.Config) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.GetDBConnString())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := createTables(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	logger.Info("[DB] schema ready")
	return conn, nil
}

// Tables are created in dependency order.
var schema = []struct {
	name string
	ddl  string
}{
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`},
	{"courses", `
	CREATE TABLE IF NOT EXISTS courses (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		stream TEXT,
		instructor TEXT,
		type TEXT NOT NULL DEFAULT 'unpaid',
		price NUMERIC(10,2) NOT NULL DEFAULT 0,
		curriculum JSONB NOT NULL DEFAULT '[]',
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`},
	{"packs", `
	CREATE TABLE IF NOT EXISTS packs (
		id SERIAL PRIMARY KEY,
		stream TEXT NOT NULL,
		name TEXT NOT NULL,
		price NUMERIC(10,2) NOT NULL,
		validity_days INTEGER NOT NULL DEFAULT 365,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`},
	{"enrollments", `
	CREATE TABLE IF NOT EXISTS enrollments (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		pack_id INTEGER REFERENCES packs(id) ON DELETE SET NULL,
		status TEXT NOT NULL DEFAULT 'active',
		payment_order_id TEXT,
		certificate_issued BOOLEAN DEFAULT FALSE,
		completed_at TIMESTAMP,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, course_id)
	);`},
	{"subtopic_progress", `
	CREATE TABLE IF NOT EXISTS subtopic_progress (
		enrollment_id INTEGER NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
		topic_index INTEGER NOT NULL,
		subtopic_index INTEGER NOT NULL,
		watched_seconds INTEGER NOT NULL DEFAULT 0,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TIMESTAMP,
		PRIMARY KEY (enrollment_id, topic_index, subtopic_index)
	);`},
	{"exams", `
	CREATE TABLE IF NOT EXISTS exams (
		id SERIAL PRIMARY KEY,
		course_id INTEGER REFERENCES courses(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		questions JSONB NOT NULL DEFAULT '[]',
		time_limit_minutes INTEGER NOT NULL,
		passing_score NUMERIC(5,2) NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`},
	{"exam_attempts", `
	CREATE TABLE IF NOT EXISTS exam_attempts (
		id SERIAL PRIMARY KEY,
		exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		attempt_number INTEGER NOT NULL,
		answers JSONB NOT NULL DEFAULT '{}',
		score INTEGER NOT NULL DEFAULT 0,
		percentage NUMERIC(5,2) NOT NULL DEFAULT 0,
		passed BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'in_progress',
		auto_submitted BOOLEAN NOT NULL DEFAULT FALSE,
		started_at TIMESTAMP NOT NULL,
		deadline TIMESTAMP NOT NULL,
		submitted_at TIMESTAMP,
		UNIQUE (exam_id, user_id, attempt_number)
	);`},
	{"coupons", `
	CREATE TABLE IF NOT EXISTS coupons (
		id SERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		discount_type TEXT NOT NULL,
		discount_value NUMERIC(10,2) NOT NULL,
		min_price NUMERIC(10,2) NOT NULL DEFAULT 0,
		max_discount NUMERIC(10,2) NOT NULL DEFAULT 0,
		usage_limit INTEGER NOT NULL DEFAULT 0,
		used_count INTEGER NOT NULL DEFAULT 0,
		expires_at TIMESTAMP,
		course_id INTEGER REFERENCES courses(id) ON DELETE CASCADE,
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`},
	{"payments", `
	CREATE TABLE IF NOT EXISTS payments (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product TEXT NOT NULL,
		course_id INTEGER REFERENCES courses(id) ON DELETE SET NULL,
		pack_id INTEGER REFERENCES packs(id) ON DELETE SET NULL,
		coupon_code TEXT,
		base_amount NUMERIC(10,2) NOT NULL,
		discount NUMERIC(10,2) NOT NULL DEFAULT 0,
		gst NUMERIC(10,2) NOT NULL DEFAULT 0,
		amount NUMERIC(10,2) NOT NULL,
		currency TEXT NOT NULL DEFAULT 'INR',
		status TEXT NOT NULL,
		order_id TEXT NOT NULL UNIQUE,
		payment_id TEXT,
		razorpay_sign TEXT,
		failure_reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`},
	{"certificates", `
	CREATE TABLE IF NOT EXISTS certificates (
		id SERIAL PRIMARY KEY,
		certificate_number TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		enrollment_id INTEGER NOT NULL UNIQUE REFERENCES enrollments(id) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		issued_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`},
	{"internships", `
	CREATE TABLE IF NOT EXISTS internships (
		id SERIAL PRIMARY KEY,
		employer_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		location TEXT,
		stipend NUMERIC(10,2) NOT NULL DEFAULT 0,
		open_until TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`},
	{"applications", `
	CREATE TABLE IF NOT EXISTS applications (
		id SERIAL PRIMARY KEY,
		internship_id INTEGER NOT NULL REFERENCES internships(id) ON DELETE CASCADE,
		student_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		cover_letter TEXT,
		resume_url TEXT,
		status TEXT NOT NULL DEFAULT 'APPLIED',
		interview_link TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (internship_id, student_id)
	);`},
	{"webhook_events", `
	CREATE TABLE IF NOT EXISTS webhook_events (
		id SERIAL PRIMARY KEY,
		event_id TEXT,
		event TEXT NOT NULL,
		order_id TEXT,
		signature_valid BOOLEAN NOT NULL,
		processing_status TEXT NOT NULL,
		error_message TEXT,
		received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`},
	{"dlq_messages", `
	CREATE TABLE IF NOT EXISTS dlq_messages (
		id SERIAL PRIMARY KEY,
		message_id TEXT UNIQUE NOT NULL,
		topic TEXT NOT NULL,
		message JSONB NOT NULL,
		error_details TEXT,
		retry_count INTEGER DEFAULT 0,
		max_retries INTEGER DEFAULT 3,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_retry_at TIMESTAMP,
		resolved BOOLEAN DEFAULT FALSE,
		resolution_notes TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`},
}

func createTables(conn *sql.DB) error {
	for _, t := range schema {
		if _, err := conn.Exec(t.ddl); err != nil {
			return fmt.Errorf("error creating %s table: %w", t.name, err)
		}
	}

	if _, err := conn.Exec(`CREATE INDEX IF NOT EXISTS idx_dlq_unresolved ON dlq_messages (resolved, retry_count)`); err != nil {
		logger.Warn("[DB] could not create dlq index: %v", err)
	}
	if _, err := conn.Exec(`CREATE INDEX IF NOT EXISTS idx_attempts_status ON exam_attempts (status)`); err != nil {
		logger.Warn("[DB] could not create attempts index: %v", err)
	}
	return nil
}
