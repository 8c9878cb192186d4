package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			school_id VARCHAR(50) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			position VARCHAR(50) NOT NULL DEFAULT 'Student',
			role VARCHAR(10) NOT NULL DEFAULT 'user',
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			profile_image TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create books table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS books (
			id VARCHAR(36) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			author VARCHAR(255) NOT NULL,
			isbn VARCHAR(20),
			category VARCHAR(100),
			cover_image TEXT,
			total_copies INT NOT NULL DEFAULT 1,
			available_copies INT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create research_papers table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS research_papers (
			id VARCHAR(36) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			authors VARCHAR(255) NOT NULL,
			year INT,
			department VARCHAR(100),
			available BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create transactions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			transaction_id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			book_id VARCHAR(36) REFERENCES books(id),
			research_paper_id VARCHAR(36) REFERENCES research_papers(id),
			transaction_type VARCHAR(10) NOT NULL,
			status VARCHAR(20) NOT NULL,
			due_date TIMESTAMP,
			returned_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			CHECK (book_id IS NOT NULL OR research_paper_id IS NOT NULL)
		)
	`)
	if err != nil {
		return err
	}

	// Create penalties table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS penalties (
			penalty_id BIGSERIAL PRIMARY KEY,
			transaction_id VARCHAR(36) NOT NULL REFERENCES transactions(transaction_id),
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			fine NUMERIC(10,2) NOT NULL DEFAULT 0,
			status VARCHAR(20),
			payment_method VARCHAR(50),
			notes TEXT,
			waive_reason TEXT,
			waived_by VARCHAR(36),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create system_settings table (singleton row, id always 1)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS system_settings (
			id INT PRIMARY KEY,
			student_daily_fine NUMERIC(10,2) NOT NULL DEFAULT 5,
			faculty_daily_fine NUMERIC(10,2) NOT NULL DEFAULT 11,
			student_borrow_days INT NOT NULL DEFAULT 7,
			faculty_borrow_days INT NOT NULL DEFAULT 14,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create activity_logs table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS activity_logs (
			id BIGSERIAL PRIMARY KEY,
			actor_id VARCHAR(36),
			action VARCHAR(100) NOT NULL,
			details TEXT,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Migrate legacy NULL penalty statuses to the closed enum. Historically a
	// NULL status meant "Pending Payment" when a fine was owed and "Paid"
	// otherwise; new rows always carry an explicit status.
	_, err = db.Exec(`
		UPDATE penalties
		SET status = CASE WHEN fine > 0 THEN 'Pending Payment' ELSE 'Paid' END
		WHERE status IS NULL
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_penalties_tx_user ON penalties(transaction_id, user_id)",
		"CREATE INDEX IF NOT EXISTS idx_penalties_status ON penalties(status)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_due_date ON transactions(transaction_type, due_date)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
