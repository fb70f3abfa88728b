package repository

import (
	"database/sql"
	"fmt"

	"github.com/hitoshi/countdown/internal/database"
)

// NewTimerRepository はドライバーに対応するTimerRepositoryを生成する。
func NewTimerRepository(db *sql.DB, driver database.Driver) (TimerRepository, error) {
	switch driver {
	case database.DriverPostgres:
		return NewPostgresTimerRepo(db), nil
	case database.DriverSQLite:
		return NewSQLiteTimerRepo(db), nil
	default:
		return nil, fmt.Errorf("未対応のデータベースドライバーです: %q", driver)
	}
}
