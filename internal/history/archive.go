package history

import (
	"database/sql"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ArchiveEntry is the rich per-command record kept in sqlite, alongside
// the flat history file that drives Up/Down navigation.
type ArchiveEntry struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Command   string
	Directory string
	ExitCode  sql.NullInt32
}

// Archive records command executions with timestamps, working directory
// and exit code. Archive failures are never fatal to the session; callers
// log and continue with the flat file as the source of truth.
type Archive struct {
	db *gorm.DB
}

// OpenArchive opens (or creates) the sqlite archive at dbPath.
func OpenArchive(dbPath string) (*Archive, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ArchiveEntry{}); err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

// Close releases the underlying database connection.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Begin records a command as started and returns the entry so Finish can
// fill in the exit code once the interpreter returns.
func (a *Archive) Begin(command, directory string) (*ArchiveEntry, error) {
	entry := ArchiveEntry{Command: command, Directory: directory}
	if result := a.db.Create(&entry); result.Error != nil {
		return nil, result.Error
	}
	return &entry, nil
}

// Finish stores the exit code on a started entry.
func (a *Archive) Finish(entry *ArchiveEntry, exitCode int) error {
	entry.ExitCode = sql.NullInt32{Int32: int32(exitCode), Valid: true}
	if result := a.db.Save(entry); result.Error != nil {
		return result.Error
	}
	return nil
}

// RecentByPrefix returns up to limit most recent commands starting with
// prefix, newest first.
func (a *Archive) RecentByPrefix(prefix string, limit int) ([]ArchiveEntry, error) {
	var entries []ArchiveEntry
	result := a.db.Where("command LIKE ?", prefix+"%").
		Order("created_at desc").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}
