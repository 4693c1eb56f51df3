package database

import (
	"github.com/tableside/dinein/utils"
	"gorm.io/gorm"
)

// sessionGuardSQL installs a database-level backstop for the "one active
// session per table" invariant. The store already serializes creates in a
// transaction; the trigger catches writers that bypass the store.
var sessionGuardSQL = []string{
	`DROP TRIGGER IF EXISTS trg_sessions_single_active`,
	`CREATE TRIGGER trg_sessions_single_active
	BEFORE INSERT ON table_sessions
	FOR EACH ROW
	BEGIN
		IF NEW.status = 'active' AND EXISTS (
			SELECT 1 FROM table_sessions
			WHERE restaurant_id = NEW.restaurant_id
			  AND table_number = NEW.table_number
			  AND status = 'active'
		) THEN
			SIGNAL SQLSTATE '45000'
			SET MESSAGE_TEXT = 'active session already exists for table';
		END IF;
	END`,
}

// InstallSessionGuard executes the guard statements. Errors are logged and
// skipped so engines without trigger support (sqlite in tests) still run.
func InstallSessionGuard(db *gorm.DB) error {
	for _, stmt := range sessionGuardSQL {
		if err := db.Exec(stmt).Error; err != nil {
			utils.ErrorLogger.Printf("Error installing session guard: %v", err)
			continue
		}
	}
	return nil
}
