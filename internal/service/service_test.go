package service

import (
	"io"
	"testing"

	"support-assistant/backend/internal/models"
	"support-assistant/backend/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB opens a fresh in-memory database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Ticket{}, &models.Message{}))
	return db
}

// testLogger returns a logger that discards output.
func testLogger() *logger.Logger {
	return logger.New(logger.Config{Output: io.Discard})
}

// createTestUser inserts a user directly, relying on the model hook to
// hash the password.
func createTestUser(t *testing.T, db *gorm.DB, email, password, role string) *models.User {
	t.Helper()

	user := &models.User{
		Email:    email,
		Password: password,
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createTestTicket inserts a ticket owned by the given user.
func createTestTicket(t *testing.T, db *gorm.DB, owner *models.User, title, description string) *models.Ticket {
	t.Helper()

	ticket := &models.Ticket{
		Title:       title,
		Description: description,
		Status:      models.DefaultTicketStatus,
		UserID:      owner.ID,
	}
	require.NoError(t, db.Create(ticket).Error)
	return ticket
}

// addTestMessage appends a message to a ticket directly.
func addTestMessage(t *testing.T, db *gorm.DB, ticketID uint, content string, isAI bool) *models.Message {
	t.Helper()

	msg := &models.Message{
		TicketID: ticketID,
		Content:  content,
		IsAI:     isAI,
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}
