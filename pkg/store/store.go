package store

import (
	"github.com/Promptonauts/convey/pkg/models"
)

type Store interface {
	CreateRun(run *models.RunRecord) error
	GetRun(id string) (*models.RunRecord, error)
	UpdateRun(run *models.RunRecord) error
	ListRuns(channel models.Channel, limit int) ([]*models.RunRecord, error)
	AppendCommandLog(runID string, log models.CommandLog) error
	GetCommandLogs(runID string) ([]models.CommandLog, error)

	Watch() <-chan RunEvent

	Migrate() error
	Close() error
}

type EventType string

const (
	EventCreated EventType = "CREATED"
	EventUpdated EventType = "UPDATED"
)

type RunEvent struct {
	Type EventType
	Run  *models.RunRecord
}
