package chat

import "time"

type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is the ledger record of one generation. The ledger is written for
// auditing and lookups; the live state is in the admission queue.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"job_id"` // ULID length

	User    string `gorm:"column:user_name;type:varchar(128);index;not null" json:"user"`
	Mode    string `gorm:"type:varchar(16);not null" json:"mode"`
	QueueNo int64  `gorm:"not null" json:"queue"`

	Prompt string `gorm:"type:text;not null" json:"prompt"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	ResponseChars int `json:"response_chars"`

	// Filled when failed
	ErrorKind *string `gorm:"type:varchar(32)" json:"error_kind,omitempty"`
	Error     *string `gorm:"type:text" json:"error,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Job) TableName() string { return "generation_jobs" }
