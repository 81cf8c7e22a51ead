package core

import (
	"time"
)

// InvocationStatus is the outcome of a dispatched handler call.
type InvocationStatus string

const (
	InvocationSucceeded InvocationStatus = "succeeded"
	InvocationFailed    InvocationStatus = "failed"
)

// Invocation records one dispatched handler call.
type Invocation struct {
	ID         string           `gorm:"primaryKey;size:36"`
	Handler    string           `gorm:"index;size:255;not null"`
	Namespace  string           `gorm:"index;size:255"`
	Status     InvocationStatus `gorm:"index;size:20;not null"`
	Error      string           `gorm:"type:text"`
	DurationMs int64
	StartedAt  time.Time `gorm:"index"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}
