package storage

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one line in the routed-event audit log.
type AuditRecord struct {
	ID         string `json:"id"`
	Topic      string `json:"topic"`
	EntityKey  string `json:"entityKey"`
	Strategy   string `json:"strategy"`
	ReceivedAt string `json:"receivedAt"`
}

// AuditLog appends line-delimited JSON records to a file. Appends are
// fire-and-forget: a write failure is logged and swallowed so the primary
// handling path is never aborted by audit I/O.
type AuditLog struct {
	path    string
	nowFunc func() time.Time
}

// NewAuditLog returns a log writing to path. An empty path disables the log.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path, nowFunc: time.Now}
}

// Append records a routed event. Never returns an error.
func (l *AuditLog) Append(topic, entityKey, strategy string) {
	if l == nil || l.path == "" {
		return
	}
	rec := AuditRecord{
		ID:         uuid.NewString(),
		Topic:      topic,
		EntityKey:  entityKey,
		Strategy:   strategy,
		ReceivedAt: l.nowFunc().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[audit] marshal: %v", err)
		return
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("[audit] open %s: %v", l.path, err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("[audit] write %s: %v", l.path, err)
	}
}
