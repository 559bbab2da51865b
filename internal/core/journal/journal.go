//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package journal is the append-only in-memory record of forensic access entries, alerts
// and user notifications, together with the read views the administrative and user
// surfaces are built on.  Forensic entries are also forwarded to an access-log stream.
package journal

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/pkg/core/accesslog"
	"github.com/manetu/datasentinel/pkg/core/model"
)

var logger = logging.GetLogger("sentinel.journal")

const agent = "journal"

// Journal is safe for concurrent use.
type Journal struct {
	mu            sync.RWMutex
	records       []model.AccessRecord
	alerts        []model.Alert
	notifications []model.Notification
	watermarks    map[string]model.WatermarkIssue
	decodes       []model.WatermarkDecode

	stream   accesslog.Stream
	metadata map[string]string
	now      func() time.Time
}

// New returns an empty journal.  stream may be nil; metadata is attached to every forensic
// record.
func New(stream accesslog.Stream, metadata map[string]string, now func() time.Time) *Journal {
	if now == nil {
		now = time.Now
	}
	return &Journal{stream: stream, metadata: metadata, now: now}
}

func (j *Journal) stamp(id *string, ts *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if ts.IsZero() {
		*ts = j.now().UTC()
	}
}

// AppendRecord stores a forensic record and forwards it to the access-log stream.  A
// stream failure is logged and otherwise ignored.
func (j *Journal) AppendRecord(r model.AccessRecord) model.AccessRecord {
	j.stamp(&r.ID, &r.Timestamp)
	if len(j.metadata) > 0 {
		md := make(map[string]string, len(j.metadata)+len(r.Metadata))
		for k, v := range j.metadata {
			md[k] = v
		}
		for k, v := range r.Metadata {
			md[k] = v
		}
		r.Metadata = md
	}

	j.mu.Lock()
	j.records = append(j.records, r)
	j.mu.Unlock()

	if j.stream != nil {
		if err := j.stream.Send(&r); err != nil {
			logger.Warnf(agent, "send", "access log send failed: %v", err)
		}
	}
	return r
}

// AppendAlert stores an alert.
func (j *Journal) AppendAlert(a model.Alert) {
	j.stamp(&a.ID, &a.Timestamp)
	logger.Infof(agent, "alert", "%s partner=%s user=%s: %s", a.Type, a.Partner, a.User, a.Message)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.alerts = append(j.alerts, a)
}

// AppendNotification stores a user notification.
func (j *Journal) AppendNotification(n model.Notification) model.Notification {
	j.stamp(&n.ID, &n.Timestamp)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.notifications = append(j.notifications, n)
	return n
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := []T{}
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Records returns every forensic record in append order.
func (j *Journal) Records() []model.AccessRecord {
	return j.RecordsWhere(func(model.AccessRecord) bool { return true })
}

// RecordsWhere returns the forensic records accepted by keep.
func (j *Journal) RecordsWhere(keep func(model.AccessRecord) bool) []model.AccessRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return filter(j.records, keep)
}

// RecordsForUser returns the user's forensic records.
func (j *Journal) RecordsForUser(userID string) []model.AccessRecord {
	return j.RecordsWhere(func(r model.AccessRecord) bool { return r.User == userID })
}

// RecordsForPartner returns the partner's forensic records.
func (j *Journal) RecordsForPartner(partnerID string) []model.AccessRecord {
	return j.RecordsWhere(func(r model.AccessRecord) bool { return r.Partner == partnerID })
}

// Alerts returns every alert in append order.
func (j *Journal) Alerts() []model.Alert {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return filter(j.alerts, func(model.Alert) bool { return true })
}

// AlertsForUser returns the alerts naming userID.
func (j *Journal) AlertsForUser(userID string) []model.Alert {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return filter(j.alerts, func(a model.Alert) bool { return a.User == userID })
}

// Notifications returns every notification in append order.
func (j *Journal) Notifications() []model.Notification {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return filter(j.notifications, func(model.Notification) bool { return true })
}

// NotificationsForUser returns the user's notifications.
func (j *Journal) NotificationsForUser(userID string) []model.Notification {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return filter(j.notifications, func(n model.Notification) bool { return n.User == userID })
}

// RecordWatermark remembers that watermark was issued to partnerID.  The first issuance of
// a watermark is kept; later ones return it unchanged.
func (j *Journal) RecordWatermark(watermark, partnerID string) model.WatermarkIssue {
	j.mu.Lock()
	defer j.mu.Unlock()

	if w, ok := j.watermarks[watermark]; ok {
		return w
	}
	if j.watermarks == nil {
		j.watermarks = make(map[string]model.WatermarkIssue)
	}
	w := model.WatermarkIssue{Watermark: watermark, Partner: partnerID, Timestamp: j.now().UTC()}
	j.watermarks[watermark] = w
	return w
}

// TraceWatermark looks up the partner a leaked watermark was issued to and logs the
// attempt, matched or not.
func (j *Journal) TraceWatermark(leaked string) (model.WatermarkIssue, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	w, ok := j.watermarks[leaked]
	j.decodes = append(j.decodes, model.WatermarkDecode{
		Leaked:    leaked,
		Culprit:   w.Partner,
		Timestamp: j.now().UTC(),
	})
	return w, ok
}

// DecodeLog returns every trace attempt in order.
func (j *Journal) DecodeLog() []model.WatermarkDecode {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return filter(j.decodes, func(model.WatermarkDecode) bool { return true })
}

// Reset drops everything.  The stream is kept.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = nil
	j.alerts = nil
	j.notifications = nil
	j.watermarks = nil
	j.decodes = nil
}
