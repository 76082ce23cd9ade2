package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/pkg/clock"
)

// memDB is an in-memory stand-in for the sessions and ledger tables. WithinTx holds the
// mutex for the whole callback, which mirrors the row lock taken by the real store.
type memDB struct {
	mu       sync.Mutex
	sessions map[string]*models.QRSession
	records  map[string]models.AttendanceRecord
	seq      int
	txCount  int

	failCreate error
}

func newMemDB() *memDB {
	return &memDB{sessions: map[string]*models.QRSession{}, records: map[string]models.AttendanceRecord{}}
}

func recordKey(studentID, day string) string { return studentID + "|" + day }

func (m *memDB) nextID() string {
	m.seq++
	return fmt.Sprintf("rec-%d", m.seq)
}

func (m *memDB) WithinTx(ctx context.Context, fn func(repository.RedemptionTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	tx := &memTx{db: m, records: map[string]models.AttendanceRecord{}, redeemers: map[string][]string{}}
	if err := fn(tx); err != nil {
		return err
	}
	for k, r := range tx.records {
		m.records[k] = r
	}
	for token, ids := range tx.redeemers {
		session := m.sessions[token]
		for _, id := range ids {
			if !session.RedeemedByStudent(id) {
				session.RedeemedBy = append(session.RedeemedBy, id)
			}
		}
	}
	return nil
}

func (m *memDB) recordCount(studentID, day string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[recordKey(studentID, day)]; ok {
		return 1
	}
	return 0
}

func (m *memDB) session(token string) models.QRSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *m.sessions[token]
	s.RedeemedBy = append([]string{}, s.RedeemedBy...)
	return s
}

type memTx struct {
	db        *memDB
	records   map[string]models.AttendanceRecord
	redeemers map[string][]string
}

func (t *memTx) LockSession(ctx context.Context, token string) (*models.QRSession, error) {
	s, ok := t.db.sessions[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	cp.RedeemedBy = append([]string{}, s.RedeemedBy...)
	return &cp, nil
}

func (t *memTx) FindRecord(ctx context.Context, studentID, day string) (*models.AttendanceRecord, error) {
	key := recordKey(studentID, day)
	if r, ok := t.records[key]; ok {
		return &r, nil
	}
	if r, ok := t.db.records[key]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (t *memTx) CreateRecord(ctx context.Context, record *models.AttendanceRecord) error {
	if t.db.failCreate != nil {
		return t.db.failCreate
	}
	key := recordKey(record.StudentID, record.Day)
	if _, ok := t.db.records[key]; ok {
		return repository.ErrDuplicateRecord
	}
	if _, ok := t.records[key]; ok {
		return repository.ErrDuplicateRecord
	}
	record.ID = t.db.nextID()
	t.records[key] = *record
	return nil
}

func (t *memTx) AppendRedeemer(ctx context.Context, token, studentID string) error {
	t.redeemers[token] = append(t.redeemers[token], studentID)
	return nil
}

// memLedger exposes the ledger half of memDB.
type memLedger struct{ db *memDB }

func (l memLedger) FindByStudentAndDay(ctx context.Context, studentID, day string) (*models.AttendanceRecord, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	r, ok := l.db.records[recordKey(studentID, day)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (l memLedger) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	key := recordKey(record.StudentID, record.Day)
	if existing, ok := l.db.records[key]; ok {
		record.ID = existing.ID
	} else if record.ID == "" {
		record.ID = l.db.nextID()
	}
	l.db.records[key] = *record
	return nil
}

func (l memLedger) DeleteAll(ctx context.Context) (int64, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	n := int64(len(l.db.records))
	l.db.records = map[string]models.AttendanceRecord{}
	return n, nil
}

func (l memLedger) List(ctx context.Context, filter repository.AttendanceFilter) ([]models.AttendanceRecord, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	out := []models.AttendanceRecord{}
	for _, r := range l.db.records {
		if filter.From != "" && r.Day < filter.From {
			continue
		}
		if filter.To != "" && r.Day > filter.To {
			continue
		}
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// memSessions exposes the session half of memDB.
type memSessions struct{ db *memDB }

func (s memSessions) Create(ctx context.Context, session *models.QRSession) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cp := *session
	s.db.sessions[session.Token] = &cp
	return nil
}

func (s memSessions) FindByToken(ctx context.Context, token string) (*models.QRSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	found, ok := s.db.sessions[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *found
	return &cp, nil
}

func (s memSessions) Deactivate(ctx context.Context, token string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if found, ok := s.db.sessions[token]; ok {
		found.Active = false
	}
	return nil
}

func (s memSessions) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, found := range s.db.sessions {
		if found.Active && found.ExpiresAt.Before(now) {
			found.Active = false
			n++
		}
	}
	return n, nil
}

func (s memSessions) DeleteAll(ctx context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := int64(len(s.db.sessions))
	s.db.sessions = map[string]*models.QRSession{}
	return n, nil
}

// fakeRoster serves the student roster, user lookups and audit writes.
type fakeRoster struct {
	mu       sync.Mutex
	students []models.RosterStudent
	users    map[string]*models.User
	audits   []*models.AuditLog
	listErr  error
}

func newFakeRoster(students ...models.RosterStudent) *fakeRoster {
	r := &fakeRoster{students: students, users: map[string]*models.User{}}
	for _, st := range students {
		r.users[st.ID] = &models.User{ID: st.ID, Name: st.Name, Email: st.Email, Role: models.RoleStudent, Cohort: "XI-2"}
	}
	return r
}

func (r *fakeRoster) ListStudents(ctx context.Context, cohort string) ([]models.RosterStudent, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := append([]models.RosterStudent{}, r.students...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeRoster) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (r *fakeRoster) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, log)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubRenderer struct{ err error }

func (s stubRenderer) DataURI(payload string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "data:image/png;base64,c3R1Yg==", nil
}

var errStoreDown = errors.New("connection refused")

type attendanceFixture struct {
	clk     *fakeClock
	policy  *clock.Policy
	db      *memDB
	roster  *fakeRoster
	metrics *MetricsService
	qr      *QRSessionService
	agg     *AggregationService
	svc     *AttendanceService
}

// newAttendanceFixture starts the clock at 08:00 cohort time (UTC+8) on 2024-03-04.
func newAttendanceFixture(t *testing.T, students ...models.RosterStudent) *attendanceFixture {
	t.Helper()
	clk := &fakeClock{now: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}
	policy, err := clock.NewPolicy(clk, "Asia/Makassar")
	require.NoError(t, err)

	db := newMemDB()
	roster := newFakeRoster(students...)
	metrics := NewMetricsService()
	qr := NewQRSessionService(memSessions{db}, stubRenderer{}, policy, 15*time.Minute, metrics, nil)
	agg := NewAggregationService(roster, memLedger{db}, nil, policy, AggregationConfig{Cohort: "XI-2"}, nil)
	svc := NewAttendanceService(AttendanceServiceParams{
		Store:       db,
		Ledger:      memLedger{db},
		Sessions:    memSessions{db},
		Users:       roster,
		QR:          qr,
		Aggregation: agg,
		Policy:      policy,
		Metrics:     metrics,
	})
	return &attendanceFixture{clk: clk, policy: policy, db: db, roster: roster, metrics: metrics, qr: qr, agg: agg, svc: svc}
}

func (f *attendanceFixture) issue(t *testing.T) string {
	t.Helper()
	res, err := f.qr.Issue(context.Background(), teacherClaims())
	require.NoError(t, err)
	return res.Token
}

func teacherClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher, Name: "Bu Sari", Email: "sari@xi2.sch.id"}
}

func studentClaims(st models.RosterStudent) *models.JWTClaims {
	return &models.JWTClaims{UserID: st.ID, Role: models.RoleStudent, Name: st.Name, Email: st.Email}
}

func rosterOf(names ...string) []models.RosterStudent {
	out := make([]models.RosterStudent, 0, len(names))
	for i, name := range names {
		out = append(out, models.RosterStudent{
			ID:    "s" + string(rune('a'+i)),
			Name:  name,
			Email: name + "@xi2.sch.id",
		})
	}
	return out
}
