package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type memSnapshotStore struct {
	files     map[string][]byte
	saveErr   error
	retention time.Duration
}

func (m *memSnapshotStore) Save(filename string, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[filename] = data
	return filename, nil
}

func (m *memSnapshotStore) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	m.retention = ttl
	return nil, nil
}

func (m *memSnapshotStore) List() ([]string, error) {
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func TestSnapshotWritesLedger(t *testing.T) {
	roster := rosterOf("Ayu", "Budi")
	f := newAttendanceFixture(t, roster...)
	seedRecord(t, f, roster[0].ID, fixtureDay, models.AttendanceStatusPresent, f.clk.Now())
	seedRecord(t, f, "departed", "2024-03-01", models.AttendanceStatusSick, f.clk.Now().Add(-72*time.Hour))

	store := &memSnapshotStore{files: map[string][]byte{"2024-02/attendance_XI-2_20240226-080000.csv": []byte("Date\n")}}
	core, logs := observer.New(zap.InfoLevel)
	svc := NewSnapshotService(f.roster, memLedger{f.db}, store, f.policy, SnapshotConfig{Cohort: "XI-2", Retention: 30 * 24 * time.Hour}, zap.New(core))

	name, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-03/attendance_XI-2_20240304-080000.csv", name)
	assert.Equal(t, 30*24*time.Hour, store.retention)

	lines := strings.Split(strings.TrimSpace(string(store.files[name])), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,StudentID,Name,Email,Status,Timestamp", lines[0])
	assert.Equal(t, "2024-03-01,departed,,,sakit,2024-03-01T08:00:00+08:00", lines[1])
	assert.Equal(t, "2024-03-04,sa,Ayu,Ayu@xi2.sch.id,hadir,2024-03-04T08:00:00+08:00", lines[2])

	archive := logs.FilterMessage("snapshot archive").All()
	require.Len(t, archive, 1)
	assert.Equal(t, int64(2), archive[0].ContextMap()["retained"])
	assert.Equal(t, "2024-02/attendance_XI-2_20240226-080000.csv", archive[0].ContextMap()["oldest"])
}

func TestSnapshotSkipsEmptyLedger(t *testing.T) {
	f := newAttendanceFixture(t, rosterOf("Ayu")...)
	store := &memSnapshotStore{}
	svc := NewSnapshotService(f.roster, memLedger{f.db}, store, f.policy, SnapshotConfig{Cohort: "XI-2"}, nil)

	name, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Empty(t, store.files)
}

func TestSnapshotSaveFailure(t *testing.T) {
	roster := rosterOf("Ayu")
	f := newAttendanceFixture(t, roster...)
	seedRecord(t, f, roster[0].ID, fixtureDay, models.AttendanceStatusPresent, f.clk.Now())
	svc := NewSnapshotService(f.roster, memLedger{f.db}, &memSnapshotStore{saveErr: errors.New("disk full")}, f.policy, SnapshotConfig{Cohort: "XI-2"}, nil)

	_, err := svc.Snapshot(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrStorage)
}
