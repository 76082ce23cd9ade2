package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type stubRoster struct {
	users []models.User
	err   error
}

func (s stubRoster) List(ctx context.Context) ([]models.User, error) { return s.users, s.err }

func TestExportDailyCSV(t *testing.T) {
	roster := rosterOf("Ayu", "Budi")
	f := newAttendanceFixture(t, roster...)
	seedRecord(t, f, roster[0].ID, fixtureDay, models.AttendanceStatusPresent, f.clk.Now().Add(90*time.Second))

	svc := NewExportService(f.agg, stubRoster{}, f.policy.Location(), nil, nil, nil)
	res, err := svc.Daily(context.Background(), fixtureDay, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "attendance_XI-2_2024-03-04.csv", res.Filename)
	assert.Equal(t, "text/csv", res.ContentType)

	lines := strings.Split(strings.TrimSpace(string(res.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,Email,Status,Timestamp", lines[0])
	assert.Equal(t, "Ayu,Ayu@xi2.sch.id,hadir,08:01:30", lines[1])
	assert.Equal(t, "Budi,Budi@xi2.sch.id,alfa,-", lines[2])
}

func TestExportDailyPDF(t *testing.T) {
	f := newAttendanceFixture(t, rosterOf("Ayu")...)
	svc := NewExportService(f.agg, stubRoster{}, f.policy.Location(), nil, nil, nil)

	res, err := svc.Daily(context.Background(), fixtureDay, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.True(t, strings.HasPrefix(string(res.Body), "%PDF"))
}

func TestExportDailyRejectsUnknownFormat(t *testing.T) {
	f := newAttendanceFixture(t)
	svc := NewExportService(f.agg, stubRoster{}, nil, nil, nil, nil)

	_, err := svc.Daily(context.Background(), fixtureDay, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportRoster(t *testing.T) {
	svc := NewExportService(nil, stubRoster{users: []models.User{
		{Name: "Ayu", Email: "ayu@xi2.sch.id", Role: models.RoleStudent, Cohort: "XI-2"},
	}}, nil, nil, nil, nil)

	res, err := svc.Roster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "users.csv", res.Filename)
	assert.Equal(t, "Name,Email,Role,Class\nAyu,ayu@xi2.sch.id,siswa,XI-2\n", string(res.Body))

	failing := NewExportService(nil, stubRoster{err: appErrors.Storage(errors.New("down"), "Failed to fetch users")}, nil, nil, nil, nil)
	_, err = failing.Roster(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrStorage)
}

func TestParseRosterNumbersLines(t *testing.T) {
	svc := NewExportService(nil, stubRoster{}, nil, nil, nil, nil)

	rows, err := svc.ParseRoster(strings.NewReader("name,email,role,class\nAyu,ayu@xi2.sch.id,SISWA,XI-2\nBudi,budi@xi2.sch.id,,\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.ImportRow{Line: 2, Name: "Ayu", Email: "ayu@xi2.sch.id", Role: models.RoleStudent, Cohort: "XI-2"}, rows[0])
	assert.Equal(t, 3, rows[1].Line)
	assert.Equal(t, models.UserRole(""), rows[1].Role)

	_, err = svc.ParseRoster(strings.NewReader(""))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
