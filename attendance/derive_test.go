package attendance

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/attendancebackend/models"
)

const testDay = "2024-03-04"

func clock(h, m int) time.Time {
	return time.Date(2024, 3, 4, h, m, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func testPolicy() *models.SchedulePolicy {
	p := models.DefaultSchedulePolicy()
	p.ID = 1
	return &p
}

func TestDeriveStatus_LateBoundary(t *testing.T) {
	policy := testPolicy()

	cases := []struct {
		name    string
		checkIn time.Time
		want    models.AttendanceStatus
	}{
		{"on time", clock(8, 55), models.StatusPresent},
		{"inside grace", clock(9, 14), models.StatusPresent},
		{"exactly at cutoff", clock(9, 15), models.StatusPresent},
		{"after cutoff", clock(9, 16), models.StatusLate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &models.AttendanceRecord{SubjectID: 1, Day: testDay, CheckIn: ptr(tc.checkIn)}
			assert.Equal(t, tc.want, DeriveStatus(rec, policy, false))
		})
	}
}

func TestDeriveStatus_Precedence(t *testing.T) {
	policy := testPolicy()

	absent := &models.AttendanceRecord{SubjectID: 1, Day: testDay}
	assert.Equal(t, models.StatusAbsent, DeriveStatus(absent, policy, false))
	assert.Equal(t, models.StatusOnLeave, DeriveStatus(absent, policy, true))

	lateAndShort := &models.AttendanceRecord{SubjectID: 1, Day: testDay, CheckIn: ptr(clock(10, 0)), CheckOut: ptr(clock(11, 0))}
	assert.Equal(t, models.StatusLate, DeriveStatus(lateAndShort, policy, false))
	assert.Equal(t, models.StatusOnLeave, DeriveStatus(lateAndShort, policy, true))

	short := &models.AttendanceRecord{SubjectID: 1, Day: testDay, CheckIn: ptr(clock(9, 0)), CheckOut: ptr(clock(12, 0))}
	assert.Equal(t, models.StatusHalfDay, DeriveStatus(short, policy, false))

	stillWorking := &models.AttendanceRecord{SubjectID: 1, Day: testDay, CheckIn: ptr(clock(9, 0))}
	assert.Equal(t, models.StatusPresent, DeriveStatus(stillWorking, policy, false))
}

func TestDeriveStatus_Idempotent(t *testing.T) {
	policy := testPolicy()
	rec := &models.AttendanceRecord{
		SubjectID:  1,
		Day:        testDay,
		CheckIn:    ptr(clock(9, 20)),
		BreakStart: ptr(clock(12, 0)),
		BreakEnd:   ptr(clock(13, 0)),
		CheckOut:   ptr(clock(18, 0)),
	}

	first := DeriveStatus(rec, policy, false)
	second := DeriveStatus(rec, policy, false)
	assert.Equal(t, first, second)

	once := Rederive(rec, policy, false)
	twice := Rederive(once, policy, false)
	assert.Equal(t, once, twice)
}

func TestDeriveDurations_StandardDay(t *testing.T) {
	rec := &models.AttendanceRecord{
		SubjectID:  1,
		Day:        testDay,
		CheckIn:    ptr(clock(9, 0)),
		BreakStart: ptr(clock(12, 0)),
		BreakEnd:   ptr(clock(12, 30)),
		CheckOut:   ptr(clock(17, 30)),
	}
	d := DeriveDurations(rec, testPolicy())

	assert.Equal(t, 8*time.Hour, d.TotalWorked)
	assert.Equal(t, 30*time.Minute, d.Break)
	assert.False(t, d.BreakExceeded)
	assert.Zero(t, d.Overtime)
	assert.Zero(t, d.WeightedOvertime)
}

func TestDeriveDurations_Overtime(t *testing.T) {
	rec := &models.AttendanceRecord{
		SubjectID:  1,
		Day:        testDay,
		CheckIn:    ptr(clock(8, 0)),
		BreakStart: ptr(clock(12, 0)),
		BreakEnd:   ptr(clock(12, 30)),
		CheckOut:   ptr(clock(18, 30)),
	}
	d := DeriveDurations(rec, testPolicy())

	assert.Equal(t, 10*time.Hour, d.TotalWorked)
	assert.Equal(t, 2*time.Hour, d.Overtime)
	assert.Equal(t, 3*time.Hour, d.WeightedOvertime)
}

func TestDeriveDurations_BreakCapped(t *testing.T) {
	rec := &models.AttendanceRecord{
		SubjectID:  1,
		Day:        testDay,
		CheckIn:    ptr(clock(9, 0)),
		BreakStart: ptr(clock(12, 0)),
		BreakEnd:   ptr(clock(14, 30)),
		CheckOut:   ptr(clock(17, 30)),
	}
	d := DeriveDurations(rec, testPolicy())

	assert.Equal(t, 2*time.Hour, d.Break)
	assert.Equal(t, 30*time.Minute, d.BreakExcess)
	assert.True(t, d.BreakExceeded)
	assert.Equal(t, 6*time.Hour, d.TotalWorked)
}

func TestDeriveDurations_OpenDay(t *testing.T) {
	rec := &models.AttendanceRecord{SubjectID: 1, Day: testDay, CheckIn: ptr(clock(9, 0)), BreakStart: ptr(clock(12, 0))}
	d := DeriveDurations(rec, testPolicy())

	assert.Zero(t, d.TotalWorked)
	assert.Zero(t, d.Break)
}

func TestIsLate_UsesPolicyTimezone(t *testing.T) {
	policy := testPolicy()
	policy.Timezone = "Asia/Jakarta"

	// 02:10 UTC is 09:10 in Jakarta
	checkIn := time.Date(2024, 3, 4, 2, 10, 0, 0, time.UTC)
	require.Equal(t, testDay, DayKey(checkIn, policy.Location()))

	rec := &models.AttendanceRecord{SubjectID: 1, Day: testDay, CheckIn: &checkIn}
	assert.False(t, IsLate(rec, policy))

	lateIn := checkIn.Add(10 * time.Minute)
	rec.CheckIn = &lateIn
	assert.True(t, IsLate(rec, policy))
}

func TestDaysBetween(t *testing.T) {
	days, err := DaysBetween("2024-02-28", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01"}, days)

	days, err = DaysBetween("2024-03-02", "2024-03-01")
	require.NoError(t, err)
	assert.Empty(t, days)

	_, err = DaysBetween("03/01/2024", "2024-03-01")
	assert.Error(t, err)
}

func TestIsLate_DaylightSavingDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	policy := testPolicy()
	policy.Timezone = "America/New_York"

	cases := []struct {
		name string
		day  string
		at   time.Time
		late bool
	}{
		{"spring forward, inside grace", "2024-03-10", time.Date(2024, 3, 10, 9, 10, 0, 0, ny), false},
		{"spring forward, after grace", "2024-03-10", time.Date(2024, 3, 10, 9, 30, 0, 0, ny), true},
		{"spring forward, exactly at cutoff", "2024-03-10", time.Date(2024, 3, 10, 9, 15, 0, 0, ny), false},
		{"fall back, early", "2024-11-03", time.Date(2024, 11, 3, 8, 30, 0, 0, ny), false},
		{"fall back, after grace", "2024-11-03", time.Date(2024, 11, 3, 9, 16, 0, 0, ny), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkIn := tc.at.UTC()
			require.Equal(t, tc.day, DayKey(checkIn, policy.Location()))
			rec := &models.AttendanceRecord{SubjectID: 1, Day: tc.day, CheckIn: &checkIn}
			assert.Equal(t, tc.late, IsLate(rec, policy))
		})
	}
}
