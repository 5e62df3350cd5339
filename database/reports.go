package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/camden-git/attendancebackend/config"
	"github.com/camden-git/attendancebackend/models"
)

// Querier is the subset of *sql.DB the report queries need.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Reports runs aggregate read queries directly against the database, bypassing GORM.
type Reports struct {
	db Querier
	sb sq.StatementBuilderType
}

func NewReports(db Querier, driver string) *Reports {
	var format sq.PlaceholderFormat = sq.Question
	if driver == config.DriverPostgres {
		format = sq.Dollar
	}
	return &Reports{db: db, sb: sq.StatementBuilder.PlaceholderFormat(format)}
}

// StatusTotals aggregates the records of one status.
type StatusTotals struct {
	Days        int
	TotalWorked time.Duration
	Overtime    time.Duration
}

// AttendanceSummary describes a subject's attendance over an inclusive day range.
type AttendanceSummary struct {
	SubjectID      uint          `json:"subject_id"`
	From           string        `json:"from"`
	To             string        `json:"to"`
	TotalDays      int           `json:"total_days"`
	PresentDays    int           `json:"present_days"` // present + late
	LateDays       int           `json:"late_days"`
	HalfDays       int           `json:"half_days"`
	LeaveDays      int           `json:"leave_days"`
	AbsentDays     int           `json:"absent_days"` // includes days without a record
	TotalWorked    time.Duration `json:"total_worked"`
	TotalOvertime  time.Duration `json:"total_overtime"`
	AverageWorked  time.Duration `json:"average_worked"`
	AttendanceRate float64       `json:"attendance_rate"` // percent of non-leave days attended
}

// StatusTotals groups a subject's records in [from, to] by status.
func (r *Reports) StatusTotals(ctx context.Context, subjectID uint, from, to string) (map[models.AttendanceStatus]StatusTotals, error) {
	queryBuilder := r.sb.Select("status", "COUNT(*)", "COALESCE(SUM(total_worked), 0)", "COALESCE(SUM(overtime), 0)").
		From("attendance_records").
		Where(sq.Eq{"subject_id": subjectID}).
		Where(sq.GtOrEq{"day": from}).
		Where(sq.LtOrEq{"day": to}).
		GroupBy("status")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for StatusTotals: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute StatusTotals query for subject %d: %w", subjectID, err)
	}
	defer rows.Close()

	totals := make(map[models.AttendanceStatus]StatusTotals)
	for rows.Next() {
		var (
			status           string
			days             int
			worked, overtime int64
		)
		if err := rows.Scan(&status, &days, &worked, &overtime); err != nil {
			return nil, fmt.Errorf("failed to scan status totals row: %w", err)
		}
		totals[models.AttendanceStatus(status)] = StatusTotals{
			Days:        days,
			TotalWorked: time.Duration(worked),
			Overtime:    time.Duration(overtime),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status totals rows: %w", err)
	}
	return totals, nil
}

// Summary builds the attendance summary for a subject over [from, to].
func (r *Reports) Summary(ctx context.Context, subjectID uint, from, to string) (AttendanceSummary, error) {
	days, err := countDays(from, to)
	if err != nil {
		return AttendanceSummary{}, err
	}
	totals, err := r.StatusTotals(ctx, subjectID, from, to)
	if err != nil {
		return AttendanceSummary{}, err
	}
	s := Summarize(totals, days)
	s.SubjectID, s.From, s.To = subjectID, from, to
	return s, nil
}

// Summarize turns per-status totals into a summary over totalDays calendar days.
func Summarize(totals map[models.AttendanceStatus]StatusTotals, totalDays int) AttendanceSummary {
	s := AttendanceSummary{TotalDays: totalDays}
	recorded := 0
	for status, t := range totals {
		recorded += t.Days
		s.TotalWorked += t.TotalWorked
		s.TotalOvertime += t.Overtime
		switch status {
		case models.StatusPresent:
			s.PresentDays += t.Days
		case models.StatusLate:
			s.PresentDays += t.Days
			s.LateDays += t.Days
		case models.StatusHalfDay:
			s.HalfDays += t.Days
		case models.StatusOnLeave:
			s.LeaveDays += t.Days
		case models.StatusAbsent:
			s.AbsentDays += t.Days
		}
	}
	if missing := totalDays - recorded; missing > 0 {
		s.AbsentDays += missing
	}
	if s.PresentDays > 0 {
		s.AverageWorked = s.TotalWorked / time.Duration(s.PresentDays)
	}
	if workable := totalDays - s.LeaveDays; workable > 0 {
		s.AttendanceRate = float64(s.PresentDays) / float64(workable) * 100
	}
	return s
}

// DayOverview counts records per status for one day across all subjects.
func (r *Reports) DayOverview(ctx context.Context, day string) (map[models.AttendanceStatus]int64, error) {
	queryBuilder := r.sb.Select("status", "COUNT(*)").
		From("attendance_records").
		Where(sq.Eq{"day": day}).
		GroupBy("status")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for DayOverview: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute DayOverview query for %s: %w", day, err)
	}
	defer rows.Close()

	counts := make(map[models.AttendanceStatus]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan day overview row: %w", err)
		}
		counts[models.AttendanceStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating day overview rows: %w", err)
	}
	return counts, nil
}

// OutcomeCounts counts recognition attempts per outcome in [from, to).
func (r *Reports) OutcomeCounts(ctx context.Context, from, to time.Time) (map[models.RecognitionOutcome]int64, error) {
	queryBuilder := r.sb.Select("outcome", "COUNT(*)").
		From("recognition_logs").
		Where(sq.GtOrEq{"timestamp": from}).
		Where(sq.Lt{"timestamp": to}).
		GroupBy("outcome")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for OutcomeCounts: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute OutcomeCounts query: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.RecognitionOutcome]int64)
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count row: %w", err)
		}
		counts[models.RecognitionOutcome(outcome)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome count rows: %w", err)
	}
	return counts, nil
}

// RecognitionStats summarises a subject's most recent attempts.
type RecognitionStats struct {
	SubjectID     uint       `json:"subject_id"`
	TotalAttempts int        `json:"total_attempts"`
	Successful    int        `json:"successful"`
	SuccessRate   float64    `json:"success_rate"`
	LastAttempt   *time.Time `json:"last_attempt,omitempty"`
}

// RecognitionStats looks at the latest 'limit' attempts where the subject was matched or claimed.
func (r *Reports) RecognitionStats(ctx context.Context, subjectID uint, limit int) (RecognitionStats, error) {
	if limit <= 0 {
		limit = 10
	}
	queryBuilder := r.sb.Select("outcome", "timestamp").
		From("recognition_logs").
		Where(sq.Or{sq.Eq{"subject_id": subjectID}, sq.Eq{"claimed_subject_id": subjectID}}).
		OrderBy("timestamp DESC", "seq DESC").
		Limit(uint64(limit))

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return RecognitionStats{}, fmt.Errorf("failed to build SQL for RecognitionStats: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return RecognitionStats{}, fmt.Errorf("failed to execute RecognitionStats query for subject %d: %w", subjectID, err)
	}
	defer rows.Close()

	stats := RecognitionStats{SubjectID: subjectID}
	for rows.Next() {
		var (
			outcome string
			ts      time.Time
		)
		if err := rows.Scan(&outcome, &ts); err != nil {
			return RecognitionStats{}, fmt.Errorf("failed to scan recognition stats row: %w", err)
		}
		if stats.LastAttempt == nil {
			last := ts
			stats.LastAttempt = &last
		}
		stats.TotalAttempts++
		if models.RecognitionOutcome(outcome) == models.OutcomeMatched {
			stats.Successful++
		}
	}
	if err := rows.Err(); err != nil {
		return RecognitionStats{}, fmt.Errorf("error iterating recognition stats rows: %w", err)
	}
	if stats.TotalAttempts > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.TotalAttempts) * 100
	}
	return stats, nil
}

func countDays(from, to string) (int, error) {
	start, err := time.Parse(models.DayLayout, from)
	if err != nil {
		return 0, fmt.Errorf("invalid from day %q: %w", from, err)
	}
	end, err := time.Parse(models.DayLayout, to)
	if err != nil {
		return 0, fmt.Errorf("invalid to day %q: %w", to, err)
	}
	if end.Before(start) {
		return 0, fmt.Errorf("range end %s precedes start %s", to, from)
	}
	return int(end.Sub(start).Hours()/24) + 1, nil
}
