package models

import (
	"fmt"
	"sync"
	"time"
)

// SchedulePolicy is one version of the organisation-wide working schedule.
// Versions are append-only; the policy effective at an instant is the one with the
// latest EffectiveFrom not after it.
type SchedulePolicy struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	WorkStartMinutes     int `gorm:"not null" json:"work_start_minutes"` // minutes after local midnight
	WorkEndMinutes       int `gorm:"not null" json:"work_end_minutes"`
	LateThresholdMinutes int `gorm:"not null" json:"late_threshold_minutes"`

	StandardBreakMinutes int `gorm:"not null" json:"standard_break_minutes"`
	MaxBreakMinutes      int `gorm:"not null" json:"max_break_minutes"`

	OvertimeThresholdHours float64 `gorm:"not null" json:"overtime_threshold_hours"`
	OvertimeRateMultiplier float64 `gorm:"not null" json:"overtime_rate_multiplier"`
	HalfDayMinHours        float64 `gorm:"not null" json:"half_day_min_hours"`

	MinRecognitionConfidence float64 `gorm:"not null" json:"min_recognition_confidence"`
	MinProbeQuality          float64 `gorm:"not null" json:"min_probe_quality"`

	AllowManualOverride  bool `gorm:"not null" json:"allow_manual_override"`
	RequireAdminApproval bool `gorm:"not null" json:"require_admin_approval"`

	Timezone      string    `gorm:"not null;size:64" json:"timezone"`
	EffectiveFrom time.Time `gorm:"not null;index" json:"effective_from"`
	IsActive      bool      `gorm:"not null;index" json:"is_active"`
	CreatedBy     *uint     `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName explicitly sets the table name for GORM.
func (SchedulePolicy) TableName() string {
	return "schedule_policies"
}

// DefaultSchedulePolicy returns the out-of-the-box schedule: 09:00-17:00, 15 minutes grace,
// one hour standard break capped at two, overtime after eight hours at 1.5x.
func DefaultSchedulePolicy() SchedulePolicy {
	return SchedulePolicy{
		WorkStartMinutes:         9 * 60,
		WorkEndMinutes:           17 * 60,
		LateThresholdMinutes:     15,
		StandardBreakMinutes:     60,
		MaxBreakMinutes:          120,
		OvertimeThresholdHours:   8.0,
		OvertimeRateMultiplier:   1.5,
		HalfDayMinHours:          4.0,
		MinRecognitionConfidence: 0.6,
		MinProbeQuality:          0.5,
		AllowManualOverride:      true,
		RequireAdminApproval:     false,
		Timezone:                 "UTC",
	}
}

// zone name -> *time.Location
var locationCache sync.Map

// LoadTimezone resolves an IANA zone name, caching successful lookups. An empty name is UTC.
func LoadTimezone(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	if loc, ok := locationCache.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	locationCache.Store(name, loc)
	return loc, nil
}

// ResolveLocation returns the policy timezone or an error for an unknown zone.
func (p *SchedulePolicy) ResolveLocation() (*time.Location, error) {
	return LoadTimezone(p.Timezone)
}

// Location resolves the policy timezone, falling back to UTC. Policies loaded by the
// services are checked with ResolveLocation first, so the fallback only applies to
// policies built in memory.
func (p *SchedulePolicy) Location() *time.Location {
	loc, err := p.ResolveLocation()
	if err != nil {
		return time.UTC
	}
	return loc
}

func (p *SchedulePolicy) MaxBreak() time.Duration {
	return time.Duration(p.MaxBreakMinutes) * time.Minute
}

func (p *SchedulePolicy) LateThreshold() time.Duration {
	return time.Duration(p.LateThresholdMinutes) * time.Minute
}

func (p *SchedulePolicy) OvertimeThreshold() time.Duration {
	return time.Duration(p.OvertimeThresholdHours * float64(time.Hour))
}

func (p *SchedulePolicy) HalfDayMinimum() time.Duration {
	return time.Duration(p.HalfDayMinHours * float64(time.Hour))
}

// WorkStartOn returns the scheduled start of work, as wall-clock time, on the calendar
// day of midnight in midnight's location.
func (p *SchedulePolicy) WorkStartOn(midnight time.Time) time.Time {
	y, m, d := midnight.Date()
	return time.Date(y, m, d, 0, p.WorkStartMinutes, 0, 0, midnight.Location())
}
