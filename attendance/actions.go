package attendance

import "github.com/camden-git/attendancebackend/models"

// Actions lists which events the record currently accepts.
type Actions struct {
	CanCheckIn    bool `json:"can_check_in"`
	CanCheckOut   bool `json:"can_check_out"`
	CanStartBreak bool `json:"can_start_break"`
	CanEndBreak   bool `json:"can_end_break"`
}

func NextActions(rec *models.AttendanceRecord) Actions {
	if rec != nil && (rec.Finalized || rec.CheckedOut()) {
		return Actions{}
	}
	if !rec.CheckedIn() {
		return Actions{CanCheckIn: true}
	}
	return Actions{
		CanCheckOut:   !rec.OnBreak(),
		CanStartBreak: rec.BreakStart == nil,
		CanEndBreak:   rec.OnBreak(),
	}
}
