package attendance

import (
	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/models"
)

// ValidatePolicy checks a schedule policy before it is activated.
func ValidatePolicy(p *models.SchedulePolicy) error {
	switch {
	case p == nil:
		return apperrors.ErrInvalidPolicy.Withf("policy is required")
	case p.WorkStartMinutes < 0 || p.WorkStartMinutes >= 24*60:
		return apperrors.ErrInvalidPolicy.Withf("work start must be within the day")
	case p.WorkEndMinutes <= p.WorkStartMinutes || p.WorkEndMinutes > 24*60:
		return apperrors.ErrInvalidPolicy.Withf("work end must follow work start within the day")
	case p.LateThresholdMinutes < 0:
		return apperrors.ErrInvalidPolicy.Withf("late threshold cannot be negative")
	case p.StandardBreakMinutes < 0 || p.MaxBreakMinutes < p.StandardBreakMinutes:
		return apperrors.ErrInvalidPolicy.Withf("maximum break must be at least the standard break")
	case p.OvertimeThresholdHours <= 0 || p.OvertimeThresholdHours > 24:
		return apperrors.ErrInvalidPolicy.Withf("overtime threshold must be between 0 and 24 hours")
	case p.OvertimeRateMultiplier < 1:
		return apperrors.ErrInvalidPolicy.Withf("overtime multiplier must be at least 1")
	case p.HalfDayMinHours < 0 || p.HalfDayMinHours > p.OvertimeThresholdHours:
		return apperrors.ErrInvalidPolicy.Withf("half-day minimum must lie between 0 and the overtime threshold")
	case p.MinRecognitionConfidence < 0 || p.MinRecognitionConfidence > 1:
		return apperrors.ErrInvalidPolicy.Withf("minimum recognition confidence must lie in [0,1]")
	case p.MinProbeQuality < 0 || p.MinProbeQuality > 1:
		return apperrors.ErrInvalidPolicy.Withf("minimum probe quality must lie in [0,1]")
	}
	if _, err := p.ResolveLocation(); err != nil {
		return apperrors.ErrInvalidPolicy.Withf("unknown timezone %q", p.Timezone)
	}
	return nil
}
