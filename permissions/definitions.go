package permissions

// PermissionScope defines the context in which a permission applies
type PermissionScope string

const (
	ScopeGlobal  PermissionScope = "global"  // applies system-wide
	ScopeSubject PermissionScope = "subject" // applies to one tracked subject
)

const (
	AttendanceRecord   = "attendance.record"
	AttendanceView     = "attendance.view"
	AttendanceCorrect  = "attendance.correct"
	AttendanceApprove  = "attendance.approve"
	AttendanceFinalize = "attendance.finalize"
	LeaveRequest       = "leave.request"
	LeaveApprove       = "leave.approve"
	PolicyManage       = "policy.manage"
	SubjectManage      = "subject.manage"
	TemplateManage     = "template.manage"
	RecognitionRun     = "recognition.run"
	RecognitionView    = "recognition.view"
)

// PermissionDefinition describes a single, specific permission
type PermissionDefinition struct {
	Key         string          `json:"key"`         // unique key, e.g., "attendance.correct"
	Name        string          `json:"name"`        // friendly name, e.g., "Correct Attendance"
	Description string          `json:"description"` // what the permission allows
	Scope       PermissionScope `json:"scope"`
}

// PermissionGroupDefinition groups related permissions
type PermissionGroupDefinition struct {
	Key         string                 `json:"key"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Permissions []PermissionDefinition `json:"permissions"`
}

// DefinedPermissionGroups holds all statically defined permission groups and their permissions
var DefinedPermissionGroups = []PermissionGroupDefinition{
	{
		Key:         "attendance",
		Name:        "Attendance",
		Description: "Recording and administering daily attendance records.",
		Permissions: []PermissionDefinition{
			{
				Key:         AttendanceRecord,
				Name:        "Record Events",
				Description: "Allows submitting check-in, check-out and break events.",
				Scope:       ScopeSubject,
			},
			{
				Key:         AttendanceView,
				Name:        "View Attendance",
				Description: "Allows viewing day status, history and summaries.",
				Scope:       ScopeSubject,
			},
			{
				Key:         AttendanceCorrect,
				Name:        "Correct Attendance",
				Description: "Allows replacing the timestamps of a day, including finalized days.",
				Scope:       ScopeGlobal,
			},
			{
				Key:         AttendanceApprove,
				Name:        "Approve Attendance",
				Description: "Allows approving records created under a policy that requires approval.",
				Scope:       ScopeGlobal,
			},
			{
				Key:         AttendanceFinalize,
				Name:        "Finalize Days",
				Description: "Allows closing a day and re-deriving stored records.",
				Scope:       ScopeGlobal,
			},
		},
	},
	{
		Key:         "leave",
		Name:        "Leave",
		Description: "Leave requests and their approval.",
		Permissions: []PermissionDefinition{
			{
				Key:         LeaveRequest,
				Name:        "Request Leave",
				Description: "Allows creating and cancelling leave requests.",
				Scope:       ScopeSubject,
			},
			{
				Key:         LeaveApprove,
				Name:        "Approve Leave",
				Description: "Allows approving or rejecting pending leave requests.",
				Scope:       ScopeGlobal,
			},
		},
	},
	{
		Key:         "administration",
		Name:        "Administration",
		Description: "Schedule policies, subjects and biometric templates.",
		Permissions: []PermissionDefinition{
			{
				Key:         PolicyManage,
				Name:        "Manage Policies",
				Description: "Allows activating new schedule policy versions.",
				Scope:       ScopeGlobal,
			},
			{
				Key:         SubjectManage,
				Name:        "Manage Subjects",
				Description: "Allows registering subjects.",
				Scope:       ScopeGlobal,
			},
			{
				Key:         TemplateManage,
				Name:        "Manage Templates",
				Description: "Allows enrolling and deactivating biometric templates.",
				Scope:       ScopeGlobal,
			},
		},
	},
	{
		Key:         "recognition",
		Name:        "Recognition",
		Description: "Biometric matching and its audit trail.",
		Permissions: []PermissionDefinition{
			{
				Key:         RecognitionRun,
				Name:        "Run Recognition",
				Description: "Allows submitting probes for verification or identification.",
				Scope:       ScopeGlobal,
			},
			{
				Key:         RecognitionView,
				Name:        "View Recognition Logs",
				Description: "Allows viewing recognition logs, statistics and the live feed.",
				Scope:       ScopeGlobal,
			},
		},
	},
}

var (
	allPermissionKeysMap map[string]PermissionDefinition
	allPermissionKeys    []string
)

func init() {
	allPermissionKeysMap = make(map[string]PermissionDefinition)
	for _, group := range DefinedPermissionGroups {
		for _, perm := range group.Permissions {
			allPermissionKeysMap[perm.Key] = perm
			allPermissionKeys = append(allPermissionKeys, perm.Key)
		}
	}
}

// GetAllPermissionKeys returns a copy of every defined permission key.
func GetAllPermissionKeys() []string {
	keys := make([]string, len(allPermissionKeys))
	copy(keys, allPermissionKeys)
	return keys
}

func IsValidPermissionKey(key string) bool {
	_, ok := allPermissionKeysMap[key]
	return ok
}

// GetPermissionDefinition retrieves a specific permission definition by its key.
func GetPermissionDefinition(key string) (PermissionDefinition, bool) {
	def, ok := allPermissionKeysMap[key]
	return def, ok
}
