package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/permissions"
	"github.com/camden-git/attendancebackend/realtime"
	"github.com/camden-git/attendancebackend/services"
	"github.com/camden-git/attendancebackend/workers"
)

// RouterDeps is everything the HTTP surface calls into.
type RouterDeps struct {
	Attendance  *services.AttendanceService
	Enrollment  *services.EnrollmentService
	Recognition *services.RecognitionService
	Leaves      *services.LeaveService
	Policies    *services.PolicyService
	Subjects    *services.SubjectService
	Jobs        workers.JobQueuer // optional
	Hub         *realtime.Hub     // optional
	JWTSecret   []byte
	Log         *zap.Logger
}

// NewRouter builds the /api routes. CORS is applied by the caller.
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	attendanceHandler := &AttendanceHandler{Service: deps.Attendance, Jobs: deps.Jobs, Log: log}
	enrollmentHandler := &EnrollmentHandler{Service: deps.Enrollment, Log: log}
	recognitionHandler := &RecognitionHandler{Service: deps.Recognition, Log: log}
	leaveHandler := &LeaveHandler{Service: deps.Leaves, Log: log}
	policyHandler := &PolicyHandler{Service: deps.Policies, Log: log}
	subjectHandler := &SubjectHandler{Service: deps.Subjects, Log: log}
	permissionsHandler := &PermissionsHandler{}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			body := map[string]interface{}{"status": "ok"}
			if deps.Hub != nil {
				body["feed_clients"] = deps.Hub.ClientCount()
			}
			writeJSON(w, http.StatusOK, body)
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(deps.JWTSecret))

			r.Get("/me", permissionsHandler.Me)
			r.Get("/permissions", permissionsHandler.ListDefinedPermissions)
			r.Get("/permissions/keys", permissionsHandler.ListDefinedPermissionKeys)

			if deps.Hub != nil {
				feedHandler := &FeedHandler{Hub: deps.Hub}
				r.Get("/feed", feedHandler.Subscribe)
			}

			// websocket upgrades must not be cut off by the request timeout
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))

				r.Route("/subjects", func(r chi.Router) {
					r.With(RequirePermission(permissions.SubjectManage)).Post("/", subjectHandler.Create)
					r.With(RequirePermission(permissions.AttendanceView)).Get("/", subjectHandler.List)
					r.Route("/{subject_id}", func(r chi.Router) {
						r.Get("/", subjectHandler.Get)
						r.Get("/attendance", attendanceHandler.History)
						r.Get("/attendance/day", attendanceHandler.DayStatus)
						r.Get("/attendance/summary", attendanceHandler.Summary)
						r.Get("/recognition/logs", recognitionHandler.Logs)
						r.Get("/recognition/stats", recognitionHandler.Stats)
						r.Route("/templates", func(r chi.Router) {
							r.Use(RequirePermission(permissions.TemplateManage))
							r.Get("/", enrollmentHandler.Overview)
							r.Post("/", enrollmentHandler.Enroll)
							r.Delete("/{template_id}", enrollmentHandler.Deactivate)
						})
					})
				})

				r.Route("/attendance", func(r chi.Router) {
					r.Post("/events", attendanceHandler.RecordEvent)
					r.With(RequirePermission(permissions.AttendanceView)).Get("/overview", attendanceHandler.Overview)
					r.With(RequirePermission(permissions.AttendanceCorrect)).Post("/corrections", attendanceHandler.Correct)
					r.Group(func(r chi.Router) {
						r.Use(RequirePermission(permissions.AttendanceApprove))
						r.Get("/pending", attendanceHandler.Pending)
						r.Post("/records/{record_id}/approve", attendanceHandler.Approve)
					})
					r.Group(func(r chi.Router) {
						r.Use(RequirePermission(permissions.AttendanceFinalize))
						r.Post("/finalize", attendanceHandler.Finalize)
						r.Post("/recompute", attendanceHandler.Recompute)
					})
				})

				r.Route("/recognition", func(r chi.Router) {
					r.Group(func(r chi.Router) {
						r.Use(RequirePermission(permissions.RecognitionRun))
						r.Post("/evaluate", recognitionHandler.Evaluate)
						r.Post("/attend", recognitionHandler.Attend)
						r.Post("/image", recognitionHandler.EvaluateImage)
					})
					r.With(RequirePermission(permissions.RecognitionView)).Get("/outcomes", recognitionHandler.Outcomes)
				})

				r.Route("/leaves", func(r chi.Router) {
					r.Post("/", leaveHandler.Create)
					r.Get("/", leaveHandler.List)
					r.Route("/{leave_id}", func(r chi.Router) {
						r.Get("/", leaveHandler.Get)
						r.Post("/cancel", leaveHandler.Cancel)
						r.With(RequirePermission(permissions.LeaveApprove)).Post("/approve", leaveHandler.Approve)
						r.With(RequirePermission(permissions.LeaveApprove)).Post("/reject", leaveHandler.Reject)
					})
				})

				r.Route("/policies", func(r chi.Router) {
					r.Get("/", policyHandler.History)
					r.Get("/active", policyHandler.Active)
					r.With(RequirePermission(permissions.PolicyManage)).Post("/", policyHandler.Activate)
				})
			})
		})
	})

	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
