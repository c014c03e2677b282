// Package mockupstream is a fake university backend for demos and tests.
//
// It answers in the backend's legacy field names (discipline, timeStart, auditory, ...)
// so everything it returns goes through schedule normalization.
package mockupstream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/campusapp/schedule-cache/schedule"
)

type lesson struct {
	Discipline string `json:"discipline"`
	Type       string `json:"type"`
	TimeStart  string `json:"timeStart"`
	TimeEnd    string `json:"timeEnd"`
	Auditory   string `json:"auditory"`
	Teacher    string `json:"teacher"`
	Group      string `json:"group"`
	SubGroup   int    `json:"subGroup,omitempty"`
}

var timetable = map[time.Weekday][]lesson{
	time.Monday: {
		{"Математический анализ", "Лекция", "08:30", "10:00", "301", "Иванов И.И.", "ИВТ-21", 0},
		{"Программирование", "Лабораторная работа", "10:10", "11:40", "214", "Петрова А.С.", "ИВТ-21", 1},
	},
	time.Tuesday: {
		{"Физика", "Практика", "10:10", "11:40", "118", "Сидоров П.П.", "ИВТ-21", 0},
	},
	time.Wednesday: {
		{"Базы данных", "Лекция", "08:30", "10:00", "301", "Кузнецова Е.В.", "ИВТ-21", 0},
		{"Базы данных", "Лабораторная работа", "11:50", "13:20", "214", "Кузнецова Е.В.", "ИВТ-21", 2},
	},
	time.Thursday: {
		{"Английский язык", "Практика", "13:30", "15:00", "405", "Smith J.", "ИВТ-21", 0},
	},
	time.Friday: {
		{"Операционные системы", "Семинар", "08:30", "10:00", "220", "Орлов Д.А.", "ИВТ-21", 0},
	},
}

var courses = map[string]schedule.CourseInfo{
	"ИВТ-21": {Group: "ИВТ-21", Course: 3, Faculty: "Факультет информационных технологий", Speciality: "Информатика и вычислительная техника", Form: "full-time"},
}

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	mu            sync.Mutex
	tokens        map[string]bool // accepted bearer tokens; empty = accept any
	failing       map[schedule.DateKey]int
	scheduleCalls int
	registrations map[string]string // identity -> device id
	registerCalls int
	latency       time.Duration

	logger *slog.Logger
}

// New returns a Server that accepts any bearer token.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		tokens:        make(map[string]bool),
		failing:       make(map[schedule.DateKey]int),
		registrations: make(map[string]string),
		logger:        logger,
	}
}

// Router returns the HTTP routes of the backend.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests, s.authenticate)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/schedule", s.handleSchedule).Methods(http.MethodGet)
	r.HandleFunc("/schedule/course", s.handleCourse).Methods(http.MethodGet)
	r.HandleFunc("/device/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/device/test-notification", s.handleTestNotification).Methods(http.MethodPost)
	return r
}

// AcceptTokens restricts the accepted bearer tokens. No arguments accepts any token.
func (s *Server) AcceptTokens(tokens ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]bool, len(tokens))
	for _, t := range tokens {
		s.tokens[t] = true
	}
}

// FailDate makes the next n schedule requests for date answer 503.
func (s *Server) FailDate(date schedule.DateKey, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[date] = n
}

// SetLatency delays every device registration, which makes concurrent callers overlap.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// ScheduleCalls is the number of schedule requests served so far.
func (s *Server) ScheduleCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleCalls
}

// RegisterCalls is the number of device registration requests received so far.
func (s *Server) RegisterCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerCalls
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("upstream request", "method", r.Method, "path", r.URL.Path, "request_id", r.Header.Get("X-Request-ID"))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing credential", http.StatusUnauthorized)
			return
		}
		s.mu.Lock()
		rejected := len(s.tokens) > 0 && !s.tokens[token]
		s.mu.Unlock()
		if rejected {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	date, err := schedule.ParseDateKey(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.scheduleCalls++
	fail := s.failing[date] > 0
	if fail {
		s.failing[date]--
	}
	s.mu.Unlock()

	if fail {
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	day, _ := date.Time(time.UTC)
	lessons := timetable[day.Weekday()]
	if lessons == nil {
		lessons = []lesson{}
	}
	writeJSON(w, map[string]any{"date": date, "lessons": lessons})
}

func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	info, ok := courses[r.URL.Query().Get("group")]
	if !ok {
		http.Error(w, "unknown group", http.StatusNotFound)
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identity string `json:"identity"`
		Token    string `json:"deviceToken"`
		Platform string `json:"platform"`
		Name     string `json:"deviceName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" || req.Token == "" {
		http.Error(w, "identity and deviceToken are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.registerCalls++
	latency := s.latency
	id, ok := s.registrations[req.Identity]
	if !ok {
		id = uuid.NewString()
		s.registrations[req.Identity] = id
	}
	s.mu.Unlock()

	time.Sleep(latency)
	writeJSON(w, map[string]any{"deviceId": id, "registeredAt": time.Now().UTC()})
}

func (s *Server) handleTestNotification(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"delivered": true, "messageId": fmt.Sprintf("msg-%s", uuid.NewString()[:8])})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
