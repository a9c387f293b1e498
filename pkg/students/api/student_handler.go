package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/student-records/pkg/students"
)

// Multipart form field names
const (
	FieldFirstName    = "fName"
	FieldLastName     = "lName"
	FieldContact      = "contact"
	FieldAddress      = "address"
	FieldProfileImage = "profileImage"
)

// Parts above this size are spooled to temporary files while parsing.
const multipartMemory = 10 << 20

// StudentResponse is the response body for a student
type StudentResponse struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"fName"`
	LastName  string  `json:"lName"`
	Contact   string  `json:"contact"`
	Address   string  `json:"address"`
	Picture   *string `json:"picture"`
}

// NewStudentResponse converts a student into its wire form. A student
// without a picture is rendered with "picture": null.
func NewStudentResponse(s *students.Student) StudentResponse {
	resp := StudentResponse{
		ID:        s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Contact:   s.Contact,
		Address:   s.Address,
	}
	if s.HasPicture() {
		picture := s.Picture
		resp.Picture = &picture
	}
	return resp
}

// StudentHandler handles HTTP requests for students
type StudentHandler struct {
	service students.Service
	logger  *slog.Logger
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(service students.Service, logger *slog.Logger) *StudentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentHandler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the routes for students
func (h *StudentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListStudents)
	r.Post("/", h.CreateStudent)
	r.Get("/{id}", h.GetStudent)
	r.Put("/{id}", h.UpdateStudent)
	r.Delete("/{id}", h.DeleteStudent)

	return r
}

// ListStudents returns every student
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListStudents(r.Context())
	if err != nil {
		h.logger.Error("Failed to list students", "error", err)
		writeError(w, r, err)
		return
	}

	resp := make([]StudentResponse, 0, len(list))
	for _, s := range list {
		resp = append(resp, NewStudentResponse(s))
	}
	render.JSON(w, r, resp)
}

// GetStudent returns a single student
func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(w, r)
	if !ok {
		return
	}

	student, err := h.service.GetStudent(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get student", "student_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, NewStudentResponse(student))
}

// CreateStudent creates a student from a multipart form with an optional
// profile image.
func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	fields, image, err := parseStudentForm(r)
	if err != nil {
		h.logger.Warn("Rejected student form", "error", err)
		writeError(w, r, err)
		return
	}

	student, err := h.service.CreateStudent(r.Context(), students.CreateStudentRequest{
		Fields: fields,
		Image:  image,
	})
	if err != nil {
		h.logger.Error("Failed to create student", "contact", fields.Contact, "error", err)
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, NewStudentResponse(student))
}

// UpdateStudent replaces the fields of a student and, when a profile image
// is sent, its picture.
func (h *StudentHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(w, r)
	if !ok {
		return
	}

	fields, image, err := parseStudentForm(r)
	if err != nil {
		h.logger.Warn("Rejected student form", "student_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	student, err := h.service.UpdateStudent(r.Context(), students.UpdateStudentRequest{
		ID:     id,
		Fields: fields,
		Image:  image,
	})
	if err != nil {
		h.logger.Error("Failed to update student", "student_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, NewStudentResponse(student))
}

// DeleteStudent removes a student and its picture
func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteStudent(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete student", "student_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func studentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeErrorStatus(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid student id: %s", raw))
		return 0, false
	}
	return id, true
}

// parseStudentForm reads the four text fields and the optional image. Plain
// url-encoded bodies are accepted too, without an image.
func parseStudentForm(r *http.Request) (students.StudentFields, *students.Image, error) {
	var fields students.StudentFields

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return fields, nil, &formError{err: err}
		}
		if err := r.ParseForm(); err != nil {
			return fields, nil, &formError{err: err}
		}
	}

	fields = students.StudentFields{
		FirstName: r.FormValue(FieldFirstName),
		LastName:  r.FormValue(FieldLastName),
		Contact:   r.FormValue(FieldContact),
		Address:   r.FormValue(FieldAddress),
	}
	if verr := validateFields(fields); !verr.Empty() {
		return fields, nil, verr
	}

	image, err := readImage(r)
	if err != nil {
		return fields, nil, &formError{err: err}
	}
	return fields, image, nil
}

func validateFields(f students.StudentFields) *students.ValidationError {
	verr := &students.ValidationError{}
	if strings.TrimSpace(f.FirstName) == "" {
		verr.Add(FieldFirstName, "First name is required")
	}
	if strings.TrimSpace(f.LastName) == "" {
		verr.Add(FieldLastName, "Last name is required")
	}
	if strings.TrimSpace(f.Contact) == "" {
		verr.Add(FieldContact, "Contact number is required")
	}
	if strings.TrimSpace(f.Address) == "" {
		verr.Add(FieldAddress, "Address is required")
	}
	return verr
}

func readImage(r *http.Request) (*students.Image, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	file, header, err := r.FormFile(FieldProfileImage)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", FieldProfileImage, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", FieldProfileImage, err)
	}

	return &students.Image{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		FileName:    header.Filename,
	}, nil
}
