package session

import (
	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/wizard"
)

type ViewKind string

const (
	ViewSetupRequired ViewKind = "setup-required"
	ViewLanding       ViewKind = "landing"
	ViewStudentInfo   ViewKind = "student-info"
	ViewTeacherLogin  ViewKind = "teacher-login"
	ViewGallery       ViewKind = "gallery"
	ViewWriting       ViewKind = "writing"
	ViewSubmitted     ViewKind = "submitted"
	ViewEditEntry     ViewKind = "edit-entry"
	ViewFoundEssay    ViewKind = "found-essay"
	ViewEditing       ViewKind = "editing"
	ViewDetail        ViewKind = "detail"
)

// View is one screen of the application. The set of implementations is
// closed; each carries only the data its screen needs, including the busy
// flags of the operations it can start.
type View interface {
	Kind() ViewKind
	snapshot(viewer viewerInfo) interface{}
}

// viewerInfo is what a view needs to know about who is looking at it.
type viewerInfo struct {
	teacher bool
}

func (v viewerInfo) essay(e models.Essay) models.Essay {
	if v.teacher {
		return e
	}
	return e.Public()
}

type SetupRequiredView struct {
	Message string
}

type LandingView struct{}

type StudentInfoView struct {
	Error         string
	ResumeWriting bool
}

type TeacherLoginView struct {
	Error string
}

type GalleryView struct {
	Essays        []models.Essay
	Loading       bool
	LoadError     string
	PendingDelete string
	Deleting      bool
}

type WritingView struct {
	Wizard *wizard.Wizard
	Error  *wizard.ValidationError
	Saving bool
}

type SubmittedView struct {
	EditCode string
}

type EditEntryView struct {
	Code    string
	Error   string
	Finding bool
}

type FoundEssayView struct {
	Essay         models.Essay
	ConfirmDelete bool
	Deleting      bool
}

type EditingView struct {
	Original models.Essay
	Wizard   *wizard.Wizard
	Error    *wizard.ValidationError
	Saving   bool
}

type DetailView struct {
	Essay         models.Essay
	Comments      []models.Comment
	Loading       bool
	CommentError  string
	ConfirmDelete bool
	Liking        bool
	Commenting    bool
	Deleting      bool
}

func (*SetupRequiredView) Kind() ViewKind { return ViewSetupRequired }
func (*LandingView) Kind() ViewKind { return ViewLanding }
func (*StudentInfoView) Kind() ViewKind { return ViewStudentInfo }
func (*TeacherLoginView) Kind() ViewKind { return ViewTeacherLogin }
func (*GalleryView) Kind() ViewKind { return ViewGallery }
func (*WritingView) Kind() ViewKind { return ViewWriting }
func (*SubmittedView) Kind() ViewKind { return ViewSubmitted }
func (*EditEntryView) Kind() ViewKind { return ViewEditEntry }
func (*FoundEssayView) Kind() ViewKind { return ViewFoundEssay }
func (*EditingView) Kind() ViewKind { return ViewEditing }
func (*DetailView) Kind() ViewKind { return ViewDetail }

// wizardHost is a view that owns a wizard.
type wizardHost interface {
	View
	wiz() *wizard.Wizard
	setError(err *wizard.ValidationError)
}

func (v *WritingView) wiz() *wizard.Wizard { return v.Wizard }
func (v *EditingView) wiz() *wizard.Wizard { return v.Wizard }

func (v *WritingView) setError(err *wizard.ValidationError) { v.Error = err }
func (v *EditingView) setError(err *wizard.ValidationError) { v.Error = err }

type wizardError struct {
	Field   string `json:"field"`
	Index   int    `json:"index"`
	Message string `json:"message"`
}

func toWizardError(e *wizard.ValidationError) *wizardError {
	if e == nil {
		return nil
	}
	return &wizardError{Field: e.Field, Index: e.Index, Message: e.Message}
}

func (v *SetupRequiredView) snapshot(viewerInfo) interface{} {
	return struct {
		Message string `json:"message"`
	}{v.Message}
}

func (v *LandingView) snapshot(viewerInfo) interface{} {
	return struct{}{}
}

func (v *StudentInfoView) snapshot(viewerInfo) interface{} {
	return struct {
		Error         string `json:"error,omitempty"`
		ResumeWriting bool   `json:"resume_writing"`
		DefaultGrade  string `json:"default_grade"`
	}{v.Error, v.ResumeWriting, models.DefaultGrade}
}

func (v *TeacherLoginView) snapshot(viewerInfo) interface{} {
	return struct {
		Error string `json:"error,omitempty"`
	}{v.Error}
}

func (v *GalleryView) snapshot(viewer viewerInfo) interface{} {
	essays := make([]models.Essay, len(v.Essays))
	for i, e := range v.Essays {
		essays[i] = viewer.essay(e)
	}
	return struct {
		Essays        []models.Essay `json:"essays"`
		Loading       bool           `json:"loading"`
		LoadError     string         `json:"load_error,omitempty"`
		PendingDelete string         `json:"pending_delete,omitempty"`
		Deleting      bool           `json:"deleting"`
	}{essays, v.Loading, v.LoadError, v.PendingDelete, v.Deleting}
}

func (v *WritingView) snapshot(viewerInfo) interface{} {
	return struct {
		Wizard wizard.Snapshot `json:"wizard"`
		Error  *wizardError    `json:"error,omitempty"`
		Saving bool            `json:"saving"`
	}{v.Wizard.Snapshot(), toWizardError(v.Error), v.Saving}
}

func (v *SubmittedView) snapshot(viewerInfo) interface{} {
	return struct {
		EditCode string `json:"edit_code"`
	}{v.EditCode}
}

func (v *EditEntryView) snapshot(viewerInfo) interface{} {
	return struct {
		Code    string `json:"code"`
		Error   string `json:"error,omitempty"`
		Finding bool   `json:"finding"`
	}{v.Code, v.Error, v.Finding}
}

// The code holder already knows the code, so it is not hidden here.
func (v *FoundEssayView) snapshot(viewerInfo) interface{} {
	return struct {
		Essay         models.Essay `json:"essay"`
		ConfirmDelete bool         `json:"confirm_delete"`
		Deleting      bool         `json:"deleting"`
	}{v.Essay, v.ConfirmDelete, v.Deleting}
}

func (v *EditingView) snapshot(viewerInfo) interface{} {
	return struct {
		Original models.Essay    `json:"original"`
		Wizard   wizard.Snapshot `json:"wizard"`
		Error    *wizardError    `json:"error,omitempty"`
		Saving   bool            `json:"saving"`
	}{v.Original, v.Wizard.Snapshot(), toWizardError(v.Error), v.Saving}
}

func (v *DetailView) snapshot(viewer viewerInfo) interface{} {
	comments := v.Comments
	if comments == nil {
		comments = []models.Comment{}
	}
	return struct {
		Essay         models.Essay     `json:"essay"`
		Comments      []models.Comment `json:"comments"`
		Loading       bool             `json:"loading"`
		CommentError  string           `json:"comment_error,omitempty"`
		ConfirmDelete bool             `json:"confirm_delete"`
		Liking        bool             `json:"liking"`
		Commenting    bool             `json:"commenting"`
		Deleting      bool             `json:"deleting"`
	}{viewer.essay(v.Essay), comments, v.Loading, v.CommentError, v.ConfirmDelete, v.Liking, v.Commenting, v.Deleting}
}
