package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reset980reset980/write0917/internal/editcode"
	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/service"
	"github.com/reset980reset980/write0917/internal/validation"
	"github.com/reset980reset980/write0917/internal/wizard"
)

func (s *Session) DismissNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = nil
}

func (s *Session) SelectRole(role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if _, ok := s.view.(*LandingView); !ok {
		return ErrWrongView
	}

	switch role {
	case RoleStudent:
		s.setView(&StudentInfoView{})
	case RoleTeacher:
		s.setView(&TeacherLoginView{})
	default:
		return fmt.Errorf("%w: unknown role %q", ErrBadAction, role)
	}
	if !s.teacher {
		s.role = role
	}
	return nil
}

func (s *Session) SubmitStudentInfo(ctx context.Context, student models.Student) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	v, ok := s.view.(*StudentInfoView)
	if !ok {
		s.mu.Unlock()
		return ErrWrongView
	}

	student.Grade = strings.TrimSpace(student.Grade)
	student.ClassNumber = strings.TrimSpace(student.ClassNumber)
	student.StudentID = strings.TrimSpace(student.StudentID)
	student.Name = strings.TrimSpace(student.Name)
	if student.Grade == "" {
		student.Grade = models.DefaultGrade
	}
	if !student.Complete() {
		v.Error = msgStudentIncomplete
		s.mu.Unlock()
		return nil
	}
	if err := validation.Struct(&student); err != nil {
		v.Error = msgStudentInvalid
		s.mu.Unlock()
		return nil
	}

	if s.student == nil || s.student.Key() != student.Key() {
		s.resetLiked()
	}
	s.student = &student
	if !s.teacher {
		s.role = RoleStudent
	}
	s.logger.Info().Str("viewer", student.Key()).Msg("Student identified")

	if v.ResumeWriting {
		s.setView(&WritingView{Wizard: wizard.New()})
		s.mu.Unlock()
		return nil
	}
	gen := s.showGallery()
	s.mu.Unlock()

	s.loadGallery(ctx, gen)
	return nil
}

func (s *Session) TeacherLogin(ctx context.Context, password string) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	v, ok := s.view.(*TeacherLoginView)
	if !ok {
		s.mu.Unlock()
		return ErrWrongView
	}
	if password == "" {
		v.Error = msgPasswordEmpty
		s.mu.Unlock()
		return nil
	}

	_, err := s.deps.Auth.LoginTeacher(password)
	switch {
	case errors.Is(err, service.ErrInvalidPassword):
		v.Error = msgPasswordWrong
		s.mu.Unlock()
		return nil
	case errors.Is(err, service.ErrTeacherAuthOff):
		v.Error = msgTeacherAuthOff
		s.mu.Unlock()
		return nil
	case err != nil:
		s.logger.Error().Err(err).Msg("Teacher login failed")
		s.setNotice(NoticeError, msgLoginFailed)
		s.mu.Unlock()
		return nil
	}

	s.teacher = true
	s.role = RoleTeacher
	s.resetLiked()
	s.logger.Info().Msg("Teacher logged in")
	gen := s.showGallery()
	s.mu.Unlock()

	s.loadGallery(ctx, gen)
	return nil
}

// Reset returns to the landing screen and forgets the identity.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.role = RoleNone
	s.teacher = false
	s.student = nil
	s.resetLiked()
	s.setView(&LandingView{})
	return nil
}

func (s *Session) OpenGallery(ctx context.Context) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	if g, ok := s.view.(*GalleryView); ok && g.Loading {
		s.mu.Unlock()
		return ErrBusy
	}
	gen := s.showGallery()
	s.mu.Unlock()

	s.loadGallery(ctx, gen)
	return nil
}

// StartWriting opens a fresh wizard, asking for the student identity first
// when the session does not have one.
func (s *Session) StartWriting() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if s.student == nil {
		s.setView(&StudentInfoView{ResumeWriting: true})
		return nil
	}
	s.setView(&WritingView{Wizard: wizard.New()})
	return nil
}

// editWizard applies fn to the wizard of the current screen. Validation
// failures are shown inline and are not returned.
func (s *Session) editWizard(fn func(w *wizard.Wizard) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	host, ok := s.view.(wizardHost)
	if !ok {
		return ErrWrongView
	}

	err := fn(host.wiz())
	var verr *wizard.ValidationError
	switch {
	case err == nil:
		host.setError(nil)
		return nil
	case errors.As(err, &verr):
		host.setError(verr)
		return nil
	default:
		return wizardErr(err)
	}
}

func wizardErr(err error) error {
	switch {
	case errors.Is(err, wizard.ErrBusy):
		return ErrBusy
	case errors.Is(err, wizard.ErrWrongStep), errors.Is(err, wizard.ErrAlreadyOnLast):
		return fmt.Errorf("%w: %v", ErrWrongView, err)
	default:
		return fmt.Errorf("%w: %v", ErrBadAction, err)
	}
}

func (s *Session) SetTopic(topic string) error {
	return s.editWizard(func(w *wizard.Wizard) error {
		w.SetTopic(topic)
		return nil
	})
}

func (s *Session) SetRefinedTopic(topic string) error {
	return s.editWizard(func(w *wizard.Wizard) error {
		w.SetRefinedTopic(topic)
		return nil
	})
}

func (s *Session) ChooseSuggestion(i int) error {
	return s.editWizard(func(w *wizard.Wizard) error {
		return w.ChooseSuggestion(i)
	})
}

func (s *Session) SetIntroduction(text string) error {
	return s.editWizard(func(w *wizard.Wizard) error {
		w.SetIntroduction(text)
		return nil
	})
}

func (s *Session) SetConclusion(text string) error {
	return s.editWizard(func(w *wizard.Wizard) error {
		w.SetConclusion(text)
		return nil
	})
}

func (s *Session) AddBodyPart() error {
	return s.editWizard(func(w *wizard.Wizard) error {
		w.AddBodyPart()
		return nil
	})
}

func (s *Session) UpdateBodyPart(i int, field wizard.Field, value string) error {
	return s.editWizard(func(w *wizard.Wizard) error {
		return w.UpdateBodyPart(i, field, value)
	})
}

func (s *Session) RemoveBodyPart(i int) error {
	return s.editWizard(func(w *wizard.Wizard) error {
		return w.RemoveBodyPart(i)
	})
}

func (s *Session) SetDraft(text string) error {
	return s.editWizard(func(w *wizard.Wizard) error {
		w.SetDraft(text)
		return nil
	})
}

func (s *Session) NextStep() error {
	return s.editWizard(func(w *wizard.Wizard) error {
		return w.Next()
	})
}

func (s *Session) PrevStep() error {
	return s.editWizard(func(w *wizard.Wizard) error {
		w.Back()
		return nil
	})
}

// RefineTopic asks the AI helper for a sharper topic. The wizard keeps its
// refining flag until the answer arrives.
func (s *Session) RefineTopic(ctx context.Context) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	host, ok := s.view.(wizardHost)
	if !ok {
		s.mu.Unlock()
		return ErrWrongView
	}
	w := host.wiz()
	if err := w.BeginRefine(); err != nil {
		var verr *wizard.ValidationError
		if errors.As(err, &verr) {
			host.setError(verr)
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		return wizardErr(err)
	}
	host.setError(nil)
	topic := w.Topic()
	key := s.viewerKey()
	gen := s.generation
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	defer cancel()
	result := s.deps.Topics.RefineTopic(cctx, key, topic)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) || w.Step() != wizard.StepTopic {
		w.AbortRefine()
		return nil
	}
	_ = w.FinishRefine(result)
	if result.Degraded {
		s.setNotice(NoticeError, result.RefinedTopic)
	}
	return nil
}

// SubmitEssay saves the wizard content: a new essay from the writing
// screen, an update from the editing screen.
func (s *Session) SubmitEssay(ctx context.Context) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}

	switch v := s.view.(type) {
	case *WritingView:
		return s.submitCreate(ctx, v)
	case *EditingView:
		return s.submitUpdate(ctx, v)
	default:
		s.mu.Unlock()
		return ErrWrongView
	}
}

// submitCreate is entered with s.mu held.
func (s *Session) submitCreate(ctx context.Context, v *WritingView) error {
	if v.Saving {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.student == nil {
		s.mu.Unlock()
		return ErrWrongView
	}
	data, err := v.Wizard.Submit()
	if err != nil {
		var verr *wizard.ValidationError
		if errors.As(err, &verr) {
			v.Error = verr
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		return wizardErr(err)
	}
	v.Error = nil
	v.Saving = true
	req := &models.CreateEssayRequest{EssayData: data, Student: *s.student}
	gen := s.generation
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	defer cancel()
	essay, err := s.deps.Essays.CreateEssay(cctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	v.Saving = false
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save essay")
		s.setNotice(NoticeError, msgSaveFailed)
		return nil
	}
	s.logger.Info().Str("essay_id", essay.ID).Msg("Essay submitted")
	if !s.current(gen) {
		s.setNotice(NoticeInfo, msgSavedLate+essay.EditCode)
		return nil
	}
	s.setView(&SubmittedView{EditCode: essay.EditCode})
	return nil
}

// submitUpdate is entered with s.mu held.
func (s *Session) submitUpdate(ctx context.Context, v *EditingView) error {
	if v.Saving {
		s.mu.Unlock()
		return ErrBusy
	}
	data, err := v.Wizard.Submit()
	if err != nil {
		var verr *wizard.ValidationError
		if errors.As(err, &verr) {
			v.Error = verr
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		return wizardErr(err)
	}
	v.Error = nil
	v.Saving = true
	code := v.Original.EditCode
	gen := s.generation
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	_, err = s.deps.Essays.UpdateEssay(cctx, code, data)
	cancel()

	s.mu.Lock()
	v.Saving = false
	if err != nil {
		s.logger.Error().Err(err).Str("essay_id", v.Original.ID).Msg("Failed to update essay")
		s.setNotice(NoticeError, msgUpdateFailed)
		s.mu.Unlock()
		return nil
	}
	s.setNotice(NoticeInfo, msgUpdated)
	if !s.current(gen) {
		s.mu.Unlock()
		return nil
	}
	next := s.showGallery()
	s.mu.Unlock()

	s.loadGallery(ctx, next)
	return nil
}

func (s *Session) OpenEditEntry() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.setView(&EditEntryView{})
	return nil
}

// FindByCode looks up the essay owning code. Malformed codes are rejected
// inline without a remote call.
func (s *Session) FindByCode(ctx context.Context, code string) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	v, ok := s.view.(*EditEntryView)
	if !ok {
		s.mu.Unlock()
		return ErrWrongView
	}
	if v.Finding {
		s.mu.Unlock()
		return ErrBusy
	}

	v.Code = code
	normalized := editcode.Normalize(code)
	if err := editcode.Validate(normalized); err != nil {
		if errors.Is(err, editcode.ErrEmpty) {
			v.Error = msgCodeEmpty
		} else {
			v.Error = msgCodeInvalid
		}
		s.mu.Unlock()
		return nil
	}
	v.Error = ""
	v.Finding = true
	gen := s.generation
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	defer cancel()
	essay, err := s.deps.Essays.FindEssayByCode(cctx, normalized)

	s.mu.Lock()
	defer s.mu.Unlock()
	v.Finding = false
	switch {
	case errors.Is(err, service.ErrEssayNotFound):
		v.Error = msgCodeNotFound
		return nil
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to find essay by code")
		s.setNotice(NoticeError, msgFindFailed)
		return nil
	}
	if !s.current(gen) {
		return nil
	}
	s.setView(&FoundEssayView{Essay: essay.Clone()})
	return nil
}

func (s *Session) EditFound() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	v, ok := s.view.(*FoundEssayView)
	if !ok {
		return ErrWrongView
	}
	if v.Deleting {
		return ErrBusy
	}
	s.setView(&EditingView{Original: v.Essay, Wizard: wizard.NewForEdit(v.Essay)})
	return nil
}

// RequestDelete marks an essay for deletion. Nothing is removed until
// ConfirmDelete.
func (s *Session) RequestDelete(essayID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}

	switch v := s.view.(type) {
	case *GalleryView:
		if !s.teacher {
			return ErrForbidden
		}
		if v.Deleting {
			return ErrBusy
		}
		for _, e := range v.Essays {
			if e.ID == essayID {
				v.PendingDelete = essayID
				return nil
			}
		}
		return fmt.Errorf("%w: essay %q is not listed", ErrBadAction, essayID)
	case *DetailView:
		if !s.teacher {
			return ErrForbidden
		}
		v.ConfirmDelete = true
	case *FoundEssayView:
		v.ConfirmDelete = true
	default:
		return ErrWrongView
	}
	return nil
}

func (s *Session) CancelDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}

	switch v := s.view.(type) {
	case *GalleryView:
		if v.Deleting {
			return ErrBusy
		}
		v.PendingDelete = ""
	case *DetailView:
		if v.Deleting {
			return ErrBusy
		}
		v.ConfirmDelete = false
	case *FoundEssayView:
		if v.Deleting {
			return ErrBusy
		}
		v.ConfirmDelete = false
	default:
		return ErrWrongView
	}
	return nil
}

func (s *Session) ConfirmDelete(ctx context.Context) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}

	switch v := s.view.(type) {
	case *GalleryView:
		return s.deleteFromGallery(ctx, v)
	case *DetailView:
		return s.deleteFromDetail(ctx, v)
	case *FoundEssayView:
		return s.deleteFound(ctx, v)
	default:
		s.mu.Unlock()
		return ErrWrongView
	}
}

// deleteFromGallery is entered with s.mu held.
func (s *Session) deleteFromGallery(ctx context.Context, v *GalleryView) error {
	if !s.teacher {
		s.mu.Unlock()
		return ErrForbidden
	}
	if v.Deleting {
		s.mu.Unlock()
		return ErrBusy
	}
	if v.PendingDelete == "" {
		s.mu.Unlock()
		return ErrNoPendingDelete
	}
	id := v.PendingDelete
	v.Deleting = true
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	defer cancel()
	err := s.deps.Essays.DeleteEssay(cctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	v.Deleting = false
	v.PendingDelete = ""
	if err != nil {
		s.logger.Error().Err(err).Str("essay_id", id).Msg("Failed to delete essay")
		s.setNotice(NoticeError, msgDeleteFailed)
		return nil
	}
	kept := make([]models.Essay, 0, len(v.Essays))
	for _, e := range v.Essays {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	v.Essays = kept
	return nil
}

// deleteFromDetail is entered with s.mu held.
func (s *Session) deleteFromDetail(ctx context.Context, v *DetailView) error {
	if !s.teacher {
		s.mu.Unlock()
		return ErrForbidden
	}
	if v.Deleting {
		s.mu.Unlock()
		return ErrBusy
	}
	if !v.ConfirmDelete {
		s.mu.Unlock()
		return ErrNoPendingDelete
	}
	id := v.Essay.ID
	v.Deleting = true
	gen := s.generation
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	err := s.deps.Essays.DeleteEssay(cctx, id)
	cancel()

	s.mu.Lock()
	v.Deleting = false
	v.ConfirmDelete = false
	if err != nil {
		s.logger.Error().Err(err).Str("essay_id", id).Msg("Failed to delete essay")
		s.setNotice(NoticeError, msgDeleteFailed)
		s.mu.Unlock()
		return nil
	}
	if !s.current(gen) {
		s.mu.Unlock()
		return nil
	}
	next := s.showGallery()
	s.mu.Unlock()

	s.loadGallery(ctx, next)
	return nil
}

// deleteFound is entered with s.mu held. Holding the edit code is enough.
func (s *Session) deleteFound(ctx context.Context, v *FoundEssayView) error {
	if v.Deleting {
		s.mu.Unlock()
		return ErrBusy
	}
	if !v.ConfirmDelete {
		s.mu.Unlock()
		return ErrNoPendingDelete
	}
	code := v.Essay.EditCode
	v.Deleting = true
	gen := s.generation
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	err := s.deps.Essays.DeleteEssayByCode(cctx, code)
	cancel()

	s.mu.Lock()
	v.Deleting = false
	v.ConfirmDelete = false
	if err != nil {
		s.logger.Error().Err(err).Str("essay_id", v.Essay.ID).Msg("Failed to delete essay by code")
		s.setNotice(NoticeError, msgDeleteFailed)
		s.mu.Unlock()
		return nil
	}
	s.setNotice(NoticeInfo, msgDeleted)
	if !s.current(gen) {
		s.mu.Unlock()
		return nil
	}
	next := s.showGallery()
	s.mu.Unlock()

	s.loadGallery(ctx, next)
	return nil
}

// SelectEssay opens an essay from the gallery and fetches its comments.
func (s *Session) SelectEssay(ctx context.Context, essayID string) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	g, ok := s.view.(*GalleryView)
	if !ok {
		s.mu.Unlock()
		return ErrWrongView
	}
	var d *DetailView
	for _, e := range g.Essays {
		if e.ID == essayID {
			d = &DetailView{Essay: e.Clone(), Loading: true}
			break
		}
	}
	if d == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: essay %q is not listed", ErrBadAction, essayID)
	}
	s.setView(d)
	gen := s.generation
	s.mu.Unlock()

	s.ensureLiked(ctx)

	cctx, cancel := s.callContext(ctx)
	defer cancel()
	comments, err := s.deps.Comments.ListComments(cctx, essayID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return nil
	}
	d.Loading = false
	if err != nil {
		s.logger.Error().Err(err).Str("essay_id", essayID).Msg("Failed to load comments")
		s.setNotice(NoticeError, msgCommentsFailed)
		d.Comments = []models.Comment{}
		return nil
	}
	d.Comments = comments
	return nil
}

func (s *Session) CloseDetail(ctx context.Context) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.view.(*DetailView); !ok {
		s.mu.Unlock()
		return ErrWrongView
	}
	gen := s.showGallery()
	s.mu.Unlock()

	s.loadGallery(ctx, gen)
	return nil
}

// Like adds one like per viewer. The count is raised locally first and
// rolled back when the server refuses.
func (s *Session) Like(ctx context.Context) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	d, ok := s.view.(*DetailView)
	if !ok {
		s.mu.Unlock()
		return ErrWrongView
	}
	if d.Liking {
		s.mu.Unlock()
		return ErrBusy
	}
	id := d.Essay.ID
	if _, liked := s.liked[id]; liked {
		s.mu.Unlock()
		return nil
	}
	d.Liking = true
	d.Essay.Likes++
	s.liked[id] = struct{}{}
	key := s.viewerKey()
	gen := s.generation
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	defer cancel()
	updated, err := s.deps.Essays.IncrementLikes(cctx, id)
	if err == nil {
		if perr := s.deps.Liked.Add(cctx, key, id); perr != nil {
			s.logger.Warn().Err(perr).Str("essay_id", id).Msg("Failed to remember liked essay")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d.Liking = false
	if err != nil {
		s.logger.Error().Err(err).Str("essay_id", id).Msg("Failed to like essay")
		d.Essay.Likes--
		if s.viewerKey() == key {
			delete(s.liked, id)
		}
		s.setNotice(NoticeError, msgLikeFailed)
		return nil
	}
	if s.current(gen) {
		d.Essay = updated.Clone()
	}
	return nil
}

// AddComment posts a comment under the viewer's name. It is appended only
// once the server has stored it.
func (s *Session) AddComment(ctx context.Context, content string) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	d, ok := s.view.(*DetailView)
	if !ok {
		s.mu.Unlock()
		return ErrWrongView
	}
	if d.Commenting {
		s.mu.Unlock()
		return ErrBusy
	}

	content = strings.TrimSpace(content)
	if content == "" {
		d.CommentError = msgCommentEmpty
		s.mu.Unlock()
		return nil
	}
	req := &models.CreateCommentRequest{EssayID: d.Essay.ID, Content: content}
	switch {
	case s.teacher:
		req.AuthorName = TeacherName
	case s.student != nil:
		author := *s.student
		req.AuthorName = author.Name
		req.Author = &author
	default:
		d.CommentError = msgCommentNoAuthor
		s.mu.Unlock()
		return nil
	}
	d.CommentError = ""
	d.Commenting = true
	gen := s.generation
	s.mu.Unlock()

	cctx, cancel := s.callContext(ctx)
	defer cancel()
	comment, err := s.deps.Comments.CreateComment(cctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	d.Commenting = false
	if err != nil {
		s.logger.Error().Err(err).Str("essay_id", req.EssayID).Msg("Failed to add comment")
		s.setNotice(NoticeError, msgCommentFailed)
		return nil
	}
	if s.current(gen) {
		d.Comments = append(d.Comments, *comment)
	}
	return nil
}
