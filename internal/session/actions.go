package session

import (
	"context"
	"fmt"

	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/wizard"
)

type ActionType string

const (
	ActionSelectRole        ActionType = "select_role"
	ActionSubmitStudentInfo ActionType = "submit_student_info"
	ActionTeacherLogin      ActionType = "teacher_login"
	ActionReset             ActionType = "reset"
	ActionOpenGallery       ActionType = "open_gallery"
	ActionStartWriting      ActionType = "start_writing"
	ActionSetTopic          ActionType = "set_topic"
	ActionSetRefinedTopic   ActionType = "set_refined_topic"
	ActionChooseSuggestion  ActionType = "choose_suggestion"
	ActionRefineTopic       ActionType = "refine_topic"
	ActionSetIntroduction   ActionType = "set_introduction"
	ActionSetConclusion     ActionType = "set_conclusion"
	ActionAddBodyPart       ActionType = "add_body_part"
	ActionUpdateBodyPart    ActionType = "update_body_part"
	ActionRemoveBodyPart    ActionType = "remove_body_part"
	ActionSetDraft          ActionType = "set_draft"
	ActionNextStep          ActionType = "next_step"
	ActionPrevStep          ActionType = "prev_step"
	ActionSubmitEssay       ActionType = "submit_essay"
	ActionOpenEditEntry     ActionType = "open_edit_entry"
	ActionFindByCode        ActionType = "find_by_code"
	ActionEditFound         ActionType = "edit_found"
	ActionRequestDelete     ActionType = "request_delete"
	ActionConfirmDelete     ActionType = "confirm_delete"
	ActionCancelDelete      ActionType = "cancel_delete"
	ActionSelectEssay       ActionType = "select_essay"
	ActionCloseDetail       ActionType = "close_detail"
	ActionLike              ActionType = "like"
	ActionAddComment        ActionType = "add_comment"
	ActionDismissNotice     ActionType = "dismiss_notice"
)

// Action is the wire form of a transition. Only the fields the type needs
// are read.
type Action struct {
	Type     ActionType      `json:"type"`
	Role     Role            `json:"role,omitempty"`
	Student  *models.Student `json:"student,omitempty"`
	Password string          `json:"password,omitempty"`
	Value    string          `json:"value,omitempty"`
	Index    *int            `json:"index,omitempty"`
	Field    wizard.Field    `json:"field,omitempty"`
	Code     string          `json:"code,omitempty"`
	EssayID  string          `json:"essay_id,omitempty"`
	Content  string          `json:"content,omitempty"`
}

func (a Action) index() (int, error) {
	if a.Index == nil {
		return 0, fmt.Errorf("%w: %s needs an index", ErrBadAction, a.Type)
	}
	return *a.Index, nil
}

// Dispatch runs one action. Every action except dismiss_notice starts by
// clearing the previous notice.
func (s *Session) Dispatch(ctx context.Context, a Action) error {
	if a.Type != ActionDismissNotice {
		s.DismissNotice()
	}

	switch a.Type {
	case ActionSelectRole:
		return s.SelectRole(a.Role)
	case ActionSubmitStudentInfo:
		if a.Student == nil {
			return fmt.Errorf("%w: student is required", ErrBadAction)
		}
		return s.SubmitStudentInfo(ctx, *a.Student)
	case ActionTeacherLogin:
		return s.TeacherLogin(ctx, a.Password)
	case ActionReset:
		return s.Reset()
	case ActionOpenGallery:
		return s.OpenGallery(ctx)
	case ActionStartWriting:
		return s.StartWriting()
	case ActionSetTopic:
		return s.SetTopic(a.Value)
	case ActionSetRefinedTopic:
		return s.SetRefinedTopic(a.Value)
	case ActionChooseSuggestion:
		i, err := a.index()
		if err != nil {
			return err
		}
		return s.ChooseSuggestion(i)
	case ActionRefineTopic:
		return s.RefineTopic(ctx)
	case ActionSetIntroduction:
		return s.SetIntroduction(a.Value)
	case ActionSetConclusion:
		return s.SetConclusion(a.Value)
	case ActionAddBodyPart:
		return s.AddBodyPart()
	case ActionUpdateBodyPart:
		i, err := a.index()
		if err != nil {
			return err
		}
		return s.UpdateBodyPart(i, a.Field, a.Value)
	case ActionRemoveBodyPart:
		i, err := a.index()
		if err != nil {
			return err
		}
		return s.RemoveBodyPart(i)
	case ActionSetDraft:
		return s.SetDraft(a.Value)
	case ActionNextStep:
		return s.NextStep()
	case ActionPrevStep:
		return s.PrevStep()
	case ActionSubmitEssay:
		return s.SubmitEssay(ctx)
	case ActionOpenEditEntry:
		return s.OpenEditEntry()
	case ActionFindByCode:
		return s.FindByCode(ctx, a.Code)
	case ActionEditFound:
		return s.EditFound()
	case ActionRequestDelete:
		return s.RequestDelete(a.EssayID)
	case ActionConfirmDelete:
		return s.ConfirmDelete(ctx)
	case ActionCancelDelete:
		return s.CancelDelete()
	case ActionSelectEssay:
		return s.SelectEssay(ctx, a.EssayID)
	case ActionCloseDetail:
		return s.CloseDetail(ctx)
	case ActionLike:
		return s.Like(ctx)
	case ActionAddComment:
		return s.AddComment(ctx, a.Content)
	case ActionDismissNotice:
		s.DismissNotice()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
}
