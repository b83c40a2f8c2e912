// Package session keeps the per-visitor application state: which screen is
// shown, who is looking at it and which remote calls are in flight. Every
// change goes through a transition method; remote calls run with the session
// unlocked and their results are dropped when the screen has moved on.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/repository"
	"github.com/reset980reset980/write0917/internal/service"
)

var (
	ErrSetupRequired   = errors.New("storage is not configured")
	ErrBusy            = errors.New("operation already in progress")
	ErrWrongView       = errors.New("action is not available on this screen")
	ErrForbidden       = errors.New("action requires a teacher login")
	ErrNoPendingDelete = errors.New("no delete is waiting for confirmation")
	ErrUnknownAction   = errors.New("unknown action")
	ErrBadAction       = errors.New("invalid action")
	ErrNotFound        = errors.New("session not found")
)

type Role string

const (
	RoleNone    Role = ""
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

const (
	TeacherName      = "선생님"
	DefaultViewerKey = "teacher-or-default"
)

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

const (
	msgLoadFailed        = "데이터를 불러오는 데 실패했습니다."
	msgSaveFailed        = "글 저장에 실패했습니다. 다시 시도해주세요."
	msgSavedLate         = "글이 저장되었습니다. 수정 코드: "
	msgUpdated           = "글이 성공적으로 수정되었습니다."
	msgUpdateFailed      = "수정에 실패했습니다."
	msgCodeNotFound      = "해당 코드를 가진 글을 찾을 수 없습니다."
	msgFindFailed        = "글을 찾는 중 오류가 발생했습니다."
	msgDeleted           = "글이 삭제되었습니다."
	msgDeleteFailed      = "글 삭제에 실패했습니다. 다시 시도해주세요."
	msgLikeFailed        = "좋아요 처리에 실패했습니다."
	msgCommentsFailed    = "댓글을 불러오는 데 실패했습니다."
	msgCommentFailed     = "댓글 등록에 실패했습니다."
	msgCommentEmpty      = "의견 내용을 입력해주세요."
	msgCommentNoAuthor   = "의견을 남기려면 이름이 필요합니다."
	msgStudentIncomplete = "반, 번호, 이름을 모두 입력해주세요."
	msgStudentInvalid    = "학생 정보를 다시 확인해주세요."
	msgPasswordEmpty     = "비밀번호를 입력해주세요."
	msgPasswordWrong     = "비밀번호가 올바르지 않습니다."
	msgTeacherAuthOff    = "교사 비밀번호가 설정되지 않았습니다."
	msgLoginFailed       = "로그인 처리 중 오류가 발생했습니다."
	msgCodeEmpty         = "수정 코드를 입력해주세요."
	msgCodeInvalid       = "수정 코드는 영문과 숫자 6자리입니다."
)

// Deps are the collaborators a session calls out to.
type Deps struct {
	Essays      service.EssayService
	Comments    service.CommentService
	Auth        service.AuthService
	Topics      service.TopicService
	Liked       repository.LikedRepository
	CallTimeout time.Duration
	Logger      zerolog.Logger
}

type Session struct {
	id     string
	deps   Deps
	logger zerolog.Logger

	mu         sync.Mutex
	view       View
	generation uint64
	role       Role
	teacher    bool
	student    *models.Student
	liked      map[string]struct{}
	likedKey   string
	notice     *Notice
}

func New(id string, deps Deps) *Session {
	s := &Session{
		id:     id,
		deps:   deps,
		logger: deps.Logger.With().Str("session_id", id).Logger(),
		liked:  map[string]struct{}{},
	}
	s.setView(&LandingView{})
	return s
}

// NewSetupRequired returns a session that refuses every action.
func NewSetupRequired(id, message string, deps Deps) *Session {
	s := New(id, deps)
	s.setView(&SetupRequiredView{Message: message})
	return s
}

func (s *Session) ID() string { return s.id }

// setView replaces the screen. The caller holds s.mu.
func (s *Session) setView(v View) {
	s.view = v
	s.generation++
}

func (s *Session) current(gen uint64) bool {
	return s.generation == gen
}

func (s *Session) check() error {
	if _, ok := s.view.(*SetupRequiredView); ok {
		return ErrSetupRequired
	}
	return nil
}

func (s *Session) setNotice(level NoticeLevel, message string) {
	s.notice = &Notice{Level: level, Message: message}
}

// viewerKey is identity-wide for students. Teachers and anonymous viewers
// get a set of their own per session.
func (s *Session) viewerKey() string {
	if s.student != nil {
		return s.student.Key()
	}
	return DefaultViewerKey + "-" + s.id
}

// resetLiked forgets the liked set after the identity changed.
func (s *Session) resetLiked() {
	s.liked = map[string]struct{}{}
	s.likedKey = ""
}

func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.deps.CallTimeout > 0 {
		return context.WithTimeout(ctx, s.deps.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// ensureLiked loads the liked set of the current viewer once.
func (s *Session) ensureLiked(ctx context.Context) {
	s.mu.Lock()
	key := s.viewerKey()
	loaded := s.likedKey == key
	s.mu.Unlock()
	if loaded {
		return
	}

	cctx, cancel := s.callContext(ctx)
	defer cancel()
	ids, err := s.deps.Liked.Members(cctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("viewer", key).Msg("Failed to load liked essays")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewerKey() != key {
		return
	}
	for _, id := range ids {
		s.liked[id] = struct{}{}
	}
	s.likedKey = key
}

// showGallery switches to a loading gallery. The caller holds s.mu and runs
// loadGallery with the returned generation once it has unlocked.
func (s *Session) showGallery() uint64 {
	s.setView(&GalleryView{Loading: true})
	return s.generation
}

func (s *Session) loadGallery(ctx context.Context, gen uint64) {
	s.ensureLiked(ctx)

	cctx, cancel := s.callContext(ctx)
	defer cancel()
	essays, err := s.deps.Essays.ListEssays(cctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		s.logger.Debug().Msg("Dropping stale gallery result")
		return
	}
	g := s.view.(*GalleryView)
	g.Loading = false
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load gallery")
		g.LoadError = msgLoadFailed
		return
	}
	g.Essays = essays
}

type Busy struct {
	Loading    bool `json:"loading"`
	Refining   bool `json:"refining"`
	Saving     bool `json:"saving"`
	Finding    bool `json:"finding"`
	Liking     bool `json:"liking"`
	Commenting bool `json:"commenting"`
	Deleting   bool `json:"deleting"`
}

func (s *Session) busy() Busy {
	var b Busy
	switch v := s.view.(type) {
	case *GalleryView:
		b.Loading = v.Loading
		b.Deleting = v.Deleting
	case *WritingView:
		b.Refining = v.Wizard.Refining()
		b.Saving = v.Saving
	case *EditingView:
		b.Refining = v.Wizard.Refining()
		b.Saving = v.Saving
	case *EditEntryView:
		b.Finding = v.Finding
	case *FoundEssayView:
		b.Deleting = v.Deleting
	case *DetailView:
		b.Loading = v.Loading
		b.Liking = v.Liking
		b.Commenting = v.Commenting
		b.Deleting = v.Deleting
	}
	return b
}

type Snapshot struct {
	ID         string          `json:"id"`
	Generation uint64          `json:"generation"`
	View       ViewKind        `json:"view"`
	State      interface{}     `json:"state"`
	Role       Role            `json:"role"`
	IsTeacher  bool            `json:"is_teacher"`
	Student    *models.Student `json:"student,omitempty"`
	ViewerKey  string          `json:"viewer_key"`
	LikedIDs   []string        `json:"liked_ids"`
	Busy       Busy            `json:"busy"`
	Notice     *Notice         `json:"notice,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	liked := make([]string, 0, len(s.liked))
	for id := range s.liked {
		liked = append(liked, id)
	}
	sort.Strings(liked)

	var student *models.Student
	if s.student != nil {
		st := *s.student
		student = &st
	}
	var notice *Notice
	if s.notice != nil {
		n := *s.notice
		notice = &n
	}

	return Snapshot{
		ID:         s.id,
		Generation: s.generation,
		View:       s.view.Kind(),
		State:      s.view.snapshot(viewerInfo{teacher: s.teacher}),
		Role:       s.role,
		IsTeacher:  s.teacher,
		Student:    student,
		ViewerKey:  s.viewerKey(),
		LikedIDs:   liked,
		Busy:       s.busy(),
		Notice:     notice,
	}
}
