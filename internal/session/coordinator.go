package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

// DefaultTTL bounds how long an unclosed session survives.
const DefaultTTL = 2 * time.Hour

// Once a close is claimed it no longer follows the caller's context.
// persistTimeout bounds reading marks and writing records; releaseTimeout
// bounds the final store cleanup.
const (
	persistTimeout = 30 * time.Second
	releaseTimeout = 5 * time.Second
)

// Coordinator implements interfaces.Coordinator. It keeps no session state of
// its own: every decision is made against the session store, so concurrent
// callers are arbitrated there.
type Coordinator struct {
	store      interfaces.SessionStore
	enrollment interfaces.EnrollmentRepository
	sink       interfaces.PersistenceSink
	ttl        time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

func NewCoordinator(store interfaces.SessionStore, enrollment interfaces.EnrollmentRepository, sink interfaces.PersistenceSink, ttl time.Duration, logger zerolog.Logger) *Coordinator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Coordinator{
		store:      store,
		enrollment: enrollment,
		sink:       sink,
		ttl:        ttl,
		logger:     logger.With().Str("component", "coordinator").Logger(),
		now:        time.Now,
	}
}

// StartSession opens a session for a class the caller teaches.
func (c *Coordinator) StartSession(ctx context.Context, caller types.Identity, classID string) (*types.Session, error) {
	if _, err := c.authorizeTeacher(ctx, caller, classID); err != nil {
		return nil, err
	}

	session, err := c.store.Create(ctx, classID, caller.UserID, c.ttl)
	if errors.Is(err, interfaces.ErrSessionAlreadyActive) {
		return nil, ErrAlreadyActive
	}
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	c.logger.Info().
		Str("class_id", classID).
		Str("session_id", session.ID).
		Str("teacher_id", caller.UserID).
		Time("expires_at", session.ExpiresAt()).
		Msg("attendance session started")
	return session, nil
}

// MarkAttendance records a student's status. A second mark for the same
// student replaces the first.
func (c *Coordinator) MarkAttendance(ctx context.Context, caller types.Identity, classID, studentID, status string) (*types.MarkRecorded, error) {
	if !caller.IsTeacher() {
		return nil, ErrTeacherOnly
	}
	mark := types.MarkPayload{ClassID: classID, StudentID: studentID, Status: status}
	if err := mark.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMark, err)
	}
	parsed, _ := types.ParseStatus(status)
	if _, err := c.authorizeTeacher(ctx, caller, classID); err != nil {
		return nil, err
	}

	enrolled, err := c.enrollment.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	ok, err := c.store.SetMark(ctx, classID, studentID, parsed)
	if err != nil {
		return nil, fmt.Errorf("mark attendance: %w", err)
	}
	if !ok {
		return nil, ErrNoActiveSession
	}

	return &types.MarkRecorded{ClassID: classID, StudentID: studentID, Status: parsed}, nil
}

// GetSummary tallies the marks recorded so far. Unmarked students are not
// counted.
func (c *Coordinator) GetSummary(ctx context.Context, caller types.Identity, classID string) (*types.Summary, error) {
	if _, err := c.authorizeTeacher(ctx, caller, classID); err != nil {
		return nil, err
	}
	if _, err := c.activeSession(ctx, classID); err != nil {
		return nil, err
	}

	marks, err := c.store.AllMarks(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	return summarize(classID, marks), nil
}

// GetPersonalStatus lets a student read their own mark.
func (c *Coordinator) GetPersonalStatus(ctx context.Context, caller types.Identity, classID, studentID string) (*types.PersonalStatus, error) {
	if !caller.IsStudent() {
		return nil, ErrStudentOnly
	}
	if studentID != caller.UserID {
		return nil, ErrOtherStudent
	}
	if !types.IsValidID(classID) {
		return nil, ErrInvalidClassID
	}
	if _, err := c.activeSession(ctx, classID); err != nil {
		return nil, err
	}

	status, marked, err := c.store.GetMark(ctx, classID, studentID)
	if err != nil {
		return nil, fmt.Errorf("personal status: %w", err)
	}
	if !marked {
		status = types.StatusNotMarked
	}
	return &types.PersonalStatus{ClassID: classID, StudentID: studentID, Status: status, Marked: marked}, nil
}

// CloseSession persists final attendance and frees the class slot.
//
// The store-level close claim admits one closer; everyone else sees
// ErrNoActiveSession. Enrolled students without a mark are recorded absent.
// Record writes that fail are reported in the result rather than aborting the
// close, and the slot is released no matter what. A caller that disconnects
// after the claim does not interrupt persistence.
func (c *Coordinator) CloseSession(ctx context.Context, caller types.Identity, classID string) (*types.CloseResult, error) {
	if _, err := c.authorizeTeacher(ctx, caller, classID); err != nil {
		return nil, err
	}

	session, err := c.store.BeginClose(ctx, classID)
	if errors.Is(err, interfaces.ErrSessionNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}

	result := &types.CloseResult{ClassID: classID, SessionID: session.ID}
	defer c.release(ctx, classID, result)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	marks, err := c.store.AllMarks(ctx, classID)
	if err != nil {
		c.logger.Error().Err(err).Str("class_id", classID).Msg("reading marks for close failed")
		result.Errors = append(result.Errors, fmt.Sprintf("read marks: %v", err))
	}

	enrolled, err := c.enrollment.ListEnrolled(ctx, classID)
	if err != nil {
		c.logger.Error().Err(err).Str("class_id", classID).Msg("reading enrollment for close failed")
		result.Errors = append(result.Errors, fmt.Sprintf("read enrollment: %v", err))
	}

	final := finalStatuses(marks, enrolled)
	result.Total = len(final)
	if result.Errors != nil {
		// Without marks every student would be written absent, so nothing is
		// persisted.
		result.FailedStudents = sortedKeys(final)
		result.Outcome = types.CloseOutcomeClosedWithErrors
		return result, nil
	}

	for stray := range marks {
		if _, ok := final[stray]; !ok {
			c.logger.Warn().Str("class_id", classID).Str("student_id", stray).Msg("dropping mark for student not enrolled")
		}
	}

	recordedAt := c.now().UTC()
	written := map[types.Status]int{}
	for _, studentID := range sortedKeys(final) {
		record := &types.AttendanceRecord{
			ID:         uuid.NewString(),
			SessionID:  session.ID,
			ClassID:    classID,
			StudentID:  studentID,
			Status:     final[studentID],
			RecordedAt: recordedAt,
		}
		if err := c.sink.WriteRecord(ctx, record); err != nil {
			c.logger.Error().Err(err).Str("class_id", classID).Str("student_id", studentID).Msg("writing attendance record failed")
			result.FailedStudents = append(result.FailedStudents, studentID)
			continue
		}
		written[record.Status]++
	}
	if len(result.FailedStudents) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("%d of %d records not written", len(result.FailedStudents), len(final)))
	}

	result.Present, result.Absent = written[types.StatusPresent], written[types.StatusAbsent]
	if present, absent, err := c.durableCounts(ctx, classID, session.ID); err != nil {
		c.logger.Error().Err(err).Str("class_id", classID).Msg("re-reading final counts failed")
		result.Errors = append(result.Errors, fmt.Sprintf("count records: %v", err))
	} else {
		result.Present, result.Absent = present, absent
	}

	if len(result.Errors) > 0 {
		result.Outcome = types.CloseOutcomeClosedWithErrors
	} else {
		result.Outcome = types.CloseOutcomeClosed
	}
	return result, nil
}

// release frees the slot for the next session. It outlives ctx so a caller
// that gave up mid-close cannot leave the class stuck until TTL.
func (c *Coordinator) release(ctx context.Context, classID string, result *types.CloseResult) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := c.store.Close(releaseCtx, classID); err != nil {
		c.logger.Error().Err(err).Str("class_id", classID).Msg("releasing session slot failed, waiting for ttl")
		result.Errors = append(result.Errors, fmt.Sprintf("release session: %v", err))
		result.Outcome = types.CloseOutcomeClosedWithErrors
	}

	c.logger.Info().
		Str("class_id", classID).
		Str("session_id", result.SessionID).
		Str("outcome", string(result.Outcome)).
		Int("total", result.Total).
		Int("present", result.Present).
		Int("absent", result.Absent).
		Msg("attendance session closed")
}

func (c *Coordinator) durableCounts(ctx context.Context, classID, sessionID string) (int, int, error) {
	present, err := c.sink.CountByStatus(ctx, classID, sessionID, types.StatusPresent)
	if err != nil {
		return 0, 0, err
	}
	absent, err := c.sink.CountByStatus(ctx, classID, sessionID, types.StatusAbsent)
	if err != nil {
		return 0, 0, err
	}
	return present, absent, nil
}

// authorizeTeacher checks role, id shape and class ownership, in that order.
func (c *Coordinator) authorizeTeacher(ctx context.Context, caller types.Identity, classID string) (*types.Class, error) {
	if !caller.IsTeacher() {
		return nil, ErrTeacherOnly
	}
	if !types.IsValidID(classID) {
		return nil, ErrInvalidClassID
	}

	class, err := c.enrollment.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !class.IsOwnedBy(caller.UserID) {
		return nil, ErrNotClassOwner
	}
	return class, nil
}

func (c *Coordinator) activeSession(ctx context.Context, classID string) (*types.Session, error) {
	session, err := c.store.Get(ctx, classID)
	if errors.Is(err, interfaces.ErrSessionNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !session.IsActive() {
		return nil, ErrNoActiveSession
	}
	return session, nil
}

func summarize(classID string, marks map[string]types.Status) *types.Summary {
	summary := &types.Summary{ClassID: classID, Total: len(marks)}
	for _, status := range marks {
		if status == types.StatusPresent {
			summary.Present++
		}
	}
	summary.Absent = summary.Total - summary.Present
	return summary
}

// finalStatuses restricts marks to the enrolled set and defaults the rest to
// absent.
func finalStatuses(marks map[string]types.Status, enrolled []string) map[string]types.Status {
	final := make(map[string]types.Status, len(enrolled))
	for _, studentID := range enrolled {
		status, ok := marks[studentID]
		if !ok {
			status = types.StatusAbsent
		}
		final[studentID] = status
	}
	return final
}

func sortedKeys(m map[string]types.Status) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
