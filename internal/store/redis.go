package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

const (
	sessionKeyPrefix = "attendance:active:"
	marksKeyPrefix   = "attendance:marked:"

	fieldSessionID = "session_id"
	fieldTeacherID = "teacher_id"
	fieldStartedAt = "started_at"
	fieldTTL       = "ttl_ms"
	fieldState     = "state"
)

// KEYS[1] session hash, KEYS[2] marks hash.
// ARGV session_id, teacher_id, started_at, ttl_ms.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'session_id', ARGV[1], 'teacher_id', ARGV[2], 'started_at', ARGV[3], 'ttl_ms', ARGV[4], 'state', 'active')
redis.call('PEXPIRE', KEYS[1], ARGV[4])
redis.call('DEL', KEYS[2])
return 1
`)

// KEYS[1] session hash, KEYS[2] marks hash. ARGV student_id, status.
// The marks hash is given the session's remaining lifetime so both expire
// together.
var markScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= 'active' then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// KEYS[1] session hash.
var beginCloseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= 'active' then
	return 0
end
redis.call('HSET', KEYS[1], 'state', 'closing')
return 1
`)

// RedisStore keeps live sessions and marks in Redis. Atomicity comes from
// Lua scripts; the process holds no session state.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With().Str("component", "session_store").Logger(),
		now:    time.Now,
	}
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return client, nil
}

func sessionKey(classID string) string { return sessionKeyPrefix + classID }
func marksKey(classID string) string   { return marksKeyPrefix + classID }

// Create opens a session for classID. Exactly one concurrent caller wins.
func (s *RedisStore) Create(ctx context.Context, classID, teacherID string, ttl time.Duration) (*types.Session, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	session := &types.Session{
		ID:        uuid.NewString(),
		ClassID:   classID,
		TeacherID: teacherID,
		StartedAt: s.now().UTC(),
		TTL:       ttl,
		State:     types.SessionActive,
	}

	created, err := createScript.Run(ctx, s.client,
		[]string{sessionKey(classID), marksKey(classID)},
		session.ID,
		teacherID,
		session.StartedAt.Format(time.RFC3339Nano),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("create session for class %s: %w", classID, err)
	}
	if created == 0 {
		return nil, interfaces.ErrSessionAlreadyActive
	}

	s.logger.Debug().Str("class_id", classID).Str("session_id", session.ID).Dur("ttl", ttl).Msg("session created")
	return session, nil
}

// Get returns the session for classID, active or closing.
func (s *RedisStore) Get(ctx context.Context, classID string) (*types.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(classID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session for class %s: %w", classID, err)
	}
	if len(fields) == 0 {
		return nil, interfaces.ErrSessionNotFound
	}
	return decodeSession(classID, fields)
}

// SetMark upserts one mark if the session is active.
func (s *RedisStore) SetMark(ctx context.Context, classID, studentID string, status types.Status) (bool, error) {
	ok, err := markScript.Run(ctx, s.client,
		[]string{sessionKey(classID), marksKey(classID)},
		studentID,
		string(status),
	).Int()
	if err != nil {
		return false, fmt.Errorf("set mark for class %s: %w", classID, err)
	}
	return ok == 1, nil
}

// GetMark returns a single student's mark.
func (s *RedisStore) GetMark(ctx context.Context, classID, studentID string) (types.Status, bool, error) {
	value, err := s.client.HGet(ctx, marksKey(classID), studentID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get mark for class %s: %w", classID, err)
	}
	return types.Status(value), true, nil
}

// AllMarks returns every mark for classID. Unknown values are skipped.
func (s *RedisStore) AllMarks(ctx context.Context, classID string) (map[string]types.Status, error) {
	raw, err := s.client.HGetAll(ctx, marksKey(classID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list marks for class %s: %w", classID, err)
	}

	marks := make(map[string]types.Status, len(raw))
	for studentID, value := range raw {
		status, err := types.ParseStatus(value)
		if err != nil {
			s.logger.Warn().Str("class_id", classID).Str("student_id", studentID).Str("value", value).Msg("skipping unreadable mark")
			continue
		}
		marks[studentID] = status
	}
	return marks, nil
}

// BeginClose claims the session for closing. The loser of a concurrent close
// gets ErrSessionNotFound.
func (s *RedisStore) BeginClose(ctx context.Context, classID string) (*types.Session, error) {
	claimed, err := beginCloseScript.Run(ctx, s.client, []string{sessionKey(classID)}).Int()
	if err != nil {
		return nil, fmt.Errorf("begin close for class %s: %w", classID, err)
	}
	if claimed == 0 {
		return nil, interfaces.ErrSessionNotFound
	}
	return s.Get(ctx, classID)
}

// Close deletes the session and its marks.
func (s *RedisStore) Close(ctx context.Context, classID string) error {
	if err := s.client.Del(ctx, sessionKey(classID), marksKey(classID)).Err(); err != nil {
		return fmt.Errorf("close session for class %s: %w", classID, err)
	}
	return nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

func decodeSession(classID string, fields map[string]string) (*types.Session, error) {
	startedAt, err := time.Parse(time.RFC3339Nano, fields[fieldStartedAt])
	if err != nil {
		return nil, fmt.Errorf("%w: started_at: %v", ErrCorruptSession, err)
	}
	ttlMillis, err := strconv.ParseInt(fields[fieldTTL], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: ttl: %v", ErrCorruptSession, err)
	}

	return &types.Session{
		ID:        fields[fieldSessionID],
		ClassID:   classID,
		TeacherID: fields[fieldTeacherID],
		StartedAt: startedAt,
		TTL:       time.Duration(ttlMillis) * time.Millisecond,
		State:     types.SessionState(fields[fieldState]),
	}, nil
}
