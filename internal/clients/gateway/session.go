package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/markbook-backend/internal/markbook"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
	"github.com/yungbote/markbook-backend/internal/snapshot"
)

type Operation string

const (
	OpSave   Operation = "save"
	OpList   Operation = "list"
	OpLoad   Operation = "load"
	OpDelete Operation = "delete"
)

// ErrStaleResponse is returned when a newer call of the same operation was
// started before this one finished. Its result has been discarded.
var ErrStaleResponse = errors.New("stale gateway response discarded")

// Session owns one gradebook store and applies gateway results to it.
// Each operation carries a request token; only the latest token of an
// operation may touch the session. A failed call never mutates the store.
type Session struct {
	log   *logger.Logger
	api   Client
	store *markbook.Store
	now   func() time.Time

	mu     sync.Mutex
	tokens map[Operation]uint64
	files  []File
	status string
}

func NewSession(log *logger.Logger, api Client, store *markbook.Store) *Session {
	if store == nil {
		store = markbook.NewStore()
	}
	return &Session{
		log:    log.With("component", "GatewaySession"),
		api:    api,
		store:  store,
		now:    time.Now,
		tokens: map[Operation]uint64{},
	}
}

func (s *Session) Store() *markbook.Store { return s.store }

// Status is the last user-facing message.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Files is the last listing fetched by List.
func (s *Session) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]File(nil), s.files...)
}

func (s *Session) begin(op Operation) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[op]++
	return s.tokens[op]
}

// finish runs apply under the session lock if token is still current for op.
func (s *Session) finish(op Operation, token uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[op] != token {
		s.log.Debug("Discarding stale gateway response", "op", op, "token", token, "latest", s.tokens[op])
		return false
	}
	apply()
	return true
}

func (s *Session) fail(op Operation, token uint64, message string, err error) error {
	if !s.finish(op, token, func() { s.status = message }) {
		return ErrStaleResponse
	}
	s.log.Warn("Gateway call failed", "op", op, "error", err)
	return err
}

func (s *Session) Save(ctx context.Context, filename string) (*SaveResponse, error) {
	token := s.begin(OpSave)
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "markbook"
	}
	body, err := snapshot.Serialize(s.store, s.now())
	if err != nil {
		return nil, s.fail(OpSave, token, "Could not prepare data for saving", err)
	}
	out, err := s.api.Save(ctx, json.RawMessage(body), filename)
	if err != nil {
		return nil, s.fail(OpSave, token, "Failed to save to cloud: "+errorMessage(err), err)
	}
	if !s.finish(OpSave, token, func() { s.status = "Saved to cloud as " + out.Pathname }) {
		return nil, ErrStaleResponse
	}
	return out, nil
}

func (s *Session) List(ctx context.Context) ([]File, error) {
	token := s.begin(OpList)
	out, err := s.api.List(ctx)
	if err != nil {
		return nil, s.fail(OpList, token, "Failed to load saved files: "+errorMessage(err), err)
	}
	files := append([]File(nil), out.Files...)
	if !s.finish(OpList, token, func() {
		s.files = files
		s.status = fmt.Sprintf("Found %d saved file(s)", len(files))
	}) {
		return nil, ErrStaleResponse
	}
	return files, nil
}

// Load fetches a snapshot and replaces the store with it.
func (s *Session) Load(ctx context.Context, locator string) error {
	token := s.begin(OpLoad)
	raw, err := s.api.Load(ctx, locator)
	if err != nil {
		return s.fail(OpLoad, token, "Failed to load from cloud: "+errorMessage(err), err)
	}
	decoded, err := snapshot.Deserialize(raw)
	if err != nil {
		return s.fail(OpLoad, token, "Invalid file format", err)
	}
	if !s.finish(OpLoad, token, func() {
		s.store.Replace(decoded.Students, decoded.Weeks, decoded.VisibleMetrics)
		s.status = "Data loaded from cloud"
	}) {
		return ErrStaleResponse
	}
	return nil
}

func (s *Session) Delete(ctx context.Context, locator string) error {
	token := s.begin(OpDelete)
	if err := s.api.Delete(ctx, locator); err != nil {
		return s.fail(OpDelete, token, "Failed to delete file: "+errorMessage(err), err)
	}
	if !s.finish(OpDelete, token, func() {
		kept := s.files[:0:0]
		for _, f := range s.files {
			if f.URL != locator && f.Pathname != locator {
				kept = append(kept, f)
			}
		}
		s.files = kept
		s.status = "File deleted successfully"
	}) {
		return ErrStaleResponse
	}
	return nil
}

// ImportFile replaces the store from a local JSON export.
func (s *Session) ImportFile(text []byte) error {
	if _, err := snapshot.Import(s.store, text); err != nil {
		s.setStatus("Invalid file format")
		return err
	}
	s.setStatus("Data imported successfully!")
	return nil
}

// ExportFile renders the store as a local JSON export.
func (s *Session) ExportFile() ([]byte, error) {
	return snapshot.Serialize(s.store, s.now())
}

func (s *Session) setStatus(msg string) {
	s.mu.Lock()
	s.status = msg
	s.mu.Unlock()
}

func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
