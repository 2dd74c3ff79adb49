// Package episodetest provides an in-memory Store for tests.
package episodetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxloom/voxloom/pkg/episode"
)

// Store is an in-memory episode.Store. All fields are guarded by one mutex;
// tests may read them directly after the code under test returns.
type Store struct {
	mu sync.Mutex

	Episodes map[string]*episode.Episode
	Configs  map[string]*episode.Config
	Logs     []*episode.ProcessingLog

	// Fail, when non-nil, is returned by every method. Lets tests exercise
	// transient store failures.
	Fail error

	nextLogID int64
}

var _ episode.Store = (*Store)(nil)

// New creates an empty fake store.
func New() *Store {
	return &Store{
		Episodes: make(map[string]*episode.Episode),
		Configs:  make(map[string]*episode.Config),
	}
}

// Add stores an episode, keyed by its ID.
func (s *Store) Add(e *episode.Episode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Episodes[e.ID] = e
}

// AddConfig stores a config keyed by both its ID and podcast ID.
func (s *Store) AddConfig(c *episode.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Configs[c.ID] = c
	s.Configs["podcast:"+c.PodcastID] = c
}

func (s *Store) Get(ctx context.Context, id string) (*episode.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	e, ok := s.Episodes[id]
	if !ok {
		return nil, fmt.Errorf("episodetest: get %s: %w", id, episode.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status episode.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if e, ok := s.Episodes[id]; ok {
		e.Status = status
	}
	return nil
}

func (s *Store) UpdateContent(ctx context.Context, id, contentURL string, status episode.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if e, ok := s.Episodes[id]; ok {
		e.ContentURL = contentURL
		e.Status = status
	}
	return nil
}

func (s *Store) UpdateAudio(ctx context.Context, id, audioURL string, status episode.Status, durationSec int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if e, ok := s.Episodes[id]; ok {
		e.AudioURL = audioURL
		e.Status = status
		e.Duration = durationSec
	}
	return nil
}

func (s *Store) UpdateScript(ctx context.Context, id, scriptURL string, status episode.Status, analysis *episode.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if e, ok := s.Episodes[id]; ok {
		e.ScriptURL = scriptURL
		e.Status = status
		e.Analysis = analysis
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if e, ok := s.Episodes[id]; ok {
		e.Status = episode.StatusFailed
		e.Metadata.Error = errMsg
	}
	return nil
}

func (s *Store) UpdateStage(ctx context.Context, id string, stage episode.Stage, firstStage bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if e, ok := s.Episodes[id]; ok {
		e.CurrentStage = stage
		e.LastStageUpdate = time.Now().UTC()
		if firstStage && e.ProcessingStartedAt.IsZero() {
			e.ProcessingStartedAt = e.LastStageUpdate
		}
	}
	return nil
}

func (s *Store) SetMetadata(ctx context.Context, id string, md episode.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if e, ok := s.Episodes[id]; ok {
		merge(&e.Metadata, md)
	}
	return nil
}

func (s *Store) AppendStageHistory(ctx context.Context, id string, ev episode.StageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if e, ok := s.Episodes[id]; ok {
		e.StageHistory = append(e.StageHistory, ev)
	}
	return nil
}

func (s *Store) ConfigByID(ctx context.Context, configID string) (*episode.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	c, ok := s.Configs[configID]
	if !ok {
		return nil, fmt.Errorf("episodetest: config %s: %w", configID, episode.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ConfigByPodcastID(ctx context.Context, podcastID string) (*episode.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	c, ok := s.Configs["podcast:"+podcastID]
	if !ok {
		return nil, fmt.Errorf("episodetest: config for podcast %s: %w", podcastID, episode.ErrNotFound)
	}
	return c, nil
}

func (s *Store) InsertLog(ctx context.Context, log *episode.ProcessingLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return 0, s.Fail
	}
	s.nextLogID++
	cp := *log
	cp.ID = s.nextLogID
	s.Logs = append(s.Logs, &cp)
	return cp.ID, nil
}

func (s *Store) CloseLog(ctx context.Context, episodeID string, stage episode.Stage, status string,
	durationMS int64, errMsg string, errDetails map[string]any) error {

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	for i := len(s.Logs) - 1; i >= 0; i-- {
		l := s.Logs[i]
		if l.EpisodeID == episodeID && l.Stage == stage && l.Status == episode.LogStarted {
			now := time.Now().UTC()
			l.Status = status
			l.CompletedAt = &now
			l.DurationMS = durationMS
			l.ErrorMsg = errMsg
			l.ErrorDetail = errDetails
			return nil
		}
	}
	return fmt.Errorf("episodetest: no started log for %s/%s", episodeID, stage)
}

// LogsFor returns all log rows for one episode, oldest first.
func (s *Store) LogsFor(episodeID string) []*episode.ProcessingLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*episode.ProcessingLog
	for _, l := range s.Logs {
		if l.EpisodeID == episodeID {
			out = append(out, l)
		}
	}
	return out
}

func merge(dst *episode.Metadata, src episode.Metadata) {
	if src.Speaker1Voice != "" {
		dst.Speaker1Voice = src.Speaker1Voice
	}
	if src.Speaker2Voice != "" {
		dst.Speaker2Voice = src.Speaker2Voice
	}
	if src.Speaker1Role != "" {
		dst.Speaker1Role = src.Speaker1Role
	}
	if src.Speaker2Role != "" {
		dst.Speaker2Role = src.Speaker2Role
	}
	if src.Speaker1Gender != "" {
		dst.Speaker1Gender = src.Speaker1Gender
	}
	if src.Speaker2Gender != "" {
		dst.Speaker2Gender = src.Speaker2Gender
	}
	if src.LanguageCode != "" {
		dst.LanguageCode = src.LanguageCode
	}
	if src.PodcastFormat != "" {
		dst.PodcastFormat = src.PodcastFormat
	}
	if src.Error != "" {
		dst.Error = src.Error
	}
}
