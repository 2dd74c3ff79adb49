package episode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when an episode or config does not exist.
var ErrNotFound = errors.New("episode: not found")

// Store is the durable record of episodes and podcast configuration.
// All mutating calls map to database functions that bypass row-level
// security; workers never issue raw UPDATEs against the episodes table.
type Store interface {
	Get(ctx context.Context, id string) (*Episode, error)

	// UpdateStatus calls update_episode_status.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// UpdateContent calls update_episode_content_url, publishing the
	// collected content artifact and status in one statement.
	UpdateContent(ctx context.Context, id, contentURL string, status Status) error

	// UpdateAudio calls update_episode_audio_url, publishing the final
	// waveform URL, status and duration in one statement.
	UpdateAudio(ctx context.Context, id, audioURL string, status Status, durationSec int) error

	// UpdateScript calls update_episode_script_data.
	UpdateScript(ctx context.Context, id, scriptURL string, status Status, analysis *Analysis) error

	// MarkFailed calls mark_episode_failed.
	MarkFailed(ctx context.Context, id, errMsg string) error

	// UpdateStage records the current fine-grained stage on the episode.
	// firstStage also stamps processing_started_at.
	UpdateStage(ctx context.Context, id string, stage Stage, firstStage bool) error

	// SetMetadata overwrites the episode metadata blob.
	SetMetadata(ctx context.Context, id string, md Metadata) error

	// AppendStageHistory appends one event to the episode's stage history.
	AppendStageHistory(ctx context.Context, id string, ev StageEvent) error

	// ConfigByID calls get_podcast_config_by_id.
	ConfigByID(ctx context.Context, configID string) (*Config, error)

	// ConfigByPodcastID calls get_podcast_config_by_podcast_id.
	ConfigByPodcastID(ctx context.Context, podcastID string) (*Config, error)

	// InsertLog inserts a processing-log row and returns its id.
	InsertLog(ctx context.Context, log *ProcessingLog) (int64, error)

	// CloseLog finalizes the most recent started row for (episode, stage).
	CloseLog(ctx context.Context, episodeID string, stage Stage, status string,
		durationMS int64, errMsg string, errDetails map[string]any) error
}

// DB is the pgx surface used by PostgresStore. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore implements Store against a Supabase-style Postgres where
// mutations go through SECURITY DEFINER functions.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres creates a Store over an existing connection or pool.
func NewPostgres(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const episodeColumns = `
	id, podcast_id, podcast_config_id, status, current_stage,
	coalesce(content_url,''), coalesce(script_url,''), coalesce(audio_url,''),
	coalesce(duration,0), coalesce(metadata,'{}'::jsonb), analysis,
	coalesce(stage_history,'[]'::jsonb),
	last_stage_update, processing_started_at, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRow(ctx, `SELECT`+episodeColumns+` FROM episodes WHERE id = $1`, id)

	var (
		e            Episode
		metaJSON     []byte
		analysisJSON []byte
		historyJSON  []byte
		startedAt    *time.Time
	)
	err := row.Scan(&e.ID, &e.PodcastID, &e.ConfigID, &e.Status, &e.CurrentStage,
		&e.ContentURL, &e.ScriptURL, &e.AudioURL,
		&e.Duration, &metaJSON, &analysisJSON, &historyJSON,
		&e.LastStageUpdate, &startedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("episode: get %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("episode: get %s: %w", id, err)
	}
	if startedAt != nil {
		e.ProcessingStartedAt = *startedAt
	}
	if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
		return nil, fmt.Errorf("episode: get %s: metadata: %w", id, err)
	}
	if len(analysisJSON) > 0 {
		e.Analysis = &Analysis{}
		if err := json.Unmarshal(analysisJSON, e.Analysis); err != nil {
			return nil, fmt.Errorf("episode: get %s: analysis: %w", id, err)
		}
	}
	if err := json.Unmarshal(historyJSON, &e.StageHistory); err != nil {
		return nil, fmt.Errorf("episode: get %s: stage_history: %w", id, err)
	}
	return &e, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	_, err := s.db.Exec(ctx, `SELECT update_episode_status($1, $2)`, id, string(status))
	if err != nil {
		return fmt.Errorf("episode: update status %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateContent(ctx context.Context, id, contentURL string, status Status) error {
	_, err := s.db.Exec(ctx, `SELECT update_episode_content_url($1, $2, $3)`,
		id, contentURL, string(status))
	if err != nil {
		return fmt.Errorf("episode: update content %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateAudio(ctx context.Context, id, audioURL string, status Status, durationSec int) error {
	_, err := s.db.Exec(ctx, `SELECT update_episode_audio_url($1, $2, $3, $4)`,
		id, audioURL, string(status), durationSec)
	if err != nil {
		return fmt.Errorf("episode: update audio %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateScript(ctx context.Context, id, scriptURL string, status Status, analysis *Analysis) error {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("episode: marshal analysis: %w", err)
	}
	_, err = s.db.Exec(ctx, `SELECT update_episode_script_data($1, $2, $3, $4)`,
		id, scriptURL, string(status), analysisJSON)
	if err != nil {
		return fmt.Errorf("episode: update script %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	_, err := s.db.Exec(ctx, `SELECT mark_episode_failed($1, $2)`, id, errMsg)
	if err != nil {
		return fmt.Errorf("episode: mark failed %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateStage(ctx context.Context, id string, stage Stage, firstStage bool) error {
	query := `UPDATE episodes SET current_stage = $2, last_stage_update = now(), updated_at = now() WHERE id = $1`
	if firstStage {
		query = `UPDATE episodes SET current_stage = $2, last_stage_update = now(),
			processing_started_at = coalesce(processing_started_at, now()), updated_at = now() WHERE id = $1`
	}
	_, err := s.db.Exec(ctx, query, id, string(stage))
	if err != nil {
		return fmt.Errorf("episode: update stage %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) SetMetadata(ctx context.Context, id string, md Metadata) error {
	b, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("episode: marshal metadata: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE episodes SET metadata = coalesce(metadata,'{}'::jsonb) || $2::jsonb, updated_at = now() WHERE id = $1`,
		id, b)
	if err != nil {
		return fmt.Errorf("episode: set metadata %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) AppendStageHistory(ctx context.Context, id string, ev StageEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("episode: marshal stage event: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE episodes SET stage_history = coalesce(stage_history,'[]'::jsonb) || $2::jsonb, updated_at = now() WHERE id = $1`,
		id, b)
	if err != nil {
		return fmt.Errorf("episode: append stage history %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) ConfigByID(ctx context.Context, configID string) (*Config, error) {
	return s.scanConfig(ctx, `SELECT * FROM get_podcast_config_by_id($1)`, configID)
}

func (s *PostgresStore) ConfigByPodcastID(ctx context.Context, podcastID string) (*Config, error) {
	return s.scanConfig(ctx, `SELECT * FROM get_podcast_config_by_podcast_id($1)`, podcastID)
}

func (s *PostgresStore) scanConfig(ctx context.Context, query, arg string) (*Config, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("episode: config query: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, fmt.Errorf("episode: config %s: %w", arg, ErrNotFound)
	}
	var (
		c               Config
		domainsJSON     []byte
		mediaTypesJSON  []byte
		startDate       *time.Time
		endDate         *time.Time
	)
	err = rows.Scan(&c.ID, &c.PodcastID, &c.PodcastName,
		&c.Speaker1Role, &c.Speaker1Gender, &c.Speaker2Role, &c.Speaker2Gender,
		&c.Language, &c.DurationMinutes,
		&c.TelegramChannel, &c.TelegramHours, &startDate, &endDate,
		&domainsJSON, &mediaTypesJSON, &c.AdditionalInstructions, &c.PodcastFormat)
	if err != nil {
		return nil, fmt.Errorf("episode: scan config: %w", err)
	}
	c.StartDate, c.EndDate = startDate, endDate
	if len(domainsJSON) > 0 {
		if err := json.Unmarshal(domainsJSON, &c.FilteredDomains); err != nil {
			return nil, fmt.Errorf("episode: config filtered_domains: %w", err)
		}
	}
	if len(mediaTypesJSON) > 0 {
		if err := json.Unmarshal(mediaTypesJSON, &c.MediaTypes); err != nil {
			return nil, fmt.Errorf("episode: config media_types: %w", err)
		}
	}
	if c.PodcastFormat == "" {
		c.PodcastFormat = FormatMultiSpeaker
	}
	return &c, nil
}

func (s *PostgresStore) InsertLog(ctx context.Context, log *ProcessingLog) (int64, error) {
	metaJSON, err := json.Marshal(log.Metadata)
	if err != nil {
		return 0, fmt.Errorf("episode: marshal log metadata: %w", err)
	}
	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO episode_processing_logs (episode_id, stage, status, started_at, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		log.EpisodeID, string(log.Stage), log.Status, log.StartedAt, metaJSON,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("episode: insert log: %w", err)
	}
	return id, nil
}

// ListLogs returns all processing-log rows for one episode, oldest
// first. Not part of Store; only operator tooling reads logs back.
func (s *PostgresStore) ListLogs(ctx context.Context, episodeID string) ([]*ProcessingLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, episode_id, stage, status, started_at, completed_at,
			coalesce(duration_ms, 0), coalesce(error_message, ''),
			coalesce(error_details, '{}'::jsonb), coalesce(metadata, '{}'::jsonb)
		FROM episode_processing_logs
		WHERE episode_id = $1
		ORDER BY started_at`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("episode: list logs: %w", err)
	}
	defer rows.Close()

	var logs []*ProcessingLog
	for rows.Next() {
		var (
			l                    ProcessingLog
			stage                string
			detailJSON, metaJSON []byte
		)
		if err := rows.Scan(&l.ID, &l.EpisodeID, &stage, &l.Status, &l.StartedAt,
			&l.CompletedAt, &l.DurationMS, &l.ErrorMsg, &detailJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("episode: scan log: %w", err)
		}
		l.Stage = Stage(stage)
		if err := json.Unmarshal(detailJSON, &l.ErrorDetail); err != nil {
			return nil, fmt.Errorf("episode: decode log details: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &l.Metadata); err != nil {
			return nil, fmt.Errorf("episode: decode log metadata: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) CloseLog(ctx context.Context, episodeID string, stage Stage, status string,
	durationMS int64, errMsg string, errDetails map[string]any) error {

	detailsJSON, err := json.Marshal(errDetails)
	if err != nil {
		return fmt.Errorf("episode: marshal log details: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		UPDATE episode_processing_logs SET
			status = $3, completed_at = now(), duration_ms = $4,
			error_message = nullif($5, ''), error_details = $6
		WHERE id = (
			SELECT id FROM episode_processing_logs
			WHERE episode_id = $1 AND stage = $2 AND status = 'started'
			ORDER BY started_at DESC LIMIT 1
		)`,
		episodeID, string(stage), status, durationMS, errMsg, detailsJSON)
	if err != nil {
		return fmt.Errorf("episode: close log: %w", err)
	}
	return nil
}
