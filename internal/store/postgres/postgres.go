// Package postgres is the production Campaign Store Contract (C3)
// adapter, grounded on the teacher repository's database/sql + lib/pq
// idioms: plain $N placeholders, QueryRow+Scan for single rows, and a
// conditional UPDATE ... RETURNING for the claim CAS.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"github.com/unclebandit/campaign-dispatcher/internal/apperrors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

type Store struct {
	DB *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

func (s *Store) ListEligible(ctx context.Context, now time.Time, onlyCampaignID *int64) ([]model.Campaign, error) {
	query := `
		SELECT id, owner_id, name, channel, base_template, status, total_messages,
		       sent_messages, execution_time_seconds, scheduled_at, started_at,
		       finished_at, config, created_at
		FROM campaigns
		WHERE status = ANY($1)`
	args := []interface{}{statusArray()}

	if onlyCampaignID != nil {
		query += " AND id = $2"
		args = append(args, *onlyCampaignID)
	} else {
		query += " AND scheduled_at <= $2"
		args = append(args, now)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreReadErr(err)
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, apperrors.NewStoreReadErr(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func statusArray() []string {
	out := make([]string, len(model.EligibleStatuses))
	for i, s := range model.EligibleStatuses {
		out[i] = string(s)
	}
	return out
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row scanner) (model.Campaign, error) {
	var c model.Campaign
	var status string
	var execSeconds int64
	var cfgRaw []byte

	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Channel, &c.BaseTemplate, &status,
		&c.TotalMessages, &c.SentMessages, &execSeconds, &c.ScheduledAt, &c.StartedAt,
		&c.FinishedAt, &cfgRaw, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	c.Status = model.CampaignStatus(status)
	c.ExecutionTime = time.Duration(execSeconds) * time.Second
	if len(cfgRaw) > 0 {
		if err := json.Unmarshal(cfgRaw, &c.Config); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (s *Store) GetStatus(ctx context.Context, campaignID int64) (model.CampaignStatus, error) {
	var status string
	err := s.DB.QueryRowContext(ctx, `SELECT status FROM campaigns WHERE id=$1`, campaignID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", apperrors.NewCampaignNotFound(campaignID)
	}
	if err != nil {
		return "", apperrors.NewStoreReadErr(err)
	}
	return model.CampaignStatus(status), nil
}

func (s *Store) UpdateCampaignFields(ctx context.Context, campaignID int64, f model.CampaignFieldUpdate) error {
	sets := []string{}
	args := []interface{}{}

	add := func(col string, v interface{}) {
		sets = append(sets, col)
		args = append(args, v)
	}
	if f.Status != nil {
		add("status", string(*f.Status))
	}
	if f.StartedAt != nil {
		add("started_at", *f.StartedAt)
	}
	if f.FinishedAt != nil {
		add("finished_at", *f.FinishedAt)
	}
	if f.ExecutionTime != nil {
		add("execution_time_seconds", int64(f.ExecutionTime.Seconds()))
	}
	if f.SentMessages != nil {
		add("sent_messages", *f.SentMessages)
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE campaigns SET "
	for i, col := range sets {
		if i > 0 {
			query += ", "
		}
		query += col + " = $" + strconv.Itoa(i+1)
	}
	query += " WHERE id = $" + strconv.Itoa(len(sets)+1)
	args = append(args, campaignID)

	_, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStoreWriteErr(err)
	}
	return nil
}

func (s *Store) ListOwnerCampaigns(ctx context.Context, ownerID int64, excludeTerminal bool) ([]model.Campaign, error) {
	query := `
		SELECT id, owner_id, name, channel, base_template, status, total_messages,
		       sent_messages, execution_time_seconds, scheduled_at, started_at,
		       finished_at, config, created_at
		FROM campaigns WHERE owner_id = $1`
	if excludeTerminal {
		query += ` AND status NOT IN ('finished', 'canceled', 'failed')`
	}

	rows, err := s.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, apperrors.NewStoreReadErr(err)
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, apperrors.NewStoreReadErr(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCampaign(ctx context.Context, c *model.Campaign, recipientIDs []int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreWriteErr(err)
	}
	defer tx.Rollback()

	cfgRaw, err := json.Marshal(c.Config)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.TotalMessages = len(recipientIDs)
	if c.Status == "" {
		c.Status = model.CampaignPending
	}

	query := `
		INSERT INTO campaigns (owner_id, name, channel, base_template, status, total_messages,
		                        sent_messages, scheduled_at, config, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7,$8,$9)
		RETURNING id`
	err = tx.QueryRowContext(ctx, query, c.OwnerID, c.Name, c.Channel, c.BaseTemplate,
		string(c.Status), c.TotalMessages, c.ScheduledAt, cfgRaw, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return apperrors.NewStoreWriteErr(err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO messages (campaign_id, recipient_id, status) VALUES ($1,$2,$3)`)
	if err != nil {
		return apperrors.NewStoreWriteErr(err)
	}
	defer stmt.Close()

	for _, rid := range recipientIDs {
		if _, err := stmt.ExecContext(ctx, c.ID, rid, string(model.MessageWaiting)); err != nil {
			return apperrors.NewStoreWriteErr(err)
		}
	}

	return apperrors.NewStoreWriteErr(tx.Commit())
}

func (s *Store) GetCampaign(ctx context.Context, campaignID int64) (*model.Campaign, error) {
	query := `
		SELECT id, owner_id, name, channel, base_template, status, total_messages,
		       sent_messages, execution_time_seconds, scheduled_at, started_at,
		       finished_at, config, created_at
		FROM campaigns WHERE id=$1`
	row := s.DB.QueryRowContext(ctx, query, campaignID)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewCampaignNotFound(campaignID)
	}
	if err != nil {
		return nil, apperrors.NewStoreReadErr(err)
	}
	return &c, nil
}

// ClaimNextWaiting performs the claim as a single UPDATE ... RETURNING
// whose subquery selects the oldest waiting row with FOR UPDATE SKIP
// LOCKED, so concurrent claimers lock and take different rows and no
// row moves waiting -> sending twice.
func (s *Store) ClaimNextWaiting(ctx context.Context, campaignID int64, now time.Time) (*model.ClaimedMessage, error) {
	query := `
		UPDATE messages SET status = $1, sent_at = $2
		WHERE id = (
			SELECT id FROM messages
			WHERE campaign_id = $3 AND status = $4
			ORDER BY id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, campaign_id, recipient_id, rendered_content`

	var m model.ClaimedMessage
	err := s.DB.QueryRowContext(ctx, query, string(model.MessageSending), now, campaignID, string(model.MessageWaiting)).
		Scan(&m.ID, &m.CampaignID, &m.RecipientID, &m.RenderedContent)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrClaimLost
	}
	if err != nil {
		return nil, apperrors.NewStoreWriteErr(err)
	}
	m.Status = model.MessageSending
	m.SentAt = &now

	var r model.Recipient
	err = s.DB.QueryRowContext(ctx, `SELECT id, campaign_id, name, phone, message_body FROM recipients WHERE id=$1`, m.RecipientID).
		Scan(&r.ID, &r.CampaignID, &r.Name, &r.Phone, &r.MessageBody)
	if err != nil {
		return nil, apperrors.NewStoreReadErr(err)
	}
	m.Recipient = r

	if m.RenderedContent == "" {
		m.RenderedContent = r.MessageBody
		if _, err := s.DB.ExecContext(ctx, `UPDATE messages SET rendered_content=$1 WHERE id=$2`, m.RenderedContent, m.ID); err != nil {
			return nil, apperrors.NewStoreWriteErr(err)
		}
	}

	return &m, nil
}

func (s *Store) CommitTerminal(ctx context.Context, messageID int64, status model.MessageStatus, sentAt *time.Time, errMsg string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE messages SET status=$1, sent_at=$2, error_message=$3 WHERE id=$4`,
		string(status), sentAt, model.TruncateError(errMsg), messageID)
	if err != nil {
		return apperrors.NewStoreWriteErr(err)
	}
	return nil
}

func (s *Store) CountByStatus(ctx context.Context, campaignID int64, statuses ...model.MessageStatus) (int, error) {
	strs := make([]string, len(statuses))
	for i, st := range statuses {
		strs[i] = string(st)
	}
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE campaign_id=$1 AND status = ANY($2)`,
		campaignID, strs).Scan(&n)
	if err != nil {
		return 0, apperrors.NewStoreReadErr(err)
	}
	return n, nil
}

func (s *Store) LastSentAt(ctx context.Context, campaignID int64) (*time.Time, error) {
	var t sql.NullTime
	err := s.DB.QueryRowContext(ctx,
		`SELECT MAX(sent_at) FROM messages WHERE campaign_id=$1 AND sent_at IS NOT NULL`, campaignID).Scan(&t)
	if err != nil {
		return nil, apperrors.NewStoreReadErr(err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

func (s *Store) IncrementSentCounter(ctx context.Context, campaignID int64) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE campaigns SET sent_messages = sent_messages + 1 WHERE id=$1`, campaignID)
	if err != nil {
		return apperrors.NewStoreWriteErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperrors.NewCampaignNotFound(campaignID)
	}
	return nil
}

func (s *Store) RetryMessage(ctx context.Context, messageID int64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE messages SET status=$1, error_message='', sent_at=NULL WHERE id=$2 AND status=$3`,
		string(model.MessageWaiting), messageID, string(model.MessageFailed))
	if err != nil {
		return apperrors.NewStoreWriteErr(err)
	}
	return nil
}

func (s *Store) SweepStuckSending(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE messages SET status=$1, sent_at=NULL WHERE status=$2 AND sent_at < $3`,
		string(model.MessageWaiting), string(model.MessageSending), time.Now().Add(-olderThan))
	if err != nil {
		return 0, apperrors.NewStoreWriteErr(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
