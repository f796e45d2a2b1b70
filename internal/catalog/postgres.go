package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

// ChangeChannel is the NOTIFY channel fed by the installs trigger.
const ChangeChannel = "installs_changes"

const selectColumns = `id, name, version, category, status, last_checked, checked_by, critical,
	file_name, file_url, file_upload_date, is_default`

// Postgres stores records in the installs table.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres constructs a Postgres store.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger.With("component", "catalog.postgres")}
}

// ListAll returns every row ordered by id.
func (p *Postgres) ListAll(ctx context.Context) ([]model.Install, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+selectColumns+` FROM installs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select installs: %w", err)
	}
	defer rows.Close()

	var out []model.Install
	for rows.Next() {
		rec, err := scanInstall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installs: %w", err)
	}
	return out, nil
}

// Insert writes rec with its caller-assigned id.
func (p *Postgres) Insert(ctx context.Context, rec model.Install) (model.Install, error) {
	var fileName, fileURL *string
	var fileDate *time.Time
	if rec.File != nil {
		fileName, fileURL = &rec.File.Name, &rec.File.URL
		fileDate = &rec.File.UploadDate.Time
	}
	now := time.Now().UTC()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO installs (id, name, version, category, status, last_checked, checked_by, critical,
			file_name, file_url, file_upload_date, is_default, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
	`, rec.ID, rec.Name, string(rec.Version), rec.Category, statusToDB(rec.Status), dateToDB(rec.LastChecked),
		rec.CheckedBy, rec.Critical, fileName, fileURL, fileDate, rec.IsDefault, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "installs_pkey" {
			return model.Install{}, fmt.Errorf("insert install %d: %w", rec.ID, ErrDuplicateID)
		}
		return model.Install{}, fmt.Errorf("insert install: %w", err)
	}
	return rec, nil
}

// Update writes only the columns the patch touches.
func (p *Postgres) Update(ctx context.Context, id int, patch model.Patch) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if patch.Name != nil {
		set("name", strings.TrimSpace(*patch.Name))
	}
	if patch.Version != nil {
		set("version", string(*patch.Version))
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.Status != nil {
		set("status", statusToDB(*patch.Status))
	}
	if patch.CheckedBy != nil {
		set("checked_by", *patch.CheckedBy)
	}
	if patch.Critical != nil {
		set("critical", *patch.Critical)
	}
	if patch.LastChecked != nil {
		set("last_checked", patch.LastChecked.Time)
	}
	if patch.ClearLastChecked {
		set("last_checked", nil)
	}
	if patch.File != nil {
		set("file_name", patch.File.Name)
		set("file_url", patch.File.URL)
		set("file_upload_date", patch.File.UploadDate.Time)
	}
	if patch.ClearFile {
		set("file_name", nil)
		set("file_url", nil)
		set("file_upload_date", nil)
	}
	set("updated_at", time.Now().UTC())

	args = append(args, id)
	stmt := fmt.Sprintf("UPDATE installs SET %s WHERE id=$%d", strings.Join(sets, ", "), len(args))
	tag, err := p.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update install %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update install %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes one row.
func (p *Postgres) Delete(ctx context.Context, id int) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM installs WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete install %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete install %d: %w", id, ErrNotFound)
	}
	return nil
}

// MaxID returns the highest id or 0.
func (p *Postgres) MaxID(ctx context.Context) (int, error) {
	var max int
	if err := p.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM installs`).Scan(&max); err != nil {
		return 0, fmt.Errorf("select max id: %w", err)
	}
	return max, nil
}

// Subscribe takes a connection out of the pool and LISTENs on ChangeChannel
// until the subscription is closed or ctx ends.
func (p *Postgres) Subscribe(ctx context.Context, fn func(model.ChangeEvent)) (Subscription, error) {
	pooled, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	sub := &pgSubscription{cancel: cancel, conn: conn}
	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		for {
			n, err := conn.WaitForNotification(loopCtx)
			if err != nil {
				if loopCtx.Err() == nil {
					p.logger.Error("change subscription stopped", "error", err)
				}
				return
			}
			ev, err := decodeNotification(n.Payload)
			if err != nil {
				p.logger.Warn("dropping malformed change notification", "error", err)
				continue
			}
			fn(ev)
		}
	}()
	return sub, nil
}

type pgSubscription struct {
	cancel context.CancelFunc
	conn   *pgx.Conn
	wg     sync.WaitGroup
	once   sync.Once
}

func (s *pgSubscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.conn.Close(ctx)
	})
	return err
}

// notification mirrors the JSON built by the notify_installs_change trigger.
type notification struct {
	Op  string `json:"op"`
	Row struct {
		ID             int     `json:"id"`
		Name           string  `json:"name"`
		Version        string  `json:"version"`
		Category       string  `json:"category"`
		Status         *bool   `json:"status"`
		LastChecked    *string `json:"last_checked"`
		CheckedBy      string  `json:"checked_by"`
		Critical       bool    `json:"critical"`
		FileName       *string `json:"file_name"`
		FileURL        *string `json:"file_url"`
		FileUploadDate *string `json:"file_upload_date"`
		IsDefault      bool    `json:"is_default"`
	} `json:"row"`
}

func decodeNotification(payload string) (model.ChangeEvent, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("decode payload: %w", err)
	}
	var kind model.ChangeKind
	switch n.Op {
	case "INSERT":
		kind = model.ChangeInsert
	case "UPDATE":
		kind = model.ChangeUpdate
	case "DELETE":
		kind = model.ChangeDelete
	default:
		return model.ChangeEvent{}, fmt.Errorf("unknown op %q", n.Op)
	}

	r := n.Row
	rec := model.Install{
		ID:        r.ID,
		Name:      r.Name,
		Version:   model.Version(r.Version),
		Category:  r.Category,
		Status:    statusFromDB(r.Status),
		CheckedBy: r.CheckedBy,
		Critical:  r.Critical,
		IsDefault: r.IsDefault,
	}
	if r.LastChecked != nil {
		d, err := model.ParseDate(*r.LastChecked)
		if err != nil {
			return model.ChangeEvent{}, err
		}
		rec.LastChecked = &d
	}
	if r.FileName != nil {
		doc := model.Document{Name: *r.FileName}
		if r.FileURL != nil {
			doc.URL = *r.FileURL
		}
		if r.FileUploadDate != nil {
			d, err := model.ParseDate(*r.FileUploadDate)
			if err != nil {
				return model.ChangeEvent{}, err
			}
			doc.UploadDate = d
		}
		rec.File = &doc
	}
	return model.ChangeEvent{Kind: kind, Install: rec}, nil
}

func scanInstall(row pgx.Row) (model.Install, error) {
	var (
		rec         model.Install
		version     string
		status      *bool
		lastChecked *time.Time
		fileName    *string
		fileURL     *string
		fileDate    *time.Time
	)
	if err := row.Scan(&rec.ID, &rec.Name, &version, &rec.Category, &status, &lastChecked, &rec.CheckedBy,
		&rec.Critical, &fileName, &fileURL, &fileDate, &rec.IsDefault); err != nil {
		return model.Install{}, fmt.Errorf("scan install: %w", err)
	}
	rec.Version = model.Version(version)
	rec.Status = statusFromDB(status)
	if lastChecked != nil {
		d := model.NewDate(*lastChecked)
		rec.LastChecked = &d
	}
	if fileName != nil {
		doc := model.Document{Name: *fileName}
		if fileURL != nil {
			doc.URL = *fileURL
		}
		if fileDate != nil {
			doc.UploadDate = model.NewDate(*fileDate)
		}
		rec.File = &doc
	}
	return rec, nil
}

// The status column is a nullable boolean: NULL unchecked, true good, false bad.
func statusToDB(s model.Status) *bool {
	switch s {
	case model.StatusGood:
		v := true
		return &v
	case model.StatusBad:
		v := false
		return &v
	}
	return nil
}

func statusFromDB(v *bool) model.Status {
	switch {
	case v == nil:
		return model.StatusUnchecked
	case *v:
		return model.StatusGood
	default:
		return model.StatusBad
	}
}

func dateToDB(d *model.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
