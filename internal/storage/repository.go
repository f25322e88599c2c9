package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

var ErrNotFound = errors.New("not found")

const deviceColumns = `id, device_type, location, title, icon, level, last_level, scale_title,
	tags_json, visibility, permanently_hidden, creator_id, update_time`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (model.Device, error) {
	var (
		d                  model.Device
		level, lastLevel   string
		tagsJSON           string
		visibility, hidden bool
		updateTime         int64
	)
	if err := row.Scan(
		&d.ID, &d.DeviceType, &d.Location, &d.Metrics.Title, &d.Metrics.Icon, &level, &lastLevel,
		&d.Metrics.ScaleTitle, &tagsJSON, &visibility, &hidden, &d.CreatorID, &updateTime,
	); err != nil {
		return model.Device{}, err
	}
	d.Metrics.Level = model.Level(level)
	d.Metrics.LastLevel = model.Level(lastLevel)
	d.Tags = decodeTags(tagsJSON)
	d.Visibility = visibility
	d.PermanentlyHidden = hidden
	if updateTime > 0 {
		d.UpdateTime = uint64(updateTime)
	}
	return d, nil
}

func (r *Repository) ListDevices(ctx context.Context) ([]model.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *Repository) GetDevice(ctx context.Context, id string) (model.Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, strings.TrimSpace(id))
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Device{}, fmt.Errorf("%w: device %s", ErrNotFound, id)
	}
	return d, err
}

// UpsertDevice inserts or replaces a device and reports whether it was new.
func (r *Repository) UpsertDevice(ctx context.Context, d model.Device) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM devices WHERE id = ?`, d.ID).Scan(&existing)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return false, err
	}

	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO devices (id, device_type, location, title, icon, level, last_level, scale_title,
			tags_json, visibility, permanently_hidden, creator_id, update_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			device_type=excluded.device_type,
			location=excluded.location,
			title=excluded.title,
			icon=excluded.icon,
			level=excluded.level,
			last_level=excluded.last_level,
			scale_title=excluded.scale_title,
			tags_json=excluded.tags_json,
			visibility=excluded.visibility,
			permanently_hidden=excluded.permanently_hidden,
			creator_id=excluded.creator_id,
			update_time=excluded.update_time,
			updated_at=excluded.updated_at`,
		d.ID, d.DeviceType, d.Location, d.Metrics.Title, d.Metrics.Icon, string(d.Metrics.Level),
		string(d.Metrics.LastLevel), d.Metrics.ScaleTitle, encodeTags(d.Tags), d.Visibility,
		d.PermanentlyHidden, d.CreatorID, int64(d.UpdateTime), now, now,
	); err != nil {
		return false, err
	}
	return created, tx.Commit()
}

// UpdateLevel stores a new level, keeping the previous one as last level.
func (r *Repository) UpdateLevel(ctx context.Context, id string, level, lastLevel model.Level, updateTime uint64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET level = ?, last_level = ?, update_time = ?, updated_at = ?
		WHERE id = ?`,
		string(level), string(lastLevel), int64(updateTime), formatTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: device %s", ErrNotFound, id)
	}
	return nil
}

func (r *Repository) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title FROM locations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.Location{}
	for rows.Next() {
		var loc model.Location
		if err := rows.Scan(&loc.ID, &loc.Title); err != nil {
			return nil, err
		}
		result = append(result, loc)
	}
	return result, rows.Err()
}

func (r *Repository) UpsertLocations(ctx context.Context, locations []model.Location) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO locations (id, title) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, loc := range locations {
		if _, err := stmt.ExecContext(ctx, loc.ID, strings.TrimSpace(loc.Title)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) InsertCommand(ctx context.Context, rec model.CommandRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO command_log (id, device_id, command, params_json, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DeviceID, rec.Command, encodeParams(rec.Params), rec.Source, formatTime(rec.CreatedAt),
	)
	return err
}

// ListCommands returns the commands of a device, most recently recorded first.
func (r *Repository) ListCommands(ctx context.Context, deviceID string, limit int) ([]model.CommandRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, command, params_json, source, created_at
		FROM command_log WHERE device_id = ?
		ORDER BY rowid DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.CommandRecord{}
	for rows.Next() {
		var (
			rec       model.CommandRecord
			params    string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.Command, &params, &rec.Source, &createdAt); err != nil {
			return nil, err
		}
		rec.Params = decodeParams(params)
		rec.CreatedAt = parseTime(createdAt)
		result = append(result, rec)
	}
	return result, rows.Err()
}
