package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/skariga/absenku/internal/model"
	"github.com/skariga/absenku/internal/store"
)

// recordColumns is the column list used for SELECT statements on the
// attendance_records table.
const recordColumns = `id, user_id, to_char(date, 'YYYY-MM-DD'), check_in_at, check_out_at,
	check_in_lat, check_in_lng, status, check_out_status, lateness_minutes,
	created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// uniqueViolation is the SQLSTATE PostgreSQL reports for a UNIQUE conflict.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func queryGetUserWithSite(ctx context.Context, db executor, userID string) (*model.User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.active,
			s.id, s.name, s.latitude, s.longitude, s.radius_m,
			to_char(s.expected_check_in, 'HH24:MI'), to_char(s.expected_check_out, 'HH24:MI')
		FROM users u
		LEFT JOIN sites s ON s.id = u.site_id
		WHERE u.id = $1`,
		userID,
	)
	u, err := scanUserWithSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}

func queryFindOpenRecord(ctx context.Context, db executor, userID, date string, dir model.Direction) (*model.AttendanceRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM attendance_records WHERE user_id = $1 AND date = $2`
	if dir == model.CheckOut {
		q += ` AND status = 'VALID'`
	}
	rec, err := scanRecord(db.QueryRowContext(ctx, q, userID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open record: %w", err)
	}
	return rec, nil
}

func queryCreateRecord(ctx context.Context, db executor, r *model.AttendanceRecord) (*model.AttendanceRecord, error) {
	checkOutStatus := r.CheckOutStatus
	if checkOutStatus == "" {
		checkOutStatus = model.StatusNone
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO attendance_records (
			id, user_id, date, check_in_at, check_out_at,
			check_in_lat, check_in_lng, status, check_out_status, lateness_minutes,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12
		)`,
		r.ID,
		r.UserID,
		r.Date,
		r.CheckInAt,
		nullTimePtr(r.CheckOutAt),
		r.CheckInLat,
		r.CheckInLng,
		string(r.Status),
		string(checkOutStatus),
		r.LatenessMinutes,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("record for %s on %s: %w", r.UserID, r.Date, store.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	out := *r
	out.CheckOutStatus = checkOutStatus
	return &out, nil
}

// statusColumn maps a direction onto the column holding its status.
func statusColumn(dir model.Direction) string {
	if dir == model.CheckOut {
		return "check_out_status"
	}
	return "status"
}

func queryUpdateRecordStatus(ctx context.Context, db executor, id string, dir model.Direction, status model.Status, upd model.RecordUpdate) error {
	if !dir.IsValid() {
		return fmt.Errorf("update record %s: unknown direction %q", id, dir)
	}
	if !status.IsValid() {
		return fmt.Errorf("update record %s: unknown status %q", id, status)
	}

	var (
		sets   []string
		args   []any
		argIdx int
	)
	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	sets = append(sets, statusColumn(dir)+" = "+nextArg())
	args = append(args, string(status))
	if upd.CheckOutAt != nil {
		sets = append(sets, "check_out_at = "+nextArg())
		args = append(args, *upd.CheckOutAt)
	}
	if upd.LatenessMinutes != nil {
		sets = append(sets, "lateness_minutes = "+nextArg())
		args = append(args, *upd.LatenessMinutes)
	}
	sets = append(sets, "updated_at = now()")

	q := "UPDATE attendance_records SET " + strings.Join(sets, ", ") + " WHERE id = " + nextArg()
	args = append(args, id)

	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func queryGetRecord(ctx context.Context, db executor, id string) (*model.AttendanceRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

func queryListRecords(ctx context.Context, db executor, filter model.RecordFilter) ([]*model.AttendanceRecord, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.UserID != "" {
		whereClauses = append(whereClauses, "user_id = "+nextArg())
		args = append(args, filter.UserID)
	}
	if filter.From != "" {
		whereClauses = append(whereClauses, "date >= "+nextArg())
		args = append(args, filter.From)
	}
	if filter.To != "" {
		whereClauses = append(whereClauses, "date <= "+nextArg())
		args = append(args, filter.To)
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + recordColumns +
		" FROM attendance_records" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var recs []*model.AttendanceRecord
	var total int
	for rows.Next() {
		r, t, err := scanRecordWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan records: %w", err)
		}
		total = t
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan records: %w", err)
	}

	return recs, total, nil
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO attendance_events (topic, record_id, user_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, nullString(e.RecordID), nullString(e.UserID), jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, recordID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, record_id, user_id, payload, created_at
		FROM attendance_events
		WHERE record_id = $1
		ORDER BY created_at ASC, id ASC`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func parseSortClause(sort string) string {
	const fallback = "date DESC, check_in_at DESC"
	if sort == "" {
		return fallback
	}
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]bool{
		"date": true, "check_in_at": true, "check_out_at": true, "created_at": true,
		"updated_at": true, "lateness_minutes": true, "status": true, "user_id": true,
	}
	if !allowed[col] {
		return fallback
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
