package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"termfolio/pkg/domain"
)

const migrateLockID int64 = 58120417

// ErrNotFound is returned by mutations addressed at a missing row.
var ErrNotFound = errors.New("record not found")

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&CommandModel{},
			&CommandResponseModel{},
			&UserModel{},
			&CommandExecutionModel{},
			&FileDownloadModel{},
			&DailyRollupModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ListActiveCommands returns active commands ordered by name.
func (s *GormStore) ListActiveCommands(ctx context.Context) ([]domain.Command, error) {
	var models []CommandModel
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Command, 0, len(models))
	for _, m := range models {
		res = append(res, commandFromModel(m))
	}
	return res, nil
}

// GetActiveCommand looks up an active command by exact name.
func (s *GormStore) GetActiveCommand(ctx context.Context, name string) (domain.Command, bool, error) {
	var model CommandModel
	if err := s.db.WithContext(ctx).First(&model, "name = ? AND active = ?", name, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Command{}, false, nil
		}
		return domain.Command{}, false, err
	}
	return commandFromModel(model), true, nil
}

// LatestResponse returns the highest active version for a command.
func (s *GormStore) LatestResponse(ctx context.Context, name string) (domain.CommandResponse, bool, error) {
	var model CommandResponseModel
	err := s.db.WithContext(ctx).
		Where("command_name = ? AND active = ?", name, true).
		Order("version DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.CommandResponse{}, false, nil
		}
		return domain.CommandResponse{}, false, err
	}
	return responseFromModel(model), true, nil
}

// UpsertCommand creates or updates a command keyed by name.
func (s *GormStore) UpsertCommand(ctx context.Context, cmd domain.Command) error {
	model := commandToModel(cmd)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "category", "response_kind", "active", "updated_at"}),
	}).Create(&model).Error
}

// UpsertCommandResponse creates or updates a response keyed by (command, version).
func (s *GormStore) UpsertCommandResponse(ctx context.Context, resp domain.CommandResponse) error {
	model := responseToModel(resp)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "command_name"}, {Name: "version"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "content_type", "active", "updated_at"}),
	}).Create(&model).Error
}

// NextResponseVersion returns one past the highest stored version.
func (s *GormStore) NextResponseVersion(ctx context.Context, commandName string) (int, error) {
	var current sql.NullInt64
	if err := s.db.WithContext(ctx).Model(&CommandResponseModel{}).
		Where("command_name = ?", commandName).
		Select("MAX(version)").
		Scan(&current).Error; err != nil {
		return 0, err
	}
	return int(current.Int64) + 1, nil
}

// TouchUser upserts the visitor for a session in one statement. Empty
// attributes never overwrite stored ones and last_visit_at never moves back.
func (s *GormStore) TouchUser(ctx context.Context, visit domain.Visit) (domain.User, error) {
	now := visit.At
	if now.IsZero() {
		now = time.Now().UTC()
	}
	model := UserModel{
		ID:           uuid.NewString(),
		SessionID:    visit.SessionID,
		Nickname:     visit.Nickname,
		FirstVisitAt: now,
		LastVisitAt:  now,
		Country:      visit.Country,
		Timezone:     visit.Timezone,
		IPAddress:    visit.IPAddress,
		UserAgent:    visit.UserAgent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	keep := func(col string) clause.Expr {
		return gorm.Expr(fmt.Sprintf("COALESCE(NULLIF(excluded.%[1]s, ''), user_models.%[1]s)", col))
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_visit_at": gorm.Expr("GREATEST(user_models.last_visit_at, excluded.last_visit_at)"),
			"nickname":      keep("nickname"),
			"timezone":      keep("timezone"),
			"country":       keep("country"),
			"ip_address":    keep("ip_address"),
			"user_agent":    keep("user_agent"),
			"updated_at":    now,
		}),
	}).Create(&model).Error
	if err != nil {
		return domain.User{}, err
	}
	user, ok, err := s.GetUserBySession(ctx, visit.SessionID)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, fmt.Errorf("user for session vanished after upsert: %w", ErrNotFound)
	}
	return user, nil
}

// GetUserBySession returns the visitor owning a session id.
func (s *GormStore) GetUserBySession(ctx context.Context, sessionID string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateUserProfile applies the non-nil fields of update.
func (s *GormStore) UpdateUserProfile(ctx context.Context, sessionID string, update ProfileUpdate) (domain.User, bool, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if update.Nickname != nil {
		updates["nickname"] = *update.Nickname
	}
	if update.Timezone != nil {
		updates["timezone"] = *update.Timezone
	}
	res := s.db.WithContext(ctx).Model(&UserModel{}).Where("session_id = ?", sessionID).Updates(updates)
	if res.Error != nil {
		return domain.User{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.User{}, false, nil
	}
	return s.GetUserBySession(ctx, sessionID)
}

// IncrementUserCommands bumps total_commands by one in SQL and returns the
// new value.
func (s *GormStore) IncrementUserCommands(ctx context.Context, userID string) (int64, error) {
	var model UserModel
	res := s.db.WithContext(ctx).Model(&model).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "total_commands"}}}).
		Where("id = ?", userID).
		UpdateColumn("total_commands", gorm.Expr("total_commands + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("increment user %s: %w", userID, ErrNotFound)
	}
	return model.TotalCommands, nil
}

// CountUserActivity returns lifetime execution and download counts.
func (s *GormStore) CountUserActivity(ctx context.Context, userID string) (int64, int64, error) {
	var executions, downloads int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&CommandExecutionModel{}).Where("user_id = ?", userID).Count(&executions).Error; err != nil {
		return 0, 0, err
	}
	if err := db.Model(&FileDownloadModel{}).Where("user_id = ?", userID).Count(&downloads).Error; err != nil {
		return 0, 0, err
	}
	return executions, downloads, nil
}

// DeleteUserData erases a visitor: downloads are deleted, executions are
// anonymized, then the user row is removed. All or nothing.
func (s *GormStore) DeleteUserData(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&FileDownloadModel{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&CommandExecutionModel{}).Where("user_id = ?", userID).Update("user_id", nil).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", userID).Delete(&UserModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete user %s: %w", userID, ErrNotFound)
		}
		return nil
	})
}

// AppendExecution writes one execution log row.
// Replaying an execution with a known ID is a no-op.
func (s *GormStore) AppendExecution(ctx context.Context, exec domain.CommandExecution) error {
	model := executionToModel(exec)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// AppendDownload writes one download log row.
func (s *GormStore) AppendDownload(ctx context.Context, dl domain.FileDownload) error {
	model := downloadToModel(dl)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// CountUsers counts visitors matching q.
func (s *GormStore) CountUsers(ctx context.Context, q UserQuery) (int64, error) {
	tx := whereRange(s.db.WithContext(ctx).Model(&UserModel{}), "last_visit_at", q.LastVisit)
	if q.MinCommands > 0 {
		tx = tx.Where("total_commands > ?", q.MinCommands)
	}
	var n int64
	err := tx.Count(&n).Error
	return n, err
}

// AverageUserCommands returns the mean totalCommands across visitors.
func (s *GormStore) AverageUserCommands(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Select("AVG(total_commands)").Scan(&avg).Error; err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

// CountExecutions counts execution rows matching q.
func (s *GormStore) CountExecutions(ctx context.Context, q ExecutionQuery) (int64, error) {
	var n int64
	err := s.executions(ctx, "", q).Count(&n).Error
	return n, err
}

// CountDownloads counts download rows matching q.
func (s *GormStore) CountDownloads(ctx context.Context, q DownloadQuery) (int64, error) {
	tx := whereRange(s.db.WithContext(ctx).Model(&FileDownloadModel{}), "download_time", q.Range)
	if q.SuccessOnly {
		tx = tx.Where("success = ?", true)
	}
	var n int64
	err := tx.Count(&n).Error
	return n, err
}

type commandStatRow struct {
	CommandName   string
	Executions    int64
	Successful    int64
	TotalResponse int64
}

// CommandStats groups executions by command, most executed first.
func (s *GormStore) CommandStats(ctx context.Context, q ExecutionQuery, limit int) ([]domain.CommandStat, error) {
	tx := s.executions(ctx, "", q).
		Select("command_name, COUNT(*) AS executions, COUNT(*) FILTER (WHERE success) AS successful, COALESCE(SUM(response_time_ms), 0) AS total_response").
		Group("command_name").
		Order("executions DESC, command_name ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []commandStatRow
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.CommandStat, 0, len(rows))
	for _, r := range rows {
		res = append(res, domain.CommandStat{
			Command:             r.CommandName,
			Executions:          r.Executions,
			Successful:          r.Successful,
			TotalResponseTimeMs: r.TotalResponse,
		})
	}
	return res, nil
}

// ExecutionTimeline buckets executions in SQL using the same keys as
// Period.Key.
func (s *GormStore) ExecutionTimeline(ctx context.Context, q ExecutionQuery, period Period) ([]domain.Bucket, error) {
	key, err := periodExpr(period, "execution_time")
	if err != nil {
		return nil, err
	}
	var rows []bucketRow
	err = s.executions(ctx, "", q).
		Select(key + " AS bucket, COUNT(*) AS total").
		Group("bucket").
		Order("bucket ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Bucket, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.Bucket{Key: row.Bucket, Count: row.Total})
	}
	return res, nil
}

func periodExpr(period Period, col string) (string, error) {
	utc := "(" + col + " AT TIME ZONE 'UTC')"
	switch period {
	case PeriodHourly:
		return "to_char(" + utc + ", 'YYYY-MM-DD HH24:00')", nil
	case PeriodDaily:
		return "to_char(" + utc + ", 'YYYY-MM-DD')", nil
	case PeriodWeekly:
		return "to_char(" + utc + "::date - EXTRACT(DOW FROM " + utc + ")::int, 'YYYY-MM-DD')", nil
	case PeriodMonthly:
		return "to_char(" + utc + ", 'YYYY-MM')", nil
	default:
		return "", fmt.Errorf("unknown period %q", period)
	}
}

type activityRow struct {
	ID             string
	UserID         *string
	CommandName    string
	ExecutionTime  time.Time
	ResponseTimeMs int64
	Success        bool
	ErrorMessage   string
	Nickname       string
	Country        string
}

// RecentActivity lists executions newest first with their visitor's
// nickname and country. limit <= 0 returns every match.
func (s *GormStore) RecentActivity(ctx context.Context, q ExecutionQuery, limit int) ([]domain.ActivityEntry, error) {
	tx := s.executions(ctx, "e", q).
		Select("e.id, e.user_id, e.command_name, e.execution_time, e.response_time_ms, e.success, e.error_message, COALESCE(u.nickname, '') AS nickname, COALESCE(u.country, '') AS country").
		Joins("LEFT JOIN user_models u ON u.id = e.user_id").
		Order("e.execution_time DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []activityRow
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ActivityEntry, 0, len(rows))
	for _, r := range rows {
		res = append(res, domain.ActivityEntry{
			CommandExecution: domain.CommandExecution{
				ID:             r.ID,
				UserID:         r.UserID,
				CommandName:    r.CommandName,
				ExecutionTime:  r.ExecutionTime,
				ResponseTimeMs: r.ResponseTimeMs,
				Success:        r.Success,
				ErrorMessage:   r.ErrorMessage,
			},
			Nickname: r.Nickname,
			Country:  r.Country,
		})
	}
	return res, nil
}

type userActivityRow struct {
	UserModel
	PeriodCommands  int64
	PeriodDownloads int64
}

// ActiveUsers lists visitors last seen inside r, busiest first, with their
// executions and downloads inside r.
func (s *GormStore) ActiveUsers(ctx context.Context, r TimeRange, limit int) ([]domain.UserActivity, error) {
	execCond, execArgs := rangeSQL("e.execution_time", r)
	dlCond, dlArgs := rangeSQL("d.download_time", r)
	args := append(execArgs, dlArgs...)
	tx := s.db.WithContext(ctx).Table("user_models AS u").
		Select(
			"u.*, "+
				"(SELECT COUNT(*) FROM command_execution_models e WHERE e.user_id = u.id AND "+execCond+") AS period_commands, "+
				"(SELECT COUNT(*) FROM file_download_models d WHERE d.user_id = u.id AND "+dlCond+") AS period_downloads",
			args...,
		)
	tx = whereRange(tx, "u.last_visit_at", r).Order("u.total_commands DESC, u.last_visit_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []userActivityRow
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.UserActivity, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.UserActivity{
			User:            userFromModel(row.UserModel),
			PeriodCommands:  row.PeriodCommands,
			PeriodDownloads: row.PeriodDownloads,
		})
	}
	return res, nil
}

type bucketRow struct {
	Bucket string
	Total  int64
}

// UserDistribution counts visitors seen inside r by country or timezone.
func (s *GormStore) UserDistribution(ctx context.Context, field DistributionField, r TimeRange) ([]domain.Bucket, error) {
	col, err := distributionColumn(field)
	if err != nil {
		return nil, err
	}
	tx := whereRange(s.db.WithContext(ctx).Model(&UserModel{}), "last_visit_at", r).
		Select(col + " AS bucket, COUNT(*) AS total").
		Where(col + " <> ''").
		Group(col).
		Order("total DESC, bucket ASC")
	var rows []bucketRow
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Bucket, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.Bucket{Key: row.Bucket, Count: row.Total})
	}
	return res, nil
}

// UpsertDailyRollup writes the aggregate for rollup.Date.
func (s *GormStore) UpsertDailyRollup(ctx context.Context, rollup domain.DailyRollup) error {
	model, err := rollupToModel(rollup)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"unique_visitors", "total_commands", "total_downloads", "most_popular_command", "top_commands", "updated_at"}),
	}).Create(&model).Error
}

// ListDailyRollups returns rollups inside r ordered by date.
func (s *GormStore) ListDailyRollups(ctx context.Context, r TimeRange) ([]domain.DailyRollup, error) {
	var models []DailyRollupModel
	if err := whereRange(s.db.WithContext(ctx), "date", r).Order("date ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.DailyRollup, 0, len(models))
	for _, m := range models {
		res = append(res, rollupFromModel(m))
	}
	return res, nil
}

// PurgeFailedBefore deletes failed executions and downloads older than cutoff.
func (s *GormStore) PurgeFailedBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	var executions, downloads int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("success = ? AND execution_time < ?", false, cutoff).Delete(&CommandExecutionModel{})
		if res.Error != nil {
			return res.Error
		}
		executions = res.RowsAffected
		res = tx.Where("success = ? AND download_time < ?", false, cutoff).Delete(&FileDownloadModel{})
		if res.Error != nil {
			return res.Error
		}
		downloads = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return executions, downloads, nil
}

// executions starts an execution query, optionally aliased.
func (s *GormStore) executions(ctx context.Context, alias string, q ExecutionQuery) *gorm.DB {
	tx := s.db.WithContext(ctx)
	prefix := ""
	if alias != "" {
		tx = tx.Table("command_execution_models AS " + alias)
		prefix = alias + "."
	} else {
		tx = tx.Model(&CommandExecutionModel{})
	}
	tx = whereRange(tx, prefix+"execution_time", q.Range)
	if q.SuccessOnly {
		tx = tx.Where(prefix+"success = ?", true)
	}
	return tx
}

func whereRange(tx *gorm.DB, col string, r TimeRange) *gorm.DB {
	if !r.From.IsZero() {
		tx = tx.Where(col+" >= ?", r.From)
	}
	if !r.To.IsZero() {
		tx = tx.Where(col+" < ?", r.To)
	}
	return tx
}

func rangeSQL(col string, r TimeRange) (string, []any) {
	conds := []string{"TRUE"}
	var args []any
	if !r.From.IsZero() {
		conds = append(conds, col+" >= ?")
		args = append(args, r.From)
	}
	if !r.To.IsZero() {
		conds = append(conds, col+" < ?")
		args = append(args, r.To)
	}
	return strings.Join(conds, " AND "), args
}

func distributionColumn(field DistributionField) (string, error) {
	switch field {
	case DistributionCountry:
		return "country", nil
	case DistributionTimezone:
		return "timezone", nil
	default:
		return "", fmt.Errorf("unknown distribution field %q", field)
	}
}

func commandToModel(c domain.Command) CommandModel {
	now := time.Now().UTC()
	created := c.CreatedAt
	if created.IsZero() {
		created = now
	}
	return CommandModel{
		Name:         c.Name,
		Description:  c.Description,
		Category:     string(c.Category),
		ResponseKind: string(c.ResponseKind),
		Active:       c.Active,
		CreatedAt:    created,
		UpdatedAt:    now,
	}
}

func commandFromModel(m CommandModel) domain.Command {
	return domain.Command{
		Name:         m.Name,
		Description:  m.Description,
		Category:     domain.Category(m.Category),
		ResponseKind: domain.ResponseKind(m.ResponseKind),
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func responseToModel(r domain.CommandResponse) CommandResponseModel {
	now := time.Now().UTC()
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = now
	}
	return CommandResponseModel{
		ID:          id,
		CommandName: r.CommandName,
		Version:     r.Version,
		Content:     r.Content,
		ContentType: r.ContentType,
		Active:      r.Active,
		CreatedAt:   created,
		UpdatedAt:   now,
	}
}

func responseFromModel(m CommandResponseModel) domain.CommandResponse {
	return domain.CommandResponse{
		ID:          m.ID,
		CommandName: m.CommandName,
		Version:     m.Version,
		Content:     m.Content,
		ContentType: m.ContentType,
		Active:      m.Active,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:            m.ID,
		SessionID:     m.SessionID,
		Nickname:      m.Nickname,
		FirstVisitAt:  m.FirstVisitAt,
		LastVisitAt:   m.LastVisitAt,
		TotalCommands: m.TotalCommands,
		Country:       m.Country,
		Timezone:      m.Timezone,
		IPAddress:     m.IPAddress,
		UserAgent:     m.UserAgent,
	}
}

func executionToModel(e domain.CommandExecution) CommandExecutionModel {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	return CommandExecutionModel{
		ID:             id,
		UserID:         e.UserID,
		CommandName:    e.CommandName,
		ExecutionTime:  e.ExecutionTime,
		ResponseTimeMs: e.ResponseTimeMs,
		Success:        e.Success,
		ErrorMessage:   e.ErrorMessage,
		IPAddress:      e.IPAddress,
		UserAgent:      e.UserAgent,
	}
}

func downloadToModel(d domain.FileDownload) FileDownloadModel {
	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	return FileDownloadModel{
		ID:           id,
		UserID:       d.UserID,
		FileName:     d.FileName,
		FileType:     d.FileType,
		DownloadTime: d.DownloadTime,
		Success:      d.Success,
		IPAddress:    d.IPAddress,
		UserAgent:    d.UserAgent,
	}
}

func rollupToModel(r domain.DailyRollup) (DailyRollupModel, error) {
	top := r.TopCommands
	if top == nil {
		top = []domain.CommandCount{}
	}
	raw, err := json.Marshal(top)
	if err != nil {
		return DailyRollupModel{}, fmt.Errorf("encode top commands: %w", err)
	}
	updated := r.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return DailyRollupModel{
		Date:               r.Date,
		UniqueVisitors:     r.UniqueVisitors,
		TotalCommands:      r.TotalCommands,
		TotalDownloads:     r.TotalDownloads,
		MostPopularCommand: r.MostPopularCommand,
		TopCommands:        datatypes.JSON(raw),
		UpdatedAt:          updated,
	}, nil
}

func rollupFromModel(m DailyRollupModel) domain.DailyRollup {
	var top []domain.CommandCount
	if len(m.TopCommands) > 0 {
		_ = json.Unmarshal(m.TopCommands, &top)
	}
	return domain.DailyRollup{
		Date:               m.Date,
		UniqueVisitors:     m.UniqueVisitors,
		TotalCommands:      m.TotalCommands,
		TotalDownloads:     m.TotalDownloads,
		MostPopularCommand: m.MostPopularCommand,
		TopCommands:        top,
		UpdatedAt:          m.UpdatedAt,
	}
}
