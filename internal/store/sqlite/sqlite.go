// Package sqlite implements the metadata-index ports (C5 SecureFileRepository
// and C7 DownloadLimitStore) over SQLite. It persists exactly the two tables
// described for Cinder: secure_file and access_link, the latter holding a
// cascading foreign key back to the former.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Import SQLite3 driver for database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/voltzug/cinder/internal/app"
	"github.com/voltzug/cinder/internal/domain"
)

// Ensure Store implements both storage ports it backs.
var (
	_ app.SecureFileRepository = (*Store)(nil)
	_ app.DownloadLimitStore   = (*Store)(nil)
)

// Store implements app.SecureFileRepository and app.DownloadLimitStore over
// a single SQLite database. The two ports share a store because access_link
// rows are only meaningful alongside the secure_file row they reference.
type Store struct {
	db *sql.DB
}

// New returns a new Store. The caller is responsible for providing a
// configured *sql.DB; the DSN must include "_foreign_keys=on" for the
// access_link cascade to fire on secure_file deletes. Schema creation runs
// if necessary.
func New(db *sql.DB) (*Store, error) {
	st := &Store{db: db}
	if err := st.init(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) init() error {
	const schema = `
CREATE TABLE IF NOT EXISTS secure_file (
	file_id TEXT PRIMARY KEY,
	link_id TEXT NOT NULL UNIQUE,
	owner_id TEXT,
	path_reference TEXT NOT NULL UNIQUE,
	sealed_envelope BLOB NOT NULL,
	sealed_salt BLOB NOT NULL,
	expiry_date INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_secure_file_link_id ON secure_file(link_id);
CREATE INDEX IF NOT EXISTS idx_secure_file_expiry_date ON secure_file(expiry_date);

CREATE TABLE IF NOT EXISTS access_link (
	link_id TEXT PRIMARY KEY,
	remaining_attempts INTEGER NOT NULL,
	gate_box BLOB NOT NULL,
	gate_context BLOB,
	last_attempt_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	file_id TEXT NOT NULL UNIQUE REFERENCES secure_file(file_id) ON DELETE CASCADE
);`
	_, err := s.db.Exec(schema)
	return err
}

// Save implements app.SecureFileRepository.Save. It writes only the
// secure_file columns; the access_link row is created separately by
// Initialize once the upload reaches GATE_INIT.
func (s *Store) Save(ctx context.Context, f domain.SecureFile) error {
	const q = `INSERT INTO secure_file
		(file_id, link_id, owner_id, path_reference, sealed_envelope, sealed_salt, expiry_date, created_at)
		VALUES (?,?,?,?,?,?,?,?)`
	_, err := s.db.ExecContext(ctx, q,
		f.FileID.String(),
		f.LinkID.String(),
		f.UserID.String(),
		f.BlobPath.String(),
		f.SealedEnvelope.Bytes(),
		f.SealedSalt.Bytes(),
		f.Specs.ExpiryDate.Time().Unix(),
		f.CreatedAt.Time().Unix(),
	)
	return err
}

// FindByLinkID implements app.SecureFileRepository.FindByLinkID, joining in
// the access_link row for RemainingAttempts/GateBox/GateContext.
func (s *Store) FindByLinkID(ctx context.Context, linkID domain.LinkID) (domain.SecureFile, error) {
	const q = `
SELECT sf.file_id, sf.link_id, sf.owner_id, sf.path_reference, sf.sealed_envelope, sf.sealed_salt,
       sf.expiry_date, sf.created_at, al.remaining_attempts, al.gate_box, al.gate_context
FROM secure_file sf
JOIN access_link al ON al.file_id = sf.file_id
WHERE sf.link_id = ?`
	row := s.db.QueryRowContext(ctx, q, linkID.String())
	f, err := scanSecureFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SecureFile{}, domain.ErrFileNotFound
	}
	return f, err
}

// DeleteByID implements app.SecureFileRepository.DeleteByID. The
// access_link row is removed by the ON DELETE CASCADE foreign key.
func (s *Store) DeleteByID(ctx context.Context, fileID domain.FileID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM secure_file WHERE file_id = ?`, fileID.String())
	return err
}

// DeleteByLinkID implements app.SecureFileRepository.DeleteByLinkID.
func (s *Store) DeleteByLinkID(ctx context.Context, linkID domain.LinkID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM secure_file WHERE link_id = ?`, linkID.String())
	return err
}

// FindExpiredBefore implements app.SecureFileRepository.FindExpiredBefore.
// It left-joins access_link since a record mid-upload-rollback may not have
// one yet; such rows report zero remaining attempts and empty gate material.
func (s *Store) FindExpiredBefore(ctx context.Context, t domain.Timestamp) ([]domain.SecureFile, error) {
	const q = `
SELECT sf.file_id, sf.link_id, sf.owner_id, sf.path_reference, sf.sealed_envelope, sf.sealed_salt,
       sf.expiry_date, sf.created_at,
       COALESCE(al.remaining_attempts, 0), COALESCE(al.gate_box, x''), al.gate_context
FROM secure_file sf
LEFT JOIN access_link al ON al.file_id = sf.file_id
WHERE sf.expiry_date < ?`
	rows, err := s.db.QueryContext(ctx, q, t.Time().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SecureFile
	for rows.Next() {
		f, err := scanSecureFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSecureFile(row rowScanner) (domain.SecureFile, error) {
	var (
		fileIDStr, linkIDStr, ownerIDStr, pathRefStr string
		sealedEnvelopeBytes, sealedSaltBytes         []byte
		expiryUnix, createdUnix                      int64
		remainingAttempts                            int
		gateBox                                      []byte
		gateContext                                  sql.NullString
	)
	if err := row.Scan(&fileIDStr, &linkIDStr, &ownerIDStr, &pathRefStr, &sealedEnvelopeBytes, &sealedSaltBytes,
		&expiryUnix, &createdUnix, &remainingAttempts, &gateBox, &gateContext); err != nil {
		return domain.SecureFile{}, err
	}

	fileID, err := domain.ParseFileID(fileIDStr)
	if err != nil {
		return domain.SecureFile{}, fmt.Errorf("decode file_id: %w", err)
	}
	linkID, err := domain.ParseLinkID(linkIDStr)
	if err != nil {
		return domain.SecureFile{}, fmt.Errorf("decode link_id: %w", err)
	}
	var ownerID domain.UserID
	if ownerIDStr != "" {
		if ownerID, err = domain.ParseUserID(ownerIDStr); err != nil {
			return domain.SecureFile{}, fmt.Errorf("decode owner_id: %w", err)
		}
	}
	sealedEnvelope, err := domain.ParseSealedBlob(sealedEnvelopeBytes)
	if err != nil {
		return domain.SecureFile{}, fmt.Errorf("decode sealed_envelope: %w", err)
	}
	sealedSalt, err := domain.ParseSealedBlob(sealedSaltBytes)
	if err != nil {
		return domain.SecureFile{}, fmt.Errorf("decode sealed_salt: %w", err)
	}

	var gateContextBytes []byte
	if gateContext.Valid {
		gateContextBytes = []byte(gateContext.String)
	}

	return domain.SecureFile{
		FileID:         fileID,
		LinkID:         linkID,
		UserID:         ownerID,
		BlobPath:       domain.PathReference(pathRefStr),
		SealedEnvelope: sealedEnvelope,
		SealedSalt:     sealedSalt,
		Specs: domain.FileSpecs{
			ExpiryDate: domain.NewTimestamp(unixTime(expiryUnix)),
		},
		RemainingAttempts: remainingAttempts,
		CreatedAt:         domain.NewTimestamp(unixTime(createdUnix)),
		GateBox:           gateBox,
		GateContext:       gateContextBytes,
	}, nil
}

// Initialize implements app.DownloadLimitStore.Initialize.
func (s *Store) Initialize(ctx context.Context, linkID domain.LinkID, specs domain.FileSpecs, gateBox, gateContext []byte) error {
	var fileID string
	err := s.db.QueryRowContext(ctx, `SELECT file_id FROM secure_file WHERE link_id = ?`, linkID.String()).Scan(&fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrInvalidLink
		}
		return err
	}
	now := time.Now().Unix() // row bookkeeping only, never read back into domain decisions
	const q = `
INSERT INTO access_link (link_id, remaining_attempts, gate_box, gate_context, created_at, updated_at, file_id)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(link_id) DO UPDATE SET
	remaining_attempts = excluded.remaining_attempts,
	gate_box = excluded.gate_box,
	gate_context = excluded.gate_context,
	updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, q, linkID.String(), specs.RetryCount, gateBox, gateContext, now, now, fileID)
	return err
}

// Get implements app.DownloadLimitStore.Get.
func (s *Store) Get(ctx context.Context, linkID domain.LinkID) (domain.DownloadLimit, error) {
	const q = `
SELECT al.remaining_attempts, al.last_attempt_at, sf.expiry_date
FROM access_link al
JOIN secure_file sf ON sf.file_id = al.file_id
WHERE al.link_id = ?`
	var (
		remaining   int
		lastAttempt sql.NullInt64
		expiryUnix  int64
	)
	err := s.db.QueryRowContext(ctx, q, linkID.String()).Scan(&remaining, &lastAttempt, &expiryUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DownloadLimit{}, domain.ErrInvalidLink
	}
	if err != nil {
		return domain.DownloadLimit{}, err
	}
	d := domain.DownloadLimit{
		LinkID:            linkID,
		RemainingAttempts: remaining,
		ExpiryDate:        domain.NewTimestamp(unixTime(expiryUnix)),
	}
	if lastAttempt.Valid {
		ts := domain.NewTimestamp(unixTime(lastAttempt.Int64))
		d.LastAttemptAt = &ts
	}
	return d, nil
}

// DecrementAttempts implements app.DownloadLimitStore.DecrementAttempts with
// a single guarded UPDATE, which SQLite's serialized writer makes atomic:
// two concurrent callers racing the same link can produce at most one
// success once remainingAttempts reaches zero.
func (s *Store) DecrementAttempts(ctx context.Context, linkID domain.LinkID, now domain.Timestamp) (domain.DownloadLimit, error) {
	const upd = `
UPDATE access_link
SET remaining_attempts = remaining_attempts - 1, last_attempt_at = ?, updated_at = ?
WHERE link_id = ? AND remaining_attempts > 0`
	nowUnix := now.Time().Unix()
	res, err := s.db.ExecContext(ctx, upd, nowUnix, nowUnix, linkID.String())
	if err != nil {
		return domain.DownloadLimit{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.DownloadLimit{}, err
	}
	if n == 0 {
		return domain.DownloadLimit{}, domain.ErrMaxAttemptsExceeded
	}
	return s.Get(ctx, linkID)
}

// Delete implements app.DownloadLimitStore.Delete.
func (s *Store) Delete(ctx context.Context, linkID domain.LinkID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM access_link WHERE link_id = ?`, linkID.String())
	return err
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
