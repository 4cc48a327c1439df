package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tavolo-club/reservation-service/internal/domain"
	"github.com/tavolo-club/reservation-service/internal/metrics"
	"github.com/tavolo-club/reservation-service/pkg/logger"
	"github.com/tavolo-club/reservation-service/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// FileStoreConfig tunes the JSON file store
type FileStoreConfig struct {
	// Path is the ledger file location
	Path string
	// SizeBudgetBytes caps the serialized payload; 0 disables the budget
	SizeBudgetBytes int64
}

// FileLedgerStore persists the ledger as a single JSON document with
// atomic temp-and-rename writes. When the canonical payload exceeds the
// size budget it falls back to a reduced schema that keeps every
// (userId, seats, date) triple and sheds only display fields.
type FileLedgerStore struct {
	path   string
	budget int64
	log    *logger.Logger

	// mu serializes writers; concurrent saves would race on the temp file
	mu sync.Mutex
}

// NewFileLedgerStore creates a file store, ensuring the parent directory
func NewFileLedgerStore(cfg *FileStoreConfig) (*FileLedgerStore, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("file store requires a path")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	return &FileLedgerStore{
		path:   cfg.Path,
		budget: cfg.SizeBudgetBytes,
		log:    logger.Get(),
	}, nil
}

// Load reads the ledger file. A missing file is an empty ledger, not an
// error; anything else unreadable surfaces as ErrStorageUnavailable.
func (s *FileLedgerStore) Load(ctx context.Context) ([]*domain.Experience, error) {
	_, span := telemetry.StartSpan(ctx, "repo.file.ledger.load")
	defer span.End()
	span.SetAttributes(attribute.String("path", s.path))

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			span.SetStatus(codes.Ok, "")
			return []*domain.Experience{}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	var exps []*domain.Experience
	if err := json.Unmarshal(data, &exps); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: ledger file is not valid JSON: %v", domain.ErrStorageUnavailable, err)
	}

	span.SetAttributes(attribute.Int("experiences", len(exps)))
	span.SetStatus(codes.Ok, "")
	return exps, nil
}

// Save persists the full ledger. Over-budget payloads trigger the
// reduced-schema fallback before the write is rejected outright.
func (s *FileLedgerStore) Save(ctx context.Context, exps []*domain.Experience) error {
	_, span := telemetry.StartSpan(ctx, "repo.file.ledger.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("path", s.path),
		attribute.Int("experiences", len(exps)),
	)

	data, err := json.Marshal(exps)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to serialize ledger: %w", err)
	}

	if s.budget > 0 && int64(len(data)) > s.budget {
		reduced := reduceForStorage(exps)
		data, err = json.Marshal(reduced)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to serialize reduced ledger: %w", err)
		}
		if int64(len(data)) > s.budget {
			span.SetStatus(codes.Error, "over budget after reduction")
			return fmt.Errorf("%w: ledger is %d bytes even in reduced form, budget is %d",
				domain.ErrStorageQuotaExceeded, len(data), s.budget)
		}
		s.log.Warn("ledger over size budget, persisted in reduced schema",
			zap.Int64("budget_bytes", s.budget),
			zap.Int("reduced_bytes", len(data)),
		)
		metrics.StorageFallbacks.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("reduced_schema", true))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// reduceForStorage strips display fields from every record while
// conserving seat counts, reservation identity and date placement. The
// reduced form round-trips through Load unchanged apart from the
// dropped fields.
func reduceForStorage(exps []*domain.Experience) []*domain.Experience {
	out := make([]*domain.Experience, len(exps))
	for i, exp := range exps {
		dup := exp.Clone()
		dup.Description = ""
		dup.Host = ""
		dup.Location = ""
		dup.PriceLabel = ""
		dup.ImageURL = ""
		for d := range dup.Dates {
			for r := range dup.Dates[d].Reservations {
				res := &dup.Dates[d].Reservations[r]
				res.UserName = ""
				res.UserAvatar = ""
			}
		}
		out[i] = dup
	}
	return out
}
