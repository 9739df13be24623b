package readmodel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/gigboard/internal/domain/project"
	"github.com/rpggio/gigboard/internal/ledger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rpggio/gigboard/internal/readmodel"

// maxPrealloc bounds the initial slice capacity taken from an untrusted count.
const maxPrealloc = 4096

// Builder performs full scans of the ledger into snapshots.
type Builder struct {
	reader ledger.Reader
	now    func() time.Time
	logger *slog.Logger
	tracer trace.Tracer
}

// NewBuilder creates a Builder reading from reader. A nil clock uses time.Now.
func NewBuilder(reader ledger.Reader, now func() time.Time, logger *slog.Logger) *Builder {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		reader: reader,
		now:    now,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Build reads the count, then every record in index order, normalizing each.
// Any failure aborts the build; no partial snapshot is returned.
func (b *Builder) Build(ctx context.Context) (_ *Snapshot, err error) {
	ctx, span := b.tracer.Start(ctx, "readmodel.build")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	count, err := b.reader.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading record count: %w", err)
	}
	span.SetAttributes(attribute.Int64("ledger.record_count", int64(count)))

	now := b.now()
	projects := make([]project.Project, 0, min(count, maxPrealloc))
	for i := uint64(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("building snapshot: %w", err)
		}
		rec, err := b.reader.RecordAt(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("reading record %d of %d: %w", i, count, err)
		}
		rec.ID = i
		p, err := project.Normalize(rec, now)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}

	b.logger.Debug("snapshot built", "records", count)
	return newSnapshot(projects, now), nil
}
