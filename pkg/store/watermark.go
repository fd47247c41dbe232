package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetWatermark returns the last successful extraction time for pipeline, or
// nil if the pipeline has never completed a run.
func (s *Store) GetWatermark(ctx context.Context, pipeline string) (*time.Time, error) {
	var w Watermark
	err := s.db.WithContext(ctx).Where("pipeline_name = ?", pipeline).First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}
	ts := w.LastSuccessTS.UTC()
	return &ts, nil
}

// AdvanceWatermark moves pipeline's watermark to "to", truncated to
// microseconds. The stored value always moves forward: if "to" is not after
// the current watermark it becomes the current watermark plus one
// microsecond. The stored value is returned.
func (s *Store) AdvanceWatermark(ctx context.Context, pipeline string, to time.Time) (time.Time, error) {
	ctx, span := tracer.Start(ctx, "AdvanceWatermark")
	defer span.End()

	next := to.UTC().Truncate(time.Microsecond)

	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		var cur Watermark
		err := tx.Where("pipeline_name = ?", pipeline).First(&cur).Error
		switch {
		case err == nil:
			floor := cur.LastSuccessTS.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
			if next.Before(floor) {
				next = floor
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pipeline_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_success_ts"}),
		}).Create(&Watermark{PipelineName: pipeline, LastSuccessTS: next}).Error
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to advance watermark: %w", err)
	}

	s.logger.Info("advanced watermark", "pipeline", pipeline, "last_success_ts", next)
	return next, nil
}
