package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/3Health-View/backend/internal/domain"
	"github.com/3Health-View/backend/internal/event"
	"github.com/3Health-View/backend/internal/oura"
	"github.com/3Health-View/backend/internal/pipeline"
	"github.com/3Health-View/backend/internal/repository"
	apperrors "github.com/3Health-View/backend/pkg/errors"
)

// Sync triggers reported on display.synced events.
const (
	TriggerDisplayInfo  = "display-info"
	TriggerUpdateScores = "update-scores"
)

// RemoveDataMessage is returned to the caller once every collection is cleared.
const RemoveDataMessage = "Successfully deleted associated email data."

// seriesPaths maps each series to its usercollection endpoint.
var seriesPaths = map[domain.Series]string{
	domain.SeriesMain:      "/sleep",
	domain.SeriesSleep:     "/daily_sleep",
	domain.SeriesActivity:  "/daily_activity",
	domain.SeriesReadiness: "/daily_readiness",
	domain.SeriesSleepTime: "/sleep_time",
}

// displaySeries are the series the read path needs to build display rows.
var displaySeries = []domain.Series{domain.SeriesMain, domain.SeriesSleep, domain.SeriesActivity}

// Fetcher reads several provider series concurrently.
type Fetcher interface {
	FetchAll(ctx context.Context, accessToken string, reqs []oura.Request) (map[string]oura.Payload, error)
}

// Recommender sets the model recommendation on display records.
type Recommender interface {
	Recommend(records []domain.DisplayRecord) error
}

// Session identifies the caller of a data operation.
type Session struct {
	Email     string
	OuraToken string
	Token     string
}

// DataService implements the sync, display and removal operations.
type DataService struct {
	docs        repository.DocumentRepository
	cache       repository.DisplayCache
	fetcher     Fetcher
	recommender Recommender
	producer    *event.Producer
	logger      *slog.Logger
	now         func() time.Time
}

// NewDataService creates a new data service.
func NewDataService(
	docs repository.DocumentRepository,
	cache repository.DisplayCache,
	fetcher Fetcher,
	recommender Recommender,
	producer *event.Producer,
	logger *slog.Logger,
) *DataService {
	return &DataService{
		docs:        docs,
		cache:       cache,
		fetcher:     fetcher,
		recommender: recommender,
		producer:    producer,
		logger:      logger,
		now:         time.Now,
	}
}

// syncResult is the outcome of one fetch-and-join pass.
type syncResult struct {
	window    pipeline.Window
	documents map[domain.Series][]domain.Document
	records   []domain.DisplayRecord
}

// sync fetches series for the days after the latest stored display day,
// joins them into display rows and attaches recommendations. Nothing is
// persisted.
func (s *DataService) sync(ctx context.Context, sess Session, series []domain.Series) (*syncResult, error) {
	latest, err := s.docs.LatestDay(ctx, sess.Email)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("latest synced day: %w", err))
	}

	window, err := pipeline.NewWindow(latest, s.now())
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	reqs := make([]oura.Request, 0, len(series))
	for _, sr := range series {
		reqs = append(reqs, oura.Request{Name: string(sr), Path: seriesPaths[sr], Params: window.Params(sr)})
	}

	payloads, err := s.fetcher.FetchAll(ctx, sess.OuraToken, reqs)
	if err != nil {
		var fetchErr *oura.FetchError
		if errors.As(err, &fetchErr) {
			return nil, apperrors.Upstream(fmt.Sprintf("Error getting %s data", fetchErr.Source), fetchErr.Err)
		}
		return nil, apperrors.Internal(err)
	}

	documents := make(map[domain.Series][]domain.Document, len(series))
	for _, sr := range series {
		docs, err := payloads[string(sr)].Documents()
		if err != nil {
			var shapeErr *oura.ShapeError
			if errors.As(err, &shapeErr) {
				return nil, apperrors.UnexpectedPayload(shapeErr.Payload)
			}
			return nil, apperrors.Internal(err)
		}
		documents[sr] = docs
		syncRecordsTotal.WithLabelValues(string(sr)).Add(float64(len(docs)))
	}

	records := pipeline.Join(pipeline.Sources{
		Main:      documents[domain.SeriesMain],
		Sleep:     documents[domain.SeriesSleep],
		Activity:  documents[domain.SeriesActivity],
		SleepTime: documents[domain.SeriesSleepTime],
	}, sess.Email)

	if err := s.recommender.Recommend(records); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("recommend: %w", err))
	}

	return &syncResult{window: window, documents: documents, records: records}, nil
}

// DisplayInfo returns every display row of the caller, most recent first.
// A cached list for the session token is returned as is; otherwise the days
// since the last sync are fetched, stored and merged with the stored rows.
func (s *DataService) DisplayInfo(ctx context.Context, sess Session) ([]domain.DisplayRecord, error) {
	cached, ok, err := s.cache.Get(ctx, sess.Token)
	switch {
	case err != nil:
		displayCacheRequestsTotal.WithLabelValues("error").Inc()
		s.logger.WarnContext(ctx, "display cache read failed", slog.String("error", err.Error()))
	case ok:
		displayCacheRequestsTotal.WithLabelValues("hit").Inc()
		s.logger.DebugContext(ctx, "display cache hit", slog.String("email", sess.Email))
		return cached, nil
	default:
		displayCacheRequestsTotal.WithLabelValues("miss").Inc()
		s.logger.DebugContext(ctx, "display cache miss", slog.String("email", sess.Email))
	}

	stored, err := s.docs.ListDisplay(ctx, sess.Email)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("list display rows: %w", err))
	}

	res, err := s.sync(ctx, sess, displaySeries)
	if err != nil {
		return nil, err
	}

	if err := s.docs.UpsertDisplay(ctx, res.records); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("store display rows: %w", err))
	}

	merged := make([]domain.DisplayRecord, 0, len(res.records)+len(stored))
	merged = append(merged, res.records...)
	for _, rec := range stored {
		if rec.Day < res.window.Start {
			merged = append(merged, rec)
		}
	}
	domain.SortByDayDesc(merged)

	if err := s.cache.Set(ctx, sess.Token, merged); err != nil {
		s.logger.WarnContext(ctx, "display cache write failed", slog.String("error", err.Error()))
	}

	s.publishSynced(ctx, sess.Email, TriggerDisplayInfo, res.records)

	s.logger.InfoContext(ctx, "display info served",
		slog.String("email", sess.Email),
		slog.Int("new_records", len(res.records)),
		slog.Int("total_records", len(merged)),
	)
	return merged, nil
}

// UpdateScores runs a full sync of every series, stores the display rows
// and raw documents, and returns the new display rows.
func (s *DataService) UpdateScores(ctx context.Context, sess Session) ([]domain.DisplayRecord, error) {
	res, err := s.sync(ctx, sess, domain.AllSeries)
	if err != nil {
		return nil, err
	}

	// Auxiliary series are only stored alongside at least one sleep period.
	if len(res.documents[domain.SeriesMain]) == 0 {
		s.logger.InfoContext(ctx, "no new sleep periods, nothing stored",
			slog.String("email", sess.Email),
			slog.String("start_date", res.window.Start),
		)
		return res.records, nil
	}

	raw := make(map[domain.Series][]domain.RawRecord, len(domain.AllSeries))
	for _, sr := range domain.AllSeries {
		records := make([]domain.RawRecord, 0, len(res.documents[sr]))
		for _, doc := range res.documents[sr] {
			if sr == domain.SeriesActivity {
				if doc, err = pipeline.CompressActivity(doc); err != nil {
					return nil, apperrors.Internal(err)
				}
			}
			records = append(records, domain.NewRawRecord(sess.Email, doc))
		}
		raw[sr] = records
	}

	if err := s.docs.UpsertDisplay(ctx, res.records); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("store display rows: %w", err))
	}
	for _, sr := range domain.AllSeries {
		if err := s.docs.UpsertRaw(ctx, sr, raw[sr]); err != nil {
			return nil, apperrors.Internal(fmt.Errorf("store %s documents: %w", sr, err))
		}
	}

	s.publishSynced(ctx, sess.Email, TriggerUpdateScores, res.records)

	s.logger.InfoContext(ctx, "scores updated",
		slog.String("email", sess.Email),
		slog.String("start_date", res.window.Start),
		slog.Int("records", len(res.records)),
	)
	return res.records, nil
}

// RemoveData deletes the caller's documents from every data collection. The
// collections are cleared concurrently; any failure fails the operation.
func (s *DataService) RemoveData(ctx context.Context, email string) error {
	var (
		mu      sync.Mutex
		deleted = make(map[domain.Collection]int64)
	)

	var g errgroup.Group
	for _, c := range domain.Collections() {
		g.Go(func() error {
			n, err := s.docs.DeleteByEmail(ctx, c, email)
			if err != nil {
				return fmt.Errorf("delete %s: %w", c, err)
			}
			mu.Lock()
			deleted[c] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return apperrors.Internal(err)
	}

	if err := s.producer.PublishUserDataRemoved(ctx, email, deleted); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.data_removed event",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user data removed", slog.String("email", email))
	return nil
}

func (s *DataService) publishSynced(ctx context.Context, email, trigger string, records []domain.DisplayRecord) {
	if err := s.producer.PublishDisplaySynced(ctx, email, trigger, records); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish display.synced event",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}
}
