package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/repositories"
)

// PublishService snapshots draft projects into immutable versions.
type PublishService interface {
	// Publish clones the draft's full graph into a new version and resets the
	// draft's dirty flag. Only roots can be published.
	Publish(ctx context.Context, rootID uuid.UUID) (*models.Project, error)
	ListVersions(ctx context.Context, rootID uuid.UUID) ([]*models.Project, error)
	// GetVersionGraph returns a published version's full graph. Versions are
	// immutable, so reads go through a cache when one is configured.
	GetVersionGraph(ctx context.Context, versionID uuid.UUID) (*models.ProjectGraph, error)
}

type publishService struct {
	projects repositories.ProjectRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewPublishService creates a publish service. cache may be nil, in which
// case version graphs are always read from the database.
func NewPublishService(projects repositories.ProjectRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) PublishService {
	return &publishService{
		projects: projects,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.Named("publish-service"),
	}
}

var _ PublishService = (*publishService)(nil)

func (s *publishService) Publish(ctx context.Context, rootID uuid.UUID) (*models.Project, error) {
	root, err := s.projects.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if !root.IsRoot() {
		return nil, apperrors.ErrNotRoot
	}

	draft, err := s.projects.GetGraph(ctx, rootID)
	if err != nil {
		return nil, err
	}

	graph, err := buildVersionGraph(draft, rootID)
	if err != nil {
		s.logger.Error("Failed to build version graph",
			zap.String("root_id", rootID.String()),
			zap.Error(err))
		return nil, err
	}

	// The draft's updated_at from the graph read travels along; if anything
	// mutates the draft before the version transaction locks the root, the
	// publish fails instead of snapshotting stale content.
	version, err := s.projects.CreateVersion(ctx, rootID, graph, draft.Project.UpdatedAt)
	if err != nil {
		s.logger.Error("Failed to publish project",
			zap.String("root_id", rootID.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Published project version",
		zap.String("root_id", rootID.String()),
		zap.String("version_id", graph.Project.ID.String()),
		zap.Int("version", version),
		zap.Int("page_count", len(graph.Pages)),
		zap.Int("layer_count", len(graph.Layers)))

	published := graph.Project
	published.Version = version
	return &published, nil
}

func (s *publishService) ListVersions(ctx context.Context, rootID uuid.UUID) ([]*models.Project, error) {
	root, err := s.projects.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if !root.IsRoot() {
		return nil, apperrors.ErrNotRoot
	}
	return s.projects.ListVersions(ctx, rootID)
}

func (s *publishService) GetVersionGraph(ctx context.Context, versionID uuid.UUID) (*models.ProjectGraph, error) {
	if graph := s.cachedGraph(ctx, versionID); graph != nil {
		return graph, nil
	}

	graph, err := s.projects.GetGraph(ctx, versionID)
	if err != nil {
		return nil, err
	}

	// Drafts are mutable and never cached; only published versions are safe
	// to serve stale-free without invalidation.
	if !graph.Project.IsRoot() {
		s.storeGraph(ctx, versionID, graph)
	}

	return graph, nil
}

func (s *publishService) cachedGraph(ctx context.Context, versionID uuid.UUID) *models.ProjectGraph {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, versionCacheKey(versionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Version cache read failed", zap.Error(err))
		}
		return nil
	}

	var graph models.ProjectGraph
	if err := json.Unmarshal(data, &graph); err != nil {
		s.logger.Warn("Version cache entry corrupt",
			zap.String("version_id", versionID.String()),
			zap.Error(err))
		return nil
	}
	return &graph
}

func (s *publishService) storeGraph(ctx context.Context, versionID uuid.UUID, graph *models.ProjectGraph) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(graph)
	if err != nil {
		s.logger.Warn("Failed to marshal version graph for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, versionCacheKey(versionID), data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("Version cache write failed", zap.Error(err))
	}
}

func versionCacheKey(versionID uuid.UUID) string {
	return fmt.Sprintf("atlasform:version:%s", versionID)
}
