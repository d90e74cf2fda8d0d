package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cms-timetable/internal/models"
)

type profileSource interface {
	UserInformation(ctx context.Context) (*models.CMSUserInformation, error)
	Assemblies(ctx context.Context) ([]models.CMSAssembly, error)
}

// ProfileService serves the student profile and assemblies of the CMS account.
type ProfileService struct {
	cms    profileSource
	cache  *CacheService
	loc    *time.Location
	logger *zap.Logger
}

// NewProfileService constructs the service. cache may be nil.
func NewProfileService(cms profileSource, cache *CacheService, loc *time.Location, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ProfileService{cms: cms, cache: cache, loc: loc, logger: logger}
}

// Profile returns the normalized student profile.
func (s *ProfileService) Profile(ctx context.Context) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	if s.cache.Get(ctx, CacheNamespaceProfile, &profile, "student") {
		return &profile, nil
	}

	info, err := s.cms.UserInformation(ctx)
	if err != nil {
		return nil, err
	}
	profile, err = NormalizeProfile(*info)
	if err != nil {
		s.logger.Warn("cms student profile rejected", zap.Error(err))
		return nil, err
	}
	s.cache.Set(ctx, CacheNamespaceProfile, profile, "student")
	return &profile, nil
}

// Assemblies returns the student's assemblies in CMS order.
func (s *ProfileService) Assemblies(ctx context.Context) ([]models.Assembly, error) {
	var assemblies []models.Assembly
	if s.cache.Get(ctx, CacheNamespaceProfile, &assemblies, "assemblies") {
		return assemblies, nil
	}

	raw, err := s.cms.Assemblies(ctx)
	if err != nil {
		return nil, err
	}
	assemblies, err = NormalizeAssemblies(raw, s.loc)
	if err != nil {
		s.logger.Warn("cms assemblies rejected", zap.Error(err))
		return nil, err
	}
	s.cache.Set(ctx, CacheNamespaceProfile, assemblies, "assemblies")
	return assemblies, nil
}
