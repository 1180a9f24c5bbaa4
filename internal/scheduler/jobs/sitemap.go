package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creco/imaikura/internal/inflation"
	"github.com/creco/imaikura/internal/seo"
	"github.com/creco/imaikura/pkg/logger"
)

// TableSource provides the loaded CPI table. *inflation.Service implements it.
type TableSource interface {
	Table() *inflation.CpiTable
	Now() time.Time
}

// SitemapJob regenerates sitemap.xml and, when a prerenderer is set, the
// static pages
// ⭐ SSOT: 静的ファイル再生成スケジュールはこのジョブだけ
type SitemapJob struct {
	source      TableSource
	plan        *seo.Plan
	domain      string
	outDir      string
	prerenderer *seo.Prerenderer
	schedule    string
	logger      *logger.Logger
}

// NewSitemapJob creates a new sitemap job. prerenderer may be nil.
func NewSitemapJob(
	source TableSource,
	plan *seo.Plan,
	domain, outDir string,
	prerenderer *seo.Prerenderer,
	schedule string,
	log *logger.Logger,
) *SitemapJob {
	return &SitemapJob{
		source:      source,
		plan:        plan,
		domain:      domain,
		outDir:      outDir,
		prerenderer: prerenderer,
		schedule:    schedule,
		logger:      log,
	}
}

// Name returns the job name
func (j *SitemapJob) Name() string {
	return "sitemap"
}

// Schedule returns the cron schedule (daily at 4 AM by default)
func (j *SitemapJob) Schedule() string {
	return j.schedule
}

// Run writes outDir/sitemap.xml, then the pages
func (j *SitemapJob) Run(ctx context.Context) error {
	table := j.source.Table()
	if table == nil {
		return errors.New("CPI table not loaded")
	}

	routes := j.plan.Routes(table)

	// 1. Sitemap
	path, err := WriteSitemapFile(j.outDir, j.domain, routes, j.source.Now())
	if err != nil {
		return err
	}
	j.logger.WithFields(map[string]interface{}{
		"path":   path,
		"routes": len(routes),
	}).Info("Sitemap generated")

	// 2. Pages
	if j.prerenderer == nil {
		return nil
	}
	if _, err := j.prerenderer.Generate(ctx, routes, j.outDir); err != nil {
		return fmt.Errorf("prerender: %w", err)
	}
	return nil
}

// WriteSitemapFile atomically replaces outDir/sitemap.xml and returns its path
func WriteSitemapFile(outDir, domain string, routes []seo.Route, today time.Time) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(outDir, "sitemap-*.xml")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := seo.WriteSitemap(tmp, domain, routes, today); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close sitemap: %w", err)
	}

	path := filepath.Join(outDir, "sitemap.xml")
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move sitemap: %w", err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return "", fmt.Errorf("failed to chmod sitemap: %w", err)
	}
	return path, nil
}
