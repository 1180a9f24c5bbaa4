package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/creco/imaikura/internal/scheduler/jobs"
	"github.com/creco/imaikura/internal/seo"
)

// sitemapCmd represents the sitemap command
var sitemapCmd = &cobra.Command{
	Use:   "sitemap",
	Short: "sitemap.xml を生成",
	Long: `ルート定義と CPI データから sitemap.xml を生成します。
CPI データのない年・通貨のルートは含まれません。

Example:
  go run ./cmd/imaikura sitemap
  go run ./cmd/imaikura sitemap --out public
  go run ./cmd/imaikura sitemap --stdout`,
	RunE: runSitemap,
}

// prerenderCmd represents the prerender command
var prerenderCmd = &cobra.Command{
	Use:   "prerender",
	Short: "計算ページの HTML を事前生成",
	Long: `sitemap と同じルートについて、メタタグと構造化データを埋め込んだ
HTML を {out}/{year}/{currency}/{amount}/index.html に書き出します。

--from-sitemap を指定すると、既存の sitemap.xml に載っているルートだけを
生成します。

Example:
  go run ./cmd/imaikura prerender
  go run ./cmd/imaikura prerender --out dist
  go run ./cmd/imaikura prerender --from-sitemap dist/sitemap.xml`,
	RunE: runPrerender,
}

var (
	siteOutDir    string
	sitemapStdout bool
	fromSitemap   string
)

func init() {
	rootCmd.AddCommand(sitemapCmd)
	rootCmd.AddCommand(prerenderCmd)

	sitemapCmd.Flags().StringVar(&siteOutDir, "out", "", "出力ディレクトリ (default is OUTPUT_DIR)")
	sitemapCmd.Flags().BoolVar(&sitemapStdout, "stdout", false, "標準出力に書き出す")
	prerenderCmd.Flags().StringVar(&siteOutDir, "out", "", "出力ディレクトリ (default is OUTPUT_DIR)")
	prerenderCmd.Flags().StringVar(&fromSitemap, "from-sitemap", "", "ルートを読み込む sitemap.xml")
}

// siteRoutes loads the CPI table and expands the route plan
func siteRoutes(cmd *cobra.Command) (*app, []seo.Route, error) {
	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	if siteOutDir != "" {
		a.cfg.Site.OutputDir = siteOutDir
	}

	if err := a.loadCPI(cmd.Context()); err != nil {
		a.Close()
		return nil, nil, err
	}

	plan, err := seo.LoadPlan(a.cfg.Site.RoutePlanPath)
	if err != nil {
		a.Close()
		return nil, nil, err
	}

	return a, plan.Routes(a.service.Table()), nil
}

func runSitemap(cmd *cobra.Command, args []string) error {
	a, routes, err := siteRoutes(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if sitemapStdout {
		return seo.WriteSitemap(os.Stdout, a.cfg.Site.Domain, routes, a.service.Now())
	}

	path, err := jobs.WriteSitemapFile(a.cfg.Site.OutputDir, a.cfg.Site.Domain, routes, a.service.Now())
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s (%d URLs)", path, len(routes)+1))
	return nil
}

// sitemapRoutes reads the calculation routes listed in a sitemap file
func sitemapRoutes(path, domain string) ([]seo.Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sitemap: %w", err)
	}
	defer f.Close()

	return seo.ReadSitemapRoutes(f, domain)
}

func runPrerender(cmd *cobra.Command, args []string) error {
	a, routes, err := siteRoutes(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if fromSitemap != "" {
		routes, err = sitemapRoutes(fromSitemap, a.cfg.Site.Domain)
		if err != nil {
			return err
		}
		PrintInfo(fmt.Sprintf("%s から %d ルートを読み込みました", fromSitemap, len(routes)))
	}

	renderer, err := seo.NewRenderer(a.cfg.Site)
	if err != nil {
		return err
	}

	stats, err := seo.NewPrerenderer(a.service, renderer, a.log).
		Generate(cmd.Context(), routes, a.cfg.Site.OutputDir)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%d pages written to %s", stats.Written, a.cfg.Site.OutputDir))
	if stats.Skipped > 0 {
		PrintWarning(fmt.Sprintf("%d routes skipped", stats.Skipped))
	}
	return nil
}
