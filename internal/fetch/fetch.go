// Package fetch downloads export files from the learning platform's web
// UI with a headless browser. It is pure I/O glue around the aggregation
// pipeline: everything it produces lands as files under the raw data
// directory and is consumed by the source loaders.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"gradecli/internal/config"
	apperrors "gradecli/internal/errors"
)

// ExportKind selects which export a request downloads.
type ExportKind string

const (
	// ExportGradebook downloads the course gradebook CSV.
	ExportGradebook ExportKind = "gradebook"
	// ExportAttendance downloads the attendance register CSV.
	ExportAttendance ExportKind = "attendance"
)

// Request asks for one export of one course.
type Request struct {
	CourseID string
	Kind     ExportKind
}

// Client drives a headless browser against the Brightspace web UI.
type Client struct {
	cfg     config.FetchConfig
	outDir  string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a fetch client writing downloads into outDir. The
// rate limiter spaces out navigations so bulk fetches stay polite.
func NewClient(cfg config.FetchConfig, outDir string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		outDir:  outDir,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsRPS), 1),
		logger:  logger,
	}
}

// FetchAll downloads every requested export. Requests run concurrently
// in separate browser tabs sharing one browser process; the shared rate
// limiter still serializes navigation bursts. The whole batch is bounded
// by the configured timeout, surfaced as ErrFetchTimeout.
func (c *Client) FetchAll(ctx context.Context, requests []Request) error {
	if len(requests) == 0 {
		return nil
	}
	if err := os.MkdirAll(c.outDir, 0755); err != nil {
		return apperrors.Wrap(apperrors.ErrFetchFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// Start the browser and authenticate once before fanning out.
	if err := chromedp.Run(browserCtx, c.loginTasks()); err != nil {
		return c.wrapRunError(err)
	}

	g, gctx := errgroup.WithContext(browserCtx)
	for _, req := range requests {
		req := req
		g.Go(func() error {
			tabCtx, cancelTab := chromedp.NewContext(gctx)
			defer cancelTab()
			return c.fetchOne(tabCtx, req)
		})
	}
	if err := g.Wait(); err != nil {
		return c.wrapRunError(err)
	}
	return nil
}

func (c *Client) fetchOne(ctx context.Context, req Request) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	url, err := c.exportURL(req)
	if err != nil {
		return err
	}
	c.logger.Info("Fetching export",
		slog.String("course", req.CourseID),
		slog.String("kind", string(req.Kind)),
		slog.String("url", url))

	start := time.Now()
	tasks := chromedp.Tasks{
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(c.outDir),
		chromedp.Navigate(url),
		chromedp.WaitVisible(`button[name="export"]`, chromedp.ByQuery),
		chromedp.Click(`button[name="export"]`, chromedp.ByQuery),
		// The export job runs server-side; the download link appears
		// when it completes.
		chromedp.WaitVisible(`a.d2l-link-download`, chromedp.ByQuery),
		chromedp.Click(`a.d2l-link-download`, chromedp.ByQuery),
		c.waitForDownload(req),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("fetch %s/%s: %w", req.CourseID, req.Kind, err)
	}
	c.logger.Info("Fetched export",
		slog.String("course", req.CourseID),
		slog.String("kind", string(req.Kind)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// loginTasks signs in with the configured credentials.
func (c *Client) loginTasks() chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.Navigate(c.cfg.BaseURL + "/d2l/login"),
		chromedp.WaitVisible(`#userName`, chromedp.ByID),
		chromedp.SetValue(`#userName`, c.cfg.Username, chromedp.ByID),
		chromedp.SetValue(`#password`, c.cfg.Password, chromedp.ByID),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.WaitVisible(`.d2l-homepage`, chromedp.ByQuery),
	}
}

func (c *Client) exportURL(req Request) (string, error) {
	switch req.Kind {
	case ExportGradebook:
		return fmt.Sprintf("%s/d2l/lms/grades/admin/importexport/export/options_edit.d2l?ou=%s",
			c.cfg.BaseURL, req.CourseID), nil
	case ExportAttendance:
		return fmt.Sprintf("%s/d2l/lms/attendance/admin/register_list.d2l?ou=%s",
			c.cfg.BaseURL, req.CourseID), nil
	default:
		return "", apperrors.Wrapf(apperrors.ErrFetchFailed, "unknown export kind %q", req.Kind)
	}
}

// waitForDownload polls the output directory until the export for this
// request lands (no in-progress .crdownload marker remains).
func (c *Client) waitForDownload(req Request) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				partial, _ := filepath.Glob(filepath.Join(c.outDir, "*.crdownload"))
				done, _ := filepath.Glob(filepath.Join(c.outDir, "*.csv"))
				if len(partial) == 0 && len(done) > 0 {
					return nil
				}
			}
		}
	})
}

func (c *Client) wrapRunError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.ErrFetchTimeout, err)
	}
	return apperrors.Wrap(apperrors.ErrFetchFailed, err)
}
