package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"wayback-news/internal/config"
	"wayback-news/internal/observability"
)

// Renderer loads pages in headless Chrome. The browser is started on first use.
type Renderer struct {
	cfg      *config.Config
	logger   *observability.Logger
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func NewRenderer(cfg *config.Config, logger *observability.Logger) *Renderer {
	return &Renderer{cfg: cfg, logger: logger}
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Bin(r.cfg.Rod.ChromePath).Headless(true)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	r.logger.Info("Headless browser started", "chrome_path", r.cfg.Rod.ChromePath)
	r.launcher = l
	r.browser = browser
	return browser, nil
}

// Render navigates to urlStr and returns the DOM serialised after load.
func (r *Renderer) Render(ctx context.Context, urlStr string) (string, error) {
	browser, err := r.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Warn("Failed to close page", "url", urlStr, "error", err.Error())
		}
	}()

	p := page.Context(ctx).Timeout(r.cfg.GetRodPageTimeout())
	if err := p.Navigate(urlStr); err != nil {
		return "", fmt.Errorf("navigate %s: %w", urlStr, err)
	}
	if err := p.Timeout(r.cfg.GetRodWaitLoadTimeout()).WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", urlStr, err)
	}

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read html %s: %w", urlStr, err)
	}
	return html, nil
}

func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.launcher.Kill()
	r.browser = nil
	r.launcher = nil
	return err
}
