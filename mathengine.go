package texbook

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-texbook/internal/config"
	"github.com/alnah/go-texbook/internal/pipeline"
)

// Compile-time interface checks.
var (
	_ MathRenderer = (*chromeKatex)(nil)
	_ MathRenderer = (*pipeline.KatexCLI)(nil)
)

// renderJS runs in the page after katex.min.js has been loaded.
const renderJS = `(src, opts) => katex.renderToString(src, opts)`

// newMathEngine returns the engine named in cfg.
func newMathEngine(cfg config.MathConfig, runner CommandRunner, timeout time.Duration) MathRenderer {
	if cfg.Engine == config.EngineKatex {
		return &pipeline.KatexCLI{Runner: runner, Bin: cfg.KatexBin}
	}
	return newChromeKatex(cfg.KatexScript, timeout)
}

type mathKey struct {
	source  string
	display bool
	fleqn   bool
}

// chromeKatex evaluates KaTeX inside headless Chrome through go-rod.
// The browser starts on the first formula and one blank page is reused for
// every call. Results are cached per source and mode.
type chromeKatex struct {
	scriptPath string
	timeout    time.Duration

	browser *rod.Browser
	page    *rod.Page
	cache   map[mathKey]string
}

func newChromeKatex(scriptPath string, timeout time.Duration) *chromeKatex {
	return &chromeKatex{
		scriptPath: scriptPath,
		timeout:    timeout,
		cache:      make(map[mathKey]string),
	}
}

// katexOptions maps MathOptions onto the options object of
// katex.renderToString.
func katexOptions(opts MathOptions) map[string]any {
	o := map[string]any{
		"displayMode":  opts.Display,
		"fleqn":        opts.Fleqn,
		"throwOnError": true,
	}
	if len(opts.Macros) > 0 {
		o["macros"] = opts.Macros
	}
	return o
}

// RenderMath typesets source with katex.renderToString.
func (c *chromeKatex) RenderMath(ctx context.Context, source string, opts MathOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := mathKey{source: source, display: opts.Display, fleqn: opts.Fleqn}
	if out, ok := c.cache[key]; ok {
		return out, nil
	}

	if err := c.ensurePage(); err != nil {
		return "", err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return "", context.DeadlineExceeded
		}
	}

	res, err := c.page.Context(ctx).Timeout(timeout).Eval(renderJS, source, katexOptions(opts))
	if err != nil {
		return "", err
	}
	out := res.Value.Str()
	c.cache[key] = out
	return out, nil
}

// ensurePage reads the KaTeX script, starts the browser and loads the
// script into a blank page.
func (c *chromeKatex) ensurePage() error {
	if c.page != nil {
		return nil
	}

	script, err := os.ReadFile(c.scriptPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKatexScript, err)
	}

	if err := c.ensureBrowser(); err != nil {
		return err
	}

	page, err := c.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	if err := page.Timeout(c.timeout).AddScriptTag("", string(script)); err != nil {
		_ = page.Close()
		return fmt.Errorf("%w: %v", ErrKatexScript, err)
	}
	c.page = page
	return nil
}

// ensureBrowser lazily connects to the browser.
func (c *chromeKatex) ensureBrowser() error {
	if c.browser != nil {
		return nil
	}

	l := launcher.New()

	// Use pre-installed browser if specified (Docker/containerized environments)
	bin := os.Getenv("ROD_BROWSER_BIN")
	if bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || bin != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	c.browser = rod.New().ControlURL(u)
	if err := c.browser.Connect(); err != nil {
		c.browser = nil
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	return nil
}

// Close releases browser resources.
func (c *chromeKatex) Close() error {
	c.page = nil
	if c.browser != nil {
		err := c.browser.Close()
		c.browser = nil
		return err
	}
	return nil
}
