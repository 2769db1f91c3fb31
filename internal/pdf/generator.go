// Package pdf 将 HTML 渲染为 PDF 字节，由无头 Chromium 完成排版。
package pdf

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const renderTimeout = 30 * time.Second

// A4 纸张尺寸（英寸）。简历模板的 CSS 也按 A4 写死。
const (
	paperWidthInches  = 8.27
	paperHeightInches = 11.69
)

// FromHTML 启动无头浏览器加载给定 HTML 并导出 A4 PDF。
// 每次调用独立启动实例，任务级隔离优先于复用开销。
func FromHTML(ctx context.Context, htmlContent string) ([]byte, error) {
	browser, cleanup, err := launchBrowser(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	page, err := browser.Timeout(renderTimeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	page = page.Timeout(renderTimeout)
	if err := page.SetDocumentContent(htmlContent); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	return exportA4(page)
}

func launchBrowser(ctx context.Context) (*rod.Browser, func(), error) {
	launch := launcher.New().
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(browserURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		launch.Cleanup()
		return nil, nil, fmt.Errorf("connect browser: %w", err)
	}

	cleanup := func() {
		_ = browser.Close()
		launch.Cleanup()
	}
	return browser, cleanup, nil
}

func exportA4(page *rod.Page) ([]byte, error) {
	width := paperWidthInches
	height := paperHeightInches
	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
		PaperWidth:        &width,
		PaperHeight:       &height,
	})
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}

	return data, nil
}
