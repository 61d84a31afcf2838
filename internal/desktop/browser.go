package desktop

import (
	log "log/slog"

	"github.com/pkg/browser"
)

// Browser opens URLs in the user's default web browser.
type Browser struct{}

func (Browser) Open(url string) error {
	log.Info("Opening browser", "url", url)
	return browser.OpenURL(url)
}
