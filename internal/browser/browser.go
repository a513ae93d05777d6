// Package browser opens verification pages and copies user codes.
package browser

import (
	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"
	"github.com/skratchdot/open-golang/open"
)

// OpenURL opens url in the default web browser.
func OpenURL(url string) error {
	if err := open.Run(url); err != nil {
		log.Debug().Err(err).Str("url", url).Msg("failed to open browser")
		return err
	}
	log.Debug().Str("url", url).Msg("opened browser")
	return nil
}

// CopyToClipboard puts text on the system clipboard when one is available.
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		log.Debug().Msg("clipboard is not supported on this system")
		return nil
	}
	return clipboard.WriteAll(text)
}
