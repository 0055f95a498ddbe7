// Package echoutil has logging helpers for echo servers.
package echoutil

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// AccessLog logs each request with the status code sent back.
//
// Errors from next are handled here with c.Error,
// so the logged status is the one the client gets.
func AccessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		begin := time.Now()

		if err := next(c); err != nil {
			c.Error(err)
		}

		c.Logger().Infof(
			"%s %s -> %d (%d bytes) in %v",
			req.Method, req.URL, c.Response().Status, c.Response().Size, time.Since(begin),
		)
		return nil
	}
}

// ParseLevel converts a level name into gommon log level.
//
// Unknown names are WARN, and ok is false.
func ParseLevel(name string) (lv log.Lvl, ok bool) {
	switch strings.ToLower(name) {
	case "debug":
		return log.DEBUG, true
	case "info":
		return log.INFO, true
	case "warn", "":
		return log.WARN, true
	case "error":
		return log.ERROR, true
	case "off":
		return log.OFF, true
	}
	return log.WARN, false
}

// SetLevel sets the level of the logger of e by its name.
func SetLevel(e *echo.Echo, name string) {
	lv, ok := ParseLevel(name)
	e.Logger.SetLevel(lv)
	if !ok {
		e.Logger.Warnf("unknown log level %q: use warn", name)
	}
}
