// README: zap logger construction shared by the server and CLIs.
package infra

import "go.uber.org/zap"

// NewLogger returns a development logger when debug is set, production otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
