package grpcserver

import "github.com/streamingfast/logging"

func init() {
	logging.InstantiateLoggers()
}
