package metrics

import "github.com/dep2p/go-dice/internal/util/logger"

var log = logger.Logger("metrics")
