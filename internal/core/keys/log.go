package keys

import "github.com/dep2p/go-dice/internal/util/logger"

var log = logger.Logger("keys")
