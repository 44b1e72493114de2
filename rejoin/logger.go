package rejoin

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "rejoin")
