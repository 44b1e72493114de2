package platform

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "platform")
