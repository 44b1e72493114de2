package aircraft

import "github.com/sirupsen/logrus"

// log 飞机动力学模块的日志记录器
var log = logrus.WithField("module", "aircraft")
