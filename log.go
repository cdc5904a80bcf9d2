package op_go

import (
	"github.com/sirupsen/logrus" //nolint:depguard // package-level logger shared by the whole module
)

// Log is the package-level logger used throughout op-go.
var Log = logrus.New()
